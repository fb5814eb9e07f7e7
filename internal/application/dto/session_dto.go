package dto

// SessionStateResponse estado del temporizador de inactividad, para que el
// front pinte la cuenta regresiva (granularidad de 1 s al consultar).
type SessionStateResponse struct {
	State            string `json:"state"` // idle | warning | expired
	RemainingSeconds int    `json:"remaining_seconds"`
	Warning          bool   `json:"warning"`
}

// LocaleRequest entrada para cambiar el idioma preferido de la sesión.
type LocaleRequest struct {
	Locale string `json:"locale" validate:"required"`
}

// LocaleResponse idioma efectivo tras la negociación.
type LocaleResponse struct {
	Locale string `json:"locale"`
}
