package dto

// LoginRequest entrada para login contra el proveedor de identidad.
type LoginRequest struct {
	Email          string `json:"email" validate:"required,email"`
	Password       string `json:"password" validate:"required"`
	OrganizationID string `json:"organization_id" validate:"required"`
}

// UserResponse salida del usuario autenticado (nunca incluye el token).
type UserResponse struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	Email          string `json:"email"`
	Name           string `json:"name"`
	Role           string `json:"role"`
	Phone          string `json:"phone,omitempty"`
	Department     string `json:"department,omitempty"`
}

// SessionResponse estado visible de la sesión tras login / en GET /me.
type SessionResponse struct {
	User        UserResponse `json:"user"`
	Permissions []string     `json:"permissions"`
	Locale      string       `json:"locale"`
}

// PermissionsResponse salida del refresh explícito de permisos.
type PermissionsResponse struct {
	Permissions []string `json:"permissions"`
}
