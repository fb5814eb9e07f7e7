package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/medisuite/portal-api/internal/application/dto"
	"github.com/medisuite/portal-api/internal/application/session"
	"github.com/medisuite/portal-api/pkg/locale"
)

// SessionHandler expone el temporizador de inactividad y las preferencias de
// la sesión. Consultar el estado NO cuenta como actividad: si el polling de
// la cuenta regresiva tocara el timer, la sesión no expiraría nunca.
type SessionHandler struct {
	registry *Registry
}

// NewSessionHandler construye el handler de sesión.
func NewSessionHandler(registry *Registry) *SessionHandler {
	return &SessionHandler{registry: registry}
}

// State godoc
// @Summary      Estado del temporizador de inactividad
// @Tags         session
// @Produce      json
// @Success      200  {object}  dto.SessionStateResponse
// @Router       /api/session [get]
func (h *SessionHandler) State(c *fiber.Ctx) error {
	p := PipelineFromCtx(c)
	state := p.Manager.State()
	return c.JSON(dto.SessionStateResponse{
		State:            state.String(),
		RemainingSeconds: int(p.Manager.Remaining().Seconds()),
		Warning:          state == session.StateWarning,
	})
}

// Keepalive godoc
// @Summary      Registrar actividad del usuario (reinicia el timer en idle)
// @Tags         session
// @Produce      json
// @Success      204
// @Router       /api/session/keepalive [post]
func (h *SessionHandler) Keepalive(c *fiber.Ctx) error {
	PipelineFromCtx(c).Manager.Touch()
	return c.SendStatus(fiber.StatusNoContent)
}

// Continue godoc
// @Summary      Acción explícita "seguir trabajando" durante el aviso
// @Tags         session
// @Produce      json
// @Success      200  {object}  dto.SessionStateResponse
// @Router       /api/session/continue [post]
func (h *SessionHandler) Continue(c *fiber.Ctx) error {
	p := PipelineFromCtx(c)
	p.Manager.Continue()
	return h.State(c)
}

// SignOut godoc
// @Summary      Acción explícita "cerrar sesión" durante el aviso
// @Tags         session
// @Produce      json
// @Success      200  {object}  dto.MessageResponse
// @Router       /api/session/signout [post]
func (h *SessionHandler) SignOut(c *fiber.Ctx) error {
	p := PipelineFromCtx(c)
	// SignOut dispara OnExpired: logout + desmontaje del pipeline.
	p.Manager.SignOut()
	c.ClearCookie()
	return c.JSON(dto.MessageResponse{Message: "sesión cerrada"})
}

// SetLocale godoc
// @Summary      Cambiar el idioma preferido de la sesión
// @Tags         session
// @Accept       json
// @Produce      json
// @Param        body  body  dto.LocaleRequest  true  "etiqueta BCP 47"
// @Success      200   {object}  dto.LocaleResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/session/locale [put]
func (h *SessionHandler) SetLocale(c *fiber.Ctx) error {
	var in dto.LocaleRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorBody("INVALID_BODY", "cuerpo inválido"))
	}
	if !locale.Supported(in.Locale) {
		return c.Status(fiber.StatusBadRequest).JSON(errorBody("UNSUPPORTED_LOCALE", "idioma no soportado"))
	}

	p := PipelineFromCtx(c)
	p.SetLocale(locale.Negotiate(in.Locale, p.Locale()))
	return c.JSON(dto.LocaleResponse{Locale: p.Locale()})
}
