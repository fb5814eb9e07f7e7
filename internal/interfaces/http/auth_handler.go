package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/medisuite/portal-api/internal/application/dto"
	"github.com/medisuite/portal-api/internal/application/session"
	"github.com/medisuite/portal-api/internal/domain"
	"github.com/medisuite/portal-api/internal/domain/entity"
	"github.com/medisuite/portal-api/pkg/locale"
)

// AuthHandler maneja login, logout y consulta de la identidad.
type AuthHandler struct {
	registry      *Registry
	defaultLocale string
}

// NewAuthHandler construye el handler de auth.
func NewAuthHandler(registry *Registry, defaultLocale string) *AuthHandler {
	return &AuthHandler{registry: registry, defaultLocale: defaultLocale}
}

// Login godoc
// @Summary      Iniciar sesión
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body  dto.LoginRequest  true  "email, password, organization_id"
// @Success      200   {object}  dto.SessionResponse
// @Failure      401   {object}  dto.ErrorResponse
// @Failure      502   {object}  dto.ErrorResponse
// @Router       /api/auth/login [post]
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var in dto.LoginRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorBody("INVALID_BODY", "cuerpo inválido"))
	}
	if in.Email == "" || in.Password == "" || in.OrganizationID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(errorBody("VALIDATION", "email, password y organization_id son requeridos"))
	}

	p := PipelineFromCtx(c)
	snap, err := p.Auth.Login(c.Context(), in.Email, in.Password, in.OrganizationID)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			return c.Status(fiber.StatusUnauthorized).JSON(errorBody("INVALID_CREDENTIALS", "credenciales inválidas"))
		}
		return c.Status(fiber.StatusBadGateway).JSON(errorBody("IDENTITY_UNAVAILABLE", "el servicio de identidad no está disponible"))
	}

	// Idioma inicial: lo que pida el navegador, acotado a los soportados.
	p.SetLocale(locale.Negotiate(c.Get(fiber.HeaderAcceptLanguage), h.defaultLocale))

	return c.JSON(sessionResponse(snap, p.Locale()))
}

// Logout godoc
// @Summary      Cerrar sesión (idempotente)
// @Tags         auth
// @Produce      json
// @Success      200  {object}  dto.MessageResponse
// @Router       /api/auth/logout [post]
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	p := PipelineFromCtx(c)
	p.Auth.Logout(c.Context())
	h.registry.Remove(SessionIDFromCtx(c))
	c.ClearCookie()
	return c.JSON(dto.MessageResponse{Message: "sesión cerrada"})
}

// Me godoc
// @Summary      Identidad y permisos de la sesión actual
// @Tags         auth
// @Produce      json
// @Success      200  {object}  dto.SessionResponse
// @Failure      401  {object}  dto.ErrorResponse
// @Router       /api/auth/me [get]
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	p := PipelineFromCtx(c)
	return c.JSON(sessionResponse(p.Auth.Snapshot(), p.Locale()))
}

// RefreshPermissions godoc
// @Summary      Releer los permisos del token actual
// @Tags         auth
// @Produce      json
// @Success      200  {object}  dto.PermissionsResponse
// @Failure      502  {object}  dto.ErrorResponse
// @Router       /api/auth/permissions/refresh [post]
func (h *AuthHandler) RefreshPermissions(c *fiber.Ctx) error {
	p := PipelineFromCtx(c)
	if err := p.Auth.RefreshPermissions(c.Context()); err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(errorBody("PERMISSIONS_UNAVAILABLE", "no se pudieron refrescar los permisos"))
	}
	return c.JSON(dto.PermissionsResponse{Permissions: p.Auth.Snapshot().Permissions.List()})
}

func sessionResponse(snap session.Snapshot, loc string) dto.SessionResponse {
	out := dto.SessionResponse{
		Permissions: snap.Permissions.List(),
		Locale:      loc,
	}
	if out.Permissions == nil {
		out.Permissions = []string{}
	}
	if snap.User != nil {
		out.User = userResponse(*snap.User)
	}
	return out
}

func userResponse(u entity.User) dto.UserResponse {
	return dto.UserResponse{
		ID:             u.ID,
		OrganizationID: u.OrganizationID,
		Email:          u.Email,
		Name:           u.Name,
		Role:           u.Role,
		Phone:          u.Phone,
		Department:     u.Department,
	}
}
