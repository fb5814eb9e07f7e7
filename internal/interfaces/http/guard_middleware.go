package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/medisuite/portal-api/internal/application/dto"
	"github.com/medisuite/portal-api/internal/application/guard"
)

// errorBody helper para respuestas de error uniformes.
func errorBody(code, message string) dto.ErrorResponse {
	return dto.ErrorResponse{Code: code, Message: message}
}

// unauthenticatedBody incluye la ruta de navegación al login, para que el
// front redirija. La respuesta es idéntica en cada re-evaluación del mismo
// estado: la navegación es idempotente, no hay bucle posible.
type unauthenticatedBody struct {
	dto.ErrorResponse
	RedirectTo string `json:"redirect_to"`
}

// RequireAnyPermission devuelve el middleware guarda de ruta. Es el único
// punto de autorización: las páginas/handlers no reimplementan chequeos.
// Semántica ANY sobre required; sin argumentos solo exige sesión.
//
// Estados:
//   - loading       → 503 + Retry-After (decisión diferida, nunca se adivina).
//   - unauthenticated → 401 con redirect_to al login.
//   - forbidden     → 403 en el sitio, SIN redirect (ver guard.Decision).
//   - authorized    → continúa la cadena.
func RequireAnyPermission(required ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p := PipelineFromCtx(c)
		decision := guard.Evaluate(p.Auth.Snapshot(), required)

		switch decision.State {
		case guard.StateLoading:
			c.Set(fiber.HeaderRetryAfter, "1")
			return c.Status(fiber.StatusServiceUnavailable).JSON(errorBody("SESSION_LOADING", "la sesión aún se está restaurando"))
		case guard.StateUnauthenticated:
			return c.Status(fiber.StatusUnauthorized).JSON(unauthenticatedBody{
				ErrorResponse: errorBody("UNAUTHENTICATED", "no hay sesión activa"),
				RedirectTo:    decision.RedirectTo,
			})
		case guard.StateForbidden:
			return c.Status(fiber.StatusForbidden).JSON(errorBody("FORBIDDEN", "acceso denegado"))
		default:
			return c.Next()
		}
	}
}
