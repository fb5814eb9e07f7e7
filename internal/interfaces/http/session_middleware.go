package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/medisuite/portal-api/pkg/config"
	"github.com/medisuite/portal-api/pkg/jwt"
)

// Locals keys del pipeline de sesión en Fiber.
const (
	localPipeline  = "session_pipeline"
	localSessionID = "session_id"
)

// cookieTTLMinutes vida de la cookie en el navegador. Acota la reutilización
// del session_id; la expiración real la decide el SessionManager por
// inactividad, mucho antes.
const cookieTTLMinutes = 12 * 60

// SessionMiddleware resuelve (o crea) la sesión de navegador: valida la
// cookie firmada, obtiene el pipeline del registry —hidratándolo si es la
// primera vez— y lo deja en c.Locals. Una cookie ausente o inválida no es
// error: se emite una sesión nueva sin estado.
func SessionMiddleware(cfg config.SessionConfig, registry *Registry) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sid := ""
		if raw := c.Cookies(cfg.CookieName); raw != "" {
			if parsed, err := jwt.Parse(cfg.Secret, raw); err == nil {
				sid = parsed
			}
		}

		if sid == "" {
			sid = uuid.NewString()
			token, err := jwt.Generate(cfg.Secret, sid, cfg.Issuer, cookieTTLMinutes)
			if err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(errorBody("SESSION_COOKIE", "no se pudo emitir la cookie de sesión"))
			}
			c.Cookie(&fiber.Cookie{
				Name:     cfg.CookieName,
				Value:    token,
				Expires:  time.Now().Add(cookieTTLMinutes * time.Minute),
				HTTPOnly: true,
				SameSite: fiber.CookieSameSiteLaxMode,
				Path:     "/",
			})
		}

		pipeline := registry.Get(c.Context(), sid)
		c.Locals(localSessionID, sid)
		c.Locals(localPipeline, pipeline)
		return c.Next()
	}
}

// PipelineFromCtx devuelve el pipeline de la sesión actual.
// Invocarlo en una ruta sin SessionMiddleware por encima es un error de
// programación: falla ruidosamente en vez de devolver defaults silenciosos.
func PipelineFromCtx(c *fiber.Ctx) *Pipeline {
	p, ok := c.Locals(localPipeline).(*Pipeline)
	if !ok || p == nil {
		panic("portal: pipeline de sesión no montado; falta SessionMiddleware en la cadena de la ruta")
	}
	return p
}

// SessionIDFromCtx devuelve el session_id de la cookie validada.
func SessionIDFromCtx(c *fiber.Ctx) string {
	s, _ := c.Locals(localSessionID).(string)
	return s
}
