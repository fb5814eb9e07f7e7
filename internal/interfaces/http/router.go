package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/medisuite/portal-api/pkg/config"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Registry      *Registry
	Proxy         *ProxyHandler
	SessionCfg    config.SessionConfig
	DefaultLocale string
}

// Router registra las rutas del portal. SessionMiddleware corre en todo /api:
// cada petición llega con su pipeline de sesión resuelto; las guardas de
// permiso se montan por grupo de dashboard.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api", SessionMiddleware(deps.SessionCfg, deps.Registry))

	// Auth
	authGroup := api.Group("/auth")
	authHandler := NewAuthHandler(deps.Registry, deps.DefaultLocale)
	authGroup.Post("/login", authHandler.Login)
	authGroup.Post("/logout", authHandler.Logout)
	authGroup.Get("/me", RequireAnyPermission(), authHandler.Me)
	authGroup.Post("/permissions/refresh", RequireAnyPermission(), authHandler.RefreshPermissions)

	// Temporizador de inactividad y preferencias de sesión
	sessionGroup := api.Group("/session")
	sessionHandler := NewSessionHandler(deps.Registry)
	sessionGroup.Get("/", RequireAnyPermission(), sessionHandler.State)
	sessionGroup.Post("/keepalive", RequireAnyPermission(), sessionHandler.Keepalive)
	sessionGroup.Post("/continue", RequireAnyPermission(), sessionHandler.Continue)
	sessionGroup.Post("/signout", RequireAnyPermission(), sessionHandler.SignOut)
	sessionGroup.Put("/locale", RequireAnyPermission(), sessionHandler.SetLocale)

	// Sedes
	branchGroup := api.Group("/branches", RequireAnyPermission())
	branchHandler := NewBranchHandler()
	branchGroup.Get("/", branchHandler.List)
	branchGroup.Put("/selected", branchHandler.Select)

	// Passthrough hacia el backend, un grupo por dashboard. La guarda es el
	// único punto de autorización; el proxy no re-chequea nada.
	platform := api.Group("/platform")
	platform.All("/patients/*", RequireAnyPermission("patients.view"), deps.Proxy.Forward)
	platform.All("/appointments/*", RequireAnyPermission("appointments.view"), deps.Proxy.Forward)
	platform.All("/records/*", RequireAnyPermission("records.view"), deps.Proxy.Forward)
	platform.All("/billing/*", RequireAnyPermission("billing.view", "billing.manage"), deps.Proxy.Forward)
	platform.All("/admin/*", RequireAnyPermission("permissions.manage"), deps.Proxy.Forward)
}
