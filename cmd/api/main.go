package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/medisuite/portal-api/internal/application/session"
	"github.com/medisuite/portal-api/internal/domain/repository"
	"github.com/medisuite/portal-api/internal/infrastructure/credstore"
	"github.com/medisuite/portal-api/internal/infrastructure/platformapi"
	"github.com/medisuite/portal-api/internal/infrastructure/postgres"
	httpRouter "github.com/medisuite/portal-api/internal/interfaces/http"
	"github.com/medisuite/portal-api/pkg/config"
	"github.com/medisuite/portal-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("store", cfg.Store.Backend).
		Msg("iniciando portal")

	ctx := context.Background()

	// Almacén de credenciales según backend configurado. El backend "memory"
	// pierde las sesiones al reiniciar; solo para desarrollo.
	var store repository.CredentialStore
	switch cfg.Store.Backend {
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a PostgreSQL")
		}
		defer pool.Close()
		store = postgres.NewCredentialRepository(pool)
	case "file":
		fs, err := credstore.NewFileStore(cfg.Store.FileDir, cfg.Store.FileSecret)
		if err != nil {
			log.Fatal().Err(err).Msg("inicializar almacén de credenciales en disco")
		}
		store = fs
	case "memory":
		store = credstore.NewMemoryStore()
	default:
		log.Fatal().Str("backend", cfg.Store.Backend).Msg("backend de almacén desconocido")
	}

	platformTimeout := time.Duration(cfg.Platform.TimeoutSeconds) * time.Second
	platformClient := platformapi.NewClient(cfg.Platform.BaseURL, platformTimeout)
	identitySvc := platformapi.NewAuthClient(platformClient)
	branchSvc := platformapi.NewBranchClient(platformClient)

	registry := httpRouter.NewRegistry(httpRouter.RegistryDeps{
		Store:         store,
		Identity:      identitySvc,
		BranchService: branchSvc,
		ManagerCfg: session.ManagerConfig{
			Timeout: time.Duration(cfg.Session.TimeoutMinutes) * time.Minute,
			Warning: time.Duration(cfg.Session.WarningMinutes) * time.Minute,
		},
		DefaultLocale: cfg.App.DefaultLocale,
		Log:           log,
	})

	proxy := httpRouter.NewProxyHandler(cfg.Platform.BaseURL, platformTimeout, log)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 30,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "MediSuite Portal API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":   "ok",
			"service":  cfg.App.Name,
			"sessions": registry.Size(),
		})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		Registry:      registry,
		Proxy:         proxy,
		SessionCfg:    cfg.Session,
		DefaultLocale: cfg.App.DefaultLocale,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("portal detenido")
}
