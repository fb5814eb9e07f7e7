package http

import (
	"context"
	"sync"

	"github.com/medisuite/portal-api/internal/application/branches"
	"github.com/medisuite/portal-api/internal/application/ports"
	"github.com/medisuite/portal-api/internal/application/session"
	"github.com/medisuite/portal-api/internal/domain/repository"
	"github.com/medisuite/portal-api/pkg/logger"
)

// Pipeline conjunto de estado de UNA sesión de navegador: AuthContext +
// SessionManager + BranchContext, más preferencias ligeras (idioma).
// El registry es su "provider": los handlers solo lo alcanzan a través del
// middleware de sesión.
type Pipeline struct {
	Auth     *session.AuthContext
	Manager  *session.Manager
	Branches *branches.Context

	mu     sync.Mutex
	locale string
}

// Locale idioma preferido de la sesión.
func (p *Pipeline) Locale() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.locale
}

// SetLocale cambia el idioma preferido (ya negociado/validado por el handler).
func (p *Pipeline) SetLocale(locale string) {
	p.mu.Lock()
	p.locale = locale
	p.mu.Unlock()
}

// RegistryDeps dependencias para construir pipelines.
type RegistryDeps struct {
	Store         repository.CredentialStore
	Identity      ports.IdentityService
	BranchService ports.BranchService
	ManagerCfg    session.ManagerConfig
	Clock         session.Clock // nil => reloj real
	DefaultLocale string
	Log           *logger.Logger
}

// Registry mantiene un pipeline por sesión de navegador (cookie). Crea e
// hidrata bajo demanda y desmonta en logout o expiración por inactividad.
type Registry struct {
	deps RegistryDeps
	log  *logger.Logger

	mu        sync.Mutex
	pipelines map[string]*Pipeline
}

// NewRegistry construye el registro de sesiones.
func NewRegistry(deps RegistryDeps) *Registry {
	return &Registry{
		deps:      deps,
		log:       deps.Log.Component("registry"),
		pipelines: make(map[string]*Pipeline),
	}
}

// Get devuelve el pipeline de la sesión, creándolo e hidratándolo si es la
// primera vez. La hidratación corre como máximo una vez por sesión; llamadas
// concurrentes esperan a que complete.
func (r *Registry) Get(ctx context.Context, sessionID string) *Pipeline {
	r.mu.Lock()
	p, ok := r.pipelines[sessionID]
	if !ok {
		p = r.build(sessionID)
		r.pipelines[sessionID] = p
	}
	r.mu.Unlock()

	p.Auth.Hydrate(ctx)
	return p
}

// Remove desmonta el pipeline: detiene el manager (ningún timer dispara
// después), anula la suscripción de sedes y olvida la entrada.
func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	p, ok := r.pipelines[sessionID]
	delete(r.pipelines, sessionID)
	r.mu.Unlock()

	if !ok {
		return
	}
	p.Manager.Stop()
	p.Branches.Close()
}

// Size cantidad de pipelines vivos (health / métricas).
func (r *Registry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pipelines)
}

// build cablea los tres componentes de la sesión. El orden importa: los
// suscriptores se enlazan antes de hidratar para no perder el primer snapshot.
func (r *Registry) build(sessionID string) *Pipeline {
	auth := session.NewAuthContext(sessionID, r.deps.Store, r.deps.Identity, r.deps.Log)

	manager, err := session.NewManager(r.deps.ManagerCfg, r.deps.Clock, session.ManagerHooks{
		OnExpired: func() {
			// Expiración por inactividad: logout normal, no un error.
			r.log.Info().Str("session_id", sessionID).Msg("sesión expirada por inactividad")
			auth.Logout(context.Background())
			r.Remove(sessionID)
		},
	}, r.deps.Log)
	if err != nil {
		// La configuración se validó al cargar; llegar aquí es un error de
		// programación, igual que usar un accessor sin provider.
		panic("portal: configuración de SessionManager inválida: " + err.Error())
	}

	br := branches.New(r.deps.BranchService, r.deps.Log)

	// El manager vive solo mientras exista usuario: arranca al autenticarse
	// y se detiene cuando la sesión desaparece (logout externo incluido).
	// Un re-login sobre la misma cookie con otra identidad rearma el ciclo
	// desde cero: la cuenta regresiva de la sesión anterior no aplica al
	// usuario recién autenticado.
	var trackMu sync.Mutex
	lastUserID := ""
	auth.Subscribe(func(snap session.Snapshot) {
		if snap.Loading {
			return
		}
		if snap.Authenticated() {
			trackMu.Lock()
			changed := snap.User.ID != lastUserID
			lastUserID = snap.User.ID
			trackMu.Unlock()
			if changed || manager.State() == session.StateStopped {
				manager.Start()
			}
		} else {
			trackMu.Lock()
			lastUserID = ""
			trackMu.Unlock()
			manager.Stop()
		}
	})
	br.Bind(auth)

	return &Pipeline{
		Auth:     auth,
		Manager:  manager,
		Branches: br,
		locale:   r.deps.DefaultLocale,
	}
}
