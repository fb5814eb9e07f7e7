package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/medisuite/portal-api/pkg/logger"
)

// ManagerState estado del temporizador de inactividad.
type ManagerState int

const (
	// StateIdle temporizador corriendo, sin aviso visible.
	StateIdle ManagerState = iota
	// StateWarning umbral de inactividad alcanzado, cuenta regresiva visible.
	StateWarning
	// StateExpired terminal: se invocó el logout.
	StateExpired
	// StateStopped desmontado (logout externo o teardown); terminal.
	StateStopped
)

func (s ManagerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWarning:
		return "warning"
	case StateExpired:
		return "expired"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ManagerConfig parámetros del temporizador: T total de inactividad y W de
// antelación del aviso (W < T).
type ManagerConfig struct {
	Timeout time.Duration // T
	Warning time.Duration // W
}

// Validate comprueba la relación W < T.
func (c ManagerConfig) Validate() error {
	if c.Timeout <= 0 || c.Warning <= 0 {
		return fmt.Errorf("session: Timeout y Warning deben ser positivos")
	}
	if c.Warning >= c.Timeout {
		return fmt.Errorf("session: Warning (%s) debe ser menor que Timeout (%s)", c.Warning, c.Timeout)
	}
	return nil
}

// ManagerHooks callbacks de transición. OnExpired es obligatorio (dispara el
// logout); OnWarning es opcional. Se invocan fuera de los locks del manager.
type ManagerHooks struct {
	OnWarning func(remaining time.Duration)
	OnExpired func()
}

// Manager máquina de estados del cierre de sesión por inactividad:
// idle → warning → expired. Todos los handles de timer son propiedad del
// manager y se liberan juntos en cada transición de salida, de modo que
// ningún timer dispara después del teardown.
type Manager struct {
	cfg   ManagerConfig
	clock Clock
	hooks ManagerHooks
	log   *logger.Logger

	mu       sync.Mutex
	state    ManagerState
	timer    Timer     // único timer activo (uno por estado)
	deadline time.Time // fin del estado actual
	gen      int       // invalida callbacks de timers ya cancelados
}

// NewManager construye el manager; queda detenido hasta Start.
func NewManager(cfg ManagerConfig, clock Clock, hooks ManagerHooks, log *logger.Logger) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if hooks.OnExpired == nil {
		return nil, fmt.Errorf("session: OnExpired es obligatorio")
	}
	if clock == nil {
		clock = RealClock()
	}
	return &Manager{
		cfg:   cfg,
		clock: clock,
		hooks: hooks,
		log:   log.Component("session-manager"),
		state: StateStopped,
	}, nil
}

// Start arma el temporizador de inactividad (solo con sesión activa).
// Reiniciar un manager expirado o detenido arranca de cero.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toIdleLocked()
}

// Touch registra actividad del usuario (puntero, teclado, scroll, touch…).
// En idle reinicia el temporizador. En warning es deliberadamente un no-op:
// los clics sobre el propio modal no deben cancelar un aviso en curso; eso
// solo lo hace la acción explícita Continue.
func (m *Manager) Touch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateIdle {
		return
	}
	m.toIdleLocked()
}

// Continue acción explícita "seguir trabajando" durante el aviso: cancela la
// cuenta regresiva y rearma el ciclo completo. En idle equivale a Touch.
func (m *Manager) Continue() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateIdle && m.state != StateWarning {
		return
	}
	m.toIdleLocked()
}

// SignOut acción explícita "cerrar sesión" durante el aviso: expira de inmediato.
func (m *Manager) SignOut() {
	m.mu.Lock()
	if m.state == StateExpired || m.state == StateStopped {
		m.mu.Unlock()
		return
	}
	m.expireLocked()
	m.mu.Unlock()

	m.hooks.OnExpired()
}

// Stop desmonta el manager (logout externo o teardown): cancela todo timer
// pendiente de forma atómica. Tras Stop ningún callback vuelve a dispararse.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelTimerLocked()
	m.state = StateStopped
	m.deadline = time.Time{}
}

// State estado actual de la máquina.
func (m *Manager) State() ManagerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Remaining tiempo restante hasta el cierre por inactividad. En idle incluye
// la ventana de aviso todavía no iniciada; en warning es la cuenta regresiva.
func (m *Manager) Remaining() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateIdle:
		d := m.deadline.Sub(m.clock.Now()) + m.cfg.Warning
		if d < 0 {
			return 0
		}
		return d
	case StateWarning:
		d := m.deadline.Sub(m.clock.Now())
		if d < 0 {
			return 0
		}
		return d
	default:
		return 0
	}
}

// toIdleLocked (re)arma el timer T−W hacia warning. Cancela cualquier timer previo.
func (m *Manager) toIdleLocked() {
	m.cancelTimerLocked()
	m.state = StateIdle
	m.deadline = m.clock.Now().Add(m.cfg.Timeout - m.cfg.Warning)

	m.gen++
	gen := m.gen
	m.timer = m.clock.AfterFunc(m.cfg.Timeout-m.cfg.Warning, func() {
		m.fireWarning(gen)
	})
}

// fireWarning transición idle → warning. El gen descarta disparos de timers
// que fueron cancelados entre el disparo y la toma del lock.
func (m *Manager) fireWarning(gen int) {
	m.mu.Lock()
	if gen != m.gen || m.state != StateIdle {
		m.mu.Unlock()
		return
	}
	m.state = StateWarning
	m.deadline = m.clock.Now().Add(m.cfg.Warning)

	m.gen++
	expireGen := m.gen
	m.timer = m.clock.AfterFunc(m.cfg.Warning, func() {
		m.fireExpire(expireGen)
	})
	remaining := m.cfg.Warning
	m.mu.Unlock()

	m.log.Info().Dur("remaining", remaining).Msg("sesión por expirar, aviso iniciado")
	if m.hooks.OnWarning != nil {
		m.hooks.OnWarning(remaining)
	}
}

// fireExpire transición warning → expired: invoca el logout exactamente una vez.
func (m *Manager) fireExpire(gen int) {
	m.mu.Lock()
	if gen != m.gen || m.state != StateWarning {
		m.mu.Unlock()
		return
	}
	m.expireLocked()
	m.mu.Unlock()

	m.log.Info().Msg("sesión expirada por inactividad")
	m.hooks.OnExpired()
}

func (m *Manager) expireLocked() {
	m.cancelTimerLocked()
	m.state = StateExpired
	m.deadline = time.Time{}
}

// cancelTimerLocked libera el timer activo e invalida sus callbacks en vuelo.
func (m *Manager) cancelTimerLocked() {
	m.gen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}
