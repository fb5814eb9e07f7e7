package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medisuite/portal-api/internal/application/ports"
	"github.com/medisuite/portal-api/internal/application/session"
	"github.com/medisuite/portal-api/internal/domain"
	"github.com/medisuite/portal-api/internal/domain/entity"
	"github.com/medisuite/portal-api/internal/infrastructure/credstore"
	apphttp "github.com/medisuite/portal-api/internal/interfaces/http"
	"github.com/medisuite/portal-api/pkg/config"
	"github.com/medisuite/portal-api/pkg/logger"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

const (
	testSecret     = "test-secret-key-for-unit-tests"
	testCookieName = "portal_session"
	testIssuer     = "portal-test"
)

var testSessionCfg = config.SessionConfig{
	Secret:         testSecret,
	CookieName:     testCookieName,
	Issuer:         testIssuer,
	TimeoutMinutes: 30,
	WarningMinutes: 5,
}

// stubIdentity proveedor de identidad configurable por test.
type stubIdentity struct {
	user     entity.User
	perms    []string
	loginErr error
}

var _ ports.IdentityService = (*stubIdentity)(nil)

func (s *stubIdentity) Login(_ context.Context, _, _, _ string) (*ports.LoginResult, error) {
	if s.loginErr != nil {
		return nil, s.loginErr
	}
	return &ports.LoginResult{Token: "tok-backend", User: s.user, Permissions: s.perms}, nil
}
func (s *stubIdentity) Logout(context.Context, string) error                  { return nil }
func (s *stubIdentity) Permissions(context.Context, string) ([]string, error) { return s.perms, nil }

// stubBranches servicio de sedes fijo.
type stubBranches struct {
	list []entity.Branch
}

var _ ports.BranchService = (*stubBranches)(nil)

func (s *stubBranches) Branches(context.Context, string) ([]entity.Branch, error) {
	return s.list, nil
}

// stepClock reloj manual para simular inactividad en los tests HTTP.
type stepClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*stepTimer
}

type stepTimer struct {
	clock   *stepClock
	fn      func()
	at      time.Time
	stopped bool
	fired   bool
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) AfterFunc(d time.Duration, f func()) session.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &stepTimer{clock: c, fn: f, at: c.now.Add(d)}
	c.timers = append(c.timers, t)
	return t
}

func (t *stepTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	for {
		var next *stepTimer
		for _, t := range c.timers {
			if t.fired || t.stopped || t.at.After(target) {
				continue
			}
			if next == nil || t.at.Before(next.at) {
				next = t
			}
		}
		if next == nil {
			break
		}
		next.fired = true
		c.now = next.at
		c.mu.Unlock()
		next.fn()
		c.mu.Lock()
	}
	c.now = target
	c.mu.Unlock()
}

// portalApp aplicación completa de pruebas con cookie persistida entre
// peticiones, como haría un navegador.
type portalApp struct {
	t      *testing.T
	app    *fiber.App
	cookie string
}

type portalOpts struct {
	identity ports.IdentityService
	branches ports.BranchService
	clock    session.Clock
	backend  string // baseURL del backend proxificado
}

func newPortalApp(t *testing.T, opts portalOpts) *portalApp {
	t.Helper()
	if opts.identity == nil {
		opts.identity = &stubIdentity{user: entity.User{ID: "u-1", Role: entity.RoleDoctor}}
	}
	if opts.branches == nil {
		opts.branches = &stubBranches{}
	}
	if opts.backend == "" {
		opts.backend = "http://127.0.0.1:1" // nunca se alcanza en estos tests
	}

	registry := apphttp.NewRegistry(apphttp.RegistryDeps{
		Store:         credstore.NewMemoryStore(),
		Identity:      opts.identity,
		BranchService: opts.branches,
		ManagerCfg: session.ManagerConfig{
			Timeout: 30 * time.Minute,
			Warning: 5 * time.Minute,
		},
		Clock:         opts.clock,
		DefaultLocale: "es",
		Log:           logger.Nop(),
	})

	app := fiber.New()
	apphttp.Router(app, apphttp.RouterDeps{
		Registry:      registry,
		Proxy:         apphttp.NewProxyHandler(opts.backend, time.Second, logger.Nop()),
		SessionCfg:    testSessionCfg,
		DefaultLocale: "es",
	})
	return &portalApp{t: t, app: app}
}

// do lanza una petición arrastrando la cookie de sesión, como un navegador.
func (p *portalApp) do(method, path string, body any, headers map[string]string) *http.Response {
	p.t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(p.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if p.cookie != "" {
		req.AddCookie(&http.Cookie{Name: testCookieName, Value: p.cookie})
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := p.app.Test(req, -1)
	require.NoError(p.t, err)

	for _, c := range resp.Cookies() {
		if c.Name == testCookieName {
			p.cookie = c.Value
		}
	}
	return resp
}

// login inicia sesión y exige éxito.
func (p *portalApp) login(t *testing.T) {
	t.Helper()
	resp := p.do(http.MethodPost, "/api/auth/login", map[string]string{
		"email":           "doctora@clinica.co",
		"password":        "secreta",
		"organization_id": "org-1",
	}, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode, "el login de pruebas debe ser exitoso")
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// ──────────────────────────────────────────────────────────────────────────────
// Sesión de navegador y guarda
// ──────────────────────────────────────────────────────────────────────────────

func TestPortal_PrimeraVisitaEmiteCookieYNoTieneSesion(t *testing.T) {
	p := newPortalApp(t, portalOpts{})

	resp := p.do(http.MethodGet, "/api/auth/me", nil, nil)
	defer resp.Body.Close()

	assert.NotEmpty(t, p.cookie, "la primera visita recibe la cookie de sesión")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var body struct {
		Code       string `json:"code"`
		RedirectTo string `json:"redirect_to"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "UNAUTHENTICATED", body.Code)
	assert.Equal(t, "/login", body.RedirectTo, "el 401 incluye la navegación al login")
}

func TestPortal_CookieInvalidaEmiteSesionNueva(t *testing.T) {
	p := newPortalApp(t, portalOpts{})
	p.cookie = "no.es.un-jwt"

	resp := p.do(http.MethodGet, "/api/auth/me", nil, nil)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "cookie inválida no es error, es sesión nueva")
	assert.NotEqual(t, "no.es.un-jwt", p.cookie, "se reemplaza por una cookie firmada")
}

func TestPortal_LoginYMe(t *testing.T) {
	identity := &stubIdentity{
		user: entity.User{
			ID: "u-1", OrganizationID: "org-1",
			Email: "doctora@clinica.co", Name: "Dra. Gómez", Role: entity.RoleDoctor,
		},
		perms: []string{"patients.view", "records.view"},
	}
	p := newPortalApp(t, portalOpts{identity: identity})

	resp := p.do(http.MethodPost, "/api/auth/login", map[string]string{
		"email": "doctora@clinica.co", "password": "secreta", "organization_id": "org-1",
	}, map[string]string{fiber.HeaderAcceptLanguage: "en-US,en;q=0.9"})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		User struct {
			ID   string `json:"id"`
			Role string `json:"role"`
		} `json:"user"`
		Permissions []string `json:"permissions"`
		Locale      string   `json:"locale"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "u-1", body.User.ID)
	assert.Equal(t, entity.RoleDoctor, body.User.Role)
	assert.ElementsMatch(t, []string{"patients.view", "records.view"}, body.Permissions)
	assert.Equal(t, "en", body.Locale, "el idioma inicial se negocia con Accept-Language")

	me := p.do(http.MethodGet, "/api/auth/me", nil, nil)
	defer me.Body.Close()
	assert.Equal(t, http.StatusOK, me.StatusCode, "con la misma cookie la sesión persiste")
}

func TestPortal_LoginCredencialesInvalidas(t *testing.T) {
	p := newPortalApp(t, portalOpts{identity: &stubIdentity{loginErr: domain.ErrInvalidCredentials}})

	resp := p.do(http.MethodPost, "/api/auth/login", map[string]string{
		"email": "doctora@clinica.co", "password": "mala", "organization_id": "org-1",
	}, nil)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "INVALID_CREDENTIALS")
}

func TestPortal_LoginSinCamposRequeridos(t *testing.T) {
	p := newPortalApp(t, portalOpts{})

	resp := p.do(http.MethodPost, "/api/auth/login", map[string]string{"email": "x@y.z"}, nil)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPortal_LogoutEsIdempotente(t *testing.T) {
	p := newPortalApp(t, portalOpts{})
	p.login(t)

	first := p.do(http.MethodPost, "/api/auth/logout", nil, nil)
	first.Body.Close()
	assert.Equal(t, http.StatusOK, first.StatusCode)

	second := p.do(http.MethodPost, "/api/auth/logout", nil, nil)
	second.Body.Close()
	assert.Equal(t, http.StatusOK, second.StatusCode, "repetir logout no es error")

	me := p.do(http.MethodGet, "/api/auth/me", nil, nil)
	defer me.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, me.StatusCode)
}

func TestPortal_GuardaNiegaSinPermiso(t *testing.T) {
	identity := &stubIdentity{
		user:  entity.User{ID: "u-1", Role: entity.RoleReceptionist},
		perms: []string{"appointments.view"},
	}
	p := newPortalApp(t, portalOpts{identity: identity})
	p.login(t)

	resp := p.do(http.MethodGet, "/api/platform/billing/invoices", nil, nil)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "FORBIDDEN")
	assert.NotContains(t, string(body), "redirect_to", "forbidden niega en el sitio, sin navegación")
}

func TestPortal_RefreshPermissions(t *testing.T) {
	identity := &stubIdentity{
		user:  entity.User{ID: "u-1", Role: entity.RoleFinance},
		perms: []string{"appointments.view"},
	}
	p := newPortalApp(t, portalOpts{identity: identity})
	p.login(t)

	// El administrador concede billing.view; el front pide el refresh explícito.
	identity.perms = []string{"appointments.view", "billing.view"}
	resp := p.do(http.MethodPost, "/api/auth/permissions/refresh", nil, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Permissions []string `json:"permissions"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body.Permissions, "billing.view")

	billing := p.do(http.MethodGet, "/api/platform/billing/invoices", nil, nil)
	defer billing.Body.Close()
	assert.NotEqual(t, http.StatusForbidden, billing.StatusCode,
		"tras el refresh la guarda deja pasar al dashboard de facturación")
}

// ──────────────────────────────────────────────────────────────────────────────
// Temporizador de inactividad
// ──────────────────────────────────────────────────────────────────────────────

type sessionStateBody struct {
	State            string `json:"state"`
	RemainingSeconds int    `json:"remaining_seconds"`
	Warning          bool   `json:"warning"`
}

func TestPortal_CicloDeInactividad(t *testing.T) {
	clock := newStepClock()
	p := newPortalApp(t, portalOpts{clock: clock})
	p.login(t)

	resp := p.do(http.MethodGet, "/api/session", nil, nil)
	state := decode[sessionStateBody](t, resp)
	resp.Body.Close()
	assert.Equal(t, "idle", state.State)
	assert.Equal(t, 1800, state.RemainingSeconds)

	clock.Advance(25 * time.Minute)
	resp = p.do(http.MethodGet, "/api/session", nil, nil)
	state = decode[sessionStateBody](t, resp)
	resp.Body.Close()
	assert.Equal(t, "warning", state.State)
	assert.True(t, state.Warning)
	assert.Equal(t, 300, state.RemainingSeconds, "la cuenta regresiva parte de la ventana de aviso")

	// Consultar el estado no es actividad: el aviso sigue su curso.
	clock.Advance(2 * time.Minute)
	resp = p.do(http.MethodGet, "/api/session", nil, nil)
	state = decode[sessionStateBody](t, resp)
	resp.Body.Close()
	assert.Equal(t, "warning", state.State)
	assert.Equal(t, 180, state.RemainingSeconds)

	// "Seguir trabajando" rearma el ciclo completo.
	resp = p.do(http.MethodPost, "/api/session/continue", nil, nil)
	state = decode[sessionStateBody](t, resp)
	resp.Body.Close()
	assert.Equal(t, "idle", state.State)
	assert.Equal(t, 1800, state.RemainingSeconds)
}

func TestPortal_KeepaliveReiniciaElTimer(t *testing.T) {
	clock := newStepClock()
	p := newPortalApp(t, portalOpts{clock: clock})
	p.login(t)

	clock.Advance(20 * time.Minute)
	resp := p.do(http.MethodPost, "/api/session/keepalive", nil, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	clock.Advance(24 * time.Minute)
	resp = p.do(http.MethodGet, "/api/session", nil, nil)
	state := decode[sessionStateBody](t, resp)
	resp.Body.Close()
	assert.Equal(t, "idle", state.State, "la actividad a los 20' pospone el aviso")
}

func TestPortal_ExpiracionPorInactividadCierraLaSesion(t *testing.T) {
	clock := newStepClock()
	p := newPortalApp(t, portalOpts{clock: clock})
	p.login(t)

	clock.Advance(30 * time.Minute)

	// El pipeline expirado se desmontó; la misma cookie rehidrata sin
	// credenciales porque el logout limpió el almacén.
	me := p.do(http.MethodGet, "/api/auth/me", nil, nil)
	defer me.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, me.StatusCode)
}

func TestPortal_ReloginConOtraIdentidadRearmaElTimer(t *testing.T) {
	clock := newStepClock()
	identity := &stubIdentity{user: entity.User{ID: "u-1", Role: entity.RoleDoctor}}
	p := newPortalApp(t, portalOpts{clock: clock, identity: identity})
	p.login(t)

	clock.Advance(25 * time.Minute)
	resp := p.do(http.MethodGet, "/api/session", nil, nil)
	state := decode[sessionStateBody](t, resp)
	resp.Body.Close()
	require.Equal(t, "warning", state.State)

	// Otra persona inicia sesión sobre la misma cookie con el aviso en curso:
	// la cuenta regresiva de la sesión anterior no aplica a la nueva identidad.
	identity.user = entity.User{ID: "u-2", Role: entity.RoleNurse}
	p.login(t)

	resp = p.do(http.MethodGet, "/api/session", nil, nil)
	state = decode[sessionStateBody](t, resp)
	resp.Body.Close()
	assert.Equal(t, "idle", state.State)
	assert.Equal(t, 1800, state.RemainingSeconds, "la nueva identidad arranca el ciclo completo")

	clock.Advance(10 * time.Minute)
	resp = p.do(http.MethodGet, "/api/session", nil, nil)
	state = decode[sessionStateBody](t, resp)
	resp.Body.Close()
	assert.Equal(t, "idle", state.State, "el vencimiento del aviso anterior quedó cancelado")
}

func TestPortal_SignOutDesdeElAviso(t *testing.T) {
	clock := newStepClock()
	p := newPortalApp(t, portalOpts{clock: clock})
	p.login(t)

	clock.Advance(25 * time.Minute)
	resp := p.do(http.MethodPost, "/api/session/signout", nil, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	me := p.do(http.MethodGet, "/api/auth/me", nil, nil)
	defer me.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, me.StatusCode)
}

// ──────────────────────────────────────────────────────────────────────────────
// Sedes
// ──────────────────────────────────────────────────────────────────────────────

type branchListBody struct {
	Branches []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"branches"`
	Selected    string `json:"selected"`
	HasBranches bool   `json:"has_branches"`
}

func TestPortal_SedesYSeleccion(t *testing.T) {
	branches := &stubBranches{list: []entity.Branch{
		{ID: "b-1", Name: "Sede Norte", IsMain: true},
		{ID: "b-2", Name: "Sede Sur"},
	}}
	p := newPortalApp(t, portalOpts{branches: branches})
	p.login(t)

	resp := p.do(http.MethodGet, "/api/branches", nil, nil)
	list := decode[branchListBody](t, resp)
	resp.Body.Close()
	assert.Len(t, list.Branches, 2)
	assert.Equal(t, entity.AllBranches, list.Selected)
	assert.True(t, list.HasBranches)

	resp = p.do(http.MethodPut, "/api/branches/selected", map[string]string{"id": "b-2"}, nil)
	list = decode[branchListBody](t, resp)
	resp.Body.Close()
	assert.Equal(t, "b-2", list.Selected)

	resp = p.do(http.MethodPut, "/api/branches/selected", map[string]string{"id": "b-99"}, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "UNKNOWN_BRANCH")
}

func TestPortal_OrganizacionSinSedes(t *testing.T) {
	p := newPortalApp(t, portalOpts{branches: &stubBranches{}})
	p.login(t)

	resp := p.do(http.MethodGet, "/api/branches", nil, nil)
	list := decode[branchListBody](t, resp)
	resp.Body.Close()

	assert.Empty(t, list.Branches)
	assert.False(t, list.HasBranches)
	assert.Equal(t, entity.AllBranches, list.Selected)
}

// ──────────────────────────────────────────────────────────────────────────────
// Idioma
// ──────────────────────────────────────────────────────────────────────────────

func TestPortal_CambioDeIdioma(t *testing.T) {
	p := newPortalApp(t, portalOpts{})
	p.login(t)

	resp := p.do(http.MethodPut, "/api/session/locale", map[string]string{"locale": "en"}, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Locale string `json:"locale"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "en", body.Locale)

	bad := p.do(http.MethodPut, "/api/session/locale", map[string]string{"locale": "xx-klingon"}, nil)
	defer bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

// ──────────────────────────────────────────────────────────────────────────────
// Proxy hacia la plataforma
// ──────────────────────────────────────────────────────────────────────────────

func TestPortal_ProxyReenviaConBearerYSede(t *testing.T) {
	var gotAuth, gotBranch, gotPath string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotBranch = r.Header.Get("X-Branch-ID")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	defer backend.Close()

	identity := &stubIdentity{
		user:  entity.User{ID: "u-1", Role: entity.RoleDoctor},
		perms: []string{"patients.view"},
	}
	branches := &stubBranches{list: []entity.Branch{
		{ID: "b-1", Name: "Sede Norte"},
		{ID: "b-2", Name: "Sede Sur"},
	}}
	p := newPortalApp(t, portalOpts{identity: identity, branches: branches, backend: backend.URL})
	p.login(t)

	resp := p.do(http.MethodPut, "/api/branches/selected", map[string]string{"id": "b-2"}, nil)
	resp.Body.Close()

	resp = p.do(http.MethodGet, "/api/platform/patients/list", nil, nil)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Bearer tok-backend", gotAuth, "el proxy inyecta el token de la sesión")
	assert.Equal(t, "b-2", gotBranch, "la sede activa viaja como header")
	assert.Equal(t, "/patients/list", gotPath, "se recorta el prefijo /api/platform")

	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"items":[]}`, string(body), "el cuerpo pasa intacto")
}

func TestPortal_ProxySinSedeActivaNoMandaHeader(t *testing.T) {
	var gotBranch string
	sawBranch := false
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBranch = r.Header.Get("X-Branch-ID")
		_, sawBranch = r.Header["X-Branch-Id"]
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	identity := &stubIdentity{
		user:  entity.User{ID: "u-1", Role: entity.RoleDoctor},
		perms: []string{"patients.view"},
	}
	p := newPortalApp(t, portalOpts{identity: identity, backend: backend.URL})
	p.login(t)

	resp := p.do(http.MethodGet, "/api/platform/patients/list", nil, nil)
	defer resp.Body.Close()

	assert.Empty(t, gotBranch, "con la selección en 'todas' no se acota la consulta")
	assert.False(t, sawBranch)
}

func TestPortal_ProxyBackendCaido(t *testing.T) {
	identity := &stubIdentity{
		user:  entity.User{ID: "u-1", Role: entity.RoleDoctor},
		perms: []string{"patients.view"},
	}
	p := newPortalApp(t, portalOpts{identity: identity}) // backend inalcanzable
	p.login(t)

	resp := p.do(http.MethodGet, "/api/platform/patients/list", nil, nil)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "PLATFORM_UNAVAILABLE")
}
