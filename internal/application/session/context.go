// Package session implementa el núcleo de sesión del portal: el AuthContext
// (estado autenticado por sesión de navegador) y el SessionManager
// (temporizador de inactividad). Ninguno conoce HTTP ni Fiber; la capa de
// interfaces los consume a través de snapshots inmutables.
package session

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/medisuite/portal-api/internal/application/ports"
	"github.com/medisuite/portal-api/internal/domain/entity"
	"github.com/medisuite/portal-api/internal/domain/permission"
	"github.com/medisuite/portal-api/internal/domain/repository"
	"github.com/medisuite/portal-api/pkg/logger"
)

// Snapshot estado inmutable de la sesión en un instante dado.
// Invariante tras hidratar: User presente ⇔ Token presente.
type Snapshot struct {
	User        *entity.User
	Token       string
	Permissions permission.Set
	Loading     bool
}

// Authenticated informa si hay una identidad establecida.
func (s Snapshot) Authenticated() bool {
	return s.User != nil && s.Token != ""
}

// AuthContext dueño del estado de sesión: usuario, token y permisos.
// Se hidrata una sola vez desde el CredentialStore y es el único componente
// que escribe en él. Los interesados (BranchContext, SessionManager, capa
// HTTP) se suscriben a los cambios.
type AuthContext struct {
	sessionID string
	store     repository.CredentialStore
	identity  ports.IdentityService
	log       *logger.Logger

	// loginMu serializa logins concurrentes: gana el último en completar,
	// nunca se intercalan actualizaciones parciales de dos respuestas en vuelo.
	loginMu sync.Mutex

	mu      sync.Mutex
	user    *entity.User
	token   string
	perms   permission.Set
	loading bool

	hydrateOnce sync.Once

	subMu   sync.Mutex
	subs    map[int]func(Snapshot)
	nextSub int
}

// NewAuthContext construye el contexto de una sesión. Nace con Loading=true
// hasta que Hydrate complete (incluido el camino de fallo).
func NewAuthContext(sessionID string, store repository.CredentialStore, identity ports.IdentityService, log *logger.Logger) *AuthContext {
	return &AuthContext{
		sessionID: sessionID,
		store:     store,
		identity:  identity,
		log:       log.Component("session"),
		loading:   true,
		perms:     permission.NewSet(),
		subs:      make(map[int]func(Snapshot)),
	}
}

// SessionID identificador opaco de la sesión de navegador.
func (a *AuthContext) SessionID() string { return a.sessionID }

// Hydrate reconstruye la sesión desde el almacén de credenciales. Corre como
// máximo una vez; un registro corrupto o un almacén caído degradan a "sin
// sesión" (nunca a un usuario a medias) y Loading pasa a false exactamente
// una vez, también en el camino de fallo.
func (a *AuthContext) Hydrate(ctx context.Context) {
	a.hydrateOnce.Do(func() {
		user, token, perms, ok := a.readStored(ctx)

		a.mu.Lock()
		if ok {
			a.user = user
			a.token = token
			a.perms = perms
		} else {
			a.user = nil
			a.token = ""
			a.perms = permission.NewSet()
		}
		a.loading = false
		snap := a.snapshotLocked()
		a.mu.Unlock()

		a.notify(snap)
	})
}

// readStored lee y valida las tres claves. Devuelve ok=false ante cualquier
// anomalía: clave ausente, JSON corrupto o almacén no disponible.
func (a *AuthContext) readStored(ctx context.Context) (*entity.User, string, permission.Set, bool) {
	token, err := a.store.Get(ctx, a.sessionID, repository.KeyToken)
	if err != nil {
		a.log.Warn().Err(err).Msg("almacén de credenciales no disponible, se hidrata sin sesión")
		return nil, "", nil, false
	}
	if token == "" {
		return nil, "", nil, false
	}

	rawUser, err := a.store.Get(ctx, a.sessionID, repository.KeyUser)
	if err != nil || rawUser == "" {
		return nil, "", nil, false
	}
	var user entity.User
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil || user.ID == "" {
		// Registro corrupto: se descarta para no tropezar en cada arranque.
		a.log.Warn().Err(err).Str("session_id", a.sessionID).Msg("usuario almacenado corrupto, se descarta la sesión")
		_ = a.store.RemoveAll(ctx, a.sessionID)
		return nil, "", nil, false
	}

	perms := permission.NewSet()
	rawPerms, err := a.store.Get(ctx, a.sessionID, repository.KeyPermissions)
	if err == nil && rawPerms != "" {
		var list []string
		if err := json.Unmarshal([]byte(rawPerms), &list); err != nil {
			a.log.Warn().Err(err).Str("session_id", a.sessionID).Msg("permisos almacenados corruptos, se descarta la sesión")
			_ = a.store.RemoveAll(ctx, a.sessionID)
			return nil, "", nil, false
		}
		perms = permission.NewSet(list...)
	}

	return &user, token, perms, true
}

// Login autentica contra el proveedor de identidad y, si tiene éxito,
// persiste token+usuario+permisos y actualiza el estado en memoria.
// Ante fallo la sesión queda intacta y el error se devuelve al formulario.
func (a *AuthContext) Login(ctx context.Context, email, password, organizationID string) (Snapshot, error) {
	a.loginMu.Lock()
	defer a.loginMu.Unlock()

	a.mu.Lock()
	a.loading = true
	a.mu.Unlock()

	result, err := a.identity.Login(ctx, email, password, organizationID)
	if err != nil {
		a.mu.Lock()
		a.loading = false
		snap := a.snapshotLocked()
		a.mu.Unlock()
		a.notify(snap)
		return snap, err
	}

	a.persist(ctx, result)

	a.mu.Lock()
	user := result.User
	a.user = &user
	a.token = result.Token
	a.perms = permission.NewSet(result.Permissions...)
	a.loading = false
	snap := a.snapshotLocked()
	a.mu.Unlock()

	a.log.Info().Str("user_id", user.ID).Str("role", user.Role).Msg("login exitoso")
	a.notify(snap)
	return snap, nil
}

// persist guarda las credenciales. Best-effort: si el almacén falla la sesión
// sigue siendo válida en memoria, solo se pierde la rehidratación futura.
func (a *AuthContext) persist(ctx context.Context, result *ports.LoginResult) {
	rawUser, err := json.Marshal(result.User)
	if err != nil {
		a.log.Error().Err(err).Msg("serializar usuario para el almacén")
		return
	}
	rawPerms, err := json.Marshal(result.Permissions)
	if err != nil {
		a.log.Error().Err(err).Msg("serializar permisos para el almacén")
		return
	}
	if err := a.store.Set(ctx, a.sessionID, repository.KeyToken, result.Token); err != nil {
		a.log.Warn().Err(err).Msg("persistir token")
		return
	}
	if err := a.store.Set(ctx, a.sessionID, repository.KeyUser, string(rawUser)); err != nil {
		a.log.Warn().Err(err).Msg("persistir usuario")
	}
	if err := a.store.Set(ctx, a.sessionID, repository.KeyPermissions, string(rawPerms)); err != nil {
		a.log.Warn().Err(err).Msg("persistir permisos")
	}
}

// Logout desmonta la sesión: invalida el token en el backend (best-effort),
// limpia el almacén y el estado en memoria. Idempotente: llamarlo sin sesión
// activa deja el mismo estado vacío sin error.
func (a *AuthContext) Logout(ctx context.Context) {
	a.loginMu.Lock()
	defer a.loginMu.Unlock()

	a.mu.Lock()
	token := a.token
	a.user = nil
	a.token = ""
	a.perms = permission.NewSet()
	a.loading = false
	snap := a.snapshotLocked()
	a.mu.Unlock()

	if token != "" {
		if err := a.identity.Logout(ctx, token); err != nil {
			a.log.Warn().Err(err).Msg("logout remoto falló, se continúa con el teardown local")
		}
	}
	if err := a.store.RemoveAll(ctx, a.sessionID); err != nil {
		a.log.Warn().Err(err).Msg("limpiar almacén de credenciales")
	}

	a.notify(snap)
}

// RefreshPermissions relee la lista de permisos del token actual y la
// re-persiste. Es el único camino, junto con Login, que recalcula permisos.
// Toma loginMu igual que Login/Logout: un refresh nunca se intercala con el
// teardown y no puede re-poblar permisos sobre una sesión ya desmontada.
func (a *AuthContext) RefreshPermissions(ctx context.Context) error {
	a.loginMu.Lock()
	defer a.loginMu.Unlock()

	a.mu.Lock()
	token := a.token
	a.mu.Unlock()
	if token == "" {
		return nil
	}

	perms, err := a.identity.Permissions(ctx, token)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(perms)
	if err == nil {
		if err := a.store.Set(ctx, a.sessionID, repository.KeyPermissions, string(raw)); err != nil {
			a.log.Warn().Err(err).Msg("persistir permisos refrescados")
		}
	}

	a.mu.Lock()
	a.perms = permission.NewSet(perms...)
	snap := a.snapshotLocked()
	a.mu.Unlock()

	a.notify(snap)
	return nil
}

// HasPermission lectura pura sobre el conjunto actual. Nunca lanza; devuelve
// false con sesión vacía.
func (a *AuthContext) HasPermission(perm string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.perms.Has(perm)
}

// HasAnyPermission semántica ANY (la que usan las guardas de ruta).
func (a *AuthContext) HasAnyPermission(perms ...string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return permission.HasAny(a.perms, perms)
}

// HasAllPermissions semántica ALL.
func (a *AuthContext) HasAllPermissions(perms ...string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return permission.HasAll(a.perms, perms)
}

// Snapshot devuelve el estado actual como valor inmutable.
func (a *AuthContext) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

func (a *AuthContext) snapshotLocked() Snapshot {
	var user *entity.User
	if a.user != nil {
		u := *a.user
		user = &u
	}
	return Snapshot{
		User:        user,
		Token:       a.token,
		Permissions: permission.NewSet(a.perms.List()...),
		Loading:     a.loading,
	}
}

// Subscribe registra un observador de cambios de sesión. Devuelve la función
// para anular la suscripción. El callback recibe snapshots, nunca el estado
// interno, y se invoca fuera de los locks del contexto.
func (a *AuthContext) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	a.subMu.Lock()
	id := a.nextSub
	a.nextSub++
	a.subs[id] = fn
	a.subMu.Unlock()

	return func() {
		a.subMu.Lock()
		delete(a.subs, id)
		a.subMu.Unlock()
	}
}

func (a *AuthContext) notify(snap Snapshot) {
	a.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(a.subs))
	for _, fn := range a.subs {
		fns = append(fns, fn)
	}
	a.subMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}
