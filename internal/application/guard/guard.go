// Package guard decide, a partir del snapshot de sesión y del requisito de
// permisos de una ruta, si el contenido protegido se entrega, se niega o se
// redirige. Es el único punto de autorización: las páginas no reimplementan
// chequeos propios.
package guard

import (
	"github.com/medisuite/portal-api/internal/application/session"
	"github.com/medisuite/portal-api/internal/domain/permission"
)

// Rutas de navegación del portal.
const (
	// LoginRoute destino de la navegación cuando no hay sesión.
	LoginRoute = "/login"
	// HomeRoute landing autenticada por defecto.
	HomeRoute = "/dashboard"
)

// State estado de la guarda para un snapshot y un requisito dados.
type State int

const (
	// StateLoading la sesión aún hidrata; la decisión queda diferida.
	StateLoading State = iota
	// StateUnauthenticated sin usuario: navegar al login.
	StateUnauthenticated
	// StateForbidden usuario presente pero sin ninguno de los permisos requeridos.
	StateForbidden
	// StateAuthorized el contenido protegido se entrega.
	StateAuthorized
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateForbidden:
		return "forbidden"
	case StateAuthorized:
		return "authorized"
	default:
		return "unknown"
	}
}

// Decision resultado de evaluar la guarda.
//
// RedirectTo solo se llena en el estado unauthenticated. El estado forbidden
// niega en el sitio y NO redirige: un redirect al landing puede ser a su vez
// prohibido para usuarios de permisos estrechos y entrar en bucle. Evaluate
// es pura, así que re-evaluar el mismo snapshot produce siempre la misma
// navegación (la redirección es idempotente entre renders).
type Decision struct {
	State      State
	RedirectTo string
}

// Evaluate aplica la máquina de estados de la guarda:
// loading → unauthenticated → forbidden → authorized.
// required usa semántica ANY; vacío significa "solo exige sesión".
func Evaluate(snap session.Snapshot, required []string) Decision {
	if snap.Loading {
		// Nunca decidir con la hidratación en curso: ni autenticado ni no
		// autenticado por defecto.
		return Decision{State: StateLoading}
	}
	if !snap.Authenticated() {
		return Decision{State: StateUnauthenticated, RedirectTo: LoginRoute}
	}
	if !permission.HasAny(snap.Permissions, required) {
		return Decision{State: StateForbidden}
	}
	return Decision{State: StateAuthorized}
}
