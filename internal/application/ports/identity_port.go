package ports

import (
	"context"

	"github.com/medisuite/portal-api/internal/domain/entity"
)

// LoginResult respuesta del proveedor de identidad tras un login exitoso.
// El token es opaco para el portal: se guarda y se reenvía, nunca se interpreta.
type LoginResult struct {
	Token       string
	User        entity.User
	Permissions []string
}

// IdentityService define el puerto de salida hacia el servicio de identidad
// remoto. Cualquier adaptador (HTTP real, mock de tests) implementa este
// contrato; aplicación solo conoce la interfaz (DIP).
type IdentityService interface {
	// Login autentica email/password dentro de una organización.
	// Devuelve domain.ErrInvalidCredentials cuando el backend rechaza las
	// credenciales, para que el formulario pueda distinguirlo de un fallo de red.
	Login(ctx context.Context, email, password, organizationID string) (*LoginResult, error)
	// Logout invalida el token en el backend. Es best-effort: el teardown
	// local procede aunque esta llamada falle.
	Logout(ctx context.Context, token string) error
	// Permissions relee la lista de permisos del token actual
	// (refresh explícito; el cliente nunca muta permisos uno a uno).
	Permissions(ctx context.Context, token string) ([]string, error)
}

// BranchService define el puerto de salida hacia el servicio de sedes.
type BranchService interface {
	// Branches devuelve las sedes de la organización del token.
	// Una organización sin sedes es una configuración normal, no un error.
	Branches(ctx context.Context, token string) ([]entity.Branch, error)
}
