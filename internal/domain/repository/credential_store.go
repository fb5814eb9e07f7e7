package repository

import "context"

// Claves que persiste el portal por sesión. El valor siempre es un string:
// el token tal cual, y user/permissions serializados como JSON.
const (
	KeyToken       = "token"
	KeyUser        = "user"
	KeyPermissions = "permissions"
)

// CredentialStore define el puerto de persistencia de credenciales por sesión
// (DIP). Es el único recurso durable compartido del núcleo de sesión: solo el
// AuthContext escribe en él.
//
// Contrato:
//   - Get devuelve ("", nil) si la clave no existe; error solo ante fallos de
//     infraestructura. Quien hidrata trata ambos casos como "sin sesión".
//   - Remove es idempotente: borrar una clave inexistente no es error.
type CredentialStore interface {
	Get(ctx context.Context, sessionID, key string) (string, error)
	Set(ctx context.Context, sessionID, key, value string) error
	Remove(ctx context.Context, sessionID, key string) error
	// RemoveAll elimina todas las claves de la sesión (logout).
	RemoveAll(ctx context.Context, sessionID string) error
}
