package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound           = errors.New("recurso no encontrado")
	ErrInvalidInput       = errors.New("entrada inválida")
	ErrUnauthorized       = errors.New("no autorizado")
	ErrInvalidCredentials = errors.New("credenciales inválidas")
	ErrForbidden          = errors.New("acceso denegado")
	ErrNoSession          = errors.New("no hay sesión activa")
	ErrSessionExpired     = errors.New("la sesión expiró por inactividad")
	ErrStoreUnavailable   = errors.New("almacén de credenciales no disponible")
	ErrUnknownBranch      = errors.New("la sede no pertenece a la organización")
	ErrUnsupportedLocale  = errors.New("idioma no soportado")
)
