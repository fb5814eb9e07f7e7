package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medisuite/portal-api/internal/domain/repository"
)

var _ repository.CredentialStore = (*CredentialRepo)(nil)

// CredentialRepo implementación del puerto CredentialStore sobre PostgreSQL.
// Pensado para despliegues con varias réplicas del portal, donde el backend
// file no alcanza porque la sesión puede hidratar en cualquier réplica.
//
// Esquema esperado:
//
//	CREATE TABLE session_credentials (
//	    session_id TEXT NOT NULL,
//	    key        TEXT NOT NULL,
//	    value      TEXT NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL,
//	    PRIMARY KEY (session_id, key)
//	);
type CredentialRepo struct {
	pool *pgxpool.Pool
}

// NewCredentialRepository construye el adaptador de persistencia de credenciales.
func NewCredentialRepository(pool *pgxpool.Pool) *CredentialRepo {
	return &CredentialRepo{pool: pool}
}

// Get devuelve el valor de la clave, o ("", nil) si no existe.
func (r *CredentialRepo) Get(ctx context.Context, sessionID, key string) (string, error) {
	query := `
		SELECT value FROM session_credentials
		WHERE session_id = $1 AND key = $2`
	var value string
	err := r.pool.QueryRow(ctx, query, sessionID, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("get credential: %w", err)
	}
	return value, nil
}

// Set escribe o reemplaza la clave (upsert).
func (r *CredentialRepo) Set(ctx context.Context, sessionID, key, value string) error {
	query := `
		INSERT INTO session_credentials (session_id, key, value, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id, key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
	_, err := r.pool.Exec(ctx, query, sessionID, key, value, time.Now())
	if err != nil {
		return fmt.Errorf("set credential: %w", err)
	}
	return nil
}

// Remove borra la clave. Idempotente: borrar lo inexistente no es error.
func (r *CredentialRepo) Remove(ctx context.Context, sessionID, key string) error {
	query := `DELETE FROM session_credentials WHERE session_id = $1 AND key = $2`
	_, err := r.pool.Exec(ctx, query, sessionID, key)
	if err != nil {
		return fmt.Errorf("remove credential: %w", err)
	}
	return nil
}

// RemoveAll elimina todas las claves de la sesión. Idempotente.
func (r *CredentialRepo) RemoveAll(ctx context.Context, sessionID string) error {
	query := `DELETE FROM session_credentials WHERE session_id = $1`
	_, err := r.pool.Exec(ctx, query, sessionID)
	if err != nil {
		return fmt.Errorf("remove credentials: %w", err)
	}
	return nil
}
