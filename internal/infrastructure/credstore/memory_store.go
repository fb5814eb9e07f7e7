package credstore

import (
	"context"
	"sync"

	"github.com/medisuite/portal-api/internal/domain/repository"
)

var _ repository.CredentialStore = (*MemoryStore)(nil)

// MemoryStore almacén volátil: para tests y para entornos efímeros donde no
// interesa que las sesiones sobrevivan al proceso.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]map[string]string
}

// NewMemoryStore construye el almacén en memoria.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]map[string]string)}
}

// Get devuelve el valor, o ("", nil) si no existe.
func (s *MemoryStore) Get(_ context.Context, sessionID, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[sessionID][key], nil
}

// Set escribe la clave.
func (s *MemoryStore) Set(_ context.Context, sessionID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.data[sessionID]
	if !ok {
		record = make(map[string]string)
		s.data[sessionID] = record
	}
	record[key] = value
	return nil
}

// Remove borra la clave. Idempotente.
func (s *MemoryStore) Remove(_ context.Context, sessionID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data[sessionID], key)
	return nil
}

// RemoveAll elimina la sesión completa. Idempotente.
func (s *MemoryStore) RemoveAll(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}
