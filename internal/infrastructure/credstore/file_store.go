// Package credstore implementa el puerto CredentialStore.
// El backend file guarda un archivo por sesión bajo un directorio 0700,
// cifrado en reposo con AES-256-GCM y clave derivada por scrypt del secreto
// de la aplicación.
package credstore

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/scrypt"

	"github.com/medisuite/portal-api/internal/domain/repository"
)

var _ repository.CredentialStore = (*FileStore)(nil)

const saltFile = "salt"

// FileStore almacén de credenciales sobre el sistema de archivos.
type FileStore struct {
	dir string
	key []byte // clave AES-256 derivada del secreto

	mu sync.Mutex
}

// NewFileStore prepara el directorio (0700) y deriva la clave de cifrado.
// El salt de scrypt se genera una vez y persiste junto a los archivos; perderlo
// invalida las credenciales guardadas, que simplemente se re-crearán al
// siguiente login.
func NewFileStore(dir, secret string) (*FileStore, error) {
	if secret == "" {
		return nil, fmt.Errorf("credstore: secreto de cifrado vacío")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("credstore: crear directorio: %w", err)
	}

	salt, err := loadOrCreateSalt(filepath.Join(dir, saltFile))
	if err != nil {
		return nil, err
	}
	key, err := scrypt.Key([]byte(secret), salt, 1<<15, 8, 1, 32)
	if err != nil {
		return nil, fmt.Errorf("credstore: derivar clave: %w", err)
	}

	return &FileStore{dir: dir, key: key}, nil
}

func loadOrCreateSalt(path string) ([]byte, error) {
	salt, err := os.ReadFile(path)
	if err == nil && len(salt) == 16 {
		return salt, nil
	}
	salt = make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("credstore: generar salt: %w", err)
	}
	if err := os.WriteFile(path, salt, 0o600); err != nil {
		return nil, fmt.Errorf("credstore: escribir salt: %w", err)
	}
	return salt, nil
}

// Get devuelve el valor de la clave, o ("", nil) si no existe.
func (s *FileStore) Get(_ context.Context, sessionID, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.load(sessionID)
	if err != nil {
		return "", err
	}
	return record[key], nil
}

// Set escribe la clave (read-modify-write del archivo de la sesión).
func (s *FileStore) Set(_ context.Context, sessionID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.load(sessionID)
	if err != nil {
		// Un archivo ilegible no debe impedir guardar credenciales frescas.
		record = map[string]string{}
	}
	record[key] = value
	return s.save(sessionID, record)
}

// Remove borra la clave. Idempotente.
func (s *FileStore) Remove(_ context.Context, sessionID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.load(sessionID)
	if err != nil || len(record) == 0 {
		return nil
	}
	if _, ok := record[key]; !ok {
		return nil
	}
	delete(record, key)
	if len(record) == 0 {
		return s.removeFile(sessionID)
	}
	return s.save(sessionID, record)
}

// RemoveAll elimina el archivo completo de la sesión. Idempotente.
func (s *FileStore) RemoveAll(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeFile(sessionID)
}

func (s *FileStore) removeFile(sessionID string) error {
	err := os.Remove(s.path(sessionID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("credstore: eliminar credenciales: %w", err)
	}
	return nil
}

// path deriva el nombre de archivo del sessionID para que un id hostil nunca
// escape del directorio.
func (s *FileStore) path(sessionID string) string {
	sum := sha256.Sum256([]byte(sessionID))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:16])+".cred")
}

func (s *FileStore) load(sessionID string) (map[string]string, error) {
	raw, err := os.ReadFile(s.path(sessionID))
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("credstore: leer credenciales: %w", err)
	}

	plain, err := s.decrypt(raw)
	if err != nil {
		return nil, fmt.Errorf("credstore: descifrar credenciales: %w", err)
	}
	var record map[string]string
	if err := json.Unmarshal(plain, &record); err != nil {
		return nil, fmt.Errorf("credstore: credenciales corruptas: %w", err)
	}
	return record, nil
}

func (s *FileStore) save(sessionID string, record map[string]string) error {
	plain, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("credstore: serializar credenciales: %w", err)
	}
	sealed, err := s.encrypt(plain)
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path(sessionID), sealed, 0o600); err != nil {
		return fmt.Errorf("credstore: escribir credenciales: %w", err)
	}
	return nil
}

// encrypt sella el JSON como nonce||ciphertext con AES-256-GCM.
func (s *FileStore) encrypt(plain []byte) ([]byte, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, fmt.Errorf("credstore: cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("credstore: gcm: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("credstore: nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, plain, nil), nil
}

func (s *FileStore) decrypt(sealed []byte) ([]byte, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, fmt.Errorf("archivo truncado")
	}
	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}
