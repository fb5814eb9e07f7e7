package platformapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medisuite/portal-api/internal/domain"
	"github.com/medisuite/portal-api/internal/infrastructure/platformapi"
)

func newAuthClient(t *testing.T, handler http.HandlerFunc) *platformapi.AuthClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return platformapi.NewAuthClient(platformapi.NewClient(srv.URL, 5*time.Second))
}

func TestAuthClient_LoginExitoso(t *testing.T) {
	client := newAuthClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/auth/login", r.URL.Path)

		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "ana@clinica.co", in["email"])
		assert.Equal(t, "org-1", in["organization_id"])

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"token":       "tok-123",
			"id":          "u-1",
			"email":       "ana@clinica.co",
			"role":        "doctor",
			"name":        "Ana",
			"permissions": []string{"patients.view", "appointments.view"},
		})
	})

	result, err := client.Login(context.Background(), "ana@clinica.co", "secreta", "org-1")
	require.NoError(t, err)

	assert.Equal(t, "tok-123", result.Token)
	assert.Equal(t, "u-1", result.User.ID)
	assert.Equal(t, "org-1", result.User.OrganizationID)
	assert.Equal(t, "doctor", result.User.Role)
	assert.ElementsMatch(t, []string{"patients.view", "appointments.view"}, result.Permissions)
}

func TestAuthClient_CredencialesInvalidas(t *testing.T) {
	client := newAuthClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"code": "UNAUTHORIZED", "message": "credenciales inválidas"})
	})

	_, err := client.Login(context.Background(), "ana@clinica.co", "mala", "org-1")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials,
		"un 401 del backend debe mapear al sentinel para el formulario")
}

func TestAuthClient_ErrorDeServidor(t *testing.T) {
	client := newAuthClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.Login(context.Background(), "a@b.co", "x", "org-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrInvalidCredentials,
		"un 500 no debe confundirse con credenciales inválidas")
}

func TestAuthClient_LogoutEnviaBearer(t *testing.T) {
	var gotAuth string
	client := newAuthClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "ok"})
	})

	require.NoError(t, client.Logout(context.Background(), "tok-123"))
	assert.Equal(t, "Bearer tok-123", gotAuth)
}

func TestAuthClient_Permissions(t *testing.T) {
	client := newAuthClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/permissions", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"permissions": []string{"billing.view"},
		})
	})

	perms, err := client.Permissions(context.Background(), "tok-123")
	require.NoError(t, err)
	assert.Equal(t, []string{"billing.view"}, perms)
}

func TestBranchClient_Branches(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/branches", r.URL.Path)
		require.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode([]map[string]interface{}{
			{"id": "b-1", "name": "Sede Norte", "code": "NOR", "is_main": true},
		})
	}))
	t.Cleanup(srv.Close)

	client := platformapi.NewBranchClient(platformapi.NewClient(srv.URL, 5*time.Second))
	branches, err := client.Branches(context.Background(), "tok-123")
	require.NoError(t, err)
	require.Len(t, branches, 1)
	assert.Equal(t, "b-1", branches[0].ID)
	assert.True(t, branches[0].IsMain)
}
