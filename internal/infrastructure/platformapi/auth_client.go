package platformapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/medisuite/portal-api/internal/application/ports"
	"github.com/medisuite/portal-api/internal/domain"
	"github.com/medisuite/portal-api/internal/domain/entity"
)

// Verificar en tiempo de compilación que AuthClient implementa IdentityService.
var _ ports.IdentityService = (*AuthClient)(nil)

// AuthClient adaptador del proveedor de identidad de la plataforma.
type AuthClient struct {
	*Client
}

// NewAuthClient construye el adaptador sobre la base compartida.
func NewAuthClient(base *Client) *AuthClient {
	return &AuthClient{Client: base}
}

type loginRequest struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	OrganizationID string `json:"organization_id"`
}

type loginResponse struct {
	Token       string   `json:"token"`
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Name        string   `json:"name"`
	Phone       string   `json:"phone"`
	Department  string   `json:"department"`
	Permissions []string `json:"permissions"`
}

// Login autentica contra POST /auth/login. Un 401/403 del backend se traduce
// al sentinel domain.ErrInvalidCredentials para que el formulario lo distinga
// de un fallo de red.
func (c *AuthClient) Login(ctx context.Context, email, password, organizationID string) (*ports.LoginResult, error) {
	var out loginResponse
	status, apiErr, err := c.doJSON(ctx, http.MethodPost, "/auth/login", "", loginRequest{
		Email:          email,
		Password:       password,
		OrganizationID: organizationID,
	}, &out)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return nil, domain.ErrInvalidCredentials
	}
	if status < 200 || status >= 300 {
		return nil, statusError("login", status, apiErr)
	}
	if out.Token == "" || out.ID == "" {
		return nil, fmt.Errorf("platformapi: login sin token o sin usuario")
	}

	return &ports.LoginResult{
		Token: out.Token,
		User: entity.User{
			ID:             out.ID,
			OrganizationID: organizationID,
			Email:          out.Email,
			Name:           out.Name,
			Role:           out.Role,
			Phone:          out.Phone,
			Department:     out.Department,
		},
		Permissions: out.Permissions,
	}, nil
}

// Logout invalida el token en POST /auth/logout.
func (c *AuthClient) Logout(ctx context.Context, token string) error {
	status, apiErr, err := c.doJSON(ctx, http.MethodPost, "/auth/logout", token, nil, nil)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return statusError("logout", status, apiErr)
	}
	return nil
}

type permissionsResponse struct {
	Permissions []string `json:"permissions"`
}

// Permissions relee la lista de permisos del token en GET /auth/permissions.
func (c *AuthClient) Permissions(ctx context.Context, token string) ([]string, error) {
	var out permissionsResponse
	status, apiErr, err := c.doJSON(ctx, http.MethodGet, "/auth/permissions", token, nil, &out)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		return nil, domain.ErrUnauthorized
	}
	if status < 200 || status >= 300 {
		return nil, statusError("permissions", status, apiErr)
	}
	return out.Permissions, nil
}

func statusError(op string, status int, apiErr *apiError) error {
	if apiErr != nil {
		return fmt.Errorf("platformapi: %s: status %d: %s (%s)", op, status, apiErr.Message, apiErr.Code)
	}
	return fmt.Errorf("platformapi: %s: status %d", op, status)
}
