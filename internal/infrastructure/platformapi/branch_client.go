package platformapi

import (
	"context"
	"net/http"

	"github.com/medisuite/portal-api/internal/application/ports"
	"github.com/medisuite/portal-api/internal/domain/entity"
)

// Verificar en tiempo de compilación que BranchClient implementa BranchService.
var _ ports.BranchService = (*BranchClient)(nil)

// BranchClient adaptador del servicio de sedes.
type BranchClient struct {
	*Client
}

// NewBranchClient construye el adaptador sobre la base compartida.
func NewBranchClient(base *Client) *BranchClient {
	return &BranchClient{Client: base}
}

type branchResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Code   string `json:"code"`
	IsMain bool   `json:"is_main"`
}

// Branches lista las sedes de la organización del token (GET /branches).
// El backend señala "organización sin sedes" con error o lista vacía; quien
// consume (BranchContext) degrada cualquiera de los dos a lista vacía.
func (c *BranchClient) Branches(ctx context.Context, token string) ([]entity.Branch, error) {
	var out []branchResponse
	status, apiErr, err := c.doJSON(ctx, http.MethodGet, "/branches", token, nil, &out)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, statusError("branches", status, apiErr)
	}

	branches := make([]entity.Branch, 0, len(out))
	for _, b := range out {
		branches = append(branches, entity.Branch{
			ID:     b.ID,
			Name:   b.Name,
			Code:   b.Code,
			IsMain: b.IsMain,
		})
	}
	return branches, nil
}
