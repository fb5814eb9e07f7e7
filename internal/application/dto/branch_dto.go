package dto

// BranchResponse proyección de una sede.
type BranchResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Code   string `json:"code"`
	IsMain bool   `json:"is_main"`
}

// BranchListResponse sedes de la sesión y selección activa.
// Selected puede ser el centinela "all" (todas las sedes).
type BranchListResponse struct {
	Branches    []BranchResponse `json:"branches"`
	Selected    string           `json:"selected"`
	HasBranches bool             `json:"has_branches"`
}

// SelectBranchRequest entrada para cambiar la sede activa.
type SelectBranchRequest struct {
	ID string `json:"id" validate:"required"`
}
