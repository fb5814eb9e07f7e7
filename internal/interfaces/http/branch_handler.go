package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/medisuite/portal-api/internal/application/dto"
	"github.com/medisuite/portal-api/internal/domain"
)

// BranchHandler expone las sedes de la sesión y la selección activa.
type BranchHandler struct{}

// NewBranchHandler construye el handler de sedes.
func NewBranchHandler() *BranchHandler {
	return &BranchHandler{}
}

// List godoc
// @Summary      Sedes de la organización y selección activa
// @Tags         branches
// @Produce      json
// @Success      200  {object}  dto.BranchListResponse
// @Failure      401  {object}  dto.ErrorResponse
// @Router       /api/branches [get]
func (h *BranchHandler) List(c *fiber.Ctx) error {
	p := PipelineFromCtx(c)
	// Se responde con la carga ya resuelta; una organización sin sedes
	// devuelve lista vacía, nunca error.
	p.Branches.Wait()

	list := p.Branches.Branches()
	out := dto.BranchListResponse{
		Branches:    make([]dto.BranchResponse, 0, len(list)),
		Selected:    p.Branches.Selected(),
		HasBranches: p.Branches.HasBranches(),
	}
	for _, b := range list {
		out.Branches = append(out.Branches, dto.BranchResponse{
			ID:     b.ID,
			Name:   b.Name,
			Code:   b.Code,
			IsMain: b.IsMain,
		})
	}
	return c.JSON(out)
}

// Select godoc
// @Summary      Cambiar la sede activa
// @Tags         branches
// @Accept       json
// @Produce      json
// @Param        body  body  dto.SelectBranchRequest  true  "id de sede o 'all'"
// @Success      200   {object}  dto.BranchListResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/branches/selected [put]
func (h *BranchHandler) Select(c *fiber.Ctx) error {
	var in dto.SelectBranchRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorBody("INVALID_BODY", "cuerpo inválido"))
	}
	if in.ID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(errorBody("VALIDATION", "id es requerido"))
	}

	p := PipelineFromCtx(c)
	p.Branches.Wait()
	if err := p.Branches.Select(in.ID); err != nil {
		if errors.Is(err, domain.ErrUnknownBranch) {
			return c.Status(fiber.StatusBadRequest).JSON(errorBody("UNKNOWN_BRANCH", "la sede no pertenece a la organización"))
		}
		return c.Status(fiber.StatusInternalServerError).JSON(errorBody("INTERNAL", err.Error()))
	}
	return h.List(c)
}
