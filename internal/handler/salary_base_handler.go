package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yishan1331/student-affairs-management/internal/dto"
	"github.com/yishan1331/student-affairs-management/internal/models"
	appErrors "github.com/yishan1331/student-affairs-management/pkg/errors"
	"github.com/yishan1331/student-affairs-management/pkg/response"
)

type salaryBaseService interface {
	List(ctx context.Context, filter models.SalaryBaseFilter) ([]models.SalaryBase, *models.Pagination, error)
	Get(ctx context.Context, id int64) (*models.SalaryBase, error)
	Create(ctx context.Context, req dto.SalaryBaseRequest) (*models.SalaryBase, error)
	Update(ctx context.Context, id int64, req dto.SalaryBaseRequest) (*models.SalaryBase, error)
	Delete(ctx context.Context, id int64) error
}

// SalaryBaseHandler exposes salary tier administration.
type SalaryBaseHandler struct {
	service salaryBaseService
}

// NewSalaryBaseHandler builds a new handler.
func NewSalaryBaseHandler(service salaryBaseService) *SalaryBaseHandler {
	return &SalaryBaseHandler{service: service}
}

// List godoc
// @Summary List salary bases
// @Tags Salary Bases
// @Produce json
// @Param school_id query int false "School ID"
// @Param active query bool false "Active state"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /salary-bases [get]
func (h *SalaryBaseHandler) List(c *gin.Context) {
	var filter models.SalaryBaseFilter
	var err error
	if filter.SchoolID, err = parseInt64Query(c, "school_id"); err != nil {
		response.Error(c, err)
		return
	}
	if filter.Active, err = parseBoolQuery(c, "active"); err != nil {
		response.Error(c, err)
		return
	}
	filter.Page = parseQueryInt(c, "page", 1)
	filter.PageSize = parseQueryInt(c, "limit", 20)

	tiers, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tiers, pagination)
}

// Get godoc
// @Summary Get a salary base
// @Tags Salary Bases
// @Produce json
// @Param id path int true "Salary base ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /salary-bases/{id} [get]
func (h *SalaryBaseHandler) Get(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	tier, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tier, nil)
}

// Create godoc
// @Summary Create a salary base
// @Tags Salary Bases
// @Accept json
// @Produce json
// @Param payload body dto.SalaryBaseRequest true "Salary base payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /salary-bases [post]
func (h *SalaryBaseHandler) Create(c *gin.Context) {
	var req dto.SalaryBaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Validation(err, "invalid salary base payload"))
		return
	}
	tier, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, tier)
}

// Update godoc
// @Summary Replace a salary base
// @Description Stored session salaries only change after a recalculation.
// @Tags Salary Bases
// @Accept json
// @Produce json
// @Param id path int true "Salary base ID"
// @Param payload body dto.SalaryBaseRequest true "Salary base payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /salary-bases/{id} [put]
func (h *SalaryBaseHandler) Update(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.SalaryBaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Validation(err, "invalid salary base payload"))
		return
	}
	tier, err := h.service.Update(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tier, nil)
}

// Delete godoc
// @Summary Delete a salary base
// @Tags Salary Bases
// @Param id path int true "Salary base ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /salary-bases/{id} [delete]
func (h *SalaryBaseHandler) Delete(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
