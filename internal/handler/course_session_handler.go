package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yishan1331/student-affairs-management/internal/dto"
	"github.com/yishan1331/student-affairs-management/internal/middleware"
	"github.com/yishan1331/student-affairs-management/internal/models"
	"github.com/yishan1331/student-affairs-management/internal/service"
	appErrors "github.com/yishan1331/student-affairs-management/pkg/errors"
	"github.com/yishan1331/student-affairs-management/pkg/jobs"
	"github.com/yishan1331/student-affairs-management/pkg/response"
)

type courseSessionService interface {
	List(ctx context.Context, filter models.CourseSessionFilter) ([]models.CourseSessionDetail, *models.Pagination, error)
	Get(ctx context.Context, id int64) (*models.CourseSessionDetail, error)
	Create(ctx context.Context, req dto.CreateCourseSessionRequest) (*models.CourseSessionDetail, error)
	Update(ctx context.Context, id int64, req dto.UpdateCourseSessionRequest) (*models.CourseSessionDetail, error)
	Delete(ctx context.Context, id int64) error
	BatchGenerate(ctx context.Context, req dto.BatchGenerateRequest) (*dto.BatchGenerateResponse, error)
	RecalculateAll(ctx context.Context) (*dto.RecalculateResponse, error)
}

type salarySummaryService interface {
	Summary(ctx context.Context, query dto.SalarySummaryQuery) ([]dto.SchoolSalarySummary, bool, error)
	Export(ctx context.Context, query dto.SalarySummaryQuery, format string) (*service.SummaryExport, error)
}

type recalculationScheduler interface {
	Schedule(ctx context.Context, requestedBy string) (*dto.RecalculateJobResponse, error)
	Status(ctx context.Context, jobID string) (*jobs.Status, error)
}

// CourseSessionHandler exposes course session and salary endpoints.
type CourseSessionHandler struct {
	sessions  courseSessionService
	summaries salarySummaryService
	scheduler recalculationScheduler
}

// NewCourseSessionHandler builds a new handler. scheduler may be nil, which disables async sweeps.
func NewCourseSessionHandler(sessions courseSessionService, summaries salarySummaryService, scheduler recalculationScheduler) *CourseSessionHandler {
	return &CourseSessionHandler{sessions: sessions, summaries: summaries, scheduler: scheduler}
}

// List godoc
// @Summary List course sessions
// @Tags Course Sessions
// @Produce json
// @Param course_id query int false "Course ID"
// @Param school_id query int false "School ID"
// @Param start_date query string false "From date (YYYY-MM-DD)"
// @Param end_date query string false "To date (YYYY-MM-DD)"
// @Param is_cancelled query bool false "Cancellation state"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Param sort query string false "date|created_at|updated_at|actual_student_count|salary_amount"
// @Param order query string false "asc|desc"
// @Success 200 {object} response.Envelope
// @Router /course-sessions [get]
func (h *CourseSessionHandler) List(c *gin.Context) {
	var filter models.CourseSessionFilter
	var err error
	if filter.CourseID, err = parseInt64Query(c, "course_id"); err != nil {
		response.Error(c, err)
		return
	}
	if filter.SchoolID, err = parseInt64Query(c, "school_id"); err != nil {
		response.Error(c, err)
		return
	}
	if filter.StartDate, err = parseDateQuery(c, "start_date"); err != nil {
		response.Error(c, err)
		return
	}
	if filter.EndDate, err = parseDateQuery(c, "end_date"); err != nil {
		response.Error(c, err)
		return
	}
	if filter.IsCancelled, err = parseBoolQuery(c, "is_cancelled"); err != nil {
		response.Error(c, err)
		return
	}
	filter.Page = parseQueryInt(c, "page", 1)
	filter.PageSize = parseQueryInt(c, "limit", 20)
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	sessions, pagination, err := h.sessions.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, pagination)
}

// Get godoc
// @Summary Get a course session
// @Tags Course Sessions
// @Produce json
// @Param id path int true "Session ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /course-sessions/{id} [get]
func (h *CourseSessionHandler) Get(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	session, err := h.sessions.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Create godoc
// @Summary Create a course session
// @Description Active sessions are priced from the school's salary bases at creation time.
// @Tags Course Sessions
// @Accept json
// @Produce json
// @Param payload body dto.CreateCourseSessionRequest true "Session payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /course-sessions [post]
func (h *CourseSessionHandler) Create(c *gin.Context) {
	var req dto.CreateCourseSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Validation(err, "invalid course session payload"))
		return
	}
	req.ModifierID = actorID(c, req.ModifierID)

	session, err := h.sessions.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}

// Update godoc
// @Summary Update a course session
// @Description Partial update. Salary is recomputed when attendance or course changes, or the session is reactivated.
// @Tags Course Sessions
// @Accept json
// @Produce json
// @Param id path int true "Session ID"
// @Param payload body dto.UpdateCourseSessionRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /course-sessions/{id} [put]
func (h *CourseSessionHandler) Update(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.UpdateCourseSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Validation(err, "invalid course session payload"))
		return
	}
	req.ModifierID = actorID(c, req.ModifierID)

	session, err := h.sessions.Update(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Delete godoc
// @Summary Delete a course session
// @Tags Course Sessions
// @Param id path int true "Session ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /course-sessions/{id} [delete]
func (h *CourseSessionHandler) Delete(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.sessions.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// BatchGenerate godoc
// @Summary Generate sessions from course schedules
// @Description Supply either start_date and end_date or year and month. Dates that already have a session are skipped.
// @Tags Course Sessions
// @Accept json
// @Produce json
// @Param payload body dto.BatchGenerateRequest true "Batch payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /course-sessions/batch [post]
func (h *CourseSessionHandler) BatchGenerate(c *gin.Context) {
	var req dto.BatchGenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Validation(err, "invalid batch payload"))
		return
	}
	req.ModifierID = actorID(c, req.ModifierID)

	result, err := h.sessions.BatchGenerate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Recalculate godoc
// @Summary Recalculate salaries of all active sessions
// @Description With async=true the sweep is queued and a job id is returned.
// @Tags Course Sessions
// @Produce json
// @Param async query bool false "Run in background"
// @Success 200 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Router /course-sessions/recalculate [post]
func (h *CourseSessionHandler) Recalculate(c *gin.Context) {
	async, err := parseBoolQuery(c, "async")
	if err != nil {
		response.Error(c, err)
		return
	}
	if async != nil && *async {
		if h.scheduler == nil {
			response.Error(c, appErrors.Clone(appErrors.ErrInvalidArgument, "background recalculation is not available"))
			return
		}
		requestedBy := ""
		if claims := claimsFromContext(c); claims != nil {
			requestedBy = claims.UserID
		}
		ack, err := h.scheduler.Schedule(c.Request.Context(), requestedBy)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Accepted(c, ack)
		return
	}

	result, err := h.sessions.RecalculateAll(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// RecalculationStatus godoc
// @Summary Get a background recalculation job
// @Tags Course Sessions
// @Produce json
// @Param job_id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /course-sessions/recalculate/{job_id} [get]
func (h *CourseSessionHandler) RecalculationStatus(c *gin.Context) {
	if h.scheduler == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "recalculation job not found"))
		return
	}
	status, err := h.scheduler.Status(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// SalarySummary godoc
// @Summary Salary totals per school and course
// @Tags Course Sessions
// @Produce json
// @Param start_date query string true "From date (YYYY-MM-DD)"
// @Param end_date query string true "To date (YYYY-MM-DD)"
// @Param school_id query int false "School ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /course-sessions/salary-summary [get]
func (h *CourseSessionHandler) SalarySummary(c *gin.Context) {
	query, err := bindSummaryQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	summary, cacheHit, err := h.summaries.Summary(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, summary, nil, middleware.ExtractMeta(c))
}

// ExportSalarySummary godoc
// @Summary Download the salary summary
// @Tags Course Sessions
// @Produce text/csv
// @Produce application/pdf
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param start_date query string true "From date (YYYY-MM-DD)"
// @Param end_date query string true "To date (YYYY-MM-DD)"
// @Param school_id query int false "School ID"
// @Param format query string false "csv|pdf|xlsx"
// @Success 200 {file} file
// @Router /course-sessions/salary-summary/export [get]
func (h *CourseSessionHandler) ExportSalarySummary(c *gin.Context) {
	query, err := bindSummaryQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.summaries.Export(c.Request.Context(), query, c.DefaultQuery("format", service.SummaryFormatCSV))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Filename, file.ContentType, file.Content)
}

func bindSummaryQuery(c *gin.Context) (dto.SalarySummaryQuery, error) {
	query := dto.SalarySummaryQuery{
		StartDate: c.Query("start_date"),
		EndDate:   c.Query("end_date"),
	}
	schoolID, err := parseInt64Query(c, "school_id")
	if err != nil {
		return query, err
	}
	query.SchoolID = schoolID
	return query, nil
}
