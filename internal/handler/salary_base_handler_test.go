package handler

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yishan1331/student-affairs-management/internal/dto"
	"github.com/yishan1331/student-affairs-management/internal/middleware"
	"github.com/yishan1331/student-affairs-management/internal/models"
	appErrors "github.com/yishan1331/student-affairs-management/pkg/errors"
)

type salaryBaseServiceMock struct {
	lastFilter models.SalaryBaseFilter
	lastReq    dto.SalaryBaseRequest
	deleteErr  error
}

func (m *salaryBaseServiceMock) List(ctx context.Context, filter models.SalaryBaseFilter) ([]models.SalaryBase, *models.Pagination, error) {
	m.lastFilter = filter
	return []models.SalaryBase{}, &models.Pagination{Page: 1, PageSize: 20}, nil
}

func (m *salaryBaseServiceMock) Get(ctx context.Context, id int64) (*models.SalaryBase, error) {
	return &models.SalaryBase{ID: id}, nil
}

func (m *salaryBaseServiceMock) Create(ctx context.Context, req dto.SalaryBaseRequest) (*models.SalaryBase, error) {
	m.lastReq = req
	return &models.SalaryBase{ID: 1, Name: req.Name}, nil
}

func (m *salaryBaseServiceMock) Update(ctx context.Context, id int64, req dto.SalaryBaseRequest) (*models.SalaryBase, error) {
	m.lastReq = req
	return &models.SalaryBase{ID: id, Name: req.Name}, nil
}

func (m *salaryBaseServiceMock) Delete(ctx context.Context, id int64) error {
	return m.deleteErr
}

func newSalaryBaseContext(method, target, body string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})
	return c, w
}

func TestSalaryBaseHandlerList(t *testing.T) {
	mockSvc := &salaryBaseServiceMock{}
	handler := NewSalaryBaseHandler(mockSvc)

	c, w := newSalaryBaseContext(http.MethodGet, "/salary-bases?school_id=4&active=true", "")
	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(4), *mockSvc.lastFilter.SchoolID)
	assert.True(t, *mockSvc.lastFilter.Active)
}

func TestSalaryBaseHandlerCreateParsesDecimal(t *testing.T) {
	mockSvc := &salaryBaseServiceMock{}
	handler := NewSalaryBaseHandler(mockSvc)

	c, w := newSalaryBaseContext(http.MethodPost, "/salary-bases", `{"name":"Small","hourly_rate":"650.50","min_students":1,"max_students":5,"school_ids":[1,2]}`)
	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, mockSvc.lastReq.HourlyRate)
	assert.Equal(t, "650.5", mockSvc.lastReq.HourlyRate.String())
	assert.Equal(t, []int64{1, 2}, mockSvc.lastReq.SchoolIDs)

	c, w = newSalaryBaseContext(http.MethodPost, "/salary-bases", `{"name":"Small","hourly_rate":"abc"}`)
	handler.Create(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSalaryBaseHandlerUpdateAndDelete(t *testing.T) {
	mockSvc := &salaryBaseServiceMock{}
	handler := NewSalaryBaseHandler(mockSvc)

	c, w := newSalaryBaseContext(http.MethodPut, "/salary-bases/3", `{"name":"Flat","hourly_rate":500,"school_ids":[1]}`)
	c.Params = gin.Params{{Key: "id", Value: "3"}}
	handler.Update(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "500", mockSvc.lastReq.HourlyRate.String())

	mockSvc.deleteErr = appErrors.Clone(appErrors.ErrConflict, "salary base is referenced by course sessions")
	c, w = newSalaryBaseContext(http.MethodDelete, "/salary-bases/3", "")
	c.Params = gin.Params{{Key: "id", Value: "3"}}
	handler.Delete(c)
	assert.Equal(t, http.StatusConflict, w.Code)

	mockSvc.deleteErr = errors.New("db down")
	c, w = newSalaryBaseContext(http.MethodDelete, "/salary-bases/3", "")
	c.Params = gin.Params{{Key: "id", Value: "3"}}
	handler.Delete(c)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	c, w = newSalaryBaseContext(http.MethodDelete, "/salary-bases/0", "")
	c.Params = gin.Params{{Key: "id", Value: "0"}}
	handler.Delete(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
