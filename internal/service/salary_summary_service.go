package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/yishan1331/student-affairs-management/internal/dto"
	"github.com/yishan1331/student-affairs-management/internal/models"
	appErrors "github.com/yishan1331/student-affairs-management/pkg/errors"
	"github.com/yishan1331/student-affairs-management/pkg/export"
)

const (
	salarySummaryCachePrefix  = "salary:summary:"
	salarySummaryCachePattern = salarySummaryCachePrefix + "*"
)

// Export formats for salary summaries.
const (
	SummaryFormatCSV  = "csv"
	SummaryFormatPDF  = "pdf"
	SummaryFormatXLSX = "xlsx"
)

var summaryContentTypes = map[string]string{
	SummaryFormatCSV:  "text/csv",
	SummaryFormatPDF:  "application/pdf",
	SummaryFormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

var summaryExportHeaders = []string{"School", "Course", "Date", "Students", "Salary Base", "Amount"}

type sessionSummaryReader interface {
	ListForSummary(ctx context.Context, start, end time.Time, schoolID *int64) ([]models.CourseSessionDetail, error)
}

type tableRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// SummaryExport is a rendered salary summary file.
type SummaryExport struct {
	Filename    string
	ContentType string
	Content     []byte
}

// SalarySummaryService aggregates session salaries per school and course.
type SalarySummaryService struct {
	repo      sessionSummaryReader
	cache     *CacheService
	cacheTTL  time.Duration
	csv       tableRenderer
	xlsx      tableRenderer
	pdf       pdfRenderer
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSalarySummaryService constructs a SalarySummaryService. cache may be nil.
func NewSalarySummaryService(repo sessionSummaryReader, cache *CacheService, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger, csv tableRenderer, pdf pdfRenderer) *SalarySummaryService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &SalarySummaryService{
		repo:      repo,
		cache:     cache,
		cacheTTL:  cacheTTL,
		csv:       csv,
		xlsx:      export.NewXLSXExporter("Salary Summary"),
		pdf:       pdf,
		validator: validate,
		logger:    logger,
	}
}

// Summary returns per-school salary totals for the window. The boolean reports a cache hit.
func (s *SalarySummaryService) Summary(ctx context.Context, query dto.SalarySummaryQuery) ([]dto.SchoolSalarySummary, bool, error) {
	start, end, err := s.resolveWindow(query)
	if err != nil {
		return nil, false, err
	}

	key := summaryCacheKey(start, end, query.SchoolID)
	var cached []dto.SchoolSalarySummary
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached, true, nil
	}

	sessions, err := s.repo.ListForSummary(ctx, start, end, query.SchoolID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load salary summary")
	}
	summary := AggregateSalarySummary(sessions)

	_ = s.cache.Set(ctx, key, summary, s.cacheTTL)
	return summary, false, nil
}

// Export renders the summary as a flat table in the requested format.
func (s *SalarySummaryService) Export(ctx context.Context, query dto.SalarySummaryQuery, format string) (*SummaryExport, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = SummaryFormatCSV
	}
	contentType, ok := summaryContentTypes[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInvalidArgument, "unsupported export format "+format)
	}

	summary, _, err := s.Summary(ctx, query)
	if err != nil {
		return nil, err
	}
	dataset := summaryDataset(summary)
	filename := fmt.Sprintf("salary-summary_%s_%s.%s", query.StartDate, query.EndDate, format)

	var content []byte
	switch format {
	case SummaryFormatPDF:
		content, err = s.pdf.Render(dataset, fmt.Sprintf("Salary summary %s - %s", query.StartDate, query.EndDate))
	case SummaryFormatXLSX:
		content, err = s.xlsx.Render(dataset)
	default:
		content, err = s.csv.Render(dataset)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render salary summary")
	}
	s.logger.Debug("salary summary exported", zap.String("format", format), zap.Int("rows", len(dataset.Rows)))
	return &SummaryExport{Filename: filename, ContentType: contentType, Content: content}, nil
}

func (s *SalarySummaryService) resolveWindow(query dto.SalarySummaryQuery) (time.Time, time.Time, error) {
	if err := s.validator.Struct(query); err != nil {
		return time.Time{}, time.Time{}, appErrors.Validation(err, "invalid salary summary query")
	}
	start, err := ParseDate(query.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := ParseDate(query.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrInvalidArgument, "start_date must not be after end_date")
	}
	return start, end, nil
}

func summaryCacheKey(start, end time.Time, schoolID *int64) string {
	school := "all"
	if schoolID != nil {
		school = strconv.FormatInt(*schoolID, 10)
	}
	return fmt.Sprintf("%s%s:%s:%s", salarySummaryCachePrefix, models.DateKey(start), models.DateKey(end), school)
}

// AggregateSalarySummary groups sessions by school then course, keeping first-seen order.
// Sessions without a salary count as zero; totals are rounded to cents.
func AggregateSalarySummary(sessions []models.CourseSessionDetail) []dto.SchoolSalarySummary {
	schools := []dto.SchoolSalarySummary{}
	schoolIndex := make(map[int64]int)
	courseIndex := make(map[int64]map[int64]int)

	for _, session := range sessions {
		si, ok := schoolIndex[session.SchoolID]
		if !ok {
			si = len(schools)
			schoolIndex[session.SchoolID] = si
			courseIndex[session.SchoolID] = make(map[int64]int)
			schools = append(schools, dto.SchoolSalarySummary{
				SchoolID:    session.SchoolID,
				SchoolName:  session.SchoolName,
				Courses:     []dto.CourseSalarySummary{},
				TotalSalary: decimal.Zero,
			})
		}
		school := &schools[si]

		ci, ok := courseIndex[session.SchoolID][session.CourseID]
		if !ok {
			ci = len(school.Courses)
			courseIndex[session.SchoolID][session.CourseID] = ci
			school.Courses = append(school.Courses, dto.CourseSalarySummary{
				CourseID:    session.CourseID,
				CourseName:  session.CourseName,
				TotalSalary: decimal.Zero,
				Sessions:    []dto.SessionSalaryEntry{},
			})
		}
		course := &school.Courses[ci]

		amount := decimal.Zero
		if session.SalaryAmount.Valid {
			amount = session.SalaryAmount.Decimal
		}
		course.SessionCount++
		course.TotalSalary = course.TotalSalary.Add(amount)
		school.TotalSalary = school.TotalSalary.Add(amount)
		course.Sessions = append(course.Sessions, dto.SessionSalaryEntry{
			ID:                 session.ID,
			Date:               models.DateKey(session.Date),
			ActualStudentCount: session.ActualStudentCount,
			SalaryAmount:       session.SalaryAmount,
			SalaryBaseName:     session.SalaryBaseName,
		})
	}

	for i := range schools {
		schools[i].TotalSalary = schools[i].TotalSalary.Round(2)
		for j := range schools[i].Courses {
			schools[i].Courses[j].TotalSalary = schools[i].Courses[j].TotalSalary.Round(2)
		}
	}
	return schools
}

func summaryDataset(summary []dto.SchoolSalarySummary) export.Dataset {
	dataset := export.Dataset{
		Headers:    summaryExportHeaders,
		Numeric:    []string{"Students", "Amount"},
		Emphasized: map[int]bool{},
	}
	for _, school := range summary {
		for _, course := range school.Courses {
			for _, session := range course.Sessions {
				tier := ""
				if session.SalaryBaseName != nil {
					tier = *session.SalaryBaseName
				}
				amount := ""
				if session.SalaryAmount.Valid {
					amount = session.SalaryAmount.Decimal.StringFixed(2)
				}
				dataset.Rows = append(dataset.Rows, map[string]string{
					"School":      school.SchoolName,
					"Course":      course.CourseName,
					"Date":        session.Date,
					"Students":    strconv.Itoa(session.ActualStudentCount),
					"Salary Base": tier,
					"Amount":      amount,
				})
			}
			dataset.Emphasized[len(dataset.Rows)] = true
			dataset.Rows = append(dataset.Rows, map[string]string{
				"School": school.SchoolName,
				"Course": course.CourseName + " total",
				"Amount": course.TotalSalary.StringFixed(2),
			})
		}
		dataset.Emphasized[len(dataset.Rows)] = true
		dataset.Rows = append(dataset.Rows, map[string]string{
			"School": school.SchoolName + " total",
			"Amount": school.TotalSalary.StringFixed(2),
		})
	}
	return dataset
}
