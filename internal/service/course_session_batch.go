package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yishan1331/student-affairs-management/internal/dto"
	"github.com/yishan1331/student-affairs-management/internal/models"
	appErrors "github.com/yishan1331/student-affairs-management/pkg/errors"
	"github.com/yishan1331/student-affairs-management/pkg/logger"
)

// BatchGenerate expands each course's weekly schedule over the requested range, creating an
// active session for every scheduled date the course does not already have. Unknown courses are
// skipped. A failed insert stops the run; sessions created before it are kept.
func (s *CourseSessionService) BatchGenerate(ctx context.Context, req dto.BatchGenerateRequest) (*dto.BatchGenerateResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid batch payload")
	}
	start, end, err := resolveBatchRange(req, s.cfg.BatchMaxDays)
	if err != nil {
		return nil, err
	}

	log := logger.WithContext(ctx, s.logger)
	result := &dto.BatchGenerateResponse{Sessions: []models.CourseSession{}}
	modifier := normalizeOptional(req.ModifierID)
	defer func() {
		if result.Created > 0 {
			s.metrics.RecordSessionsGenerated(result.Created)
			s.cache.InvalidateSummaries(ctx)
		}
	}()

	for _, courseID := range req.CourseIDs {
		course, err := s.courses.FindByID(ctx, courseID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				log.Warn("batch generation skipped unknown course", zap.Int64("course_id", courseID))
				continue
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
		}

		weekdays := parseWeekdays(course.DayOfWeek)
		dates := scheduledDates(start, end, weekdays)
		if len(dates) == 0 {
			continue
		}

		existing, err := s.repo.ListByCourseInRange(ctx, course.ID, start, end)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing course sessions")
		}
		covered := make(map[string]struct{}, len(existing))
		for _, session := range existing {
			covered[models.DateKey(session.Date)] = struct{}{}
		}

		// Count is zero for every generated session, so one calculation serves the whole course.
		var salary *SalaryResult
		for _, date := range dates {
			key := models.DateKey(date)
			if _, ok := covered[key]; ok {
				continue
			}
			if salary == nil {
				computed, err := s.calculator.CalculateForCourse(ctx, course, 0)
				if err != nil {
					return nil, err
				}
				salary = &computed
			}

			session := &models.CourseSession{
				CourseID:   course.ID,
				Date:       date,
				ModifierID: modifier,
			}
			salary.Apply(session)
			if err := s.repo.Create(ctx, session); err != nil {
				log.Error("batch generation aborted",
					zap.Int64("course_id", course.ID),
					zap.String("date", key),
					zap.Int("created", result.Created),
					zap.Error(err),
				)
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course session")
			}
			covered[key] = struct{}{}
			result.Sessions = append(result.Sessions, *session)
			result.Created++
		}
	}

	log.Info("batch generation finished",
		zap.Int("courses", len(req.CourseIDs)),
		zap.String("start", models.DateKey(start)),
		zap.String("end", models.DateKey(end)),
		zap.Int("created", result.Created),
	)
	return result, nil
}

// resolveBatchRange turns either an explicit date pair or a calendar month into an inclusive range.
func resolveBatchRange(req dto.BatchGenerateRequest, maxDays int) (time.Time, time.Time, error) {
	hasRange := req.StartDate != nil || req.EndDate != nil
	hasMonth := req.Year != nil || req.Month != nil

	var start, end time.Time
	switch {
	case hasRange && hasMonth:
		return start, end, appErrors.Clone(appErrors.ErrInvalidArgument, "provide either start_date and end_date or year and month, not both")
	case hasRange:
		if req.StartDate == nil || req.EndDate == nil {
			return start, end, appErrors.Clone(appErrors.ErrInvalidArgument, "start_date and end_date must be provided together")
		}
		var err error
		if start, err = ParseDate(*req.StartDate); err != nil {
			return start, end, err
		}
		if end, err = ParseDate(*req.EndDate); err != nil {
			return start, end, err
		}
	case hasMonth:
		if req.Year == nil || req.Month == nil {
			return start, end, appErrors.Clone(appErrors.ErrInvalidArgument, "year and month must be provided together")
		}
		if *req.Month < 1 || *req.Month > 12 {
			return start, end, appErrors.Clone(appErrors.ErrInvalidArgument, "month must be between 1 and 12")
		}
		start = time.Date(*req.Year, time.Month(*req.Month), 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 1, -1)
	default:
		return start, end, appErrors.Clone(appErrors.ErrInvalidArgument, "a date range or year and month is required")
	}

	if start.After(end) {
		return start, end, appErrors.Clone(appErrors.ErrInvalidArgument, "start_date must not be after end_date")
	}
	if days := int(end.Sub(start).Hours()/24) + 1; maxDays > 0 && days > maxDays {
		return start, end, appErrors.Clone(appErrors.ErrInvalidArgument, fmt.Sprintf("date range spans %d days, limit is %d", days, maxDays))
	}
	return start, end, nil
}

// parseWeekdays reads a comma separated list of ISO weekdays (1=Monday .. 7=Sunday).
// Entries outside that range are ignored.
func parseWeekdays(raw string) map[int]struct{} {
	weekdays := make(map[int]struct{})
	for _, part := range strings.Split(raw, ",") {
		day, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || day < 1 || day > 7 {
			continue
		}
		weekdays[day] = struct{}{}
	}
	return weekdays
}

func isoWeekday(t time.Time) int {
	if t.Weekday() == time.Sunday {
		return 7
	}
	return int(t.Weekday())
}

// scheduledDates lists every date in [start, end] falling on one of weekdays, in order.
func scheduledDates(start, end time.Time, weekdays map[int]struct{}) []time.Time {
	if len(weekdays) == 0 {
		return nil
	}
	var dates []time.Time
	for day := models.NormalizeDate(start); !day.After(end); day = day.AddDate(0, 0, 1) {
		if _, ok := weekdays[isoWeekday(day)]; ok {
			dates = append(dates, day)
		}
	}
	return dates
}
