// Package usage reports embedding token consumption against the configured budget.
package usage

import (
	"context"
	"time"

	"github.com/kailas-cloud/courseadvisor/internal/domain"
)

// Window is one budget period. Limit 0 means unlimited, in which case
// Remaining is -1 and Exhausted is false.
type Window struct {
	Start     time.Time
	End       time.Time
	Limit     int64
	Used      int64
	Remaining int64
	Exhausted bool
}

// Report is the embedding budget state for the current day and month.
type Report struct {
	Provider string
	Day      Window
	Month    Window
}

// Service handles usage reporting.
type Service struct {
	br  BudgetReader
	now func() time.Time
}

// New creates a Service. br can be nil (unlimited mode).
func New(br BudgetReader) *Service {
	return &Service{br: br, now: time.Now}
}

// GetReport builds the usage report. Admin only.
func (s *Service) GetReport(_ context.Context, sess domain.Session) (Report, error) {
	if err := sess.RequireAdmin(); err != nil {
		return Report{}, err
	}

	now := s.now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	var r Report
	var dayLimit, dayUsed, monthLimit, monthUsed int64
	if s.br != nil {
		u := s.br.Usage()
		r.Provider = u.Provider
		dayLimit, dayUsed = u.DailyLimit, u.DailyUsed
		monthLimit, monthUsed = u.MonthlyLimit, u.MonthlyUsed
	}
	r.Day = window(dayStart, dayStart.AddDate(0, 0, 1), dayLimit, dayUsed)
	r.Month = window(monthStart, monthStart.AddDate(0, 1, 0), monthLimit, monthUsed)
	return r, nil
}

func window(start, end time.Time, limit, used int64) Window {
	w := Window{Start: start, End: end, Limit: limit, Used: used, Remaining: -1}
	if limit > 0 {
		w.Remaining = max(limit-used, 0)
		w.Exhausted = w.Remaining == 0
	}
	return w
}
