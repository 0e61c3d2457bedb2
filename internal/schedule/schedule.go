package schedule

import (
	"fmt"
	"time"

	"advocat/internal/config"
)

// Hours are the opening hours of one day, open <= hour < close.
type Hours struct {
	Open  int
	Close int
}

// Schedule is a weekly opening schedule in one time zone.
type Schedule struct {
	loc  *time.Location
	days [7]*Hours
}

// Opening is a future opening time.
type Opening struct {
	At      time.Time `json:"at"`
	Weekday string    `json:"weekday"`
	Label   string    `json:"label"`
}

// Status is the opening status shown on the public pages.
type Status struct {
	IsOpen      bool     `json:"isOpen"`
	ClosingHour string   `json:"closingHour,omitempty"`
	NextOpening *Opening `json:"nextOpening,omitempty"`
}

func New(cfg config.ScheduleConfig) (*Schedule, error) {
	loc := time.Local
	if cfg.Timezone != "" {
		l, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("schedule timezone: %w", err)
		}
		loc = l
	}

	s := &Schedule{loc: loc}
	for name, h := range cfg.Days {
		day, ok := config.ParseWeekday(name)
		if !ok {
			return nil, fmt.Errorf("schedule: unknown weekday %q", name)
		}
		s.days[day] = &Hours{Open: h.Open, Close: h.Close}
	}
	return s, nil
}

func (s *Schedule) hours(day time.Weekday) *Hours {
	return s.days[day]
}

// IsOpen reports whether now falls inside today's hours.
func (s *Schedule) IsOpen(now time.Time) bool {
	now = now.In(s.loc)
	h := s.hours(now.Weekday())
	if h == nil {
		return false
	}
	return now.Hour() >= h.Open && now.Hour() < h.Close
}

// ClosingHour is today's closing hour such as "18h", empty on a closed day.
func (s *Schedule) ClosingHour(now time.Time) string {
	h := s.hours(now.In(s.loc).Weekday())
	if h == nil {
		return ""
	}
	return hourLabel(h.Close)
}

// NextOpening returns the first opening strictly after now: later today, or
// the first following open day. ok is false when no day is open.
func (s *Schedule) NextOpening(now time.Time) (Opening, bool) {
	now = now.In(s.loc)
	y, m, d := now.Date()
	for i := 0; i <= 7; i++ {
		day := time.Date(y, m, d+i, 0, 0, 0, 0, s.loc)
		h := s.hours(day.Weekday())
		if h == nil {
			continue
		}
		at := time.Date(day.Year(), day.Month(), day.Day(), h.Open, 0, 0, 0, s.loc)
		if at.After(now) {
			return Opening{At: at, Weekday: at.Weekday().String(), Label: hourLabel(h.Open)}, true
		}
	}
	return Opening{}, false
}

// Status gathers IsOpen, ClosingHour and, when closed, NextOpening.
func (s *Schedule) Status(now time.Time) Status {
	st := Status{IsOpen: s.IsOpen(now), ClosingHour: s.ClosingHour(now)}
	if !st.IsOpen {
		if next, ok := s.NextOpening(now); ok {
			st.NextOpening = &next
		}
	}
	return st
}

func hourLabel(h int) string {
	return fmt.Sprintf("%dh", h)
}
