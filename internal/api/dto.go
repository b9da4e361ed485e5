package api

import (
	"fmt"

	"gocal/app"
	"gocal/domain/calendar"
	"gocal/domain/core"
	"gocal/internal/errors"
)

// ObservationDTO is a period observation with YYYY-MM-DD dates
type ObservationDTO struct {
	Start string  `json:"start" binding:"required"`
	End   string  `json:"end" binding:"required"`
	Value float64 `json:"value"`
}

// SpanDTO is an optional grid span with YYYY-MM-DD dates
type SpanDTO struct {
	Start string `json:"start" binding:"required"`
	End   string `json:"end" binding:"required"`
}

// CalendarizeRequestDTO is the body of POST /api/calendarize
type CalendarizeRequestDTO struct {
	Observations []ObservationDTO `json:"observations"`
	Span         *SpanDTO         `json:"span,omitempty"`
	Weights      []float64        `json:"weights,omitempty"`
	Frequency    string           `json:"frequency,omitempty"`
	WithStdev    bool             `json:"with_stdev"`
}

// CreateSeriesDTO is the body of POST /api/series
type CreateSeriesDTO struct {
	Name         string           `json:"name" binding:"required"`
	Observations []ObservationDTO `json:"observations" binding:"required"`
	Weights      []float64        `json:"weights,omitempty"`
}

func toObservations(in []ObservationDTO) ([]calendar.PeriodObservation, error) {
	out := make([]calendar.PeriodObservation, len(in))
	for i, o := range in {
		start, err := calendar.ParseDay(o.Start)
		if err != nil {
			return nil, errors.Wrap(core.NewObservationError(i, err.Error()), "invalid observation")
		}
		end, err := calendar.ParseDay(o.End)
		if err != nil {
			return nil, errors.Wrap(core.NewObservationError(i, err.Error()), "invalid observation")
		}
		out[i] = calendar.PeriodObservation{Start: start, End: end, Value: o.Value}
	}
	return out, nil
}

func toSpan(in *SpanDTO) (*calendar.Span, error) {
	if in == nil {
		return nil, nil
	}
	return parseSpan(in.Start, in.End)
}

// parseSpan builds a span from query or body strings; both empty means none
func parseSpan(start, end string) (*calendar.Span, error) {
	if start == "" && end == "" {
		return nil, nil
	}
	if start == "" || end == "" {
		return nil, errors.Wrap(fmt.Errorf("%w: span needs both start and end", core.ErrOutsideSpan), "invalid span")
	}
	s, err := calendar.ParseDay(start)
	if err != nil {
		return nil, errors.Wrap(fmt.Errorf("%w: %v", core.ErrOutsideSpan, err), "invalid span")
	}
	e, err := calendar.ParseDay(end)
	if err != nil {
		return nil, errors.Wrap(fmt.Errorf("%w: %v", core.ErrOutsideSpan, err), "invalid span")
	}
	return &calendar.Span{Start: s, End: e}, nil
}

func (d CalendarizeRequestDTO) toRequest() (app.CalendarizeRequest, error) {
	obs, err := toObservations(d.Observations)
	if err != nil {
		return app.CalendarizeRequest{}, err
	}
	span, err := toSpan(d.Span)
	if err != nil {
		return app.CalendarizeRequest{}, err
	}
	return app.CalendarizeRequest{
		Observations: obs,
		Span:         span,
		Weights:      d.Weights,
		Frequency:    calendar.Frequency(d.Frequency),
		WithStdev:    d.WithStdev,
	}, nil
}
