// Package report condenses calendarization results into summaries and
// renders them as markdown or HTML.
package report

import (
	"math"

	"gocal/domain/calendar"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
)

// Summarize computes the run summary of a daily series. agg may be nil.
func Summarize(obs []calendar.PeriodObservation, daily calendar.DailySeries, agg *calendar.AggregateSeries) (calendar.RunSummary, error) {
	summary := calendar.RunSummary{
		Days:         daily.Len(),
		Observations: len(obs),
	}
	if !daily.Available || daily.Len() == 0 {
		return summary, nil
	}

	data := stats.Float64Data(daily.Values)
	var err error
	if summary.Total, err = data.Sum(); err != nil {
		return summary, err
	}
	summary.Mean = stat.Mean(daily.Values, nil)
	if summary.Median, err = data.Median(); err != nil {
		return summary, err
	}
	if summary.Min, err = data.Min(); err != nil {
		return summary, err
	}
	if summary.Max, err = data.Max(); err != nil {
		return summary, err
	}
	if summary.P05, err = data.Percentile(5); err != nil {
		return summary, err
	}
	if summary.P95, err = data.Percentile(95); err != nil {
		return summary, err
	}

	residuals := ConservationResiduals(obs, daily)
	for _, r := range residuals {
		if a := math.Abs(r); a > summary.MaxResidual {
			summary.MaxResidual = a
		}
	}

	if daily.HasStdev() {
		summary.MeanStdev = stat.Mean(daily.Stdevs, nil)
		if summary.MaxStdev, err = stats.Max(daily.Stdevs); err != nil {
			return summary, err
		}
	}

	if agg != nil && agg.Available {
		summary.AggregatePeriods = len(agg.Points)
		for _, p := range agg.Points {
			if p.Complete {
				summary.CompleteAggregates++
			}
		}
	}
	return summary, nil
}

// ConservationResiduals returns, per observation, the reconstructed total over
// its interval minus the observed value.
func ConservationResiduals(obs []calendar.PeriodObservation, daily calendar.DailySeries) []float64 {
	out := make([]float64, len(obs))
	for i, o := range obs {
		out[i] = daily.Sum(o.Start, o.End) - o.Value
	}
	return out
}

// StdevBand returns weighted mean and standard deviation of the daily values,
// weighting each day by its inverse variance when deviations are present.
func StdevBand(daily calendar.DailySeries) (mean, std float64) {
	if daily.Len() == 0 {
		return math.NaN(), math.NaN()
	}
	var weights []float64
	if daily.HasStdev() {
		weights = make([]float64, daily.Len())
		for i, s := range daily.Stdevs {
			if s > 0 {
				weights[i] = 1 / (s * s)
			}
		}
		total := 0.0
		for _, w := range weights {
			total += w
		}
		if total == 0 {
			weights = nil
		}
	}
	return stat.MeanStdDev(daily.Values, weights)
}
