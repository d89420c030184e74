// Package forecast produces short-horizon daily forecasts from an observation series.
//
// The model is a fixed ARIMA(1,1,1). When it cannot be fitted the forecast falls back
// to repeating the last observed value; Result.Path records which of the two ran.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"uidai-insights/internal/models"
)

// Path identifies how a forecast was produced
type Path string

const (
	ModelFit Path = "model_fit"
	Fallback Path = "fallback"
)

// DefaultFitTimeout bounds a single model fit
const DefaultFitTimeout = 2 * time.Second

var (
	ErrInsufficientData = errors.New("not enough observations to fit")
	ErrDegenerate       = errors.New("differenced series has no variation")
	ErrNotConverged     = errors.New("optimizer did not converge")
	ErrNonFinite        = errors.New("model produced non-finite values")
)

// Result is a forecast series together with the path that produced it
type Result struct {
	Points models.Series `json:"points"`
	Path   Path          `json:"path"`
	Params *Params       `json:"params,omitempty"`
	Reason string        `json:"reason,omitempty"` // why the model was not used
}

// Forecaster fits a fresh model per call; it holds configuration only
type Forecaster struct {
	fitTimeout time.Duration
	now        func() time.Time
}

// NewForecaster creates a forecaster whose fits are bounded by fitTimeout.
// A zero timeout means no bound.
func NewForecaster(fitTimeout time.Duration) *Forecaster {
	return &Forecaster{
		fitTimeout: fitTimeout,
		now:        time.Now,
	}
}

var defaultForecaster = NewForecaster(DefaultFitTimeout)

// Forecast forecasts steps days past the last observation with the default forecaster
func Forecast(ctx context.Context, series models.Series, steps int) Result {
	return defaultForecaster.Forecast(ctx, series, steps)
}

// Forecast returns exactly steps daily points starting the day after the last
// observation. It never fails: any fitting problem yields the flat fallback.
func (f *Forecaster) Forecast(ctx context.Context, series models.Series, steps int) Result {
	if steps < 0 {
		steps = 0
	}

	observed := make(models.Series, 0, len(series))
	for _, p := range series.Sorted() {
		if !p.Missing {
			observed = append(observed, p)
		}
	}

	dates := f.futureDates(observed, series, steps)
	values := make([]float64, len(observed))
	for i, p := range observed {
		values[i] = p.Value
	}

	params, predictions, err := f.fit(ctx, values, steps)
	if err != nil {
		return fallback(values, dates, err)
	}

	points := make(models.Series, steps)
	for i := range points {
		points[i] = models.Point{Date: dates[i], Value: predictions[i]}
	}
	return Result{Points: points, Path: ModelFit, Params: &params}
}

func (f *Forecaster) fit(ctx context.Context, values []float64, steps int) (Params, []float64, error) {
	if err := ctx.Err(); err != nil {
		return Params{}, nil, fmt.Errorf("fit cancelled: %w", err)
	}

	budget := f.fitTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); budget == 0 || remaining < budget {
			budget = remaining
		}
		if budget <= 0 {
			return Params{}, nil, fmt.Errorf("fit cancelled: %w", context.DeadlineExceeded)
		}
	}

	model, err := fitARIMA111(values, budget)
	if err != nil {
		return Params{}, nil, err
	}

	predictions := model.predict(steps)
	for _, v := range predictions {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Params{}, nil, ErrNonFinite
		}
	}
	return model.Params, predictions, nil
}

// fallback repeats the last observed value, or 0 when nothing was observed
func fallback(values []float64, dates []time.Time, cause error) Result {
	last := 0.0
	if len(values) > 0 {
		last = values[len(values)-1]
	}

	points := make(models.Series, len(dates))
	for i, d := range dates {
		points[i] = models.Point{Date: d, Value: last}
	}
	return Result{Points: points, Path: Fallback, Reason: cause.Error()}
}

// futureDates returns steps consecutive days after the last observed date. Without
// observations it continues from the last input date, then from today.
func (f *Forecaster) futureDates(observed, input models.Series, steps int) []time.Time {
	var last time.Time
	if p, ok := observed.Last(); ok {
		last = p.Date
	} else if p, ok := input.Sorted().Last(); ok {
		last = p.Date
	} else {
		now := f.now().UTC()
		last = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	}

	dates := make([]time.Time, steps)
	for i := range dates {
		dates[i] = last.AddDate(0, 0, i+1)
	}
	return dates
}
