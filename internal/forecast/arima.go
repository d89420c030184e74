package forecast

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
)

// minObservations is the shortest series the model is fitted on: three differences
// leave two residual terms for the sum of squares.
const minObservations = 4

// Params are the fitted ARIMA(1,1,1) coefficients
type Params struct {
	Phi    float64 `json:"phi"`    // autoregressive
	Theta  float64 `json:"theta"`  // moving average
	Sigma2 float64 `json:"sigma2"` // residual variance
}

// arimaModel is an ARIMA(1,1,1) without constant:
//
//	d[t] = phi*d[t-1] + e[t] + theta*e[t-1],  d[t] = y[t] - y[t-1]
type arimaModel struct {
	Params
	last      float64 // y[n]
	lastDiff  float64 // d[n]
	lastResid float64 // e[n]
}

// fitARIMA111 fits by conditional sum of squares. Coefficients are searched through
// tanh so phi and theta stay inside (-1, 1).
func fitARIMA111(values []float64, budget time.Duration) (*arimaModel, error) {
	if len(values) < minObservations {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientData, len(values), minObservations)
	}

	diffs := difference(values)
	if stat.Variance(diffs, nil) == 0 {
		return nil, ErrDegenerate
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			sum, _ := conditionalSumOfSquares(diffs, math.Tanh(x[0]), math.Tanh(x[1]))
			return sum
		},
	}
	settings := &optimize.Settings{
		MajorIterations: 1000,
		FuncEvaluations: 5000,
		Runtime:         budget,
	}

	result, err := optimize.Minimize(problem, []float64{0.1, 0.1}, settings, &optimize.NelderMead{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotConverged, err)
	}
	if !converged(result.Status) {
		return nil, fmt.Errorf("%w: %s", ErrNotConverged, result.Status)
	}

	phi, theta := math.Tanh(result.X[0]), math.Tanh(result.X[1])
	sum, lastResid := conditionalSumOfSquares(diffs, phi, theta)
	if math.IsNaN(sum) || math.IsInf(sum, 0) {
		return nil, ErrNonFinite
	}

	return &arimaModel{
		Params: Params{
			Phi:    phi,
			Theta:  theta,
			Sigma2: sum / float64(len(diffs)-1),
		},
		last:      values[len(values)-1],
		lastDiff:  diffs[len(diffs)-1],
		lastResid: lastResid,
	}, nil
}

// predict integrates the forecast differences back onto the last level
func (m *arimaModel) predict(steps int) []float64 {
	out := make([]float64, steps)
	level := m.last
	prevDiff := m.lastDiff
	for h := 0; h < steps; h++ {
		d := m.Phi * prevDiff
		if h == 0 {
			d += m.Theta * m.lastResid
		}
		level += d
		out[h] = level
		prevDiff = d
	}
	return out
}

// conditionalSumOfSquares returns the residual sum of squares with e[0] = 0,
// and the final residual.
func conditionalSumOfSquares(diffs []float64, phi, theta float64) (float64, float64) {
	sum := 0.0
	prev := 0.0
	for t := 1; t < len(diffs); t++ {
		e := diffs[t] - phi*diffs[t-1] - theta*prev
		sum += e * e
		prev = e
	}
	return sum, prev
}

func difference(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		out[i-1] = values[i] - values[i-1]
	}
	return out
}

func converged(status optimize.Status) bool {
	switch status {
	case optimize.Success, optimize.FunctionConvergence, optimize.MethodConverge,
		optimize.FunctionThreshold, optimize.GradientThreshold, optimize.StepConvergence:
		return true
	}
	return false
}
