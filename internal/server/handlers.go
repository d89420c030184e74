package server

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"uidai-insights/internal/dashboard"
	"uidai-insights/internal/dataset"
	"uidai-insights/internal/logging"
)

type trendQuery struct {
	Threshold float64 `validate:"gt=0,lte=10"`
	Window    int     `validate:"min=1,max=90"`
	Steps     int     `validate:"min=1,max=60"`
}

type statesQuery struct {
	Limit int `validate:"min=1,max=100"`
}

type exportQuery struct {
	Format string `validate:"omitempty,oneof=csv xlsx"`
}

// handleHealth returns the server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleDatasets(w http.ResponseWriter, r *http.Request) {
	datasets := s.svc.Datasets()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(datasets),
		"datasets": datasets,
	})
}

func (s *Server) handleKPIs(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.kind(w, r)
	if !ok {
		return
	}

	kpis, err := s.svc.KPIs(r.Context(), kind)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, kpis)
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.kind(w, r)
	if !ok {
		return
	}

	q := trendQuery{Threshold: s.opts.Threshold, Window: s.opts.Window, Steps: s.opts.Steps}
	var err error
	if q.Threshold, err = floatParam(r, "threshold", q.Threshold); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if q.Window, err = intParam(r, "window", q.Window); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if q.Steps, err = intParam(r, "steps", q.Steps); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !s.valid(w, q) {
		return
	}

	trend, err := s.svc.Trend(r.Context(), kind, dashboard.TrendParams{
		Threshold: q.Threshold,
		Window:    q.Window,
		Steps:     q.Steps,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trend)
}

func (s *Server) handleStates(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.kind(w, r)
	if !ok {
		return
	}

	limit, err := intParam(r, "limit", dashboard.DefaultTopStates)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !s.valid(w, statesQuery{Limit: limit}) {
		return
	}

	states, err := s.svc.TopStates(r.Context(), kind, limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"dataset": kind.String(),
		"metric":  kind.MetricName(),
		"count":   len(states),
		"states":  states,
	})
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.kind(w, r)
	if !ok {
		return
	}

	view, err := s.svc.Map(r.Context(), kind)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.kind(w, r)
	if !ok {
		return
	}

	insights, err := s.svc.Insights(r.Context(), kind)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"dataset":  kind.String(),
		"count":    len(insights),
		"insights": insights,
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.kind(w, r)
	if !ok {
		return
	}

	q := exportQuery{Format: r.URL.Query().Get("format")}
	if !s.valid(w, q) {
		return
	}
	format, _ := dataset.ParseFormat(q.Format)

	// buffered so a failed export can still report an error status
	var buf bytes.Buffer
	name, err := s.svc.Export(r.Context(), &buf, kind, format)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", dataset.ContentType(format))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// kind resolves the {kind} URL parameter, writing a 404 when it is unknown
func (s *Server) kind(w http.ResponseWriter, r *http.Request) (dataset.Kind, bool) {
	kind, err := s.svc.Kind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return 0, false
	}
	return kind, true
}

func (s *Server) valid(w http.ResponseWriter, q interface{}) bool {
	err := s.validate.Struct(q)
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s: failed %s=%s", lowerFirst(fe.Field()), fe.Tag(), fe.Param()))
		return false
	}
	writeError(w, http.StatusBadRequest, err.Error())
	return false
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, dataset.ErrUnknownKind) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	logging.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("dataset load failed")
	writeError(w, http.StatusBadGateway, err.Error())
}

func floatParam(r *http.Request, name string, def float64) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q is not a number", name, raw)
	}
	return v, nil
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q is not an integer", name, raw)
	}
	return v, nil
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'A' && b[0] <= 'Z' {
		b[0] += 'a' - 'A'
	}
	return string(b)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
