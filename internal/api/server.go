// Package api exposes the viewer's HTTP surface: vehicle listing, cleaned
// track retrieval with segment classification, and sample editing.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/fleetsight/fleetsight/internal/httputil"
	"github.com/fleetsight/fleetsight/internal/store"
	"github.com/fleetsight/fleetsight/internal/telemetry"
	"github.com/fleetsight/fleetsight/internal/units"
	"github.com/fleetsight/fleetsight/internal/version"
)

// ANSI escape codes for request logging.
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// TelemetryStore is the slice of the store the API depends on.
type TelemetryStore interface {
	ListVehicles() ([]store.Vehicle, error)
	FetchRawSamples(ctx context.Context, vehicleID string) ([]telemetry.RawSample, error)
	RecordSample(sample telemetry.RawSample) error
	UpdateSample(sample telemetry.RawSample) error
}

type Server struct {
	store   TelemetryStore
	units   string
	maxJump float64
}

// NewServer creates an API server. units is the display unit for speeds in
// responses; speeds are stored in km/h.
func NewServer(st TelemetryStore, displayUnits string) *Server {
	if !units.IsValid(displayUnits) {
		displayUnits = units.KPH
	}
	return &Server{
		store:   st,
		units:   displayUnits,
		maxJump: telemetry.MaxJumpMeters,
	}
}

// SetMaxJump overrides the sanitiser's jump bound, in meters. Values at or
// below zero are ignored.
func (s *Server) SetMaxJump(meters float64) {
	if meters > 0 {
		s.maxJump = meters
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, status, and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/vehicles", s.listVehicles)
	mux.HandleFunc("/api/track", s.showTrack)
	mux.HandleFunc("/api/samples", s.handleSamples)
	mux.HandleFunc("/api/legend", s.showLegend)
	mux.HandleFunc("/api/summary", s.showSummary)
	mux.HandleFunc("/api/chart", s.showSpeedChart)
	mux.HandleFunc("/api/version", s.showVersion)
	return mux
}

func (s *Server) listVehicles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	vehicles, err := s.store.ListVehicles()
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to list vehicles: %v", err))
		return
	}
	if vehicles == nil {
		vehicles = []store.Vehicle{}
	}
	httputil.WriteJSONOK(w, vehicles)
}

// trackSegment is one trajectory segment with its classification, ready for
// path colouring.
type trackSegment struct {
	Class string `json:"class"`
	Color string `json:"color"`
	Label string `json:"label"`
}

type trackResponse struct {
	VehicleID string                      `json:"vehicle_id"`
	Units     string                      `json:"units"`
	Points    []telemetry.TrajectoryPoint `json:"points"`
	Segments  []trackSegment              `json:"segments"`
	Summary   telemetry.Summary           `json:"summary"`
	NoData    bool                        `json:"no_data,omitempty"`
}

// showTrack performs the bulk fetch and sanitisation for one vehicle and
// returns the cleaned trajectory with per-segment classes. An empty
// trajectory is a valid response, not an error.
func (s *Server) showTrack(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	vehicleID := r.URL.Query().Get("vehicle_id")
	if vehicleID == "" {
		httputil.BadRequest(w, "vehicle_id is required")
		return
	}
	displayUnits := s.units
	if u := r.URL.Query().Get("units"); u != "" {
		if !units.IsValid(u) {
			httputil.BadRequest(w, fmt.Sprintf("invalid units %q (valid: %s)", u, units.GetValidUnitsString()))
			return
		}
		displayUnits = u
	}

	raw, err := s.store.FetchRawSamples(r.Context(), vehicleID)
	if err != nil {
		httputil.BadGateway(w, fmt.Sprintf("telemetry feed unavailable: %v", err))
		return
	}

	trajectory := telemetry.SanitizeMaxJump(raw, s.maxJump)
	classes := telemetry.SegmentClasses(trajectory)
	segments := make([]trackSegment, len(classes))
	for i, class := range classes {
		segments[i] = trackSegment{
			Class: class.String(),
			Color: class.Color(),
			Label: class.Label(),
		}
	}

	resp := trackResponse{
		VehicleID: vehicleID,
		Units:     displayUnits,
		Points:    convertTrajectorySpeeds(trajectory, displayUnits),
		Segments:  segments,
		Summary:   telemetry.Summarize(trajectory),
		NoData:    len(trajectory) == 0,
	}
	httputil.WriteJSONOK(w, resp)
}

type summaryResponse struct {
	VehicleID string            `json:"vehicle_id"`
	Summary   telemetry.Summary `json:"summary"`
}

// showSummary returns the track statistics for one vehicle without the
// point list, for callers that only need the aggregates.
func (s *Server) showSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	vehicleID := r.URL.Query().Get("vehicle_id")
	if vehicleID == "" {
		httputil.BadRequest(w, "vehicle_id is required")
		return
	}

	raw, err := s.store.FetchRawSamples(r.Context(), vehicleID)
	if err != nil {
		httputil.BadGateway(w, fmt.Sprintf("telemetry feed unavailable: %v", err))
		return
	}
	trajectory := telemetry.SanitizeMaxJump(raw, s.maxJump)
	httputil.WriteJSONOK(w, summaryResponse{
		VehicleID: vehicleID,
		Summary:   telemetry.Summarize(trajectory),
	})
}

// handleSamples records new samples (POST) and edits existing ones (PUT).
func (s *Server) handleSamples(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var sample telemetry.RawSample
		if err := json.NewDecoder(r.Body).Decode(&sample); err != nil {
			httputil.BadRequest(w, fmt.Sprintf("invalid sample: %v", err))
			return
		}
		if err := s.store.RecordSample(sample); err != nil {
			httputil.BadRequest(w, fmt.Sprintf("failed to record sample: %v", err))
			return
		}
		w.WriteHeader(http.StatusCreated)
	case http.MethodPut:
		var sample telemetry.RawSample
		if err := json.NewDecoder(r.Body).Decode(&sample); err != nil {
			httputil.BadRequest(w, fmt.Sprintf("invalid sample: %v", err))
			return
		}
		if sample.ID == 0 {
			httputil.BadRequest(w, "sample id is required")
			return
		}
		if err := s.store.UpdateSample(sample); err != nil {
			httputil.BadRequest(w, fmt.Sprintf("failed to update sample: %v", err))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		httputil.MethodNotAllowed(w)
	}
}

type legendEntry struct {
	Class string `json:"class"`
	Color string `json:"color"`
	Label string `json:"label"`
}

// showLegend returns the fixed class/colour/label table the map legend
// renders.
func (s *Server) showLegend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	classes := []telemetry.SpeedClass{
		telemetry.SpeedSlow,
		telemetry.SpeedMedium,
		telemetry.SpeedFast,
		telemetry.SpeedUnknown,
	}
	legend := make([]legendEntry, len(classes))
	for i, class := range classes {
		legend[i] = legendEntry{Class: class.String(), Color: class.Color(), Label: class.Label()}
	}
	httputil.WriteJSONOK(w, legend)
}

// convertTrajectorySpeeds returns a copy of the trajectory with ground
// speeds converted from km/h to the display units.
func convertTrajectorySpeeds(trajectory []telemetry.TrajectoryPoint, displayUnits string) []telemetry.TrajectoryPoint {
	if displayUnits == units.KPH {
		return trajectory
	}
	out := make([]telemetry.TrajectoryPoint, len(trajectory))
	copy(out, trajectory)
	for i := range out {
		if out[i].GroundSpeedKPH != nil {
			converted := units.ConvertSpeed(*out[i].GroundSpeedKPH, displayUnits)
			out[i].GroundSpeedKPH = &converted
		}
	}
	return out
}

// showVersion reports the build metadata stamped in at link time.
func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, map[string]string{
		"version":    version.Version,
		"git_sha":    version.GitSHA,
		"build_time": version.BuildTime,
	})
}
