package api

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/fleetsight/fleetsight/internal/httputil"
	"github.com/fleetsight/fleetsight/internal/telemetry"
	"github.com/fleetsight/fleetsight/internal/units"
)

// showSpeedChart renders the speed profile of a vehicle's cleaned track as
// an HTML line chart. Missing speed readings plot as gaps.
func (s *Server) showSpeedChart(w http.ResponseWriter, r *http.Request) {
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
	if len(trajectory) == 0 {
		httputil.NotFound(w, "no data to display")
		return
	}

	timestamps := make([]string, len(trajectory))
	speeds := make([]opts.LineData, len(trajectory))
	for i, p := range trajectory {
		timestamps[i] = p.Timestamp.Format(time.TimeOnly)
		if p.GroundSpeedKPH != nil {
			speeds[i] = opts.LineData{Value: units.ConvertSpeed(*p.GroundSpeedKPH, s.units)}
		} else {
			speeds[i] = opts.LineData{Value: "-"}
		}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Speed profile", Width: "1200px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Speed profile",
			Subtitle: fmt.Sprintf("vehicle=%s points=%d units=%s", vehicleID, len(trajectory), s.units),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "time"}),
		charts.WithYAxisOpts(opts.YAxis{Name: fmt.Sprintf("speed (%s)", s.units)}),
	)
	line.SetXAxis(timestamps).
		AddSeries("ground speed", speeds,
			charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}
