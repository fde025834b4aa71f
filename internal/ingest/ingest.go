// Package ingest reads telemetry lines from a GPS receiver attached over a
// serial port and records them as raw samples. Lines are either CSV
// (unix_ms,lat,lon,speed_kph,rpm with empty fields for missing readings) or
// JSON status events, which are logged and skipped.
package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.bug.st/serial"

	"github.com/fleetsight/fleetsight/internal/monitoring"
	"github.com/fleetsight/fleetsight/internal/telemetry"
)

// SampleRecorder is the slice of the store the ingest path depends on.
type SampleRecorder interface {
	RecordSample(sample telemetry.RawSample) error
}

type GPSPort struct {
	serial.Port
	events chan string
}

func NewGPSPort(portName string) (*GPSPort, error) {
	mode := &serial.Mode{
		BaudRate: 115200,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: 1,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, err
	}
	return &GPSPort{port, make(chan string)}, nil
}

// Events returns a channel of raw lines read from the receiver.
func (p *GPSPort) Events() <-chan string {
	return p.events
}

func (p *GPSPort) Close() error {
	return p.Port.Close()
}

// Monitor reads from the serial port and sends lines to the events channel
// until the context is cancelled or the port errors out.
func (p *GPSPort) Monitor(ctx context.Context) error {
	defer p.Close()
	scan := bufio.NewScanner(p.Port)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			if !scan.Scan() {
				return scan.Err()
			}
			line := scan.Text()

			select {
			case p.events <- line:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// statusEvent is the JSON shape the receiver emits between fixes.
type statusEvent struct {
	Clock      float64 `json:"clock"`
	Satellites int     `json:"satellites"`
}

// HandleLine parses one receiver line and records it against the vehicle.
// JSON status events are logged and do not produce samples.
func HandleLine(rec SampleRecorder, vehicleID, payload string) error {
	if strings.HasPrefix(payload, "{") {
		var e statusEvent
		if err := json.Unmarshal([]byte(payload), &e); err != nil {
			return fmt.Errorf("failed to unmarshal JSON: %v", err)
		}
		monitoring.Logf("receiver status: clock=%.2f satellites=%d", e.Clock, e.Satellites)
		return nil
	}

	sample, err := ParseSampleLine(vehicleID, payload)
	if err != nil {
		return err
	}
	if err := rec.RecordSample(sample); err != nil {
		return fmt.Errorf("failed to record sample: %v", err)
	}
	return nil
}

// ParseSampleLine parses a CSV telemetry line. Empty fields stay nil so the
// sanitiser downstream can drop or carry them as appropriate.
func ParseSampleLine(vehicleID, line string) (telemetry.RawSample, error) {
	segments := strings.Split(line, ",")
	if len(segments) != 5 {
		return telemetry.RawSample{}, fmt.Errorf("expected 5 fields, got %d in %q", len(segments), line)
	}

	unixMS, err := strconv.ParseInt(strings.TrimSpace(segments[0]), 10, 64)
	if err != nil {
		return telemetry.RawSample{}, fmt.Errorf("failed to parse timestamp: %v", err)
	}

	sample := telemetry.RawSample{
		VehicleID: vehicleID,
		Timestamp: time.UnixMilli(unixMS).UTC(),
	}

	if sample.Latitude, err = parseOptionalFloat(segments[1]); err != nil {
		return telemetry.RawSample{}, fmt.Errorf("failed to parse latitude: %v", err)
	}
	if sample.Longitude, err = parseOptionalFloat(segments[2]); err != nil {
		return telemetry.RawSample{}, fmt.Errorf("failed to parse longitude: %v", err)
	}
	if sample.GroundSpeedKPH, err = parseOptionalFloat(segments[3]); err != nil {
		return telemetry.RawSample{}, fmt.Errorf("failed to parse speed: %v", err)
	}

	rpmField := strings.TrimSpace(segments[4])
	if rpmField != "" {
		rpm, err := strconv.Atoi(rpmField)
		if err != nil {
			return telemetry.RawSample{}, fmt.Errorf("failed to parse rpm: %v", err)
		}
		sample.EngineRPM = telemetry.Int(rpm)
	}
	return sample, nil
}

func parseOptionalFloat(field string) (*float64, error) {
	field = strings.TrimSpace(field)
	if field == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(field, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
