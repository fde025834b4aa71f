package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.bug.st/serial"

	"github.com/fleetsight/fleetsight/internal/telemetry"
)

// MockSerialPort is a mock implementation of serial.Port for testing
type MockSerialPort struct {
	readData  []byte
	readError error
	closed    bool
	readDelay time.Duration
}

func (m *MockSerialPort) Break(time.Duration) error                            { return nil }
func (m *MockSerialPort) Drain() error                                         { return nil }
func (m *MockSerialPort) GetModemStatusBits() (*serial.ModemStatusBits, error) { return nil, nil }
func (m *MockSerialPort) ResetInputBuffer() error                              { return nil }
func (m *MockSerialPort) ResetOutputBuffer() error                             { return nil }
func (m *MockSerialPort) SetDTR(dtr bool) error                                { return nil }
func (m *MockSerialPort) SetMode(mode *serial.Mode) error                      { return nil }
func (m *MockSerialPort) SetReadTimeout(t time.Duration) error                 { return nil }
func (m *MockSerialPort) SetRTS(rts bool) error                                { return nil }

func (m *MockSerialPort) Read(p []byte) (int, error) {
	if m.readError != nil {
		return 0, m.readError
	}
	if m.readDelay > 0 {
		time.Sleep(m.readDelay)
	}
	if len(m.readData) == 0 {
		// Block the read operation if no data is available
		time.Sleep(10 * time.Millisecond)
		return 0, nil
	}
	n := copy(p, m.readData)
	m.readData = m.readData[n:]
	return n, nil
}

func (m *MockSerialPort) Write(p []byte) (int, error) { return len(p), nil }

func (m *MockSerialPort) Close() error {
	m.closed = true
	return nil
}

type recorderFunc func(telemetry.RawSample) error

func (f recorderFunc) RecordSample(s telemetry.RawSample) error { return f(s) }

func TestMonitor_ReadLine(t *testing.T) {
	mockPort := &MockSerialPort{
		readData: []byte("1717243200000,10.5,20.5,12.0,900\n1717243201000,10.6,20.6,13.0,950\n"),
	}
	gpsPort := &GPSPort{Port: mockPort, events: make(chan string, 10)}

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- gpsPort.Monitor(ctx)
	}()

	select {
	case event := <-gpsPort.events:
		if event != "1717243200000,10.5,20.5,12.0,900" {
			t.Errorf("unexpected first event %q", event)
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for first event")
	}

	select {
	case event := <-gpsPort.events:
		if event != "1717243201000,10.6,20.6,13.0,950" {
			t.Errorf("unexpected second event %q", event)
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for second event")
	}

	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Expected nil error, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for monitor to stop")
	}

	if !mockPort.closed {
		t.Error("Port was not closed")
	}
}

func TestMonitor_ContextCancellation(t *testing.T) {
	mockPort := &MockSerialPort{readDelay: 200 * time.Millisecond}
	gpsPort := &GPSPort{Port: mockPort, events: make(chan string, 10)}

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- gpsPort.Monitor(ctx)
	}()

	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Expected nil error, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for monitor to stop after context cancellation")
	}

	if !mockPort.closed {
		t.Error("Port was not closed after context cancellation")
	}
}

func TestMonitor_ScanError(t *testing.T) {
	mockPort := &MockSerialPort{readError: errors.New("read error")}
	gpsPort := &GPSPort{Port: mockPort, events: make(chan string, 10)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := gpsPort.Monitor(ctx); err == nil {
		t.Fatal("Expected error, got nil")
	}
}

func TestParseSampleLine(t *testing.T) {
	sample, err := ParseSampleLine("veh-1", "1717243200000,10.5,-20.25,12.5,900")
	if err != nil {
		t.Fatal(err)
	}
	if sample.VehicleID != "veh-1" {
		t.Errorf("vehicle = %q", sample.VehicleID)
	}
	want := time.UnixMilli(1717243200000).UTC()
	if !sample.Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", sample.Timestamp, want)
	}
	if sample.Latitude == nil || *sample.Latitude != 10.5 {
		t.Errorf("latitude = %v", sample.Latitude)
	}
	if sample.Longitude == nil || *sample.Longitude != -20.25 {
		t.Errorf("longitude = %v", sample.Longitude)
	}
	if sample.GroundSpeedKPH == nil || *sample.GroundSpeedKPH != 12.5 {
		t.Errorf("speed = %v", sample.GroundSpeedKPH)
	}
	if sample.EngineRPM == nil || *sample.EngineRPM != 900 {
		t.Errorf("rpm = %v", sample.EngineRPM)
	}
}

func TestParseSampleLineMissingFields(t *testing.T) {
	sample, err := ParseSampleLine("veh-1", "1717243200000,,,,")
	if err != nil {
		t.Fatal(err)
	}
	if sample.Latitude != nil || sample.Longitude != nil {
		t.Error("empty coordinates should stay nil")
	}
	if sample.GroundSpeedKPH != nil || sample.EngineRPM != nil {
		t.Error("empty speed and rpm should stay nil")
	}
}

func TestParseSampleLineErrors(t *testing.T) {
	cases := []string{
		"",
		"1717243200000,10,20",
		"not-a-ts,10,20,5,900",
		"1717243200000,bogus,20,5,900",
		"1717243200000,10,20,5,bogus",
	}
	for _, line := range cases {
		if _, err := ParseSampleLine("veh-1", line); err == nil {
			t.Errorf("ParseSampleLine(%q) = nil error, want failure", line)
		}
	}
}

func TestHandleLine(t *testing.T) {
	var recorded []telemetry.RawSample
	rec := recorderFunc(func(s telemetry.RawSample) error {
		recorded = append(recorded, s)
		return nil
	})

	if err := HandleLine(rec, "veh-1", "1717243200000,10.5,20.5,12.0,900"); err != nil {
		t.Fatal(err)
	}
	if len(recorded) != 1 {
		t.Fatalf("recorded = %d samples, want 1", len(recorded))
	}

	// JSON status events are logged, not recorded.
	if err := HandleLine(rec, "veh-1", `{"clock": 12.5, "satellites": 7}`); err != nil {
		t.Fatal(err)
	}
	if len(recorded) != 1 {
		t.Error("status event should not produce a sample")
	}

	if err := HandleLine(rec, "veh-1", `{broken json`); err == nil {
		t.Error("malformed JSON should error")
	}
}

func TestHandleLineRecorderFailure(t *testing.T) {
	rec := recorderFunc(func(telemetry.RawSample) error {
		return errors.New("db closed")
	})
	if err := HandleLine(rec, "veh-1", "1717243200000,10.5,20.5,12.0,900"); err == nil {
		t.Error("recorder failure should surface")
	}
}
