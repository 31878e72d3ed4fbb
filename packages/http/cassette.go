package http

import (
	"fmt"
	"net/http"

	"gopkg.in/dnaeon/go-vcr.v2/cassette"
	"gopkg.in/dnaeon/go-vcr.v2/recorder"
)

// CassetteMode selects whether a cassette records or replays.
type CassetteMode int

const (
	CassetteReplay CassetteMode = iota
	CassetteRecord
	CassetteDisabled
)

// ParseCassetteMode accepts "replay", "record" and "disabled".
func ParseCassetteMode(s string) (CassetteMode, error) {
	switch s {
	case "", "replay", "replaying":
		return CassetteReplay, nil
	case "record", "recording":
		return CassetteRecord, nil
	case "disabled", "off":
		return CassetteDisabled, nil
	default:
		return CassetteReplay, fmt.Errorf("unknown cassette mode: %q", s)
	}
}

// Cassette is a record/replay round tripper backed by a YAML file.
type Cassette struct {
	rec *recorder.Recorder
}

// OpenCassette opens path (without the .yaml suffix). real is used when
// recording or disabled; nil means http.DefaultTransport.
func OpenCassette(path string, mode CassetteMode, real http.RoundTripper) (*Cassette, error) {
	var m recorder.Mode
	switch mode {
	case CassetteRecord:
		m = recorder.ModeRecording
	case CassetteDisabled:
		m = recorder.ModeDisabled
	default:
		m = recorder.ModeReplaying
	}

	rec, err := recorder.NewAsMode(path, m, real)
	if err != nil {
		return nil, fmt.Errorf("opening cassette %s: %w", path, err)
	}

	// Bodies are not part of the match key.
	rec.SetMatcher(func(r *http.Request, i cassette.Request) bool {
		return r.Method == i.Method && r.URL.String() == i.URL
	})

	return &Cassette{rec: rec}, nil
}

// RoundTripper returns the recorder for use with WithRoundTripper.
func (c *Cassette) RoundTripper() http.RoundTripper {
	return c.rec
}

// Stop flushes recorded interactions to disk.
func (c *Cassette) Stop() error {
	return c.rec.Stop()
}
