package config_test

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/RyanBlaney/sonido-coach/config"
)

func TestLoadFromReader_EmptyYieldsDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if !reflect.DeepEqual(cfg, config.Default()) {
		t.Fatalf("empty config differs from defaults:\n%+v", cfg)
	}
}

func TestLoadFromReader_MergesOverDefaults(t *testing.T) {
	t.Parallel()
	yaml := `
log:
  level: debug
engine:
  median_window: 7
  detector:
    min_hz: 80
coach:
  rate_limit: 2s
target:
  center_hz: 220
prosody:
  window: 900ms
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	def := config.Default()

	if cfg.Log.Level != "debug" {
		t.Errorf("log.level = %q", cfg.Log.Level)
	}
	if cfg.Session.Engine.MedianWindow != 7 {
		t.Errorf("median_window = %d, want 7", cfg.Session.Engine.MedianWindow)
	}
	if cfg.Session.Engine.Detector.MinHz != 80 {
		t.Errorf("detector.min_hz = %v, want 80", cfg.Session.Engine.Detector.MinHz)
	}
	if cfg.Session.Engine.Detector.MaxHz != def.Session.Engine.Detector.MaxHz {
		t.Errorf("detector.max_hz = %v, want default", cfg.Session.Engine.Detector.MaxHz)
	}
	if cfg.Session.Coach.RateLimit != 2*time.Second {
		t.Errorf("rate_limit = %v, want 2s", cfg.Session.Coach.RateLimit)
	}
	if cfg.Session.Coach.AntiRepeat != def.Session.Coach.AntiRepeat {
		t.Errorf("anti_repeat = %v, want default", cfg.Session.Coach.AntiRepeat)
	}
	if cfg.Session.Target.CenterHz != 220 || cfg.Session.Target.ToleranceCents != 50 {
		t.Errorf("target = %+v", cfg.Session.Target)
	}
	if cfg.Session.Prosody.Window != 900*time.Millisecond {
		t.Errorf("prosody.window = %v", cfg.Session.Prosody.Window)
	}
}

func TestLoadFromReader_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown key", "coach:\n  cadence: 1s\n", "cadence"},
		{"bad log level", "log:\n  level: loud\n", "log.level"},
		{"bad log format", "log:\n  format: xml\n", "log.format"},
		{"bad duration", "coach:\n  rate_limit: soon\n", "decode"},
		{"even median window", "engine:\n  median_window: 4\n", "median"},
		{"negative history", "history: -1s\n", "history"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err, tt.want)
			}
		})
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	t.Parallel()
	def := config.Default()
	data, err := config.Marshal(def)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.Contains(data, []byte("rate_limit: 1s")) {
		t.Errorf("durations should be written as strings:\n%s", data)
	}
	got, err := config.LoadFromReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("LoadFromReader: %v\n%s", err, data)
	}
	if !reflect.DeepEqual(got, def) {
		t.Fatalf("round trip changed the config:\n%s", data)
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "coach.yaml")
	if err := os.WriteFile(path, []byte("coach:\n  anti_repeat: 6s\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Session.Coach.AntiRepeat != 6*time.Second {
		t.Fatalf("anti_repeat = %v, want 6s", cfg.Session.Coach.AntiRepeat)
	}

	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLogConfigNewLogger(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	l := config.LogConfig{Level: "warn", Format: config.LogJSON}.NewLogger(&buf)
	l.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info logged at warn level: %q", buf.String())
	}
	l.Warn("kept")
	if !strings.Contains(buf.String(), `"message":"kept"`) {
		t.Fatalf("warn not logged as JSON: %q", buf.String())
	}
}
