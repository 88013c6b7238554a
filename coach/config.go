package coach

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is wrapped by every configuration error.
var ErrInvalidConfig = errors.New("coach: invalid config")

// Config tunes the policy. Durations are in policy clock time.
type Config struct {
	// Hop is the duration represented by one history frame.
	Hop time.Duration `yaml:"hop" json:"hop"`

	RateLimit       time.Duration `yaml:"rate_limit" json:"rate_limit"`
	AntiRepeat      time.Duration `yaml:"anti_repeat" json:"anti_repeat"`
	DwellFirstHint  time.Duration `yaml:"dwell_first_hint" json:"dwell_first_hint"`
	DwellAfterFirst time.Duration `yaml:"dwell_after_first" json:"dwell_after_first"`

	// safety
	LoudnessThreshold float64       `yaml:"loudness_threshold" json:"loudness_threshold"`
	LoudWindow        time.Duration `yaml:"loud_window" json:"loud_window"`

	// environment
	QuietThreshold float64       `yaml:"quiet_threshold" json:"quiet_threshold"`
	QuietWindow    time.Duration `yaml:"quiet_window" json:"quiet_window"`

	// technique
	JitterThreshold     float64       `yaml:"jitter_threshold" json:"jitter_threshold"`
	TargetCheckAfter    time.Duration `yaml:"target_check_after" json:"target_check_after"`
	TargetMinRatio      float64       `yaml:"target_min_ratio" json:"target_min_ratio"`
	ConfidenceMinFrames int           `yaml:"confidence_min_frames" json:"confidence_min_frames"`
	ConfidenceThreshold float64       `yaml:"confidence_threshold" json:"confidence_threshold"`

	// praise
	PraiseWindow      time.Duration `yaml:"praise_window" json:"praise_window"`
	PraiseTargetRatio float64       `yaml:"praise_target_ratio" json:"praise_target_ratio"`
	PraiseJitterMax   float64       `yaml:"praise_jitter_max" json:"praise_jitter_max"`
}

// DefaultConfig returns the standard policy settings.
func DefaultConfig() Config {
	return Config{
		Hop:                 10 * time.Millisecond,
		RateLimit:           time.Second,
		AntiRepeat:          4 * time.Second,
		DwellFirstHint:      0,
		DwellAfterFirst:     time.Second,
		LoudnessThreshold:   0.80,
		LoudWindow:          5 * time.Second,
		QuietThreshold:      0.05,
		QuietWindow:         3 * time.Second,
		JitterThreshold:     0.35,
		TargetCheckAfter:    15 * time.Second,
		TargetMinRatio:      0.5,
		ConfidenceMinFrames: 100,
		ConfidenceThreshold: 0.30,
		PraiseWindow:        3 * time.Second,
		PraiseTargetRatio:   0.8,
		PraiseJitterMax:     0.15,
	}
}

// Validate reports every configuration error, wrapped in ErrInvalidConfig.
func (c Config) Validate() error {
	var errs []error
	if c.Hop <= 0 {
		errs = append(errs, fmt.Errorf("hop must be > 0, got %v", c.Hop))
	}
	type check struct {
		name string
		bad  bool
		got  any
		want string
	}
	for _, ch := range []check{
		{"rate_limit", c.RateLimit < 0, c.RateLimit, ">= 0"},
		{"anti_repeat", c.AntiRepeat < 0, c.AntiRepeat, ">= 0"},
		{"dwell_first_hint", c.DwellFirstHint < 0, c.DwellFirstHint, ">= 0"},
		{"dwell_after_first", c.DwellAfterFirst < 0, c.DwellAfterFirst, ">= 0"},
		{"target_check_after", c.TargetCheckAfter < 0, c.TargetCheckAfter, ">= 0"},
		{"loud_window", c.LoudWindow <= 0, c.LoudWindow, "> 0"},
		{"quiet_window", c.QuietWindow <= 0, c.QuietWindow, "> 0"},
		{"praise_window", c.PraiseWindow <= 0, c.PraiseWindow, "> 0"},
		{"loudness_threshold", !unit(c.LoudnessThreshold), c.LoudnessThreshold, "in [0,1]"},
		{"quiet_threshold", !unit(c.QuietThreshold), c.QuietThreshold, "in [0,1]"},
		{"target_min_ratio", !unit(c.TargetMinRatio), c.TargetMinRatio, "in [0,1]"},
		{"confidence_threshold", !unit(c.ConfidenceThreshold), c.ConfidenceThreshold, "in [0,1]"},
		{"praise_target_ratio", !unit(c.PraiseTargetRatio), c.PraiseTargetRatio, "in [0,1]"},
	} {
		if ch.bad {
			errs = append(errs, fmt.Errorf("%s must be %s, got %v", ch.name, ch.want, ch.got))
		}
	}
	if c.JitterThreshold <= 0 {
		errs = append(errs, fmt.Errorf("jitter_threshold must be > 0, got %v", c.JitterThreshold))
	}
	if c.PraiseJitterMax < 0 {
		errs = append(errs, fmt.Errorf("praise_jitter_max must be >= 0, got %v", c.PraiseJitterMax))
	}
	if c.ConfidenceMinFrames < 1 {
		errs = append(errs, fmt.Errorf("confidence_min_frames must be >= 1, got %d", c.ConfidenceMinFrames))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

func unit(v float64) bool {
	return v >= 0 && v <= 1
}
