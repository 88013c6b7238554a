package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/RyanBlaney/sonido-coach/coach"
	"github.com/RyanBlaney/sonido-coach/prosody"
	"github.com/RyanBlaney/sonido-coach/tracker"
)

// Target is the pitch band a practice step aims for. A zero CenterHz means
// no target.
type Target struct {
	CenterHz       float64 `yaml:"center_hz" json:"center_hz"`
	ToleranceCents float64 `yaml:"tolerance_cents" json:"tolerance_cents"`
}

// Config configures a Session and the components it owns.
type Config struct {
	Engine  tracker.Config      `yaml:"engine" json:"engine"`
	Coach   coach.Config        `yaml:"coach" json:"coach"`
	Prosody prosody.Options     `yaml:"prosody" json:"prosody"`
	Tier    prosody.TierOptions `yaml:"tier" json:"tier"`

	Target          Target  `yaml:"target" json:"target"`
	LoudnessFloorDB float64 `yaml:"loudness_floor_db" json:"loudness_floor_db"`
	// History bounds the snapshot history kept for the policy and the
	// phrase contour.
	History time.Duration `yaml:"history" json:"history"`
}

// DefaultConfig returns defaults for every component.
func DefaultConfig() Config {
	return Config{
		Engine:          tracker.DefaultConfig(),
		Coach:           coach.DefaultConfig(),
		Prosody:         prosody.DefaultOptions(),
		Tier:            prosody.DefaultTierOptions(),
		Target:          Target{ToleranceCents: 50},
		LoudnessFloorDB: -60,
		History:         20 * time.Second,
	}
}

// Validate checks the session fields and every component configuration.
func (c Config) Validate() error {
	var errs []error
	if err := c.Engine.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Coach.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Prosody.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Target.CenterHz < 0 {
		errs = append(errs, fmt.Errorf("target.center_hz must be >= 0, got %v", c.Target.CenterHz))
	}
	if c.Target.CenterHz > 0 && c.Target.ToleranceCents <= 0 {
		errs = append(errs, fmt.Errorf("target.tolerance_cents must be > 0, got %v", c.Target.ToleranceCents))
	}
	if c.LoudnessFloorDB >= 0 {
		errs = append(errs, fmt.Errorf("loudness_floor_db must be < 0, got %v", c.LoudnessFloorDB))
	}
	if c.History <= 0 {
		errs = append(errs, fmt.Errorf("history must be > 0, got %v", c.History))
	}
	return errors.Join(errs...)
}
