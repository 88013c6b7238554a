package tonal

import (
	"context"
	"fmt"
)

// NewDetector builds and initializes the detector selected by cfg.
//
// The returned detector is always usable. When the model detector cannot be
// initialized, an initialized YIN detector is returned together with the
// initialization error so the caller can log and count the fallback.
func NewDetector(ctx context.Context, cfg Config) (Detector, error) {
	yin := NewYinDetector(cfg)
	if cfg.Kind != KindModel {
		return yin, nil
	}

	model := NewModelDetector(cfg.Model)
	if err := model.Initialize(ctx); err != nil {
		return yin, fmt.Errorf("model detector unavailable, using yin: %w", err)
	}
	return model, nil
}
