package main

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/RyanBlaney/sonido-coach/coach"
	"github.com/RyanBlaney/sonido-coach/config"
	"github.com/RyanBlaney/sonido-coach/logging"
	"github.com/RyanBlaney/sonido-coach/prosody"
	"github.com/RyanBlaney/sonido-coach/session"
	"github.com/RyanBlaney/sonido-coach/tracker"
	"github.com/RyanBlaney/sonido-coach/transcode"
)

type analyzeOptions struct {
	chunk     int
	reference string
	phraseGap time.Duration
	ffmpeg    string
	jobs      int
}

// TimedHint is a hint with the stream time it was raised at.
type TimedHint struct {
	At   time.Duration `json:"at"`
	Hint coach.Hint    `json:"hint"`
}

// Report summarizes one analyzed file.
type Report struct {
	File        string                 `json:"file"`
	Detector    string                 `json:"detector"`
	SampleRate  int                    `json:"sample_rate"`
	Duration    time.Duration          `json:"duration"`
	VoicedRatio float64                `json:"voiced_ratio"`
	Hints       []TimedHint            `json:"hints"`
	Phrases     []session.PhraseResult `json:"phrases"`
}

func newAnalyzeCmd(load func() (*config.Config, error)) *cobra.Command {
	opts := analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze [flags] files...",
		Short: "Analyze recorded takes and print JSON reports",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, files []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return runAnalyze(cmd, cfg, opts, files)
		},
	}
	f := cmd.Flags()
	f.IntVar(&opts.chunk, "chunk", 480, "samples per pushed chunk")
	f.StringVar(&opts.reference, "reference", "", "reference take to rate phrase contours against")
	f.DurationVar(&opts.phraseGap, "phrase-gap", 400*time.Millisecond, "unvoiced gap that ends a phrase")
	f.StringVar(&opts.ffmpeg, "ffmpeg", "", "ffmpeg binary for formats other than WAV and FLAC")
	f.IntVar(&opts.jobs, "jobs", runtime.NumCPU(), "files analyzed concurrently")
	return cmd
}

func runAnalyze(cmd *cobra.Command, cfg *config.Config, opts analyzeOptions, files []string) error {
	if opts.chunk < 1 {
		return fmt.Errorf("--chunk must be >= 1, got %d", opts.chunk)
	}
	ctx := cmd.Context()
	logger := logging.WithFields(logging.Fields{"component": "analyze"})

	decCfg := transcode.DefaultDecoderConfig()
	decCfg.FFmpegPath = opts.ffmpeg
	dec := transcode.NewDecoder(decCfg, logger)

	var reference [][]prosody.Frame
	if opts.reference != "" {
		var err error
		if reference, err = referencePhrases(ctx, cfg.Session, dec, opts.reference, opts.phraseGap); err != nil {
			return fmt.Errorf("reference: %w", err)
		}
		logger.Debug("reference split", logging.Fields{"phrases": len(reference)})
	}

	reports := make([]Report, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, opts.jobs))
	for i, file := range files {
		g.Go(func() error {
			audio, err := dec.DecodeFile(gctx, file)
			if err != nil {
				return err
			}
			r, err := analyzeTake(gctx, cfg.Session, audio, reference, opts, logger)
			if err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}
			r.File = file
			reports[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	for _, r := range reports {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

// phraseSplitter ends a phrase once voicing has stopped for gap.
type phraseSplitter struct {
	gap        time.Duration
	open       bool
	lastVoiced time.Duration
}

// observe records one hop and reports whether it ends the open phrase.
func (p *phraseSplitter) observe(t time.Duration, voiced bool) bool {
	if voiced {
		p.open = true
		p.lastVoiced = t
		return false
	}
	if p.open && t-p.lastVoiced >= p.gap {
		p.open = false
		return true
	}
	return false
}

// analyzeTake runs one decoded take through a fresh session, ending a phrase
// whenever voicing stops for at least the phrase gap. Phrase k is rated
// against reference phrase k when there is one.
func analyzeTake(ctx context.Context, cfg session.Config, audio *transcode.AudioData, reference [][]prosody.Frame, opts analyzeOptions, logger logging.Logger) (Report, error) {
	cfg.Engine.InputSampleRate = audio.SampleRate
	s, err := session.New(ctx, cfg, session.WithLogger(logger.WithFields(logging.Fields{"file": audio.Source})))
	if err != nil {
		return Report{}, err
	}

	r := Report{
		Detector:   s.Engine().DetectorName(),
		SampleRate: audio.SampleRate,
		Duration:   audio.Duration,
		Hints:      []TimedHint{},
		Phrases:    []session.PhraseResult{},
	}

	var hops, voiced int
	split := phraseSplitter{gap: opts.phraseGap}
	endPhrase := func() {
		var ref []prosody.Frame
		if k := len(r.Phrases); k < len(reference) {
			ref = reference[k]
		}
		r.Phrases = append(r.Phrases, s.EndPhrase(ref))
	}
	for chunk := range transcode.Chunks(audio.PCM, opts.chunk) {
		if err := ctx.Err(); err != nil {
			return Report{}, err
		}
		up, ok := s.PushSamples(chunk)
		if !ok {
			continue
		}
		hops++
		if up.Hint != nil {
			r.Hints = append(r.Hints, TimedHint{At: up.Snapshot.T, Hint: *up.Hint})
		}
		if up.Snapshot.Voiced {
			voiced++
		}
		if split.observe(up.Snapshot.T, up.Snapshot.Voiced) {
			endPhrase()
		}
	}
	if split.open {
		endPhrase()
	}
	if hops > 0 {
		r.VoicedRatio = float64(voiced) / float64(hops)
	}
	return r, nil
}

// referencePhrases tracks the reference take and splits its pitch contour
// into phrases with the same gap rule as the analyzed takes.
func referencePhrases(ctx context.Context, cfg session.Config, dec *transcode.Decoder, path string, gap time.Duration) ([][]prosody.Frame, error) {
	contour, err := referenceContour(ctx, cfg, dec, path)
	if err != nil {
		return nil, err
	}
	return splitPhrases(contour, gap), nil
}

// splitPhrases cuts contour after every frame that ends a phrase. A phrase
// still open at the end is kept.
func splitPhrases(contour []prosody.Frame, gap time.Duration) [][]prosody.Frame {
	var (
		phrases [][]prosody.Frame
		start   int
	)
	split := phraseSplitter{gap: gap}
	for i, f := range contour {
		if split.observe(f.T, f.Voiced()) {
			phrases = append(phrases, contour[start:i+1])
			start = i + 1
		}
	}
	if split.open {
		phrases = append(phrases, contour[start:])
	}
	return phrases
}

// referenceContour tracks the reference take and returns its pitch contour.
func referenceContour(ctx context.Context, cfg session.Config, dec *transcode.Decoder, path string) ([]prosody.Frame, error) {
	audio, err := dec.DecodeFile(ctx, path)
	if err != nil {
		return nil, err
	}
	engineCfg := cfg.Engine
	engineCfg.InputSampleRate = audio.SampleRate

	var contour []prosody.Frame
	engine, err := tracker.New(ctx, engineCfg, tracker.WithSnapshotSink(func(s tracker.Snapshot) {
		f := prosody.Frame{T: s.T}
		if s.Voiced {
			f.F0Hz = s.PitchHz
		}
		contour = append(contour, f)
	}))
	if err != nil {
		return nil, err
	}
	engine.PushSamples(audio.PCM)
	return contour, nil
}
