package transcode

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"iter"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"

	"github.com/RyanBlaney/sonido-coach/logging"
)

// ErrUnsupportedFormat is returned for input that is neither WAV nor FLAC
// when no ffmpeg fallback is configured.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Format names the container an AudioData was decoded from.
type Format string

const (
	FormatWAV    Format = "wav"
	FormatFLAC   Format = "flac"
	FormatFFmpeg Format = "ffmpeg"
)

// AudioData is decoded mono audio.
type AudioData struct {
	PCM        []float64     `json:"-"` // mono, [-1, 1]
	SampleRate int           `json:"sample_rate"`
	Channels   int           `json:"channels"` // source channel count before downmix
	Duration   time.Duration `json:"duration"`
	Format     Format        `json:"format"`
	Source     string        `json:"source,omitempty"`
}

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	// MaxDuration truncates decoded audio; 0 means no limit.
	MaxDuration time.Duration `yaml:"max_duration" json:"max_duration"`

	// FFmpegPath enables decoding other formats through ffmpeg. Empty disables it.
	FFmpegPath       string        `yaml:"ffmpeg_path" json:"ffmpeg_path"`
	FFmpegSampleRate int           `yaml:"ffmpeg_sample_rate" json:"ffmpeg_sample_rate"`
	Timeout          time.Duration `yaml:"timeout" json:"timeout"` // for ffmpeg runs
}

// DefaultDecoderConfig returns default decoder configuration
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		FFmpegSampleRate: 48000,
		Timeout:          30 * time.Second,
	}
}

// Decoder turns audio files into mono float64 PCM.
type Decoder struct {
	config *DecoderConfig
	logger logging.Logger
}

// NewDecoder creates a new audio decoder
func NewDecoder(config *DecoderConfig, logger logging.Logger) *Decoder {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	if logger == nil {
		logger = logging.WithFields(logging.Fields{"component": "audio_decoder"})
	}
	return &Decoder{config: config, logger: logger}
}

// DecodeFile decodes the file at path. The container is detected from the
// file header.
func (d *Decoder) DecodeFile(ctx context.Context, path string) (*AudioData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", path, err)
	}
	defer f.Close()

	logger := d.logger.WithFields(logging.Fields{"filename": path})

	header := make([]byte, 4)
	if _, err := io.ReadFull(f, header); err != nil {
		return nil, fmt.Errorf("read header of %q: %w", path, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek %q: %w", path, err)
	}

	var data *AudioData
	switch string(header) {
	case "RIFF":
		data, err = d.decodeWAV(f)
	case "fLaC":
		data, err = d.decodeFLAC(f)
	default:
		if d.config.FFmpegPath == "" {
			return nil, fmt.Errorf("%q: %w", path, ErrUnsupportedFormat)
		}
		data, err = d.decodeWithFFmpeg(ctx, path, logger)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %q: %w", path, err)
	}

	data.Source = path
	d.truncate(data)
	logger.Debug("audio decoded", logging.Fields{
		"format":      data.Format,
		"sample_rate": data.SampleRate,
		"channels":    data.Channels,
		"duration":    data.Duration.String(),
	})
	return data, nil
}

// DecodeReader decodes a WAV or FLAC stream from r.
func (d *Decoder) DecodeReader(r io.ReadSeeker) (*AudioData, error) {
	br := bufio.NewReader(r)
	header, err := br.Peek(4)
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	var data *AudioData
	switch string(header) {
	case "RIFF":
		if _, err := r.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("seek: %w", err)
		}
		data, err = d.decodeWAV(r)
	case "fLaC":
		data, err = d.decodeFLAC(br)
	default:
		return nil, ErrUnsupportedFormat
	}
	if err != nil {
		return nil, err
	}
	d.truncate(data)
	return data, nil
}

func (d *Decoder) decodeWAV(r io.ReadSeeker) (*AudioData, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, errors.New("invalid wav file")
	}
	if dec.WavAudioFormat != 1 {
		return nil, fmt.Errorf("wav audio format %d: only integer PCM is supported", dec.WavAudioFormat)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("read wav samples: %w", err)
	}
	return fromIntBuffer(buf, int(dec.BitDepth), FormatWAV)
}

func fromIntBuffer(buf *audio.IntBuffer, bitDepth int, format Format) (*AudioData, error) {
	if buf.Format == nil || buf.Format.NumChannels < 1 || buf.Format.SampleRate < 1 {
		return nil, errors.New("missing audio format")
	}
	if bitDepth < 1 || bitDepth > 32 {
		return nil, fmt.Errorf("unsupported bit depth %d", bitDepth)
	}
	channels := buf.Format.NumChannels
	scale := 1 / float64(int64(1)<<(bitDepth-1))

	frames := len(buf.Data) / channels
	pcm := make([]float64, frames)
	for i := range pcm {
		sum := 0
		for ch := 0; ch < channels; ch++ {
			sum += buf.Data[i*channels+ch]
		}
		pcm[i] = float64(sum) * scale / float64(channels)
	}
	return newAudioData(pcm, buf.Format.SampleRate, channels, format), nil
}

func (d *Decoder) decodeFLAC(r io.Reader) (*AudioData, error) {
	stream, err := flac.New(r)
	if err != nil {
		return nil, fmt.Errorf("open flac stream: %w", err)
	}
	defer stream.Close()

	info := stream.Info
	channels := int(info.NChannels)
	if channels < 1 || info.SampleRate == 0 {
		return nil, errors.New("invalid flac stream info")
	}
	scale := 1 / float64(int64(1)<<(info.BitsPerSample-1))

	pcm := make([]float64, 0, info.NSamples)
	for {
		frame, err := stream.ParseNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse flac frame: %w", err)
		}
		n := len(frame.Subframes[0].Samples)
		for i := 0; i < n; i++ {
			var sum int64
			for _, sub := range frame.Subframes {
				sum += int64(sub.Samples[i])
			}
			pcm = append(pcm, float64(sum)*scale/float64(channels))
		}
	}
	return newAudioData(pcm, int(info.SampleRate), channels, FormatFLAC), nil
}

// decodeWithFFmpeg pipes path through ffmpeg as mono little-endian float64.
func (d *Decoder) decodeWithFFmpeg(ctx context.Context, path string, logger logging.Logger) (*AudioData, error) {
	if d.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.Timeout)
		defer cancel()
	}
	rate := d.config.FFmpegSampleRate
	if rate <= 0 {
		rate = DefaultDecoderConfig().FFmpegSampleRate
	}
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", path,
		"-f", "f64le", "-ac", "1", "-ar", strconv.Itoa(rate),
		"pipe:1",
	}
	logger.Debug("running ffmpeg", logging.Fields{"args": strings.Join(args, " ")})

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, d.config.FFmpegPath, args...)
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		logger.Error(err, "ffmpeg decode failed", logging.Fields{"stderr": stderr.String()})
		return nil, fmt.Errorf("ffmpeg decode failed: %w", err)
	}
	return newAudioData(bytesToFloat64(output), rate, 1, FormatFFmpeg), nil
}

func bytesToFloat64(data []byte) []float64 {
	n := len(data) / 8
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
	}
	return samples
}

func newAudioData(pcm []float64, sampleRate, channels int, format Format) *AudioData {
	return &AudioData{
		PCM:        pcm,
		SampleRate: sampleRate,
		Channels:   channels,
		Duration:   samplesDuration(len(pcm), sampleRate),
		Format:     format,
	}
}

func (d *Decoder) truncate(data *AudioData) {
	if d.config.MaxDuration <= 0 {
		return
	}
	limit := int(d.config.MaxDuration.Seconds() * float64(data.SampleRate))
	if limit < len(data.PCM) {
		data.PCM = data.PCM[:limit]
		data.Duration = samplesDuration(limit, data.SampleRate)
	}
}

func samplesDuration(n, sampleRate int) time.Duration {
	return time.Duration(float64(n) / float64(sampleRate) * float64(time.Second))
}

// Chunks yields consecutive slices of at most size samples, the way an audio
// callback delivers them. The slices alias pcm.
func Chunks(pcm []float64, size int) iter.Seq[[]float64] {
	return func(yield func([]float64) bool) {
		if size <= 0 {
			return
		}
		for len(pcm) > 0 {
			n := min(size, len(pcm))
			if !yield(pcm[:n]) {
				return
			}
			pcm = pcm[n:]
		}
	}
}
