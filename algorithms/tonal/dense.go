package tonal

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"gonum.org/v1/gonum/mat"
)

// denseFormat identifies the JSON export understood by LoadDenseModel.
const denseFormat = "sonido-dense-v1"

// Output layouts of a dense model.
const (
	OutputBins      = "bins"      // final layer yields one logit per pitch bin
	OutputFrequency = "frequency" // final layer yields [hz, confidence]
)

type serializedLayer struct {
	Rows       int       `json:"rows"`
	Cols       int       `json:"cols"`
	Weights    []float64 `json:"weights"` // row-major, Rows x Cols
	Bias       []float64 `json:"bias"`
	Activation string    `json:"activation"` // relu, sigmoid, tanh, linear
}

type serializedDense struct {
	Format    string            `json:"format"`
	InputSize int               `json:"input_size"`
	Output    string            `json:"output"`
	Layers    []serializedLayer `json:"layers"`
}

type denseLayer struct {
	w          *mat.Dense
	b          *mat.VecDense
	out        *mat.VecDense
	activation string
}

// DenseModel is a feed-forward network evaluated with gonum/mat.
// It keeps per-layer output vectors, so it must be owned by one goroutine.
type DenseModel struct {
	inputSize int
	output    string
	layers    []denseLayer
	in        *mat.VecDense
}

// LoadDenseModelFile loads a dense model export from path. A missing or
// unreadable file wraps ErrModelUnavailable.
func LoadDenseModelFile(path string) (*DenseModel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %q: %v", ErrModelUnavailable, path, err)
	}
	defer f.Close()

	m, err := LoadDenseModel(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrModelUnavailable, path, err)
	}
	return m, nil
}

// LoadDenseModel decodes and validates a dense model export.
func LoadDenseModel(r io.Reader) (*DenseModel, error) {
	var sd serializedDense
	if err := json.NewDecoder(r).Decode(&sd); err != nil {
		return nil, fmt.Errorf("decode dense model: %w", err)
	}
	if sd.Format != denseFormat {
		return nil, fmt.Errorf("unsupported model format %q", sd.Format)
	}
	if sd.InputSize <= 0 {
		return nil, errors.New("model input_size must be > 0")
	}
	if sd.Output != OutputBins && sd.Output != OutputFrequency {
		return nil, fmt.Errorf("unsupported model output %q", sd.Output)
	}
	if len(sd.Layers) == 0 {
		return nil, errors.New("model has no layers")
	}

	m := &DenseModel{
		inputSize: sd.InputSize,
		output:    sd.Output,
		in:        mat.NewVecDense(sd.InputSize, nil),
	}

	prev := sd.InputSize
	for i, l := range sd.Layers {
		if l.Cols != prev {
			return nil, fmt.Errorf("layer %d: cols %d does not match previous width %d", i, l.Cols, prev)
		}
		if l.Rows <= 0 || len(l.Weights) != l.Rows*l.Cols {
			return nil, fmt.Errorf("layer %d: expected %d weights, got %d", i, l.Rows*l.Cols, len(l.Weights))
		}
		if len(l.Bias) != l.Rows {
			return nil, fmt.Errorf("layer %d: expected %d biases, got %d", i, l.Rows, len(l.Bias))
		}
		switch l.Activation {
		case "relu", "sigmoid", "tanh", "linear", "":
		default:
			return nil, fmt.Errorf("layer %d: unknown activation %q", i, l.Activation)
		}
		m.layers = append(m.layers, denseLayer{
			w:          mat.NewDense(l.Rows, l.Cols, l.Weights),
			b:          mat.NewVecDense(l.Rows, l.Bias),
			out:        mat.NewVecDense(l.Rows, nil),
			activation: l.Activation,
		})
		prev = l.Rows
	}
	if sd.Output == OutputFrequency && prev != 2 {
		return nil, fmt.Errorf("frequency output requires 2 final units, got %d", prev)
	}
	return m, nil
}

// InputSize returns the expected input length.
func (m *DenseModel) InputSize() int {
	return m.inputSize
}

// Infer runs one forward pass.
func (m *DenseModel) Infer(input []float64) (ModelOutput, error) {
	if len(input) != m.inputSize {
		return ModelOutput{}, fmt.Errorf("input length %d, model expects %d", len(input), m.inputSize)
	}
	for i, v := range input {
		m.in.SetVec(i, v)
	}

	var x mat.Vector = m.in
	for i := range m.layers {
		l := &m.layers[i]
		l.out.MulVec(l.w, x)
		l.out.AddVec(l.out, l.b)
		activate(l.out, l.activation)
		x = l.out
	}

	last := m.layers[len(m.layers)-1].out
	if m.output == OutputFrequency {
		return ModelOutput{
			FrequencyHz:  last.AtVec(0),
			Confidence:   last.AtVec(1),
			HasFrequency: true,
		}, nil
	}

	// RawVector aliases layer storage; callers consume it before the next Infer.
	return ModelOutput{Logits: last.RawVector().Data}, nil
}

func activate(v *mat.VecDense, activation string) {
	for i := 0; i < v.Len(); i++ {
		x := v.AtVec(i)
		switch activation {
		case "relu":
			x = math.Max(0, x)
		case "sigmoid":
			x = 1 / (1 + math.Exp(-x))
		case "tanh":
			x = math.Tanh(x)
		}
		v.SetVec(i, x)
	}
}
