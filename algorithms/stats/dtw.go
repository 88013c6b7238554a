package stats

import (
	"fmt"
	"math"
)

// DTWAlignment aligns two 1-D series with Dynamic Time Warping using the
// symmetric (i-1,j), (i,j-1), (i-1,j-1) step pattern and absolute-difference
// local cost.
type DTWAlignment struct {
	constraintBand int // Sakoe-Chiba band radius, <=0 disables
}

// DTWResult contains DTW alignment results
type DTWResult struct {
	Distance    float64      `json:"distance"`     // Path-length normalized distance
	Total       float64      `json:"total"`        // Accumulated cost
	Path        []AlignPoint `json:"path"`         // Optimal alignment path
	QueryLength int          `json:"query_length"` // Length of query sequence
	RefLength   int          `json:"ref_length"`   // Length of reference sequence
}

// AlignPoint represents a point in the alignment path
type AlignPoint struct {
	QueryIndex int     `json:"query_index"`
	RefIndex   int     `json:"ref_index"`
	Cost       float64 `json:"cost"` // Local cost at this point
}

// NewDTWAlignment creates an unconstrained DTW.
func NewDTWAlignment() *DTWAlignment {
	return &DTWAlignment{constraintBand: -1}
}

// NewDTWAlignmentWithBand creates a DTW restricted to |i-j| <= band, widened
// as needed so the end cell stays reachable for unequal lengths.
func NewDTWAlignmentWithBand(band int) *DTWAlignment {
	return &DTWAlignment{constraintBand: band}
}

// AlignVectors performs DTW alignment between two series.
func (dtw *DTWAlignment) AlignVectors(query, reference []float64) (*DTWResult, error) {
	if len(query) == 0 || len(reference) == 0 {
		return nil, fmt.Errorf("empty sequences provided")
	}

	queryLen := len(query)
	refLen := len(reference)

	band := dtw.constraintBand
	if band > 0 {
		if diff := queryLen - refLen; diff > band || -diff > band {
			band = max(diff, -diff)
		}
	}

	// Padded cost matrix, row/column 0 are the boundary
	costMatrix := make([][]float64, queryLen+1)
	for i := range costMatrix {
		costMatrix[i] = make([]float64, refLen+1)
		for j := range costMatrix[i] {
			costMatrix[i][j] = math.Inf(1)
		}
	}
	costMatrix[0][0] = 0

	for i := 1; i <= queryLen; i++ {
		for j := 1; j <= refLen; j++ {
			if band > 0 && math.Abs(float64(i-j)) > float64(band) {
				continue
			}
			local := math.Abs(query[i-1] - reference[j-1])
			best := math.Min(math.Min(costMatrix[i-1][j], costMatrix[i][j-1]), costMatrix[i-1][j-1])
			costMatrix[i][j] = local + best
		}
	}

	total := costMatrix[queryLen][refLen]
	if math.IsInf(total, 1) {
		return nil, fmt.Errorf("no alignment path within band %d", band)
	}

	path := dtw.backtrack(costMatrix, query, reference)

	return &DTWResult{
		Distance:    total / float64(len(path)),
		Total:       total,
		Path:        path,
		QueryLength: queryLen,
		RefLength:   refLen,
	}, nil
}

// backtrack walks the cheapest predecessors from the end cell.
func (dtw *DTWAlignment) backtrack(costMatrix [][]float64, query, reference []float64) []AlignPoint {
	i, j := len(query), len(reference)
	path := make([]AlignPoint, 0, i+j)

	for i > 0 && j > 0 {
		path = append(path, AlignPoint{
			QueryIndex: i - 1,
			RefIndex:   j - 1,
			Cost:       math.Abs(query[i-1] - reference[j-1]),
		})

		diag, up, left := costMatrix[i-1][j-1], costMatrix[i-1][j], costMatrix[i][j-1]
		switch {
		case diag <= up && diag <= left:
			i, j = i-1, j-1
		case up <= left:
			i--
		default:
			j--
		}
	}

	// reverse into query order
	for l, r := 0, len(path)-1; l < r; l, r = l+1, r-1 {
		path[l], path[r] = path[r], path[l]
	}
	return path
}
