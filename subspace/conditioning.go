package subspace

import (
	"errors"

	"gonum.org/v1/gonum/mat"
)

// errSVDFailed is returned when gonum's SVD fails to converge on the
// conditioning target.
var errSVDFailed = errors.New("itsolv: SVD factorization failed during conditioning")

// ConditionConfig controls the SVD-based redundancy check.
type ConditionConfig struct {
	SVDThreshold     float64 // singular values below this are redundant
	ResidualResidual bool    // metric: analyse H instead of S
	ExcludeRFromTest bool    // restrict the SVD to the P+Q leading block
	MaxQ             int     // force eviction once nQ exceeds this
	ForcedThreshold  float64 // threshold used once nQ > MaxQ (default 1e6)
	CoefficientFloor float64 // minimum |v[k]| for a candidate to be evictable (default 1e-3)
	EnableQMerge     bool    // fold a near-degenerate candidate pair together instead of evicting one
	MergeOverlap     float64 // |Sqq[i][j]| above this marks i,j as near-degenerate (default 0.999)
}

// DefaultConditionConfig returns the default redundancy-check thresholds.
func DefaultConditionConfig() ConditionConfig {
	return ConditionConfig{
		SVDThreshold:     1e-6,
		ForcedThreshold:  1e6,
		CoefficientFloor: 1e-3,
		MaxQ:             1 << 30,
		MergeOverlap:     0.999,
	}
}

// Condition repeatedly rebuilds the reduced S/H blocks via rebuild and
// evicts the QSpace.ModificationCandidates() entry with the largest
// singular-vector coefficient whenever the smallest singular value of the
// conditioning target falls below threshold, until the subspace is stable
// or no evictable candidate remains. It returns the Q-space indices evicted,
// in eviction order.
func Condition[V any](qs *QSpace[V], cfg ConditionConfig, rebuild func() (S, H *Block, dims Dimensions, err error)) ([]int, error) {
	var evicted []int
	for {
		S, H, dims, err := rebuild()
		if err != nil {
			return evicted, err
		}
		candidates := qs.ModificationCandidates()
		if len(candidates) == 0 {
			return evicted, nil
		}

		if cfg.EnableQMerge {
			if i, j, ok := mergeCandidate(qs, candidates, cfg.MergeOverlap); ok {
				qs.Merge(i, j)
				evicted = append(evicted, j)
				continue
			}
		}

		target := S
		if cfg.ResidualResidual {
			target = H
		}
		nx := dims.NX()
		cols := nx
		if cfg.ExcludeRFromTest {
			cols = nx - dims.NR
		}
		if cols <= 0 {
			return evicted, nil
		}

		sub := mat.NewDense(cols, cols, nil)
		for i := 0; i < cols; i++ {
			for j := 0; j < cols; j++ {
				sub.Set(i, j, target.At(i, j))
			}
		}

		var svd mat.SVD
		if !svd.Factorize(sub, mat.SVDThin) {
			return evicted, errSVDFailed
		}
		vals := svd.Values(nil) // descending order
		sigmaMin := vals[len(vals)-1]

		threshold := cfg.SVDThreshold
		if qs.Size() > cfg.MaxQ {
			threshold = cfg.ForcedThreshold
		}
		if sigmaMin >= threshold {
			return evicted, nil
		}

		var vMat mat.Dense
		svd.VTo(&vMat)
		lastCol := vMat.ColView(len(vals) - 1)

		oQ := dims.OQ()
		best, bestCoeff := -1, cfg.CoefficientFloor
		for _, k := range candidates {
			row := oQ + k
			if row >= cols {
				continue
			}
			c := lastCol.AtVec(row)
			if c < 0 {
				c = -c
			}
			if c > bestCoeff {
				bestCoeff = c
				best = k
			}
		}
		if best < 0 {
			return evicted, nil
		}
		qs.Remove(best)
		evicted = append(evicted, best)
	}
}

// mergeCandidate scans every pair of modification candidates for the
// largest-overlap pair whose |Sqq[i][j]| exceeds threshold — since every
// QSpace entry is unit-normalised, Sqq[i][j] is already the cosine between
// q_i and q_j, so a value near 1 means the two difference vectors are
// nearly parallel and safe to fold together rather than evict outright.
func mergeCandidate[V any](qs *QSpace[V], candidates []int, threshold float64) (i, j int, ok bool) {
	best := threshold
	bi, bj := -1, -1
	for a := 0; a < len(candidates); a++ {
		for b := a + 1; b < len(candidates); b++ {
			ci, cj := candidates[a], candidates[b]
			overlap := qs.Sqq.At(ci, cj)
			if overlap < 0 {
				overlap = -overlap
			}
			if overlap > best {
				best = overlap
				bi, bj = ci, cj
			}
		}
	}
	if bi < 0 {
		return 0, 0, false
	}
	return bi, bj, true
}
