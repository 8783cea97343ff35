package capacity

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrQuotaUnreachable is returned when the search stops without meeting the quota.
	ErrQuotaUnreachable = errors.New("service quota unreachable")
	// ErrInvalidQuota is returned for quotas outside (0,1].
	ErrInvalidQuota = errors.New("quota must be in (0,1]")
)

// DefaultMaxIterations bounds the scale-up loop of Size.
const DefaultMaxIterations = 50

// SizingOptions configures the station count search.
type SizingOptions struct {
	Quota         float64
	MaxIterations int
}

// SizingResult records the last station count evaluated by Size.
type SizingResult struct {
	Stations   int     `json:"stations"`
	Served     int     `json:"served"`
	Total      int     `json:"total"`
	Quota      float64 `json:"quota"`
	Iterations int     `json:"iterations"`
	Converged  bool    `json:"converged"`
}

// Size searches the station count needed to serve at least opts.Quota of the
// windows. Starting from one station, the count is scaled by quota/observed
// until the quota is met. The scaling is monotone-improving but the result is
// not guaranteed to be the minimum count.
func Size(windows []Window, opts SizingOptions) (SizingResult, error) {
	if opts.Quota <= 0 || opts.Quota > 1 {
		return SizingResult{}, fmt.Errorf("%w: %v", ErrInvalidQuota, opts.Quota)
	}
	maxIt := opts.MaxIterations
	if maxIt <= 0 {
		maxIt = DefaultMaxIterations
	}
	total := len(windows)
	if total == 0 {
		return SizingResult{Quota: 1, Converged: true}, nil
	}

	var res SizingResult
	k := 1
	for it := 1; it <= maxIt; it++ {
		a := Schedule(windows, k)
		observed := float64(a.Count) / float64(total)
		res = SizingResult{Stations: k, Served: a.Count, Total: total, Quota: observed, Iterations: it}
		if observed >= opts.Quota {
			res.Converged = true
			return res, nil
		}
		if k >= total {
			break
		}
		next := k + 1
		if observed > 0 {
			if scaled := int(math.Ceil(float64(k) / observed * opts.Quota)); scaled > next {
				next = scaled
			}
		}
		k = min(next, total)
	}
	return res, fmt.Errorf("%w: %d stations serve %.3f after %d iterations",
		ErrQuotaUnreachable, res.Stations, res.Quota, res.Iterations)
}
