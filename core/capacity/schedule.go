package capacity

import (
	"math"
	"sort"
)

// Window is a half-open occupancy interval [Start, End) in minutes.
type Window struct {
	Start int
	End   int
}

// Assignment is the outcome of Schedule. Station is -1 for unserved sessions.
type Assignment struct {
	Served  []bool
	Station []int
	Count   int
}

// Schedule assigns windows to k identical stations so that no station hosts two
// overlapping windows and the number of served windows is maximal.
//
// Windows are taken in order of their end and each goes to the station that
// became free last without being busy at the window start. Taking windows by
// arrival instead is not optimal: a long early window would block shorter ones.
func Schedule(windows []Window, k int) Assignment {
	n := len(windows)
	a := Assignment{Served: make([]bool, n), Station: make([]int, n)}
	for i := range a.Station {
		a.Station[i] = -1
	}
	if k <= 0 || n == 0 {
		return a
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(x, y int) bool {
		wx, wy := windows[order[x]], windows[order[y]]
		if wx.End != wy.End {
			return wx.End < wy.End
		}
		return wx.Start < wy.Start
	})

	// free holds the next free time of each station in ascending order; ids
	// tracks which station owns each entry.
	free := make([]int, k)
	ids := make([]int, k)
	for i := range free {
		free[i] = math.MinInt
		ids[i] = i
	}

	for _, idx := range order {
		w := windows[idx]
		pos := sort.SearchInts(free, w.Start+1) - 1
		if pos < 0 {
			continue
		}
		station := ids[pos]
		// Windows arrive by ascending end, so the new free time is the largest.
		copy(free[pos:], free[pos+1:])
		copy(ids[pos:], ids[pos+1:])
		free[k-1] = w.End
		ids[k-1] = station

		a.Served[idx] = true
		a.Station[idx] = station
		a.Count++
	}
	return a
}
