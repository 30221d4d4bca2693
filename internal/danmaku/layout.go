package danmaku

import "sort"

// Canvas is the rendering surface comments are laid out onto.
type Canvas struct {
	Width, Height int
	LaneCount     int           // number of horizontal lanes per pinned/scrolling pool
	LaneHeight    int           // pixel height of one lane
	ScrollSeconds float64       // how long a scrolling comment takes to cross the canvas
	PinSeconds    float64       // how long a top/bottom comment stays pinned
	FontSize      int
}

// DefaultCanvas matches the platform's own player overlay defaults at
// 1080p: one lane per ~32px of vertical space, an eight-second scroll and
// four-second top/bottom pins.
func DefaultCanvas() Canvas {
	return Canvas{
		Width:         1920,
		Height:        1080,
		LaneCount:     1080 / 32,
		LaneHeight:    32,
		ScrollSeconds: 8,
		PinSeconds:    4,
		FontSize:      28,
	}
}

// placement is a laid-out Comment: its source data plus the lane and time
// window it occupies on the canvas.
type placement struct {
	Comment
	Lane      int
	StartMs   int64
	EndMs     int64
}

// layout assigns each comment a lane within its mode's pool, using
// least-recently-freed lane selection: a lane is reused once its previous
// occupant has scrolled/pinned off screen, and among free lanes the one
// that freed up longest ago is preferred, so comments spread across the
// pool instead of stacking in the first available lane. A comment that
// arrives while every lane of its pool is still occupied is dropped.
func layout(comments []Comment, canvas Canvas) []placement {
	sorted := make([]Comment, len(comments))
	copy(sorted, comments)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].TimeMs < sorted[j].TimeMs })

	scrolling := newLanePool(canvas.LaneCount)
	top := newLanePool(canvas.LaneCount)
	bottom := newLanePool(canvas.LaneCount)

	out := make([]placement, 0, len(sorted))
	for _, c := range sorted {
		var pool *lanePool
		var durationMs int64
		switch c.Mode {
		case ModeTop:
			pool = top
			durationMs = int64(canvas.PinSeconds * 1000)
		case ModeBottom:
			pool = bottom
			durationMs = int64(canvas.PinSeconds * 1000)
		default:
			pool = scrolling
			durationMs = int64(canvas.ScrollSeconds * 1000)
		}

		lane := pool.acquire(c.TimeMs)
		if pool.freeAt[lane] > c.TimeMs {
			continue
		}
		out = append(out, placement{
			Comment: c,
			Lane:    lane,
			StartMs: c.TimeMs,
			EndMs:   c.TimeMs + durationMs,
		})
		pool.release(lane, c.TimeMs+durationMs)
	}
	return out
}

// lanePool tracks, per lane, the time at which it next becomes free.
type lanePool struct {
	freeAt []int64
}

func newLanePool(n int) *lanePool {
	if n < 1 {
		n = 1
	}
	return &lanePool{freeAt: make([]int64, n)}
}

// acquire returns the lane that has been free the longest as of at; ties
// (including every lane being free before the video even started) go to the
// lowest-indexed lane for deterministic output.
func (p *lanePool) acquire(at int64) int {
	best := 0
	for i := 1; i < len(p.freeAt); i++ {
		if p.freeAt[i] < p.freeAt[best] {
			best = i
		}
	}
	return best
}

func (p *lanePool) release(lane int, freeAt int64) {
	p.freeAt[lane] = freeAt
}
