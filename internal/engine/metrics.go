package engine

// EpisodeMetrics is the per-episode record of a training run.
type EpisodeMetrics struct {
	Episode         int
	Reward          float64
	CumulativeGoals int
	// SuccessRate is a percentage over the rolling window.
	SuccessRate float64
	Loss        float64
	Steps       int
	GoalReached bool
	Epsilon     float64
}

// successWindow tracks goal hits over the most recent size episodes.
type successWindow struct {
	size    int
	history []bool
	next    int
	filled  int
	hits    int
}

func newSuccessWindow(size int) *successWindow {
	if size <= 0 {
		size = 1
	}
	return &successWindow{size: size, history: make([]bool, size)}
}

func (w *successWindow) record(goal bool) {
	if w.filled == w.size && w.history[w.next] {
		w.hits--
	}
	w.history[w.next] = goal
	if goal {
		w.hits++
	}
	w.next = (w.next + 1) % w.size
	if w.filled < w.size {
		w.filled++
	}
}

// rate is 100*hits/min(size, episodes recorded).
func (w *successWindow) rate() float64 {
	if w.filled == 0 {
		return 0
	}
	return 100 * float64(w.hits) / float64(w.filled)
}

func (w *successWindow) full() bool {
	return w.filled == w.size
}
