package motion

import "gocv.io/x/gocv"

// Scorer scores the motion in a frame.
type Scorer interface {
	Score(frame gocv.Mat) (float64, error)
}

// Gate decides per frame whether inference should run.
//
// The first frame always passes. Afterwards a frame passes when its score reaches the
// threshold, and the gate stays open for HoldFrames frames after the last such frame.
type Gate struct {
	scorer    Scorer
	threshold float64
	hold      int
	remaining int
	primed    bool
}

// NewGate creates a gate over a scorer.
func NewGate(scorer Scorer, threshold float64, holdFrames int) *Gate {
	return &Gate{scorer: scorer, threshold: threshold, hold: holdFrames}
}

// Allow scores the frame and reports whether it should be processed.
//
// Returns:
//   - bool: True if inference should run on the frame.
//   - float64: The motion score.
//   - error: An error if the frame cannot be scored. The frame passes in that case.
func (g *Gate) Allow(frame gocv.Mat) (bool, float64, error) {
	score, err := g.scorer.Score(frame)
	if err != nil {
		return true, 0, err
	}
	if !g.primed {
		g.primed = true
		return true, score, nil
	}
	if score >= g.threshold {
		g.remaining = g.hold
		return true, score, nil
	}
	if g.remaining > 0 {
		g.remaining--
		return true, score, nil
	}
	return false, score, nil
}
