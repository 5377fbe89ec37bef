package playback

import (
	"math"
	"math/rand/v2"
	"time"
)

const (
	// BarCount is the number of waveform bars drawn per asset.
	BarCount = 28

	oscillationPeriod = 120 * time.Millisecond
	oscillationPhase  = 0.4
)

// Waveform holds the static bar heights of one asset, each in [0.2, 0.8).
type Waveform struct {
	heights []float64
}

// NewWaveform draws BarCount random heights. A nil rng uses the global source.
func NewWaveform(rng *rand.Rand) Waveform {
	heights := make([]float64, BarCount)
	for i := range heights {
		var r float64
		if rng != nil {
			r = rng.Float64()
		} else {
			r = rand.Float64()
		}
		heights[i] = r*0.6 + 0.2
	}
	return Waveform{heights: heights}
}

// Heights returns a copy of the static heights.
func (w Waveform) Heights() []float64 {
	out := make([]float64, len(w.heights))
	copy(out, w.heights)
	return out
}

// Bar is one rendered bar.
type Bar struct {
	// Height is the displayed height as a fraction of the track height.
	Height float64
	// Played bars are drawn with the active treatment.
	Played bool
}

// Frame is everything a view needs to draw the player once.
type Frame struct {
	Snapshot Snapshot
	Progress float64
	Bars     []Bar
}

// Frame computes the bars for snap at time now. While playing each bar
// oscillates by up to 15% around 85% of its height.
func (w Waveform) Frame(snap Snapshot, now time.Time) Frame {
	progress := snap.Progress()
	bars := make([]Bar, len(w.heights))
	t := float64(now.UnixMilli()) / float64(oscillationPeriod.Milliseconds())
	for i, h := range w.heights {
		height := h
		if snap.Playing {
			height = h * (0.85 + math.Sin(t+float64(i)*oscillationPhase)*0.15)
		}
		bars[i] = Bar{
			Height: height,
			Played: float64(i)/float64(len(w.heights)) <= progress,
		}
	}
	return Frame{Snapshot: snap, Progress: progress, Bars: bars}
}
