// Package freq keeps a short rolling history of spectrum frames and detects
// rhythmic events from it.
package freq

import (
	"fmt"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// HistoryDepth is the number of frames kept per bin.
const HistoryDepth = 40

// ErrInvalidBins is returned when a history is created with no bins.
var ErrInvalidBins = errors.New("invalid bin count")

// History holds the most recent samples of every frequency bin. All bins are
// pushed together, so index i refers to the same frame across bins. Index 0
// is always the newest sample.
type History struct {
	bins  [][]float64
	depth int
	head  int // next write position
	n     int // samples stored per bin
}

// NewHistory creates a history for the given number of bins with the default
// depth.
func NewHistory(bins int) (*History, error) {
	return NewHistoryDepth(bins, HistoryDepth)
}

// NewHistoryDepth creates a history with a custom depth.
func NewHistoryDepth(bins, depth int) (*History, error) {
	if bins < 1 {
		return nil, errors.Wrapf(ErrInvalidBins, "need at least one bin, got %d", bins)
	}
	if depth < 1 {
		return nil, errors.Errorf("invalid history depth %d", depth)
	}

	h := &History{
		bins:  make([][]float64, bins),
		depth: depth,
	}
	for i := range h.bins {
		h.bins[i] = make([]float64, depth)
	}

	return h, nil
}

// Push records a new frame, evicting the oldest one if the history is full.
// The frame must have exactly Bins() values.
func (h *History) Push(frame []float64) {
	if len(frame) != len(h.bins) {
		panic(fmt.Sprintf("freq: pushed frame of %d bins into history of %d", len(frame), len(h.bins)))
	}

	for i, v := range frame {
		h.bins[i][h.head] = v
	}

	h.head = (h.head + 1) % h.depth
	if h.n < h.depth {
		h.n++
	}
}

// Bins returns the number of bins.
func (h *History) Bins() int { return len(h.bins) }

// Depth returns the capacity of each bin.
func (h *History) Depth() int { return h.depth }

// Len returns the number of samples currently stored in every bin.
func (h *History) Len() int { return h.n }

// Full returns true once Depth frames have been pushed.
func (h *History) Full() bool { return h.n == h.depth }

// At returns the i-th most recent sample of the given bin.
func (h *History) At(bin, i int) float64 {
	if i < 0 || i >= h.n {
		panic(fmt.Sprintf("freq: history index %d out of range [0, %d)", i, h.n))
	}
	return h.bins[bin][(h.head-1-i+h.depth)%h.depth]
}

// Newest returns the most recent sample of the given bin.
func (h *History) Newest(bin int) float64 {
	return h.At(bin, 0)
}

// Mean returns the average of all stored samples of the given bin, or 0 if
// nothing was pushed yet.
func (h *History) Mean(bin int) float64 {
	if h.n == 0 {
		return 0
	}
	// Until the buffer wraps, samples occupy the first n slots.
	return floats.Sum(h.bins[bin][:h.n]) / float64(h.n)
}
