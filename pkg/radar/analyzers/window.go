package analyzers

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/dsp/window"
)

// WindowType selects the taper applied before the DFT
type WindowType string

const (
	WindowRectangular WindowType = "rectangular"
	WindowHann        WindowType = "hann"
	WindowHamming     WindowType = "hamming"
	WindowBlackman    WindowType = "blackman"
)

// ParseWindowType maps a config string onto a WindowType. Empty means rectangular.
func ParseWindowType(s string) (WindowType, error) {
	switch WindowType(strings.ToLower(strings.TrimSpace(s))) {
	case "", WindowRectangular, "none", "boxcar":
		return WindowRectangular, nil
	case WindowHann, "hanning":
		return WindowHann, nil
	case WindowHamming:
		return WindowHamming, nil
	case WindowBlackman:
		return WindowBlackman, nil
	}
	return "", fmt.Errorf("unsupported window type %q", s)
}

// Weights returns the n window coefficients. All windows are symmetric about
// the mid-sample (n-1)/2.
func (w WindowType) Weights(n int) ([]float64, error) {
	seq := make([]float64, n)
	for i := range seq {
		seq[i] = 1
	}

	switch w {
	case "", WindowRectangular:
		return seq, nil
	case WindowHann:
		return window.Hann(seq), nil
	case WindowHamming:
		return window.Hamming(seq), nil
	case WindowBlackman:
		return window.Blackman(seq), nil
	}
	return nil, fmt.Errorf("unsupported window type %q", string(w))
}

// SidelobeFloor is the amplitude, relative to the mainlobe peak, below which
// the window's sampled sidelobes can show up as local maxima. Rectangular and
// Hann sidelobes decay monotonically away from the mainlobe, so one sample per
// lobe never peaks and the floor is zero. Hamming and Blackman have nearly
// equiripple near-in sidelobes at about -43 dB and -58 dB; the floors sit
// about 6 dB above them to cover scalloping of the mainlobe.
func (w WindowType) SidelobeFloor() float64 {
	switch w {
	case WindowHamming:
		return 0.015
	case WindowBlackman:
		return 0.0025
	}
	return 0
}
