package visualizer

import "math/rand/v2"

// Bands is the number of bars in a frame.
const Bands = 40

// Frame is one visualizer tick. Synthetic frames carry cosmetic filler and
// must not be read as signal.
type Frame struct {
	Values    [Bands]float64 `json:"values"`
	Synthetic bool           `json:"synthetic"`
}

// Reduce averages contiguous frequency bins into Bands bars.
func Reduce(bins []byte) Frame {
	var f Frame
	perBand := len(bins) / Bands
	if perBand == 0 {
		return f
	}
	for i := 0; i < Bands; i++ {
		sum := 0
		for _, b := range bins[i*perBand : (i+1)*perBand] {
			sum += int(b)
		}
		f.Values[i] = float64(sum) / float64(perBand*2)
	}
	return f
}

// Filler returns small pseudo-random bars used when no signal is available.
func Filler(rnd *rand.Rand) Frame {
	f := Frame{Synthetic: true}
	for i := range f.Values {
		f.Values[i] = 10 + rnd.Float64()*20
	}
	return f
}
