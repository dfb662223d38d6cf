package visualizer

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	FFTSize     = 512
	BinCount    = FFTSize / 2
	MinDecibels = -100.0
	MaxDecibels = -30.0
	// Smoothing blends each magnitude with the previous frame.
	Smoothing = 0.8
)

// Analyser turns a window of time-domain samples into byte frequency
// magnitudes with the same scaling browsers use for AnalyserNode.
type Analyser struct {
	fft    *fourier.FFT
	window []float64
	prev   []float64
	seq    []float64
	coeff  []complex128
}

func NewAnalyser() *Analyser {
	window := make([]float64, FFTSize)
	// Blackman window
	const alpha = 0.16
	a0, a1, a2 := (1-alpha)/2, 0.5, alpha/2
	for i := range window {
		x := 2 * math.Pi * float64(i) / float64(FFTSize)
		window[i] = a0 - a1*math.Cos(x) + a2*math.Cos(2*x)
	}
	return &Analyser{
		fft:    fourier.NewFFT(FFTSize),
		window: window,
		prev:   make([]float64, BinCount),
		seq:    make([]float64, FFTSize),
	}
}

// ByteFrequencyData returns BinCount magnitudes in [0, 255]. Short input is
// zero padded at the front so the newest samples stay aligned to the end.
func (a *Analyser) ByteFrequencyData(samples []float64) []byte {
	if len(samples) > FFTSize {
		samples = samples[len(samples)-FFTSize:]
	}
	pad := FFTSize - len(samples)
	for i := range a.seq {
		v := 0.0
		if i >= pad {
			v = samples[i-pad]
		}
		a.seq[i] = v * a.window[i]
	}

	a.coeff = a.fft.Coefficients(a.coeff, a.seq)

	out := make([]byte, BinCount)
	scale := 255 / (MaxDecibels - MinDecibels)
	for k := 0; k < BinCount; k++ {
		mag := cmplxAbs(a.coeff[k]) / FFTSize
		a.prev[k] = Smoothing*a.prev[k] + (1-Smoothing)*mag

		db := MinDecibels
		if a.prev[k] > 0 {
			db = 20 * math.Log10(a.prev[k])
		}
		v := math.Floor(scale * (db - MinDecibels))
		switch {
		case v < 0:
			v = 0
		case v > 255:
			v = 255
		}
		out[k] = byte(v)
	}
	return out
}

func cmplxAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}
