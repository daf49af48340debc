package watermark

import "math"

// Analysis framing. 2048-sample frames at 50% hop with a periodic Hann
// window satisfy constant overlap-add, so an unmodified pass through
// analyze/synthesize reconstructs the interior of the signal exactly.
const (
	frameSize = 2048
	hopSize   = frameSize / 2
	halfBins  = frameSize/2 + 1
)

// fft performs an in-place radix-2 Cooley-Tukey FFT.
// re and im must have the same power-of-2 length.
func fft(re, im []float64) {
	n := len(re)
	if n <= 1 {
		return
	}

	// Bit-reversal permutation
	j := 0
	for i := 0; i < n-1; i++ {
		if i < j {
			re[i], re[j] = re[j], re[i]
			im[i], im[j] = im[j], im[i]
		}
		k := n >> 1
		for k <= j {
			j -= k
			k >>= 1
		}
		j += k
	}

	// Butterflies
	for size := 2; size <= n; size <<= 1 {
		half := size >> 1
		angle := -2.0 * math.Pi / float64(size)
		wR := math.Cos(angle)
		wI := math.Sin(angle)

		for start := 0; start < n; start += size {
			tR, tI := 1.0, 0.0
			for k := 0; k < half; k++ {
				u := start + k
				v := u + half

				tmpR := tR*re[v] - tI*im[v]
				tmpI := tR*im[v] + tI*re[v]

				re[v] = re[u] - tmpR
				im[v] = im[u] - tmpI
				re[u] += tmpR
				im[u] += tmpI

				tR, tI = tR*wR-tI*wI, tR*wI+tI*wR
			}
		}
	}
}

// ifft performs the inverse FFT in place, including the 1/n scale.
func ifft(re, im []float64) {
	n := len(re)
	for i := range im {
		im[i] = -im[i]
	}
	fft(re, im)
	inv := 1.0 / float64(n)
	for i := range re {
		re[i] *= inv
		im[i] *= -inv
	}
}

// hannWindow generates a periodic Hann window (COLA-exact at 50% hop).
func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n)))
	}
	return w
}

// spectrum holds one analysis frame in the frequency domain.
type spectrum struct {
	re, im []float64
}

// magnitudes returns the magnitude of the first frameSize/2+1 bins.
func (s *spectrum) magnitudes() []float64 {
	mags := make([]float64, halfBins)
	for k := 0; k < halfBins; k++ {
		mags[k] = math.Hypot(s.re[k], s.im[k])
	}
	return mags
}

// phase returns the phase angle at bin k.
func (s *spectrum) phase(k int) float64 {
	return math.Atan2(s.im[k], s.re[k])
}

// setMagnitudes rescales each bin to the given magnitude, preserving phase,
// and mirrors the upper half so the inverse transform stays real.
func (s *spectrum) setMagnitudes(mags []float64) {
	n := len(s.re)
	for k := 0; k < halfBins; k++ {
		old := math.Hypot(s.re[k], s.im[k])
		if old > 0 {
			scale := mags[k] / old
			s.re[k] *= scale
			s.im[k] *= scale
		} else {
			// Zero bin: new energy lands at zero phase.
			s.re[k] = mags[k]
			s.im[k] = 0
		}
	}
	for k := 1; k < n/2; k++ {
		s.re[n-k] = s.re[k]
		s.im[n-k] = -s.im[k]
	}
	// Real signal: DC and Nyquist bins carry no imaginary part.
	s.im[0] = 0
	s.im[n/2] = 0
}

// frameGrid describes the analysis framing of one signal.
type frameGrid struct {
	numFrames int
	lead      int // zero padding before sample 0
	length    int // original sample count
}

// gridFor computes the frame layout for a signal of n samples. One frame of
// leading zeros guarantees every original sample is covered by two windows.
func gridFor(n int) frameGrid {
	lead := frameSize
	covered := lead + n
	numFrames := covered/hopSize + 2
	return frameGrid{numFrames: numFrames, lead: lead, length: n}
}

// analyze windows and transforms every frame of x under the grid.
func analyze(x []float64, grid frameGrid, window []float64) []*spectrum {
	frames := make([]*spectrum, grid.numFrames)
	for t := 0; t < grid.numFrames; t++ {
		frames[t] = analyzeFrame(x, grid, window, t)
	}
	return frames
}

// analyzeFrame windows and transforms the t-th frame only.
func analyzeFrame(x []float64, grid frameGrid, window []float64, t int) *spectrum {
	re := make([]float64, frameSize)
	im := make([]float64, frameSize)
	start := t*hopSize - grid.lead
	for i := 0; i < frameSize; i++ {
		idx := start + i
		if idx >= 0 && idx < grid.length {
			re[i] = x[idx] * window[i]
		}
	}
	fft(re, im)
	return &spectrum{re: re, im: im}
}

// synthesize inverts every frame and overlap-adds into a buffer trimmed to
// the grid's original length. Frames are summed in index order so the
// result is bit-reproducible regardless of how they were produced.
func synthesize(frames []*spectrum, grid frameGrid) []float64 {
	out := make([]float64, grid.length)
	for t, f := range frames {
		re := make([]float64, frameSize)
		im := make([]float64, frameSize)
		copy(re, f.re)
		copy(im, f.im)
		ifft(re, im)

		start := t*hopSize - grid.lead
		for i := 0; i < frameSize; i++ {
			idx := start + i
			if idx >= 0 && idx < grid.length {
				out[idx] += re[i]
			}
		}
	}
	return out
}

// frameRMS returns the RMS of the t-th raw (unwindowed) frame.
func frameRMS(x []float64, grid frameGrid, t int) float64 {
	start := t*hopSize - grid.lead
	var sum float64
	count := 0
	for i := 0; i < frameSize; i++ {
		idx := start + i
		if idx >= 0 && idx < grid.length {
			sum += x[idx] * x[idx]
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(count))
}

// binRange maps a frequency band to [lo, hi] bin indices for the given
// sample rate, clipped to the real half-spectrum. Returns ok=false when the
// band lies entirely above Nyquist.
func binRange(band FrequencyBand, sampleRate int) (lo, hi int, ok bool) {
	nyquist := float64(sampleRate) / 2
	if band.LowHz >= nyquist {
		return 0, 0, false
	}
	binWidth := float64(sampleRate) / frameSize
	lo = int(math.Ceil(band.LowHz / binWidth))
	hi = int(math.Floor(band.HighHz / binWidth))
	if hi > halfBins-1 {
		hi = halfBins - 1
	}
	if lo < 1 {
		lo = 1
	}
	if lo > hi {
		return 0, 0, false
	}
	return lo, hi, true
}
