package watermark

import "math"

// Masking model constants. The threshold at each bin is the sum of a
// simultaneous-masking term (a fraction of the spread spectral envelope,
// about -24 dB below the masker) and a quiet floor tied to the frame's peak
// magnitude. Frames quieter than silenceRMS have no usable headroom.
const (
	maskRatio   = 0.06
	quietFloor  = 0.04
	spreadDecay = 0.85
	silenceRMS  = 1e-4
)

// maskingCurve is the per-frame, per-bin ceiling on added energy that stays
// below audibility. Recomputed fresh for every input; never persisted.
type maskingCurve struct {
	threshold []float64
	// degenerate marks a near-silent frame: no headroom, embedding modules
	// must skip it entirely.
	degenerate bool
}

// maskingThreshold computes the curve for one frame given its magnitude
// spectrum and raw RMS. The envelope spreads each masker across neighboring
// bins with an exponential skirt in both directions, approximating
// simultaneous masking; pre/post-masking across frames is not modeled.
func maskingThreshold(mags []float64, rms float64) maskingCurve {
	if rms < silenceRMS {
		return maskingCurve{threshold: make([]float64, len(mags)), degenerate: true}
	}

	env := make([]float64, len(mags))
	copy(env, mags)
	for k := 1; k < len(env); k++ {
		if prev := env[k-1] * spreadDecay; prev > env[k] {
			env[k] = prev
		}
	}
	for k := len(env) - 2; k >= 0; k-- {
		if next := env[k+1] * spreadDecay; next > env[k] {
			env[k] = next
		}
	}

	peak := 0.0
	for _, m := range mags {
		if m > peak {
			peak = m
		}
	}

	threshold := make([]float64, len(mags))
	floor := quietFloor * peak
	for k := range threshold {
		threshold[k] = maskRatio*env[k] + floor
	}
	return maskingCurve{threshold: threshold}
}

// headroomAt returns the usable ceiling at bin k, zero for degenerate
// frames.
func (c maskingCurve) headroomAt(k int) float64 {
	if c.degenerate {
		return 0
	}
	return c.threshold[k]
}

// SpectralSNR measures the signal-to-noise ratio between two equal-shape
// signals over their mel-band energy spectrograms, in dB. Phase-blind and
// coarse in frequency, so micro-timing drift that leaves band energies
// intact does not count as noise; this is the perceptual quality figure
// reported alongside results.
func SpectralSNR(original, candidate *AudioSignal) float64 {
	if original.Length() != candidate.Length() || original.Channels() != candidate.Channels() {
		return 0
	}
	window := hannWindow(frameSize)
	bank := melFilterBank(numMels, original.SampleRate, 20, float64(original.SampleRate)/2)
	var signal, noise float64
	for c := range original.Samples {
		grid := gridFor(original.Length())
		a := analyze(original.Samples[c], grid, window)
		b := analyze(candidate.Samples[c], grid, window)
		for t := range a {
			ea := melBandPower(bank, a[t].magnitudes())
			eb := melBandPower(bank, b[t].magnitudes())
			for m := range ea {
				d := eb[m] - ea[m]
				signal += ea[m] * ea[m]
				noise += d * d
			}
		}
	}
	if noise == 0 {
		return math.Inf(1)
	}
	if signal == 0 {
		return 0
	}
	return 10 * math.Log10(signal/noise)
}
