package watermark

import "math"

// MFCC disruption module. Low-order cepstral coefficients carry the timbre
// envelope voice and style models learn from; each eligible frame's
// coefficients cepsLow..cepsHigh are scaled by (1 +/- ratio) with signs from
// the payload's MFCC stream, and the cepstral delta is folded back onto the
// magnitude spectrum as a multiplicative envelope change. A post-hoc check
// scales the whole blend down uniformly if any bin would exceed its masking
// threshold, so the imperceptibility contract holds no matter how
// aggressive the ratio is.

// mfccSignsPerFrame is how many values one eligible frame consumes from the
// MFCC stream.
const mfccSignsPerFrame = cepsHigh - cepsLow + 1

// mfccBlend scales the reconstructed envelope perturbation before it is
// folded onto the spectrum. The cepstral delta targets detectability; the
// blend keeps the audible envelope change roughly 45 dB down, matching the
// ratio * 0.1 blend the profile documentation describes. mfccLogCap bounds
// the per-band log-energy change: sparse spectra sit on the mel log floor
// and produce outsized cepstra, and without the cap their reconstructed
// envelope delta would swing whole bands by several dB.
const (
	mfccBlend  = 0.1
	mfccLogCap = 0.005
)

// mfccEnvelope reconstructs the capped per-band log-energy perturbation one
// frame receives, from its cepstra, its sign slice and the profile ratio.
// The verifier regenerates the same envelope from the candidate's measured
// cepstra, which differ from the embed-time ones only by the perturbation
// itself.
func mfccEnvelope(coeffs, signs []float64, ratio float64) []float64 {
	// Cepstral delta: only the targeted coefficients move.
	delta := make([]float64, numCeps)
	for i := 0; i < mfccSignsPerFrame; i++ {
		j := cepsLow + i
		delta[j] = coeffs[j] * signs[i] * ratio
	}
	dLog := idct2(delta, numMels)
	for m := range dLog {
		dLog[m] *= mfccBlend
		if dLog[m] > mfccLogCap {
			dLog[m] = mfccLogCap
		} else if dLog[m] < -mfccLogCap {
			dLog[m] = -mfccLogCap
		}
	}
	return dLog
}

// mfccApply perturbs one frame's magnitudes in place.
func mfccApply(mags []float64, curve maskingCurve, bank [][]float64, signs []float64, ratio float64) {
	if curve.degenerate || ratio == 0 {
		return
	}

	coeffs := dct2(melEnergies(bank, mags), numCeps)
	dLog := mfccEnvelope(coeffs, signs, ratio)

	// Expand the mel-domain log-energy delta to a per-bin magnitude gain.
	// Power delta halves in the magnitude domain.
	gains := make([]float64, len(mags))
	for k := range gains {
		num, den := 0.0, 0.0
		for m, filter := range bank {
			w := filter[k]
			if w != 0 {
				num += w * dLog[m]
				den += w
			}
		}
		if den > 0 {
			gains[k] = math.Exp(num / den / 2)
		} else {
			gains[k] = 1
		}
	}

	// Masking compliance: find the worst violation and scale the blend
	// down uniformly until every bin fits under its threshold.
	worst := 1.0
	for k, g := range gains {
		change := math.Abs(mags[k] * (g - 1))
		if change == 0 {
			continue
		}
		ceiling := curve.headroomAt(k)
		if ceiling == 0 {
			// No headroom at an affected bin: drop the frame's blend.
			return
		}
		if v := change / ceiling; v > worst {
			worst = v
		}
	}
	for k, g := range gains {
		mags[k] *= 1 + (g-1)/worst
	}
}
