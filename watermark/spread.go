package watermark

// Spread-spectrum embedder. A payload-seeded {-1,+1} sequence is added to
// the magnitude spectrum of each eligible frame inside the profile's
// frequency bands, scaled by the masking threshold so every addition stays
// below audibility. Phase is left untouched.

// BandSkip records a declared band that could not be embedded for this
// signal, with the reason. Accumulated in AppliedParams.
type BandSkip struct {
	Band   FrequencyBand `json:"band"`
	Reason string        `json:"reason"`
}

// bandPlan resolves profile bands to flattened, ascending bin indices for
// one sample rate. Bands above Nyquist are skipped and annotated rather
// than failing the operation.
type bandPlan struct {
	bins    []int
	skipped []BandSkip
}

func planBands(bands []FrequencyBand, sampleRate int) bandPlan {
	var plan bandPlan
	for _, band := range bands {
		lo, hi, ok := binRange(band, sampleRate)
		if !ok {
			plan.skipped = append(plan.skipped, BandSkip{
				Band:   band,
				Reason: "band exceeds Nyquist frequency for this sample rate",
			})
			continue
		}
		for k := lo; k <= hi; k++ {
			plan.bins = append(plan.bins, k)
		}
	}
	return plan
}

// slotsPerFrame is the number of pseudo-noise values one eligible frame
// consumes.
func (p bandPlan) slotsPerFrame() int {
	return len(p.bins)
}

// spreadApply embeds one frame's slice of the pseudo-noise sequence into
// mags in place. The imperceptibility contract is enforced here, not
// assumed: each addition is clipped to the masking threshold at its bin,
// and magnitudes never go negative.
func spreadApply(mags []float64, curve maskingCurve, pn []float64, strength float64, bins []int) {
	for i, k := range bins {
		ceiling := curve.headroomAt(k)
		if ceiling == 0 {
			continue
		}
		delta := pn[i] * strength * ceiling
		if delta > ceiling {
			delta = ceiling
		} else if delta < -ceiling {
			delta = -ceiling
		}
		m := mags[k] + delta
		if m < 0 {
			m = 0
		}
		mags[k] = m
	}
}
