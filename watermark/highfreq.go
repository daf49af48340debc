package watermark

// High-frequency adversarial module. Mirrors the spread-spectrum mechanics
// but targets only the highest band the profile declares and the sample
// rate supports, with its own payload stream and a larger nominal gain --
// the masking model affords more headroom near Nyquist, and the threshold
// clip in spreadApply still bounds every addition. A declared band the
// sample rate cannot carry is skipped and annotated, never fatal.

// hfGainBoost scales the profile strength for the high-frequency pattern.
const hfGainBoost = 3.0

// hfPlan resolves the high-frequency band for one sample rate.
type hfPlan struct {
	band FrequencyBand
	bins []int
	skip *BandSkip
}

// planHighFreq picks the highest supported band from the profile's list,
// walking down until one fits under Nyquist.
func planHighFreq(bands []FrequencyBand, sampleRate int) hfPlan {
	for i := len(bands) - 1; i >= 0; i-- {
		lo, hi, ok := binRange(bands[i], sampleRate)
		if !ok {
			continue
		}
		bins := make([]int, 0, hi-lo+1)
		for k := lo; k <= hi; k++ {
			bins = append(bins, k)
		}
		return hfPlan{band: bands[i], bins: bins}
	}
	var plan hfPlan
	if len(bands) > 0 {
		plan.skip = &BandSkip{
			Band:   bands[len(bands)-1],
			Reason: "no declared band fits under Nyquist for high-frequency embedding",
		}
	}
	return plan
}

// effectiveStrength is the boosted gain, capped so the nominal product can
// never exceed the threshold itself.
func (p hfPlan) effectiveStrength(strength float64) float64 {
	s := strength * hfGainBoost
	if s > 1 {
		s = 1
	}
	return s
}

// hfApply embeds one frame's slice of the high-frequency stream.
func (p hfPlan) hfApply(mags []float64, curve maskingCurve, pn []float64, strength float64) {
	spreadApply(mags, curve, pn, p.effectiveStrength(strength), p.bins)
}
