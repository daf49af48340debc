package watermark

import "math"

// Temporal jitter module. A payload-seeded offset walk displaces each
// hop-sized block's boundary within +/- the profile's jitter bound, and the
// displacement is interpolated linearly between block centers so the warp is
// continuous (the ramp between blocks is the click-free transition window).
// Offsets are slew-limited so the instantaneous resampling rate never
// deviates enough to shift pitch audibly; the result is a slow micro-timing
// drift rather than frame-rate wobble. Running drift is cancelled every
// driftWindow blocks, and the warp reads exactly one output sample per input
// sample, so output duration equals input duration.
const (
	driftWindow = 16

	// slewDivisor bounds the block-to-block offset change to
	// maxOffset/slewDivisor samples, keeping the rate deviation below
	// roughly 0.1% at every profile.
	slewDivisor = 512
)

// jitterPlan holds the resolved per-block sample offsets for one signal.
type jitterPlan struct {
	offsets []float64
}

// planJitter derives the deterministic offsets. Offsets are drawn for every
// block so stream consumption does not depend on eligibility; ineligible
// blocks are then zeroed. eligible maps a block index to its treatment
// decision.
func planJitter(payload WatermarkPayload, n, sampleRate int, jitterMs float64, eligible func(block int) bool) jitterPlan {
	blocks := (n + hopSize - 1) / hopSize
	offsets := make([]float64, blocks)
	if jitterMs <= 0 || blocks == 0 {
		return jitterPlan{offsets: offsets}
	}
	maxOffset := jitterMs / 1000 * float64(sampleRate)

	rng := payload.stream(streamJitter)
	for t := range offsets {
		offsets[t] = (rng.Float64()*2 - 1) * maxOffset
	}
	for t := range offsets {
		if !eligible(t) {
			offsets[t] = 0
		}
	}

	// Drift correction: remove the mean of every block window so the
	// cumulative displacement stays bounded, then clamp back to the
	// declared jitter bound.
	for start := 0; start < blocks; start += driftWindow {
		end := start + driftWindow
		if end > blocks {
			end = blocks
		}
		mean := 0.0
		for t := start; t < end; t++ {
			mean += offsets[t]
		}
		mean /= float64(end - start)
		for t := start; t < end; t++ {
			offsets[t] -= mean
			if offsets[t] > maxOffset {
				offsets[t] = maxOffset
			} else if offsets[t] < -maxOffset {
				offsets[t] = -maxOffset
			}
		}
	}

	// Slew limit, with both ends pinned to zero so the signal starts and
	// stops exactly on time. The forward pass turns the raw draws into a
	// bounded walk; the backward pass enforces the terminal ramp.
	slew := maxOffset / slewDivisor
	offsets[0] = 0
	for t := 1; t < blocks; t++ {
		if d := offsets[t] - offsets[t-1]; d > slew {
			offsets[t] = offsets[t-1] + slew
		} else if d < -slew {
			offsets[t] = offsets[t-1] - slew
		}
	}
	offsets[blocks-1] = 0
	for t := blocks - 2; t >= 0; t-- {
		if d := offsets[t] - offsets[t+1]; d > slew {
			offsets[t] = offsets[t+1] + slew
		} else if d < -slew {
			offsets[t] = offsets[t+1] - slew
		}
	}
	return jitterPlan{offsets: offsets}
}

// offsetAt evaluates the continuous warp displacement at sample i by
// linear interpolation between block centers.
func (p jitterPlan) offsetAt(i int) float64 {
	if len(p.offsets) == 0 {
		return 0
	}
	pos := (float64(i) - hopSize/2) / hopSize
	if pos <= 0 {
		return p.offsets[0]
	}
	t := int(pos)
	if t >= len(p.offsets)-1 {
		return p.offsets[len(p.offsets)-1]
	}
	frac := pos - float64(t)
	return p.offsets[t]*(1-frac) + p.offsets[t+1]*frac
}

// applyWarp resamples x along the jittered time axis with linear
// interpolation: out[i] = x[i + offset(i)]. One output sample per input
// sample, so the length is preserved exactly.
func (p jitterPlan) applyWarp(x []float64) []float64 {
	n := len(x)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		pos := float64(i) + p.offsetAt(i)
		if pos <= 0 {
			out[i] = x[0]
			continue
		}
		if pos >= float64(n-1) {
			out[i] = x[n-1]
			continue
		}
		lo := int(pos)
		frac := pos - float64(lo)
		out[i] = x[lo]*(1-frac) + x[lo+1]*frac
	}
	return out
}

// maxAbsOffset reports the largest displacement in the plan, in samples.
func (p jitterPlan) maxAbsOffset() float64 {
	worst := 0.0
	for _, o := range p.offsets {
		if a := math.Abs(o); a > worst {
			worst = a
		}
	}
	return worst
}
