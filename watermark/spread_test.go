package watermark

import (
	"math"
	"testing"
)

func TestPlanBands(t *testing.T) {
	medium, _ := ProfileFor(LevelMedium)
	plan := planBands(medium.FrequencyBands, 44100)
	if len(plan.skipped) != 0 {
		t.Fatalf("no medium band should be skipped at 44.1kHz: %+v", plan.skipped)
	}
	if plan.slotsPerFrame() == 0 {
		t.Fatal("no embedding slots resolved")
	}
	for i := 1; i < len(plan.bins); i++ {
		if plan.bins[i] <= plan.bins[i-1] {
			t.Fatalf("bins not strictly ascending at %d: %d then %d", i, plan.bins[i-1], plan.bins[i])
		}
	}

	// At 22.05kHz the aggressive 16-20kHz band is beyond Nyquist.
	aggressive, _ := ProfileFor(LevelAggressive)
	plan = planBands(aggressive.FrequencyBands, 22050)
	if len(plan.skipped) != 1 {
		t.Fatalf("want 1 skipped band at 22.05kHz, got %d", len(plan.skipped))
	}
	if plan.skipped[0].Band.LowHz != 16000 {
		t.Errorf("skipped band = %+v, want 16-20kHz", plan.skipped[0].Band)
	}
}

func TestSpreadApplyMaskingBound(t *testing.T) {
	payload := testPayload()
	mags := toneMags(100, 10)
	orig := append([]float64(nil), mags...)
	curve := maskingThreshold(mags, 0.1)

	medium, _ := ProfileFor(LevelMedium)
	plan := planBands(medium.FrequencyBands, 44100)
	pn := payload.signSequence(streamSpread, plan.slotsPerFrame())

	// A strength far above 1.0 must still be clipped to the threshold.
	spreadApply(mags, curve, pn, 50.0, plan.bins)

	for k := range mags {
		if mags[k] < 0 {
			t.Fatalf("negative magnitude at bin %d", k)
		}
		change := math.Abs(mags[k] - orig[k])
		if change > curve.threshold[k]+1e-12 {
			t.Fatalf("bin %d changed by %v, threshold %v", k, change, curve.threshold[k])
		}
	}
}

func TestSpreadApplyDegenerate(t *testing.T) {
	mags := make([]float64, halfBins)
	orig := append([]float64(nil), mags...)
	curve := maskingThreshold(mags, 0)

	pn := testPayload().signSequence(streamSpread, 4)
	spreadApply(mags, curve, pn, 1.0, []int{10, 20, 30, 40})

	for k := range mags {
		if mags[k] != orig[k] {
			t.Fatalf("degenerate frame modified at bin %d", k)
		}
	}
}

func TestMFCCApplyMaskingBound(t *testing.T) {
	// Broadband-ish frame so the filterbank has real energy to perturb.
	mags := make([]float64, halfBins)
	for k := range mags {
		mags[k] = 1.0 / (1.0 + float64(k)/50)
	}
	orig := append([]float64(nil), mags...)
	curve := maskingThreshold(mags, 0.1)

	bank := melFilterBank(numMels, 44100, 20, 22050)
	signs := testPayload().signSequence(streamMFCC, mfccSignsPerFrame)

	// Far beyond any profile's ratio; the uniform scale-down must hold the
	// bound anyway.
	mfccApply(mags, curve, bank, signs, 5.0)

	changed := false
	for k := range mags {
		change := math.Abs(mags[k] - orig[k])
		if change > curve.threshold[k]*(1+1e-9) {
			t.Fatalf("bin %d changed by %v, threshold %v", k, change, curve.threshold[k])
		}
		if change > 0 {
			changed = true
		}
	}
	if !changed {
		t.Error("perturbation had no effect at all")
	}
}

func TestMFCCApplyDegenerate(t *testing.T) {
	mags := toneMags(100, 10)
	orig := append([]float64(nil), mags...)
	curve := maskingCurve{threshold: make([]float64, halfBins), degenerate: true}
	bank := melFilterBank(numMels, 44100, 20, 22050)
	signs := testPayload().signSequence(streamMFCC, mfccSignsPerFrame)

	mfccApply(mags, curve, bank, signs, 0.15)
	for k := range mags {
		if mags[k] != orig[k] {
			t.Fatalf("degenerate frame modified at bin %d", k)
		}
	}
}

func TestHighFreqPlan(t *testing.T) {
	nuclear, _ := ProfileFor(LevelNuclear)

	plan := planHighFreq(nuclear.FrequencyBands, 44100)
	if plan.skip != nil {
		t.Fatalf("unexpected skip at 44.1kHz: %+v", plan.skip)
	}
	if plan.band.LowHz != 16000 {
		t.Errorf("selected band %+v, want 16-20kHz", plan.band)
	}

	// 22.05kHz cannot carry 16-20kHz; the next band down is selected.
	plan = planHighFreq(nuclear.FrequencyBands, 22050)
	if plan.skip != nil {
		t.Fatalf("8-16kHz should still be usable at 22.05kHz: %+v", plan.skip)
	}
	if plan.band.LowHz != 8000 {
		t.Errorf("selected band %+v, want 8-16kHz", plan.band)
	}

	// 8kHz sample rate: Nyquist 4kHz, every band from 4kHz up is gone but
	// the lowest band still fits.
	plan = planHighFreq(nuclear.FrequencyBands, 8000)
	if plan.skip != nil {
		t.Fatalf("500-4000Hz should be usable at 8kHz: %+v", plan.skip)
	}
	if plan.band.LowHz != 500 {
		t.Errorf("selected band %+v, want 500-4000Hz", plan.band)
	}
}

func TestHighFreqEffectiveStrength(t *testing.T) {
	var p hfPlan
	if got := p.effectiveStrength(0.015); math.Abs(got-0.045) > 1e-12 {
		t.Errorf("boosted strength = %v, want 0.045", got)
	}
	if got := p.effectiveStrength(0.5); got != 1 {
		t.Errorf("strength cap = %v, want 1", got)
	}
}
