package watermark

import (
	"math"
	"testing"
)

func toneMags(bin int, peak float64) []float64 {
	mags := make([]float64, halfBins)
	mags[bin] = peak
	mags[bin-1] = peak * 0.6
	mags[bin+1] = peak * 0.6
	return mags
}

func TestMaskingThresholdTone(t *testing.T) {
	mags := toneMags(100, 10)
	curve := maskingThreshold(mags, 0.1)
	if curve.degenerate {
		t.Fatal("audible frame marked degenerate")
	}

	// Positive headroom everywhere: the quiet floor guarantees it.
	for k, th := range curve.threshold {
		if th <= 0 {
			t.Fatalf("threshold at bin %d is %v", k, th)
		}
	}
	// The threshold near the masker must stay below the masker itself.
	if curve.threshold[100] >= mags[100] {
		t.Errorf("threshold %v at the peak exceeds the masker %v", curve.threshold[100], mags[100])
	}
	// The envelope skirt decays away from the masker, so the threshold does
	// too, down to the quiet floor.
	if curve.threshold[105] >= curve.threshold[101] {
		t.Errorf("threshold does not decay away from the masker: %v >= %v", curve.threshold[105], curve.threshold[101])
	}
	floor := quietFloor * 10
	if got := curve.threshold[900]; math.Abs(got-floor) > floor*0.2 {
		t.Errorf("far-field threshold %v, want about the quiet floor %v", got, floor)
	}
}

func TestMaskingThresholdSilence(t *testing.T) {
	mags := make([]float64, halfBins)
	curve := maskingThreshold(mags, 0)
	if !curve.degenerate {
		t.Fatal("silent frame not marked degenerate")
	}
	for k := range mags {
		if curve.headroomAt(k) != 0 {
			t.Fatalf("degenerate frame reports headroom at bin %d", k)
		}
	}
}

func TestSpectralSNRIdentical(t *testing.T) {
	sig := makeSine(440, 1, 44100, 1, 0.5)
	if snr := SpectralSNR(sig, sig.Clone()); !math.IsInf(snr, 1) {
		t.Errorf("identical signals should give +Inf, got %v", snr)
	}
}

func TestSpectralSNRShapeMismatch(t *testing.T) {
	a := makeSine(440, 1, 44100, 1, 0.5)
	b := makeSine(440, 2, 44100, 1, 0.5)
	if snr := SpectralSNR(a, b); snr != 0 {
		t.Errorf("mismatched shapes should give 0, got %v", snr)
	}
}

func TestSpectralSNRKnownNoise(t *testing.T) {
	orig := makeSine(440, 2, 44100, 1, 0.5)
	noisy := orig.Clone()
	for i := range noisy.Samples[0] {
		noisy.Samples[0][i] += 0.005 * math.Sin(2*math.Pi*3000*float64(i)/44100)
	}
	snr := SpectralSNR(orig, noisy)
	if snr < 30 || snr > 110 {
		t.Errorf("SNR = %v dB for a -40 dB added tone, expected a high finite value", snr)
	}
	louder := orig.Clone()
	for i := range louder.Samples[0] {
		louder.Samples[0][i] += 0.05 * math.Sin(2*math.Pi*3000*float64(i)/44100)
	}
	if worse := SpectralSNR(orig, louder); worse >= snr {
		t.Errorf("louder noise should lower SNR: %v >= %v", worse, snr)
	}
}
