package audio

import (
	"math"
	"testing"
)

func TestCalculatePSNRFloat64(t *testing.T) {
	a := []float64{0.1, -0.2, 0.3, -0.4}

	if p := CalculatePSNRFloat64(a, a); !math.IsInf(p, 1) {
		t.Errorf("identical signals: %v, want +Inf", p)
	}
	if p := CalculatePSNRFloat64(a, a[:2]); p != 0 {
		t.Errorf("length mismatch: %v, want 0", p)
	}

	// Uniform offset of 0.01 gives MSE 1e-4, PSNR exactly 40 dB.
	b := make([]float64, len(a))
	for i := range a {
		b[i] = a[i] + 0.01
	}
	if p := CalculatePSNRFloat64(a, b); math.Abs(p-40) > 1e-9 {
		t.Errorf("known-noise PSNR = %v, want 40", p)
	}
}

func TestSignalPSNR(t *testing.T) {
	orig := makeTestSignal(2, 4096, 44100)

	if p := SignalPSNR(orig, orig.Clone()); !math.IsInf(p, 1) {
		t.Errorf("identical signals: %v, want +Inf", p)
	}

	noisy := orig.Clone()
	for c := range noisy.Samples {
		for i := range noisy.Samples[c] {
			noisy.Samples[c][i] += 0.001
		}
	}
	p := SignalPSNR(orig, noisy)
	if math.Abs(p-60) > 1e-9 {
		t.Errorf("PSNR = %v, want 60", p)
	}

	if !ValidatePSNR(p, 40) {
		t.Error("60 dB should pass a 40 dB threshold")
	}
	if ValidatePSNR(p, 70) {
		t.Error("60 dB should fail a 70 dB threshold")
	}
	if !ValidatePSNR(math.Inf(1), 100) {
		t.Error("infinite PSNR should pass any threshold")
	}
}
