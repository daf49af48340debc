package audio

import (
	"math"

	"watermark-backend/watermark"
)

// CalculatePSNRFloat64 calculates PSNR for float64 audio samples
func CalculatePSNRFloat64(original, protected []float64) float64 {
	if len(original) != len(protected) {
		return 0.0
	}

	if len(original) == 0 {
		return 0.0
	}

	// Calculate Mean Squared Error (MSE)
	var mse float64
	for i := range original {
		diff := original[i] - protected[i]
		mse += diff * diff
	}
	mse /= float64(len(original))

	// If MSE is 0, signals are identical
	if mse == 0 {
		return math.Inf(1) // Infinite PSNR
	}

	// Calculate PSNR in dB
	// For normalized float audio (-1.0 to 1.0), MAX_SIGNAL_VALUE = 1.0
	maxSignalValue := 1.0
	psnr := 20 * math.Log10(maxSignalValue/math.Sqrt(mse))

	return psnr
}

// SignalPSNR averages the per-channel time-domain PSNR of two equal-shape
// signals. The temporal jitter technique intentionally defeats sample-wise
// comparison; for protected output report watermark.SpectralSNR, which is
// phase-blind.
func SignalPSNR(original, protected *watermark.AudioSignal) float64 {
	if original.Channels() != protected.Channels() || original.Channels() == 0 {
		return 0.0
	}
	var sum float64
	for ch := range original.Samples {
		p := CalculatePSNRFloat64(original.Samples[ch], protected.Samples[ch])
		if math.IsInf(p, 1) {
			return math.Inf(1)
		}
		sum += p
	}
	return sum / float64(original.Channels())
}

func ValidatePSNR(psnr float64, threshold float64) bool {
	if math.IsInf(psnr, 1) {
		return true // Infinite PSNR is always good
	}
	return psnr >= threshold
}
