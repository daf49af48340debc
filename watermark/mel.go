package watermark

import "math"

// Cepstral front-end parameters. 26 mel bands and 13 coefficients over the
// full bandwidth of the signal; the disruption module perturbs coefficients
// cepsLow..cepsHigh, the low-order timbre region voice models consume.
const (
	numMels  = 26
	numCeps  = 13
	cepsLow  = 2
	cepsHigh = 9
	logFloor = 1e-10
)

// hzToMel converts frequency in Hz to the HTK mel scale.
func hzToMel(hz float64) float64 {
	return 2595.0 * math.Log10(1.0+hz/700.0)
}

// melToHz converts mel scale frequency back to Hz.
func melToHz(mel float64) float64 {
	return 700.0 * (math.Pow(10.0, mel/2595.0) - 1.0)
}

// melFilterBank creates triangular mel filters over [lowFreq, highFreq].
// Returns [numMels][halfBins] weights.
func melFilterBank(numFilters, sampleRate int, lowFreq, highFreq float64) [][]float64 {
	lowMel := hzToMel(lowFreq)
	highMel := hzToMel(highFreq)

	melPoints := make([]float64, numFilters+2)
	step := (highMel - lowMel) / float64(numFilters+1)
	for i := range melPoints {
		melPoints[i] = lowMel + float64(i)*step
	}

	bins := make([]int, numFilters+2)
	for i, m := range melPoints {
		hz := melToHz(m)
		bin := int(math.Round(hz * frameSize / float64(sampleRate)))
		if bin >= halfBins {
			bin = halfBins - 1
		}
		bins[i] = bin
	}
	// Ensure each filter has at least 1 bin width
	for i := 1; i < len(bins); i++ {
		if bins[i] <= bins[i-1] {
			bins[i] = bins[i-1] + 1
		}
	}

	bank := make([][]float64, numFilters)
	for m := 0; m < numFilters; m++ {
		filter := make([]float64, halfBins)
		left, center, right := bins[m], bins[m+1], bins[m+2]
		for k := left; k < center && k < halfBins; k++ {
			if center != left {
				filter[k] = float64(k-left) / float64(center-left)
			}
		}
		for k := center; k <= right && k < halfBins; k++ {
			if right != center {
				filter[k] = float64(right-k) / float64(right-center)
			}
		}
		bank[m] = filter
	}
	return bank
}

// melEnergies applies the filterbank to a power spectrum and returns log
// energies, floored to keep the log finite.
func melEnergies(bank [][]float64, mags []float64) []float64 {
	out := melBandPower(bank, mags)
	for m, sum := range out {
		if sum < logFloor {
			sum = logFloor
		}
		out[m] = math.Log(sum)
	}
	return out
}

// melBandPower applies the filterbank to a power spectrum and returns the
// linear band energies, without the log compression melEnergies adds.
func melBandPower(bank [][]float64, mags []float64) []float64 {
	out := make([]float64, len(bank))
	for m, filter := range bank {
		sum := 0.0
		for k, w := range filter {
			if w != 0 {
				sum += w * mags[k] * mags[k]
			}
		}
		out[m] = sum
	}
	return out
}

// dct2 computes the DCT-II of the log mel energies, truncated to n
// coefficients.
func dct2(logMels []float64, n int) []float64 {
	m := len(logMels)
	out := make([]float64, n)
	for j := 0; j < n; j++ {
		sum := 0.0
		for i, v := range logMels {
			sum += v * math.Cos(math.Pi*float64(j)*(float64(i)+0.5)/float64(m))
		}
		out[j] = sum
	}
	return out
}

// idct2 expands a (possibly truncated) coefficient vector back to m mel
// values. Inverse of dct2 up to the truncation.
func idct2(coeffs []float64, m int) []float64 {
	out := make([]float64, m)
	for i := 0; i < m; i++ {
		sum := coeffs[0] / 2
		for j := 1; j < len(coeffs); j++ {
			sum += coeffs[j] * math.Cos(math.Pi*float64(j)*(float64(i)+0.5)/float64(m))
		}
		out[i] = sum * 2 / float64(m)
	}
	return out
}

// cepstra computes the truncated cepstral vector for one frame's magnitude
// spectrum.
func cepstra(bank [][]float64, mags []float64) []float64 {
	return dct2(melEnergies(bank, mags), numCeps)
}
