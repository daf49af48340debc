package watermark

import (
	"context"
	"math"
)

// Detection tuning. One named threshold decides is_protected; the reference
// constants normalize raw correlations into [0, 1] sub-scores.
const (
	// DetectionThreshold is the confidence above which a payload-matched
	// verification reports is_protected.
	DetectionThreshold = 0.55

	// BlindConfidenceCap bounds blind-mode confidence: detection without a
	// payload is statistically weaker and must never be reported with the
	// assurance of a payload match.
	BlindConfidenceCap = 0.60

	// BlindThreshold decides is_protected in blind mode.
	BlindThreshold = 0.35

	// Correlation references: a raw statistic at or above the reference
	// saturates its sub-score.
	spreadCorrRef = 0.05
	spreadCorrMin = 0.01
	mfccCorrRef   = 0.20
	jitterCorrRef = 0.50

	// Sub-score weights in the combined confidence.
	weightSpread = 0.35
	weightMFCC   = 0.25
	weightJitter = 0.15
	weightHF     = 0.25
)

// TechniqueScores carries the per-technique detection sub-scores, each in
// [0, 1].
type TechniqueScores struct {
	SpreadSpectrum float64 `json:"spread_spectrum"`
	MFCCDeviation  float64 `json:"mfcc_deviation"`
	TemporalJitter float64 `json:"temporal_jitter"`
	HighFrequency  float64 `json:"high_frequency"`
}

// VerificationReport is the verifier's output. A payload that matches no
// detectable signature is not an error: it reports is_protected=false with
// low confidence.
type VerificationReport struct {
	IsProtected   bool            `json:"is_protected"`
	Confidence    float64         `json:"confidence"`
	Blind         bool            `json:"blind"`
	DetectedLevel Level           `json:"detected_level,omitempty"`
	Scores        TechniqueScores `json:"scores"`
}

// candidateAnalysis caches the per-frame spectra, magnitudes, cepstra and
// RMS of the (mono-mixed) candidate so profile matching reuses one pass.
type candidateAnalysis struct {
	mono   []float64
	grid   frameGrid
	frames []*spectrum
	mags   [][]float64
	ceps   [][]float64
	rms    []float64
	rate   int
	bank   [][]float64
}

// Verify checks a candidate signal for an embedded signature. With a
// payload it regenerates every deterministic sequence the embedder used and
// correlates them against the candidate, trying each protection level and
// reporting the best match. With a nil payload it falls back to blind
// statistical detection, which is strictly weaker.
func (e *Engine) Verify(ctx context.Context, signal *AudioSignal, payload *WatermarkPayload) (*VerificationReport, error) {
	if signal == nil || signal.Channels() == 0 || signal.SampleRate <= 0 {
		return nil, ErrEmptySignal
	}
	if signal.Length() < frameSize {
		return nil, ErrInputTooShort
	}

	ca, err := e.analyzeCandidate(ctx, signal)
	if err != nil {
		return nil, err
	}

	if payload == nil {
		return blindDetect(ca), nil
	}

	best := VerificationReport{}
	for _, profile := range Profiles() {
		if profile.IsMetadataOnly() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, ErrCancelled
		}
		scores := matchProfile(ca, *payload, profile)
		confidence := weightSpread*scores.SpreadSpectrum +
			weightMFCC*scores.MFCCDeviation +
			weightJitter*scores.TemporalJitter +
			weightHF*scores.HighFrequency
		if confidence >= best.Confidence {
			best = VerificationReport{
				Confidence:    confidence,
				DetectedLevel: profile.Level,
				Scores:        scores,
			}
		}
	}
	best.IsProtected = best.Confidence >= DetectionThreshold
	if !best.IsProtected {
		best.DetectedLevel = ""
	}
	return &best, nil
}

func (e *Engine) analyzeCandidate(ctx context.Context, signal *AudioSignal) (*candidateAnalysis, error) {
	mono := signal.Mono()
	grid := gridFor(len(mono))
	window := hannWindow(frameSize)
	bank := melFilterBank(numMels, signal.SampleRate, 20, float64(signal.SampleRate)/2)

	ca := &candidateAnalysis{
		mono:   mono,
		grid:   grid,
		frames: make([]*spectrum, grid.numFrames),
		mags:   make([][]float64, grid.numFrames),
		ceps:   make([][]float64, grid.numFrames),
		rms:    make([]float64, grid.numFrames),
		rate:   signal.SampleRate,
		bank:   bank,
	}
	err := e.runFrames(ctx, grid.numFrames, func(t int) {
		f := analyzeFrame(mono, grid, window, t)
		ca.frames[t] = f
		ca.mags[t] = f.magnitudes()
		ca.ceps[t] = cepstra(bank, ca.mags[t])
		ca.rms[t] = frameRMS(mono, grid, t)
	})
	if err != nil {
		return nil, err
	}
	return ca, nil
}

// matchProfile recomputes the embedder's deterministic state for one
// profile and scores each technique against the candidate.
func matchProfile(ca *candidateAnalysis, payload WatermarkPayload, profile ProtectionProfile) TechniqueScores {
	eligible := selectFrames(payload, ca.grid.numFrames, profile.EmbeddingRate)
	ranks, count := eligibleRanks(eligible)
	bands := planBands(profile.FrequencyBands, ca.rate)
	hf := planHighFreq(profile.FrequencyBands, ca.rate)

	// The high-frequency pattern is embedded three times stronger than the
	// spread-spectrum slots and the two share the profile's top band, so its
	// bins are excluded from the spread statistic. The MFCC envelope
	// statistic additionally excludes every slot-carrying bin: the slot
	// lifts dwarf the envelope change.
	hfBins := make([]bool, halfBins)
	for _, k := range hf.bins {
		hfBins[k] = true
	}
	slotBins := make([]bool, halfBins)
	copy(slotBins, hfBins)
	for _, k := range bands.bins {
		slotBins[k] = true
	}

	var scores TechniqueScores
	if slots := bands.slotsPerFrame(); slots > 0 && count > 0 {
		pn := payload.signSequence(streamSpread, count*slots)
		rho := magnitudeCorrelation(ca, eligible, ranks, bands.bins, pn, hfBins)
		scores.SpreadSpectrum = clampScore((rho - spreadCorrMin) / spreadCorrRef)
	}
	if count > 0 {
		signs := payload.signSequence(streamMFCC, count*mfccSignsPerFrame)
		scores.MFCCDeviation = mfccPatternCorrelation(ca, eligible, ranks, signs, profile.MFCCDisruptionRatio, slotBins)
	}
	if profile.TemporalJitterMs > 0 {
		scores.TemporalJitter = jitterSlopeCorrelation(ca, payload, profile, eligible)
	}
	if len(hf.bins) > 0 && count > 0 {
		pn := payload.signSequence(streamHighFreq, count*len(hf.bins))
		rho := magnitudeCorrelation(ca, eligible, ranks, hf.bins, pn, nil)
		scores.HighFrequency = clampScore((rho - spreadCorrMin) / spreadCorrRef)
	}
	return scores
}

// magnitudeCorrelation is the normalized correlation between the candidate
// magnitudes at the embedding slots and the pseudo-noise signs. Clean audio
// is uncorrelated with the sequence and scores near zero; embedded audio
// concentrates its slot energy on the positive signs. Bins flagged in
// excluded are skipped without disturbing the positional slot indexing.
func magnitudeCorrelation(ca *candidateAnalysis, eligible []bool, ranks []int, bins []int, pn []float64, excluded []bool) float64 {
	var num, den float64
	slots := len(bins)
	for t, ok := range eligible {
		if !ok {
			continue
		}
		base := ranks[t] * slots
		mags := ca.mags[t]
		for i, k := range bins {
			if excluded != nil && excluded[k] {
				continue
			}
			v := mags[k]
			num += pn[base+i] * v
			den += v
		}
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// mfccPatternCorrelation regenerates the envelope perturbation the embedder
// derives from each treated frame's cepstra and correlates it with the
// frame's measured mel log-energy deviation. The reference per band is the
// mean over the treated frames themselves, so stationary content cancels
// and only the frame-to-frame pattern remains. Mel bands whose filters
// touch a slot-carrying bin are excluded, as are bands pinned to the mel
// log floor: neither carries the envelope change.
func mfccPatternCorrelation(ca *candidateAnalysis, eligible []bool, ranks []int, signs []float64, ratio float64, slotBins []bool) float64 {
	if ratio == 0 {
		return 0
	}
	usable := make([]bool, len(ca.bank))
	for m, filter := range ca.bank {
		ok := false
		for k, w := range filter {
			if w == 0 {
				continue
			}
			if slotBins[k] {
				ok = false
				break
			}
			ok = true
		}
		usable[m] = ok
	}

	logs := make([][]float64, len(eligible))
	mean := make([]float64, numMels)
	count := 0
	for t, ok := range eligible {
		if !ok || ca.rms[t] < silenceRMS {
			continue
		}
		logs[t] = melEnergies(ca.bank, ca.mags[t])
		for m, v := range logs[t] {
			mean[m] += v
		}
		count++
	}
	if count < 2 {
		return 0
	}
	for m := range mean {
		mean[m] /= float64(count)
	}

	floor := math.Log(logFloor) + 1
	var dev, want []float64
	for t, le := range logs {
		if le == nil {
			continue
		}
		base := ranks[t] * mfccSignsPerFrame
		pattern := mfccEnvelope(ca.ceps[t], signs[base:base+mfccSignsPerFrame], ratio)
		for m, v := range le {
			if !usable[m] || mean[m] <= floor {
				continue
			}
			dev = append(dev, v-mean[m])
			want = append(want, pattern[m])
		}
	}
	if len(dev) < 8 {
		return 0
	}
	return clampScore(pearson(dev, want) / mfccCorrRef)
}

// jitterSlopeCorrelation regenerates the payload's warp plan and checks
// whether the candidate's frame-to-frame phase increments at its dominant
// bin move with the planned offset deltas. The warp advances each frame's
// content by the local offset, so a jittered signal shows phase-increment
// deviations proportional to the offset slope; clean audio or a wrong
// payload is uncorrelated with the plan and scores near zero.
func jitterSlopeCorrelation(ca *candidateAnalysis, payload WatermarkPayload, profile ProtectionProfile, eligible []bool) float64 {
	plan := planJitter(payload, len(ca.mono), ca.rate, profile.TemporalJitterMs, func(block int) bool {
		if block >= len(eligible) {
			block = len(eligible) - 1
		}
		return eligible[block]
	})
	if plan.maxAbsOffset() == 0 {
		return 0
	}

	bin := dominantBin(ca.mags)
	gate := 0.0
	for _, mags := range ca.mags {
		if mags[bin] > gate {
			gate = mags[bin]
		}
	}
	gate *= 0.1

	// Frame t is centered at sample t*hop - hop; its phase increment to the
	// next frame reflects the offset change between the two centers.
	var measured, predicted []float64
	var sumRe, sumIm float64
	for t := 0; t+1 < len(ca.frames); t++ {
		if ca.mags[t][bin] < gate || ca.mags[t+1][bin] < gate {
			continue
		}
		d := ca.frames[t+1].phase(bin) - ca.frames[t].phase(bin)
		measured = append(measured, d)
		center := (t - 1) * hopSize
		predicted = append(predicted, plan.offsetAt(center+hopSize)-plan.offsetAt(center))
		sumRe += math.Cos(d)
		sumIm += math.Sin(d)
	}
	if len(measured) < 3 {
		return 0
	}

	// Deviation from the circular mean increment, wrapped to (-pi, pi].
	mean := math.Atan2(sumIm, sumRe)
	for i, d := range measured {
		measured[i] = math.Atan2(math.Sin(d-mean), math.Cos(d-mean))
	}

	return clampScore(pearson(measured, predicted) / jitterCorrRef)
}

// pearson is the sample correlation coefficient of two equal-length series.
func pearson(a, b []float64) float64 {
	n := float64(len(a))
	var ma, mb float64
	for i := range a {
		ma += a[i]
		mb += b[i]
	}
	ma /= n
	mb /= n
	var num, va, vb float64
	for i := range a {
		da := a[i] - ma
		db := b[i] - mb
		num += da * db
		va += da * da
		vb += db * db
	}
	if va == 0 || vb == 0 {
		return 0
	}
	return num / math.Sqrt(va*vb)
}

// dominantBin finds the bin with the largest summed magnitude across
// frames.
func dominantBin(mags [][]float64) int {
	sums := make([]float64, halfBins)
	for _, m := range mags {
		for k, v := range m {
			sums[k] += v
		}
	}
	best, bestV := 1, 0.0
	for k := 1; k < halfBins; k++ {
		if sums[k] > bestV {
			best, bestV = k, sums[k]
		}
	}
	return best
}

// blindDetect runs payload-free statistical tests: high-frequency band
// activity, cepstral variance anomalies and an in-band noise floor. Its
// confidence is capped below the payload-matched range by contract.
func blindDetect(ca *candidateAnalysis) *VerificationReport {
	hfScore := blindHFActivity(ca)
	cepsScore := blindCepstralVariance(ca)
	floorScore := blindBandFloor(ca)

	// Sparse tonal material can saturate the cepstral and floor statistics
	// on its own, so their combined weight stays below BlindThreshold: a
	// blind positive always requires high-frequency evidence.
	confidence := 0.7*hfScore + 0.2*cepsScore + 0.1*floorScore
	if confidence > BlindConfidenceCap {
		confidence = BlindConfidenceCap
	}
	return &VerificationReport{
		IsProtected: confidence >= BlindThreshold,
		Confidence:  confidence,
		Blind:       true,
		Scores: TechniqueScores{
			HighFrequency:  hfScore,
			MFCCDeviation:  cepsScore,
			SpreadSpectrum: floorScore,
		},
	}
}

// blindHFActivity is the mean magnitude in 16-20 kHz relative to the whole
// spectrum. Ordinary recordings carry almost nothing up there; the
// high-frequency adversarial pattern does.
func blindHFActivity(ca *candidateAnalysis) float64 {
	lo, hi, ok := binRange(FrequencyBand{LowHz: 16000, HighHz: 20000}, ca.rate)
	if !ok {
		return 0
	}
	var hfSum, allSum float64
	var hfN, allN int
	for _, mags := range ca.mags {
		for k, v := range mags {
			allSum += v
			allN++
			if k >= lo && k <= hi {
				hfSum += v
				hfN++
			}
		}
	}
	if allN == 0 || hfN == 0 || allSum == 0 {
		return 0
	}
	ratio := (hfSum / float64(hfN)) / (allSum / float64(allN))
	return clampScore(ratio / 0.01)
}

// blindCepstralVariance looks for unusual variance in the upper cepstral
// coefficients, the footprint MFCC disruption leaves when only a fraction
// of frames is treated.
func blindCepstralVariance(ca *candidateAnalysis) float64 {
	active := 0
	mean := make([]float64, numCeps)
	for t, c := range ca.ceps {
		if ca.rms[t] < silenceRMS {
			continue
		}
		for j := 0; j < numCeps; j++ {
			mean[j] += c[j]
		}
		active++
	}
	if active < 2 {
		return 0
	}
	for j := range mean {
		mean[j] /= float64(active)
	}
	var variance float64
	for t, c := range ca.ceps {
		if ca.rms[t] < silenceRMS {
			continue
		}
		for j := cepsLow; j <= cepsHigh; j++ {
			d := c[j] - mean[j]
			variance += d * d
		}
	}
	variance /= float64(active * mfccSignsPerFrame)
	return clampScore(variance / 0.5)
}

// blindBandFloor measures the median in-band magnitude against the
// spectral peak. Spread-spectrum embedding lifts otherwise empty bins to a
// detectable floor.
func blindBandFloor(ca *candidateAnalysis) float64 {
	lo, hi, ok := binRange(FrequencyBand{LowHz: 2000, HighHz: 16000}, ca.rate)
	if !ok {
		return 0
	}
	var floorSum, peak float64
	count := 0
	for _, mags := range ca.mags {
		for _, v := range mags {
			if v > peak {
				peak = v
			}
		}
		for k := lo; k <= hi; k++ {
			floorSum += mags[k]
			count++
		}
	}
	if peak == 0 || count == 0 {
		return 0
	}
	ratio := (floorSum / float64(count)) / peak
	if ratio <= 0 {
		return 0
	}
	// Log-scaled: -6 decades maps to 0, -3 decades saturates.
	return clampScore((math.Log10(ratio) + 6) / 3)
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
