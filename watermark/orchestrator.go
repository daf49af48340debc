package watermark

import (
	"context"
	"fmt"
	"runtime"
	"sync"
)

// AppliedParams records what was actually embedded, as opposed to what the
// profile requested. Per-frame degradations (degenerate masking frames,
// unsupported bands) are recovered locally and accumulated here so callers
// and tests can assert on the real outcome.
type AppliedParams struct {
	Level            Level          `json:"level"`
	SampleRate       int            `json:"sample_rate"`
	Channels         int            `json:"channels"`
	FrameSize        int            `json:"frame_size"`
	HopSize          int            `json:"hop_size"`
	TotalFrames      int            `json:"total_frames"`
	EligibleFrames   int            `json:"eligible_frames"`
	DegenerateFrames int            `json:"degenerate_frames"`
	SkippedBands     []BandSkip     `json:"skipped_bands,omitempty"`
	HighFreqBand     *FrequencyBand `json:"high_freq_band,omitempty"`
}

// ProtectionResult is the output of one protect call: the new buffer, the
// profile that produced it, the applied-parameters record and the declared
// (not measured) AI-degradation estimate carried by the profile.
type ProtectionResult struct {
	Signal      *AudioSignal
	Profile     ProtectionProfile
	Applied     AppliedParams
	Degradation DegradationEstimate
}

// Engine runs the embedding pipeline and the verifier. Engines hold no
// mutable state, so one Engine may serve concurrent calls on different
// inputs without locking.
type Engine struct {
	workers int
}

// NewEngine creates an engine with a bounded worker pool for frame-level
// work. workers <= 0 selects one worker per CPU.
func NewEngine(workers int) *Engine {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Engine{workers: workers}
}

// selectFrames deterministically picks exactly floor(rate * total) frame
// indices from the payload's selection stream: a seeded permutation, first
// k entries. Reproducible for any party holding the payload.
func selectFrames(payload WatermarkPayload, total int, rate float64) []bool {
	eligible := make([]bool, total)
	k := int(rate * float64(total))
	if k <= 0 {
		return eligible
	}
	if k > total {
		k = total
	}
	perm := payload.stream(streamSelect).Perm(total)
	for _, t := range perm[:k] {
		eligible[t] = true
	}
	return eligible
}

// eligibleRanks maps each eligible frame to its rank in ascending frame
// order, which indexes that frame's slice of each pseudo-noise sequence.
func eligibleRanks(eligible []bool) ([]int, int) {
	ranks := make([]int, len(eligible))
	count := 0
	for t, ok := range eligible {
		if ok {
			ranks[t] = count
			count++
		} else {
			ranks[t] = -1
		}
	}
	return ranks, count
}

// runFrames fans fn out over [0, total) on the worker pool. fn must touch
// only per-index state; results are assembled in index order by the caller,
// so scheduling cannot change the output.
func (e *Engine) runFrames(ctx context.Context, total int, fn func(t int)) error {
	workers := e.workers
	if workers > total {
		workers = total
	}
	if workers < 1 {
		workers = 1
	}
	chunk := (total + workers - 1) / workers
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > total {
			hi = total
		}
		if lo >= hi {
			break
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for t := lo; t < hi; t++ {
				if ctx.Err() != nil {
					return
				}
				fn(t)
			}
		}(lo, hi)
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCancelled, err)
	}
	return nil
}

// Protect embeds the four adversarial techniques into signal under the
// given profile and payload. It is a pure function of its inputs: identical
// arguments produce a byte-identical buffer, including on an already
// protected signal (which simply gains a second independent signature).
// Nothing observable is produced on cancellation.
func (e *Engine) Protect(ctx context.Context, signal *AudioSignal, profile ProtectionProfile, payload WatermarkPayload) (*ProtectionResult, error) {
	if signal == nil || signal.Channels() == 0 || signal.SampleRate <= 0 {
		return nil, ErrEmptySignal
	}
	n := signal.Length()
	applied := AppliedParams{
		Level:      profile.Level,
		SampleRate: signal.SampleRate,
		Channels:   signal.Channels(),
		FrameSize:  frameSize,
		HopSize:    hopSize,
	}

	if profile.IsMetadataOnly() {
		// The metadata profile performs no signal modification.
		return &ProtectionResult{
			Signal:      signal.Clone(),
			Profile:     profile,
			Applied:     applied,
			Degradation: profile.Degradation,
		}, nil
	}
	if n < frameSize {
		return nil, ErrInputTooShort
	}

	grid := gridFor(n)
	window := hannWindow(frameSize)
	eligible := selectFrames(payload, grid.numFrames, profile.EmbeddingRate)
	ranks, eligibleCount := eligibleRanks(eligible)

	bands := planBands(profile.FrequencyBands, signal.SampleRate)
	hf := planHighFreq(profile.FrequencyBands, signal.SampleRate)

	applied.TotalFrames = grid.numFrames
	applied.EligibleFrames = eligibleCount
	applied.SkippedBands = append(applied.SkippedBands, bands.skipped...)
	if hf.skip != nil {
		applied.SkippedBands = append(applied.SkippedBands, *hf.skip)
	} else if len(hf.bins) > 0 {
		band := hf.band
		applied.HighFreqBand = &band
	}

	// Pseudo-noise sequences, one slot range per eligible frame. Slots are
	// positional so the verifier can regenerate them without knowing which
	// frames turned out degenerate. Channels share the same sequences.
	spreadPN := payload.signSequence(streamSpread, eligibleCount*bands.slotsPerFrame())
	mfccSigns := payload.signSequence(streamMFCC, eligibleCount*mfccSignsPerFrame)
	hfPN := payload.signSequence(streamHighFreq, eligibleCount*len(hf.bins))

	bank := melFilterBank(numMels, signal.SampleRate, 20, float64(signal.SampleRate)/2)
	jitter := planJitter(payload, n, signal.SampleRate, profile.TemporalJitterMs, func(block int) bool {
		if block >= len(eligible) {
			block = len(eligible) - 1
		}
		return eligible[block]
	})

	out := NewAudioSignal(signal.Channels(), n, signal.SampleRate)
	for c := range signal.Samples {
		plane, degenerate, err := e.protectChannel(ctx, signal.Samples[c], grid, window,
			profile, eligible, ranks, bands, hf, spreadPN, mfccSigns, hfPN, bank, jitter)
		if err != nil {
			return nil, err
		}
		applied.DegenerateFrames += degenerate
		out.Samples[c] = plane
	}

	return &ProtectionResult{
		Signal:      out,
		Profile:     profile,
		Applied:     applied,
		Degradation: profile.Degradation,
	}, nil
}

// protectChannel applies the temporal jitter in the time domain first, then
// one spectral pass embedding spread-spectrum, MFCC disruption and the
// high-frequency pattern on the jittered samples. Embedding after the warp
// keeps every spectral signature frame-aligned with the analysis grid the
// verifier reuses; warping on top of embedded marks would resample them
// below what the detection statistics can recover.
func (e *Engine) protectChannel(ctx context.Context, x []float64, grid frameGrid, window []float64,
	profile ProtectionProfile, eligible []bool, ranks []int, bands bandPlan, hf hfPlan,
	spreadPN, mfccSigns, hfPN []float64, bank [][]float64, jitter jitterPlan) ([]float64, int, error) {

	y := jitter.applyWarp(x)

	frames := make([]*spectrum, grid.numFrames)
	degenerate := make([]bool, grid.numFrames)
	slots := bands.slotsPerFrame()

	err := e.runFrames(ctx, grid.numFrames, func(t int) {
		f := analyzeFrame(y, grid, window, t)
		frames[t] = f
		if !eligible[t] {
			return
		}
		mags := f.magnitudes()
		curve := maskingThreshold(mags, frameRMS(y, grid, t))
		if curve.degenerate {
			degenerate[t] = true
			return
		}
		r := ranks[t]
		if slots > 0 {
			spreadApply(mags, curve, spreadPN[r*slots:(r+1)*slots], profile.WatermarkStrength, bands.bins)
		}
		mfccApply(mags, curve, bank, mfccSigns[r*mfccSignsPerFrame:(r+1)*mfccSignsPerFrame], profile.MFCCDisruptionRatio)
		if len(hf.bins) > 0 {
			hf.hfApply(mags, curve, hfPN[r*len(hf.bins):(r+1)*len(hf.bins)], profile.WatermarkStrength)
		}
		f.setMagnitudes(mags)
	})
	if err != nil {
		return nil, 0, err
	}
	y = synthesize(frames, grid)

	count := 0
	for _, d := range degenerate {
		if d {
			count++
		}
	}
	return y, count, nil
}
