// Package watermark implements the adversarial audio watermarking engine:
// psychoacoustically masked spread-spectrum embedding, MFCC disruption,
// temporal jitter and high-frequency adversarial patterns, plus the paired
// verifier. The engine operates on fully decoded in-memory buffers and does
// no I/O; container decode/encode lives in the audio package.
package watermark

// AudioSignal is a decoded PCM buffer: one float64 plane per channel, all
// planes the same length, samples normalized to [-1, 1]. The engine treats
// it as immutable and always returns a fresh buffer.
type AudioSignal struct {
	Samples    [][]float64
	SampleRate int
}

// NewAudioSignal allocates a zeroed signal with the given shape.
func NewAudioSignal(channels, length, sampleRate int) *AudioSignal {
	planes := make([][]float64, channels)
	for c := range planes {
		planes[c] = make([]float64, length)
	}
	return &AudioSignal{Samples: planes, SampleRate: sampleRate}
}

// Channels returns the channel count.
func (s *AudioSignal) Channels() int {
	return len(s.Samples)
}

// Length returns the per-channel sample count.
func (s *AudioSignal) Length() int {
	if len(s.Samples) == 0 {
		return 0
	}
	return len(s.Samples[0])
}

// Duration returns the signal duration in seconds.
func (s *AudioSignal) Duration() float64 {
	if s.SampleRate == 0 {
		return 0
	}
	return float64(s.Length()) / float64(s.SampleRate)
}

// Clone returns a deep copy of the signal.
func (s *AudioSignal) Clone() *AudioSignal {
	out := NewAudioSignal(s.Channels(), s.Length(), s.SampleRate)
	for c, plane := range s.Samples {
		copy(out.Samples[c], plane)
	}
	return out
}

// Mono mixes all channels down to a single averaged plane. Used by the
// verifier so a stereo candidate is analyzed once.
func (s *AudioSignal) Mono() []float64 {
	if s.Channels() == 1 {
		out := make([]float64, s.Length())
		copy(out, s.Samples[0])
		return out
	}
	n := s.Length()
	out := make([]float64, n)
	scale := 1.0 / float64(s.Channels())
	for _, plane := range s.Samples {
		for i, v := range plane {
			out[i] += v * scale
		}
	}
	return out
}
