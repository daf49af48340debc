package watermark

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/rand"
	"time"
)

// Technique labels key the independent pseudo-noise streams so the four
// signatures are separately recoverable by the verifier.
const (
	streamSpread   = "spread-spectrum"
	streamMFCC     = "mfcc-disruption"
	streamJitter   = "temporal-jitter"
	streamHighFreq = "high-frequency"
	streamSelect   = "frame-selection"
)

// WatermarkPayload identifies the protected work. Every pseudo-random
// sequence the embedding modules consume is derived deterministically from
// these fields, so protect is a pure function of (signal, profile, payload).
type WatermarkPayload struct {
	ArtistName string
	TrackTitle string
	Timestamp  time.Time

	// ContentHash is a hex digest of the original file bytes, supplied by
	// the caller. It ties the signature to one specific recording.
	ContentHash string
}

// Signature returns the hex digest identifying this payload. It is embedded
// in metadata tags and reported back to the caller.
func (p WatermarkPayload) Signature() string {
	return fmt.Sprintf("%x", p.seedDigest())[:32]
}

func (p WatermarkPayload) seedDigest() [32]byte {
	material := fmt.Sprintf("%s:%s:%d:%s:ADVERSARIAL_WATERMARK",
		p.ArtistName, p.TrackTitle, p.Timestamp.UTC().Unix(), p.ContentHash)
	return sha256.Sum256([]byte(material))
}

// subSeed derives the int64 seed for one technique's stream: the first
// eight bytes of SHA-256(payload digest || label).
func (p WatermarkPayload) subSeed(label string) int64 {
	digest := p.seedDigest()
	h := sha256.New()
	h.Write(digest[:])
	h.Write([]byte(label))
	sum := h.Sum(nil)
	return int64(binary.BigEndian.Uint64(sum[:8]))
}

// stream returns a deterministic RNG for one technique. math/rand guarantees
// a stable sequence for a fixed seed, which the determinism contract relies
// on.
func (p WatermarkPayload) stream(label string) *rand.Rand {
	return rand.New(rand.NewSource(p.subSeed(label)))
}

// signSequence returns n values in {-1, +1} drawn from the labeled stream.
func (p WatermarkPayload) signSequence(label string, n int) []float64 {
	rng := p.stream(label)
	out := make([]float64, n)
	for i := range out {
		if rng.Intn(2) == 0 {
			out[i] = -1
		} else {
			out[i] = 1
		}
	}
	return out
}
