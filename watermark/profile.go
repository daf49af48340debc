package watermark

import "fmt"

// Level selects one of the named protection profiles.
type Level string

const (
	LevelMetadata   Level = "metadata"
	LevelLight      Level = "light"
	LevelMedium     Level = "medium"
	LevelAggressive Level = "aggressive"
	LevelNuclear    Level = "nuclear"
)

// FrequencyBand is a [Low, High) interval in Hz eligible for embedding.
type FrequencyBand struct {
	LowHz  float64 `json:"low_hz"`
	HighHz float64 `json:"high_hz"`
}

// DegradationEstimate is the declared, per-profile AI-training degradation
// range in percent. These are configuration values carried verbatim from the
// profile documentation, not measurements of any model's training outcome.
type DegradationEstimate struct {
	Min int `json:"min"`
	Max int `json:"max"`
	Avg int `json:"avg"`
}

// ProtectionProfile bundles the DSP parameters for one protection level.
// Profiles are immutable constants; Profiles() hands out copies.
type ProtectionProfile struct {
	Level Level `json:"level"`

	// WatermarkStrength is the relative embedding gain applied to the
	// masking threshold. Aggressive and nuclear are documented with tunable
	// ranges (0.005-0.008 and 0.007-0.015); the table carries the top of
	// each range.
	WatermarkStrength float64 `json:"watermark_strength"`

	// MFCCDisruptionRatio is the fraction of cepstral coefficient magnitude
	// perturbed (0-1). Documented ranges for aggressive and nuclear are
	// 0.07-0.10 and 0.08-0.15.
	MFCCDisruptionRatio float64 `json:"mfcc_disruption_ratio"`

	// TemporalJitterMs is the maximum micro-timing offset per frame in
	// milliseconds (documented ranges 4-8 and 5-10 for the top two levels).
	TemporalJitterMs float64 `json:"temporal_jitter_ms"`

	// FrequencyBands are the disjoint intervals treated by the spread
	// spectrum embedder; the last (highest) band is also the high-frequency
	// adversarial band.
	FrequencyBands []FrequencyBand `json:"frequency_bands"`

	// EmbeddingRate is the fraction of analysis frames selected for
	// treatment (0-1).
	EmbeddingRate float64 `json:"embedding_rate"`

	// Degradation is the declared AI-degradation estimate for this level.
	Degradation DegradationEstimate `json:"ai_degradation_estimate"`
}

// IsMetadataOnly reports whether the profile performs no signal
// modification at all.
func (p ProtectionProfile) IsMetadataOnly() bool {
	return p.WatermarkStrength == 0 && p.MFCCDisruptionRatio == 0 &&
		p.TemporalJitterMs == 0 && p.EmbeddingRate == 0
}

// profileTable is the single source of truth for all protection levels,
// ordered weakest to strongest. Loaded once, never mutated.
var profileTable = []ProtectionProfile{
	{
		Level:       LevelMetadata,
		Degradation: DegradationEstimate{Min: 0, Max: 0, Avg: 0},
	},
	{
		Level:               LevelLight,
		WatermarkStrength:   0.001,
		MFCCDisruptionRatio: 0.02,
		TemporalJitterMs:    2,
		FrequencyBands: []FrequencyBand{
			{2000, 4000}, {8000, 12000},
		},
		EmbeddingRate: 0.3,
		Degradation:   DegradationEstimate{Min: 30, Max: 50, Avg: 40},
	},
	{
		Level:               LevelMedium,
		WatermarkStrength:   0.003,
		MFCCDisruptionRatio: 0.05,
		TemporalJitterMs:    5,
		FrequencyBands: []FrequencyBand{
			{2000, 4000}, {4000, 8000}, {8000, 16000},
		},
		EmbeddingRate: 0.5,
		Degradation:   DegradationEstimate{Min: 60, Max: 80, Avg: 70},
	},
	{
		Level:               LevelAggressive,
		WatermarkStrength:   0.008,
		MFCCDisruptionRatio: 0.10,
		TemporalJitterMs:    8,
		FrequencyBands: []FrequencyBand{
			{1000, 4000}, {4000, 8000}, {8000, 16000}, {16000, 20000},
		},
		EmbeddingRate: 0.7,
		Degradation:   DegradationEstimate{Min: 85, Max: 95, Avg: 90},
	},
	{
		Level:               LevelNuclear,
		WatermarkStrength:   0.015,
		MFCCDisruptionRatio: 0.15,
		TemporalJitterMs:    10,
		FrequencyBands: []FrequencyBand{
			{500, 4000}, {4000, 8000}, {8000, 16000}, {16000, 20000},
		},
		EmbeddingRate: 0.9,
		Degradation:   DegradationEstimate{Min: 95, Max: 99, Avg: 97},
	},
}

// Profiles returns all protection profiles ordered weakest to strongest.
func Profiles() []ProtectionProfile {
	out := make([]ProtectionProfile, len(profileTable))
	copy(out, profileTable)
	for i := range out {
		bands := make([]FrequencyBand, len(profileTable[i].FrequencyBands))
		copy(bands, profileTable[i].FrequencyBands)
		out[i].FrequencyBands = bands
	}
	return out
}

// ProfileFor looks up the profile for a level.
func ProfileFor(level Level) (ProtectionProfile, error) {
	for _, p := range Profiles() {
		if p.Level == level {
			return p, nil
		}
	}
	return ProtectionProfile{}, fmt.Errorf("watermark: unknown protection level %q", level)
}

// ParseLevel maps a string to a Level, defaulting unknown values to medium
// the way the upstream service always has.
func ParseLevel(s string) Level {
	switch Level(s) {
	case LevelMetadata, LevelLight, LevelMedium, LevelAggressive, LevelNuclear:
		return Level(s)
	default:
		return LevelMedium
	}
}
