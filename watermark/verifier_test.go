package watermark

import (
	"context"
	"errors"
	"testing"
)

func TestVerifyNegativeControl(t *testing.T) {
	engine := NewEngine(4)
	payload := testPayload()
	signal := makeSine(440, 5, 44100, 1, 0.6)

	report, err := engine.Verify(context.Background(), signal, &payload)
	if err != nil {
		t.Fatal(err)
	}
	if report.IsProtected {
		t.Errorf("clean signal reported protected (confidence %.3f, scores %+v)",
			report.Confidence, report.Scores)
	}
	if report.DetectedLevel != "" {
		t.Errorf("unprotected report carries level %q", report.DetectedLevel)
	}
}

func TestVerifyWrongPayload(t *testing.T) {
	engine := NewEngine(4)
	payload := testPayload()
	profile, _ := ProfileFor(LevelMedium)
	signal := makeSine(440, 5, 44100, 1, 0.6)

	result, err := engine.Protect(context.Background(), signal, profile, payload)
	if err != nil {
		t.Fatal(err)
	}

	wrong := payload
	wrong.ArtistName = "Impostor"
	report, err := engine.Verify(context.Background(), result.Signal, &wrong)
	if err != nil {
		t.Fatal(err)
	}
	if report.IsProtected {
		t.Errorf("wrong payload verified (confidence %.3f, scores %+v)",
			report.Confidence, report.Scores)
	}
}

func TestBlindDetection(t *testing.T) {
	engine := NewEngine(4)
	payload := testPayload()
	profile, _ := ProfileFor(LevelNuclear)
	signal := makeSine(440, 5, 44100, 1, 0.6)

	result, err := engine.Protect(context.Background(), signal, profile, payload)
	if err != nil {
		t.Fatal(err)
	}

	report, err := engine.Verify(context.Background(), result.Signal, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !report.Blind {
		t.Error("nil payload must run blind detection")
	}
	if report.Confidence > BlindConfidenceCap {
		t.Errorf("blind confidence %.3f exceeds the cap %.2f", report.Confidence, BlindConfidenceCap)
	}
	if !report.IsProtected {
		t.Errorf("nuclear protection missed by blind detection (confidence %.3f, scores %+v)",
			report.Confidence, report.Scores)
	}
	if report.DetectedLevel != "" {
		t.Error("blind detection cannot name a level")
	}
}

func TestBlindDetectionCleanSignal(t *testing.T) {
	engine := NewEngine(4)
	signal := makeSine(440, 5, 44100, 1, 0.6)

	report, err := engine.Verify(context.Background(), signal, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !report.Blind {
		t.Error("nil payload must run blind detection")
	}
	if report.IsProtected {
		t.Errorf("clean signal flagged by blind detection (confidence %.3f, scores %+v)",
			report.Confidence, report.Scores)
	}
}

// Sparse tonal content inflates the cepstral-variance and band-floor
// statistics; without high-frequency evidence they must not add up to a
// blind positive.
func TestBlindCleanTonalLowRate(t *testing.T) {
	engine := NewEngine(2)
	signal := makeSine(440, 2, 8000, 1, 0.6)

	report, err := engine.Verify(context.Background(), signal, nil)
	if err != nil {
		t.Fatal(err)
	}
	if report.IsProtected {
		t.Errorf("clean tonal signal flagged by blind detection (confidence %.3f, scores %+v)",
			report.Confidence, report.Scores)
	}
	if report.Confidence >= BlindThreshold {
		t.Errorf("clean confidence %.3f reached the blind threshold %.2f", report.Confidence, BlindThreshold)
	}
}

// Blind detection is contractually weaker than payload-matched detection on
// the same protected buffer.
func TestBlindWeakerThanMatched(t *testing.T) {
	engine := NewEngine(4)
	payload := testPayload()
	profile, _ := ProfileFor(LevelNuclear)
	signal := makeSine(440, 5, 44100, 1, 0.6)

	result, err := engine.Protect(context.Background(), signal, profile, payload)
	if err != nil {
		t.Fatal(err)
	}
	matched, err := engine.Verify(context.Background(), result.Signal, &payload)
	if err != nil {
		t.Fatal(err)
	}
	blind, err := engine.Verify(context.Background(), result.Signal, nil)
	if err != nil {
		t.Fatal(err)
	}
	if blind.Confidence >= matched.Confidence {
		t.Errorf("blind confidence %.3f not below matched %.3f", blind.Confidence, matched.Confidence)
	}
}

func TestVerifyInputTooShort(t *testing.T) {
	engine := NewEngine(2)
	payload := testPayload()
	signal := NewAudioSignal(1, 100, 44100)

	if _, err := engine.Verify(context.Background(), signal, &payload); !errors.Is(err, ErrInputTooShort) {
		t.Fatalf("want ErrInputTooShort, got %v", err)
	}
}

func TestVerifyEmptySignal(t *testing.T) {
	if _, err := NewEngine(2).Verify(context.Background(), nil, nil); !errors.Is(err, ErrEmptySignal) {
		t.Fatalf("want ErrEmptySignal, got %v", err)
	}
}

func TestVerifyCancelled(t *testing.T) {
	engine := NewEngine(2)
	payload := testPayload()
	signal := makeSine(440, 2, 44100, 1, 0.6)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := engine.Verify(ctx, signal, &payload); !errors.Is(err, ErrCancelled) {
		t.Fatalf("want ErrCancelled, got %v", err)
	}
}

func TestVerifyStereoCandidate(t *testing.T) {
	engine := NewEngine(4)
	payload := testPayload()
	profile, _ := ProfileFor(LevelMedium)
	signal := makeSine(440, 4, 44100, 2, 0.6)

	result, err := engine.Protect(context.Background(), signal, profile, payload)
	if err != nil {
		t.Fatal(err)
	}
	report, err := engine.Verify(context.Background(), result.Signal, &payload)
	if err != nil {
		t.Fatal(err)
	}
	if !report.IsProtected {
		t.Errorf("stereo round trip missed (confidence %.3f, scores %+v)", report.Confidence, report.Scores)
	}
}
