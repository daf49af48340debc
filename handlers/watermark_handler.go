// Package handlers is made to handle requests
package handlers

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"watermark-backend/audio"
	"watermark-backend/models"
	"watermark-backend/mp3parser"
	"watermark-backend/tags"
	"watermark-backend/watermark"
)

const maxUploadBytes = 64 << 20 // 64MB

// encodePSNRFloor is the minimum decode-back PSNR for encoded output.
// 16-bit quantization alone measures around 100 dB; anything near the floor
// means the protected signal clipped or the container corrupted samples.
const encodePSNRFloor = 60.0

type WatermarkHandler struct {
	codec  *audio.Codec
	engine *watermark.Engine
}

func NewWatermarkHandler() *WatermarkHandler {
	return &WatermarkHandler{
		codec:  audio.NewCodec(),
		engine: watermark.NewEngine(0),
	}
}

func (h *WatermarkHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"message": "Adversarial watermarking API is running",
		"version": "1.0.0",
	})
}

// ProtectAudio embeds the adversarial watermark into an uploaded MP3/WAV
// file and streams the protected audio back. The metadata profile performs
// no DSP: an MP3 upload is returned with opt-out tags only.
func (h *WatermarkHandler) ProtectAudio(c *gin.Context) {
	if err := c.Request.ParseMultipartForm(maxUploadBytes); err != nil {
		c.JSON(http.StatusBadRequest, models.ProtectResponse{
			Success: false,
			Message: fmt.Sprintf("Failed to parse form: %v", err),
		})
		return
	}

	artistName := c.PostForm("artist_name")
	if artistName == "" {
		artistName = "Unknown Artist"
	}
	trackTitle := c.PostForm("track_title")
	if trackTitle == "" {
		trackTitle = "Unknown Track"
	}
	level := watermark.ParseLevel(c.PostForm("protection_level"))
	profile, err := watermark.ProfileFor(level)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ProtectResponse{
			Success: false,
			Message: err.Error(),
		})
		return
	}

	audioFile, audioHeader, err := c.Request.FormFile("audio_file")
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ProtectResponse{
			Success: false,
			Message: "Audio file is required",
		})
		return
	}
	defer audioFile.Close()

	audioData, err := io.ReadAll(audioFile)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ProtectResponse{
			Success: false,
			Message: fmt.Sprintf("Failed to read audio file: %v", err),
		})
		return
	}

	signal, _, isMP3, err := h.decodeUpload(audioHeader.Filename, audioData)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ProtectResponse{
			Success: false,
			Message: err.Error(),
		})
		return
	}

	payload := watermark.WatermarkPayload{
		ArtistName:  artistName,
		TrackTitle:  trackTitle,
		Timestamp:   payloadTimestamp(c.PostForm("timestamp")),
		ContentHash: fmt.Sprintf("%x", sha256.Sum256(audioData)),
	}

	result, err := h.engine.Protect(c.Request.Context(), signal, profile, payload)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, watermark.ErrInputTooShort), errors.Is(err, watermark.ErrEmptySignal):
			status = http.StatusBadRequest
		case errors.Is(err, watermark.ErrCancelled):
			status = http.StatusRequestTimeout
		}
		c.JSON(status, models.ProtectResponse{
			Success: false,
			Message: fmt.Sprintf("Failed to protect audio: %v", err),
		})
		return
	}

	baseFilename := strings.TrimSuffix(audioHeader.Filename, filepath.Ext(audioHeader.Filename))
	declaration := tags.Declaration{
		Artist:    artistName,
		Title:     trackTitle,
		Signature: payload.Signature(),
		Level:     string(profile.Level),
		Timestamp: payload.Timestamp,
	}

	var body []byte
	var contentType, outputFilename string
	if profile.IsMetadataOnly() && isMP3 {
		// Metadata-only protection keeps the original bitstream and just
		// writes the opt-out declaration.
		body, err = tags.WriteOptOut(audioData, declaration)
		contentType = "audio/mpeg"
		outputFilename = fmt.Sprintf("%s_protected.mp3", baseFilename)
	} else {
		body, err = h.codec.EncodeWAV(result.Signal)
		contentType = "audio/wav"
		outputFilename = fmt.Sprintf("%s_protected.wav", baseFilename)
		if err == nil {
			if decoded, _, derr := h.codec.DecodeWAV(body); derr != nil {
				err = fmt.Errorf("encoded output failed to decode: %v", derr)
			} else if p := audio.SignalPSNR(result.Signal, decoded); !audio.ValidatePSNR(p, encodePSNRFloor) {
				err = fmt.Errorf("encoded output PSNR %.1f dB below %.0f dB floor", p, encodePSNRFloor)
			}
		}
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ProtectResponse{
			Success: false,
			Message: fmt.Sprintf("Failed to encode output: %v", err),
		})
		return
	}

	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Transfer-Encoding", "binary")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", outputFilename))
	c.Header("Content-Length", fmt.Sprintf("%d", len(body)))

	c.Header("X-Job-ID", uuid.NewString())
	c.Header("X-Watermark-Level", string(profile.Level))
	c.Header("X-Watermark-Signature", payload.Signature())
	c.Header("X-Watermark-Timestamp", strconv.FormatInt(payload.Timestamp.Unix(), 10))
	c.Header("X-Watermark-Content-Hash", payload.ContentHash)
	c.Header("X-Degradation-Avg", strconv.Itoa(result.Degradation.Avg))
	c.Header("X-Watermark-Frames", fmt.Sprintf("%d/%d", result.Applied.EligibleFrames, result.Applied.TotalFrames))
	if len(result.Applied.SkippedBands) > 0 {
		c.Header("X-Watermark-Skipped-Bands", strconv.Itoa(len(result.Applied.SkippedBands)))
	}
	if !profile.IsMetadataOnly() {
		c.Header("X-Watermark-PSNR", fmt.Sprintf("%.2f", watermark.SpectralSNR(signal, result.Signal)))
	}

	c.Data(http.StatusOK, contentType, body)
}

// VerifyAudio checks an uploaded file for an embedded signature. When the
// form carries the full payload (artist_name, track_title, timestamp,
// content_hash) the payload-matched detector runs; otherwise the strictly
// weaker blind detector does.
func (h *WatermarkHandler) VerifyAudio(c *gin.Context) {
	if err := c.Request.ParseMultipartForm(maxUploadBytes); err != nil {
		c.JSON(http.StatusBadRequest, models.VerifyResponse{
			Success: false,
			Message: fmt.Sprintf("Failed to parse form: %v", err),
		})
		return
	}

	audioFile, audioHeader, err := c.Request.FormFile("audio_file")
	if err != nil {
		c.JSON(http.StatusBadRequest, models.VerifyResponse{
			Success: false,
			Message: "Audio file is required",
		})
		return
	}
	defer audioFile.Close()

	audioData, err := io.ReadAll(audioFile)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.VerifyResponse{
			Success: false,
			Message: fmt.Sprintf("Failed to read audio file: %v", err),
		})
		return
	}

	signal, _, _, err := h.decodeUpload(audioHeader.Filename, audioData)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.VerifyResponse{
			Success: false,
			Message: err.Error(),
		})
		return
	}

	var payload *watermark.WatermarkPayload
	artistName := c.PostForm("artist_name")
	trackTitle := c.PostForm("track_title")
	timestamp := c.PostForm("timestamp")
	contentHash := c.PostForm("content_hash")
	if artistName != "" && trackTitle != "" && timestamp != "" && contentHash != "" {
		payload = &watermark.WatermarkPayload{
			ArtistName:  artistName,
			TrackTitle:  trackTitle,
			Timestamp:   payloadTimestamp(timestamp),
			ContentHash: contentHash,
		}
	}

	report, err := h.engine.Verify(c.Request.Context(), signal, payload)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, watermark.ErrInputTooShort), errors.Is(err, watermark.ErrEmptySignal):
			status = http.StatusBadRequest
		case errors.Is(err, watermark.ErrCancelled):
			status = http.StatusRequestTimeout
		}
		c.JSON(status, models.VerifyResponse{
			Success: false,
			Message: fmt.Sprintf("Failed to verify audio: %v", err),
		})
		return
	}

	c.JSON(http.StatusOK, models.VerifyResponse{
		Success: true,
		Report:  report,
	})
}

// ProtectionInfo returns the profile table with its declared degradation
// estimates and the technique descriptions.
func (h *WatermarkHandler) ProtectionInfo(c *gin.Context) {
	useCases := map[watermark.Level]string{
		watermark.LevelMetadata:   "Opt-out declaration only, no signal modification",
		watermark.LevelLight:      "General distribution, maximum compatibility",
		watermark.LevelMedium:     "Professional releases (RECOMMENDED)",
		watermark.LevelAggressive: "High-value content requiring strong protection",
		watermark.LevelNuclear:    "Maximum protection for unreleased masters",
	}

	info := models.ProtectionInfoResponse{
		Features: map[string]string{
			"spread_spectrum_watermark":  "Embeds detectable signature for verification",
			"mfcc_disruption":            "Targets voice/timbre learning (defeats voice cloning)",
			"temporal_jitter":            "Disrupts rhythm/beat pattern learning",
			"high_frequency_adversarial": "Imperceptible patterns that poison AI training",
		},
	}
	for _, p := range watermark.Profiles() {
		info.Levels = append(info.Levels, models.ProtectionLevelInfo{
			Profile: p,
			UseCase: useCases[p.Level],
		})
	}
	c.JSON(http.StatusOK, info)
}

// decodeUpload dispatches on the file extension and returns the decoded
// signal. MP3 uploads are probed first so malformed bitstreams are
// rejected with stream details instead of a decoder panic.
func (h *WatermarkHandler) decodeUpload(filename string, data []byte) (*watermark.AudioSignal, *models.AudioMetadata, bool, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".mp3":
		if _, err := mp3parser.Probe(data); err != nil {
			return nil, nil, false, fmt.Errorf("invalid MP3 file: %v", err)
		}
		signal, meta, err := h.codec.DecodeMP3(data)
		return signal, meta, true, err
	case ".wav":
		signal, meta, err := h.codec.DecodeWAV(data)
		return signal, meta, false, err
	default:
		return nil, nil, false, fmt.Errorf("unsupported audio format %q: only MP3 and WAV are supported", filepath.Ext(filename))
	}
}

// payloadTimestamp parses a unix-seconds form value, defaulting to now.
func payloadTimestamp(s string) time.Time {
	if s != "" {
		if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.Unix(unix, 0).UTC()
		}
	}
	return time.Now().UTC()
}
