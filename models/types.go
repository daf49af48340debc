// Package models contain needed models
package models

import "watermark-backend/watermark"

// ProtectResponse represents the error response of the protect endpoint;
// on success the protected file itself is streamed back with X-Watermark-*
// headers instead.
type ProtectResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// VerifyResponse represents the response of the verify endpoint.
type VerifyResponse struct {
	Success bool                          `json:"success"`
	Message string                        `json:"message,omitempty"`
	Report  *watermark.VerificationReport `json:"report,omitempty"`
}

// ProtectionLevelInfo describes one protection level for the info endpoint.
type ProtectionLevelInfo struct {
	Profile watermark.ProtectionProfile `json:"profile"`
	UseCase string                      `json:"use_case"`
}

// ProtectionInfoResponse lists every available level plus the technique
// descriptions, weakest to strongest.
type ProtectionInfoResponse struct {
	Levels   []ProtectionLevelInfo `json:"levels"`
	Features map[string]string     `json:"features"`
}

// AudioMetadata represents metadata about a decoded audio file
type AudioMetadata struct {
	SampleRate   int
	Channels     int
	BitDepth     int
	Duration     float64
	TotalSamples int
}
