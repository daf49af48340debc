// Package mp3parser inspects MP3 bitstreams without decoding them: the
// upload handlers use it to validate files and report stream statistics
// before handing the compressed bytes to the decoder.
package mp3parser

import (
	"encoding/binary"
	"fmt"
	"io"
)

// FrameHeader represents one decoded MP3 frame header.
type FrameHeader struct {
	VersionID     int
	Layer         int
	ProtectionBit bool
	Bitrate       int
	SampleRate    int
	Padding       bool
	ChannelMode   int
	FrameLength   int
}

// Channels maps the header's channel mode to a channel count.
func (h *FrameHeader) Channels() int {
	if h.ChannelMode == 3 { // mono
		return 1
	}
	return 2
}

// StreamInfo summarizes a probed MP3 stream.
type StreamInfo struct {
	SampleRate  int
	Channels    int
	Bitrate     int // bps of the first frame; VBR streams vary
	TotalFrames int
	Duration    float64 // seconds, from frame count
}

// samplesPerFrame for MPEG1 Layer III.
const samplesPerFrame = 1152

// syncSafeToInt reads a syncsafe int from an ID3v2 size field.
func syncSafeToInt(b []byte) int {
	return int(b[0]&0x7F)<<21 |
		int(b[1]&0x7F)<<14 |
		int(b[2]&0x7F)<<7 |
		int(b[3]&0x7F)
}

// skipID3v2 returns the offset of the first byte past an ID3v2 tag, or 0
// when no tag is present.
func skipID3v2(data []byte) int {
	if len(data) < 10 || string(data[:3]) != "ID3" {
		return 0
	}
	return 10 + syncSafeToInt(data[6:10])
}

// parseFrameHeader decodes the 4-byte header at the start of b.
// MPEG1 Layer III only, matching what the decoder accepts.
func parseFrameHeader(b []byte) (*FrameHeader, error) {
	if len(b) < 4 {
		return nil, io.ErrUnexpectedEOF
	}
	header := binary.BigEndian.Uint32(b[:4])

	// check sync
	if (header & 0xFFE00000) != 0xFFE00000 {
		return nil, fmt.Errorf("invalid sync word: 0x%08X", header)
	}

	versionID := int((header >> 19) & 0x3)
	layer := int((header >> 17) & 0x3)
	prot := ((header >> 16) & 0x1) == 0
	bitrateIdx := int((header >> 12) & 0xF)
	sampleRateIdx := int((header >> 10) & 0x3)
	padding := ((header >> 9) & 0x1) == 1
	channelMode := int((header >> 6) & 0x3)

	bitrateTable := [16]int{
		0, 32, 40, 48, 56, 64, 80, 96,
		112, 128, 160, 192, 224, 256, 320, 0,
	}
	sampleRateTable := [4]int{44100, 48000, 32000, 0}

	bitrate := bitrateTable[bitrateIdx] * 1000
	sampleRate := sampleRateTable[sampleRateIdx]
	if bitrate == 0 || sampleRate == 0 {
		return nil, fmt.Errorf("unsupported bitrate or samplerate")
	}

	frameLen := (144*bitrate)/sampleRate + btoi(padding)

	return &FrameHeader{
		VersionID:     versionID,
		Layer:         layer,
		ProtectionBit: prot,
		Bitrate:       bitrate,
		SampleRate:    sampleRate,
		Padding:       padding,
		ChannelMode:   channelMode,
		FrameLength:   frameLen,
	}, nil
}

// Probe walks the whole stream, resyncing over garbage, and returns its
// summary. A stream with no decodable frame is rejected.
func Probe(data []byte) (*StreamInfo, error) {
	pos := skipID3v2(data)
	info := &StreamInfo{}

	for pos+4 <= len(data) {
		h, err := parseFrameHeader(data[pos:])
		if err != nil {
			// Resync: slide forward one byte until the next sync word.
			pos++
			continue
		}
		if info.TotalFrames == 0 {
			info.SampleRate = h.SampleRate
			info.Channels = h.Channels()
			info.Bitrate = h.Bitrate
		}
		info.TotalFrames++
		pos += h.FrameLength
	}

	if info.TotalFrames == 0 {
		return nil, fmt.Errorf("no MP3 frames found in %d bytes", len(data))
	}
	info.Duration = float64(info.TotalFrames*samplesPerFrame) / float64(info.SampleRate)
	return info, nil
}

func btoi(b bool) int {
	if b {
		return 1
	}
	return 0
}
