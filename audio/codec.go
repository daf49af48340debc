// Package audio handles container decode and encode around the watermark
// engine: MP3 and WAV in, WAV out. The engine itself never touches
// compressed bytes.
package audio

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/tosone/minimp3"

	"watermark-backend/models"
	"watermark-backend/watermark"
)

type Codec struct{}

func NewCodec() *Codec {
	return &Codec{}
}

// DecodeMP3 decodes an MP3 stream into a normalized float64 signal.
func (c *Codec) DecodeMP3(mp3Data []byte) (*watermark.AudioSignal, *models.AudioMetadata, error) {
	decoder, data, err := minimp3.DecodeFull(mp3Data)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode MP3: %v", err)
	}
	defer decoder.Close()

	channels := decoder.Channels
	if channels < 1 {
		return nil, nil, fmt.Errorf("MP3 reports %d channels", channels)
	}
	samplesPerChannel := len(data) / 2 / channels

	signal := watermark.NewAudioSignal(channels, samplesPerChannel, decoder.SampleRate)
	for i := 0; i < samplesPerChannel; i++ {
		for ch := 0; ch < channels; ch++ {
			idx := (i*channels + ch) * 2
			s := int16(data[idx]) | int16(data[idx+1])<<8
			signal.Samples[ch][i] = float64(s) / 32768.0
		}
	}

	metadata := &models.AudioMetadata{
		SampleRate:   decoder.SampleRate,
		Channels:     channels,
		BitDepth:     16,
		Duration:     signal.Duration(),
		TotalSamples: samplesPerChannel,
	}
	return signal, metadata, nil
}

// DecodeWAV decodes a WAV stream into a normalized float64 signal.
func (c *Codec) DecodeWAV(wavData []byte) (*watermark.AudioSignal, *models.AudioMetadata, error) {
	decoder := wav.NewDecoder(bytes.NewReader(wavData))
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode WAV: %v", err)
	}
	if buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, nil, fmt.Errorf("WAV has no format information")
	}

	channels := buf.Format.NumChannels
	bitDepth := int(decoder.BitDepth)
	if bitDepth == 0 {
		bitDepth = 16
	}
	scale := float64(int(1) << (bitDepth - 1))
	samplesPerChannel := len(buf.Data) / channels

	signal := watermark.NewAudioSignal(channels, samplesPerChannel, buf.Format.SampleRate)
	for i := 0; i < samplesPerChannel; i++ {
		for ch := 0; ch < channels; ch++ {
			signal.Samples[ch][i] = float64(buf.Data[i*channels+ch]) / scale
		}
	}

	metadata := &models.AudioMetadata{
		SampleRate:   buf.Format.SampleRate,
		Channels:     channels,
		BitDepth:     bitDepth,
		Duration:     signal.Duration(),
		TotalSamples: samplesPerChannel,
	}
	return signal, metadata, nil
}

// EncodeWAV writes a signal out as 16-bit PCM WAV bytes. wav.NewEncoder
// needs a WriteSeeker, so encoding goes through a temp file.
func (c *Codec) EncodeWAV(signal *watermark.AudioSignal) ([]byte, error) {
	channels := signal.Channels()
	length := signal.Length()

	samples := make([]int, length*channels)
	for i := 0; i < length; i++ {
		for ch := 0; ch < channels; ch++ {
			samples[i*channels+ch] = clampInt16(signal.Samples[ch][i])
		}
	}

	buf := &gaudio.IntBuffer{
		Format: &gaudio.Format{
			NumChannels: channels,
			SampleRate:  signal.SampleRate,
		},
		Data:           samples,
		SourceBitDepth: 16,
	}

	tempFile, err := os.CreateTemp("", "protected_*.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %v", err)
	}
	defer tempFile.Close()
	defer os.Remove(tempFile.Name())

	encoder := wav.NewEncoder(tempFile, signal.SampleRate, 16, channels, 1)
	if err := encoder.Write(buf); err != nil {
		return nil, fmt.Errorf("failed to encode WAV: %v", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("failed to close WAV encoder: %v", err)
	}

	if _, err := tempFile.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind temp file: %v", err)
	}
	wavData, err := io.ReadAll(tempFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read WAV data: %v", err)
	}
	return wavData, nil
}

func clampInt16(v float64) int {
	s := math.Round(v * 32767)
	if s > 32767 {
		s = 32767
	}
	if s < -32768 {
		s = -32768
	}
	return int(s)
}
