// Package audio wraps raw PCM sample buffers into playable WAV files.
package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Default PCM layout of the Gemini speech models.
const (
	DEFAULT_SAMPLE_RATE = 24000
	DEFAULT_BIT_DEPTH   = 16
	DEFAULT_CHANNELS    = 1
)

// Constants for supported bit depths.
const (
	BIT_DEPTH_8  = 8
	BIT_DEPTH_16 = 16
	BIT_DEPTH_24 = 24
	BIT_DEPTH_32 = 32
)

// Constants for format validation limits.
const (
	MAX_SAMPLE_RATE = 192000
	MAX_CHANNELS    = 8
)

// RIFF/WAVE layout.
const (
	wavHeaderSize   = 44
	fmtChunkSize    = 16
	formatPCM       = 1
	riffSizeOffset  = 36
	filePermissions = 0o644
	dirPermissions  = 0o750
)

// Constants for error messages and formats.
const (
	ERR_FMT_SAMPLE_RATE_RANGE = "%w: sample rate must be between 1 and %d Hz"
	ERR_FMT_BIT_DEPTH_VALUES  = "%w: bit depth must be 8, 16, 24, or 32"
	ERR_FMT_CHANNELS_RANGE    = "%w: channels must be between 1 and %d"
	ERR_FMT_MISALIGNED        = "%w: %d bytes is not a multiple of the %d-byte frame"
)

// Common errors for the audio package.
var (
	ErrInvalidFormat     = errors.New("invalid pcm format")
	ErrEmptySamples      = errors.New("sample buffer is empty")
	ErrMisalignedSamples = errors.New("sample buffer is misaligned")
	ErrOutputPathEmpty   = errors.New("output path cannot be empty")
)

// Format represents supported audio container formats.
type Format string

const (
	FORMAT_WAV Format = "wav"
)

// Extension returns the file extension of the format, with the leading dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// PCMFormat describes a raw, interleaved, little-endian sample buffer.
type PCMFormat struct {
	SampleRate int
	BitDepth   int
	Channels   int
}

// NewDefaultFormat returns the mono 16-bit 24 kHz layout.
func NewDefaultFormat() PCMFormat {
	return PCMFormat{
		SampleRate: DEFAULT_SAMPLE_RATE,
		BitDepth:   DEFAULT_BIT_DEPTH,
		Channels:   DEFAULT_CHANNELS,
	}
}

// Validate checks that the format can be described by a WAV header.
func (f PCMFormat) Validate() error {
	sampleRateErr := validateSampleRate(f.SampleRate)
	if sampleRateErr != nil {
		return sampleRateErr
	}

	bitDepthErr := validateBitDepth(f.BitDepth)
	if bitDepthErr != nil {
		return bitDepthErr
	}

	channelsErr := validateChannels(f.Channels)
	if channelsErr != nil {
		return channelsErr
	}

	return nil
}

// BlockAlign is the size in bytes of one frame across all channels.
func (f PCMFormat) BlockAlign() int {
	return f.Channels * f.BitDepth / 8
}

// ByteRate is the number of bytes per second of audio.
func (f PCMFormat) ByteRate() int {
	return f.SampleRate * f.BlockAlign()
}

// EncodeWAV prefixes the samples with a canonical 44-byte RIFF/WAVE header.
func EncodeWAV(pcm []byte, format PCMFormat) ([]byte, error) {
	formatErr := format.Validate()
	if formatErr != nil {
		return nil, formatErr
	}

	if len(pcm) == 0 {
		return nil, ErrEmptySamples
	}

	if len(pcm)%format.BlockAlign() != 0 {
		return nil, fmt.Errorf(ERR_FMT_MISALIGNED, ErrMisalignedSamples, len(pcm), format.BlockAlign())
	}

	dataSize := uint32(len(pcm))

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+len(pcm)))

	header := []any{
		[4]byte{'R', 'I', 'F', 'F'},
		uint32(riffSizeOffset) + dataSize,
		[4]byte{'W', 'A', 'V', 'E'},
		[4]byte{'f', 'm', 't', ' '},
		uint32(fmtChunkSize),
		uint16(formatPCM),
		uint16(format.Channels),
		uint32(format.SampleRate),
		uint32(format.ByteRate()),
		uint16(format.BlockAlign()),
		uint16(format.BitDepth),
		[4]byte{'d', 'a', 't', 'a'},
		dataSize,
	}

	for _, field := range header {
		writeErr := binary.Write(buf, binary.LittleEndian, field)
		if writeErr != nil {
			return nil, fmt.Errorf("failed to write wav header: %w", writeErr)
		}
	}

	buf.Write(pcm)

	return buf.Bytes(), nil
}

// WriteWAV encodes the samples and writes them to path, creating parent
// directories as needed. It returns the size of the written file.
func WriteWAV(path string, pcm []byte, format PCMFormat) (int64, error) {
	if path == "" {
		return 0, ErrOutputPathEmpty
	}

	wav, err := EncodeWAV(pcm, format)
	if err != nil {
		return 0, err
	}

	dirErr := os.MkdirAll(filepath.Dir(path), dirPermissions)
	if dirErr != nil {
		return 0, fmt.Errorf("failed to create output directory: %w", dirErr)
	}

	writeErr := os.WriteFile(path, wav, filePermissions)
	if writeErr != nil {
		return 0, fmt.Errorf("failed to write audio file: %w", writeErr)
	}

	return int64(len(wav)), nil
}

//
// Validation Helpers
//

func validateSampleRate(sampleRate int) error {
	if sampleRate <= 0 || sampleRate > MAX_SAMPLE_RATE {
		return fmt.Errorf(ERR_FMT_SAMPLE_RATE_RANGE, ErrInvalidFormat, MAX_SAMPLE_RATE)
	}

	return nil
}

func validateBitDepth(bitDepth int) error {
	switch bitDepth {
	case BIT_DEPTH_8, BIT_DEPTH_16, BIT_DEPTH_24, BIT_DEPTH_32:
		return nil
	default:
		return fmt.Errorf(ERR_FMT_BIT_DEPTH_VALUES, ErrInvalidFormat)
	}
}

func validateChannels(channels int) error {
	if channels <= 0 || channels > MAX_CHANNELS {
		return fmt.Errorf(ERR_FMT_CHANNELS_RANGE, ErrInvalidFormat, MAX_CHANNELS)
	}

	return nil
}
