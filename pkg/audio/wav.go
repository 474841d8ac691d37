package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// bitsPerSample is fixed at 16 for the signed little-endian PCM audio the
// capture pipeline works with.
const bitsPerSample = 16

// EncodeWAV wraps raw 16-bit signed little-endian PCM data in a standard
// RIFF/WAV container. The returned byte slice is suitable for direct
// inclusion in a multipart form upload.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8
	dataSize := len(pcm)

	buf := make([]byte, 44+dataSize)

	// RIFF chunk descriptor
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize)) // file size − 8
	copy(buf[8:12], "WAVE")

	// fmt sub-chunk
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16) // PCM sub-chunk size
	binary.LittleEndian.PutUint16(buf[20:22], 1)  // audio format: PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], bitsPerSample)

	// data sub-chunk
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], pcm)

	return buf
}

// DecodeWAV extracts the raw PCM payload, sample rate, and channel count from
// a RIFF/WAV container. Only 16-bit PCM is supported. Sub-chunks other than
// "fmt " and "data" are skipped.
func DecodeWAV(wav []byte) (pcm []byte, sampleRate, channels int, err error) {
	if len(wav) < 12 || string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return nil, 0, 0, errors.New("audio: not a RIFF/WAVE file")
	}

	pos := 12
	var haveFmt bool
	for pos+8 <= len(wav) {
		id := string(wav[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(wav[pos+4 : pos+8]))
		body := pos + 8
		if body+size > len(wav) {
			return nil, 0, 0, errors.New("audio: truncated WAV chunk")
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, 0, errors.New("audio: short fmt chunk")
			}
			format := binary.LittleEndian.Uint16(wav[body : body+2])
			if format != 1 {
				return nil, 0, 0, fmt.Errorf("audio: unsupported WAV format %d (want PCM)", format)
			}
			channels = int(binary.LittleEndian.Uint16(wav[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(wav[body+4 : body+8]))
			bps := binary.LittleEndian.Uint16(wav[body+14 : body+16])
			if bps != bitsPerSample {
				return nil, 0, 0, fmt.Errorf("audio: unsupported bit depth %d (want %d)", bps, bitsPerSample)
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, 0, 0, errors.New("audio: data chunk before fmt chunk")
			}
			return wav[body : body+size], sampleRate, channels, nil
		}

		// Chunks are word-aligned.
		if size%2 == 1 {
			size++
		}
		pos = body + size
	}
	return nil, 0, 0, errors.New("audio: no data chunk found")
}
