package audio

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestEncodeWAV_Header(t *testing.T) {
	t.Parallel()

	pcm := []byte{0x01, 0x02, 0x03, 0x04}
	wav := EncodeWAV(pcm, 16000, 1)

	if len(wav) != 44+len(pcm) {
		t.Fatalf("len = %d, want %d", len(wav), 44+len(pcm))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Errorf("bad RIFF header: %q %q", wav[0:4], wav[8:12])
	}
	if got := binary.LittleEndian.Uint32(wav[24:28]); got != 16000 {
		t.Errorf("sample rate = %d, want 16000", got)
	}
	if got := binary.LittleEndian.Uint16(wav[22:24]); got != 1 {
		t.Errorf("channels = %d, want 1", got)
	}
	if got := binary.LittleEndian.Uint32(wav[40:44]); got != uint32(len(pcm)) {
		t.Errorf("data size = %d, want %d", got, len(pcm))
	}
	if !bytes.Equal(wav[44:], pcm) {
		t.Errorf("payload = %v, want %v", wav[44:], pcm)
	}
}

func TestDecodeWAV_RoundTrip(t *testing.T) {
	t.Parallel()

	pcm := []byte{0x10, 0x20, 0x30, 0x40, 0x50, 0x60}
	wav := EncodeWAV(pcm, 48000, 2)

	got, rate, channels, err := DecodeWAV(wav)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if rate != 48000 {
		t.Errorf("sample rate = %d, want 48000", rate)
	}
	if channels != 2 {
		t.Errorf("channels = %d, want 2", channels)
	}
	if !bytes.Equal(got, pcm) {
		t.Errorf("pcm = %v, want %v", got, pcm)
	}
}

func TestDecodeWAV_SkipsExtraChunks(t *testing.T) {
	t.Parallel()

	pcm := []byte{0xAA, 0xBB}
	wav := EncodeWAV(pcm, 16000, 1)

	// Splice a LIST chunk between fmt and data.
	list := make([]byte, 8+4)
	copy(list[0:4], "LIST")
	binary.LittleEndian.PutUint32(list[4:8], 4)
	spliced := append([]byte{}, wav[:36]...)
	spliced = append(spliced, list...)
	spliced = append(spliced, wav[36:]...)

	got, _, _, err := DecodeWAV(spliced)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if !bytes.Equal(got, pcm) {
		t.Errorf("pcm = %v, want %v", got, pcm)
	}
}

func TestDecodeWAV_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"not riff", []byte("OggS....OggS")},
		{"truncated", EncodeWAV([]byte{1, 2, 3, 4}, 16000, 1)[:20]},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, _, _, err := DecodeWAV(tc.data); err == nil {
				t.Error("DecodeWAV succeeded, want error")
			}
		})
	}
}

func TestDecodeWAV_RejectsNonPCM(t *testing.T) {
	t.Parallel()

	wav := EncodeWAV([]byte{1, 2}, 16000, 1)
	// Flip the audio format field to IEEE float.
	binary.LittleEndian.PutUint16(wav[20:22], 3)

	if _, _, _, err := DecodeWAV(wav); err == nil {
		t.Error("DecodeWAV accepted a non-PCM format")
	}
}
