package audio

import (
	"encoding/binary"
	"testing"
)

func TestEncodePCM16LEHeader(t *testing.T) {
	pcm := make([]byte, 320) // 10ms at 16kHz mono
	wav, err := EncodePCM16LE(pcm, 16000)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if got := string(wav[0:4]); got != "RIFF" {
		t.Fatalf("chunk id = %q, want RIFF", got)
	}
	if got := string(wav[8:12]); got != "WAVE" {
		t.Fatalf("format = %q, want WAVE", got)
	}
	if got := binary.LittleEndian.Uint32(wav[4:8]); got != uint32(36+len(pcm)) {
		t.Fatalf("riff size = %d, want %d", got, 36+len(pcm))
	}
	if got := binary.LittleEndian.Uint32(wav[24:28]); got != 16000 {
		t.Fatalf("sample rate = %d, want 16000", got)
	}
	if got := binary.LittleEndian.Uint32(wav[40:44]); got != uint32(len(pcm)) {
		t.Fatalf("data size = %d, want %d", got, len(pcm))
	}
	if len(wav) != 44+len(pcm) {
		t.Fatalf("total size = %d, want %d", len(wav), 44+len(pcm))
	}
}

func TestSilentWAVDefaults(t *testing.T) {
	wav, err := SilentWAV(0, 0)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	// 2 seconds of 44.1kHz mono 16-bit silence.
	wantData := 44100 * 2 * 2
	if got := binary.LittleEndian.Uint32(wav[40:44]); got != uint32(wantData) {
		t.Fatalf("data size = %d, want %d", got, wantData)
	}
	for _, b := range wav[44:144] {
		if b != 0 {
			t.Fatal("expected silent samples")
		}
	}
}
