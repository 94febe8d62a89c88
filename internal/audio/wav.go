package audio

import (
	"bytes"
	"encoding/binary"
	"io"
)

// EncodePCM16LE wraps raw PCM16LE mono audio bytes in a WAV container.
func EncodePCM16LE(pcm []byte, sampleRate int) ([]byte, error) {
	var buf bytes.Buffer
	if err := writePCM16LE(&buf, pcm, sampleRate); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SilentWAV produces a WAV file of silence. Voice previews use it as the
// stand-in payload until a synthesis backend is attached.
func SilentWAV(sampleRate int, seconds float64) ([]byte, error) {
	if sampleRate <= 0 {
		sampleRate = 44100
	}
	if seconds <= 0 {
		seconds = 2
	}
	samples := int(float64(sampleRate) * seconds)
	pcm := make([]byte, samples*2)
	return EncodePCM16LE(pcm, sampleRate)
}

func writePCM16LE(out io.Writer, pcm []byte, sampleRate int) error {
	const (
		numChannels   = 1
		bitsPerSample = 16
		audioFormat   = 1 // PCM
	)
	if sampleRate <= 0 {
		sampleRate = 16000
	}

	dataSize := uint32(len(pcm))
	byteRate := uint32(sampleRate * numChannels * bitsPerSample / 8)
	blockAlign := uint16(numChannels * bitsPerSample / 8)

	if _, err := io.WriteString(out, "RIFF"); err != nil {
		return err
	}
	if err := binary.Write(out, binary.LittleEndian, uint32(36)+dataSize); err != nil {
		return err
	}
	if _, err := io.WriteString(out, "WAVE"); err != nil {
		return err
	}

	if _, err := io.WriteString(out, "fmt "); err != nil {
		return err
	}
	if err := binary.Write(out, binary.LittleEndian, uint32(16)); err != nil {
		return err
	}
	if err := binary.Write(out, binary.LittleEndian, uint16(audioFormat)); err != nil {
		return err
	}
	if err := binary.Write(out, binary.LittleEndian, uint16(numChannels)); err != nil {
		return err
	}
	if err := binary.Write(out, binary.LittleEndian, uint32(sampleRate)); err != nil {
		return err
	}
	if err := binary.Write(out, binary.LittleEndian, byteRate); err != nil {
		return err
	}
	if err := binary.Write(out, binary.LittleEndian, blockAlign); err != nil {
		return err
	}
	if err := binary.Write(out, binary.LittleEndian, uint16(bitsPerSample)); err != nil {
		return err
	}

	if _, err := io.WriteString(out, "data"); err != nil {
		return err
	}
	if err := binary.Write(out, binary.LittleEndian, dataSize); err != nil {
		return err
	}
	if _, err := out.Write(pcm); err != nil {
		return err
	}
	return nil
}
