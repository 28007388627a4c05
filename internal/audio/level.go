package audio

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// DefaultSpeechThreshold is the volume level above which a frame counts as speech.
const DefaultSpeechThreshold = 10.0

// Buffer is a mono PCM16LE payload tagged with its sample rate.
type Buffer struct {
	PCM        []byte
	SampleRate int
}

// ComputeVolume returns the RMS level of pcm scaled to [0, 100] and rounded to
// two decimals. A trailing odd byte is ignored.
func ComputeVolume(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[2*i:])))
		sum += s * s
	}
	rms := math.Sqrt(sum / float64(n))
	level := rms / 32768 * 100
	if level > 100 {
		level = 100
	}
	return math.Round(level*100) / 100
}

// DetectSpeech reports whether the frame is louder than threshold.
func DetectSpeech(pcm []byte, threshold float64) bool {
	return ComputeVolume(pcm) > threshold
}

// Normalize scales samples so the loudest one reaches full scale. Empty and
// silent input is returned unchanged.
func Normalize(pcm []byte) []byte {
	n := len(pcm) / 2
	if n == 0 {
		return pcm
	}
	var peak int32
	for i := 0; i < n; i++ {
		s := int32(int16(binary.LittleEndian.Uint16(pcm[2*i:])))
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	if peak == 0 {
		return pcm
	}

	out := make([]byte, len(pcm))
	copy(out, pcm)
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[2*i:])))
		binary.LittleEndian.PutUint16(out[2*i:], uint16(int16(s/float64(peak)*32767)))
	}
	return out
}

// WrapAsPlayable wraps pcm as a WAV container. When encoding fails the raw
// input is returned unchanged.
func WrapAsPlayable(pcm []byte, sampleRate int) []byte {
	wav, err := EncodeWAVPCM16LE(pcm, sampleRate)
	if err != nil {
		return pcm
	}
	return wav
}

// DecodeBase64Audio decodes a base64 payload, optionally prefixed as a data URI
// ("data:audio/wav;base64,...").
func DecodeBase64Audio(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if strings.HasPrefix(encoded, "data:") {
		idx := strings.Index(encoded, ",")
		if idx < 0 {
			return nil, fmt.Errorf("malformed data uri")
		}
		encoded = encoded[idx+1:]
	}
	if encoded == "" {
		return nil, fmt.Errorf("empty audio payload")
	}
	b, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode audio: %w", err)
	}
	return b, nil
}
