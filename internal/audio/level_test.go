package audio

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"testing"
)

func samples(vals ...int16) []byte {
	out := make([]byte, 2*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(v))
	}
	return out
}

func TestComputeVolume(t *testing.T) {
	tests := []struct {
		name string
		pcm  []byte
		want float64
	}{
		{name: "empty", pcm: nil, want: 0},
		{name: "single odd byte", pcm: []byte{0x7f}, want: 0},
		{name: "silence", pcm: samples(0, 0, 0, 0), want: 0},
		{name: "full scale negative", pcm: samples(-32768, -32768), want: 100},
		{name: "half scale", pcm: samples(16384, -16384), want: 50},
		{name: "quarter scale odd tail ignored", pcm: append(samples(8192, 8192), 0x55), want: 25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComputeVolume(tt.pcm); got != tt.want {
				t.Fatalf("ComputeVolume() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestComputeVolumeMonotonicAndBounded(t *testing.T) {
	prev := -1.0
	for amp := 0; amp <= 32768; amp += 61 {
		// a constant -amp signal has RMS amp and reaches -32768 at the top
		pcm := samples(int16(-amp), int16(-amp), int16(-amp))
		got := ComputeVolume(pcm)
		if got < 0 || got > 100 {
			t.Fatalf("ComputeVolume(amp=%d) = %v, outside [0, 100]", amp, got)
		}
		if got < prev {
			t.Fatalf("ComputeVolume(amp=%d) = %v, below previous %v", amp, got, prev)
		}
		prev = got
	}
	if got := ComputeVolume(samples(-32768)); got != 100 {
		t.Fatalf("ComputeVolume(-32768) = %v, want 100", got)
	}

	prev = -1.0
	for amp := 0; amp <= 32767; amp += 61 {
		got := ComputeVolume(samples(int16(amp), int16(-amp)))
		if got < 0 || got > 100 || got < prev {
			t.Fatalf("ComputeVolume(+-%d) = %v, previous %v", amp, got, prev)
		}
		prev = got
	}
}

func TestComputeVolumeRoundsToTwoDecimals(t *testing.T) {
	// rms = 1000 -> 3.0517578125
	if got := ComputeVolume(samples(1000, -1000)); got != 3.05 {
		t.Fatalf("ComputeVolume() = %v, want 3.05", got)
	}
}

func TestDetectSpeech(t *testing.T) {
	if DetectSpeech(samples(100, -100), DefaultSpeechThreshold) {
		t.Fatalf("quiet frame detected as speech")
	}
	if !DetectSpeech(samples(16000, -16000), DefaultSpeechThreshold) {
		t.Fatalf("loud frame not detected as speech")
	}
}

func TestNormalize(t *testing.T) {
	got := Normalize(samples(1000, -2000, 500))
	want := samples(16383, -32767, 8191)
	if !bytes.Equal(got, want) {
		t.Fatalf("Normalize() = %v, want %v", got, want)
	}
}

func TestNormalizeNoops(t *testing.T) {
	if got := Normalize(nil); len(got) != 0 {
		t.Fatalf("Normalize(nil) = %v", got)
	}
	silent := samples(0, 0, 0)
	if got := Normalize(silent); !bytes.Equal(got, silent) {
		t.Fatalf("Normalize(silence) changed input: %v", got)
	}
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	in := samples(10, -20)
	orig := append([]byte(nil), in...)
	_ = Normalize(in)
	if !bytes.Equal(in, orig) {
		t.Fatalf("input was mutated")
	}
}

func TestWrapAsPlayable(t *testing.T) {
	pcm := samples(1, 2, 3)
	wav := WrapAsPlayable(pcm, 16000)
	if string(wav[:4]) != "RIFF" {
		t.Fatalf("missing RIFF header")
	}
	if got := WrapAsPlayable(pcm, 0); !bytes.Equal(got, pcm) {
		t.Fatalf("WrapAsPlayable() with bad rate should return raw input")
	}
}

func TestDecodeBase64Audio(t *testing.T) {
	raw := []byte{1, 2, 3, 4}
	enc := base64.StdEncoding.EncodeToString(raw)

	for _, in := range []string{enc, "data:audio/wav;base64," + enc, "  " + enc + "\n"} {
		got, err := DecodeBase64Audio(in)
		if err != nil {
			t.Fatalf("DecodeBase64Audio(%q) error = %v", in, err)
		}
		if !bytes.Equal(got, raw) {
			t.Fatalf("DecodeBase64Audio(%q) = %v", in, got)
		}
	}
	if _, err := DecodeBase64Audio("data:audio/wav;base64"); err == nil {
		t.Fatalf("expected error for data uri without comma")
	}
	if _, err := DecodeBase64Audio("!!!"); err == nil {
		t.Fatalf("expected error for invalid base64")
	}
}
