package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestEncodeWAVPCM16LEHeader(t *testing.T) {
	pcm := []byte{1, 0, 2, 0, 3, 0, 4, 0}
	wav, err := EncodeWAVPCM16LE(pcm, 16000)
	if err != nil {
		t.Fatalf("EncodeWAVPCM16LE() error = %v", err)
	}
	if len(wav) != 44+len(pcm) {
		t.Fatalf("len = %d, want %d", len(wav), 44+len(pcm))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" || string(wav[12:16]) != "fmt " || string(wav[36:40]) != "data" {
		t.Fatalf("unexpected chunk ids in header: %q", wav[:44])
	}
	if got := binary.LittleEndian.Uint32(wav[4:8]); got != uint32(36+len(pcm)) {
		t.Fatalf("riff size = %d, want %d", got, 36+len(pcm))
	}
	if got := binary.LittleEndian.Uint16(wav[22:24]); got != 1 {
		t.Fatalf("channels = %d, want 1", got)
	}
	if got := binary.LittleEndian.Uint32(wav[24:28]); got != 16000 {
		t.Fatalf("sample rate = %d, want 16000", got)
	}
	if got := binary.LittleEndian.Uint32(wav[28:32]); got != 32000 {
		t.Fatalf("byte rate = %d, want 32000", got)
	}
	if got := binary.LittleEndian.Uint16(wav[34:36]); got != 16 {
		t.Fatalf("bits = %d, want 16", got)
	}
	if !bytes.Equal(wav[44:], pcm) {
		t.Fatalf("payload mismatch")
	}
}

func TestExtractPCMRoundTrip(t *testing.T) {
	for _, pcm := range [][]byte{
		{},
		{0x10, 0x20},
		bytes.Repeat([]byte{0xff, 0x7f, 0x00, 0x80}, 257),
	} {
		wav, err := EncodeWAVPCM16LE(pcm, 22050)
		if err != nil {
			t.Fatalf("EncodeWAVPCM16LE() error = %v", err)
		}
		got, rate, err := ExtractPCM(wav)
		if err != nil {
			t.Fatalf("ExtractPCM() error = %v", err)
		}
		if rate != 22050 {
			t.Fatalf("rate = %d, want 22050", rate)
		}
		if !bytes.Equal(got, pcm) {
			t.Fatalf("round trip mismatch for %d bytes", len(pcm))
		}
	}
}

func TestExtractPCMSkipsUnknownChunks(t *testing.T) {
	wav, err := EncodeWAVPCM16LE([]byte{9, 9}, 8000)
	if err != nil {
		t.Fatalf("EncodeWAVPCM16LE() error = %v", err)
	}
	// Insert a LIST chunk with odd size (padded) between fmt and data.
	list := []byte{'L', 'I', 'S', 'T', 3, 0, 0, 0, 'a', 'b', 'c', 0}
	patched := append(append(append([]byte{}, wav[:36]...), list...), wav[36:]...)

	got, _, err := ExtractPCM(patched)
	if err != nil {
		t.Fatalf("ExtractPCM() error = %v", err)
	}
	if !bytes.Equal(got, []byte{9, 9}) {
		t.Fatalf("payload = %v, want [9 9]", got)
	}
}

func TestExtractPCMRejectsGarbage(t *testing.T) {
	if _, _, err := ExtractPCM([]byte("not a wav file at all")); !errors.Is(err, ErrInvalidWAV) {
		t.Fatalf("error = %v, want ErrInvalidWAV", err)
	}
}

func TestEncodeRejectsNonPositiveRate(t *testing.T) {
	if _, err := EncodeWAVPCM16LE([]byte{1, 2}, 0); err == nil {
		t.Fatalf("expected error for zero sample rate")
	}
}

func TestWriteWAVPCM16LEFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.wav")
	if err := WriteWAVPCM16LEFile(path, []byte{1, 2, 3, 4}, 16000); err != nil {
		t.Fatalf("WriteWAVPCM16LEFile() error = %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	pcm, _, err := ExtractPCM(b)
	if err != nil {
		t.Fatalf("ExtractPCM() error = %v", err)
	}
	if !bytes.Equal(pcm, []byte{1, 2, 3, 4}) {
		t.Fatalf("pcm = %v", pcm)
	}
}
