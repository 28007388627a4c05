package audio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

const (
	numChannels   = 1
	bitsPerSample = 16
	formatPCM     = 1
)

// ErrInvalidWAV is returned when a container is not a mono PCM16 RIFF/WAVE stream.
var ErrInvalidWAV = errors.New("invalid wav container")

// EncodeWAVPCM16LE wraps raw PCM16LE mono audio bytes in a WAV container.
func EncodeWAVPCM16LE(pcm []byte, sampleRate int) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))
	if err := WriteWAVPCM16LETo(&buf, pcm, sampleRate); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteWAVPCM16LEFile writes raw PCM16LE mono audio bytes as a WAV file.
func WriteWAVPCM16LEFile(path string, pcm []byte, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteWAVPCM16LETo(f, pcm, sampleRate); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// WriteWAVPCM16LETo writes raw PCM16LE mono audio bytes to out as a WAV stream.
func WriteWAVPCM16LETo(out io.Writer, pcm []byte, sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if uint64(len(pcm)) > uint64(^uint32(0))-36 {
		return fmt.Errorf("pcm payload too large: %d bytes", len(pcm))
	}

	dataSize := uint32(len(pcm))
	header := wavHeader{
		ChunkSize:     36 + dataSize,
		FmtSize:       16,
		AudioFormat:   formatPCM,
		NumChannels:   numChannels,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate * numChannels * bitsPerSample / 8),
		BlockAlign:    numChannels * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
		DataSize:      dataSize,
	}
	copy(header.RIFF[:], "RIFF")
	copy(header.WAVE[:], "WAVE")
	copy(header.Fmt[:], "fmt ")
	copy(header.Data[:], "data")

	w := bufio.NewWriter(out)
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return err
	}
	if _, err := w.Write(pcm); err != nil {
		return err
	}
	return w.Flush()
}

// ExtractPCM returns the data chunk of a mono PCM16 WAV container along with
// its sample rate. Unknown chunks between fmt and data are skipped.
func ExtractPCM(wav []byte) ([]byte, int, error) {
	if len(wav) < 12 || string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("%w: missing RIFF/WAVE header", ErrInvalidWAV)
	}

	var (
		sampleRate int
		sawFmt     bool
	)
	pos := 12
	for pos+8 <= len(wav) {
		id := string(wav[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(wav[pos+4 : pos+8]))
		body := pos + 8
		if size < 0 || body+size > len(wav) {
			return nil, 0, fmt.Errorf("%w: chunk %q overruns buffer", ErrInvalidWAV, id)
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, fmt.Errorf("%w: short fmt chunk", ErrInvalidWAV)
			}
			format := binary.LittleEndian.Uint16(wav[body : body+2])
			channels := binary.LittleEndian.Uint16(wav[body+2 : body+4])
			bits := binary.LittleEndian.Uint16(wav[body+14 : body+16])
			if format != formatPCM || channels != numChannels || bits != bitsPerSample {
				return nil, 0, fmt.Errorf("%w: want mono pcm16, got format=%d channels=%d bits=%d", ErrInvalidWAV, format, channels, bits)
			}
			sampleRate = int(binary.LittleEndian.Uint32(wav[body+4 : body+8]))
			sawFmt = true
		case "data":
			if !sawFmt {
				return nil, 0, fmt.Errorf("%w: data before fmt", ErrInvalidWAV)
			}
			out := make([]byte, size)
			copy(out, wav[body:body+size])
			return out, sampleRate, nil
		}
		pos = body + size + size%2
	}
	return nil, 0, fmt.Errorf("%w: no data chunk", ErrInvalidWAV)
}

type wavHeader struct {
	RIFF          [4]byte
	ChunkSize     uint32
	WAVE          [4]byte
	Fmt           [4]byte
	FmtSize       uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Data          [4]byte
	DataSize      uint32
}
