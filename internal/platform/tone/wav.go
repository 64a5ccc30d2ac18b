package tone

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
)

// wavData is PCM audio decoded from a WAV file.
type wavData struct {
	pcm        []byte
	sampleRate int
	channels   int
}

// LoadWAV reads a WAV file and returns its PCM payload. Only 16-bit PCM is
// supported, which covers the custom alarm tone use case.
func LoadWAV(path string) (*wavData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read wav file: %w", err)
	}
	return parseWAV(raw)
}

func parseWAV(raw []byte) (*wavData, error) {
	if len(raw) < 44 || string(raw[0:4]) != "RIFF" || string(raw[8:12]) != "WAVE" {
		return nil, errors.New("not a RIFF/WAVE file")
	}

	var (
		fmtFound   bool
		sampleRate int
		channels   int
		bits       int
		pcm        []byte
	)

	// Walk the chunk list; fmt and data can appear in any order and other
	// chunks (LIST, fact) may be interleaved.
	pos := 12
	for pos+8 <= len(raw) {
		id := string(raw[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(raw[pos+4 : pos+8]))
		body := pos + 8
		if body+size > len(raw) {
			return nil, errors.New("truncated wav chunk")
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, errors.New("fmt chunk too small")
			}
			format := binary.LittleEndian.Uint16(raw[body : body+2])
			if format != 1 {
				return nil, fmt.Errorf("unsupported wav format %d (want PCM)", format)
			}
			channels = int(binary.LittleEndian.Uint16(raw[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(raw[body+4 : body+8]))
			bits = int(binary.LittleEndian.Uint16(raw[body+14 : body+16]))
			fmtFound = true
		case "data":
			pcm = raw[body : body+size]
		}

		// Chunks are word-aligned.
		pos = body + size
		if size%2 == 1 {
			pos++
		}
	}

	if !fmtFound {
		return nil, errors.New("wav missing fmt chunk")
	}
	if pcm == nil {
		return nil, errors.New("wav missing data chunk")
	}
	if bits != 16 {
		return nil, fmt.Errorf("unsupported bit depth %d (want 16)", bits)
	}
	if channels < 1 || channels > 2 {
		return nil, fmt.Errorf("unsupported channel count %d", channels)
	}

	return &wavData{pcm: pcm, sampleRate: sampleRate, channels: channels}, nil
}
