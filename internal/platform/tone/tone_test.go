package tone

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func sampleAt(pcm []byte, i int) int16 {
	return int16(uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8)
}

func TestGetProfile_Known(t *testing.T) {
	for _, name := range []string{"classic", "gentle", "urgent", "bell", "chirp"} {
		p, err := GetProfile(name)
		if err != nil {
			t.Fatalf("GetProfile(%q): %v", name, err)
		}
		if p.Name != name {
			t.Errorf("expected name %q, got %q", name, p.Name)
		}
		if p.Duration() <= 0 {
			t.Errorf("profile %q has non-positive duration", name)
		}
	}
}

func TestGetProfile_Unknown(t *testing.T) {
	if _, err := GetProfile("airhorn"); err == nil {
		t.Fatal("expected error for unknown profile")
	}
}

func TestProfileNames_Sorted(t *testing.T) {
	names := ProfileNames()
	if len(names) != 5 {
		t.Fatalf("expected 5 profiles, got %d", len(names))
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Errorf("names not sorted: %v", names)
		}
	}
}

func TestRender_SampleCount(t *testing.T) {
	p := &Profile{
		Name: "test",
		Segments: []Segment{
			beep(440, 100*time.Millisecond),
			gap(50 * time.Millisecond),
		},
	}
	pcm := p.Render()

	want := (SampleRate/10 + SampleRate/20) * 2 // bytes: 100ms + 50ms of 16-bit mono
	if len(pcm) != want {
		t.Errorf("expected %d bytes, got %d", want, len(pcm))
	}
}

func TestRender_GapIsSilent(t *testing.T) {
	p := &Profile{
		Name: "test",
		Segments: []Segment{
			beep(440, 50*time.Millisecond),
			gap(50 * time.Millisecond),
		},
	}
	pcm := p.Render()

	beepSamples := SampleRate / 20
	for i := beepSamples; i < 2*beepSamples; i++ {
		if sampleAt(pcm, i) != 0 {
			t.Fatalf("expected silence in gap at sample %d, got %d", i, sampleAt(pcm, i))
		}
	}
}

func TestRender_AmplitudeMatchesGain(t *testing.T) {
	p := &Profile{
		Name:     "test",
		Segments: []Segment{beep(440, 200*time.Millisecond)},
	}
	pcm := p.Render()

	var peak int16
	for i := 0; i < len(pcm)/2; i++ {
		v := sampleAt(pcm, i)
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}

	wantPeak := int16(0.8 * math.MaxInt16)
	if peak < wantPeak-500 || peak > wantPeak+500 {
		t.Errorf("expected peak near %d, got %d", wantPeak, peak)
	}
}

func TestRender_FadeOutEndsQuiet(t *testing.T) {
	p := &Profile{
		Name: "test",
		Segments: []Segment{
			{FreqStart: 440, FreqEnd: 440, GainStart: 0.8, GainEnd: 0, Dur: 200 * time.Millisecond},
		},
	}
	pcm := p.Render()

	// Last 5ms should be well below the starting amplitude.
	n := len(pcm) / 2
	tail := SampleRate / 200
	for i := n - tail; i < n; i++ {
		v := sampleAt(pcm, i)
		if v < 0 {
			v = -v
		}
		if v > int16(0.1*math.MaxInt16) {
			t.Fatalf("expected faded tail, got sample %d at index %d", v, i)
		}
	}
}

// buildWAV assembles a minimal RIFF/WAVE file around the given PCM payload.
func buildWAV(pcm []byte, sampleRate, channels, bits int) []byte {
	out := make([]byte, 0, 44+len(pcm))
	u32 := func(v uint32) []byte { b := make([]byte, 4); binary.LittleEndian.PutUint32(b, v); return b }
	u16 := func(v uint16) []byte { b := make([]byte, 2); binary.LittleEndian.PutUint16(b, v); return b }

	out = append(out, []byte("RIFF")...)
	out = append(out, u32(uint32(36+len(pcm)))...)
	out = append(out, []byte("WAVE")...)
	out = append(out, []byte("fmt ")...)
	out = append(out, u32(16)...)
	out = append(out, u16(1)...) // PCM
	out = append(out, u16(uint16(channels))...)
	out = append(out, u32(uint32(sampleRate))...)
	out = append(out, u32(uint32(sampleRate*channels*bits/8))...)
	out = append(out, u16(uint16(channels*bits/8))...)
	out = append(out, u16(uint16(bits))...)
	out = append(out, []byte("data")...)
	out = append(out, u32(uint32(len(pcm)))...)
	out = append(out, pcm...)
	return out
}

func TestParseWAV_Mono16(t *testing.T) {
	pcm := []byte{0x01, 0x00, 0x02, 0x00, 0x03, 0x00}
	w, err := parseWAV(buildWAV(pcm, 44100, 1, 16))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.sampleRate != 44100 || w.channels != 1 {
		t.Errorf("unexpected format: rate=%d channels=%d", w.sampleRate, w.channels)
	}
	if len(w.pcm) != len(pcm) {
		t.Errorf("expected %d pcm bytes, got %d", len(pcm), len(w.pcm))
	}
}

func TestParseWAV_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{"not riff", []byte("JUNKJUNKJUNKJUNKJUNKJUNKJUNKJUNKJUNKJUNKJUNK")},
		{"too short", []byte("RIFF")},
		{"8 bit", buildWAV([]byte{1, 2, 3, 4}, 44100, 1, 8)},
		{"too many channels", buildWAV([]byte{1, 0, 2, 0, 3, 0}, 44100, 3, 16)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseWAV(tt.raw); err == nil {
				t.Fatal("expected parse error")
			}
		})
	}
}

func TestLoadWAV_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tone.wav")
	pcm := []byte{0x10, 0x00, 0x20, 0x00}
	if err := os.WriteFile(path, buildWAV(pcm, 22050, 1, 16), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := LoadWAV(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.sampleRate != 22050 {
		t.Errorf("expected 22050, got %d", w.sampleRate)
	}
}

func TestLoadWAV_MissingFile(t *testing.T) {
	if _, err := LoadWAV("/nonexistent/tone.wav"); err == nil {
		t.Fatal("expected error")
	}
}

func TestNormalizePCM_StereoDownmix(t *testing.T) {
	// Two frames of stereo: (100, 300) and (-200, -400).
	pcm := make([]byte, 8)
	binary.LittleEndian.PutUint16(pcm[0:], uint16(int16(100)))
	binary.LittleEndian.PutUint16(pcm[2:], uint16(int16(300)))
	binary.LittleEndian.PutUint16(pcm[4:], uint16(int16(-200)))
	binary.LittleEndian.PutUint16(pcm[6:], uint16(int16(-400)))

	out := normalizePCM(&wavData{pcm: pcm, sampleRate: SampleRate, channels: 2})
	if len(out) != 4 {
		t.Fatalf("expected 2 mono frames, got %d bytes", len(out))
	}
	if got := sampleAt(out, 0); got != 200 {
		t.Errorf("expected downmix 200, got %d", got)
	}
	if got := sampleAt(out, 1); got != -300 {
		t.Errorf("expected downmix -300, got %d", got)
	}
}

func TestNormalizePCM_Resample(t *testing.T) {
	// 22050Hz mono should roughly double in frame count.
	frames := 100
	pcm := make([]byte, frames*2)
	for i := 0; i < frames; i++ {
		binary.LittleEndian.PutUint16(pcm[2*i:], uint16(int16(i)))
	}

	out := normalizePCM(&wavData{pcm: pcm, sampleRate: 22050, channels: 1})
	if got := len(out) / 2; got != frames*2 {
		t.Errorf("expected %d frames after resample, got %d", frames*2, got)
	}
}
