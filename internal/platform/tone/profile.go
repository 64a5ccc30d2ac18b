// Package tone synthesizes short alarm tones from named profiles and plays
// them through the system audio device. A profile is a frequency envelope
// plus a gain envelope over a fixed duration; profiles are rendered to
// 16-bit little-endian PCM so they can also be loaded from WAV files.
package tone

import (
	"fmt"
	"math"
	"sort"
	"time"
)

const (
	// SampleRate is the render and playback sample rate in Hz.
	SampleRate = 44100
	// Channels is the channel count (mono).
	Channels = 1
)

// Segment is one piece of a profile's envelope: frequency and gain are
// interpolated linearly from their Start to End values over Dur. A gain of 0
// on both ends produces silence (used for gaps between beeps).
type Segment struct {
	FreqStart float64
	FreqEnd   float64
	GainStart float64
	GainEnd   float64
	Dur       time.Duration
}

// Profile is a named alarm tone: an ordered list of envelope segments.
type Profile struct {
	Name     string
	Segments []Segment
}

// Duration returns the total length of the profile.
func (p *Profile) Duration() time.Duration {
	var d time.Duration
	for _, s := range p.Segments {
		d += s.Dur
	}
	return d
}

func beep(freq float64, dur time.Duration) Segment {
	return Segment{FreqStart: freq, FreqEnd: freq, GainStart: 0.8, GainEnd: 0.8, Dur: dur}
}

func gap(dur time.Duration) Segment {
	return Segment{Dur: dur}
}

// Built-in profiles. Each is a distinct, recognizable alarm character.
var profiles = map[string]*Profile{
	"classic": {
		// Triple beep at 880Hz
		Name: "classic",
		Segments: []Segment{
			beep(880, 180*time.Millisecond), gap(120 * time.Millisecond),
			beep(880, 180*time.Millisecond), gap(120 * time.Millisecond),
			beep(880, 180*time.Millisecond),
		},
	},
	"gentle": {
		// Rising melodic C5 -> E5 -> G5 with soft attack and decay
		Name: "gentle",
		Segments: []Segment{
			{FreqStart: 523.25, FreqEnd: 523.25, GainStart: 0, GainEnd: 0.6, Dur: 250 * time.Millisecond},
			{FreqStart: 659.25, FreqEnd: 659.25, GainStart: 0.6, GainEnd: 0.6, Dur: 250 * time.Millisecond},
			{FreqStart: 783.99, FreqEnd: 783.99, GainStart: 0.6, GainEnd: 0, Dur: 400 * time.Millisecond},
		},
	},
	"urgent": {
		// Rapid pulses at 1200Hz
		Name: "urgent",
		Segments: []Segment{
			beep(1200, 80*time.Millisecond), gap(60 * time.Millisecond),
			beep(1200, 80*time.Millisecond), gap(60 * time.Millisecond),
			beep(1200, 80*time.Millisecond), gap(60 * time.Millisecond),
			beep(1200, 80*time.Millisecond), gap(60 * time.Millisecond),
			beep(1200, 80*time.Millisecond), gap(60 * time.Millisecond),
			beep(1200, 80*time.Millisecond), gap(60 * time.Millisecond),
			beep(1200, 80*time.Millisecond), gap(60 * time.Millisecond),
			beep(1200, 80*time.Millisecond),
		},
	},
	"bell": {
		// Single strike with exponential-feel decay
		Name: "bell",
		Segments: []Segment{
			{FreqStart: 660, FreqEnd: 660, GainStart: 0.9, GainEnd: 0.4, Dur: 300 * time.Millisecond},
			{FreqStart: 660, FreqEnd: 660, GainStart: 0.4, GainEnd: 0.1, Dur: 500 * time.Millisecond},
			{FreqStart: 660, FreqEnd: 660, GainStart: 0.1, GainEnd: 0, Dur: 700 * time.Millisecond},
		},
	},
	"chirp": {
		// Two-tone alternation
		Name: "chirp",
		Segments: []Segment{
			beep(990, 150*time.Millisecond),
			beep(1320, 150*time.Millisecond),
			beep(990, 150*time.Millisecond),
			beep(1320, 150*time.Millisecond),
		},
	},
}

// DefaultProfile is used when no profile is configured.
const DefaultProfile = "classic"

// GetProfile returns the named built-in profile.
func GetProfile(name string) (*Profile, error) {
	p, ok := profiles[name]
	if !ok {
		return nil, fmt.Errorf("unknown tone profile %q", name)
	}
	return p, nil
}

// ProfileNames returns the sorted names of all built-in profiles.
func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Render synthesizes the profile to 16-bit LE mono PCM at SampleRate.
// Phase is kept continuous across segments so frequency sweeps do not click.
func (p *Profile) Render() []byte {
	totalSamples := 0
	for _, s := range p.Segments {
		totalSamples += int(float64(s.Dur) / float64(time.Second) * SampleRate)
	}

	out := make([]byte, 0, totalSamples*2)
	var phase float64

	for _, s := range p.Segments {
		n := int(float64(s.Dur) / float64(time.Second) * SampleRate)
		for i := 0; i < n; i++ {
			t := float64(i) / float64(n)
			freq := s.FreqStart + (s.FreqEnd-s.FreqStart)*t
			gain := s.GainStart + (s.GainEnd-s.GainStart)*t

			var sample float64
			if gain > 0 && freq > 0 {
				sample = math.Sin(phase) * gain
			}
			phase += 2 * math.Pi * freq / SampleRate
			if phase > 2*math.Pi {
				phase -= 2 * math.Pi
			}

			v := int16(sample * math.MaxInt16)
			out = append(out, byte(v), byte(v>>8))
		}
	}
	return out
}
