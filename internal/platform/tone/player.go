package tone

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// oto permits a single audio context per process.
var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoErr  error
)

func audioContext() (*oto.Context, error) {
	otoOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   SampleRate,
			ChannelCount: Channels,
			Format:       oto.FormatSignedInt16LE,
		}
		ctx, ready, err := oto.NewContext(op)
		if err != nil {
			otoErr = fmt.Errorf("init audio context: %w", err)
			return
		}
		<-ready
		otoCtx = ctx
	})
	return otoCtx, otoErr
}

// Player plays rendered PCM through the system audio device. At most one
// sound plays at a time; starting a new one stops the previous.
type Player struct {
	mu   sync.Mutex
	stop chan struct{}
	wg   sync.WaitGroup
}

// NewPlayer constructs a Player, initializing the audio device on first use.
func NewPlayer() (*Player, error) {
	if _, err := audioContext(); err != nil {
		return nil, err
	}
	return &Player{}, nil
}

// Play starts playback of the given 16-bit LE mono PCM and returns
// immediately. Any sound already playing is stopped first.
func (p *Player) Play(pcm []byte) error {
	if len(pcm) == 0 {
		return errors.New("empty pcm")
	}
	ctx, err := audioContext()
	if err != nil {
		return err
	}

	p.Stop()

	p.mu.Lock()
	stop := make(chan struct{})
	p.stop = stop
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		pl := ctx.NewPlayer(bytes.NewReader(pcm))
		defer pl.Close()
		pl.Play()

		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if !pl.IsPlaying() {
					return
				}
			}
		}
	}()
	return nil
}

// PlayProfile renders and plays a named built-in profile.
func (p *Player) PlayProfile(name string) error {
	profile, err := GetProfile(name)
	if err != nil {
		return err
	}
	return p.Play(profile.Render())
}

// Stop halts any in-flight playback and waits for it to wind down.
func (p *Player) Stop() {
	p.mu.Lock()
	if p.stop != nil {
		close(p.stop)
		p.stop = nil
	}
	p.mu.Unlock()
	p.wg.Wait()
}

// LoadCustomPCM loads a WAV file and normalizes it to the player's format
// (16-bit LE mono at SampleRate) so it can be passed straight to Play.
func LoadCustomPCM(path string) ([]byte, error) {
	w, err := LoadWAV(path)
	if err != nil {
		return nil, err
	}
	return normalizePCM(w), nil
}

// normalizePCM downmixes to mono and resamples to SampleRate using
// nearest-sample selection, which is adequate for short alarm tones.
func normalizePCM(w *wavData) []byte {
	frameBytes := 2 * w.channels
	frames := len(w.pcm) / frameBytes

	outFrames := frames
	if w.sampleRate != SampleRate {
		outFrames = int(int64(frames) * SampleRate / int64(w.sampleRate))
	}

	out := make([]byte, 0, outFrames*2)
	for i := 0; i < outFrames; i++ {
		src := i
		if w.sampleRate != SampleRate {
			src = int(int64(i) * int64(w.sampleRate) / SampleRate)
			if src >= frames {
				src = frames - 1
			}
		}
		off := src * frameBytes

		var acc int
		for ch := 0; ch < w.channels; ch++ {
			s := int16(uint16(w.pcm[off+2*ch]) | uint16(w.pcm[off+2*ch+1])<<8)
			acc += int(s)
		}
		v := int16(acc / w.channels)
		out = append(out, byte(v), byte(v>>8))
	}
	return out
}
