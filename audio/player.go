package audio

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
	"github.com/sirupsen/logrus"

	"github.com/lixenwraith/sixty-below/clock"
	"github.com/lixenwraith/sixty-below/constant"
	"github.com/lixenwraith/sixty-below/event"
	"github.com/lixenwraith/sixty-below/status"
)

// Output is the sound device; the default is the beep speaker
type Output interface {
	Init(rate beep.SampleRate, bufferSize int) error
	Play(s beep.Streamer)
	Lock()
	Unlock()
	Clear()
}

type speakerOutput struct{}

func (speakerOutput) Init(rate beep.SampleRate, bufferSize int) error {
	return speaker.Init(rate, bufferSize)
}
func (speakerOutput) Play(s beep.Streamer) { speaker.Play(s) }
func (speakerOutput) Lock()                { speaker.Lock() }
func (speakerOutput) Unlock()              { speaker.Unlock() }
func (speakerOutput) Clear()               { speaker.Clear() }

// PlayerDeps are the collaborators of a CuePlayer
type PlayerDeps struct {
	Enabled bool
	Output  Output // nil selects the speaker
	Clock   clock.Provider
	Bus     *event.Bus
	Log     logrus.FieldLogger
	Status  *status.Registry
}

// CuePlayer turns world and save events into short sounds
//
// A missing or broken audio device is not an error: the player logs once and
// stays silent. Event handlers run on the frame goroutine; only the mixer is
// shared with the device callback and it is touched under the output lock.
type CuePlayer struct {
	out   Output
	rate  beep.SampleRate
	clock clock.Provider
	log   logrus.FieldLogger

	enabled bool
	ready   atomic.Bool
	mixer   *beep.Mixer
	last    [cueCount]time.Time

	statPlayed  *atomic.Int64
	statDropped *atomic.Int64
}

// NewCuePlayer subscribes the player to its events
func NewCuePlayer(d PlayerDeps) (*CuePlayer, error) {
	if d.Clock == nil || d.Bus == nil || d.Log == nil || d.Status == nil {
		return nil, errors.New("cue player: missing dependency")
	}
	out := d.Output
	if out == nil {
		out = speakerOutput{}
	}
	p := &CuePlayer{
		out:         out,
		rate:        beep.SampleRate(constant.AudioSampleRate),
		clock:       d.Clock,
		log:         d.Log.WithField("component", "audio"),
		enabled:     d.Enabled,
		mixer:       &beep.Mixer{},
		statPlayed:  d.Status.Ints.Get("audio.played"),
		statDropped: d.Status.Ints.Get("audio.dropped"),
	}

	event.Subscribe(d.Bus, event.TileChanged, "audio", func(e *event.TileChangedPayload) error {
		p.Play(TileCue(e.Old, e.New))
		return nil
	})
	event.Subscribe(d.Bus, event.SaveComplete, "audio", func(e *event.SaveCompletePayload) error {
		if e.Chunks > 0 {
			p.Play(CueSaved)
		}
		return nil
	})
	event.Subscribe(d.Bus, event.SaveFailed, "audio", func(*event.SaveFailedPayload) error {
		p.Play(CueSaveFailed)
		return nil
	})
	return p, nil
}

// Name implements service.Service
func (p *CuePlayer) Name() string { return "audio" }

// Dependencies implements service.Service
func (p *CuePlayer) Dependencies() []string { return nil }

// Init opens the device; failure leaves the player silent
func (p *CuePlayer) Init() error {
	if !p.enabled {
		p.log.Info("audio disabled by config")
		return nil
	}
	if err := p.out.Init(p.rate, p.rate.N(constant.AudioBufferDuration)); err != nil {
		p.log.WithError(err).Warn("audio device unavailable, cues muted")
		return nil
	}
	p.ready.Store(true)
	return nil
}

// Start attaches the mixer to the device
func (p *CuePlayer) Start() error {
	if p.ready.Load() {
		p.out.Play(p.mixer)
	}
	return nil
}

// Stop silences everything; safe to call repeatedly
func (p *CuePlayer) Stop() error {
	if !p.ready.Swap(false) {
		return nil
	}
	p.out.Lock()
	p.mixer.Clear()
	p.out.Unlock()
	p.out.Clear()
	return nil
}

// Ready reports whether cues reach a device
func (p *CuePlayer) Ready() bool {
	return p.ready.Load()
}

// Play mixes a cue in; it returns false when muted, repeated too quickly or over the voice cap
func (p *CuePlayer) Play(c Cue) bool {
	if c <= CueNone || c >= cueCount || !p.ready.Load() {
		return false
	}
	now := p.clock.Now()
	if !p.last[c].IsZero() && now.Sub(p.last[c]) < constant.AudioCueGap {
		p.statDropped.Add(1)
		return false
	}

	p.out.Lock()
	full := p.mixer.Len() >= constant.AudioMaxVoices
	if !full {
		p.mixer.Add(Build(c, p.rate))
	}
	p.out.Unlock()

	if full {
		p.statDropped.Add(1)
		return false
	}
	p.last[c] = now
	p.statPlayed.Add(1)
	return true
}
