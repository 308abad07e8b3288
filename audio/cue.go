package audio

import (
	"math"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"

	"github.com/lixenwraith/sixty-below/constant"
)

// Cue identifies a short sound effect
type Cue int

const (
	CueNone Cue = iota
	CueDig
	CuePlace
	CueSaved
	CueSaveFailed
	cueCount
)

var cueNames = [cueCount]string{"none", "dig", "place", "saved", "save_failed"}

func (c Cue) String() string {
	if c < 0 || c >= cueCount {
		return "unknown"
	}
	return cueNames[c]
}

// Wave is an oscillator shape
type Wave int

const (
	WaveSine Wave = iota
	WaveSquare
	WaveNoise
)

// tone is a single enveloped oscillator voice
type tone struct {
	freq    float64
	phase   float64
	rate    beep.SampleRate
	wave    Wave
	total   int
	attack  int
	release int
	pos     int
	noise   uint32
}

func newTone(freq float64, d time.Duration, wave Wave, rate beep.SampleRate) *tone {
	total := rate.N(d)
	return &tone{
		freq:    freq,
		rate:    rate,
		wave:    wave,
		total:   total,
		attack:  min(rate.N(constant.CueAttack), total/2),
		release: min(rate.N(constant.CueRelease), total/2),
		noise:   0x9E3779B9,
	}
}

func (t *tone) envelope() float64 {
	switch {
	case t.attack > 0 && t.pos < t.attack:
		return float64(t.pos) / float64(t.attack)
	case t.release > 0 && t.pos >= t.total-t.release:
		return float64(t.total-t.pos) / float64(t.release)
	}
	return 1
}

func (t *tone) sample() float64 {
	switch t.wave {
	case WaveSquare:
		if t.phase < 0.5 {
			return 1
		}
		return -1
	case WaveNoise:
		// LCG, decays with the envelope like a crumble
		t.noise = t.noise*1664525 + 1013904223
		return float64(t.noise)/float64(math.MaxUint32)*2 - 1
	}
	return math.Sin(2 * math.Pi * t.phase)
}

// Stream implements beep.Streamer
func (t *tone) Stream(samples [][2]float64) (n int, ok bool) {
	for i := range samples {
		if t.pos >= t.total {
			return i, i > 0
		}
		v := t.sample() * t.envelope()
		samples[i][0] = v
		samples[i][1] = v

		t.phase += t.freq / float64(t.rate)
		t.phase -= math.Floor(t.phase)
		t.pos++
	}
	return len(samples), true
}

// Err implements beep.Streamer
func (t *tone) Err() error { return nil }

func withVolume(s beep.Streamer, vol float64) beep.Streamer {
	return &effects.Volume{Streamer: s, Base: 2, Volume: math.Log2(vol)}
}

// Build returns a fresh streamer for a cue; nil for CueNone or unknown cues
func Build(c Cue, rate beep.SampleRate) beep.Streamer {
	switch c {
	case CueDig:
		return withVolume(newTone(constant.CueDigFreq, constant.CueDigDuration, WaveNoise, rate), 0.35)
	case CuePlace:
		return withVolume(newTone(constant.CuePlaceFreq, constant.CuePlaceDuration, WaveSquare, rate), 0.2)
	case CueSaved:
		return withVolume(beep.Seq(
			newTone(constant.CueSavedFreqLow, constant.CueSavedNote, WaveSine, rate),
			newTone(constant.CueSavedFreqHigh, constant.CueSavedNote, WaveSine, rate),
		), 0.25)
	case CueSaveFailed:
		return withVolume(newTone(constant.CueSaveFailedFreq, constant.CueSaveFailedDuration, WaveSquare, rate), 0.3)
	}
	return nil
}

// Duration is the playback length of a cue at rate, in samples
func Duration(c Cue, rate beep.SampleRate) int {
	switch c {
	case CueDig:
		return rate.N(constant.CueDigDuration)
	case CuePlace:
		return rate.N(constant.CuePlaceDuration)
	case CueSaved:
		return 2 * rate.N(constant.CueSavedNote)
	case CueSaveFailed:
		return rate.N(constant.CueSaveFailedDuration)
	}
	return 0
}

// TileCue picks the cue of a tile change: clearing a tile digs, anything else places
func TileCue(from, to byte) Cue {
	switch {
	case from == to:
		return CueNone
	case to == constant.TileAir:
		return CueDig
	}
	return CuePlace
}
