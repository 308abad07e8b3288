package constant

import "time"

// Audio output
const (
	AudioSampleRate = 48000

	// AudioBufferDuration sets speaker latency
	AudioBufferDuration = 100 * time.Millisecond

	// AudioCueGap is the minimum wall time between two plays of the same cue
	AudioCueGap = 60 * time.Millisecond

	// AudioMaxVoices caps concurrently mixed cues
	AudioMaxVoices = 8
)

// Cue shapes
const (
	CueDigFreq     = 140.0
	CueDigDuration = 90 * time.Millisecond

	CuePlaceFreq     = 220.0
	CuePlaceDuration = 60 * time.Millisecond

	CueSavedFreqLow  = 660.0
	CueSavedFreqHigh = 990.0
	CueSavedNote     = 70 * time.Millisecond

	CueSaveFailedFreq     = 110.0
	CueSaveFailedDuration = 250 * time.Millisecond

	CueAttack  = 5 * time.Millisecond
	CueRelease = 30 * time.Millisecond
)
