package app

import "context"

// AudioCapture grants access to the microphone. Acquire blocks until the user consents
// or refuses; any error is treated as a denial.
type AudioCapture interface {
	Acquire(ctx context.Context) (CaptureHandle, error)
}

// CaptureHandle is an acquired microphone. Stop releases it and returns the recording.
type CaptureHandle interface {
	Stop() ([]byte, error)
}

// TranscriptEvent is one recognizer result. A final event carries the whole transcript
// recognized so far, not just the latest segment.
type TranscriptEvent struct {
	Text  string `json:"text"`
	Final bool   `json:"final"`
}

// Transcriber is a continuous speech-to-text stream with interim results. Implementations
// must not call sink synchronously from Start or Stop while holding their own locks.
type Transcriber interface {
	Start(ctx context.Context, locale string, sink func(TranscriptEvent)) error
	Stop() error
}

// Synthesizer speaks text aloud and calls onEnd once playback finishes.
type Synthesizer interface {
	Speak(ctx context.Context, text string, rate float64, onEnd func()) error
}

// Devices bundles the platform capabilities a session drives.
type Devices struct {
	Capture     AudioCapture
	Transcriber Transcriber
	Synthesizer Synthesizer
}
