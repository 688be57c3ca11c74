package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"speak-assessment-service/internal/app"
	"speak-assessment-service/internal/domain"
)

var errDenied = errors.New("NotAllowedError")

type fakeCapture struct {
	mu       sync.Mutex
	deny     error
	acquired int
	released int
	waiting  int
	// gate, when set, blocks Acquire until it is closed
	gate chan struct{}
}

func (f *fakeCapture) Acquire(ctx context.Context) (app.CaptureHandle, error) {
	if f.gate != nil {
		f.mu.Lock()
		f.waiting++
		f.mu.Unlock()
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deny != nil {
		return nil, f.deny
	}
	f.acquired++
	return &fakeHandle{capture: f}, nil
}

func (f *fakeCapture) pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.waiting
}

func (f *fakeCapture) counts() (acquired, released int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.acquired, f.released
}

type fakeHandle struct {
	capture *fakeCapture
	once    sync.Once
}

func (h *fakeHandle) Stop() ([]byte, error) {
	h.once.Do(func() {
		h.capture.mu.Lock()
		h.capture.released++
		h.capture.mu.Unlock()
	})
	return []byte("audio"), nil
}

type fakeTranscriber struct {
	mu       sync.Mutex
	sink     func(app.TranscriptEvent)
	locale   string
	started  int
	stopped  int
	startErr error
	// flush is delivered from Stop, like a recognizer emitting its last final result
	flush []app.TranscriptEvent
}

func (f *fakeTranscriber) Start(_ context.Context, locale string, sink func(app.TranscriptEvent)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.started++
	f.locale = locale
	f.sink = sink
	return nil
}

func (f *fakeTranscriber) Stop() error {
	f.mu.Lock()
	f.stopped++
	sink, flush := f.sink, f.flush
	f.flush = nil
	f.mu.Unlock()
	for _, ev := range flush {
		sink(ev)
	}
	return nil
}

func (f *fakeTranscriber) emit(text string, final bool) {
	f.mu.Lock()
	sink := f.sink
	f.mu.Unlock()
	if sink != nil {
		sink(app.TranscriptEvent{Text: text, Final: final})
	}
}

func (f *fakeTranscriber) stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

type fakeSynth struct {
	mu     sync.Mutex
	spoken []string
	rates  []float64
	onEnd  func()
}

func (f *fakeSynth) Speak(_ context.Context, text string, rate float64, onEnd func()) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spoken = append(f.spoken, text)
	f.rates = append(f.rates, rate)
	f.onEnd = onEnd
	return nil
}

func (f *fakeSynth) finish() {
	f.mu.Lock()
	onEnd := f.onEnd
	f.mu.Unlock()
	onEnd()
}

type fakeDevices struct {
	capture     *fakeCapture
	transcriber *fakeTranscriber
	synth       *fakeSynth
}

func newFakeDevices() *fakeDevices {
	return &fakeDevices{
		capture:     &fakeCapture{},
		transcriber: &fakeTranscriber{},
		synth:       &fakeSynth{},
	}
}

func (f *fakeDevices) devices() app.Devices {
	return app.Devices{Capture: f.capture, Transcriber: f.transcriber, Synthesizer: f.synth}
}

var fixedNow = time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func questionSet(section domain.SectionID, questions ...domain.Question) domain.QuestionSet {
	return domain.QuestionSet{
		Section:      section,
		Title:        string(section),
		Instructions: "do the thing",
		TimeBudget:   300 * time.Second,
		Questions:    questions,
	}
}

func readAloud(texts ...string) []domain.Question {
	out := make([]domain.Question, len(texts))
	for i, t := range texts {
		out[i] = domain.Question{Kind: domain.KindReadAloud, Text: t}
	}
	return out
}

func newController(set domain.QuestionSet, dev *fakeDevices) *app.Controller {
	c, err := app.NewController("session-1", set, dev.devices(), app.WithClock(fixedClock))
	if err != nil {
		panic(fmt.Sprintf("new controller: %v", err))
	}
	return c
}
