package http

import (
	"context"
	"errors"
	"sync"
	"time"

	"speak-assessment-service/internal/app"
)

var (
	errMicrophoneDenied  = errors.New("microphone access denied by client")
	errMicrophoneTimeout = errors.New("no microphone answer from client")
	errRequestPending    = errors.New("microphone request already pending")
	errClientGone        = errors.New("client connection closed")
)

type microphonePayload struct {
	Granted bool `json:"granted"`
}

type recognitionPayload struct {
	Locale string `json:"locale"`
}

// speakPayload carries an utterance id the client echoes back in speechEnded.
type speakPayload struct {
	ID   uint64  `json:"id"`
	Text string  `json:"text"`
	Rate float64 `json:"rate"`
}

type speechEndedPayload struct {
	ID uint64 `json:"id"`
}

// remoteDevices drives the browser's microphone, speech recognition and speech
// synthesis over the session's websocket. Replies from the client arrive through the
// on* methods, which the read loop calls.
type remoteDevices struct {
	send              func(outboundMessage[any]) bool
	permissionTimeout time.Duration
	stopTimeout       time.Duration

	mu         sync.Mutex
	grant      chan bool
	sink       func(app.TranscriptEvent)
	recognized chan struct{}
	utterance  uint64
	onEnd      func()
}

func newRemoteDevices(send func(outboundMessage[any]) bool, permissionTimeout, stopTimeout time.Duration) *remoteDevices {
	return &remoteDevices{
		send:              send,
		permissionTimeout: permissionTimeout,
		stopTimeout:       stopTimeout,
	}
}

func (d *remoteDevices) devices() app.Devices {
	return app.Devices{Capture: d, Transcriber: d, Synthesizer: d}
}

// Acquire asks the client for the microphone and waits for its answer. No answer within
// the permission timeout counts as a refusal.
func (d *remoteDevices) Acquire(ctx context.Context) (app.CaptureHandle, error) {
	grant := make(chan bool, 1)
	d.mu.Lock()
	if d.grant != nil {
		d.mu.Unlock()
		return nil, errRequestPending
	}
	d.grant = grant
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		if d.grant == grant {
			d.grant = nil
		}
		d.mu.Unlock()
	}()

	if !d.send(outboundMessage[any]{Type: "requestMicrophone", Payload: struct{}{}}) {
		return nil, errClientGone
	}

	timer := time.NewTimer(d.permissionTimeout)
	defer timer.Stop()
	select {
	case granted := <-grant:
		if !granted {
			return nil, errMicrophoneDenied
		}
		return &remoteCapture{send: d.send}, nil
	case <-timer.C:
		return nil, errMicrophoneTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (d *remoteDevices) onMicrophone(granted bool) {
	d.mu.Lock()
	grant := d.grant
	d.grant = nil
	d.mu.Unlock()
	if grant != nil {
		grant <- granted
	}
}

func (d *remoteDevices) Start(_ context.Context, locale string, sink func(app.TranscriptEvent)) error {
	d.mu.Lock()
	d.sink = sink
	d.recognized = nil
	d.mu.Unlock()
	if !d.send(outboundMessage[any]{Type: "startRecognition", Payload: recognitionPayload{Locale: locale}}) {
		return errClientGone
	}
	return nil
}

// Stop ends recognition and waits briefly for the client to confirm, so final results
// still in flight reach the sink.
func (d *remoteDevices) Stop() error {
	ended := make(chan struct{})
	d.mu.Lock()
	d.recognized = ended
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.sink = nil
		d.recognized = nil
		d.mu.Unlock()
	}()

	if !d.send(outboundMessage[any]{Type: "stopRecognition", Payload: struct{}{}}) {
		return errClientGone
	}
	timer := time.NewTimer(d.stopTimeout)
	defer timer.Stop()
	select {
	case <-ended:
	case <-timer.C:
	}
	return nil
}

func (d *remoteDevices) onTranscript(ev app.TranscriptEvent) {
	d.mu.Lock()
	sink := d.sink
	d.mu.Unlock()
	if sink != nil {
		sink(ev)
	}
}

func (d *remoteDevices) onRecognitionEnded() {
	d.mu.Lock()
	ended := d.recognized
	d.recognized = nil
	d.mu.Unlock()
	if ended != nil {
		close(ended)
	}
}

// Speak sends a new utterance. Only its own speechEnded reply runs onEnd; an end event
// for an earlier utterance is ignored.
func (d *remoteDevices) Speak(_ context.Context, text string, rate float64, onEnd func()) error {
	d.mu.Lock()
	d.utterance++
	id := d.utterance
	d.onEnd = onEnd
	d.mu.Unlock()
	if !d.send(outboundMessage[any]{Type: "speak", Payload: speakPayload{ID: id, Text: text, Rate: rate}}) {
		return errClientGone
	}
	return nil
}

func (d *remoteDevices) onSpeechEnded(id uint64) {
	d.mu.Lock()
	if id != d.utterance {
		d.mu.Unlock()
		return
	}
	onEnd := d.onEnd
	d.onEnd = nil
	d.mu.Unlock()
	if onEnd != nil {
		onEnd()
	}
}

type remoteCapture struct {
	send func(outboundMessage[any]) bool
	once sync.Once
}

// Stop tells the client to release the microphone. Audio stays on the client.
func (c *remoteCapture) Stop() ([]byte, error) {
	c.once.Do(func() {
		c.send(outboundMessage[any]{Type: "stopCapture", Payload: struct{}{}})
	})
	return nil, nil
}
