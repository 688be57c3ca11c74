package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"speak-assessment-service/internal/app"
	"speak-assessment-service/internal/domain"
	"speak-assessment-service/internal/scoring"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPermissionTimeout = 30 * time.Second
	defaultRecognitionStop   = 2 * time.Second
	commandQueueSize         = 16
)

type WSHandler struct {
	service           *app.AssessmentService
	logger            *slog.Logger
	permissionTimeout time.Duration
	recognitionStop   time.Duration
	upgrader          websocket.Upgrader
}

// WSOption customizes a WSHandler.
type WSOption func(*WSHandler)

// WithPermissionTimeout bounds how long a session waits for the client to answer a
// microphone request.
func WithPermissionTimeout(d time.Duration) WSOption {
	return func(h *WSHandler) {
		if d > 0 {
			h.permissionTimeout = d
		}
	}
}

// WithRecognitionStopTimeout bounds how long stopping a recording waits for the client's
// last recognition results.
func WithRecognitionStopTimeout(d time.Duration) WSOption {
	return func(h *WSHandler) {
		if d > 0 {
			h.recognitionStop = d
		}
	}
}

// WithWSLogger sets the handler logger.
func WithWSLogger(logger *slog.Logger) WSOption {
	return func(h *WSHandler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func NewWSHandler(service *app.AssessmentService, opts ...WSOption) *WSHandler {
	h := &WSHandler{
		service:           service,
		logger:            slog.Default(),
		permissionTimeout: defaultPermissionTimeout,
		recognitionStop:   defaultRecognitionStop,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type wordPayload struct {
	Word string `json:"word"`
}

type indexPayload struct {
	Index int `json:"index"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type sessionPayload struct {
	QuestionSet questionSetView `json:"questionSet"`
	Snapshot    domain.Snapshot `json:"snapshot"`
}

type questionSetView struct {
	domain.QuestionSet
	TimeBudgetSeconds int `json:"timeBudgetSeconds"`
}

type completePayload struct {
	Completion domain.Completion `json:"completion"`
	Summary    scoring.Summary   `json:"summary"`
}

// ServeWS upgrades the request and runs one assessment session over the connection
// until the client disconnects.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	section := domain.SectionID(r.URL.Query().Get("section"))
	if section == "" {
		http.Error(w, "missing section", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	g, ctx := errgroup.WithContext(r.Context())
	send := make(chan outboundMessage[any], 16)
	enqueue := func(msg outboundMessage[any]) bool {
		select {
		case send <- msg:
			return true
		case <-ctx.Done():
			return false
		}
	}

	devices := newRemoteDevices(enqueue, h.permissionTimeout, h.recognitionStop)
	session, err := h.service.StartSession(ctx, section, devices.devices())
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err))
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, errorCode(err)))
		return
	}
	logger := h.logger.With("session_id", session.ID(), "section", string(section))
	defer h.service.Abandon(context.Background(), session.ID())

	updates, cancel := session.Subscribe()
	defer cancel()

	// the first snapshot goes out with the session message
	initial := <-updates
	set := session.QuestionSet()
	send <- outboundMessage[any]{Type: "session", Payload: sessionPayload{
		QuestionSet: questionSetView{QuestionSet: set, TimeBudgetSeconds: set.TimeBudgetSeconds()},
		Snapshot:    initial,
	}}

	g.Go(func() error {
		for {
			select {
			case msg := <-send:
				if err := conn.WriteJSON(msg); err != nil {
					return fmt.Errorf("ws write: %w", err)
				}
			case <-ctx.Done():
				return nil
			}
		}
	})

	g.Go(func() error {
		for {
			select {
			case snap, ok := <-updates:
				if !ok {
					return nil
				}
				if !enqueue(outboundMessage[any]{Type: "state", Payload: snap}) {
					return nil
				}
			case <-ctx.Done():
				return nil
			}
		}
	})

	commands := make(chan inboundMessage, commandQueueSize)
	g.Go(func() error {
		for {
			select {
			case cmd := <-commands:
				for _, msg := range h.execute(ctx, session, cmd) {
					if !enqueue(msg) {
						return nil
					}
				}
			case <-ctx.Done():
				return nil
			}
		}
	})

	g.Go(func() error {
		<-ctx.Done()
		// unblocks the read loop when another goroutine fails
		return conn.Close()
	})

	g.Go(func() error {
		for {
			var inbound inboundMessage
			if err := conn.ReadJSON(&inbound); err != nil {
				return fmt.Errorf("ws read: %w", err)
			}
			if h.deliverDeviceReply(devices, inbound) {
				continue
			}
			select {
			case commands <- inbound:
			case <-ctx.Done():
				return nil
			}
		}
	})

	err = g.Wait()
	if err != nil && !websocket.IsCloseError(errors.Unwrap(err), websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		logger.Debug("ws session closed", "err", err)
	}
}

// deliverDeviceReply routes client answers to pending device calls. They bypass the
// command queue so a command waiting on the client does not block its own reply.
func (h *WSHandler) deliverDeviceReply(devices *remoteDevices, msg inboundMessage) bool {
	switch msg.Type {
	case "microphone":
		var p microphonePayload
		_ = json.Unmarshal(msg.Payload, &p)
		devices.onMicrophone(p.Granted)
	case "transcript":
		var ev app.TranscriptEvent
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			h.logger.Debug("bad transcript payload", "err", err)
			return true
		}
		devices.onTranscript(ev)
	case "recognitionEnded":
		devices.onRecognitionEnded()
	case "speechEnded":
		var p speechEndedPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			h.logger.Debug("bad speechEnded payload", "err", err)
			return true
		}
		devices.onSpeechEnded(p.ID)
	default:
		return false
	}
	return true
}

func (h *WSHandler) execute(ctx context.Context, session *app.Controller, cmd inboundMessage) []outboundMessage[any] {
	var err error
	switch cmd.Type {
	case "start":
		err = session.Start(ctx)
	case "stop":
		err = session.Stop(ctx)
	case "selectWord":
		var p wordPayload
		if err := json.Unmarshal(cmd.Payload, &p); err != nil {
			return []outboundMessage[any]{badRequest("invalid selectWord payload")}
		}
		err = session.SelectWord(p.Word)
	case "deselectWord":
		var p indexPayload
		if err := json.Unmarshal(cmd.Payload, &p); err != nil {
			return []outboundMessage[any]{badRequest("invalid deselectWord payload")}
		}
		err = session.DeselectWord(p.Index)
	case "resetSelection":
		err = session.ResetSelection()
	case "submit":
		err = session.Submit()
	case "selectOption":
		var p indexPayload
		if err := json.Unmarshal(cmd.Payload, &p); err != nil {
			return []outboundMessage[any]{badRequest("invalid selectOption payload")}
		}
		err = session.SelectOption(p.Index)
	case "play":
		err = session.PlayPrompt(ctx)
	case "retreat":
		err = session.Retreat()
	case "advance":
		var completion *domain.Completion
		completion, err = h.service.Advance(ctx, session.ID())
		if err == nil && completion != nil {
			return []outboundMessage[any]{{Type: "complete", Payload: completePayload{
				Completion: *completion,
				Summary:    scoring.Summarize(completion.AnswerRecords),
			}}}
		}
	default:
		return []outboundMessage[any]{{Type: "error", Payload: errorPayload{
			Code:    "unsupported_message",
			Message: "unsupported message type " + cmd.Type,
		}}}
	}
	if err != nil {
		return []outboundMessage[any]{errorMessage(err)}
	}
	return nil
}

func errorMessage(err error) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Code: errorCode(err), Message: err.Error()}}
}

func badRequest(message string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Code: "bad_request", Message: message}}
}

var errorCodes = []struct {
	err  error
	code string
}{
	{domain.ErrUnknownSection, "unknown_section"},
	{domain.ErrInsufficientPool, "insufficient_pool"},
	{domain.ErrInvalidPool, "invalid_pool"},
	{domain.ErrPermissionDenied, "permission_denied"},
	{domain.ErrInvalidTransition, "invalid_transition"},
	{domain.ErrUnsupportedAction, "unsupported_action"},
	{domain.ErrEmptySelection, "empty_selection"},
	{domain.ErrWordNotAvailable, "word_not_available"},
	{domain.ErrSelectionIndex, "selection_index"},
	{domain.ErrOptionOutOfRange, "option_out_of_range"},
	{domain.ErrAlreadyPlaying, "already_playing"},
	{domain.ErrSessionNotFound, "session_not_found"},
	{domain.ErrResultNotFound, "result_not_found"},
}

// errorCode maps domain errors to the stable codes clients switch on.
func errorCode(err error) string {
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal"
}
