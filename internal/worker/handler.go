// Package worker is the worker side of a session handoff: it validates the
// start-game request, materializes the channel and exports the session
// object that drives the selected core.
package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/danmuck/deltaxpc/internal/extension"
	"github.com/danmuck/deltaxpc/internal/logging"
	"github.com/danmuck/deltaxpc/internal/observability"
	"github.com/danmuck/deltaxpc/internal/rpc"
	"github.com/rs/zerolog"
)

// State is a Handler lifecycle state. No state is re-entered.
type State string

const (
	StateIdle            State = "idle"
	StateAwaitingPayload State = "awaiting_payload"
	StateValidating      State = "validating"
	StateBridging        State = "bridging"
	StateConnected       State = "connected"
	StateFailed          State = "failed"
	StateCompleted       State = "completed"
)

// Handler handles the single invocation a worker process receives.
type Handler struct {
	ctx       context.Context
	establish Establisher
	logger    zerolog.Logger

	mu      sync.Mutex
	state   State
	channel *rpc.Channel
	err     error
	done    chan struct{}
}

// NewHandler binds ctx, which bounds channel establishment, and the
// establisher the handler delegates start-game requests to.
func NewHandler(ctx context.Context, establish Establisher) *Handler {
	return &Handler{
		ctx:       ctx,
		establish: establish,
		logger:    logging.Component("worker.handler"),
		state:     StateIdle,
		done:      make(chan struct{}),
	}
}

// BeginRequest starts handling ectx. It returns before the payload has
// loaded; follow progress with Done. A second call is cancelled with
// ErrInvalidRequest and leaves the first request untouched.
func (h *Handler) BeginRequest(ectx extension.Context) {
	h.mu.Lock()
	if h.state != StateIdle {
		h.mu.Unlock()
		h.logger.Warn().Msg("request already handled")
		observability.RecordRequest(KindInvalidRequest)
		ectx.CancelRequest(fmt.Errorf("%w: request already handled", ErrInvalidRequest))
		return
	}
	h.state = StateAwaitingPayload
	h.mu.Unlock()

	attachment, ok := extension.FirstAttachment(ectx)
	if !ok || !attachment.HasItemConformingTo(extension.TypePropertyList) {
		h.fail(ectx, fmt.Errorf("%w: no property list attachment", ErrInvalidRequest))
		return
	}
	attachment.LoadItem(extension.TypePropertyList, func(payload any, err error) {
		h.handlePayload(ectx, payload, err)
	})
}

func (h *Handler) handlePayload(ectx extension.Context, payload any, loadErr error) {
	if loadErr != nil {
		h.fail(ectx, fmt.Errorf("%w: load payload: %v", ErrInvalidRequest, loadErr))
		return
	}
	request, ok := asMapping(payload)
	if !ok {
		h.fail(ectx, fmt.Errorf("%w: payload is %T, not a mapping", ErrInvalidRequest, payload))
		return
	}
	if kind, _ := request[KeyType].(string); kind != RequestTypeStartGame {
		h.fail(ectx, fmt.Errorf("%w: %q", ErrUnknownRequest, kind))
		return
	}

	h.setState(StateValidating)
	req, err := ParseStartSessionRequest(request)
	if err != nil {
		h.fail(ectx, err)
		return
	}

	h.setState(StateBridging)
	ch, err := h.establish.Establish(h.ctx, req)
	if err != nil {
		h.fail(ectx, err)
		return
	}

	h.mu.Lock()
	h.state = StateConnected
	h.channel = ch
	h.mu.Unlock()
	ectx.CompleteRequest()
	observability.RecordRequest(OutcomeCompleted)
	h.finish(nil)
}

func (h *Handler) fail(ectx extension.Context, err error) {
	kind := ErrorKind(err)
	h.logger.Warn().Err(err).Str("kind", kind).Msg("request failed")
	h.setState(StateFailed)
	ectx.CancelRequest(err)
	observability.RecordRequest(kind)
	h.finish(err)
}

func (h *Handler) finish(err error) {
	h.mu.Lock()
	h.state = StateCompleted
	h.err = err
	h.mu.Unlock()
	close(h.done)
}

func (h *Handler) setState(s State) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}

func (h *Handler) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Channel returns the live channel once the request completed normally.
func (h *Handler) Channel() *rpc.Channel {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.channel
}

// Err returns the error the request was cancelled with.
func (h *Handler) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Done is closed when the request reaches StateCompleted.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}
