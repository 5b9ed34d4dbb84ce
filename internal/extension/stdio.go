package extension

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/danmuck/deltaxpc/internal/logging"
)

const (
	envelopeInvoke   = "extension.invoke"
	envelopeComplete = "extension.complete"
	envelopeCancel   = "extension.cancel"

	maxEnvelopeLine = 128 * 1024
)

var (
	ErrInvalidEnvelope  = errors.New("extension: invalid envelope")
	ErrEnvelopeTooLarge = errors.New("extension: envelope too large")
	ErrAlreadyFinished  = errors.New("extension: request already finished")
)

type wireAttachment struct {
	TypeIdentifier string `json:"type_identifier"`
	Payload        any    `json:"payload"`
}

type wireItem struct {
	Attachments []wireAttachment `json:"attachments"`
}

// OutcomeError is the error carried by a cancel envelope.
type OutcomeError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (e *OutcomeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Outcome is how an invocation finished.
type Outcome struct {
	Completed bool
	Error     *OutcomeError
}

type envelope struct {
	Type  string        `json:"type"`
	Items []wireItem    `json:"items,omitempty"`
	Error *OutcomeError `json:"error,omitempty"`
}

// WriteInvocation writes the invoke envelope. Payloads must be JSON
// serializable; attachments other than PayloadAttachment are rejected.
func WriteInvocation(w io.Writer, items []Item) error {
	wire := make([]wireItem, 0, len(items))
	for _, item := range items {
		wi := wireItem{}
		for _, a := range item.Attachments {
			pa, ok := a.(PayloadAttachment)
			if !ok {
				return fmt.Errorf("%w: attachment %T is not serializable", ErrInvalidEnvelope, a)
			}
			wi.Attachments = append(wi.Attachments, wireAttachment{TypeIdentifier: pa.TypeIdentifier, Payload: pa.Payload})
		}
		wire = append(wire, wi)
	}
	return writeEnvelope(w, envelope{Type: envelopeInvoke, Items: wire})
}

// ReadInvocation reads one invoke envelope.
func ReadInvocation(r *bufio.Reader) ([]Item, error) {
	env, err := readEnvelope(r)
	if err != nil {
		return nil, err
	}
	if env.Type != envelopeInvoke {
		return nil, fmt.Errorf("%w: unexpected type %q", ErrInvalidEnvelope, env.Type)
	}
	items := make([]Item, 0, len(env.Items))
	for _, wi := range env.Items {
		item := Item{}
		for _, wa := range wi.Attachments {
			if strings.TrimSpace(wa.TypeIdentifier) == "" {
				return nil, fmt.Errorf("%w: attachment without type_identifier", ErrInvalidEnvelope)
			}
			item.Attachments = append(item.Attachments, PayloadAttachment{TypeIdentifier: wa.TypeIdentifier, Payload: wa.Payload})
		}
		items = append(items, item)
	}
	return items, nil
}

// ReadOutcome reads the complete or cancel envelope written by a worker.
func ReadOutcome(r *bufio.Reader) (Outcome, error) {
	env, err := readEnvelope(r)
	if err != nil {
		return Outcome{}, err
	}
	switch env.Type {
	case envelopeComplete:
		return Outcome{Completed: true}, nil
	case envelopeCancel:
		if env.Error == nil || strings.TrimSpace(env.Error.Kind) == "" {
			return Outcome{}, fmt.Errorf("%w: cancel without error kind", ErrInvalidEnvelope)
		}
		return Outcome{Error: env.Error}, nil
	default:
		return Outcome{}, fmt.Errorf("%w: unexpected type %q", ErrInvalidEnvelope, env.Type)
	}
}

// StdioContext is a Context backed by newline-delimited JSON. It writes
// exactly one outcome envelope.
type StdioContext struct {
	items    []Item
	out      io.Writer
	classify func(error) string

	mu       sync.Mutex
	finished bool
	err      error
	done     chan struct{}
}

// NewStdioContext wraps decoded items. classify maps a cancellation error
// to its wire kind.
func NewStdioContext(items []Item, out io.Writer, classify func(error) string) *StdioContext {
	return &StdioContext{items: items, out: out, classify: classify, done: make(chan struct{})}
}

func (c *StdioContext) InputItems() []Item {
	return c.items
}

func (c *StdioContext) CompleteRequest() {
	c.report(c.finish(nil))
}

func (c *StdioContext) CancelRequest(err error) {
	if err == nil {
		err = errors.New("cancelled")
	}
	c.report(c.finish(err))
}

func (c *StdioContext) report(err error) {
	if err == nil {
		return
	}
	logger := logging.Component("extension")
	logger.Warn().Err(err).Msg("outcome not written")
}

// Done is closed once the outcome has been written.
func (c *StdioContext) Done() <-chan struct{} {
	return c.done
}

// Err returns the cancellation error, or nil after a completion.
func (c *StdioContext) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *StdioContext) finish(err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finished {
		return ErrAlreadyFinished
	}
	c.finished = true
	c.err = err
	defer close(c.done)

	env := envelope{Type: envelopeComplete}
	if err != nil {
		kind := "error"
		if c.classify != nil {
			kind = c.classify(err)
		}
		env = envelope{Type: envelopeCancel, Error: &OutcomeError{Kind: kind, Message: err.Error()}}
	}
	return writeEnvelope(c.out, env)
}

func writeEnvelope(w io.Writer, env envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	payload = append(payload, '\n')
	_, err = w.Write(payload)
	return err
}

func readEnvelope(r *bufio.Reader) (envelope, error) {
	line, err := readLine(r, maxEnvelopeLine)
	if err != nil && !(errors.Is(err, io.EOF) && len(line) > 0) {
		return envelope{}, err
	}
	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return envelope{}, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	return env, nil
}

// readLine reads up to and including '\n', failing as soon as more than
// limit bytes have been consumed.
func readLine(r *bufio.Reader, limit int) ([]byte, error) {
	var line []byte
	for {
		chunk, err := r.ReadSlice('\n')
		if len(line)+len(chunk) > limit {
			return nil, ErrEnvelopeTooLarge
		}
		line = append(line, chunk...)
		if !errors.Is(err, bufio.ErrBufferFull) {
			return line, err
		}
	}
}
