package session

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	controlTypeHello    = "channel.hello"
	controlTypeHelloAck = "channel.hello.ack"

	AckStatusAccepted = "accepted"
	AckStatusRejected = "rejected"

	// ProtocolVersion is the hello-level version, independent of frame.Version.
	ProtocolVersion = 1

	maxControlLine = 128 * 1024
)

var (
	ErrInvalidHello           = errors.New("session: invalid hello")
	ErrInvalidHelloAck        = errors.New("session: invalid hello ack")
	ErrControlMessageTooLarge = errors.New("session: control message too large")
)

// Hello is the worker->main-process channel-open payload.
type Hello struct {
	Token   string `json:"token"`
	Version int    `json:"version"`
	PID     int    `json:"pid"`
}

func (h Hello) Validate() error {
	if strings.TrimSpace(h.Token) == "" {
		return fmt.Errorf("%w: missing token", ErrInvalidHello)
	}
	if h.Version <= 0 {
		return fmt.Errorf("%w: missing version", ErrInvalidHello)
	}
	return nil
}

// HelloAck is the main-process->worker response.
type HelloAck struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	TimestampMS uint64 `json:"timestamp_ms"`
}

func (a HelloAck) Validate() error {
	status := strings.TrimSpace(a.Status)
	if status != AckStatusAccepted && status != AckStatusRejected {
		return fmt.Errorf("%w: invalid status", ErrInvalidHelloAck)
	}
	if a.TimestampMS == 0 {
		return fmt.Errorf("%w: missing timestamp_ms", ErrInvalidHelloAck)
	}
	return nil
}

type controlEnvelope struct {
	Type  string    `json:"type"`
	Hello *Hello    `json:"hello,omitempty"`
	Ack   *HelloAck `json:"hello_ack,omitempty"`
}

func WriteHello(w io.Writer, h Hello) error {
	if err := h.Validate(); err != nil {
		return err
	}
	return writeControlEnvelope(w, controlEnvelope{
		Type:  controlTypeHello,
		Hello: &h,
	})
}

func ReadHello(r *bufio.Reader) (Hello, error) {
	env, err := readControlEnvelope(r)
	if err != nil {
		return Hello{}, err
	}
	if env.Type != controlTypeHello || env.Hello == nil {
		return Hello{}, fmt.Errorf("%w: unexpected control type", ErrInvalidHello)
	}
	if err := env.Hello.Validate(); err != nil {
		return Hello{}, err
	}
	return *env.Hello, nil
}

func WriteHelloAck(w io.Writer, ack HelloAck) error {
	if err := ack.Validate(); err != nil {
		return err
	}
	return writeControlEnvelope(w, controlEnvelope{
		Type: controlTypeHelloAck,
		Ack:  &ack,
	})
}

func ReadHelloAck(r *bufio.Reader) (HelloAck, error) {
	env, err := readControlEnvelope(r)
	if err != nil {
		return HelloAck{}, err
	}
	if env.Type != controlTypeHelloAck || env.Ack == nil {
		return HelloAck{}, fmt.Errorf("%w: unexpected control type", ErrInvalidHelloAck)
	}
	if err := env.Ack.Validate(); err != nil {
		return HelloAck{}, err
	}
	return *env.Ack, nil
}

func writeControlEnvelope(w io.Writer, env controlEnvelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	payload = append(payload, '\n')
	if _, err := w.Write(payload); err != nil {
		return err
	}
	return nil
}

func readControlEnvelope(r *bufio.Reader) (controlEnvelope, error) {
	line, err := readControlLine(r)
	if err != nil {
		return controlEnvelope{}, err
	}
	var env controlEnvelope
	if err := json.Unmarshal(line, &env); err != nil {
		return controlEnvelope{}, err
	}
	return env, nil
}

func readControlLine(r *bufio.Reader) ([]byte, error) {
	var line []byte
	for {
		chunk, err := r.ReadSlice('\n')
		if len(line)+len(chunk) > maxControlLine {
			return nil, ErrControlMessageTooLarge
		}
		line = append(line, chunk...)
		switch {
		case err == nil:
			return line, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		default:
			return nil, err
		}
	}
}
