package extension

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/deltaxpc/internal/testutil/testlog"
	"github.com/google/go-cmp/cmp"
)

func TestPayloadAttachmentLoadsAsync(t *testing.T) {
	testlog.Start(t)
	a := PayloadAttachment{TypeIdentifier: TypePropertyList, Payload: map[string]any{"type": "start-game"}}
	if !a.HasItemConformingTo(TypePropertyList) || a.HasItemConformingTo("public.data") {
		t.Fatalf("unexpected conformance")
	}

	type loaded struct {
		payload any
		err     error
	}
	out := make(chan loaded, 2)
	a.LoadItem(TypePropertyList, func(p any, err error) { out <- loaded{p, err} })
	a.LoadItem("public.data", func(p any, err error) { out <- loaded{p, err} })

	results := map[bool]loaded{}
	for i := 0; i < 2; i++ {
		select {
		case r := <-out:
			results[r.err == nil] = r
		case <-time.After(time.Second):
			t.Fatalf("load did not complete")
		}
	}
	if diff := cmp.Diff(map[string]any{"type": "start-game"}, results[true].payload); diff != "" {
		t.Fatalf("payload mismatch (-want +got):\n%s", diff)
	}
	if !errors.Is(results[false].err, ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch, got %v", results[false].err)
	}
}

func TestInvocationRoundTrip(t *testing.T) {
	testlog.Start(t)
	payload := map[string]any{
		"type":     "start-game",
		"gameType": "com.rileytestut.delta.game.nes",
		"endpoint": map[string]any{"network": "unix", "address": "/tmp/x.sock", "token": "t"},
	}
	var buf bytes.Buffer
	err := WriteInvocation(&buf, []Item{{Attachments: []Attachment{
		PayloadAttachment{TypeIdentifier: TypePropertyList, Payload: payload},
	}}})
	if err != nil {
		t.Fatalf("write invocation: %v", err)
	}
	items, err := ReadInvocation(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("read invocation: %v", err)
	}
	if len(items) != 1 || len(items[0].Attachments) != 1 {
		t.Fatalf("unexpected items: %+v", items)
	}
	got := items[0].Attachments[0].(PayloadAttachment)
	if got.TypeIdentifier != TypePropertyList {
		t.Fatalf("type identifier: %q", got.TypeIdentifier)
	}
	if diff := cmp.Diff(payload, got.Payload); diff != "" {
		t.Fatalf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestReadInvocationRejectsBadInput(t *testing.T) {
	testlog.Start(t)
	cases := []string{
		"not json\n",
		`{"type":"extension.complete"}` + "\n",
		`{"type":"extension.invoke","items":[{"attachments":[{"payload":{}}]}]}` + "\n",
	}
	for i, raw := range cases {
		if _, err := ReadInvocation(bufio.NewReader(strings.NewReader(raw))); !errors.Is(err, ErrInvalidEnvelope) {
			t.Fatalf("case %d expected ErrInvalidEnvelope, got %v", i, err)
		}
	}
	big := `{"type":"extension.invoke","pad":"` + strings.Repeat("x", maxEnvelopeLine) + `"}` + "\n"
	if _, err := ReadInvocation(bufio.NewReader(strings.NewReader(big))); !errors.Is(err, ErrEnvelopeTooLarge) {
		t.Fatalf("expected ErrEnvelopeTooLarge, got %v", err)
	}
}

func TestStdioContextCompletesOnce(t *testing.T) {
	testlog.Start(t)
	var buf bytes.Buffer
	ctx := NewStdioContext(nil, &buf, nil)
	ctx.CompleteRequest()
	ctx.CancelRequest(errors.New("late"))

	select {
	case <-ctx.Done():
	default:
		t.Fatalf("expected done")
	}
	if ctx.Err() != nil {
		t.Fatalf("expected nil err after completion, got %v", ctx.Err())
	}
	r := bufio.NewReader(&buf)
	out, err := ReadOutcome(r)
	if err != nil || !out.Completed {
		t.Fatalf("unexpected outcome: %+v err=%v", out, err)
	}
	if _, err := ReadOutcome(r); err == nil {
		t.Fatalf("expected a single outcome envelope")
	}
}

func TestStdioContextCancelCarriesKind(t *testing.T) {
	testlog.Start(t)
	var buf bytes.Buffer
	cause := errors.New("bad payload")
	ctx := NewStdioContext(nil, &buf, func(err error) string { return "invalid_request" })
	ctx.CancelRequest(cause)

	if !errors.Is(ctx.Err(), cause) {
		t.Fatalf("expected cause, got %v", ctx.Err())
	}
	out, err := ReadOutcome(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("read outcome: %v", err)
	}
	want := &OutcomeError{Kind: "invalid_request", Message: "bad payload"}
	if diff := cmp.Diff(want, out.Error); diff != "" {
		t.Fatalf("outcome mismatch (-want +got):\n%s", diff)
	}
}

func TestFirstAttachment(t *testing.T) {
	testlog.Start(t)
	if _, ok := FirstAttachment(NewStdioContext(nil, &bytes.Buffer{}, nil)); ok {
		t.Fatalf("expected no attachment")
	}
	a := PayloadAttachment{TypeIdentifier: TypePropertyList}
	got, ok := FirstAttachment(NewStdioContext([]Item{{Attachments: []Attachment{a}}}, &bytes.Buffer{}, nil))
	if !ok || got != Attachment(a) {
		t.Fatalf("unexpected first attachment: %v ok=%v", got, ok)
	}
}

type endlessReader struct {
	read int
}

func (e *endlessReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 'x'
	}
	e.read += len(p)
	return len(p), nil
}

func TestReadInvocationStopsReadingUnterminatedLine(t *testing.T) {
	testlog.Start(t)
	src := &endlessReader{}
	if _, err := ReadInvocation(bufio.NewReaderSize(src, 4096)); !errors.Is(err, ErrEnvelopeTooLarge) {
		t.Fatalf("expected ErrEnvelopeTooLarge, got %v", err)
	}
	if src.read > maxEnvelopeLine+4096 {
		t.Fatalf("read %d bytes past limit %d", src.read, maxEnvelopeLine)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("stdout closed")
}

func TestStdioContextWriteFailureStillFinishes(t *testing.T) {
	testlog.Start(t)
	ctx := NewStdioContext(nil, failingWriter{}, nil)
	ctx.CancelRequest(errors.New("bad payload"))

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatalf("expected done after failed write")
	}
	if ctx.Err() == nil || ctx.Err().Error() != "bad payload" {
		t.Fatalf("expected cancellation error kept, got %v", ctx.Err())
	}
}
