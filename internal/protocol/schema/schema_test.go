package schema

import (
	"testing"

	"github.com/danmuck/deltaxpc/internal/protocol/tlv"
	"github.com/danmuck/deltaxpc/internal/testutil/testlog"
)

func TestValidateCallRequiredFields(t *testing.T) {
	testlog.Start(t)
	fields := []tlv.Field{
		tlv.U64(FieldTarget, 1),
		tlv.String(FieldMethod, "startProcess"),
	}
	if err := Validate(MsgCall, fields); err != nil {
		t.Fatalf("validate call: %v", err)
	}
}

func TestValidateUnknownFieldsIgnored(t *testing.T) {
	testlog.Start(t)
	fields := []tlv.Field{
		tlv.U64(FieldTarget, 1),
		tlv.String(FieldMethod, "ping"),
		{ID: 9999, Type: tlv.TypeBytes, Value: []byte{0x01}},
	}
	if err := Validate(MsgCall, fields); err != nil {
		t.Fatalf("validate with unknown field: %v", err)
	}
}

func TestValidateMissingRequiredDeterministic(t *testing.T) {
	testlog.Start(t)
	fields := []tlv.Field{tlv.U64(FieldTarget, 1)}
	err := Validate(MsgCall, fields)
	if err == nil {
		t.Fatalf("expected error")
	}
	ve, ok := err.(ValidationError)
	if !ok {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if ve.FieldID != FieldMethod || ve.Reason != "missing required field" {
		t.Fatalf("unexpected validation error: %+v", ve)
	}
}

func TestValidateTypeMismatchDeterministic(t *testing.T) {
	testlog.Start(t)
	fields := []tlv.Field{
		tlv.U32(FieldTarget, 1),
		tlv.String(FieldMethod, "ping"),
	}
	err := Validate(MsgCall, fields)
	ve, ok := err.(ValidationError)
	if !ok {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if ve.FieldID != FieldTarget || ve.Reason != "type mismatch" {
		t.Fatalf("unexpected validation error: %+v", ve)
	}
}

func TestValidateFaultRequiredFields(t *testing.T) {
	testlog.Start(t)
	fields := []tlv.Field{tlv.String(FieldFaultCode, FaultUnknownMethod)}
	err := Validate(MsgFault, fields)
	ve, ok := err.(ValidationError)
	if !ok {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if ve.FieldID != FieldFaultMessage {
		t.Fatalf("unexpected validation error: %+v", ve)
	}
}

func TestValidateUnknownMessageType(t *testing.T) {
	testlog.Start(t)
	err := Validate(99, nil)
	ve, ok := err.(ValidationError)
	if !ok || ve.Reason != "unknown message_type" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestArgFieldRange(t *testing.T) {
	testlog.Start(t)
	if idx, ok := IsArgField(ArgFieldID(3)); !ok || idx != 3 {
		t.Fatalf("unexpected arg index=%d ok=%v", idx, ok)
	}
	if _, ok := IsArgField(FieldMethod); ok {
		t.Fatalf("method field is not an argument")
	}
	if _, ok := IsArgField(FieldArgBase + uint16(MaxArgs)); ok {
		t.Fatalf("argument index beyond MaxArgs accepted")
	}
}
