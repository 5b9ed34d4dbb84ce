package schema

import (
	"fmt"

	"github.com/danmuck/deltaxpc/internal/protocol/tlv"
	"github.com/rs/zerolog/log"
)

// Message type IDs from tlv contract.
const (
	MsgCall  uint32 = 1
	MsgReply uint32 = 2
	MsgFault uint32 = 3
)

// Field IDs from tlv contract.
const (
	FieldTarget uint16 = 1
	FieldMethod uint16 = 2

	FieldFaultCode    uint16 = 10
	FieldFaultMessage uint16 = 11

	// FieldArgBase is the id of argument 0; argument i uses FieldArgBase+i.
	FieldArgBase uint16 = 1000
	MaxArgs      int    = 64
)

// Fault codes carried in FieldFaultCode.
const (
	FaultUnknownObject = "unknown_object"
	FaultUnknownMethod = "unknown_method"
	FaultBadArguments  = "bad_arguments"
	FaultHandler       = "handler_error"
)

type Requirement struct {
	ID   uint16
	Type uint8
}

type ValidationError struct {
	MessageType uint32
	FieldID     uint16
	Reason      string
}

func (e ValidationError) Error() string {
	if e.FieldID == 0 {
		return fmt.Sprintf("schema: message_type=%d: %s", e.MessageType, e.Reason)
	}
	return fmt.Sprintf("schema: message_type=%d field=%d: %s", e.MessageType, e.FieldID, e.Reason)
}

var requirements = map[uint32][]Requirement{
	MsgCall: {
		{FieldTarget, tlv.TypeU64},
		{FieldMethod, tlv.TypeString},
	},
	MsgReply: {},
	MsgFault: {
		{FieldFaultCode, tlv.TypeString},
		{FieldFaultMessage, tlv.TypeString},
	},
}

// Validate enforces required fields and required field types for a message type.
// Unknown fields are ignored.
func Validate(messageType uint32, fields []tlv.Field) error {
	reqs, ok := requirements[messageType]
	if !ok {
		log.Error().Uint32("message_type", messageType).Msg("schema.Validate unknown message_type")
		return ValidationError{MessageType: messageType, Reason: "unknown message_type"}
	}
	for _, req := range reqs {
		f, found := tlv.GetField(fields, req.ID)
		if !found {
			log.Error().
				Uint32("message_type", messageType).
				Uint16("field_id", req.ID).
				Msg("schema.Validate missing field")
			return ValidationError{MessageType: messageType, FieldID: req.ID, Reason: "missing required field"}
		}
		if f.Type != req.Type {
			log.Error().
				Uint32("message_type", messageType).
				Uint16("field_id", req.ID).
				Uint8("got", f.Type).
				Uint8("want", req.Type).
				Msg("schema.Validate type mismatch")
			return ValidationError{MessageType: messageType, FieldID: req.ID, Reason: "type mismatch"}
		}
	}
	return nil
}

// ArgFieldID returns the field id for argument index i.
func ArgFieldID(i int) uint16 {
	return FieldArgBase + uint16(i)
}

// IsArgField reports whether id is in the argument range and returns its index.
func IsArgField(id uint16) (int, bool) {
	if id < FieldArgBase {
		return 0, false
	}
	idx := int(id - FieldArgBase)
	if idx >= MaxArgs {
		return 0, false
	}
	return idx, true
}
