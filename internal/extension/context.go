// Package extension models the invocation a worker process is started
// with: a list of input items carrying typed attachments, and a context
// that is completed or cancelled exactly once.
package extension

import (
	"errors"
	"fmt"
)

// TypePropertyList identifies a key/value mapping payload.
const TypePropertyList = "public.property-list"

var ErrTypeMismatch = errors.New("extension: attachment does not conform to type")

// Context is one extension invocation.
type Context interface {
	InputItems() []Item
	CompleteRequest()
	CancelRequest(err error)
}

// Item is one input item of an invocation.
type Item struct {
	Attachments []Attachment
}

// Attachment is a lazily loaded typed payload. LoadItem is asynchronous and
// completion may run on another goroutine.
type Attachment interface {
	HasItemConformingTo(typeID string) bool
	LoadItem(typeID string, completion func(payload any, err error))
}

// PayloadAttachment is an in-memory attachment with a fixed payload.
type PayloadAttachment struct {
	TypeIdentifier string
	Payload        any
}

func (a PayloadAttachment) HasItemConformingTo(typeID string) bool {
	return a.TypeIdentifier == typeID
}

func (a PayloadAttachment) LoadItem(typeID string, completion func(payload any, err error)) {
	go func() {
		if !a.HasItemConformingTo(typeID) {
			completion(nil, fmt.Errorf("%w: have %q want %q", ErrTypeMismatch, a.TypeIdentifier, typeID))
			return
		}
		completion(a.Payload, nil)
	}()
}

// FirstAttachment returns the first attachment of the first item.
func FirstAttachment(ctx Context) (Attachment, bool) {
	items := ctx.InputItems()
	if len(items) == 0 || len(items[0].Attachments) == 0 {
		return nil, false
	}
	return items[0].Attachments[0], true
}
