package endpoint

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var (
	ErrInvalidDescriptor = errors.New("endpoint: invalid descriptor")
	ErrRejected          = errors.New("endpoint: hello rejected")
	ErrConsumed          = errors.New("endpoint: listener already consumed")
)

const (
	NetworkUnix = "unix"
	NetworkTCP  = "tcp"
)

var validate = validator.New()

// Descriptor names one not-yet-connected side of a channel. It is created
// by the main process, travels by value inside the start-game request and
// is dialed exactly once by the worker.
type Descriptor struct {
	Network string `json:"network" mapstructure:"network" validate:"required,oneof=unix tcp"`
	Address string `json:"address" mapstructure:"address" validate:"required"`
	Token   string `json:"token" mapstructure:"token" validate:"required,uuid"`
}

func (d Descriptor) Validate() error {
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDescriptor, err)
	}
	return nil
}

// Map renders d as the key/value shape embedded in request payloads.
func (d Descriptor) Map() map[string]any {
	return map[string]any{
		"network": d.Network,
		"address": d.Address,
		"token":   d.Token,
	}
}

func (d Descriptor) String() string {
	return d.Network + "://" + d.Address
}
