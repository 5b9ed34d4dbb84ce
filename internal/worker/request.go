package worker

import (
	"fmt"
	"reflect"

	"github.com/danmuck/deltaxpc/internal/core"
	"github.com/danmuck/deltaxpc/internal/endpoint"
	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
)

// Request payload keys and the one recognized request type.
const (
	KeyType     = "type"
	KeyGameType = "gameType"
	KeyEndpoint = "endpoint"

	RequestTypeStartGame = "start-game"
)

var validate = validator.New()

// StartSessionRequest is the validated start-game request.
type StartSessionRequest struct {
	GameType core.GameType       `mapstructure:"gameType" validate:"required"`
	Endpoint endpoint.Descriptor `mapstructure:"endpoint" validate:"required"`
}

// asMapping accepts any string-keyed map as a request payload.
func asMapping(payload any) (map[string]any, bool) {
	if m, ok := payload.(map[string]any); ok {
		return m, true
	}
	v := reflect.ValueOf(payload)
	if v.Kind() != reflect.Map || v.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, v.Len())
	if err := mapstructure.Decode(payload, &out); err != nil {
		return nil, false
	}
	return out, true
}

// ParseStartSessionRequest extracts gameType and endpoint from payload.
// It performs no I/O and returns the same error kind for the same input.
func ParseStartSessionRequest(payload map[string]any) (StartSessionRequest, error) {
	var req StartSessionRequest
	for _, key := range []string{KeyGameType, KeyEndpoint} {
		if _, ok := payload[key]; !ok {
			return StartSessionRequest{}, fmt.Errorf("%w: missing %s", ErrInvalidRequest, key)
		}
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &req,
		WeaklyTypedInput: false,
	})
	if err != nil {
		return StartSessionRequest{}, err
	}
	if err := dec.Decode(payload); err != nil {
		return StartSessionRequest{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := validate.Struct(req); err != nil {
		return StartSessionRequest{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return req, nil
}

// StartGamePayload builds the payload ParseStartSessionRequest accepts.
func StartGamePayload(gameType core.GameType, desc endpoint.Descriptor) map[string]any {
	return map[string]any{
		KeyType:     RequestTypeStartGame,
		KeyGameType: string(gameType),
		KeyEndpoint: desc.Map(),
	}
}
