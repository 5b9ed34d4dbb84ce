package auth

import (
	"errors"
	"testing"

	"github.com/danmuck/deltaxpc/internal/testutil/testlog"
	"github.com/rs/zerolog/log"
)

func TestEndpointTokenValidate(t *testing.T) {
	testlog.Start(t)
	tests := []struct {
		name    string
		stored  string
		input   string
		wantErr error
	}{
		{name: "empty token denied", stored: "", input: "", wantErr: ErrUnauthorized},
		{name: "blank token denied", stored: "  ", input: "  ", wantErr: ErrUnauthorized},
		{name: "mismatched token denied", stored: "7f0c", input: "7f0d", wantErr: ErrUnauthorized},
		{name: "prefix denied", stored: "7f0c", input: "7f", wantErr: ErrUnauthorized},
		{name: "matching token accepted", stored: "7f0c", input: "7f0c", wantErr: nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			log.Debug().Str("stored", tc.stored).Str("input", tc.input).Msg("auth/endpoint-token")
			err := (EndpointToken{Token: tc.stored}).Validate(tc.input)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected err %v, got %v", tc.wantErr, err)
			}
		})
	}
}
