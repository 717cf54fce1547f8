package errcode_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/auricle-dev/auricle/internal/errcode"
	"github.com/auricle-dev/auricle/pkg/audio"
	"github.com/auricle-dev/auricle/pkg/realtime"
)

func TestFromError_Classification(t *testing.T) {
	t.Parallel()

	jsonErr := json.Unmarshal([]byte(`{not json`), &struct{}{})
	if jsonErr == nil {
		t.Fatal("expected a json syntax error")
	}

	cases := []struct {
		name        string
		err         error
		wantCode    errcode.Code
		recoverable bool
	}{
		{
			name:        "device error",
			err:         &audio.DeviceError{Op: "start", Err: errors.New("device gone")},
			wantCode:    errcode.DeviceError,
			recoverable: false,
		},
		{
			name:        "wrapped device error",
			err:         fmt.Errorf("capture: %w", &audio.DeviceError{Op: "read", Err: errors.New("xrun")}),
			wantCode:    errcode.DeviceError,
			recoverable: false,
		},
		{
			name:        "invalid api key",
			err:         fmt.Errorf("dial: %w", realtime.ErrInvalidAPIKey),
			wantCode:    errcode.InvalidAPIKey,
			recoverable: false,
		},
		{
			name:        "connection lost",
			err:         fmt.Errorf("%w: EOF", realtime.ErrConnectionLost),
			wantCode:    errcode.ConnectionLost,
			recoverable: true,
		},
		{
			name:        "session closed",
			err:         realtime.ErrSessionClosed,
			wantCode:    errcode.ConnectionLost,
			recoverable: true,
		},
		{
			name:        "deadline exceeded",
			err:         context.DeadlineExceeded,
			wantCode:    errcode.Timeout,
			recoverable: true,
		},
		{
			name:        "json syntax error",
			err:         jsonErr,
			wantCode:    errcode.InvalidJSON,
			recoverable: true,
		},
		{
			name:        "anything else",
			err:         errors.New("mystery"),
			wantCode:    errcode.UnknownError,
			recoverable: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rec := errcode.FromError(tc.err)
			if rec.Code != tc.wantCode {
				t.Errorf("code = %q; want %q", rec.Code, tc.wantCode)
			}
			if rec.Recoverable != tc.recoverable {
				t.Errorf("recoverable = %v; want %v", rec.Recoverable, tc.recoverable)
			}
			if rec.Message == "" {
				t.Error("message should not be empty")
			}
		})
	}
}

func TestFromError_Nil(t *testing.T) {
	t.Parallel()
	if rec := errcode.FromError(nil); rec.Code != "" {
		t.Errorf("FromError(nil) = %+v; want zero Record", rec)
	}
}

func TestFromServerEvent(t *testing.T) {
	t.Parallel()

	rec := errcode.FromServerEvent("session_expired", "maximum duration reached")
	if rec.Code != errcode.SessionExpired {
		t.Errorf("code = %q; want session_expired", rec.Code)
	}
	if !rec.Recoverable {
		t.Error("session_expired should be recoverable")
	}

	rec = errcode.FromServerEvent("rate_limit_exceeded", "slow down")
	if rec.Code != errcode.UnknownError {
		t.Errorf("code = %q; want unknown_error for unlisted server code", rec.Code)
	}
	if rec.Message != "slow down" {
		t.Errorf("message = %q; want server message preserved", rec.Message)
	}
}
