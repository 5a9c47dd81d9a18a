package failure

import (
	"net/http"
	"testing"

	"github.com/pkg/errors"
)

func TestStatusCode(t *testing.T) {
	testCases := []struct {
		Name     string
		Err      error
		Expected int
	}{
		{Name: "invalid input", Err: InvalidInput("missing file"), Expected: http.StatusBadRequest},
		{Name: "invalid state", Err: InvalidState("job %d is terminal", 3), Expected: http.StatusBadRequest},
		{Name: "conflict", Err: Conflict("dataset '%s' already exists", "sales"), Expected: http.StatusConflict},
		{Name: "not found", Err: errors.WithStack(NotFound("job %d", 1)), Expected: http.StatusNotFound},
		{Name: "integrity", Err: Integrity("tampered or corrupted"), Expected: http.StatusInternalServerError},
		{Name: "upstream", Err: UpstreamUnavailable(errors.New("dial tcp: refused"), "docker daemon"), Expected: http.StatusServiceUnavailable},
		{Name: "internal", Err: errors.New("boom"), Expected: http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			if got := StatusCode(tc.Err); got != tc.Expected {
				t.Errorf("expected status %d, got %d", tc.Expected, got)
			}
		})
	}
}

func TestUpstreamUnavailableKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := UpstreamUnavailable(cause, "could not list images")

	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatal("expected error to match ErrUpstreamUnavailable")
	}

	if !errors.Is(err, cause) {
		t.Fatal("expected error to match its cause")
	}
}
