package docker

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/bornholm/trainyard/internal/slogx"
)

func TestDrainProgress(t *testing.T) {
	type testCase struct {
		Name        string
		Body        string
		ExpectError string
	}

	testCases := []testCase{
		{
			Name: "successful load",
			Body: `{"stream":"Loaded image: python:3.11\n"}` + "\n",
		},
		{
			Name:        "error detail",
			Body:        `{"stream":"step"}` + "\n" + `{"errorDetail":{"message":"invalid tar header"},"error":"invalid tar header"}`,
			ExpectError: "invalid tar header",
		},
		{
			Name: "empty stream",
			Body: "",
		},
		{
			Name:        "garbled stream",
			Body:        `{"stream":`,
			ExpectError: "unexpected EOF",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			err := drainProgress(strings.NewReader(tc.Body))
			if tc.ExpectError == "" {
				if err != nil {
					t.Fatalf("%+v", errors.WithStack(err))
				}
				return
			}

			if err == nil || !strings.Contains(err.Error(), tc.ExpectError) {
				t.Errorf("expected error containing %q, got %v", tc.ExpectError, err)
			}
		})
	}
}

func TestDaemonListImages(t *testing.T) {
	logger := slogx.NewTestLogger(t)

	daemon, err := NewDaemon(logger)
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	defer daemon.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := daemon.Ping(ctx); err != nil {
		t.Skipf("docker daemon not reachable: %v", err)
	}

	images, err := daemon.ListImages(ctx)
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	for _, img := range images {
		if img.ID == "" {
			t.Errorf("expected image id, got %+v", img)
		}
	}
}
