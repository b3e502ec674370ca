package commands

import (
	"context"
	"errors"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type testMessage struct{}

func (testMessage) Type() string { return "mdsync.test.message" }

func (testMessage) Validate() error { return nil }

type invalidMessage struct{}

func (invalidMessage) Type() string { return "mdsync.test.invalid" }

func (invalidMessage) Validate() error {
	return validationError()
}

func validationError() error {
	return errors.New("invalid")
}

func TestHandlerExecuteSuccess(t *testing.T) {
	called := false
	h := NewHandler[testMessage](func(ctx context.Context, msg testMessage) error {
		called = true
		return nil
	})

	if err := h.Execute(context.Background(), testMessage{}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !called {
		t.Fatal("expected handler to be invoked")
	}
}

func TestHandlerValidationShortCircuitsExecution(t *testing.T) {
	called := false
	h := NewHandler[invalidMessage](func(ctx context.Context, msg invalidMessage) error {
		called = true
		return nil
	})

	err := h.Execute(context.Background(), invalidMessage{})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !goerrors.IsCategory(err, goerrors.CategoryValidation) {
		t.Fatalf("expected validation category, got %v", err)
	}
	if called {
		t.Fatal("expected handler not to run when validation fails")
	}
}

func TestHandlerContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	h := NewHandler[testMessage](func(ctx context.Context, msg testMessage) error {
		called = true
		return nil
	})

	err := h.Execute(ctx, testMessage{})
	if err == nil {
		t.Fatal("expected context cancellation error")
	}
	if !goerrors.IsCategory(err, goerrors.CategoryCommand) {
		t.Fatalf("expected command category, got %v", err)
	}
	if called {
		t.Fatal("expected handler not to run when context is cancelled")
	}
}

func TestHandlerWrapsExecutionError(t *testing.T) {
	execErr := errors.New("boom")
	h := NewHandler[testMessage](func(ctx context.Context, msg testMessage) error {
		return execErr
	})

	err := h.Execute(context.Background(), testMessage{})
	if err == nil {
		t.Fatal("expected wrapped execution error")
	}
	if !goerrors.IsCategory(err, goerrors.CategoryCommand) {
		t.Fatalf("expected command category, got %v", err)
	}
	if !goerrors.HasCategory(err, goerrors.CategoryCommand) {
		t.Fatalf("expected command category to propagate, got %v", err)
	}
}

func TestHandlerHonoursTimeoutOption(t *testing.T) {
	h := NewHandler[testMessage](func(ctx context.Context, msg testMessage) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(20 * time.Millisecond):
			return nil
		}
	}, WithTimeout[testMessage](10*time.Millisecond))

	err := h.Execute(context.Background(), testMessage{})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !goerrors.IsCategory(err, goerrors.CategoryCommand) {
		t.Fatalf("expected command category for timeout, got %v", err)
	}
}

func TestHandlerReportsTelemetry(t *testing.T) {
	var infos []TelemetryInfo
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	h := NewHandler[testMessage](func(ctx context.Context, msg testMessage) error {
		clock = clock.Add(3 * time.Millisecond)
		return nil
	},
		WithOperation[testMessage]("test.op"),
		WithClock[testMessage](func() time.Time { return clock }),
		WithMessageFields(func(testMessage) map[string]any { return map[string]any{"request_id": "r1"} }),
		WithTelemetry(func(_ context.Context, _ testMessage, info TelemetryInfo) { infos = append(infos, info) }),
	)

	if err := h.Execute(context.Background(), testMessage{}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("expected one telemetry call, got %d", len(infos))
	}
	info := infos[0]
	if info.Status != TelemetryStatusSuccess || info.Duration != 3*time.Millisecond {
		t.Fatalf("unexpected telemetry %+v", info)
	}
	if info.Command != "mdsync.test.message" || info.Operation != "test.op" || info.Fields["request_id"] != "r1" {
		t.Fatalf("unexpected telemetry fields %+v", info)
	}
}

func TestTagKeepsExistingCategory(t *testing.T) {
	tagged := Tag(errors.New("stale"), goerrors.CategoryConflict, "operation is stale", "STALE")
	again := wrapExecuteError(tagged)
	if !goerrors.IsCategory(again, goerrors.CategoryConflict) {
		t.Fatalf("expected conflict category to survive, got %v", again)
	}
	if !Recoverable(again) {
		t.Fatal("expected conflicts to be recoverable")
	}
	if Recoverable(wrapExecuteError(errors.New("boom"))) {
		t.Fatal("expected command failures to be unrecoverable")
	}
}
