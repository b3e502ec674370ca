package bridge

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-mdsync/internal/controller"
	"github.com/goliatone/go-mdsync/internal/history"
	"github.com/goliatone/go-mdsync/internal/ops"
	"github.com/goliatone/go-mdsync/internal/view"
)

// Inbound message types.
const (
	TypeOperation      = "operation"
	TypeUndo           = "undo"
	TypeRedo           = "redo"
	TypeExternalChange = "external_change"
	TypeSnapshot       = "snapshot"
)

// Outbound message types.
const (
	TypeDelta = "delta"
	TypeError = "error"
	TypeAck   = "ack"
)

// Inbound is a message sent by a presentation surface.
type Inbound struct {
	Type        string             `json:"type"`
	RequestID   string             `json:"request_id,omitempty"`
	BaseVersion int64              `json:"base_version,omitempty"`
	Operation   *ops.Operation     `json:"operation,omitempty"`
	Selection   *history.Selection `json:"selection,omitempty"`
	Text        string             `json:"text,omitempty"`
}

// Outbound is a message sent to presentation surfaces.
type Outbound struct {
	Type      string        `json:"type"`
	RequestID string        `json:"request_id,omitempty"`
	Version   int64         `json:"version"`
	Delta     *view.Delta   `json:"delta,omitempty"`
	Model     *view.Model   `json:"model,omitempty"`
	Error     *ErrorPayload `json:"error,omitempty"`
}

// ErrorPayload describes a rejected request or a controller failure.
type ErrorPayload struct {
	Kind     controller.ErrorKind `json:"kind,omitempty"`
	Category string               `json:"category,omitempty"`
	Code     string               `json:"code,omitempty"`
	Message  string               `json:"message"`
	Issues   []Issue              `json:"issues,omitempty"`
}

func errorPayload(err error) *ErrorPayload {
	payload := &ErrorPayload{Message: err.Error()}
	if kind := controller.KindOf(err); kind != controller.ErrorInternal {
		payload.Kind = kind
	}
	var categorised *goerrors.Error
	if errors.As(err, &categorised) {
		payload.Category = categorised.Category.String()
		payload.Code = categorised.TextCode
		payload.Message = categorised.Message
	}
	var envelope *EnvelopeError
	if errors.As(err, &envelope) {
		payload.Category = goerrors.CategoryValidation.String()
		payload.Code = "ENVELOPE_INVALID"
		payload.Issues = envelope.Issues
	}
	if payload.Kind == "" && payload.Category == "" {
		payload.Kind = controller.ErrorInternal
	}
	return payload
}
