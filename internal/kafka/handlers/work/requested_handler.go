package work

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/photo-blur/internal/model"
)

// ErrInvalidRequest is returned for messages that do not carry a usable
// work request.
var ErrInvalidRequest = errors.New("invalid work request")

// executor runs a work request to its terminal state.
type executor interface {
	Execute(ctx context.Context, req model.WorkRequest) model.WorkInfo
}

// RequestedHandler handles Kafka messages carrying blur work requests.
type RequestedHandler struct {
	executor executor
}

// NewRequestedHandler creates a new handler with the given executor.
func NewRequestedHandler(e executor) *RequestedHandler {
	return &RequestedHandler{executor: e}
}

// Handle unmarshals the work request and executes it once.
// A failed blur is a terminal state, not a handler error: the message is
// still committed and the user has to trigger the action again.
func (h *RequestedHandler) Handle(ctx context.Context, msg kafka.Message) error {
	var req model.WorkRequest
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		return fmt.Errorf("unmarshal work request: %w", err)
	}
	if req.ID == uuid.Nil {
		return fmt.Errorf("%w: missing id", ErrInvalidRequest)
	}

	info := h.executor.Execute(ctx, req)

	zlog.Logger.Info().
		Str("id", info.ID.String()).
		Str("state", string(info.State)).
		Msg("work request executed")

	return nil
}
