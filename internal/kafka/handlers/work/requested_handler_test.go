package work

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/aliskhannn/photo-blur/internal/model"
)

type executorMock struct {
	reqs []model.WorkRequest
}

func (m *executorMock) Execute(ctx context.Context, req model.WorkRequest) model.WorkInfo {
	m.reqs = append(m.reqs, req)
	return model.WorkInfo{ID: req.ID, State: model.StateFailed}
}

func TestHandleExecutesRequest(t *testing.T) {
	req := model.WorkRequest{
		ID:   uuid.New(),
		Tags: []string{model.TagImageBlur},
		Input: map[string]string{
			model.KeyImagePath:  "/cache/selected_image.png",
			model.KeyOutputPath: "/cache/blurred_image.png",
		},
	}
	data, err := json.Marshal(req)
	require.NoError(t, err)

	exec := &executorMock{}
	h := NewRequestedHandler(exec)

	// a failed task is still a handled message
	require.NoError(t, h.Handle(context.Background(), kafka.Message{Key: []byte(req.ID.String()), Value: data}))
	require.Len(t, exec.reqs, 1)
	require.Equal(t, req.ID, exec.reqs[0].ID)
	require.Equal(t, req.Input, exec.reqs[0].Input)
}

func TestHandleRejectsMalformedMessages(t *testing.T) {
	exec := &executorMock{}
	h := NewRequestedHandler(exec)

	require.Error(t, h.Handle(context.Background(), kafka.Message{Value: []byte("{not json")}))

	err := h.Handle(context.Background(), kafka.Message{Value: []byte(`{"input":{}}`)})
	require.ErrorIs(t, err, ErrInvalidRequest)

	require.Empty(t, exec.reqs)
}
