package notify

import (
	"bytes"
	"context"
	"errors"
	"image"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/retry"

	"github.com/aliskhannn/photo-blur/internal/permission"
)

type posterMock struct {
	posted []Notification
	err    error
}

func (m *posterMock) Post(ctx context.Context, n Notification) error {
	m.posted = append(m.posted, n)
	return m.err
}

type exposerMock struct {
	uri string
	err error
}

func (m *exposerMock) Expose(ctx context.Context, path string) (string, error) {
	return m.uri, m.err
}

func TestNotifyBlurredWithoutPermission(t *testing.T) {
	p := &posterMock{}
	n := NewPresenter(p, &exposerMock{uri: "http://x"}, permission.NewGrants("camera"), "")

	n.NotifyBlurred(context.Background(), "/cache/blurred_image.png", nil)

	require.Empty(t, p.posted)
}

func TestNotifyBlurred(t *testing.T) {
	p := &posterMock{}
	n := NewPresenter(p, &exposerMock{uri: "http://localhost:8080/api/cache/blurred_image.png"}, permission.NewGrants("notifications"), "")

	n.NotifyBlurred(context.Background(), "/cache/blurred_image.png", nil)

	require.Len(t, p.posted, 1)
	got := p.posted[0]
	require.Equal(t, NotificationID, got.ID)
	require.Equal(t, ChannelID, got.ChannelID)
	require.Equal(t, Title, got.Title)
	require.Equal(t, DefaultMessage, got.Body)
	require.Equal(t, PriorityHigh, got.Priority)
	require.NotNil(t, got.Action)
	require.Equal(t, ActionViewImage, got.Action.Label)
	require.Equal(t, "image/*", got.Action.MIMEType)
	require.True(t, got.Action.GrantRead)
	require.Equal(t, "http://localhost:8080/api/cache/blurred_image.png", got.Action.URI)
	require.Empty(t, got.Preview)
}

func TestNotifyBlurredPosterErrorIsSwallowed(t *testing.T) {
	p := &posterMock{err: errors.New("queue down")}
	n := NewPresenter(p, nil, permission.NewGrants("notifications"), "done")

	require.NotPanics(t, func() {
		n.NotifyBlurred(context.Background(), "/cache/blurred_image.png", nil)
	})
	require.Len(t, p.posted, 1)
	require.Equal(t, "done", p.posted[0].Body)
	require.Nil(t, p.posted[0].Action)
}

func TestBuildWithoutActionWhenExposeFails(t *testing.T) {
	n := NewPresenter(&posterMock{}, &exposerMock{err: ErrNotExposable}, permission.NewGrants(), "")

	got := n.Build(context.Background(), "/elsewhere/blurred_image.png", nil)
	require.Nil(t, got.Action)
	require.Equal(t, Title, got.Title)
}

func TestBuildAttachesPreview(t *testing.T) {
	n := NewPresenter(&posterMock{}, nil, permission.NewGrants(), "")

	got := n.Build(context.Background(), "/cache/blurred_image.png", imaging.New(1000, 500, image.White))
	require.NotEmpty(t, got.Preview)

	preview, err := imaging.Decode(bytes.NewReader(got.Preview))
	require.NoError(t, err)
	require.Equal(t, 256, preview.Bounds().Dx())
	require.Equal(t, 128, preview.Bounds().Dy())
}

func TestHTTPExposer(t *testing.T) {
	e := NewHTTPExposer("http://localhost:8080/", "/var/cache/photo-blur")

	uri, err := e.Expose(context.Background(), "/var/cache/photo-blur/blurred_image.png")
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8080/api/cache/blurred_image.png", uri)

	_, err = e.Expose(context.Background(), "/etc/passwd")
	require.ErrorIs(t, err, ErrNotExposable)
}

type objectStorageMock struct {
	saved      map[string][]byte
	failures   int
	presignErr error
}

func (m *objectStorageMock) Save(ctx context.Context, subdir, filename string, src io.Reader, size int64, contentType string) (string, error) {
	if m.failures > 0 {
		m.failures--
		return "", errors.New("minio unavailable")
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return "", err
	}
	name := subdir + "/" + filename
	m.saved[name] = data
	return name, nil
}

func (m *objectStorageMock) PresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	if m.presignErr != nil {
		return "", m.presignErr
	}
	return "https://minio.local/photos/" + objectName + "?X-Amz-Expires=" + expiry.String(), nil
}

func TestObjectExposerRetriesUpload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blurred_image.png")
	require.NoError(t, os.WriteFile(path, []byte("png"), 0o600))

	store := &objectStorageMock{saved: map[string][]byte{}, failures: 1}
	e := NewObjectExposer(store, time.Hour, retry.Strategy{Attempts: 3, Delay: time.Millisecond, Backoff: 1})

	uri, err := e.Expose(context.Background(), path)
	require.NoError(t, err)
	require.Contains(t, uri, "blurred_image.png")
	require.Contains(t, uri, "blurred/")
	require.Len(t, store.saved, 1)
	for _, data := range store.saved {
		require.Equal(t, "png", string(data))
	}
}

func (m *objectStorageMock) Delete(ctx context.Context, objectName string) error {
	delete(m.saved, objectName)
	return nil
}

func TestObjectExposerDropsUnsignedObject(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blurred_image.png")
	require.NoError(t, os.WriteFile(path, []byte("png"), 0o600))

	store := &objectStorageMock{saved: map[string][]byte{}, presignErr: errors.New("no credentials")}
	e := NewObjectExposer(store, time.Hour, retry.Strategy{Attempts: 1})

	_, err := e.Expose(context.Background(), path)
	require.Error(t, err)
	require.Empty(t, store.saved)
}

func TestObjectExposerMissingFile(t *testing.T) {
	store := &objectStorageMock{saved: map[string][]byte{}}
	e := NewObjectExposer(store, time.Hour, retry.Strategy{Attempts: 1})

	_, err := e.Expose(context.Background(), filepath.Join(t.TempDir(), "missing.png"))
	require.Error(t, err)
	require.Empty(t, store.saved)
}

type producerMock struct {
	key []byte
	v   any
}

func (m *producerMock) Produce(ctx context.Context, key []byte, v any) error {
	m.key, m.v = key, v
	return nil
}

func TestQueuePoster(t *testing.T) {
	p := &producerMock{}
	n := Notification{ID: NotificationID, Title: Title}

	require.NoError(t, NewQueuePoster(p).Post(context.Background(), n))
	require.Equal(t, "1", string(p.key))
	require.Equal(t, n, p.v)
}

func TestLogPoster(t *testing.T) {
	require.NoError(t, LogPoster{}.Post(context.Background(), Notification{Action: &Action{Label: ActionViewImage}}))
}
