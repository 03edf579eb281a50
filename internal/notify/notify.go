package notify

import (
	"bytes"
	"context"
	"image"
	"time"

	"github.com/disintegration/imaging"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/photo-blur/internal/permission"
)

// Fixed parts of the "photo blurred" notification.
const (
	NotificationID  = 1
	ChannelID       = "1"
	ChannelName     = "BlurImageNotice"
	Title           = "照片模糊"
	DefaultMessage  = "你的照片已經模糊完畢"
	ActionViewImage = "View Image"
	PriorityHigh    = "high"

	defaultPreviewSize = 256
)

// Action is a tap target attached to a notification.
type Action struct {
	Label     string `json:"label"`
	URI       string `json:"uri"`
	MIMEType  string `json:"mime_type"`
	GrantRead bool   `json:"grant_read"` // viewer gets read access to URI
}

// Notification is a one-shot message shown to the user.
type Notification struct {
	ID          int       `json:"id"`
	ChannelID   string    `json:"channel_id"`
	ChannelName string    `json:"channel_name"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Priority    string    `json:"priority"`
	Action      *Action   `json:"action,omitempty"`
	Preview     []byte    `json:"preview,omitempty"` // PNG thumbnail of the result
	PostedAt    time.Time `json:"posted_at"`
}

// poster displays a notification.
type poster interface {
	Post(ctx context.Context, n Notification) error
}

// exposer turns a local file into a URI another application can read.
type exposer interface {
	Expose(ctx context.Context, path string) (string, error)
}

// permissions reports runtime grants.
type permissions interface {
	Granted(p permission.Permission) bool
}

// Presenter builds and posts the notification for a finished blur.
type Presenter struct {
	poster      poster
	exposer     exposer
	perms       permissions
	message     string
	previewSize int
	now         func() time.Time
}

// NewPresenter creates a Presenter. An empty message uses DefaultMessage.
// exposer may be nil, in which case notifications carry no action.
func NewPresenter(p poster, e exposer, perms permissions, message string) *Presenter {
	if message == "" {
		message = DefaultMessage
	}

	return &Presenter{
		poster:      p,
		exposer:     e,
		perms:       perms,
		message:     message,
		previewSize: defaultPreviewSize,
		now:         time.Now,
	}
}

// NotifyBlurred posts the notification for outputPath. Without the
// notifications permission it does nothing. Failures are logged, never
// returned: the blur itself already succeeded.
func (p *Presenter) NotifyBlurred(ctx context.Context, outputPath string, img image.Image) {
	if !p.perms.Granted(permission.Notifications) {
		zlog.Logger.Debug().Msg("notifications not granted, skipping")
		return
	}

	n := p.Build(ctx, outputPath, img)

	if err := p.poster.Post(ctx, n); err != nil {
		zlog.Logger.Err(err).Msg("failed to post notification")
	}
}

// Build assembles the notification. img, when non-nil, is attached as a
// preview.
func (p *Presenter) Build(ctx context.Context, outputPath string, img image.Image) Notification {
	n := Notification{
		ID:          NotificationID,
		ChannelID:   ChannelID,
		ChannelName: ChannelName,
		Title:       Title,
		Body:        p.message,
		Priority:    PriorityHigh,
		PostedAt:    p.now(),
	}

	if p.exposer != nil {
		uri, err := p.exposer.Expose(ctx, outputPath)
		if err != nil {
			zlog.Logger.Err(err).Str("path", outputPath).Msg("failed to expose image, posting without action")
		} else {
			n.Action = &Action{
				Label:     ActionViewImage,
				URI:       uri,
				MIMEType:  "image/*",
				GrantRead: true,
			}
		}
	}

	if img != nil {
		preview, err := p.preview(img)
		if err != nil {
			zlog.Logger.Err(err).Msg("failed to encode notification preview")
		} else {
			n.Preview = preview
		}
	}

	return n
}

func (p *Presenter) preview(img image.Image) ([]byte, error) {
	thumb := imaging.Fit(img, p.previewSize, p.previewSize, imaging.Linear)

	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, thumb, imaging.PNG); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
