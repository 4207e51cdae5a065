package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/sirupsen/logrus"
)

// LinePusher is the part of the LINE messaging API used for push delivery.
type LinePusher interface {
	PushMessage(req *messaging_api.PushMessageRequest, xLineRetryKey string) (*messaging_api.PushMessageResponse, error)
}

// Line pushes notifications to a single LINE user.
type Line struct {
	api LinePusher
	to  string
	log logrus.FieldLogger
}

// NewLine creates a notifier that pushes to the LINE user id to.
func NewLine(api LinePusher, to string, log logrus.FieldLogger) *Line {
	return &Line{api: api, to: to, log: log}
}

// Text formats n as a chat message.
func Text(n Notification) string {
	mark := "✅"
	if n.Variant == VariantDestructive {
		mark = "⚠️"
	}
	if n.Description == "" {
		return fmt.Sprintf("%s %s", mark, n.Title)
	}
	return fmt.Sprintf("%s %s\n%s", mark, n.Title, n.Description)
}

func (l *Line) Notify(_ context.Context, n Notification) {
	_, err := l.api.PushMessage(
		&messaging_api.PushMessageRequest{
			To:       l.to,
			Messages: []messaging_api.MessageInterface{&messaging_api.TextMessage{Text: Text(n)}},
		},
		uuid.NewString(),
	)
	if err != nil {
		l.log.WithError(err).WithField("to", l.to).Warn("failed to push notification")
	}
}
