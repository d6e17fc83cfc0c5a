package push

import (
	"context"
	"errors"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/shinyyama/support-chat-backend/internal/model"
	"google.golang.org/api/option"
)

// ErrNoPushToken marks a recipient that has never registered a device token.
var ErrNoPushToken = errors.New("no_push_token")

// Client is the best-effort external push channel. Delivery failures are
// reported to the caller and counted there; the channel itself never retries.
type Client struct {
	msg *messaging.Client
}

func NewClient(ctx context.Context, projectID, credsFile string) (*Client, error) {
	var opts []option.ClientOption
	if credsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, err
	}
	m, err := app.Messaging(ctx)
	if err != nil {
		return nil, err
	}
	return &Client{msg: m}, nil
}

func (c *Client) Send(ctx context.Context, user *model.User, title, body string) error {
	if user.PushToken == nil || *user.PushToken == "" {
		return ErrNoPushToken
	}
	_, err := c.msg.Send(ctx, &messaging.Message{
		Token: *user.PushToken,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
	})
	return err
}
