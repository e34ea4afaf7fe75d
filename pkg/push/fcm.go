// Package push sends Firebase Cloud Messaging notifications to rider topics.
package push

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"github.com/richxcame/ride-booking/pkg/config"
)

// Notifier pushes a notification to every device subscribed to a user's topic.
type Notifier interface {
	NotifyUser(ctx context.Context, userID, title, body string, data map[string]string) error
}

type messageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMNotifier sends to the topic "user_<id>" which the mobile apps subscribe to at login.
type FCMNotifier struct {
	client messageSender
}

// NewFCMNotifier initialises a Firebase app from a service account file.
func NewFCMNotifier(ctx context.Context, cfg config.FirebaseConfig) (*FCMNotifier, error) {
	var opts []option.ClientOption
	if cfg.CredentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsPath))
	}

	var fbCfg *firebase.Config
	if cfg.ProjectID != "" {
		fbCfg = &firebase.Config{ProjectID: cfg.ProjectID}
	}

	app, err := firebase.NewApp(ctx, fbCfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get messaging client: %w", err)
	}
	return &FCMNotifier{client: client}, nil
}

// UserTopic is the FCM topic a user's devices listen on.
func UserTopic(userID string) string {
	return "user_" + userID
}

// NotifyUser sends a high-priority notification to the user's topic.
func (n *FCMNotifier) NotifyUser(ctx context.Context, userID, title, body string, data map[string]string) error {
	msg := &messaging.Message{
		Topic: UserTopic(userID),
		Data:  data,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{Sound: "default"},
			},
		},
	}

	if _, err := n.client.Send(ctx, msg); err != nil {
		return fmt.Errorf("fcm send to %s: %w", msg.Topic, err)
	}
	return nil
}
