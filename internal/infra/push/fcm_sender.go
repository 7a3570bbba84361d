package push

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// FCMSender delivers one notification to a set of device tokens through
// Firebase Cloud Messaging. Per-token failures are inspected so that tokens
// FCM reports as unregistered can be pruned from the directory.
type FCMSender struct {
	client *messaging.Client
	logger *logrus.Logger
}

func NewFCMSender(ctx context.Context, credentialsFile string, logger *logrus.Logger) (*FCMSender, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize FCM messaging client: %w", err)
	}
	return &FCMSender{client: client, logger: logger}, nil
}

func (s *FCMSender) SendToTokens(ctx context.Context, tokens []string, title, body string) (int, []string, error) {
	if len(tokens) == 0 {
		return 0, nil, nil
	}

	msg := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
	}

	resp, err := s.client.SendEachForMulticast(ctx, msg)
	if err != nil {
		return 0, nil, fmt.Errorf("FCM multicast send failed: %w", err)
	}

	var stale []string
	for i, r := range resp.Responses {
		if r.Error == nil {
			continue
		}
		if messaging.IsUnregistered(r.Error) {
			stale = append(stale, tokens[i])
			continue
		}
		s.logger.Warnf("FCM send to token %d/%d failed: %v", i+1, len(tokens), r.Error)
	}
	return resp.SuccessCount, stale, nil
}
