package notify

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// FCMProvider sends pushes through Firebase Cloud Messaging.
type FCMProvider struct {
	client *messaging.Client
}

// NewFCMProvider builds a messaging client from a service-account JSON file.
func NewFCMProvider(ctx context.Context, credentialsFile string) (*FCMProvider, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init messaging client: %w", err)
	}
	return &FCMProvider{client: client}, nil
}

func (p *FCMProvider) Send(ctx context.Context, token string, msg PushMessage) error {
	_, err := p.client.Send(ctx, &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: msg.Data,
	})
	return classifyFCMError(err)
}

func (p *FCMProvider) SendMulticast(ctx context.Context, tokens []string, msg PushMessage) ([]TokenResult, error) {
	resp, err := p.client.SendEachForMulticast(ctx, &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: msg.Data,
	})
	if err != nil {
		return nil, fmt.Errorf("fcm multicast: %w", err)
	}

	out := make([]TokenResult, len(tokens))
	for i, token := range tokens {
		out[i] = TokenResult{Token: token}
		if i >= len(resp.Responses) {
			out[i].Err = fmt.Errorf("fcm multicast: missing response for token %d", i)
			continue
		}
		if r := resp.Responses[i]; !r.Success {
			out[i].Err = classifyFCMError(r.Error)
		}
	}
	return out, nil
}

// classifyFCMError maps "this token will never work" responses onto
// ErrInvalidToken and leaves other errors as they are. INVALID_ARGUMENT is
// not one of them: FCM also returns it for an oversized or malformed
// payload, which says nothing about the token.
func classifyFCMError(err error) error {
	if err == nil {
		return nil
	}
	if messaging.IsUnregistered(err) || messaging.IsSenderIDMismatch(err) {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return fmt.Errorf("fcm send: %w", err)
}
