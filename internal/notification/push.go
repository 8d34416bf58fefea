package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"greenhouse-backend/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// SubscriptionSource looks up the browser subscriptions that follow a machine.
type SubscriptionSource interface {
	SubscriptionsForMachine(ctx context.Context, machineID string) ([]model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
}

type pushPayload struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	MachineID string `json:"machineId"`
	Status    string `json:"status"`
}

// PushChannel sends notices to every browser subscribed to the machine.
type PushChannel struct {
	subs    SubscriptionSource
	options *webpush.Options
	sender  NotificationSender
	logger  *zap.Logger
}

// NewPushChannel constructs a web push channel.
func NewPushChannel(subs SubscriptionSource, options *webpush.Options, logger *zap.Logger) (*PushChannel, error) {
	if subs == nil {
		return nil, errors.New("push channel: nil subscription source")
	}
	if options == nil || options.VAPIDPublicKey == "" || options.VAPIDPrivateKey == "" {
		return nil, errors.New("push channel: vapid keys are not configured")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PushChannel{subs: subs, options: options, sender: &WebPushSender{}, logger: logger}, nil
}

func (p *PushChannel) Name() string { return "push" }

// Send pushes the notice to each subscriber. Expired subscriptions are removed.
func (p *PushChannel) Send(ctx context.Context, n Notice) error {
	subscriptions, err := p.subs.SubscriptionsForMachine(ctx, n.MachineID)
	if err != nil {
		return fmt.Errorf("push channel: fetch subscriptions for machine %s: %w", n.MachineID, err)
	}
	if len(subscriptions) == 0 {
		return nil
	}

	payload, err := json.Marshal(pushPayload{
		Title:     n.Subject,
		Body:      n.Body,
		MachineID: n.MachineID,
		Status:    string(n.Band),
	})
	if err != nil {
		return err
	}

	var errs []error
	for _, sub := range subscriptions {
		if err := p.sendOne(ctx, sub, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *PushChannel) sendOne(ctx context.Context, sub model.PushSubscription, payload []byte) error {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := p.sender.Send(payload, wpSub, p.options)
	if err != nil {
		return fmt.Errorf("push channel: send to %s: %w", sub.Endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound {
		p.logger.Info("push subscription expired, deleting", zap.String("endpoint", sub.Endpoint))
		if err := p.subs.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			p.logger.Warn("failed to delete expired subscription", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		}
		return nil
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("push channel: endpoint %s answered %d", sub.Endpoint, resp.StatusCode)
	}
	return nil
}
