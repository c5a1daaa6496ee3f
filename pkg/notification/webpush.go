package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/google/uuid"
	"github.com/quocanhngo/talkhub/internal/logger"
	"github.com/quocanhngo/talkhub/internal/model"
	"github.com/quocanhngo/talkhub/internal/repository"
)

// WebPushNotifier sends new-message notifications to browser subscriptions
type WebPushNotifier struct {
	opts    *webpush.Options
	devices repository.DeviceRepository
}

// NewWebPush returns nil (push disabled) without a VAPID key pair
func NewWebPush(publicKey, privateKey, subscriber string, devices repository.DeviceRepository) *WebPushNotifier {
	if publicKey == "" || privateKey == "" {
		logger.Info("VAPID keys not provided, Web Push disabled")
		return nil
	}
	return &WebPushNotifier{
		opts: &webpush.Options{
			Subscriber:      subscriber,
			VAPIDPublicKey:  publicKey,
			VAPIDPrivateKey: privateKey,
			TTL:             30,
		},
		devices: devices,
	}
}

type webPushPayload struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data"`
}

// NotifyMessage pushes msg to every subscription of recipientID. Subscriptions
// the push service reports as gone are removed.
func (s *WebPushNotifier) NotifyMessage(ctx context.Context, recipientID uuid.UUID, sender model.UserSummary, msg *model.MessageResponse) error {
	if s == nil {
		return nil
	}

	subs, err := s.devices.ListSubscriptions(ctx, recipientID)
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		return nil
	}

	payload, err := json.Marshal(webPushPayload{Title: sender.Username, Body: Preview(msg), Data: data(sender, msg)})
	if err != nil {
		return fmt.Errorf("marshal web push payload: %w", err)
	}

	for _, sub := range subs {
		resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys:     webpush.Keys{P256dh: sub.P256dh, Auth: sub.Auth},
		}, s.opts)
		if err != nil {
			logger.Warnf("web push to %s: %v", endpointLabel(sub.Endpoint), err)
			continue
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound {
			if err := s.devices.DeleteSubscription(ctx, sub.Endpoint); err != nil {
				logger.Warnf("remove expired subscription: %v", err)
			}
		}
	}
	return nil
}

func endpointLabel(endpoint string) string {
	return endpoint[:min(50, len(endpoint))]
}
