package notification

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/google/uuid"
	"github.com/quocanhngo/talkhub/internal/logger"
	"github.com/quocanhngo/talkhub/internal/model"
	"github.com/quocanhngo/talkhub/internal/repository"
	"google.golang.org/api/option"
)

// FCMNotifier sends new-message notifications to registered mobile devices
type FCMNotifier struct {
	client  *messaging.Client
	devices repository.DeviceRepository
}

// NewFCM creates the Firebase client. It returns nil (push disabled) when
// credentials are missing or Firebase cannot be initialised.
func NewFCM(ctx context.Context, credentialsFile string, devices repository.DeviceRepository) *FCMNotifier {
	if credentialsFile == "" {
		logger.Info("Firebase credentials not provided, FCM push disabled")
		return nil
	}

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		logger.Warnf("Failed to initialize Firebase app: %v (FCM push disabled)", err)
		return nil
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		logger.Warnf("Failed to get messaging client: %v", err)
		return nil
	}

	logger.Info("Firebase FCM initialized")
	return &FCMNotifier{client: client, devices: devices}
}

// NotifyMessage pushes msg to every device of recipientID. Tokens FCM reports
// as unregistered are removed.
func (s *FCMNotifier) NotifyMessage(ctx context.Context, recipientID uuid.UUID, sender model.UserSummary, msg *model.MessageResponse) error {
	if s == nil || s.client == nil {
		return nil
	}

	devices, err := s.devices.ListDevices(ctx, recipientID)
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		return nil
	}

	tokens := make([]string, 0, len(devices))
	for _, d := range devices {
		tokens = append(tokens, d.FCMToken)
	}

	message := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: sender.Username,
			Body:  Preview(msg),
		},
		Data: data(sender, msg),
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ClickAction: "FLUTTER_NOTIFICATION_CLICK",
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound: "default",
				},
			},
		},
	}

	br, err := s.client.SendEachForMulticast(ctx, message)
	if err != nil {
		return fmt.Errorf("error sending multicast message: %w", err)
	}

	if br.FailureCount > 0 {
		for idx, resp := range br.Responses {
			if resp.Success {
				continue
			}
			if messaging.IsUnregistered(resp.Error) {
				if err := s.devices.DeleteDevice(ctx, tokens[idx]); err != nil {
					logger.Warnf("remove stale FCM token: %v", err)
				}
				continue
			}
			logger.Warnf("FCM failure for user %s: %v", recipientID, resp.Error)
		}
	}

	return nil
}
