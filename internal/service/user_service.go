package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/quocanhngo/talkhub/internal/apperr"
	"github.com/quocanhngo/talkhub/internal/logger"
	"github.com/quocanhngo/talkhub/internal/model"
	"github.com/quocanhngo/talkhub/internal/repository"
)

const searchLimit = 20

// UserService covers user search, contacts, push targets and presence
type UserService struct {
	users    repository.UserRepository
	contacts repository.ContactRepository
	devices  repository.DeviceRepository
	now      Clock
}

func NewUserService(store *repository.Store) *UserService {
	return &UserService{
		users:    store.Users,
		contacts: store.Contacts,
		devices:  store.Devices,
		now:      systemClock,
	}
}

// Search matches username or email, never returning the caller
func (s *UserService) Search(ctx context.Context, query string, callerID uuid.UUID) ([]model.UserResponse, error) {
	query = strings.TrimSpace(query)
	result := []model.UserResponse{}
	if query == "" {
		return result, nil
	}
	users, err := s.users.Search(ctx, query, callerID, searchLimit)
	if err != nil {
		return nil, err
	}
	for i := range users {
		result = append(result, users[i].ToResponse())
	}
	return result, nil
}

// ==================== Contacts ====================

// AddContact adds contactID to the caller's contact list
func (s *UserService) AddContact(ctx context.Context, userID, contactID uuid.UUID) (*model.UserResponse, error) {
	if userID == contactID {
		return nil, apperr.Validation("cannot add yourself as a contact")
	}
	contact, err := s.users.FindByID(ctx, contactID)
	if err != nil {
		return nil, err
	}
	exists, err := s.contacts.Exists(ctx, userID, contactID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperr.Conflict("contact already added")
	}
	if err := s.contacts.Add(ctx, &model.Contact{UserID: userID, ContactID: contactID, CreatedAt: s.now()}); err != nil {
		return nil, err
	}
	resp := contact.ToResponse()
	return &resp, nil
}

func (s *UserService) RemoveContact(ctx context.Context, userID, contactID uuid.UUID) error {
	return s.contacts.Remove(ctx, userID, contactID)
}

func (s *UserService) ListContacts(ctx context.Context, userID uuid.UUID) ([]model.UserResponse, error) {
	users, err := s.contacts.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	result := make([]model.UserResponse, 0, len(users))
	for i := range users {
		result = append(result, users[i].ToResponse())
	}
	return result, nil
}

// ==================== Push targets ====================

// RegisterDevice registers an FCM token; a token moves to the latest user that registers it
func (s *UserService) RegisterDevice(ctx context.Context, userID uuid.UUID, req model.RegisterDeviceRequest) error {
	now := s.now()
	return s.devices.UpsertDevice(ctx, &model.UserDevice{
		UserID:       userID,
		FCMToken:     req.FCMToken,
		DeviceType:   req.DeviceType,
		LastActiveAt: now,
		CreatedAt:    now,
	})
}

// RegisterPushSubscription stores a browser Web Push subscription
func (s *UserService) RegisterPushSubscription(ctx context.Context, userID uuid.UUID, req model.PushSubscriptionRequest) error {
	if req.Keys.P256dh == "" || req.Keys.Auth == "" {
		return apperr.Validation("subscription keys are required")
	}
	return s.devices.UpsertSubscription(ctx, &model.PushSubscription{
		UserID:    userID,
		Endpoint:  req.Endpoint,
		P256dh:    req.Keys.P256dh,
		Auth:      req.Keys.Auth,
		CreatedAt: s.now(),
	})
}

// ==================== Presence ====================

// SetPresence records a user's online state. Called by the hub on first
// connect and last disconnect.
func (s *UserService) SetPresence(ctx context.Context, userID uuid.UUID, online bool) {
	err := s.users.UpdateOnlineStatus(ctx, userID, online, s.now())
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		logger.Errorf("update presence for %s: %v", userID, err)
	}
}
