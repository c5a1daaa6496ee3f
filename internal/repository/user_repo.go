package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/quocanhngo/talkhub/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepo handles database operations for User
type UserRepo struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepo {
	return &UserRepo{db: db}
}

// Create inserts a new user
func (r *UserRepo) Create(ctx context.Context, user *model.User) error {
	return translate("userRepo.Create", r.db.WithContext(ctx).Create(user).Error)
}

// FindByID finds a user by UUID
func (r *UserRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, translate("userRepo.FindByID", err)
	}
	return &user, nil
}

func (r *UserRepo) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.User, error) {
	users := []model.User{}
	if len(ids) == 0 {
		return users, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error
	return users, translate("userRepo.FindByIDs", err)
}

// FindByEmail finds a user by email
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(email)).First(&user).Error
	if err != nil {
		return nil, translate("userRepo.FindByEmail", err)
	}
	return &user, nil
}

func (r *UserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, translate("userRepo.FindByUsername", err)
	}
	return &user, nil
}

// likeEscaper makes a search query match literally inside a LIKE pattern
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Search matches username or email by case-insensitive substring
func (r *UserRepo) Search(ctx context.Context, query string, excludeUserID uuid.UUID, limit int) ([]model.User, error) {
	users := []model.User{}
	pattern := "%" + likeEscaper.Replace(strings.ToLower(query)) + "%"
	err := r.db.WithContext(ctx).
		Where(`(LOWER(username) LIKE ? ESCAPE '\' OR LOWER(email) LIKE ? ESCAPE '\') AND id <> ?`, pattern, pattern, excludeUserID).
		Order("username ASC").
		Limit(limit).
		Find(&users).Error
	return users, translate("userRepo.Search", err)
}

// UpdateOnlineStatus sets a user's online status; going offline also stamps last_seen
func (r *UserRepo) UpdateOnlineStatus(ctx context.Context, id uuid.UUID, online bool, at time.Time) error {
	updates := map[string]interface{}{
		"is_online": online,
	}
	if !online {
		updates["last_seen"] = at
	}
	err := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(updates).Error
	return translate("userRepo.UpdateOnlineStatus", err)
}

func (r *UserRepo) UpdateProfile(ctx context.Context, id uuid.UUID, u ProfileUpdate) error {
	updates := map[string]interface{}{}
	if u.Username != "" {
		updates["username"] = u.Username
	}
	if u.AvatarURL != nil {
		updates["avatar_url"] = *u.AvatarURL
	}
	if u.Status != nil {
		updates["status"] = *u.Status
	}
	if len(updates) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return translate("userRepo.UpdateProfile", res.Error)
	}
	if res.RowsAffected == 0 {
		return translate("userRepo.UpdateProfile", gorm.ErrRecordNotFound)
	}
	return nil
}

// ContactRepo handles database operations for Contact
type ContactRepo struct {
	db *gorm.DB
}

func NewContactRepository(db *gorm.DB) *ContactRepo {
	return &ContactRepo{db: db}
}

func (r *ContactRepo) Add(ctx context.Context, contact *model.Contact) error {
	return translate("contactRepo.Add", r.db.WithContext(ctx).Create(contact).Error)
}

func (r *ContactRepo) Remove(ctx context.Context, userID, contactID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND contact_id = ?", userID, contactID).
		Delete(&model.Contact{})
	if res.Error != nil {
		return translate("contactRepo.Remove", res.Error)
	}
	if res.RowsAffected == 0 {
		return translate("contactRepo.Remove", gorm.ErrRecordNotFound)
	}
	return nil
}

func (r *ContactRepo) Exists(ctx context.Context, userID, contactID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Contact{}).
		Where("user_id = ? AND contact_id = ?", userID, contactID).
		Count(&count).Error
	return count > 0, translate("contactRepo.Exists", err)
}

// List returns the contact users ordered by username
func (r *ContactRepo) List(ctx context.Context, userID uuid.UUID) ([]model.User, error) {
	users := []model.User{}
	err := r.db.WithContext(ctx).
		Joins("JOIN contacts ON contacts.contact_id = users.id").
		Where("contacts.user_id = ?", userID).
		Order("users.username ASC").
		Find(&users).Error
	return users, translate("contactRepo.List", err)
}

// DeviceRepo handles push target rows
type DeviceRepo struct {
	db *gorm.DB
}

func NewDeviceRepository(db *gorm.DB) *DeviceRepo {
	return &DeviceRepo{db: db}
}

// UpsertDevice adds a device token or refreshes its owner and activity time
func (r *DeviceRepo) UpsertDevice(ctx context.Context, device *model.UserDevice) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "fcm_token"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"user_id":        device.UserID,
			"last_active_at": device.LastActiveAt,
			"device_type":    device.DeviceType,
		}),
	}).Create(device).Error
	return translate("deviceRepo.UpsertDevice", err)
}

func (r *DeviceRepo) ListDevices(ctx context.Context, userID uuid.UUID) ([]model.UserDevice, error) {
	devices := []model.UserDevice{}
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&devices).Error
	return devices, translate("deviceRepo.ListDevices", err)
}

func (r *DeviceRepo) DeleteDevice(ctx context.Context, fcmToken string) error {
	err := r.db.WithContext(ctx).Where("fcm_token = ?", fcmToken).Delete(&model.UserDevice{}).Error
	return translate("deviceRepo.DeleteDevice", err)
}

func (r *DeviceRepo) UpsertSubscription(ctx context.Context, sub *model.PushSubscription) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"user_id": sub.UserID,
			"p256dh":  sub.P256dh,
			"auth":    sub.Auth,
		}),
	}).Create(sub).Error
	return translate("deviceRepo.UpsertSubscription", err)
}

func (r *DeviceRepo) ListSubscriptions(ctx context.Context, userID uuid.UUID) ([]model.PushSubscription, error) {
	subs := []model.PushSubscription{}
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&subs).Error
	return subs, translate("deviceRepo.ListSubscriptions", err)
}

func (r *DeviceRepo) DeleteSubscription(ctx context.Context, endpoint string) error {
	err := r.db.WithContext(ctx).Where("endpoint = ?", endpoint).Delete(&model.PushSubscription{}).Error
	return translate("deviceRepo.DeleteSubscription", err)
}
