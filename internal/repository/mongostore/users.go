package mongostore

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/quocanhngo/talkhub/internal/model"
	"github.com/quocanhngo/talkhub/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UserStore keeps accounts in the users collection
type UserStore struct {
	db *mongo.Database
}

func (s *UserStore) col() *mongo.Collection { return s.db.Collection(colUsers) }

func (s *UserStore) Create(ctx context.Context, user *model.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	_, err := s.col().InsertOne(ctx, newUserDoc(user))
	return translate("userStore.Create", err)
}

func (s *UserStore) findOne(ctx context.Context, op string, filter bson.M) (*model.User, error) {
	var doc userDoc
	if err := s.col().FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, translate(op, err)
	}
	user := doc.model()
	return &user, nil
}

func (s *UserStore) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return s.findOne(ctx, "userStore.FindByID", bson.M{"_id": id.String()})
}

func (s *UserStore) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.User, error) {
	return s.find(ctx, "userStore.FindByIDs", bson.M{"_id": bson.M{"$in": idStrings(ids)}}, nil)
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.findOne(ctx, "userStore.FindByEmail", bson.M{"email": strings.ToLower(email)})
}

func (s *UserStore) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.findOne(ctx, "userStore.FindByUsername", bson.M{"username": username})
}

func (s *UserStore) Search(ctx context.Context, query string, excludeUserID uuid.UUID, limit int) ([]model.User, error) {
	pattern := primitiveRegex(query)
	filter := bson.M{
		"_id": bson.M{"$ne": excludeUserID.String()},
		"$or": bson.A{
			bson.M{"username": pattern},
			bson.M{"email": pattern},
		},
	}
	opts := options.Find().SetSort(bson.D{{Key: "username", Value: 1}}).SetLimit(int64(limit))
	return s.find(ctx, "userStore.Search", filter, opts)
}

func (s *UserStore) find(ctx context.Context, op string, filter bson.M, opts *options.FindOptions) ([]model.User, error) {
	users := []model.User{}
	cur, err := s.col().Find(ctx, filter, opts)
	if err != nil {
		return users, translate(op, err)
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return users, translate(op, err)
	}
	for _, d := range docs {
		users = append(users, d.model())
	}
	return users, nil
}

func (s *UserStore) UpdateOnlineStatus(ctx context.Context, id uuid.UUID, online bool, at time.Time) error {
	set := bson.M{"is_online": online}
	if !online {
		set["last_seen"] = at
	}
	_, err := s.col().UpdateByID(ctx, id.String(), bson.M{"$set": set})
	return translate("userStore.UpdateOnlineStatus", err)
}

func (s *UserStore) UpdateProfile(ctx context.Context, id uuid.UUID, u repository.ProfileUpdate) error {
	set := bson.M{}
	if u.Username != "" {
		set["username"] = u.Username
	}
	if u.AvatarURL != nil {
		set["avatar_url"] = *u.AvatarURL
	}
	if u.Status != nil {
		set["status"] = *u.Status
	}
	if len(set) == 0 {
		return nil
	}
	set["updated_at"] = time.Now().UTC()
	res, err := s.col().UpdateByID(ctx, id.String(), bson.M{"$set": set})
	if err != nil {
		return translate("userStore.UpdateProfile", err)
	}
	if res.MatchedCount == 0 {
		return translate("userStore.UpdateProfile", mongo.ErrNoDocuments)
	}
	return nil
}

func primitiveRegex(query string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(query), "$options": "i"}
}

// ContactStore keeps one-directional contact entries
type ContactStore struct {
	db    *mongo.Database
	users *UserStore
}

func (s *ContactStore) col() *mongo.Collection { return s.db.Collection(colContacts) }

func (s *ContactStore) Add(ctx context.Context, contact *model.Contact) error {
	if contact.ID == uuid.Nil {
		contact.ID = uuid.New()
	}
	if contact.CreatedAt.IsZero() {
		contact.CreatedAt = time.Now().UTC()
	}
	_, err := s.col().InsertOne(ctx, contactDoc{
		ID:        contact.ID.String(),
		UserID:    contact.UserID.String(),
		ContactID: contact.ContactID.String(),
		CreatedAt: contact.CreatedAt,
	})
	return translate("contactStore.Add", err)
}

func (s *ContactStore) Remove(ctx context.Context, userID, contactID uuid.UUID) error {
	res, err := s.col().DeleteOne(ctx, bson.M{"user_id": userID.String(), "contact_id": contactID.String()})
	if err != nil {
		return translate("contactStore.Remove", err)
	}
	if res.DeletedCount == 0 {
		return translate("contactStore.Remove", mongo.ErrNoDocuments)
	}
	return nil
}

func (s *ContactStore) Exists(ctx context.Context, userID, contactID uuid.UUID) (bool, error) {
	n, err := s.col().CountDocuments(ctx, bson.M{"user_id": userID.String(), "contact_id": contactID.String()})
	return n > 0, translate("contactStore.Exists", err)
}

func (s *ContactStore) List(ctx context.Context, userID uuid.UUID) ([]model.User, error) {
	cur, err := s.col().Find(ctx, bson.M{"user_id": userID.String()})
	if err != nil {
		return []model.User{}, translate("contactStore.List", err)
	}
	var docs []contactDoc
	if err := cur.All(ctx, &docs); err != nil {
		return []model.User{}, translate("contactStore.List", err)
	}
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ContactID)
	}
	opts := options.Find().SetSort(bson.D{{Key: "username", Value: 1}})
	return s.users.find(ctx, "contactStore.List", bson.M{"_id": bson.M{"$in": ids}}, opts)
}

// DeviceStore keeps FCM tokens and Web Push subscriptions
type DeviceStore struct {
	db *mongo.Database
}

func (s *DeviceStore) UpsertDevice(ctx context.Context, device *model.UserDevice) error {
	if device.ID == uuid.Nil {
		device.ID = uuid.New()
	}
	now := time.Now().UTC()
	if device.CreatedAt.IsZero() {
		device.CreatedAt = now
	}
	if device.LastActiveAt.IsZero() {
		device.LastActiveAt = now
	}
	_, err := s.db.Collection(colDevices).UpdateOne(ctx,
		bson.M{"fcm_token": device.FCMToken},
		bson.M{
			"$set": bson.M{
				"user_id":        device.UserID.String(),
				"device_type":    device.DeviceType,
				"last_active_at": device.LastActiveAt,
			},
			"$setOnInsert": bson.M{"_id": device.ID.String(), "created_at": device.CreatedAt},
		},
		options.Update().SetUpsert(true),
	)
	return translate("deviceStore.UpsertDevice", err)
}

func (s *DeviceStore) ListDevices(ctx context.Context, userID uuid.UUID) ([]model.UserDevice, error) {
	devices := []model.UserDevice{}
	cur, err := s.db.Collection(colDevices).Find(ctx, bson.M{"user_id": userID.String()})
	if err != nil {
		return devices, translate("deviceStore.ListDevices", err)
	}
	var docs []deviceDoc
	if err := cur.All(ctx, &docs); err != nil {
		return devices, translate("deviceStore.ListDevices", err)
	}
	for _, d := range docs {
		devices = append(devices, d.model())
	}
	return devices, nil
}

func (s *DeviceStore) DeleteDevice(ctx context.Context, fcmToken string) error {
	_, err := s.db.Collection(colDevices).DeleteOne(ctx, bson.M{"fcm_token": fcmToken})
	return translate("deviceStore.DeleteDevice", err)
}

func (s *DeviceStore) UpsertSubscription(ctx context.Context, sub *model.PushSubscription) error {
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Collection(colSubscriptions).UpdateOne(ctx,
		bson.M{"endpoint": sub.Endpoint},
		bson.M{
			"$set": bson.M{
				"user_id": sub.UserID.String(),
				"p256dh":  sub.P256dh,
				"auth":    sub.Auth,
			},
			"$setOnInsert": bson.M{"_id": sub.ID.String(), "created_at": sub.CreatedAt},
		},
		options.Update().SetUpsert(true),
	)
	return translate("deviceStore.UpsertSubscription", err)
}

func (s *DeviceStore) ListSubscriptions(ctx context.Context, userID uuid.UUID) ([]model.PushSubscription, error) {
	subs := []model.PushSubscription{}
	cur, err := s.db.Collection(colSubscriptions).Find(ctx, bson.M{"user_id": userID.String()})
	if err != nil {
		return subs, translate("deviceStore.ListSubscriptions", err)
	}
	var docs []subscriptionDoc
	if err := cur.All(ctx, &docs); err != nil {
		return subs, translate("deviceStore.ListSubscriptions", err)
	}
	for _, d := range docs {
		subs = append(subs, d.model())
	}
	return subs, nil
}

func (s *DeviceStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	_, err := s.db.Collection(colSubscriptions).DeleteOne(ctx, bson.M{"endpoint": endpoint})
	return translate("deviceStore.DeleteSubscription", err)
}
