// Package mongostore implements the repository interfaces on MongoDB. Ids are
// stored as uuid strings in _id so documents stay readable in the shell.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/quocanhngo/talkhub/internal/apperr"
	"github.com/quocanhngo/talkhub/internal/logger"
	"github.com/quocanhngo/talkhub/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	colUsers         = "users"
	colContacts      = "contacts"
	colDevices       = "user_devices"
	colSubscriptions = "push_subscriptions"
	colChats         = "chats"
	colGroups        = "groups"
	colMembers       = "group_members"
	colMessages      = "messages"
	colReads         = "message_reads"
	colReactions     = "message_reactions"
)

// Connect dials uri and returns the client plus the database named in the
// uri path (defaulting to "talkhub").
func Connect(ctx context.Context, uri string) (*mongo.Client, *mongo.Database, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	opts := options.Client().ApplyURI(uri).SetServerSelectionTimeout(10 * time.Second)
	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 10*time.Second)
	defer pingCancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("mongo ping: %w", err)
	}

	return client, client.Database(databaseName(uri)), nil
}

func databaseName(uri string) string {
	name := "talkhub"
	rest := uri
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	if i := strings.Index(rest, "/"); i >= 0 {
		if db := strings.Split(rest[i+1:], "?")[0]; db != "" {
			name = db
		}
	}
	return name
}

// NewStore returns a repository.Store backed by db.
func NewStore(db *mongo.Database) *repository.Store {
	users := &UserStore{db: db}
	return &repository.Store{
		Users:    users,
		Contacts: &ContactStore{db: db, users: users},
		Devices:  &DeviceStore{db: db},
		Chats:    &ChatStore{db: db},
		Groups:   &GroupStore{db: db, users: users},
		Messages: &MessageStore{db: db, users: users},
		Reads:    &ReadStore{db: db},
	}
}

// EnsureIndexes creates the unique and lookup indexes every store relies on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	unique := func(name string) *options.IndexOptions {
		return options.Index().SetName(name).SetUnique(true)
	}
	plain := func(name string) *options.IndexOptions {
		return options.Index().SetName(name)
	}

	indexes := map[string][]mongo.IndexModel{
		colUsers: {
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: unique("idx_users_username")},
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique("idx_users_email")},
		},
		colContacts: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "contact_id", Value: 1}}, Options: unique("idx_contact_pair")},
		},
		colDevices: {
			{Keys: bson.D{{Key: "fcm_token", Value: 1}}, Options: unique("idx_devices_token")},
			{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: plain("idx_devices_user")},
		},
		colSubscriptions: {
			{Keys: bson.D{{Key: "endpoint", Value: 1}}, Options: unique("idx_subscriptions_endpoint")},
			{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: plain("idx_subscriptions_user")},
		},
		colChats: {
			{Keys: bson.D{{Key: "user1_id", Value: 1}, {Key: "user2_id", Value: 1}}, Options: unique("idx_chat_pair")},
			{Keys: bson.D{{Key: "user2_id", Value: 1}}, Options: plain("idx_chat_user2")},
		},
		colMembers: {
			{Keys: bson.D{{Key: "group_id", Value: 1}, {Key: "user_id", Value: 1}}, Options: unique("idx_group_user")},
			{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: plain("idx_members_user")},
		},
		colMessages: {
			{Keys: bson.D{{Key: "chat_id", Value: 1}, {Key: "created_at", Value: -1}}, Options: plain("idx_messages_chat_created")},
			{Keys: bson.D{{Key: "group_id", Value: 1}, {Key: "created_at", Value: -1}}, Options: plain("idx_messages_group_created")},
		},
		colReads: {
			{Keys: bson.D{{Key: "message_id", Value: 1}, {Key: "user_id", Value: 1}}, Options: unique("idx_read_message_user")},
			{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: plain("idx_reads_user")},
		},
		colReactions: {
			{Keys: bson.D{{Key: "message_id", Value: 1}, {Key: "user_id", Value: 1}, {Key: "emoji", Value: 1}}, Options: unique("idx_reaction_unique")},
		},
	}

	for col, models := range indexes {
		if _, err := db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("ensure indexes on %s: %w", col, err)
		}
	}
	logger.Info("MongoDB indexes ensured")
	return nil
}

func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%s: %w", op, apperr.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func parseID(s string) uuid.UUID {
	id, _ := uuid.Parse(s)
	return id
}

func optString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func optID(s *string) *uuid.UUID {
	if s == nil {
		return nil
	}
	id := parseID(*s)
	return &id
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
