package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/quocanhngo/talkhub/internal/logger"
	"github.com/quocanhngo/talkhub/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const duplicateKeyCode = 11000

var newestFirst = bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}

func conversationFilter(ref model.ConversationRef) bson.M {
	if ref.IsChat() {
		return bson.M{"chat_id": ref.ID.String()}
	}
	return bson.M{"group_id": ref.ID.String()}
}

// unreadCandidates matches live messages in ref that userID did not send
func unreadCandidates(ref model.ConversationRef, userID uuid.UUID) bson.M {
	filter := conversationFilter(ref)
	filter["is_deleted"] = false
	filter["sender_id"] = bson.M{"$ne": userID.String()}
	return filter
}

// MessageStore keeps messages and reactions
type MessageStore struct {
	db    *mongo.Database
	users *UserStore
}

func (s *MessageStore) col() *mongo.Collection { return s.db.Collection(colMessages) }

func (s *MessageStore) Create(ctx context.Context, msg *model.Message) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	_, err := s.col().InsertOne(ctx, newMessageDoc(msg))
	return translate("messageStore.Create", err)
}

func (s *MessageStore) FindByID(ctx context.Context, id uuid.UUID) (*model.Message, error) {
	var doc messageDoc
	if err := s.col().FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc); err != nil {
		return nil, translate("messageStore.FindByID", err)
	}
	msgs, err := s.withSenders(ctx, []messageDoc{doc})
	if err != nil {
		return nil, fmt.Errorf("messageStore.FindByID: %w", err)
	}
	return &msgs[0], nil
}

func (s *MessageStore) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Message, error) {
	messages := []model.Message{}
	if len(ids) == 0 {
		return messages, nil
	}
	docs, err := s.find(ctx, bson.M{"_id": bson.M{"$in": idStrings(ids)}}, nil)
	if err != nil {
		return messages, translate("messageStore.FindByIDs", err)
	}
	for _, d := range docs {
		messages = append(messages, d.model())
	}
	return messages, nil
}

func (s *MessageStore) ListByConversation(ctx context.Context, ref model.ConversationRef, offset, limit int) ([]model.Message, error) {
	filter := conversationFilter(ref)
	filter["is_deleted"] = false
	opts := options.Find().SetSort(newestFirst).SetSkip(int64(offset)).SetLimit(int64(limit))

	docs, err := s.find(ctx, filter, opts)
	if err != nil {
		return []model.Message{}, translate("messageStore.ListByConversation", err)
	}
	msgs, err := s.withSenders(ctx, docs)
	if err != nil {
		return []model.Message{}, fmt.Errorf("messageStore.ListByConversation: %w", err)
	}
	return msgs, nil
}

func (s *MessageStore) LastMessage(ctx context.Context, ref model.ConversationRef) (*model.Message, error) {
	filter := conversationFilter(ref)
	filter["is_deleted"] = false

	var doc messageDoc
	err := s.col().FindOne(ctx, filter, options.FindOne().SetSort(newestFirst)).Decode(&doc)
	if err != nil {
		return nil, translate("messageStore.LastMessage", err)
	}
	msgs, err := s.withSenders(ctx, []messageDoc{doc})
	if err != nil {
		return nil, fmt.Errorf("messageStore.LastMessage: %w", err)
	}
	return &msgs[0], nil
}

func (s *MessageStore) SoftDelete(ctx context.Context, id uuid.UUID) error {
	res, err := s.col().UpdateByID(ctx, id.String(), bson.M{"$set": bson.M{"is_deleted": true}})
	if err != nil {
		return translate("messageStore.SoftDelete", err)
	}
	if res.MatchedCount == 0 {
		return translate("messageStore.SoftDelete", mongo.ErrNoDocuments)
	}
	return nil
}

func (s *MessageStore) CountUnread(ctx context.Context, ref model.ConversationRef, userID uuid.UUID, readIDs map[uuid.UUID]struct{}) (int64, error) {
	if readIDs == nil {
		var err error
		readIDs, err = (&ReadStore{db: s.db}).ReadIDs(ctx, ref, userID)
		if err != nil {
			return 0, err
		}
	}

	filter := unreadCandidates(ref, userID)
	if len(readIDs) > 0 {
		ids := make([]string, 0, len(readIDs))
		for id := range readIDs {
			ids = append(ids, id.String())
		}
		filter["_id"] = bson.M{"$nin": ids}
	}

	n, err := s.col().CountDocuments(ctx, filter)
	return n, translate("messageStore.CountUnread", err)
}

func (s *MessageStore) ToggleReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string, at time.Time) (bool, error) {
	col := s.db.Collection(colReactions)
	key := bson.M{"message_id": messageID.String(), "user_id": userID.String(), "emoji": emoji}

	res, err := col.DeleteOne(ctx, key)
	if err != nil {
		return false, translate("messageStore.ToggleReaction", err)
	}
	if res.DeletedCount > 0 {
		return false, nil
	}

	_, err = col.InsertOne(ctx, reactionDoc{
		ID:        uuid.NewString(),
		MessageID: messageID.String(),
		UserID:    userID.String(),
		Emoji:     emoji,
		CreatedAt: at,
	})
	// a concurrent toggle inserted the same reaction
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return false, translate("messageStore.ToggleReaction", err)
	}
	return true, nil
}

func (s *MessageStore) ListReactions(ctx context.Context, messageIDs []uuid.UUID) ([]model.MessageReaction, error) {
	reactions := []model.MessageReaction{}
	if len(messageIDs) == 0 {
		return reactions, nil
	}
	cur, err := s.db.Collection(colReactions).Find(ctx,
		bson.M{"message_id": bson.M{"$in": idStrings(messageIDs)}},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}),
	)
	if err != nil {
		return reactions, translate("messageStore.ListReactions", err)
	}
	var docs []reactionDoc
	if err := cur.All(ctx, &docs); err != nil {
		return reactions, translate("messageStore.ListReactions", err)
	}
	for _, d := range docs {
		reactions = append(reactions, d.model())
	}
	return reactions, nil
}

func (s *MessageStore) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]messageDoc, error) {
	cur, err := s.col().Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []messageDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// withSenders converts docs and attaches each sender's user record
func (s *MessageStore) withSenders(ctx context.Context, docs []messageDoc) ([]model.Message, error) {
	seen := map[uuid.UUID]struct{}{}
	senderIDs := []uuid.UUID{}
	msgs := make([]model.Message, 0, len(docs))
	for _, d := range docs {
		m := d.model()
		if _, ok := seen[m.SenderID]; !ok {
			seen[m.SenderID] = struct{}{}
			senderIDs = append(senderIDs, m.SenderID)
		}
		msgs = append(msgs, m)
	}

	users, err := s.users.FindByIDs(ctx, senderIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]model.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	for i := range msgs {
		msgs[i].Sender = byID[msgs[i].SenderID]
	}
	return msgs, nil
}

// ReadStore keeps per-message read rows
type ReadStore struct {
	db *mongo.Database
}

func (s *ReadStore) col() *mongo.Collection { return s.db.Collection(colReads) }

// MarkRead inserts the missing read rows with one unordered InsertMany. Each
// document succeeds or fails on its own; duplicate-key failures mean another
// request already marked that message and are not errors.
func (s *ReadStore) MarkRead(ctx context.Context, ref model.ConversationRef, userID uuid.UUID, at time.Time) ([]uuid.UUID, error) {
	defer logger.DeferLogDuration("readStore.MarkRead", time.Now())()

	cur, err := s.db.Collection(colMessages).Find(ctx,
		unreadCandidates(ref, userID),
		options.Find().
			SetSort(bson.D{{Key: "created_at", Value: 1}}).
			SetProjection(bson.M{"_id": 1}),
	)
	if err != nil {
		return nil, translate("readStore.MarkRead", err)
	}
	var candidates []struct {
		ID string `bson:"_id"`
	}
	if err := cur.All(ctx, &candidates); err != nil {
		return nil, translate("readStore.MarkRead", err)
	}

	already, err := s.ReadIDs(ctx, ref, userID)
	if err != nil {
		return nil, err
	}

	pending := []uuid.UUID{}
	docs := []interface{}{}
	for _, c := range candidates {
		id := parseID(c.ID)
		if _, ok := already[id]; ok {
			continue
		}
		pending = append(pending, id)
		docs = append(docs, readDoc{
			ID:        uuid.NewString(),
			MessageID: c.ID,
			UserID:    userID.String(),
			ReadAt:    at,
		})
	}
	if len(docs) == 0 {
		return []uuid.UUID{}, nil
	}

	_, err = s.col().InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err == nil {
		return pending, nil
	}

	var bulkErr mongo.BulkWriteException
	if !errors.As(err, &bulkErr) {
		return []uuid.UUID{}, translate("readStore.MarkRead", err)
	}

	failed := map[int]struct{}{}
	var errs []error
	for _, we := range bulkErr.WriteErrors {
		failed[we.Index] = struct{}{}
		if we.Code == duplicateKeyCode {
			continue
		}
		errs = append(errs, fmt.Errorf("message %s: %s", pending[we.Index], we.Message))
	}

	marked := []uuid.UUID{}
	for i, id := range pending {
		if _, ok := failed[i]; !ok {
			marked = append(marked, id)
		}
	}
	if bulkErr.WriteConcernError != nil {
		errs = append(errs, fmt.Errorf("write concern: %s", bulkErr.WriteConcernError.Message))
	}
	if len(errs) > 0 {
		return marked, fmt.Errorf("readStore.MarkRead: %w", errors.Join(errs...))
	}
	return marked, nil
}

func (s *ReadStore) IsRead(ctx context.Context, messageID, userID uuid.UUID) (bool, error) {
	n, err := s.col().CountDocuments(ctx, bson.M{"message_id": messageID.String(), "user_id": userID.String()})
	return n > 0, translate("readStore.IsRead", err)
}

// ReadIDs returns the ids of messages in ref that userID has read
func (s *ReadStore) ReadIDs(ctx context.Context, ref model.ConversationRef, userID uuid.UUID) (map[uuid.UUID]struct{}, error) {
	cur, err := s.db.Collection(colMessages).Find(ctx, conversationFilter(ref), options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, translate("readStore.ReadIDs", err)
	}
	var msgs []struct {
		ID string `bson:"_id"`
	}
	if err := cur.All(ctx, &msgs); err != nil {
		return nil, translate("readStore.ReadIDs", err)
	}

	set := map[uuid.UUID]struct{}{}
	if len(msgs) == 0 {
		return set, nil
	}
	ids := make([]string, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}

	readCur, err := s.col().Find(ctx,
		bson.M{"user_id": userID.String(), "message_id": bson.M{"$in": ids}},
		options.Find().SetProjection(bson.M{"message_id": 1}),
	)
	if err != nil {
		return nil, translate("readStore.ReadIDs", err)
	}
	var reads []readDoc
	if err := readCur.All(ctx, &reads); err != nil {
		return nil, translate("readStore.ReadIDs", err)
	}
	for _, r := range reads {
		set[parseID(r.MessageID)] = struct{}{}
	}
	return set, nil
}
