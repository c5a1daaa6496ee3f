package mongostore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/quocanhngo/talkhub/internal/logger"
	"github.com/quocanhngo/talkhub/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// null dates compare lowest, so a descending sort puts never-messaged
// conversations last
var activitySort = bson.D{{Key: "last_message_at", Value: -1}, {Key: "created_at", Value: -1}}

// ChatStore keeps 1:1 chats with the participant pair stored in order
type ChatStore struct {
	db *mongo.Database
}

func (s *ChatStore) col() *mongo.Collection { return s.db.Collection(colChats) }

func (s *ChatStore) Create(ctx context.Context, chat *model.Chat) error {
	chat.User1ID, chat.User2ID = model.OrderedPair(chat.User1ID, chat.User2ID)
	if chat.ID == uuid.Nil {
		chat.ID = uuid.New()
	}
	if chat.CreatedAt.IsZero() {
		chat.CreatedAt = time.Now().UTC()
	}
	_, err := s.col().InsertOne(ctx, chatDoc{
		ID:            chat.ID.String(),
		User1ID:       chat.User1ID.String(),
		User2ID:       chat.User2ID.String(),
		CreatedAt:     chat.CreatedAt,
		LastMessageAt: chat.LastMessageAt,
	})
	return translate("chatStore.Create", err)
}

func (s *ChatStore) findOne(ctx context.Context, op string, filter bson.M) (*model.Chat, error) {
	var doc chatDoc
	if err := s.col().FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, translate(op, err)
	}
	chat := doc.model()
	return &chat, nil
}

func (s *ChatStore) FindByID(ctx context.Context, id uuid.UUID) (*model.Chat, error) {
	return s.findOne(ctx, "chatStore.FindByID", bson.M{"_id": id.String()})
}

func (s *ChatStore) FindByPair(ctx context.Context, a, b uuid.UUID) (*model.Chat, error) {
	u1, u2 := model.OrderedPair(a, b)
	return s.findOne(ctx, "chatStore.FindByPair", bson.M{"user1_id": u1.String(), "user2_id": u2.String()})
}

func (s *ChatStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Chat, error) {
	chats := []model.Chat{}
	filter := bson.M{"$or": bson.A{
		bson.M{"user1_id": userID.String()},
		bson.M{"user2_id": userID.String()},
	}}
	cur, err := s.col().Find(ctx, filter, options.Find().SetSort(activitySort))
	if err != nil {
		return chats, translate("chatStore.ListByUser", err)
	}
	var docs []chatDoc
	if err := cur.All(ctx, &docs); err != nil {
		return chats, translate("chatStore.ListByUser", err)
	}
	for _, d := range docs {
		chats = append(chats, d.model())
	}
	return chats, nil
}

func (s *ChatStore) TouchLastMessage(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := s.col().UpdateOne(ctx, touchFilter(id, at), bson.M{"$set": bson.M{"last_message_at": at}})
	return translate("chatStore.TouchLastMessage", err)
}

func touchFilter(id uuid.UUID, at time.Time) bson.M {
	return bson.M{
		"_id": id.String(),
		"$or": bson.A{
			bson.M{"last_message_at": nil},
			bson.M{"last_message_at": bson.M{"$lt": at}},
		},
	}
}

// GroupStore keeps groups and their member rows
type GroupStore struct {
	db    *mongo.Database
	users *UserStore
}

func (s *GroupStore) groups() *mongo.Collection  { return s.db.Collection(colGroups) }
func (s *GroupStore) members() *mongo.Collection { return s.db.Collection(colMembers) }

// Create inserts the group, then its members. Standalone servers have no
// multi-document transactions, so a failed member insert removes the group
// and whatever members made it in.
func (s *GroupStore) Create(ctx context.Context, group *model.Group, members []model.GroupMember) error {
	if group.ID == uuid.Nil {
		group.ID = uuid.New()
	}
	if group.CreatedAt.IsZero() {
		group.CreatedAt = time.Now().UTC()
	}
	_, err := s.groups().InsertOne(ctx, groupDoc{
		ID:            group.ID.String(),
		Name:          group.Name,
		Description:   group.Description,
		AvatarURL:     group.AvatarURL,
		CreatedBy:     group.CreatedBy.String(),
		CreatedAt:     group.CreatedAt,
		LastMessageAt: group.LastMessageAt,
	})
	if err != nil {
		return translate("groupStore.Create", err)
	}

	if len(members) > 0 {
		docs := make([]interface{}, len(members))
		for i := range members {
			members[i].GroupID = group.ID
			docs[i] = newMemberDoc(&members[i])
		}
		if _, err := s.members().InsertMany(ctx, docs); err != nil {
			if _, cleanupErr := s.members().DeleteMany(ctx, bson.M{"group_id": group.ID.String()}); cleanupErr != nil {
				logger.Errorf("groupStore.Create: cleanup members of %s: %v", group.ID, cleanupErr)
			}
			if _, cleanupErr := s.groups().DeleteOne(ctx, bson.M{"_id": group.ID.String()}); cleanupErr != nil {
				logger.Errorf("groupStore.Create: cleanup group %s: %v", group.ID, cleanupErr)
			}
			return translate("groupStore.Create", err)
		}
	}
	group.Members = members
	return nil
}

func (s *GroupStore) FindByID(ctx context.Context, id uuid.UUID) (*model.Group, error) {
	var doc groupDoc
	if err := s.groups().FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc); err != nil {
		return nil, translate("groupStore.FindByID", err)
	}
	group := doc.model()
	return &group, nil
}

func (s *GroupStore) GroupIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	docs, err := s.findMembers(ctx, bson.M{"user_id": userID.String()}, nil)
	if err != nil {
		return []uuid.UUID{}, translate("groupStore.GroupIDsForUser", err)
	}
	ids := make([]uuid.UUID, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, parseID(d.GroupID))
	}
	return ids, nil
}

func (s *GroupStore) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Group, error) {
	groups := []model.Group{}
	if len(ids) == 0 {
		return groups, nil
	}
	cur, err := s.groups().Find(ctx, bson.M{"_id": bson.M{"$in": idStrings(ids)}}, options.Find().SetSort(activitySort))
	if err != nil {
		return groups, translate("groupStore.ListByIDs", err)
	}
	var docs []groupDoc
	if err := cur.All(ctx, &docs); err != nil {
		return groups, translate("groupStore.ListByIDs", err)
	}
	for _, d := range docs {
		groups = append(groups, d.model())
	}
	return groups, nil
}

func (s *GroupStore) TouchLastMessage(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := s.groups().UpdateOne(ctx, touchFilter(id, at), bson.M{"$set": bson.M{"last_message_at": at}})
	return translate("groupStore.TouchLastMessage", err)
}

func (s *GroupStore) FindMember(ctx context.Context, groupID, userID uuid.UUID) (*model.GroupMember, error) {
	var doc memberDoc
	err := s.members().FindOne(ctx, bson.M{"group_id": groupID.String(), "user_id": userID.String()}).Decode(&doc)
	if err != nil {
		return nil, translate("groupStore.FindMember", err)
	}
	member := doc.model()
	return &member, nil
}

func (s *GroupStore) ListMembers(ctx context.Context, groupID uuid.UUID) ([]model.GroupMember, error) {
	opts := options.Find().SetSort(bson.D{{Key: "joined_at", Value: 1}})
	docs, err := s.findMembers(ctx, bson.M{"group_id": groupID.String()}, opts)
	if err != nil {
		return []model.GroupMember{}, translate("groupStore.ListMembers", err)
	}

	userIDs := make([]uuid.UUID, 0, len(docs))
	for _, d := range docs {
		userIDs = append(userIDs, parseID(d.UserID))
	}
	users, err := s.users.FindByIDs(ctx, userIDs)
	if err != nil {
		return []model.GroupMember{}, fmt.Errorf("groupStore.ListMembers: %w", err)
	}
	byID := make(map[uuid.UUID]model.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	members := make([]model.GroupMember, 0, len(docs))
	for _, d := range docs {
		m := d.model()
		m.User = byID[m.UserID]
		members = append(members, m)
	}
	return members, nil
}

func (s *GroupStore) findMembers(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]memberDoc, error) {
	cur, err := s.members().Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []memberDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (s *GroupStore) AddMember(ctx context.Context, member *model.GroupMember) error {
	if member.JoinedAt.IsZero() {
		member.JoinedAt = time.Now().UTC()
	}
	_, err := s.members().InsertOne(ctx, newMemberDoc(member))
	return translate("groupStore.AddMember", err)
}

func (s *GroupStore) RemoveMember(ctx context.Context, groupID, userID uuid.UUID) error {
	res, err := s.members().DeleteOne(ctx, bson.M{"group_id": groupID.String(), "user_id": userID.String()})
	if err != nil {
		return translate("groupStore.RemoveMember", err)
	}
	if res.DeletedCount == 0 {
		return translate("groupStore.RemoveMember", mongo.ErrNoDocuments)
	}
	return nil
}

func (s *GroupStore) UpdateMemberRole(ctx context.Context, groupID, userID uuid.UUID, role model.MemberRole) error {
	res, err := s.members().UpdateOne(ctx,
		bson.M{"group_id": groupID.String(), "user_id": userID.String()},
		bson.M{"$set": bson.M{"role": string(role)}},
	)
	if err != nil {
		return translate("groupStore.UpdateMemberRole", err)
	}
	if res.MatchedCount == 0 {
		return translate("groupStore.UpdateMemberRole", mongo.ErrNoDocuments)
	}
	return nil
}
