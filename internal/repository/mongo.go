package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fathima-sithara/realtime-chat/internal/domain"
	"github.com/fathima-sithara/realtime-chat/internal/store"
	"github.com/fathima-sithara/realtime-chat/internal/utils"
)

const (
	roomsCollection    = "rooms"
	messagesCollection = "messages"
	usersCollection    = "users"
	countersCollection = "counters"
)

type MongoRepository struct {
	client   *mongo.Client
	rooms    *mongo.Collection
	messages *mongo.Collection
	users    *mongo.Collection
	counters *mongo.Collection
}

var _ store.Store = (*MongoRepository)(nil)

// NewMongoClient connects and pings so a bad URI fails at startup.
func NewMongoClient(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

func NewMongoRepository(ctx context.Context, client *mongo.Client, database string) (*MongoRepository, error) {
	db := client.Database(database)
	r := &MongoRepository{
		client:   client,
		rooms:    db.Collection(roomsCollection),
		messages: db.Collection(messagesCollection),
		users:    db.Collection(usersCollection),
		counters: db.Collection(countersCollection),
	}
	if err := r.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *MongoRepository) ensureIndexes(ctx context.Context) error {
	_, err := r.rooms.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "trainer_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("room_pair_idx"),
		},
		{
			Keys:    bson.D{{Key: "trainer_id", Value: 1}},
			Options: options.Index().SetName("room_trainer_idx"),
		},
	})
	if err != nil {
		return fmt.Errorf("room indexes: %w", err)
	}
	_, err = r.messages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "room_id", Value: 1}, {Key: "created_at", Value: -1}},
		Options: options.Index().SetName("room_created_idx"),
	})
	if err != nil {
		return fmt.Errorf("message indexes: %w", err)
	}
	return nil
}

// nextID hands out sequential integer ids per counter name.
func (r *MongoRepository) nextID(ctx context.Context, name string) (int64, error) {
	var out struct {
		Seq int64 `bson:"seq"`
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	err := r.counters.FindOneAndUpdate(ctx, bson.M{"_id": name}, bson.M{"$inc": bson.M{"seq": 1}}, opts).Decode(&out)
	if err != nil {
		return 0, fmt.Errorf("next %s id: %w", name, err)
	}
	return out.Seq, nil
}

func (r *MongoRepository) GetRoom(ctx context.Context, id int64) (*domain.Room, error) {
	var room domain.Room
	if err := r.rooms.FindOne(ctx, bson.M{"_id": id}).Decode(&room); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrRoomNotFound
		}
		return nil, err
	}
	return &room, nil
}

func (r *MongoRepository) ListRooms(ctx context.Context, participantID int64) ([]*domain.RoomSummary, error) {
	filter := bson.M{"$or": bson.A{bson.M{"user_id": participantID}, bson.M{"trainer_id": participantID}}}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := r.rooms.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []*domain.RoomSummary{}
	for cur.Next(ctx) {
		var room domain.Room
		if err := cur.Decode(&room); err != nil {
			return nil, err
		}
		sum := &domain.RoomSummary{Room: &room}

		var last domain.Message
		lastOpts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
		switch err := r.messages.FindOne(ctx, bson.M{"room_id": room.ID}, lastOpts).Decode(&last); {
		case err == nil:
			sum.LastMessage = &last
		case !errors.Is(err, mongo.ErrNoDocuments):
			return nil, err
		}

		unread, err := r.messages.CountDocuments(ctx, bson.M{
			"room_id":   room.ID,
			"sender_id": bson.M{"$ne": participantID},
			"is_read":   false,
		})
		if err != nil {
			return nil, err
		}
		sum.Unread = unread
		out = append(out, sum)
	}
	return out, cur.Err()
}

func (r *MongoRepository) findPair(ctx context.Context, userID, trainerID int64) (*domain.Room, error) {
	var room domain.Room
	err := r.rooms.FindOne(ctx, bson.M{"user_id": userID, "trainer_id": trainerID}).Decode(&room)
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *MongoRepository) OpenRoom(ctx context.Context, userID, trainerID int64) (*domain.Room, bool, error) {
	room, err := r.findPair(ctx, userID, trainerID)
	if err == nil {
		return room, false, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, err
	}

	id, err := r.nextID(ctx, roomsCollection)
	if err != nil {
		return nil, false, err
	}
	room = &domain.Room{ID: id, UserID: userID, TrainerID: trainerID, CreatedAt: utils.NowUTC()}
	if _, err := r.rooms.InsertOne(ctx, room); err != nil {
		// lost a race with a concurrent open of the same pair
		if mongo.IsDuplicateKeyError(err) {
			existing, ferr := r.findPair(ctx, userID, trainerID)
			if ferr != nil {
				return nil, false, ferr
			}
			return existing, false, nil
		}
		return nil, false, err
	}
	return room, true, nil
}

func (r *MongoRepository) CreateMessage(ctx context.Context, roomID, senderID int64, content string) (*domain.Message, error) {
	id, err := r.nextID(ctx, messagesCollection)
	if err != nil {
		return nil, err
	}
	m := &domain.Message{
		ID:        id,
		RoomID:    roomID,
		SenderID:  senderID,
		Content:   content,
		CreatedAt: utils.NowUTC().Truncate(time.Millisecond),
	}
	if _, err := r.messages.InsertOne(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (r *MongoRepository) ListMessages(ctx context.Context, roomID int64, limit int) ([]*domain.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := r.messages.Find(ctx, bson.M{"room_id": roomID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []*domain.Message{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	// newest first from the query; callers want chronological
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (r *MongoRepository) MarkRead(ctx context.Context, roomID, readerID int64) (int64, error) {
	res, err := r.messages.UpdateMany(ctx,
		bson.M{"room_id": roomID, "sender_id": bson.M{"$ne": readerID}, "is_read": false},
		bson.M{"$set": bson.M{"is_read": true}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (r *MongoRepository) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	var u domain.User
	if err := r.users.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *MongoRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, nil)
}

func (r *MongoRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}
