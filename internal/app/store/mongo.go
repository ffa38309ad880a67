package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"chatrelay/internal/app/message"
)

const (
	collMessages       = "messages"
	collDirectThreads  = "direct_threads"
	collDirectMessages = "direct_messages"
	collUsers          = "users"
	collConfigs        = "configs"
)

type messageDoc struct {
	ID        string              `bson:"_id"`
	ThreadID  *primitive.ObjectID `bson:"thread_id,omitempty"`
	Sender    string              `bson:"sender"`
	Recipient string              `bson:"recipient,omitempty"`
	Text      string              `bson:"text"`
	Image     string              `bson:"image,omitempty"`
	Avatar    string              `bson:"avatar,omitempty"`
	Time      string              `bson:"display_time"`
	ReplyTo   string              `bson:"reply_to,omitempty"`
	Kind      string              `bson:"kind"`
	IsEdited  bool                `bson:"is_edited"`
	Timestamp time.Time           `bson:"timestamp"`
}

type threadDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	UserA     string             `bson:"user_a"`
	UserB     string             `bson:"user_b"`
	CreatedAt time.Time          `bson:"created_at"`
}

type userDoc struct {
	Key      string    `bson:"_id"`
	Username string    `bson:"username"`
	Avatar   string    `bson:"avatar"`
	LastSeen time.Time `bson:"last_seen"`
}

type configDoc struct {
	Key       string    `bson:"_id"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func toDoc(rec message.Record) messageDoc {
	return messageDoc{
		ID:        rec.ID,
		Sender:    rec.Sender,
		Recipient: rec.Recipient,
		Text:      rec.Text,
		Image:     rec.Image,
		Avatar:    rec.Avatar,
		Time:      rec.Time,
		ReplyTo:   string(rec.ReplyTo),
		Kind:      string(rec.Kind),
		IsEdited:  rec.IsEdited,
		Timestamp: rec.Timestamp,
	}
}

func (d messageDoc) record() message.Record {
	rec := message.Record{
		ID:        d.ID,
		Sender:    d.Sender,
		Recipient: d.Recipient,
		Text:      d.Text,
		Image:     d.Image,
		Avatar:    d.Avatar,
		Time:      d.Time,
		Kind:      message.Kind(d.Kind),
		IsEdited:  d.IsEdited,
		Timestamp: d.Timestamp,
	}
	if d.ReplyTo != "" {
		rec.ReplyTo = json.RawMessage(d.ReplyTo)
	}
	return rec
}

// Mongo stores records in a MongoDB database.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ Store = (*Mongo)(nil)

// NewMongo connects to uri, pings the primary and ensures the collection indexes.
func NewMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	m := &Mongo{client: client, db: client.Database(database)}
	if err := m.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return m, nil
}

func (m *Mongo) ensureIndexes(ctx context.Context) error {
	indexes := map[string]mongo.IndexModel{
		collMessages: {
			Keys: bson.D{{Key: "kind", Value: 1}, {Key: "timestamp", Value: -1}},
		},
		collDirectThreads: {
			Keys:    bson.D{{Key: "user_a", Value: 1}, {Key: "user_b", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		collDirectMessages: {
			Keys: bson.D{{Key: "thread_id", Value: 1}, {Key: "timestamp", Value: 1}},
		},
	}

	for coll, model := range indexes {
		if _, err := m.db.Collection(coll).Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("create index on %s: %w", coll, err)
		}
	}
	return nil
}

func (m *Mongo) FindRecentBroadcasts(ctx context.Context, limit int) ([]message.Record, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := m.db.Collection(collMessages).Find(ctx, bson.M{"kind": string(message.KindBroadcast)}, opts)
	if err != nil {
		return nil, fmt.Errorf("find recent broadcasts: %w", err)
	}

	var docs []messageDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode broadcasts: %w", err)
	}

	records := make([]message.Record, 0, len(docs))
	for _, d := range docs {
		records = append(records, d.record())
	}
	return records, nil
}

func (m *Mongo) SaveBroadcast(ctx context.Context, rec message.Record) error {
	_, err := m.db.Collection(collMessages).InsertOne(ctx, toDoc(rec))
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("insert broadcast %s: %w", rec.ID, err)
	}
	return nil
}

func (m *Mongo) UpdateBroadcast(ctx context.Context, id, text string) error {
	update := bson.M{"$set": bson.M{"text": text, "is_edited": true}}
	if _, err := m.db.Collection(collMessages).UpdateByID(ctx, id, update); err != nil {
		return fmt.Errorf("update broadcast %s: %w", id, err)
	}
	return nil
}

func (m *Mongo) DeleteBroadcast(ctx context.Context, id string) error {
	if _, err := m.db.Collection(collMessages).DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete broadcast %s: %w", id, err)
	}
	return nil
}

func (m *Mongo) SaveDirect(ctx context.Context, key message.ConversationKey, rec message.Record) error {
	var thread threadDoc
	err := m.db.Collection(collDirectThreads).FindOneAndUpdate(ctx,
		bson.M{"user_a": key.A, "user_b": key.B},
		bson.M{"$setOnInsert": bson.M{"created_at": time.Now().UTC()}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&thread)
	if err != nil {
		return fmt.Errorf("resolve thread %s: %w", key, err)
	}

	doc := toDoc(rec)
	doc.ThreadID = &thread.ID

	_, err = m.db.Collection(collDirectMessages).InsertOne(ctx, doc)
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("insert direct message %s: %w", rec.ID, err)
	}
	return nil
}

func (m *Mongo) UpsertUser(ctx context.Context, username, avatar string, lastSeen time.Time) error {
	update := bson.M{"$set": bson.M{"username": username, "avatar": avatar, "last_seen": lastSeen}}
	_, err := m.db.Collection(collUsers).UpdateByID(ctx, strings.ToLower(username), update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert user %s: %w", username, err)
	}
	return nil
}

func (m *Mongo) LoadAvatars(ctx context.Context) (map[string]string, error) {
	cursor, err := m.db.Collection(collUsers).Find(ctx, bson.M{"avatar": bson.M{"$ne": ""}})
	if err != nil {
		return nil, fmt.Errorf("find avatars: %w", err)
	}

	var docs []userDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode avatars: %w", err)
	}

	avatars := make(map[string]string, len(docs))
	for _, d := range docs {
		avatars[d.Username] = d.Avatar
	}
	return avatars, nil
}

func (m *Mongo) GetConfig(ctx context.Context, key string) (string, bool, error) {
	var doc configDoc
	err := m.db.Collection(collConfigs).FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get config %s: %w", key, err)
	}
	return doc.Value, true, nil
}

func (m *Mongo) UpsertConfig(ctx context.Context, key, value string) error {
	update := bson.M{"$set": bson.M{"value": value, "updated_at": time.Now().UTC()}}
	_, err := m.db.Collection(collConfigs).UpdateByID(ctx, key, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert config %s: %w", key, err)
	}
	return nil
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
