package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"relaychat/internal/app/conversation"
	"relaychat/internal/app/user"
)

const (
	backendMongo      = "mongo"
	messageCollection = "messages"
)

// mongoMessage is the document shape stored in the messages collection.
type mongoMessage struct {
	ID             primitive.ObjectID `bson:"_id"`
	ConversationID string             `bson:"conversation_id"`
	Sender         string             `bson:"sender"`
	Recipient      *string            `bson:"recipient"`
	Content        string             `bson:"content"`
	Timestamp      time.Time          `bson:"timestamp"`
}

// MongoStore persists messages in a MongoDB collection.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// OpenMongo connects to MongoDB, verifies the connection, and makes sure the
// conversation index exists.
func OpenMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	collection := client.Database(database).Collection(messageCollection)

	_, err = collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "conversation_id", Value: 1},
			{Key: "timestamp", Value: 1},
			{Key: "_id", Value: 1},
		},
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to create conversation index: %w", err)
	}

	return &MongoStore{client: client, collection: collection}, nil
}

// Append inserts one document. BSON dates carry millisecond precision, so the
// timestamp is truncated before it is returned.
func (s *MongoStore) Append(ctx context.Context, draft Draft) (Message, error) {
	doc := mongoMessage{
		ID:             primitive.NewObjectID(),
		ConversationID: draft.ConversationID.String(),
		Sender:         draft.Sender.String(),
		Content:        draft.Content,
		Timestamp:      time.Now().UTC().Truncate(time.Millisecond),
	}
	if draft.Recipient != nil {
		r := draft.Recipient.String()
		doc.Recipient = &r
	}

	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		return Message{}, storageErr(backendMongo, "append", err)
	}

	return doc.toMessage(), nil
}

// ListByConversation returns the conversation sorted by timestamp, then insertion id.
func (s *MongoStore) ListByConversation(ctx context.Context, id conversation.ID) ([]Message, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "timestamp", Value: 1},
		{Key: "_id", Value: 1},
	})

	cursor, err := s.collection.Find(ctx, bson.M{"conversation_id": id.String()}, opts)
	if err != nil {
		return nil, storageErr(backendMongo, "list", err)
	}
	defer cursor.Close(ctx)

	var docs []mongoMessage
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, storageErr(backendMongo, "list", err)
	}

	messages := make([]Message, 0, len(docs))
	for _, doc := range docs {
		messages = append(messages, doc.toMessage())
	}
	return messages, nil
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.client.Disconnect(ctx)
}

func (d mongoMessage) toMessage() Message {
	msg := Message{
		ID:             d.ID.Hex(),
		Sender:         user.Identity(d.Sender),
		Content:        d.Content,
		ConversationID: conversation.ID(d.ConversationID),
		Timestamp:      d.Timestamp.UTC(),
	}
	if d.Recipient != nil {
		r := user.Identity(*d.Recipient)
		msg.Recipient = &r
	}
	return msg
}
