package database

import (
	"context"
	"errors"
	"fmt"
	"time"
	"wedsync/entity"
	"wedsync/internal/config"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collectionUsers      = "users"
	collectionHouseholds = "families"
)

type MongoDB struct {
	clientOptions *options.ClientOptions
	database      string
}

func NewMongoClient(ctx context.Context, conf *config.Config) (*MongoDB, error) {
	connectionUri := fmt.Sprintf("mongodb://%s:%s", conf.Database.Host, conf.Database.Port)
	clientOptions := options.Client().ApplyURI(connectionUri)
	if conf.Database.User != "" {
		clientOptions.SetAuth(options.Credential{
			Username:   conf.Database.User,
			Password:   conf.Database.Password,
			AuthSource: conf.Database.Name,
		})
	}
	client := &MongoDB{
		clientOptions: clientOptions,
		database:      conf.Database.Name,
	}
	if err := client.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

func (m *MongoDB) connect(ctx context.Context) (*mongo.Client, error) {
	connection, err := mongo.Connect(ctx, m.clientOptions)
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	return connection, nil
}

func (m *MongoDB) disconnect(ctx context.Context, connection *mongo.Client) {
	_ = connection.Disconnect(ctx)
}

func (m *MongoDB) Close() {}

func (m *MongoDB) ensureIndexes(ctx context.Context) error {
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(ctx, connection)

	collection := connection.Database(m.database).Collection(collectionHouseholds)
	_, err = collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "code", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("mongodb create index: %w", err)
	}
	return nil
}

func (m *MongoDB) GetUser(ctx context.Context, token string) (*entity.User, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(ctx, connection)

	collection := connection.Database(m.database).Collection(collectionUsers)
	filter := bson.D{{Key: "token", Value: token}}
	var user entity.User
	err = collection.FindOne(ctx, filter).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongodb find: %w", err)
	}
	return &user, nil
}

func (m *MongoDB) FindByCode(ctx context.Context, code string) (*entity.Household, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(ctx, connection)

	collection := connection.Database(m.database).Collection(collectionHouseholds)
	var household entity.Household
	err = collection.FindOne(ctx, bson.D{{Key: "code", Value: code}}).Decode(&household)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mongodb find: %w", err)
	}
	return &household, nil
}

// markResponded applies the update only while the link is still active.
func (m *MongoDB) markResponded(ctx context.Context, filter bson.D, set bson.D) (bool, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return false, err
	}
	defer m.disconnect(ctx, connection)

	collection := connection.Database(m.database).Collection(collectionHouseholds)
	result, err := collection.UpdateOne(ctx, filter, bson.D{{Key: "$set", Value: set}})
	if err != nil {
		return false, fmt.Errorf("mongodb update: %w", err)
	}
	return result.ModifiedCount == 1, nil
}

func (m *MongoDB) MarkConfirmed(ctx context.Context, code string, attendees int, at time.Time) (bool, error) {
	filter := bson.D{
		{Key: "code", Value: code},
		{Key: "is_link_active", Value: true},
		{Key: "total_slots", Value: bson.D{{Key: "$gte", Value: attendees}}},
	}
	set := bson.D{
		{Key: "status", Value: entity.StatusConfirmed},
		{Key: "confirmed_attendees", Value: attendees},
		{Key: "is_link_active", Value: false},
		{Key: "confirmed_at", Value: at},
		{Key: "responded_at", Value: at},
	}
	return m.markResponded(ctx, filter, set)
}

func (m *MongoDB) MarkRejected(ctx context.Context, code string, at time.Time) (bool, error) {
	filter := bson.D{
		{Key: "code", Value: code},
		{Key: "is_link_active", Value: true},
	}
	set := bson.D{
		{Key: "status", Value: entity.StatusRejected},
		{Key: "confirmed_attendees", Value: 0},
		{Key: "is_link_active", Value: false},
		{Key: "responded_at", Value: at},
	}
	return m.markResponded(ctx, filter, set)
}

func (m *MongoDB) InsertHousehold(ctx context.Context, h *entity.Household) error {
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(ctx, connection)

	collection := connection.Database(m.database).Collection(collectionHouseholds)
	_, err = collection.InsertOne(ctx, h)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %s", ErrDuplicateCode, h.Code)
	}
	return err
}

func (m *MongoDB) findHouseholds(ctx context.Context, filter bson.D, opts *options.FindOptions) ([]*entity.Household, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(ctx, connection)

	collection := connection.Database(m.database).Collection(collectionHouseholds)
	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb find: %w", err)
	}
	defer cursor.Close(ctx)

	var households []*entity.Household
	if err = cursor.All(ctx, &households); err != nil {
		return nil, fmt.Errorf("mongodb decode: %w", err)
	}
	return households, nil
}

func (m *MongoDB) Stats(ctx context.Context) (*entity.Stats, error) {
	opts := options.Find().SetProjection(bson.D{
		{Key: "status", Value: 1},
		{Key: "total_slots", Value: 1},
		{Key: "confirmed_attendees", Value: 1},
	})
	households, err := m.findHouseholds(ctx, bson.D{}, opts)
	if err != nil {
		return nil, err
	}
	stats := &entity.Stats{}
	for _, h := range households {
		stats.Add(h)
	}
	return stats, nil
}

func (m *MongoDB) AvailableSlots(ctx context.Context) ([]*entity.AvailableSlot, error) {
	filter := bson.D{{Key: "status", Value: bson.D{{Key: "$ne", Value: entity.StatusRejected}}}}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	households, err := m.findHouseholds(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	slots := make([]*entity.AvailableSlot, 0, len(households))
	for _, h := range households {
		slots = append(slots, entity.NewAvailableSlot(h))
	}
	return slots, nil
}

func (m *MongoDB) History(ctx context.Context) ([]*entity.HistoryEntry, error) {
	filter := bson.D{{Key: "responded_at", Value: bson.D{{Key: "$exists", Value: true}}}}
	opts := options.Find().SetSort(bson.D{{Key: "responded_at", Value: -1}})
	households, err := m.findHouseholds(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	history := make([]*entity.HistoryEntry, 0, len(households))
	for _, h := range households {
		history = append(history, entity.NewHistoryEntry(h))
	}
	return history, nil
}
