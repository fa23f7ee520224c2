package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/yourname/fixyoursleep/internal"
)

const (
	collUsers     = "users"
	collSleepLogs = "sleepLogs"
)

// MongoStorage keeps profiles and sleep logs as schemaless documents. Every
// document read goes through DecodeProfile / DecodeSleepLog.
type MongoStorage struct {
	client *mongo.Client
	users  *mongo.Collection
	logs   *mongo.Collection
	logger internal.Logger
}

func NewMongoStorage(ctx context.Context, uri, database string, logger internal.Logger) (*MongoStorage, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		logger.Errorf("failed to connect to mongo: %v", err)
		return nil, err
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		logger.Errorf("mongo is not reachable: %v", err)
		return nil, err
	}

	db := client.Database(database)
	s := &MongoStorage{
		client: client,
		users:  db.Collection(collUsers),
		logs:   db.Collection(collSleepLogs),
		logger: logger,
	}
	_, err = s.logs.Indexes().CreateOne(connectCtx, mongo.IndexModel{
		Keys: bson.D{{Key: fieldUserID, Value: 1}, {Key: fieldDate, Value: -1}},
	})
	if err != nil {
		logger.Warnf("failed to create sleep log index: %v", err)
	}
	return s, nil
}

func (s *MongoStorage) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// --- ProfileStore ---
func (s *MongoStorage) GetProfile(ctx context.Context, userID string) (*internal.GoalProfile, error) {
	var doc bson.M
	err := s.users.FindOne(ctx, bson.M{fieldID: userID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("storage: profile %s: %w", userID, internal.ErrNotFound)
		}
		s.logger.Errorf("failed to fetch profile: %v", err)
		return nil, err
	}
	return DecodeProfile(Document(doc))
}

func (s *MongoStorage) PutProfile(ctx context.Context, profile *internal.GoalProfile) (*internal.GoalProfile, error) {
	doc := EncodeProfile(profile)
	if _, err := DecodeProfile(doc); err != nil {
		return nil, err
	}
	_, err := s.users.ReplaceOne(ctx, bson.M{fieldID: profile.UserID}, bson.M(doc), options.Replace().SetUpsert(true))
	if err != nil {
		s.logger.Errorf("failed to save profile: %v", err)
		return nil, err
	}
	cp := *profile
	return &cp, nil
}

func (s *MongoStorage) UpdateGoalFields(ctx context.Context, userID string, fields internal.GoalFields) error {
	set := bson.M{fieldUpdatedAt: time.Now()}
	bed, wake := "", ""
	if fields.BedTime != nil {
		bed = *fields.BedTime
		set[fieldBedTime] = bed
	}
	if fields.WakeTime != nil {
		wake = *fields.WakeTime
		set[fieldWakeTime] = wake
	}
	if fields.BedTime == nil || fields.WakeTime == nil {
		current, err := s.GetProfile(ctx, userID)
		if err != nil {
			return err
		}
		if fields.BedTime == nil {
			bed = current.BedTime
		}
		if fields.WakeTime == nil {
			wake = current.WakeTime
		}
	}
	if err := validateGoalPair(bed, wake); err != nil {
		return err
	}

	res, err := s.users.UpdateOne(ctx, bson.M{fieldID: userID}, bson.M{"$set": set})
	if err != nil {
		s.logger.Errorf("failed to update goal: %v", err)
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("storage: profile %s: %w", userID, internal.ErrNotFound)
	}
	return nil
}

// --- SleepLogStore ---
func (s *MongoStorage) SaveSleepLog(ctx context.Context, userID string, entry *internal.SleepLogEntry) error {
	e := *entry
	e.UserID = userID
	filter := bson.M{fieldID: e.ID, fieldUserID: userID}
	_, err := s.logs.ReplaceOne(ctx, filter, bson.M(EncodeSleepLog(&e)), options.Replace().SetUpsert(true))
	if err != nil {
		s.logger.Errorf("failed to save sleep log: %v", err)
		return err
	}
	return nil
}

func (s *MongoStorage) ListSleepLogs(ctx context.Context, userID string) ([]internal.SleepLogEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: fieldDate, Value: -1}})
	cursor, err := s.logs.Find(ctx, bson.M{fieldUserID: userID}, opts)
	if err != nil {
		s.logger.Errorf("failed to query sleep logs: %v", err)
		return nil, err
	}
	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		s.logger.Errorf("failed to read sleep logs: %v", err)
		return nil, err
	}

	logs := make([]internal.SleepLogEntry, 0, len(docs))
	for _, doc := range docs {
		e, err := DecodeSleepLog(Document(doc), userID)
		if err != nil {
			return nil, err
		}
		logs = append(logs, *e)
	}
	return logs, nil
}

func (s *MongoStorage) DeleteSleepLog(ctx context.Context, userID, id string) error {
	res, err := s.logs.DeleteOne(ctx, bson.M{fieldID: id, fieldUserID: userID})
	if err != nil {
		s.logger.Errorf("failed to delete sleep log: %v", err)
		return err
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("storage: sleep log %s: %w", id, internal.ErrNotFound)
	}
	return nil
}

// --- Compile-time assertions ---
var _ Store = (*MongoStorage)(nil)
