package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/satriahrh/callrelay/domain"
	"github.com/satriahrh/callrelay/domain/entities"
	"github.com/satriahrh/callrelay/domain/repositories"
)

const defaultListLimit = 50

// CallRecordRepository stores finished calls in the "calls" collection
type CallRecordRepository struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

var _ repositories.CallRecordRepository = (*CallRecordRepository)(nil)

// NewCallRecordRepository creates the repository and its indexes
func NewCallRecordRepository(ctx context.Context, db *mongo.Database, logger *zap.Logger) (*CallRecordRepository, error) {
	collection := db.Collection("calls")

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "call_sid", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "caller.number", Value: 1},
				{Key: "created_at", Value: -1},
			},
		},
		{
			Keys: bson.D{{Key: "created_at", Value: -1}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create call indexes: %w", err)
	}
	logger.Info("Call record indexes created successfully")

	return &CallRecordRepository{
		collection: collection,
		logger:     logger,
	}, nil
}

// Save inserts or replaces the record keyed by its call SID
func (r *CallRecordRepository) Save(ctx context.Context, record *entities.CallRecord) error {
	if record == nil {
		return errors.New("call record cannot be nil")
	}
	if err := record.Validate(); err != nil {
		return err
	}

	fields, err := bson.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode call: %w", err)
	}
	var set bson.M
	if err := bson.Unmarshal(fields, &set); err != nil {
		return fmt.Errorf("failed to encode call: %w", err)
	}
	// an existing document keeps its _id
	delete(set, "_id")
	if record.ID.IsZero() {
		record.ID = primitive.NewObjectID()
	}

	update := bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{"_id": record.ID},
	}
	_, err = r.collection.UpdateOne(ctx, bson.M{"call_sid": record.CallSID}, update, options.Update().SetUpsert(true))
	if err != nil {
		r.logger.Error("Failed to save call record", zap.Error(err), zap.String("callSid", record.CallSID))
		return fmt.Errorf("failed to save call: %w", err)
	}

	r.logger.Info("Call record saved",
		zap.String("callSid", record.CallSID),
		zap.String("status", string(record.Status)))
	return nil
}

func (r *CallRecordRepository) GetByCallSID(ctx context.Context, callSID string) (*entities.CallRecord, error) {
	if callSID == "" {
		return nil, errors.New("call SID cannot be empty")
	}

	var record entities.CallRecord
	err := r.collection.FindOne(ctx, bson.M{"call_sid": callSID}).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get call %s: %w", callSID, err)
	}
	return &record, nil
}

func (r *CallRecordRepository) ListRecent(ctx context.Context, limit int) ([]*entities.CallRecord, error) {
	return r.find(ctx, bson.M{}, limit)
}

func (r *CallRecordRepository) ListByCaller(ctx context.Context, callerNumber string, limit int) ([]*entities.CallRecord, error) {
	return r.find(ctx, bson.M{"caller.number": callerNumber}, limit)
}

func (r *CallRecordRepository) find(ctx context.Context, filter bson.M, limit int) ([]*entities.CallRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list calls: %w", err)
	}
	defer cursor.Close(ctx)

	records := make([]*entities.CallRecord, 0)
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode calls: %w", err)
	}
	return records, nil
}
