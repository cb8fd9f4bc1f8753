package implementation

import (
	"context"
	"time"

	mqtmodels "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Models"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoReadingRepository stores reading history in a MongoDB collection
type MongoReadingRepository struct {
	coll *mongo.Collection
}

func NewMongoReadingRepository(coll *mongo.Collection) *MongoReadingRepository {
	return &MongoReadingRepository{coll: coll}
}

func (r *MongoReadingRepository) CreateReading(ctx context.Context, reading mqtmodels.Reading) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.coll.InsertOne(ctx, reading)
	return err
}

func (r *MongoReadingRepository) CreateReadings(ctx context.Context, readings []mqtmodels.Reading) error {
	if len(readings) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	docs := make([]interface{}, 0, len(readings))
	for i := range readings {
		docs = append(docs, readings[i])
	}
	_, err := r.coll.InsertMany(ctx, docs)
	return err
}
