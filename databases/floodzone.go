package databases

// go generate: mockery --name FloodZoneDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/floodnet-dev/flood-response-api/models"
)

const floodZoneName = "floodZones"

// FloodZoneDatabase contains the methods to use with the flood zone database
type FloodZoneDatabase interface {
	FindOne(context.Context, interface{}, ...*options.FindOneOptions) (*models.FloodZone, error)
	Find(context.Context, interface{}, ...*options.FindOptions) ([]models.FloodZone, error)
	InsertOne(context.Context, interface{}, ...*options.InsertOneOptions) (InsertOneResultHelper, error)
	UpdateOne(context.Context, interface{}, interface{}, ...*options.UpdateOptions) (*models.FloodZone, error)
	DeleteOne(context.Context, interface{}, ...*options.DeleteOptions) error
	CountDocuments(context.Context, interface{}, ...*options.CountOptions) (int64, error)
}

type floodZoneDatabase struct {
	db DatabaseHelper
}

// NewFloodZoneDatabase initializes a new instance of flood zone database with the provided db connection
func NewFloodZoneDatabase(db DatabaseHelper) FloodZoneDatabase {
	return &floodZoneDatabase{
		db: db,
	}
}

func (f *floodZoneDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.FloodZone, error) {
	zone := &models.FloodZone{}
	err := f.db.Collection(floodZoneName).FindOne(ctx, filter, opts...).Decode(&zone)
	if err != nil {
		return nil, err
	}
	return zone, nil
}

func (f *floodZoneDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.FloodZone, error) {
	var zones []models.FloodZone
	cr, err := f.db.Collection(floodZoneName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = cr.Decode(&zones)
	if err != nil {
		return nil, err
	}
	return zones, nil
}

func (f *floodZoneDatabase) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error) {
	res, err := f.db.Collection(floodZoneName).InsertOne(ctx, document, opts...)
	return res, err
}

func (f *floodZoneDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*models.FloodZone, error) {
	_, err := f.db.Collection(floodZoneName).UpdateOne(ctx, filter, update, opts...)
	if err != nil {
		return nil, err
	}
	zone := &models.FloodZone{}
	err = f.db.Collection(floodZoneName).FindOne(ctx, filter).Decode(&zone)
	if err != nil {
		return nil, err
	}
	return zone, nil
}

func (f *floodZoneDatabase) DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) error {
	_, err := f.db.Collection(floodZoneName).DeleteOne(ctx, filter, opts...)
	return err
}

func (f *floodZoneDatabase) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	return f.db.Collection(floodZoneName).CountDocuments(ctx, filter, opts...)
}
