package databases

// go generate: mockery --name RescueUnitDatabase

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/floodnet-dev/flood-response-api/dispatch"
	"github.com/floodnet-dev/flood-response-api/models"
)

const rescueUnitName = "rescueUnits"

// RescueUnitDatabase contains the methods to use with the rescue unit database
type RescueUnitDatabase interface {
	FindOne(context.Context, interface{}, ...*options.FindOneOptions) (*models.RescueUnit, error)
	Find(context.Context, interface{}, ...*options.FindOptions) ([]models.RescueUnit, error)
	InsertOne(context.Context, interface{}, ...*options.InsertOneOptions) (InsertOneResultHelper, error)
	UpdateOne(context.Context, interface{}, interface{}, ...*options.UpdateOptions) (*models.RescueUnit, error)
	DeleteOne(context.Context, interface{}, ...*options.DeleteOptions) error
	CountDocuments(context.Context, interface{}, ...*options.CountOptions) (int64, error)
	ClaimUnit(ctx context.Context, unitID string, incidentID string, at time.Time) (models.RescueUnit, error)
	ReleaseUnit(ctx context.Context, unitID string, at time.Time) (models.RescueUnit, error)
}

type rescueUnitDatabase struct {
	db DatabaseHelper
}

// NewRescueUnitDatabase initializes a new instance of rescue unit database with the provided db connection
func NewRescueUnitDatabase(db DatabaseHelper) RescueUnitDatabase {
	return &rescueUnitDatabase{
		db: db,
	}
}

func (r *rescueUnitDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.RescueUnit, error) {
	unit := &models.RescueUnit{}
	err := r.db.Collection(rescueUnitName).FindOne(ctx, filter, opts...).Decode(&unit)
	if err != nil {
		return nil, err
	}
	return unit, nil
}

func (r *rescueUnitDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.RescueUnit, error) {
	var units []models.RescueUnit
	cr, err := r.db.Collection(rescueUnitName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = cr.Decode(&units)
	if err != nil {
		return nil, err
	}
	return units, nil
}

func (r *rescueUnitDatabase) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error) {
	res, err := r.db.Collection(rescueUnitName).InsertOne(ctx, document, opts...)
	return res, err
}

func (r *rescueUnitDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*models.RescueUnit, error) {
	_, err := r.db.Collection(rescueUnitName).UpdateOne(ctx, filter, update, opts...)
	if err != nil {
		return nil, err
	}
	unit := &models.RescueUnit{}
	err = r.db.Collection(rescueUnitName).FindOne(ctx, filter).Decode(&unit)
	if err != nil {
		return nil, err
	}
	return unit, nil
}

func (r *rescueUnitDatabase) DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) error {
	_, err := r.db.Collection(rescueUnitName).DeleteOne(ctx, filter, opts...)
	return err
}

func (r *rescueUnitDatabase) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	return r.db.Collection(rescueUnitName).CountDocuments(ctx, filter, opts...)
}

// ClaimUnit atomically flips a still-dispatchable unit to dispatched for the
// given incident. The status guard in the filter makes the claim a
// compare-and-set: when another dispatcher won the unit in between, no
// document matches and the claim fails with ErrUnitNoLongerAvailable
func (r *rescueUnitDatabase) ClaimUnit(ctx context.Context, unitID string, incidentID string, at time.Time) (models.RescueUnit, error) {
	objID, err := primitive.ObjectIDFromHex(unitID)
	if err != nil {
		return models.RescueUnit{}, err
	}

	filter := bson.M{
		"_id":               objID,
		"rescueUnit.status": bson.M{"$in": bson.A{models.UnitAvailable, models.UnitStandby}},
	}
	update := bson.M{
		"$set": bson.M{
			"rescueUnit.status":            models.UnitDispatched,
			"rescueUnit.currentIncidentID": incidentID,
			"rescueUnit.deploymentStart":   primitive.NewDateTimeFromTime(at),
			"rescueUnit.statusChangedAt":   primitive.NewDateTimeFromTime(at),
			"rescueUnit.updatedAt":         primitive.NewDateTimeFromTime(at),
		},
		"$inc": bson.M{
			"rescueUnit.totalDeployments": 1,
			"__v":                         1,
		},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	unit := models.RescueUnit{}
	err = r.db.Collection(rescueUnitName).FindOneAndUpdate(ctx, filter, update, opts).Decode(&unit)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.RescueUnit{}, dispatch.ErrUnitNoLongerAvailable
	}
	if err != nil {
		return models.RescueUnit{}, err
	}
	return unit, nil
}

// ReleaseUnit returns a dispatched unit to the available pool, accruing the
// service hours of the deployment it just finished
func (r *rescueUnitDatabase) ReleaseUnit(ctx context.Context, unitID string, at time.Time) (models.RescueUnit, error) {
	objID, err := primitive.ObjectIDFromHex(unitID)
	if err != nil {
		return models.RescueUnit{}, err
	}

	current, err := r.FindOne(ctx, bson.M{"_id": objID})
	if err != nil {
		return models.RescueUnit{}, err
	}

	// DateTime(0) is the unix epoch, not a zero time; an unset deployment
	// start must not accrue hours
	served := 0.0
	if current.Details.DeploymentStart > 0 {
		if start := current.Details.DeploymentStart.Time(); at.After(start) {
			served = at.Sub(start).Hours()
		}
	}

	filter := bson.M{
		"_id":               objID,
		"rescueUnit.status": bson.M{"$nin": bson.A{models.UnitAvailable, models.UnitOutOfService, models.UnitMaintenance, models.UnitOffline}},
	}
	update := bson.M{
		"$set": bson.M{
			"rescueUnit.status":            models.UnitAvailable,
			"rescueUnit.currentIncidentID": "",
			"rescueUnit.deploymentStart":   primitive.DateTime(0),
			"rescueUnit.statusChangedAt":   primitive.NewDateTimeFromTime(at),
			"rescueUnit.updatedAt":         primitive.NewDateTimeFromTime(at),
		},
		"$inc": bson.M{
			"rescueUnit.totalServiceHours": served,
			"__v":                          1,
		},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	unit := models.RescueUnit{}
	err = r.db.Collection(rescueUnitName).FindOneAndUpdate(ctx, filter, update, opts).Decode(&unit)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.RescueUnit{}, dispatch.ErrInvalidTransition
	}
	if err != nil {
		return models.RescueUnit{}, err
	}
	return unit, nil
}
