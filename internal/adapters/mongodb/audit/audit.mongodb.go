package audit

import (
	"context"
	"strings"

	libCommons "github.com/LerianStudio/lib-commons/v2/commons"
	libMongo "github.com/LerianStudio/lib-commons/v2/commons/mongo"
	libOpentelemetry "github.com/LerianStudio/lib-commons/v2/commons/opentelemetry"
)

// Repository provides audit record persistence.
type Repository interface {
	Create(ctx context.Context, record Record) error
}

// AuditMongoDBRepository is the MongoDB-specific implementation of Repository.
type AuditMongoDBRepository struct {
	connection *libMongo.MongoConnection
	Database   string
}

// NewAuditMongoDBRepository returns a Repository bound to mc. It panics
// if mc cannot hand back a live connection.
func NewAuditMongoDBRepository(mc *libMongo.MongoConnection) *AuditMongoDBRepository {
	r := &AuditMongoDBRepository{connection: mc, Database: mc.Database}

	if _, err := r.connection.GetDB(context.Background()); err != nil {
		panic("Failed to connect mongodb")
	}

	return r
}

// Create inserts one audit row.
func (r *AuditMongoDBRepository) Create(ctx context.Context, record Record) error {
	tracer := libCommons.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "mongodb.create_audit")
	defer span.End()

	db, err := r.connection.GetDB(ctx)
	if err != nil {
		libOpentelemetry.HandleSpanError(&span, "Failed to get database", err)

		return err
	}

	coll := db.Database(strings.ToLower(r.Database)).Collection(collectionName)

	var model AuditMongoDBModel
	model.FromEntity(record)

	ctx, spanInsert := tracer.Start(ctx, "mongodb.create_audit.insert")
	defer spanInsert.End()

	if _, err := coll.InsertOne(ctx, model); err != nil {
		libOpentelemetry.HandleSpanError(&spanInsert, "Failed to insert audit", err)

		return err
	}

	return nil
}
