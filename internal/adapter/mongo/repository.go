package mongo

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/roadmedic/reportsync/internal/domain"
)

const collectionName = "potholes"

// Repository stores reports in the "potholes" collection. Document ids are
// store-assigned ObjectIDs, exposed to the rest of the service as hex
// strings.
type Repository struct {
	client *mongo.Client
	col    *mongo.Collection
	logger *slog.Logger
}

// NewRepository binds a Repository to the reports collection.
func NewRepository(client *mongo.Client, dbName string, logger *slog.Logger) *Repository {
	return &Repository{
		client: client,
		col:    client.Database(dbName).Collection(collectionName),
		logger: logger,
	}
}

// EnsureIndexes creates the owner-partition and recency indexes. Index
// creation is idempotent; failures are surfaced so the caller can decide
// whether to continue.
func (r *Repository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}}},
		{Keys: bson.D{{Key: "timestamp", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	return nil
}

// CheckReadiness pings the store, for the readiness endpoint.
func (r *Repository) CheckReadiness(ctx context.Context) error {
	if err := r.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("document store ping: %w", err)
	}
	return nil
}

// reportDoc is the wire shape of a report document. Exactly one of
// imageUrl/imagePath is set, matching the asset variant; address is absent
// (nil) when annotation never completed.
type reportDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Timestamp int64              `bson:"timestamp"`
	Latitude  float64            `bson:"latitude"`
	Longitude float64            `bson:"longitude"`
	Severity  int32              `bson:"severity"`
	Address   *string            `bson:"address"`
	UserID    string             `bson:"userId"`
	ImageURL  string             `bson:"imageUrl,omitempty"`
	ImagePath string             `bson:"imagePath,omitempty"`
}

func docFromReport(r domain.Report) (reportDoc, error) {
	if err := r.Validate(); err != nil {
		return reportDoc{}, err
	}

	doc := reportDoc{
		Timestamp: r.CapturedAt,
		Latitude:  r.Location.Lat,
		Longitude: r.Location.Lon,
		Severity:  int32(r.Severity),
		UserID:    r.OwnerID,
	}
	if r.Address != "" {
		addr := r.Address
		doc.Address = &addr
	}
	switch r.Asset.Kind {
	case domain.AssetLocal:
		doc.ImagePath = r.Asset.Path
	default:
		doc.ImageURL = r.Asset.URL
	}
	return doc, nil
}

func (d reportDoc) toReport() domain.Report {
	r := domain.Report{
		ID:         d.ID.Hex(),
		OwnerID:    d.UserID,
		CapturedAt: d.Timestamp,
		Location:   domain.Point{Lat: d.Latitude, Lon: d.Longitude},
		Severity:   domain.ParseSeverity(d.Severity),
	}
	if d.Address != nil {
		r.Address = *d.Address
	}
	// Remote URL wins for legacy documents that carry both fields.
	if d.ImageURL != "" {
		r.Asset = domain.RemoteAsset(d.ImageURL)
	} else if d.ImagePath != "" {
		r.Asset = domain.LocalAsset(d.ImagePath)
	}
	return r
}

// Create inserts a new report document and returns the assigned id.
func (r *Repository) Create(ctx context.Context, report domain.Report) (string, error) {
	doc, err := docFromReport(report)
	if err != nil {
		return "", err
	}

	res, err := r.col.InsertOne(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("%w: insert: %v", domain.ErrRemoteUnavailable, err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
	}
	return oid.Hex(), nil
}

// QueryByOwner returns the owner's reports, newest first.
func (r *Repository) QueryByOwner(ctx context.Context, ownerID string) ([]domain.Report, error) {
	return r.query(ctx, bson.M{"userId": ownerID})
}

// QueryNotOwner returns every report the owner did not submit, newest
// first. Together with QueryByOwner this partitions the collection.
func (r *Repository) QueryNotOwner(ctx context.Context, ownerID string) ([]domain.Report, error) {
	return r.query(ctx, bson.M{"userId": bson.M{"$ne": ownerID}})
}

// QueryAll returns every report, newest first.
func (r *Repository) QueryAll(ctx context.Context) ([]domain.Report, error) {
	return r.query(ctx, bson.M{})
}

func (r *Repository) query(ctx context.Context, filter bson.M) ([]domain.Report, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "timestamp", Value: -1},
		{Key: "_id", Value: -1},
	})

	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: find: %v", domain.ErrRemoteUnavailable, err)
	}
	defer cur.Close(ctx)

	var docs []reportDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", domain.ErrRemoteUnavailable, err)
	}

	reports := make([]domain.Report, 0, len(docs))
	for _, d := range docs {
		reports = append(reports, d.toReport())
	}
	return reports, nil
}

// Delete removes one report by id. Ids that never existed (including
// malformed ones) and ids already deleted are not errors.
func (r *Repository) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil
	}
	if _, err := r.col.DeleteOne(ctx, bson.M{"_id": oid}); err != nil {
		return fmt.Errorf("%w: delete: %v", domain.ErrRemoteUnavailable, err)
	}
	return nil
}

// DeleteBatch removes the given ids in a single DeleteMany command. The
// store applies the whole batch or reports a transport failure; in the
// failure case remote state is unknown and the caller must re-query.
func (r *Repository) DeleteBatch(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			continue
		}
		oids = append(oids, oid)
	}
	if len(oids) == 0 {
		return nil
	}

	res, err := r.col.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPartialBatchFailure, err)
	}
	r.logger.Debug("batch delete applied", "requested", len(oids), "deleted", res.DeletedCount)
	return nil
}
