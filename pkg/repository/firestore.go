package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/efemerides-ve/efemerides/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

const DefaultFirestoreCollection = "ephemerides"

// Firestore implements Repository using Cloud Firestore. Queries filtering on
// display_date and ordering by priority/created_at need a composite index.
type Firestore struct {
	client     *firestore.Client
	collection string
	now        func() time.Time
}

type FirestoreOption func(*Firestore)

func WithFirestoreCollection(name string) FirestoreOption {
	return func(f *Firestore) {
		if name != "" {
			f.collection = name
		}
	}
}

// NewFirestore creates a new Firestore repository
func NewFirestore(ctx context.Context, projectID, databaseID string, opts ...FirestoreOption) (*Firestore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project", projectID),
			goerr.V("database", databaseID))
	}

	f := &Firestore{
		client:     client,
		collection: DefaultFirestoreCollection,
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

// Close releases the underlying client
func (f *Firestore) Close() error {
	return f.client.Close()
}

func (f *Firestore) ListByDate(ctx context.Context, date model.Date) ([]*model.Ephemeris, error) {
	docs, err := f.client.Collection(f.collection).
		Where("display_date", "==", date.String()).
		OrderBy("priority", firestore.Desc).
		OrderBy("created_at", firestore.Asc).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, goerr.Wrap(model.ErrUpstreamFailure, "failed to query ephemerides",
			goerr.V("date", date),
			goerr.V("error", err.Error()))
	}

	records, err := decodeDocs(docs)
	if err != nil {
		return nil, err
	}
	model.SortEphemerides(records)
	return records, nil
}

func (f *Firestore) Latest(ctx context.Context) (*model.Ephemeris, error) {
	docs, err := f.client.Collection(f.collection).
		OrderBy("display_date", firestore.Desc).
		OrderBy("priority", firestore.Desc).
		OrderBy("created_at", firestore.Asc).
		Limit(1).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, goerr.Wrap(model.ErrUpstreamFailure, "failed to query latest ephemeris",
			goerr.V("error", err.Error()))
	}

	if len(docs) == 0 {
		return nil, nil
	}

	records, err := decodeDocs(docs)
	if err != nil {
		return nil, err
	}
	return records[0], nil
}

func (f *Firestore) Insert(ctx context.Context, ephemeris *model.Ephemeris) (*model.Ephemeris, error) {
	stored := *ephemeris
	if stored.ID == "" {
		stored.ID = model.NewEphemerisID()
	}
	now := f.now().UTC()
	stored.CreatedAt = &now
	stored.UpdatedAt = &now

	doc := f.client.Collection(f.collection).Doc(string(stored.ID))
	if _, err := doc.Create(ctx, &stored); err != nil {
		return nil, goerr.Wrap(model.ErrUpstreamFailure, "failed to create ephemeris document",
			goerr.V("id", stored.ID),
			goerr.V("error", err.Error()))
	}

	return &stored, nil
}

func (f *Firestore) DeleteByDate(ctx context.Context, date model.Date) (int, error) {
	docs, err := f.client.Collection(f.collection).
		Where("display_date", "==", date.String()).
		Documents(ctx).GetAll()
	if err != nil {
		return 0, goerr.Wrap(model.ErrUpstreamFailure, "failed to query ephemerides for deletion",
			goerr.V("date", date),
			goerr.V("error", err.Error()))
	}

	if len(docs) == 0 {
		return 0, nil
	}

	bw := f.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(docs))
	for _, doc := range docs {
		job, err := bw.Delete(doc.Ref)
		if err != nil {
			bw.End()
			return 0, goerr.Wrap(err, "failed to enqueue delete", goerr.V("id", doc.Ref.ID))
		}
		jobs = append(jobs, job)
	}
	bw.End()

	deleted := 0
	for i, job := range jobs {
		if _, err := job.Results(); err != nil {
			return deleted, goerr.Wrap(model.ErrUpstreamFailure, "failed to delete ephemeris document",
				goerr.V("id", docs[i].Ref.ID),
				goerr.V("error", err.Error()))
		}
		deleted++
	}

	return deleted, nil
}

func decodeDocs(docs []*firestore.DocumentSnapshot) ([]*model.Ephemeris, error) {
	records := make([]*model.Ephemeris, 0, len(docs))
	for _, doc := range docs {
		var e model.Ephemeris
		if err := doc.DataTo(&e); err != nil {
			return nil, goerr.Wrap(err, "failed to decode ephemeris document", goerr.V("id", doc.Ref.ID))
		}
		e.ID = model.EphemerisID(doc.Ref.ID)
		records = append(records, &e)
	}
	return records, nil
}
