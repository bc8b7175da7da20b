package database

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Joshlanuevo/ferry-api/internal/config"
)

// FirestoreDocumentStore stores documents in Cloud Firestore collections.
// Documents are converted through JSON so the same struct tags apply to
// every store.
type FirestoreDocumentStore struct {
	client *firestore.Client
}

// NewFirestoreDocumentStore connects through the Firebase admin SDK
func NewFirestoreDocumentStore(ctx context.Context, cfg config.FirebaseConfig) (*FirestoreDocumentStore, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}

	return &FirestoreDocumentStore{client: client}, nil
}

var _ DocumentStore = (*FirestoreDocumentStore)(nil)

// Get loads a document into dst
func (s *FirestoreDocumentStore) Get(ctx context.Context, collection, id string, dst interface{}) error {
	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return ErrDocumentNotFound
		}
		return fmt.Errorf("failed to get document %s/%s: %w", collection, id, err)
	}
	return snapshotInto(snap, dst)
}

// Query returns documents of collection matching opts
func (s *FirestoreDocumentStore) Query(ctx context.Context, collection string, opts QueryOptions) ([]Document, error) {
	q := s.client.Collection(collection).Query
	for _, f := range opts.Filters {
		switch f.Op {
		case OpIn:
			values, _ := f.Value.([]string)
			in := make([]interface{}, 0, len(values))
			for _, v := range values {
				in = append(in, v)
			}
			q = q.Where(f.Field, "in", in)
		default:
			q = q.Where(f.Field, "==", f.Value)
		}
	}
	if opts.OrderBy != "" {
		direction := firestore.Asc
		if opts.Descending {
			direction = firestore.Desc
		}
		q = q.OrderBy(opts.OrderBy, direction)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var docs []Document
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to query %s: %w", collection, err)
		}
		data, err := json.Marshal(snap.Data())
		if err != nil {
			return nil, fmt.Errorf("failed to encode document %s/%s: %w", collection, snap.Ref.ID, err)
		}
		docs = append(docs, Document{ID: snap.Ref.ID, Data: data})
	}
	return docs, nil
}

// Set creates or replaces a document
func (s *FirestoreDocumentStore) Set(ctx context.Context, collection, id string, doc interface{}) error {
	fields, err := toFields(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document %s/%s: %w", collection, id, err)
	}
	if _, err := s.client.Collection(collection).Doc(id).Set(ctx, fields); err != nil {
		return fmt.Errorf("failed to set document %s/%s: %w", collection, id, err)
	}
	return nil
}

// Delete removes a document
func (s *FirestoreDocumentStore) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.client.Collection(collection).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete document %s/%s: %w", collection, id, err)
	}
	return nil
}

// RunInTransaction runs fn in a Firestore transaction. Firestore retries fn
// on contention and requires every read to happen before the first write.
func (s *FirestoreDocumentStore) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx DocumentTx) error) error {
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		return fn(ctx, &firestoreTx{client: s.client, tx: tx})
	})
	if err != nil && status.Code(err) == codes.AlreadyExists {
		return ErrDocumentExists
	}
	return err
}

// Ping reads a sentinel document to verify connectivity
func (s *FirestoreDocumentStore) Ping(ctx context.Context) error {
	_, err := s.client.Collection("_health").Doc("ping").Get(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return err
	}
	return nil
}

// Close releases the client
func (s *FirestoreDocumentStore) Close() error {
	return s.client.Close()
}

type firestoreTx struct {
	client *firestore.Client
	tx     *firestore.Transaction
}

func (t *firestoreTx) Get(collection, id string, dst interface{}) error {
	snap, err := t.tx.Get(t.client.Collection(collection).Doc(id))
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return ErrDocumentNotFound
		}
		return fmt.Errorf("failed to get document %s/%s: %w", collection, id, err)
	}
	return snapshotInto(snap, dst)
}

func (t *firestoreTx) Create(collection, id string, doc interface{}) error {
	fields, err := toFields(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document %s/%s: %w", collection, id, err)
	}
	// Create conflicts surface when the transaction commits
	return t.tx.Create(t.client.Collection(collection).Doc(id), fields)
}

func (t *firestoreTx) Set(collection, id string, doc interface{}) error {
	fields, err := toFields(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document %s/%s: %w", collection, id, err)
	}
	return t.tx.Set(t.client.Collection(collection).Doc(id), fields)
}

func (t *firestoreTx) Delete(collection, id string) error {
	return t.tx.Delete(t.client.Collection(collection).Doc(id))
}

func toFields(doc interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func snapshotInto(snap *firestore.DocumentSnapshot, dst interface{}) error {
	data, err := json.Marshal(snap.Data())
	if err != nil {
		return fmt.Errorf("failed to encode document %s: %w", snap.Ref.ID, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to decode document %s: %w", snap.Ref.ID, err)
	}
	return nil
}
