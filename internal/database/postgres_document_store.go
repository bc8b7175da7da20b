package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// documentsSchema creates the single JSONB table backing every collection
const documentsSchema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id TEXT NOT NULL,
	data JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS idx_documents_data ON documents USING GIN (data);
`

// PostgresDocumentStore stores documents as JSONB rows keyed by (collection, id)
type PostgresDocumentStore struct {
	db *sqlx.DB
}

// NewPostgresDocumentStore creates a store on an open pool
func NewPostgresDocumentStore(db *sqlx.DB) *PostgresDocumentStore {
	return &PostgresDocumentStore{db: db}
}

var _ DocumentStore = (*PostgresDocumentStore)(nil)

type documentRow struct {
	ID   string `db:"id"`
	Data []byte `db:"data"`
}

// Migrate creates the documents table if needed
func (s *PostgresDocumentStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, documentsSchema); err != nil {
		return fmt.Errorf("failed to create documents table: %w", err)
	}
	return nil
}

// Get loads a document into dst
func (s *PostgresDocumentStore) Get(ctx context.Context, collection, id string, dst interface{}) error {
	query := `SELECT data FROM documents WHERE collection = $1 AND id = $2`

	var data []byte
	if err := s.db.GetContext(ctx, &data, query, collection, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrDocumentNotFound
		}
		return fmt.Errorf("failed to get document %s/%s: %w", collection, id, err)
	}
	return decodeInto(collection, id, data, dst)
}

// Query returns documents of collection matching opts. Field values are
// compared as text.
func (s *PostgresDocumentStore) Query(ctx context.Context, collection string, opts QueryOptions) ([]Document, error) {
	query, args := buildDocumentQuery(collection, opts)

	var rows []documentRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}

	docs := make([]Document, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, Document{ID: row.ID, Data: json.RawMessage(row.Data)})
	}
	return docs, nil
}

func buildDocumentQuery(collection string, opts QueryOptions) (string, []interface{}) {
	var sb strings.Builder
	args := []interface{}{collection}

	sb.WriteString(`SELECT id, data FROM documents WHERE collection = $1`)
	for _, f := range opts.Filters {
		args = append(args, f.Field)
		fieldArg := len(args)
		switch f.Op {
		case OpIn:
			values, _ := f.Value.([]string)
			args = append(args, pq.Array(values))
			fmt.Fprintf(&sb, ` AND data->>$%d = ANY($%d)`, fieldArg, len(args))
		default:
			args = append(args, textValue(f.Value))
			fmt.Fprintf(&sb, ` AND data->>$%d = $%d`, fieldArg, len(args))
		}
	}

	direction := "ASC"
	if opts.Descending {
		direction = "DESC"
	}
	if opts.OrderBy != "" {
		args = append(args, opts.OrderBy)
		fmt.Fprintf(&sb, ` ORDER BY data->>$%d %s, id`, len(args), direction)
	} else {
		fmt.Fprintf(&sb, ` ORDER BY id %s`, direction)
	}

	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		fmt.Fprintf(&sb, ` LIMIT $%d`, len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		fmt.Fprintf(&sb, ` OFFSET $%d`, len(args))
	}
	return sb.String(), args
}

// Set creates or replaces a document
func (s *PostgresDocumentStore) Set(ctx context.Context, collection, id string, doc interface{}) error {
	return setDocument(ctx, s.db, collection, id, doc)
}

// Delete removes a document. Deleting a missing document is not an error.
func (s *PostgresDocumentStore) Delete(ctx context.Context, collection, id string) error {
	query := `DELETE FROM documents WHERE collection = $1 AND id = $2`
	if _, err := s.db.ExecContext(ctx, query, collection, id); err != nil {
		return fmt.Errorf("failed to delete document %s/%s: %w", collection, id, err)
	}
	return nil
}

// RunInTransaction runs fn in a database transaction. Reads take row locks.
func (s *PostgresDocumentStore) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx DocumentTx) error) error {
	sqlTx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(ctx, &postgresTx{ctx: ctx, tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Ping verifies the connection
func (s *PostgresDocumentStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the pool
func (s *PostgresDocumentStore) Close() error {
	return s.db.Close()
}

type postgresTx struct {
	ctx context.Context
	tx  *sqlx.Tx
}

func (t *postgresTx) Get(collection, id string, dst interface{}) error {
	query := `SELECT data FROM documents WHERE collection = $1 AND id = $2 FOR UPDATE`

	var data []byte
	if err := t.tx.GetContext(t.ctx, &data, query, collection, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrDocumentNotFound
		}
		return fmt.Errorf("failed to get document %s/%s: %w", collection, id, err)
	}
	return decodeInto(collection, id, data, dst)
}

func (t *postgresTx) Create(collection, id string, doc interface{}) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document %s/%s: %w", collection, id, err)
	}

	query := `INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb)`
	if _, err := t.tx.ExecContext(t.ctx, query, collection, id, string(data)); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDocumentExists
		}
		return fmt.Errorf("failed to create document %s/%s: %w", collection, id, err)
	}
	return nil
}

func (t *postgresTx) Set(collection, id string, doc interface{}) error {
	return setDocument(t.ctx, t.tx, collection, id, doc)
}

func (t *postgresTx) Delete(collection, id string) error {
	query := `DELETE FROM documents WHERE collection = $1 AND id = $2`
	if _, err := t.tx.ExecContext(t.ctx, query, collection, id); err != nil {
		return fmt.Errorf("failed to delete document %s/%s: %w", collection, id, err)
	}
	return nil
}

func setDocument(ctx context.Context, exec sqlx.ExecerContext, collection, id string, doc interface{}) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document %s/%s: %w", collection, id, err)
	}

	query := `
		INSERT INTO documents (collection, id, data)
		VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()
	`
	if _, err := exec.ExecContext(ctx, query, collection, id, string(data)); err != nil {
		return fmt.Errorf("failed to set document %s/%s: %w", collection, id, err)
	}
	return nil
}

func decodeInto(collection, id string, data []byte, dst interface{}) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to decode document %s/%s: %w", collection, id, err)
	}
	return nil
}
