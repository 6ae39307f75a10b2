package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/formbricks/collections/internal/models"
)

// Schema creates the tables used by PostgresCollections. The centroid is stored as halfvec
// (2 bytes per dimension) without a fixed width so any embedding backend fits.
const Schema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS collections (
	id          uuid PRIMARY KEY,
	owner_id    text NOT NULL,
	title       text NOT NULL,
	description text NOT NULL DEFAULT '',
	palette     text[] NOT NULL DEFAULT '{}',
	tags        text[] NOT NULL DEFAULT '{}',
	moods       text[] NOT NULL DEFAULT '{}',
	centroid    halfvec,
	created_at  timestamptz NOT NULL DEFAULT now(),
	updated_at  timestamptz NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS collections_owner_idx ON collections (owner_id, created_at);

CREATE TABLE IF NOT EXISTS collection_images (
	collection_id uuid NOT NULL REFERENCES collections (id) ON DELETE CASCADE,
	position      int  NOT NULL,
	image_id      text NOT NULL,
	url           text NOT NULL,
	alt           text NOT NULL DEFAULT '',
	PRIMARY KEY (collection_id, position)
);

CREATE TABLE IF NOT EXISTS image_blobs (
	path       text PRIMARY KEY,
	owner_id   text NOT NULL,
	data       bytea NOT NULL,
	created_at timestamptz NOT NULL DEFAULT now()
);
`

// errHalfvecScanInvalidType is returned when Scan receives a type other than []byte or string.
var errHalfvecScanInvalidType = errors.New("centroid: expected []byte or string")

// nullableCentroid scans the text form of a halfvec column that may be NULL.
type nullableCentroid []float32

func (n *nullableCentroid) Scan(src any) error {
	var text string

	switch v := src.(type) {
	case nil:
		*n = nil

		return nil
	case []byte:
		text = string(v)
	case string:
		text = v
	default:
		return fmt.Errorf("%w: got %T", errHalfvecScanInvalidType, src)
	}

	if text == "" {
		*n = nil

		return nil
	}

	var vec pgvector.HalfVector
	if err := vec.Parse(text); err != nil {
		return fmt.Errorf("centroid parse: %w", err)
	}

	*n = vec.Slice()

	return nil
}

// PostgresCollections persists collections with pgx. Register pgvector types on the pool
// (database.WithAfterConnect(pgxvec.RegisterTypes)) before use.
type PostgresCollections struct {
	db *pgxpool.Pool
}

// NewPostgresCollections creates a new collections repository.
func NewPostgresCollections(db *pgxpool.Pool) *PostgresCollections {
	return &PostgresCollections{db: db}
}

// Migrate applies Schema.
func (r *PostgresCollections) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply collections schema: %w", err)
	}

	return nil
}

// PutImage stores the bytes and returns their path.
func (r *PostgresCollections) PutImage(ctx context.Context, ownerID, clusterID string, data []byte, filename string) (string, error) {
	if ownerID == "" {
		return "", ErrInvalidOwner
	}

	p := ImagePath(ownerID, clusterID, filename)

	_, err := r.db.Exec(ctx,
		`INSERT INTO image_blobs (path, owner_id, data) VALUES ($1, $2, $3)`,
		p, ownerID, data,
	)
	if err != nil {
		return "", fmt.Errorf("put image: %w", err)
	}

	return p, nil
}

// PutClusterRecord upserts the collection and replaces its image list in one transaction.
func (r *PostgresCollections) PutClusterRecord(ctx context.Context, ownerID string, record models.ClusterRecord) (string, error) {
	if ownerID == "" {
		return "", ErrInvalidOwner
	}

	id, err := uuid.Parse(record.ID)
	if err != nil {
		return "", fmt.Errorf("invalid collection id %q: %w", record.ID, err)
	}

	var centroid *pgvector.HalfVector
	if len(record.Centroid) > 0 {
		v := pgvector.NewHalfVector(record.Centroid)
		centroid = &v
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}

	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		INSERT INTO collections (id, owner_id, title, description, palette, tags, moods, centroid, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			palette = EXCLUDED.palette,
			tags = EXCLUDED.tags,
			moods = EXCLUDED.moods,
			centroid = EXCLUDED.centroid,
			updated_at = EXCLUDED.updated_at
		WHERE collections.owner_id = EXCLUDED.owner_id`,
		id, ownerID, record.Title, record.Description,
		nonNil(record.Palette), nonNil(record.Tags), nonNil(record.Moods), centroid, time.Now(),
	)
	if err != nil {
		return "", fmt.Errorf("upsert collection: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return "", ErrCollectionNotFound
	}

	if _, err := tx.Exec(ctx, `DELETE FROM collection_images WHERE collection_id = $1`, id); err != nil {
		return "", fmt.Errorf("clear collection images: %w", err)
	}

	batch := &pgx.Batch{}
	for i, img := range record.Images {
		batch.Queue(
			`INSERT INTO collection_images (collection_id, position, image_id, url, alt) VALUES ($1, $2, $3, $4, $5)`,
			id, i, img.ID, img.URL, img.Alt,
		)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return "", fmt.Errorf("insert collection images: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit collection: %w", err)
	}

	return record.ID, nil
}

// ListClusters returns the owner's collections in creation order.
func (r *PostgresCollections) ListClusters(ctx context.Context, ownerID string) ([]models.ClusterRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, title, description, palette, tags, moods, centroid::text
		FROM collections
		WHERE owner_id = $1
		ORDER BY created_at, id`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	var (
		records []models.ClusterRecord
		index   = make(map[uuid.UUID]int)
		ids     []string
	)

	for rows.Next() {
		var (
			id       uuid.UUID
			rec      models.ClusterRecord
			centroid nullableCentroid
		)

		if err := rows.Scan(&id, &rec.Title, &rec.Description, &rec.Palette, &rec.Tags, &rec.Moods, &centroid); err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}

		rec.ID = id.String()
		rec.Centroid = centroid
		rec.Images = []models.ImageRef{}
		index[id] = len(records)
		ids = append(ids, id.String())
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating collections: %w", err)
	}

	if len(records) == 0 {
		return []models.ClusterRecord{}, nil
	}

	imgRows, err := r.db.Query(ctx, `
		SELECT collection_id, image_id, url, alt
		FROM collection_images
		WHERE collection_id = ANY($1::uuid[])
		ORDER BY collection_id, position`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("list collection images: %w", err)
	}
	defer imgRows.Close()

	for imgRows.Next() {
		var (
			collectionID uuid.UUID
			img          models.ImageRef
		)

		if err := imgRows.Scan(&collectionID, &img.ID, &img.URL, &img.Alt); err != nil {
			return nil, fmt.Errorf("scan collection image: %w", err)
		}

		i := index[collectionID]
		records[i].Images = append(records[i].Images, img)
	}

	if err := imgRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating collection images: %w", err)
	}

	return records, nil
}

// DeleteCluster removes a collection, its image list and the stored image bytes.
func (r *PostgresCollections) DeleteCluster(ctx context.Context, ownerID, clusterID string) error {
	id, err := uuid.Parse(clusterID)
	if err != nil {
		return ErrCollectionNotFound
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		DELETE FROM image_blobs
		WHERE path IN (SELECT url FROM collection_images WHERE collection_id = $1)
		  AND owner_id = $2`,
		id, ownerID,
	)
	if err != nil {
		return fmt.Errorf("delete collection images: %w", err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM collections WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrCollectionNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}

	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}

	return s
}
