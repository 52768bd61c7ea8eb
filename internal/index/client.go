// Package index wraps the vector store holding face embeddings. Records are
// keyed by (target_id, photo_id); consistency with the relational photo set
// is maintained by the enrollment layer re-deriving vector state after every
// photo mutation, not by any cross-store transaction.
package index

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// Record is one embedding owned by a target photo.
type Record struct {
	PhotoID    uuid.UUID
	Vector     []float32
	Confidence float32
}

// Match is one search hit, scored 0..1 (cosine similarity).
type Match struct {
	TargetID uuid.UUID `json:"target_id"`
	PhotoID  uuid.UUID `json:"photo_id"`
	Score    float32   `json:"score"`
}

// Status summarizes the index contents.
type Status struct {
	Records   int `json:"records"`
	Targets   int `json:"targets"`
	Dimension int `json:"dimension"`
}

const Dimension = 512

type Client struct {
	pool *pgxpool.Pool
}

func NewClient(pool *pgxpool.Pool) *Client {
	return &Client{pool: pool}
}

// Upsert writes the record for (targetID, photoID), replacing any previous
// one. Last write wins.
func (c *Client) Upsert(ctx context.Context, targetID, photoID uuid.UUID, vector []float32, confidence float32) error {
	vec := pgvector.NewVector(vector)
	_, err := c.pool.Exec(ctx,
		`INSERT INTO face_index (target_id, photo_id, embedding, confidence)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (target_id, photo_id)
		 DO UPDATE SET embedding = EXCLUDED.embedding, confidence = EXCLUDED.confidence`,
		targetID, photoID, vec, confidence)
	if err != nil {
		return fmt.Errorf("upsert embedding: %w", err)
	}
	return nil
}

// ReplaceTarget atomically swaps all records for a target with the given
// set. This is the recompute primitive used after photo mutations.
func (c *Client) ReplaceTarget(ctx context.Context, targetID uuid.UUID, records []Record) error {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM face_index WHERE target_id = $1`, targetID); err != nil {
		return fmt.Errorf("clear target records: %w", err)
	}

	for _, rec := range records {
		vec := pgvector.NewVector(rec.Vector)
		if _, err := tx.Exec(ctx,
			`INSERT INTO face_index (target_id, photo_id, embedding, confidence) VALUES ($1, $2, $3, $4)`,
			targetID, rec.PhotoID, vec, rec.Confidence); err != nil {
			return fmt.Errorf("insert record for photo %s: %w", rec.PhotoID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit replace: %w", err)
	}
	return nil
}

// Search returns up to k neighbours with similarity >= threshold, ordered
// by descending similarity.
func (c *Client) Search(ctx context.Context, vector []float32, k int, threshold float64) ([]Match, error) {
	if k <= 0 {
		k = 10
	}
	vec := pgvector.NewVector(vector)

	rows, err := c.pool.Query(ctx,
		`SELECT target_id, photo_id, 1 - (embedding <=> $1) AS score
		 FROM face_index
		 WHERE 1 - (embedding <=> $1) >= $2
		 ORDER BY embedding <=> $1
		 LIMIT $3`,
		vec, threshold, k)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.TargetID, &m.PhotoID, &m.Score); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// DeleteByPhoto removes the record for a single photo.
func (c *Client) DeleteByPhoto(ctx context.Context, targetID, photoID uuid.UUID) error {
	_, err := c.pool.Exec(ctx,
		`DELETE FROM face_index WHERE target_id = $1 AND photo_id = $2`, targetID, photoID)
	if err != nil {
		return fmt.Errorf("delete photo record: %w", err)
	}
	return nil
}

// DeleteByTarget removes all records for a target and reports how many.
func (c *Client) DeleteByTarget(ctx context.Context, targetID uuid.UUID) (int64, error) {
	tag, err := c.pool.Exec(ctx, `DELETE FROM face_index WHERE target_id = $1`, targetID)
	if err != nil {
		return 0, fmt.Errorf("delete target records: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListByTarget returns the photo ids currently indexed for a target.
func (c *Client) ListByTarget(ctx context.Context, targetID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := c.pool.Query(ctx,
		`SELECT photo_id FROM face_index WHERE target_id = $1`, targetID)
	if err != nil {
		return nil, fmt.Errorf("list target records: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan photo id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Status reports record and target counts for the status endpoint.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	st := &Status{Dimension: Dimension}
	err := c.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT target_id) FROM face_index`,
	).Scan(&st.Records, &st.Targets)
	if err != nil {
		return nil, fmt.Errorf("index status: %w", err)
	}
	return st, nil
}
