package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/your-org/watchtower/internal/config"
	"github.com/your-org/watchtower/internal/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Pool exposes the underlying connection pool so the vector index client
// can share it.
func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

// --- Cases ---

func (s *PostgresStore) CreateCase(ctx context.Context, name, description string) (*models.Case, error) {
	c := &models.Case{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO cases (id, name, description) VALUES ($1, $2, $3) RETURNING created_at, updated_at`,
		c.ID, c.Name, c.Description,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create case: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) GetCase(ctx context.Context, id uuid.UUID) (*models.Case, error) {
	c := &models.Case{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, description, created_at, updated_at FROM cases WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get case: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) ListCases(ctx context.Context) ([]models.Case, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, description, created_at, updated_at FROM cases ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	defer rows.Close()

	var cases []models.Case
	for rows.Next() {
		var c models.Case
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan case: %w", err)
		}
		cases = append(cases, c)
	}
	return cases, nil
}

func (s *PostgresStore) UpdateCase(ctx context.Context, id uuid.UUID, name, description string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE cases SET name = $1, description = $2, updated_at = now() WHERE id = $3`,
		name, description, id)
	if err != nil {
		return fmt.Errorf("update case: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteCase(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM cases WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete case: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Targets ---

func (s *PostgresStore) CreateTarget(ctx context.Context, t *models.Target) error {
	t.ID = uuid.New()
	if t.Status == "" {
		t.Status = models.TargetStatusActive
	}
	if t.Gender == "" {
		t.Gender = models.GenderUnknown
	}
	return s.pool.QueryRow(ctx,
		`INSERT INTO targets (id, case_id, name, gender, status, notes)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at, updated_at`,
		t.ID, t.CaseID, t.Name, t.Gender, t.Status, t.Notes,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
}

func (s *PostgresStore) GetTarget(ctx context.Context, id uuid.UUID) (*models.Target, error) {
	t := &models.Target{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, case_id, name, gender, status, notes, created_at, updated_at
		 FROM targets WHERE id = $1`, id,
	).Scan(&t.ID, &t.CaseID, &t.Name, &t.Gender, &t.Status, &t.Notes, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get target: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) ListTargets(ctx context.Context, caseID *uuid.UUID) ([]models.Target, error) {
	query := `SELECT id, case_id, name, gender, status, notes, created_at, updated_at
		 FROM targets ORDER BY created_at DESC`
	args := []interface{}{}
	if caseID != nil {
		query = `SELECT id, case_id, name, gender, status, notes, created_at, updated_at
		 FROM targets WHERE case_id = $1 ORDER BY created_at DESC`
		args = append(args, *caseID)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	defer rows.Close()

	var targets []models.Target
	for rows.Next() {
		var t models.Target
		if err := rows.Scan(&t.ID, &t.CaseID, &t.Name, &t.Gender, &t.Status, &t.Notes,
			&t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan target: %w", err)
		}
		targets = append(targets, t)
	}
	return targets, nil
}

func (s *PostgresStore) UpdateTarget(ctx context.Context, t *models.Target) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE targets SET name = $1, gender = $2, status = $3, notes = $4, updated_at = now()
		 WHERE id = $5`,
		t.Name, t.Gender, t.Status, t.Notes, t.ID)
	if err != nil {
		return fmt.Errorf("update target: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteTarget(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM targets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete target: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Target photos ---

func (s *PostgresStore) CreatePhoto(ctx context.Context, p *models.TargetPhoto) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return s.pool.QueryRow(ctx,
		`INSERT INTO target_photos (id, target_id, object_key, content_type, taken_at)
		 VALUES ($1, $2, $3, $4, $5) RETURNING uploaded_at`,
		p.ID, p.TargetID, p.ObjectKey, p.ContentType, p.TakenAt,
	).Scan(&p.UploadedAt)
}

func (s *PostgresStore) GetPhoto(ctx context.Context, targetID, photoID uuid.UUID) (*models.TargetPhoto, error) {
	p := &models.TargetPhoto{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, target_id, object_key, content_type, taken_at, uploaded_at
		 FROM target_photos WHERE id = $1 AND target_id = $2`, photoID, targetID,
	).Scan(&p.ID, &p.TargetID, &p.ObjectKey, &p.ContentType, &p.TakenAt, &p.UploadedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get photo: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) UpdatePhoto(ctx context.Context, p *models.TargetPhoto) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE target_photos SET object_key = $1, content_type = $2, taken_at = $3
		 WHERE id = $4 AND target_id = $5`,
		p.ObjectKey, p.ContentType, p.TakenAt, p.ID, p.TargetID)
	if err != nil {
		return fmt.Errorf("update photo: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListPhotos(ctx context.Context, targetID uuid.UUID) ([]models.TargetPhoto, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, target_id, object_key, content_type, taken_at, uploaded_at
		 FROM target_photos WHERE target_id = $1 ORDER BY uploaded_at DESC`, targetID)
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	defer rows.Close()

	var photos []models.TargetPhoto
	for rows.Next() {
		var p models.TargetPhoto
		if err := rows.Scan(&p.ID, &p.TargetID, &p.ObjectKey, &p.ContentType, &p.TakenAt, &p.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		photos = append(photos, p)
	}
	return photos, nil
}

func (s *PostgresStore) CountPhotos(ctx context.Context, targetID uuid.UUID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM target_photos WHERE target_id = $1`, targetID,
	).Scan(&count)
	return count, err
}

func (s *PostgresStore) DeletePhoto(ctx context.Context, targetID, photoID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM target_photos WHERE id = $1 AND target_id = $2`, photoID, targetID)
	if err != nil {
		return fmt.Errorf("delete photo: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetPhotosByIDs fetches photo rows for a set of ids, keyed by id.
// Used to join vector-index hits back to relational rows.
func (s *PostgresStore) GetPhotosByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.TargetPhoto, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]models.TargetPhoto{}, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, target_id, object_key, content_type, taken_at, uploaded_at
		 FROM target_photos WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("get photos by ids: %w", err)
	}
	defer rows.Close()

	photos := make(map[uuid.UUID]models.TargetPhoto, len(ids))
	for rows.Next() {
		var p models.TargetPhoto
		if err := rows.Scan(&p.ID, &p.TargetID, &p.ObjectKey, &p.ContentType, &p.TakenAt, &p.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		photos[p.ID] = p
	}
	return photos, nil
}

func (s *PostgresStore) GetTargetsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Target, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]models.Target{}, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, case_id, name, gender, status, notes, created_at, updated_at
		 FROM targets WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("get targets by ids: %w", err)
	}
	defer rows.Close()

	targets := make(map[uuid.UUID]models.Target, len(ids))
	for rows.Next() {
		var t models.Target
		if err := rows.Scan(&t.ID, &t.CaseID, &t.Name, &t.Gender, &t.Status, &t.Notes,
			&t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan target: %w", err)
		}
		targets[t.ID] = t
	}
	return targets, nil
}

// --- Sources ---

func (s *PostgresStore) CreateSource(ctx context.Context, src *models.Source) error {
	src.ID = uuid.New()
	return s.pool.QueryRow(ctx,
		`INSERT INTO sources (id, kind, name, description, location, latitude, longitude,
		   status, url, access_token, object_key, size_bytes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING created_at, updated_at`,
		src.ID, src.Kind, src.Name, src.Description, src.Location, src.Latitude, src.Longitude,
		src.Status, src.URL, src.AccessToken, src.ObjectKey, src.SizeBytes,
	).Scan(&src.CreatedAt, &src.UpdatedAt)
}

const sourceColumns = `id, kind, name, description, location, latitude, longitude,
	status, url, access_token, object_key, thumb_key,
	duration, width, height, fps, codec, audio_codec, size_bytes,
	error_message, created_at, updated_at`

func scanSource(row pgx.Row) (*models.Source, error) {
	src := &models.Source{}
	err := row.Scan(&src.ID, &src.Kind, &src.Name, &src.Description, &src.Location,
		&src.Latitude, &src.Longitude, &src.Status, &src.URL, &src.AccessToken,
		&src.ObjectKey, &src.ThumbKey, &src.Duration, &src.Width, &src.Height,
		&src.FPS, &src.Codec, &src.AudioCodec, &src.SizeBytes,
		&src.ErrorMessage, &src.CreatedAt, &src.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return src, nil
}

func (s *PostgresStore) GetSource(ctx context.Context, id uuid.UUID) (*models.Source, error) {
	src, err := scanSource(s.pool.QueryRow(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get source: %w", err)
	}
	return src, nil
}

// GetSourceByToken resolves a file source from its access token. Used by
// the unauthenticated integration endpoints.
func (s *PostgresStore) GetSourceByToken(ctx context.Context, token string) (*models.Source, error) {
	src, err := scanSource(s.pool.QueryRow(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE access_token = $1`, token))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get source by token: %w", err)
	}
	return src, nil
}

func (s *PostgresStore) ListSources(ctx context.Context, kind *models.SourceKind) ([]models.Source, error) {
	query := `SELECT ` + sourceColumns + ` FROM sources ORDER BY created_at DESC`
	args := []interface{}{}
	if kind != nil {
		query = `SELECT ` + sourceColumns + ` FROM sources WHERE kind = $1 ORDER BY created_at DESC`
		args = append(args, *kind)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	var sources []models.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		sources = append(sources, *src)
	}
	return sources, nil
}

func (s *PostgresStore) UpdateSource(ctx context.Context, src *models.Source) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE sources SET name = $1, description = $2, location = $3,
		   latitude = $4, longitude = $5, url = $6, updated_at = now()
		 WHERE id = $7`,
		src.Name, src.Description, src.Location, src.Latitude, src.Longitude, src.URL, src.ID)
	if err != nil {
		return fmt.Errorf("update source: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) UpdateSourceStatus(ctx context.Context, id uuid.UUID, status models.SourceStatus, errMsg string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE sources SET status = $1, error_message = $2, updated_at = now() WHERE id = $3`,
		status, errMsg, id)
	return err
}

// UpdateSourceMedia stores the probed metadata and thumbnail key for a
// file source once the media worker has processed it.
func (s *PostgresStore) UpdateSourceMedia(ctx context.Context, src *models.Source) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE sources SET object_key = $1, duration = $2, width = $3, height = $4, fps = $5,
		   codec = $6, audio_codec = $7, size_bytes = $8, thumb_key = $9, updated_at = now()
		 WHERE id = $10`,
		src.ObjectKey, src.Duration, src.Width, src.Height, src.FPS,
		src.Codec, src.AudioCodec, src.SizeBytes, src.ThumbKey, src.ID)
	return err
}

func (s *PostgresStore) DeleteSource(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sources WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete source: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Processing jobs ---

func (s *PostgresStore) CreateJob(ctx context.Context, j *models.ProcessingJob) error {
	j.ID = uuid.New()
	if j.Status == "" {
		j.Status = models.JobStatusPending
	}
	return s.pool.QueryRow(ctx,
		`INSERT INTO processing_jobs (id, source_id, external_job_id, callback_token, status)
		 VALUES ($1, $2, $3, $4, $5) RETURNING submitted_at`,
		j.ID, j.SourceID, j.ExternalJobID, j.CallbackToken, j.Status,
	).Scan(&j.SubmittedAt)
}

func (s *PostgresStore) GetJobByToken(ctx context.Context, token string) (*models.ProcessingJob, error) {
	j := &models.ProcessingJob{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, source_id, external_job_id, callback_token, status, error_message, submitted_at, completed_at
		 FROM processing_jobs WHERE callback_token = $1`, token,
	).Scan(&j.ID, &j.SourceID, &j.ExternalJobID, &j.CallbackToken, &j.Status,
		&j.ErrorMessage, &j.SubmittedAt, &j.CompletedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get job by token: %w", err)
	}
	return j, nil
}

func (s *PostgresStore) ListJobs(ctx context.Context, sourceID uuid.UUID) ([]models.ProcessingJob, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, source_id, external_job_id, callback_token, status, error_message, submitted_at, completed_at
		 FROM processing_jobs WHERE source_id = $1 ORDER BY submitted_at DESC`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.ProcessingJob
	for rows.Next() {
		var j models.ProcessingJob
		if err := rows.Scan(&j.ID, &j.SourceID, &j.ExternalJobID, &j.CallbackToken, &j.Status,
			&j.ErrorMessage, &j.SubmittedAt, &j.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

func (s *PostgresStore) UpdateJobExternalID(ctx context.Context, id uuid.UUID, externalID string, status models.JobStatus) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE processing_jobs SET external_job_id = $1, status = $2 WHERE id = $3`,
		externalID, status, id)
	return err
}

func (s *PostgresStore) CompleteJob(ctx context.Context, id uuid.UUID, status models.JobStatus, errMsg string) error {
	completed := time.Now()
	_, err := s.pool.Exec(ctx,
		`UPDATE processing_jobs SET status = $1, error_message = $2, completed_at = $3 WHERE id = $4`,
		status, errMsg, completed, id)
	return err
}
