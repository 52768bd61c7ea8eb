package enroll

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/watchtower/internal/index"
	"github.com/your-org/watchtower/internal/media"
	"github.com/your-org/watchtower/internal/models"
	"github.com/your-org/watchtower/internal/observability"
	"github.com/your-org/watchtower/internal/storage"
	"github.com/your-org/watchtower/internal/vision"
)

// ErrLastPhoto is returned when deleting a photo would leave an enrolled
// target with an empty gallery.
var ErrLastPhoto = errors.New("cannot delete the last photo of a target")

// FaceEmbedder is the face adapter surface the service needs.
type FaceEmbedder interface {
	EmbedLargest(imageData []byte) (*vision.Face, error)
}

// Index is the vector index surface the service needs.
type Index interface {
	Upsert(ctx context.Context, targetID, photoID uuid.UUID, vector []float32, confidence float32) error
	ReplaceTarget(ctx context.Context, targetID uuid.UUID, records []index.Record) error
	Search(ctx context.Context, vector []float32, limit int, threshold float64) ([]index.Match, error)
	DeleteByPhoto(ctx context.Context, targetID, photoID uuid.UUID) error
	DeleteByTarget(ctx context.Context, targetID uuid.UUID) (int64, error)
	ListByTarget(ctx context.Context, targetID uuid.UUID) ([]uuid.UUID, error)
}

// Store is the relational storage surface the service needs.
type Store interface {
	GetTarget(ctx context.Context, id uuid.UUID) (*models.Target, error)
	CreatePhoto(ctx context.Context, photo *models.TargetPhoto) error
	GetPhoto(ctx context.Context, targetID, photoID uuid.UUID) (*models.TargetPhoto, error)
	UpdatePhoto(ctx context.Context, photo *models.TargetPhoto) error
	ListPhotos(ctx context.Context, targetID uuid.UUID) ([]models.TargetPhoto, error)
	CountPhotos(ctx context.Context, targetID uuid.UUID) (int, error)
	DeletePhoto(ctx context.Context, targetID, photoID uuid.UUID) error
	GetTargetsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Target, error)
	GetPhotosByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.TargetPhoto, error)
}

// ObjectStore is the blob storage surface the service needs.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
	GetObject(ctx context.Context, key string) ([]byte, error)
	DeleteObject(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// Match is one search hit joined with its watchlist rows.
type Match struct {
	Target *models.Target
	Photo  *models.TargetPhoto
	Score  float64
}

// Service orchestrates target photo enrollment and identity search. The
// vector index is kept consistent with the photo gallery by recomputing a
// target's full record set on every photo mutation.
type Service struct {
	store           Store
	objects         ObjectStore
	faces           FaceEmbedder
	index           Index
	searchLimit     int
	searchThreshold float64
}

func NewService(store Store, objects ObjectStore, faces FaceEmbedder, idx Index, searchLimit int, searchThreshold float64) *Service {
	return &Service{
		store:           store,
		objects:         objects,
		faces:           faces,
		index:           idx,
		searchLimit:     searchLimit,
		searchThreshold: searchThreshold,
	}
}

// AddPhoto enrolls a new gallery photo. The image must contain at least one
// detectable face; the target's index records are recomputed afterwards.
func (s *Service) AddPhoto(ctx context.Context, targetID uuid.UUID, data []byte, contentType string) (*models.TargetPhoto, error) {
	target, err := s.store.GetTarget(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, storage.ErrNotFound
	}

	// Reject unusable photos before anything is persisted.
	if _, err := s.faces.EmbedLargest(data); err != nil {
		return nil, err
	}

	photoID := uuid.New()
	key := fmt.Sprintf("targets/%s/%s%s", targetID, photoID, extensionFor(contentType))

	if err := s.objects.PutObject(ctx, key, data, contentType); err != nil {
		return nil, fmt.Errorf("store photo: %w", err)
	}

	photo := &models.TargetPhoto{
		ID:          photoID,
		TargetID:    targetID,
		ObjectKey:   key,
		ContentType: contentType,
		TakenAt:     media.TakenAt(bytes.NewReader(data)),
		UploadedAt:  time.Now().UTC(),
	}
	if err := s.store.CreatePhoto(ctx, photo); err != nil {
		if delErr := s.objects.DeleteObject(ctx, key); delErr != nil {
			slog.Warn("orphaned photo object", "key", key, "error", delErr)
		}
		return nil, err
	}

	if err := s.recompute(ctx, targetID, "photo_added"); err != nil {
		return nil, err
	}
	return photo, nil
}

// ReplacePhoto swaps a gallery photo's image bytes for new ones. Like
// AddPhoto the new image must contain a face, and the target's index records
// are recomputed from the full gallery afterwards.
func (s *Service) ReplacePhoto(ctx context.Context, targetID, photoID uuid.UUID, data []byte, contentType string) (*models.TargetPhoto, error) {
	photo, err := s.store.GetPhoto(ctx, targetID, photoID)
	if err != nil {
		return nil, err
	}
	if photo == nil {
		return nil, storage.ErrNotFound
	}

	if _, err := s.faces.EmbedLargest(data); err != nil {
		return nil, err
	}

	oldKey := photo.ObjectKey
	key := fmt.Sprintf("targets/%s/%s%s", targetID, photoID, extensionFor(contentType))
	if err := s.objects.PutObject(ctx, key, data, contentType); err != nil {
		return nil, fmt.Errorf("store photo: %w", err)
	}

	photo.ObjectKey = key
	photo.ContentType = contentType
	photo.TakenAt = media.TakenAt(bytes.NewReader(data))
	if err := s.store.UpdatePhoto(ctx, photo); err != nil {
		return nil, err
	}
	if oldKey != key {
		if err := s.objects.DeleteObject(ctx, oldKey); err != nil {
			slog.Warn("delete replaced photo object", "key", oldKey, "error", err)
		}
	}

	if err := s.recompute(ctx, targetID, "photo_updated"); err != nil {
		return nil, err
	}
	return photo, nil
}

// DeletePhoto removes a gallery photo. A target that has index records must
// keep at least one photo, so deleting the last one is rejected.
func (s *Service) DeletePhoto(ctx context.Context, targetID, photoID uuid.UUID) error {
	photo, err := s.store.GetPhoto(ctx, targetID, photoID)
	if err != nil {
		return err
	}
	if photo == nil {
		return storage.ErrNotFound
	}

	count, err := s.store.CountPhotos(ctx, targetID)
	if err != nil {
		return err
	}
	if count <= 1 {
		return ErrLastPhoto
	}

	if err := s.store.DeletePhoto(ctx, targetID, photoID); err != nil {
		return err
	}
	if err := s.objects.DeleteObject(ctx, photo.ObjectKey); err != nil {
		slog.Warn("delete photo object", "key", photo.ObjectKey, "error", err)
	}

	return s.recompute(ctx, targetID, "photo_deleted")
}

// RemoveTarget cleans up everything enrollment owns for a target: index
// records and photo objects. The relational rows cascade in the store.
func (s *Service) RemoveTarget(ctx context.Context, targetID uuid.UUID) error {
	removed, err := s.index.DeleteByTarget(ctx, targetID)
	if err != nil {
		return fmt.Errorf("purge index: %w", err)
	}
	if removed > 0 {
		slog.Info("purged index records", "target_id", targetID, "records", removed)
	}
	if err := s.objects.DeletePrefix(ctx, fmt.Sprintf("targets/%s/", targetID)); err != nil {
		slog.Warn("delete photo objects", "target_id", targetID, "error", err)
	}
	return nil
}

// PurgeIndex drops a target's index records without touching its gallery.
// The next photo mutation re-enrolls the target.
func (s *Service) PurgeIndex(ctx context.Context, targetID uuid.UUID) (int64, error) {
	target, err := s.store.GetTarget(ctx, targetID)
	if err != nil {
		return 0, err
	}
	if target == nil {
		return 0, storage.ErrNotFound
	}
	return s.index.DeleteByTarget(ctx, targetID)
}

// Reconcile repairs drift between a target's gallery and its index records.
// Photo mutations recompute the whole target, but that window is unguarded;
// a concurrent edit can leave orphaned or missing records behind. Reconcile
// deletes records whose photo is gone and enrolls photos that have no
// record, leaving matching entries untouched. Returns how many records were
// added and removed.
func (s *Service) Reconcile(ctx context.Context, targetID uuid.UUID) (added, removed int, err error) {
	target, err := s.store.GetTarget(ctx, targetID)
	if err != nil {
		return 0, 0, err
	}
	if target == nil {
		return 0, 0, storage.ErrNotFound
	}

	photos, err := s.store.ListPhotos(ctx, targetID)
	if err != nil {
		return 0, 0, err
	}
	indexed, err := s.index.ListByTarget(ctx, targetID)
	if err != nil {
		return 0, 0, fmt.Errorf("list index records: %w", err)
	}

	gallery := make(map[uuid.UUID]bool, len(photos))
	for _, p := range photos {
		gallery[p.ID] = true
	}
	known := make(map[uuid.UUID]bool, len(indexed))
	for _, id := range indexed {
		known[id] = true
		if gallery[id] {
			continue
		}
		if err := s.index.DeleteByPhoto(ctx, targetID, id); err != nil {
			return added, removed, fmt.Errorf("delete orphaned record: %w", err)
		}
		removed++
	}

	for _, photo := range photos {
		if known[photo.ID] {
			continue
		}
		data, err := s.objects.GetObject(ctx, photo.ObjectKey)
		if err != nil {
			slog.Warn("fetch photo for reconcile", "photo_id", photo.ID, "error", err)
			continue
		}
		face, err := s.faces.EmbedLargest(data)
		if err != nil {
			slog.Warn("embed photo for reconcile", "photo_id", photo.ID, "error", err)
			continue
		}
		if err := s.index.Upsert(ctx, targetID, photo.ID, face.Embedding, face.Confidence); err != nil {
			return added, removed, fmt.Errorf("upsert record: %w", err)
		}
		added++
	}

	if added > 0 || removed > 0 {
		slog.Info("reconciled target index", "target_id", targetID, "added", added, "removed", removed)
	}
	return added, removed, nil
}

// Search embeds the probe image and returns ranked watchlist matches. The
// probe must contain a detectable face. Rows that vanished between the index
// lookup and the join are dropped silently.
func (s *Service) Search(ctx context.Context, imageData []byte, limit int, threshold float64) ([]Match, error) {
	face, err := s.faces.EmbedLargest(imageData)
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = s.searchLimit
	}
	if threshold <= 0 {
		threshold = s.searchThreshold
	}

	hits, err := s.index.Search(ctx, face.Embedding, limit, threshold)
	if err != nil {
		return nil, fmt.Errorf("index search: %w", err)
	}
	observability.SearchesTotal.Inc()
	if len(hits) == 0 {
		return []Match{}, nil
	}

	targetIDs := make([]uuid.UUID, 0, len(hits))
	photoIDs := make([]uuid.UUID, 0, len(hits))
	for _, h := range hits {
		targetIDs = append(targetIDs, h.TargetID)
		photoIDs = append(photoIDs, h.PhotoID)
	}

	targets, err := s.store.GetTargetsByIDs(ctx, targetIDs)
	if err != nil {
		return nil, err
	}
	photos, err := s.store.GetPhotosByIDs(ctx, photoIDs)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(hits))
	for _, h := range hits {
		target, okT := targets[h.TargetID]
		photo, okP := photos[h.PhotoID]
		if !okT || !okP {
			continue
		}
		matches = append(matches, Match{Target: &target, Photo: &photo, Score: float64(h.Score)})
	}
	return matches, nil
}

// recompute rebuilds the target's index records from its current gallery.
// Photos that no longer yield a face are skipped with a warning so one bad
// image cannot wedge the whole target.
func (s *Service) recompute(ctx context.Context, targetID uuid.UUID, trigger string) error {
	photos, err := s.store.ListPhotos(ctx, targetID)
	if err != nil {
		return err
	}

	records := make([]index.Record, 0, len(photos))
	for _, photo := range photos {
		data, err := s.objects.GetObject(ctx, photo.ObjectKey)
		if err != nil {
			slog.Warn("fetch photo for recompute", "photo_id", photo.ID, "error", err)
			continue
		}
		face, err := s.faces.EmbedLargest(data)
		if err != nil {
			slog.Warn("embed photo for recompute", "photo_id", photo.ID, "error", err)
			continue
		}
		records = append(records, index.Record{
			PhotoID:    photo.ID,
			Vector:     face.Embedding,
			Confidence: face.Confidence,
		})
	}

	if err := s.index.ReplaceTarget(ctx, targetID, records); err != nil {
		return fmt.Errorf("replace index records: %w", err)
	}
	observability.TargetRecomputes.WithLabelValues(trigger).Inc()
	slog.Info("recomputed target index", "target_id", targetID, "records", len(records), "trigger", trigger)
	return nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
