package enroll

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/watchtower/internal/index"
	"github.com/your-org/watchtower/internal/models"
	"github.com/your-org/watchtower/internal/storage"
	"github.com/your-org/watchtower/internal/vision"
)

// fakeEmbedder returns a fixed vector per image payload, or ErrNoFace for
// payloads registered as faceless.
type fakeEmbedder struct {
	noFace map[string]bool
}

func (f *fakeEmbedder) EmbedLargest(imageData []byte) (*vision.Face, error) {
	if f.noFace[string(imageData)] {
		return nil, vision.ErrNoFace
	}
	vec := make([]float32, 4)
	for i, b := range imageData {
		vec[i%4] += float32(b)
	}
	return &vision.Face{Embedding: vec, Confidence: 0.9}, nil
}

type fakeIndex struct {
	records map[uuid.UUID][]index.Record
	hits    []index.Match

	lastLimit     int
	lastThreshold float64
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{records: make(map[uuid.UUID][]index.Record)}
}

func (f *fakeIndex) ReplaceTarget(_ context.Context, targetID uuid.UUID, records []index.Record) error {
	f.records[targetID] = records
	return nil
}

func (f *fakeIndex) Search(_ context.Context, _ []float32, limit int, threshold float64) ([]index.Match, error) {
	f.lastLimit = limit
	f.lastThreshold = threshold

	// Mirrors the real index contract: score >= threshold, at most limit hits.
	out := make([]index.Match, 0, len(f.hits))
	for _, h := range f.hits {
		if float64(h.Score) >= threshold {
			out = append(out, h)
		}
	}
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeIndex) Upsert(_ context.Context, targetID, photoID uuid.UUID, vector []float32, confidence float32) error {
	for i, r := range f.records[targetID] {
		if r.PhotoID == photoID {
			f.records[targetID][i] = index.Record{PhotoID: photoID, Vector: vector, Confidence: confidence}
			return nil
		}
	}
	f.records[targetID] = append(f.records[targetID], index.Record{
		PhotoID: photoID, Vector: vector, Confidence: confidence,
	})
	return nil
}

func (f *fakeIndex) DeleteByPhoto(_ context.Context, targetID, photoID uuid.UUID) error {
	records := f.records[targetID]
	for i, r := range records {
		if r.PhotoID == photoID {
			f.records[targetID] = append(records[:i], records[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeIndex) DeleteByTarget(_ context.Context, targetID uuid.UUID) (int64, error) {
	n := int64(len(f.records[targetID]))
	delete(f.records, targetID)
	return n, nil
}

func (f *fakeIndex) ListByTarget(_ context.Context, targetID uuid.UUID) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(f.records[targetID]))
	for _, r := range f.records[targetID] {
		ids = append(ids, r.PhotoID)
	}
	return ids, nil
}

type fakeStore struct {
	targets map[uuid.UUID]*models.Target
	photos  map[uuid.UUID][]models.TargetPhoto
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		targets: make(map[uuid.UUID]*models.Target),
		photos:  make(map[uuid.UUID][]models.TargetPhoto),
	}
}

func (f *fakeStore) GetTarget(_ context.Context, id uuid.UUID) (*models.Target, error) {
	return f.targets[id], nil
}

func (f *fakeStore) CreatePhoto(_ context.Context, photo *models.TargetPhoto) error {
	f.photos[photo.TargetID] = append(f.photos[photo.TargetID], *photo)
	return nil
}

func (f *fakeStore) GetPhoto(_ context.Context, targetID, photoID uuid.UUID) (*models.TargetPhoto, error) {
	for _, p := range f.photos[targetID] {
		if p.ID == photoID {
			return &p, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) UpdatePhoto(_ context.Context, photo *models.TargetPhoto) error {
	photos := f.photos[photo.TargetID]
	for i, p := range photos {
		if p.ID == photo.ID {
			photos[i] = *photo
			return nil
		}
	}
	return storage.ErrNotFound
}

func (f *fakeStore) ListPhotos(_ context.Context, targetID uuid.UUID) ([]models.TargetPhoto, error) {
	return f.photos[targetID], nil
}

func (f *fakeStore) CountPhotos(_ context.Context, targetID uuid.UUID) (int, error) {
	return len(f.photos[targetID]), nil
}

func (f *fakeStore) DeletePhoto(_ context.Context, targetID, photoID uuid.UUID) error {
	photos := f.photos[targetID]
	for i, p := range photos {
		if p.ID == photoID {
			f.photos[targetID] = append(photos[:i], photos[i+1:]...)
			return nil
		}
	}
	return storage.ErrNotFound
}

func (f *fakeStore) GetTargetsByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Target, error) {
	out := make(map[uuid.UUID]models.Target)
	for _, id := range ids {
		if t, ok := f.targets[id]; ok {
			out[id] = *t
		}
	}
	return out, nil
}

func (f *fakeStore) GetPhotosByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]models.TargetPhoto, error) {
	out := make(map[uuid.UUID]models.TargetPhoto)
	for _, photos := range f.photos {
		for _, p := range photos {
			for _, id := range ids {
				if p.ID == id {
					out[id] = p
				}
			}
		}
	}
	return out, nil
}

type fakeObjects struct {
	objects map[string][]byte
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: make(map[string][]byte)}
}

func (f *fakeObjects) PutObject(_ context.Context, key string, data []byte, _ string) error {
	f.objects[key] = data
	return nil
}

func (f *fakeObjects) GetObject(_ context.Context, key string) ([]byte, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return data, nil
}

func (f *fakeObjects) DeleteObject(_ context.Context, key string) error {
	delete(f.objects, key)
	return nil
}

func (f *fakeObjects) DeletePrefix(_ context.Context, prefix string) error {
	for key := range f.objects {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(f.objects, key)
		}
	}
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeStore, *fakeObjects, *fakeEmbedder, *fakeIndex) {
	t.Helper()
	store := newFakeStore()
	objects := newFakeObjects()
	embedder := &fakeEmbedder{noFace: make(map[string]bool)}
	idx := newFakeIndex()
	svc := NewService(store, objects, embedder, idx, 10, 0.4)
	return svc, store, objects, embedder, idx
}

func addTarget(store *fakeStore) uuid.UUID {
	id := uuid.New()
	store.targets[id] = &models.Target{ID: id, Name: "test target"}
	return id
}

func TestAddPhotoRejectsFacelessImage(t *testing.T) {
	svc, store, _, embedder, idx := newTestService(t)
	targetID := addTarget(store)
	embedder.noFace["blank"] = true

	_, err := svc.AddPhoto(context.Background(), targetID, []byte("blank"), "image/jpeg")
	require.ErrorIs(t, err, vision.ErrNoFace)

	// Nothing persisted, nothing indexed.
	assert.Empty(t, store.photos[targetID])
	assert.Empty(t, idx.records[targetID])
}

func TestAddPhotoUnknownTarget(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	_, err := svc.AddPhoto(context.Background(), uuid.New(), []byte("face1"), "image/jpeg")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAddPhotoIndexesEveryGalleryPhoto(t *testing.T) {
	svc, store, _, _, idx := newTestService(t)
	targetID := addTarget(store)

	p1, err := svc.AddPhoto(context.Background(), targetID, []byte("face1"), "image/jpeg")
	require.NoError(t, err)
	p2, err := svc.AddPhoto(context.Background(), targetID, []byte("face2"), "image/png")
	require.NoError(t, err)

	records := idx.records[targetID]
	require.Len(t, records, 2)

	indexed := map[uuid.UUID]bool{}
	for _, r := range records {
		indexed[r.PhotoID] = true
	}
	assert.True(t, indexed[p1.ID])
	assert.True(t, indexed[p2.ID])
}

func TestReplacePhotoRecomputesIndex(t *testing.T) {
	svc, store, objects, _, idx := newTestService(t)
	targetID := addTarget(store)

	photo, err := svc.AddPhoto(context.Background(), targetID, []byte("face1"), "image/jpeg")
	require.NoError(t, err)

	updated, err := svc.ReplacePhoto(context.Background(), targetID, photo.ID, []byte("face2"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, photo.ID, updated.ID)

	// Index still holds exactly one record, derived from the new bytes.
	records := idx.records[targetID]
	require.Len(t, records, 1)
	assert.Equal(t, photo.ID, records[0].PhotoID)

	data, err := objects.GetObject(context.Background(), updated.ObjectKey)
	require.NoError(t, err)
	assert.Equal(t, []byte("face2"), data)
}

func TestReplacePhotoRejectsFacelessImage(t *testing.T) {
	svc, store, objects, embedder, _ := newTestService(t)
	targetID := addTarget(store)

	photo, err := svc.AddPhoto(context.Background(), targetID, []byte("face1"), "image/jpeg")
	require.NoError(t, err)

	embedder.noFace["blank"] = true
	_, err = svc.ReplacePhoto(context.Background(), targetID, photo.ID, []byte("blank"), "image/jpeg")
	require.ErrorIs(t, err, vision.ErrNoFace)

	// Original bytes survive the rejected replacement.
	data, err := objects.GetObject(context.Background(), photo.ObjectKey)
	require.NoError(t, err)
	assert.Equal(t, []byte("face1"), data)
}

func TestReplacePhotoUnknownPhoto(t *testing.T) {
	svc, store, _, _, _ := newTestService(t)
	targetID := addTarget(store)

	_, err := svc.ReplacePhoto(context.Background(), targetID, uuid.New(), []byte("face1"), "image/jpeg")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeletePhotoRejectsLastPhoto(t *testing.T) {
	svc, store, _, _, idx := newTestService(t)
	targetID := addTarget(store)

	photo, err := svc.AddPhoto(context.Background(), targetID, []byte("face1"), "image/jpeg")
	require.NoError(t, err)

	err = svc.DeletePhoto(context.Background(), targetID, photo.ID)
	require.ErrorIs(t, err, ErrLastPhoto)

	// Gallery and index untouched.
	assert.Len(t, store.photos[targetID], 1)
	assert.Len(t, idx.records[targetID], 1)
}

func TestDeletePhotoRecomputesIndex(t *testing.T) {
	svc, store, _, _, idx := newTestService(t)
	targetID := addTarget(store)

	p1, err := svc.AddPhoto(context.Background(), targetID, []byte("face1"), "image/jpeg")
	require.NoError(t, err)
	p2, err := svc.AddPhoto(context.Background(), targetID, []byte("face2"), "image/jpeg")
	require.NoError(t, err)

	require.NoError(t, svc.DeletePhoto(context.Background(), targetID, p1.ID))

	records := idx.records[targetID]
	require.Len(t, records, 1)
	assert.Equal(t, p2.ID, records[0].PhotoID)
}

func TestDeletePhotoUnknownPhoto(t *testing.T) {
	svc, store, _, _, _ := newTestService(t)
	targetID := addTarget(store)

	_, err := svc.AddPhoto(context.Background(), targetID, []byte("face1"), "image/jpeg")
	require.NoError(t, err)

	err = svc.DeletePhoto(context.Background(), targetID, uuid.New())
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRemoveTargetPurgesIndexAndObjects(t *testing.T) {
	svc, store, objects, _, idx := newTestService(t)
	targetID := addTarget(store)

	_, err := svc.AddPhoto(context.Background(), targetID, []byte("face1"), "image/jpeg")
	require.NoError(t, err)

	require.NoError(t, svc.RemoveTarget(context.Background(), targetID))
	assert.Empty(t, idx.records[targetID])
	assert.Empty(t, objects.objects)
}

func TestReconcileRepairsDrift(t *testing.T) {
	svc, store, _, _, idx := newTestService(t)
	targetID := addTarget(store)

	p1, err := svc.AddPhoto(context.Background(), targetID, []byte("face1"), "image/jpeg")
	require.NoError(t, err)
	p2, err := svc.AddPhoto(context.Background(), targetID, []byte("face2"), "image/jpeg")
	require.NoError(t, err)

	// Simulate a lost race during recompute: one record orphaned, one photo
	// missing from the index.
	orphan := uuid.New()
	idx.records[targetID] = []index.Record{
		{PhotoID: p1.ID, Vector: []float32{1, 0, 0, 0}, Confidence: 0.9},
		{PhotoID: orphan, Vector: []float32{0, 1, 0, 0}, Confidence: 0.9},
	}

	added, removed, err := svc.Reconcile(context.Background(), targetID)
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.Equal(t, 1, removed)

	indexed := map[uuid.UUID]bool{}
	for _, r := range idx.records[targetID] {
		indexed[r.PhotoID] = true
	}
	assert.True(t, indexed[p1.ID])
	assert.True(t, indexed[p2.ID])
	assert.False(t, indexed[orphan])
}

func TestReconcileConsistentTargetIsNoop(t *testing.T) {
	svc, store, _, _, idx := newTestService(t)
	targetID := addTarget(store)

	p1, err := svc.AddPhoto(context.Background(), targetID, []byte("face1"), "image/jpeg")
	require.NoError(t, err)

	added, removed, err := svc.Reconcile(context.Background(), targetID)
	require.NoError(t, err)
	assert.Zero(t, added)
	assert.Zero(t, removed)
	require.Len(t, idx.records[targetID], 1)
	assert.Equal(t, p1.ID, idx.records[targetID][0].PhotoID)
}

func TestReconcileUnknownTarget(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	_, _, err := svc.Reconcile(context.Background(), uuid.New())
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSearchRequiresFace(t *testing.T) {
	svc, _, _, embedder, _ := newTestService(t)
	embedder.noFace["crowd"] = true

	_, err := svc.Search(context.Background(), []byte("crowd"), 0, 0)
	require.ErrorIs(t, err, vision.ErrNoFace)
}

func TestSearchPreservesIndexOrdering(t *testing.T) {
	svc, store, _, _, idx := newTestService(t)
	targetID := addTarget(store)

	p1, err := svc.AddPhoto(context.Background(), targetID, []byte("face1"), "image/jpeg")
	require.NoError(t, err)
	p2, err := svc.AddPhoto(context.Background(), targetID, []byte("face2"), "image/jpeg")
	require.NoError(t, err)

	idx.hits = []index.Match{
		{TargetID: targetID, PhotoID: p2.ID, Score: 0.93},
		{TargetID: targetID, PhotoID: p1.ID, Score: 0.71},
	}

	matches, err := svc.Search(context.Background(), []byte("probe"), 0, 0)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, p2.ID, matches[0].Photo.ID)
	assert.InDelta(t, 0.93, matches[0].Score, 1e-5)
	assert.Equal(t, p1.ID, matches[1].Photo.ID)
}

func TestSearchFiltersBelowThreshold(t *testing.T) {
	svc, store, _, _, idx := newTestService(t)
	targetID := addTarget(store)

	p1, err := svc.AddPhoto(context.Background(), targetID, []byte("face1"), "image/jpeg")
	require.NoError(t, err)
	p2, err := svc.AddPhoto(context.Background(), targetID, []byte("face2"), "image/jpeg")
	require.NoError(t, err)

	idx.hits = []index.Match{
		{TargetID: targetID, PhotoID: p1.ID, Score: 0.92},
		{TargetID: targetID, PhotoID: p2.ID, Score: 0.55},
	}

	matches, err := svc.Search(context.Background(), []byte("probe"), 0, 0.7)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, p1.ID, matches[0].Photo.ID)
	assert.Equal(t, 0.7, idx.lastThreshold)
}

func TestSearchAppliesConfiguredDefaults(t *testing.T) {
	svc, _, _, _, idx := newTestService(t)

	_, err := svc.Search(context.Background(), []byte("probe"), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 10, idx.lastLimit)
	assert.Equal(t, 0.4, idx.lastThreshold)
}

func TestSearchDropsVanishedRows(t *testing.T) {
	svc, store, _, _, idx := newTestService(t)
	targetID := addTarget(store)

	p1, err := svc.AddPhoto(context.Background(), targetID, []byte("face1"), "image/jpeg")
	require.NoError(t, err)

	// A hit pointing at a photo that no longer exists must be dropped, not
	// surfaced as an error.
	idx.hits = []index.Match{
		{TargetID: targetID, PhotoID: uuid.New(), Score: 0.95},
		{TargetID: targetID, PhotoID: p1.ID, Score: 0.8},
	}

	matches, err := svc.Search(context.Background(), []byte("probe"), 0, 0)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, p1.ID, matches[0].Photo.ID)
}

func TestSearchEmptyIndex(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	matches, err := svc.Search(context.Background(), []byte("probe"), 0, 0)
	require.NoError(t, err)
	assert.Empty(t, matches)
}
