package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/watchtower/internal/config"
	"github.com/your-org/watchtower/internal/models"
	"github.com/your-org/watchtower/internal/observability"
	"github.com/your-org/watchtower/internal/queue"
	"github.com/your-org/watchtower/internal/storage"
)

// Processor handles queued media tasks: it probes an uploaded file, grabs a
// thumbnail and flips the source to ready (or failed). One task per source.
type Processor struct {
	db       *storage.PostgresStore
	minio    *storage.MinIOStore
	producer *queue.Producer
	cfg      config.MediaConfig
}

func NewProcessor(db *storage.PostgresStore, minio *storage.MinIOStore, producer *queue.Producer, cfg config.MediaConfig) *Processor {
	return &Processor{db: db, minio: minio, producer: producer, cfg: cfg}
}

// ProcessTask runs the full inspection for one media task. Failures mark the
// source failed and are not retried by the caller.
func (p *Processor) ProcessTask(ctx context.Context, task models.MediaTask) error {
	slog.Info("processing media task", "source_id", task.SourceID, "object_key", task.ObjectKey)

	if err := p.inspect(ctx, task); err != nil {
		observability.MediaJobs.WithLabelValues("failed").Inc()
		slog.Error("media inspection failed", "source_id", task.SourceID, "error", err)
		if dbErr := p.db.UpdateSourceStatus(ctx, task.SourceID, models.SourceStatusFailed, err.Error()); dbErr != nil {
			slog.Error("mark source failed", "source_id", task.SourceID, "error", dbErr)
		}
		p.publishStatus(ctx, task.SourceID, models.SourceStatusFailed, err.Error())
		return nil
	}

	observability.MediaJobs.WithLabelValues("completed").Inc()
	p.publishStatus(ctx, task.SourceID, models.SourceStatusReady, "")
	return nil
}

func (p *Processor) inspect(ctx context.Context, task models.MediaTask) error {
	src, err := p.db.GetSource(ctx, task.SourceID)
	if err != nil {
		return err
	}
	if src == nil {
		return fmt.Errorf("source %s vanished", task.SourceID)
	}

	// ffprobe/ffmpeg need a local file.
	tmp, err := os.CreateTemp(p.cfg.TempDir, "wt-media-*"+filepath.Ext(task.ObjectKey))
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	obj, err := p.minio.OpenObject(ctx, task.ObjectKey)
	if err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.ReadFrom(obj); err != nil {
		obj.Close()
		tmp.Close()
		return fmt.Errorf("download media: %w", err)
	}
	obj.Close()
	if err := tmp.Close(); err != nil {
		return err
	}

	probe, err := Probe(ctx, tmpPath)
	if err != nil {
		return err
	}

	src.Duration = probe.Duration
	src.Width = probe.Width
	src.Height = probe.Height
	src.FPS = probe.FPS
	src.Codec = probe.Codec
	src.AudioCodec = probe.AudioCodec
	if probe.SizeBytes > 0 {
		src.SizeBytes = probe.SizeBytes
	}

	// Grab the thumbnail a second in, falling back to the first frame for
	// very short clips.
	offset := 1.0
	if probe.Duration < 2 {
		offset = 0
	}
	thumb, err := Thumbnail(ctx, tmpPath, offset, p.cfg.ThumbnailWidth)
	if err != nil {
		slog.Warn("thumbnail generation failed", "source_id", task.SourceID, "error", err)
	} else {
		thumbKey := fmt.Sprintf("sources/%s/thumb.jpg", task.SourceID)
		if err := p.minio.PutObject(ctx, thumbKey, thumb, "image/jpeg"); err != nil {
			slog.Warn("store thumbnail", "source_id", task.SourceID, "error", err)
		} else {
			src.ThumbKey = thumbKey
		}
	}

	if err := p.db.UpdateSourceMedia(ctx, src); err != nil {
		return fmt.Errorf("store media metadata: %w", err)
	}
	if err := p.db.UpdateSourceStatus(ctx, task.SourceID, models.SourceStatusReady, ""); err != nil {
		return fmt.Errorf("mark source ready: %w", err)
	}

	slog.Info("media inspected", "source_id", task.SourceID,
		"duration", probe.Duration, "codec", probe.Codec,
		"resolution", fmt.Sprintf("%dx%d", probe.Width, probe.Height))
	return nil
}

func (p *Processor) publishStatus(ctx context.Context, sourceID uuid.UUID, status models.SourceStatus, errMsg string) {
	event := models.SourceEvent{
		SourceID:  sourceID,
		Status:    status,
		Error:     errMsg,
		Timestamp: time.Now().UTC(),
	}
	if err := p.producer.PublishEvent(ctx, sourceID.String(), event); err != nil {
		slog.Warn("publish source event", "source_id", sourceID, "error", err)
	}
}
