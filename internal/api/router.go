package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/watchtower/internal/api/handlers"
	"github.com/your-org/watchtower/internal/api/ws"
	"github.com/your-org/watchtower/internal/enroll"
	"github.com/your-org/watchtower/internal/index"
	"github.com/your-org/watchtower/internal/notify"
	"github.com/your-org/watchtower/internal/queue"
	"github.com/your-org/watchtower/internal/storage"
	"github.com/your-org/watchtower/internal/vision"
)

type RouterConfig struct {
	APIKey        string
	PublicBaseURL string
	DB            *storage.PostgresStore
	MinIO         *storage.MinIOStore
	Producer      *queue.Producer
	Hub           *ws.Hub
	Engine        *vision.Engine
	Index         *index.Client
	Enroll        *enroll.Service
	Ingestion     *notify.IngestionClient
	Processor     *notify.ProcessorClient
	VerifyScore   float32
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.DB, cfg.MinIO, cfg.Producer)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Integration endpoints: authenticated by per-resource tokens, not API key
	integrationH := handlers.NewIntegrationHandler(cfg.DB, cfg.MinIO, cfg.Producer)
	integration := r.Group("/integration")
	integration.GET("/video/:token", integrationH.Metadata)
	integration.GET("/video/:token/stream", integrationH.Stream)
	integration.GET("/video/:token/download", integrationH.Download)
	integration.POST("/processing-callback/:token", integrationH.ProcessingCallback)

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(APIKeyMiddleware(cfg.APIKey))

	// WebSocket
	v1.GET("/ws", cfg.Hub.HandleWS)

	// Cases
	caseH := handlers.NewCaseHandler(cfg.DB, cfg.Enroll)
	v1.POST("/cases", caseH.Create)
	v1.GET("/cases", caseH.List)
	v1.GET("/cases/:id", caseH.Get)
	v1.PATCH("/cases/:id", caseH.Update)
	v1.DELETE("/cases/:id", caseH.Delete)

	// Targets & photos
	targetH := handlers.NewTargetHandler(cfg.DB, cfg.MinIO, cfg.Enroll, cfg.PublicBaseURL)
	v1.POST("/targets", targetH.Create)
	v1.GET("/targets", targetH.List)
	v1.GET("/targets/:id", targetH.Get)
	v1.PATCH("/targets/:id", targetH.Update)
	v1.DELETE("/targets/:id", targetH.Delete)
	v1.POST("/targets/:id/photos", targetH.UploadPhoto)
	v1.GET("/targets/:id/photos", targetH.ListPhotos)
	v1.PUT("/targets/:id/photos/:photoId", targetH.ReplacePhoto)
	v1.GET("/targets/:id/photos/:photoId/image", targetH.GetPhotoImage)
	v1.DELETE("/targets/:id/photos/:photoId", targetH.DeletePhoto)

	// Search & index
	searchH := handlers.NewSearchHandler(cfg.Enroll, cfg.Index, cfg.PublicBaseURL)
	v1.POST("/search", searchH.Search)
	v1.GET("/index/status", searchH.Status)
	v1.DELETE("/index/targets/:id", searchH.PurgeTarget)
	v1.POST("/index/targets/:id/reconcile", searchH.ReconcileTarget)

	// Standalone face operations
	faceH := handlers.NewFaceHandler(cfg.Engine, cfg.VerifyScore)
	v1.POST("/faces/detect", faceH.Detect)
	v1.POST("/faces/embed", faceH.Embed)
	v1.POST("/faces/verify", faceH.Verify)

	// Sources
	sourceH := handlers.NewSourceHandler(cfg.DB, cfg.MinIO, cfg.Producer, cfg.Ingestion, cfg.Processor, cfg.PublicBaseURL)
	v1.POST("/sources", sourceH.Create)
	v1.GET("/sources", sourceH.List)
	v1.GET("/sources/:id", sourceH.Get)
	v1.PATCH("/sources/:id", sourceH.Update)
	v1.DELETE("/sources/:id", sourceH.Delete)
	v1.POST("/sources/:id/upload", sourceH.Upload)
	v1.POST("/sources/:id/process", sourceH.Process)
	v1.GET("/sources/:id/jobs", sourceH.ListJobs)
	v1.GET("/sources/:id/thumbnail", sourceH.Thumbnail)

	return r
}
