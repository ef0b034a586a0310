package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/clipvault/clipvault/internal/app/service"
)

// DownloadDeps groups dependencies for the public download surface.
type DownloadDeps struct {
	Logger   *zap.Logger
	Videos   service.VideoService
	Postgres *pgxpool.Pool
}

// DownloadHandler serves shared-link redemption and liveness probes. These
// routes are deliberately outside the token auth group.
type DownloadHandler struct {
	logger   *zap.Logger
	videos   service.VideoService
	postgres *pgxpool.Pool
}

// NewDownloadHandler creates a download handler with the provided dependencies.
func NewDownloadHandler(deps DownloadDeps) *DownloadHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DownloadHandler{
		logger:   logger,
		videos:   deps.Videos,
		postgres: deps.Postgres,
	}
}

// Register wires the public routes onto the provided router. Extra middleware
// (rate limiting) applies to the download route only.
func (h *DownloadHandler) Register(router fiber.Router, downloadMiddleware ...fiber.Handler) {
	router.Get("/", h.Health)
	router.Get("/health", h.Health)

	handlers := append(downloadMiddleware, h.Download)
	router.Get("/download/:link_id", handlers...)
}

// Health handles GET / and GET /health.
func (h *DownloadHandler) Health(c *fiber.Ctx) error {
	status := "ok"
	if h.postgres != nil {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := h.postgres.Ping(ctx); err != nil {
			h.logger.Warn("health check: postgres unreachable", zap.Error(err))
			status = "degraded"
		}
	}
	return c.JSON(fiber.Map{
		"service": "clipvault",
		"status":  status,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Download handles GET /download/:link_id.
func (h *DownloadHandler) Download(c *fiber.Ctx) error {
	linkID := c.Params("link_id")

	dl, err := h.videos.ResolveDownload(h.ctx(c), linkID)
	if err != nil {
		status := StatusFor(err)
		if status == fiber.StatusInternalServerError {
			h.logger.Error("download failed", zap.String("link_id", linkID), zap.Error(err))
			return c.Status(status).JSON(fiber.Map{"error": "internal server error"})
		}
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}

	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", dl.Filename))
	if err := c.SendFile(dl.Path); err != nil {
		h.logger.Error("send file failed", zap.String("link_id", linkID), zap.Error(err))
		c.Response().Header.Del(fiber.HeaderContentDisposition)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
	// SendFile derives its own Content-Type from the extension; override it
	// with the resolved one.
	c.Set(fiber.HeaderContentType, dl.ContentType)

	h.videos.MarkDownloaded(dl.VideoID, linkID)
	return nil
}

func (h *DownloadHandler) ctx(c *fiber.Ctx) context.Context {
	if ctx := c.UserContext(); ctx != nil {
		return ctx
	}
	return context.Background()
}
