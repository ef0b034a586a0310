package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/clipvault/clipvault/internal/app/model"
	"github.com/clipvault/clipvault/internal/app/service"
)

// APIDeps groups dependencies required by the authenticated API handlers.
type APIDeps struct {
	Logger *zap.Logger
	Videos service.VideoService
}

// APIHandler implements the token-protected lifecycle endpoints.
type APIHandler struct {
	logger *zap.Logger
	videos service.VideoService
}

// NewAPIHandler creates an API handler with the provided dependencies.
func NewAPIHandler(deps APIDeps) *APIHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIHandler{
		logger: logger,
		videos: deps.Videos,
	}
}

// Register wires API routes onto the provided router. The given middleware
// (token auth) runs before every handler here, and only here; the public
// download surface stays outside of it.
func (h *APIHandler) Register(router fiber.Router, mw ...fiber.Handler) {
	chain := func(fn fiber.Handler) []fiber.Handler {
		hs := make([]fiber.Handler, 0, len(mw)+1)
		hs = append(hs, mw...)
		return append(hs, fn)
	}
	router.Post("/check_api_token", chain(h.CheckToken)...)
	router.Post("/upload", chain(h.Upload)...)
	router.Post("/trim", chain(h.Trim)...)
	router.Post("/merge", chain(h.Merge)...)
	router.Post("/share", chain(h.Share)...)
}

// VideoResponse is returned by upload, trim, and merge.
type VideoResponse struct {
	VideoID  string `json:"video_id"`
	Filename string `json:"filename"`
}

// ShareResponse is returned by share.
type ShareResponse struct {
	LinkID    string    `json:"link_id"`
	VideoID   string    `json:"video_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CheckToken handles POST /check_api_token; reaching it means the auth
// middleware already accepted the token.
func (h *APIHandler) CheckToken(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"authorized": true})
}

// Upload handles POST /upload (multipart field "file").
func (h *APIHandler) Upload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "multipart file field is required",
		})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "failed to open uploaded file",
		})
	}
	defer file.Close()

	video, err := h.videos.Upload(h.ctx(c), service.UploadInput{
		Filename: fileHeader.Filename,
		Size:     fileHeader.Size,
		Content:  file,
	})
	if err != nil {
		return h.fail(c, "upload", err)
	}

	return c.JSON(VideoResponse{VideoID: video.ID, Filename: video.Filename})
}

// TrimRequest represents the request body for trimming a video.
type TrimRequest struct {
	VideoID   string   `json:"video_id"`
	StartTime float64  `json:"start_time"`
	EndTime   *float64 `json:"end_time,omitempty"`
}

// Trim handles POST /trim.
func (h *APIHandler) Trim(c *fiber.Ctx) error {
	var req TrimRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if req.VideoID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "video_id is required",
		})
	}

	video, err := h.videos.Trim(h.ctx(c), service.TrimInput{
		VideoID:   req.VideoID,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	})
	if err != nil {
		return h.fail(c, "trim", err)
	}

	return c.JSON(VideoResponse{VideoID: video.ID, Filename: video.Filename})
}

// MergeRequest represents the request body for merging videos.
type MergeRequest struct {
	VideoIDs []string `json:"video_ids"`
}

// Merge handles POST /merge.
func (h *APIHandler) Merge(c *fiber.Ctx) error {
	var req MergeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if len(req.VideoIDs) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "video_ids is required",
		})
	}

	video, err := h.videos.Merge(h.ctx(c), service.MergeInput{VideoIDs: req.VideoIDs})
	if err != nil {
		return h.fail(c, "merge", err)
	}

	return c.JSON(VideoResponse{VideoID: video.ID, Filename: video.Filename})
}

// ShareRequest represents the request body for sharing a video.
type ShareRequest struct {
	VideoID   string `json:"video_id"`
	ExpirySec int    `json:"expiry_sec"`
}

// Share handles POST /share.
func (h *APIHandler) Share(c *fiber.Ctx) error {
	var req ShareRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if req.VideoID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "video_id is required",
		})
	}

	link, err := h.videos.Share(h.ctx(c), service.ShareInput{
		VideoID:   req.VideoID,
		ExpirySec: req.ExpirySec,
	})
	if err != nil {
		return h.fail(c, "share", err)
	}

	return c.JSON(ShareResponse{
		LinkID:    link.ID,
		VideoID:   link.VideoID,
		ExpiresAt: link.ExpiresAt,
	})
}

func (h *APIHandler) ctx(c *fiber.Ctx) context.Context {
	if ctx := c.UserContext(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func (h *APIHandler) fail(c *fiber.Ctx, op string, err error) error {
	status := StatusFor(err)
	if status == fiber.StatusInternalServerError {
		h.logger.Error("operation failed", zap.String("op", op), zap.Error(err))
		return c.Status(status).JSON(fiber.Map{"error": "internal server error"})
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

// StatusFor maps the lifecycle failure taxonomy to HTTP statuses; anything
// unrecognized is a 500.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrVideoNotFound), errors.Is(err, model.ErrLinkNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, model.ErrLinkExpired):
		return fiber.StatusGone
	case errors.Is(err, model.ErrPayloadTooLarge),
		errors.Is(err, model.ErrInvalidMedia),
		errors.Is(err, model.ErrDurationOutOfRange),
		errors.Is(err, model.ErrInvalidRange),
		errors.Is(err, model.ErrInvalidArgument):
		return fiber.StatusBadRequest
	case errors.Is(err, model.ErrConflict):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}
