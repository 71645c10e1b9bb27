package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"reel/internal/media"
	"reel/internal/server/database"
	"reel/internal/server/service"
	"reel/internal/server/transcode"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Videos is the video service as seen by the HTTP layer.
type Videos interface {
	Ingest(ctx context.Context, filename string, data io.Reader, size int64) (*service.VideoInfo, error)
	Get(ctx context.Context, id string) (*service.VideoInfo, error)
	EstimateDuration(ctx context.Context, id string) (float64, error)
	Trim(ctx context.Context, id string, w media.TrimWindow) (*service.VideoInfo, error)
	Merge(ctx context.Context, ids []string) (*service.VideoInfo, error)
	Stats(ctx context.Context) (*database.Stats, error)
}

// Shares is the share service as seen by the HTTP layer.
type Shares interface {
	Create(ctx context.Context, videoID string, opts service.ShareOptions) (*service.ShareInfo, error)
	Resolve(ctx context.Context, token, password string) (*service.VideoInfo, error)
	Open(ctx context.Context, token, password string) (*service.VideoInfo, []byte, error)
}

// HealthChecker reports database connectivity.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Handler contains the HTTP handlers for the Reel API.
type Handler struct {
	videos Videos
	shares Shares
	db     HealthChecker
	log    zerolog.Logger
}

// NewHandler creates a new handler with the given service dependencies.
func NewHandler(videos Videos, shares Shares, db HealthChecker, log zerolog.Logger) *Handler {
	return &Handler{
		videos: videos,
		shares: shares,
		db:     db,
		log:    log.With().Str("component", "api").Logger(),
	}
}

type trimRequest struct {
	Start *float64 `json:"start"`
	End   *float64 `json:"end"`
}

type mergeRequest struct {
	IDs []string `json:"ids"`
}

type shareRequest struct {
	ExpiryHours int    `json:"expiry_hours"`
	Password    string `json:"password"`
}

// HandleUpload handles POST /api/videos.
// Accepts a multipart form with a "file" field.
func (h *Handler) HandleUpload(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "file is required (use form field 'file')",
		})
	}

	src, err := fileHeader.Open()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "failed to read uploaded file",
		})
	}
	defer src.Close()

	info, err := h.videos.Ingest(c.Request().Context(), fileHeader.Filename, src, fileHeader.Size)
	if err != nil {
		return h.mapServiceError(c, err)
	}

	return c.JSON(http.StatusCreated, info)
}

// HandleInfo handles GET /api/videos/:id.
func (h *Handler) HandleInfo(c echo.Context) error {
	info, err := h.videos.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, info)
}

// HandleDuration handles GET /api/videos/:id/duration.
// Measures the stored bytes instead of returning the recorded duration.
func (h *Handler) HandleDuration(c echo.Context) error {
	id := c.Param("id")
	seconds, err := h.videos.EstimateDuration(c.Request().Context(), id)
	if err != nil {
		return h.mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"id":               id,
		"duration_seconds": seconds,
	})
}

// HandleTrim handles POST /api/videos/:id/trim.
// Body: {"start": seconds?, "end": seconds?}; omitted fields cut nothing.
func (h *Handler) HandleTrim(c echo.Context) error {
	var req trimRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	info, err := h.videos.Trim(c.Request().Context(), c.Param("id"), media.WindowOf(req.Start, req.End))
	if err != nil {
		return h.mapServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, info)
}

// HandleMerge handles POST /api/videos/merge.
// Body: {"ids": [...]} in playback order.
func (h *Handler) HandleMerge(c echo.Context) error {
	var req mergeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	info, err := h.videos.Merge(c.Request().Context(), req.IDs)
	if err != nil {
		return h.mapServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, info)
}

// HandleShare handles POST /api/videos/:id/share.
func (h *Handler) HandleShare(c echo.Context) error {
	var req shareRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	link, err := h.shares.Create(c.Request().Context(), c.Param("id"), service.ShareOptions{
		ExpiryHours: req.ExpiryHours,
		Password:    req.Password,
	})
	if err != nil {
		return h.mapServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, link)
}

// HandleShareInfo handles GET /api/share/:token.
// Returns the shared video's metadata. Accepts an optional "password" query param.
func (h *Handler) HandleShareInfo(c echo.Context) error {
	info, err := h.shares.Resolve(c.Request().Context(), c.Param("token"), sharePassword(c))
	if err != nil {
		return h.mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, info)
}

// HandleShareDownload handles GET /s/:token.
// Serves the shared video as an attachment.
func (h *Handler) HandleShareDownload(c echo.Context) error {
	info, data, err := h.shares.Open(c.Request().Context(), c.Param("token"), sharePassword(c))
	if err != nil {
		return h.mapServiceError(c, err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition,
		mime.FormatMediaType("attachment", map[string]string{"filename": info.Filename}))
	return c.Blob(http.StatusOK, contentType(info.Format), data)
}

// HandleHealth handles GET /health.
// Returns the health status of the server, including database connectivity.
func (h *Handler) HandleHealth(c echo.Context) error {
	status := "healthy"
	dbStatus := "connected"

	if err := h.db.HealthCheck(c.Request().Context()); err != nil {
		status = "degraded"
		dbStatus = fmt.Sprintf("error: %v", err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"status":   status,
		"database": dbStatus,
	})
}

// HandleStats handles GET /api/stats.
// Returns aggregate server statistics.
func (h *Handler) HandleStats(c echo.Context) error {
	stats, err := h.videos.Stats(c.Request().Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to retrieve stats")
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "failed to retrieve stats",
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"total_videos":       stats.TotalVideos,
		"total_seconds":      stats.TotalSeconds,
		"total_share_links":  stats.TotalShareLinks,
		"active_share_links": stats.ActiveShareLinks,
		"storage_used_bytes": stats.TotalBytes,
		"storage_used_human": humanizeBytes(stats.TotalBytes),
	})
}

// mapServiceError translates service-layer errors into appropriate HTTP responses.
func (h *Handler) mapServiceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidRange),
		errors.Is(err, service.ErrEmptyInput),
		errors.Is(err, service.ErrGeometryMismatch),
		errors.Is(err, service.ErrInvalidExpiry):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrEmptyUpload):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "upload is empty"})
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "video not found"})
	case errors.Is(err, service.ErrNotFoundOrExpired):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "share link not found or expired"})
	case errors.Is(err, service.ErrPasswordRequired):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "password_required"})
	case errors.Is(err, service.ErrInvalidPassword):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "invalid password"})
	case errors.Is(err, service.ErrFileTooLarge):
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{
			"error": "file exceeds maximum allowed size",
		})
	case errors.Is(err, service.ErrDurationExceeded):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})
	case errors.Is(err, transcode.ErrProbe):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "unable to read video container"})
	case errors.Is(err, transcode.ErrTranscode):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "transcoding failed"})
	default:
		h.log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
}

func sharePassword(c echo.Context) string {
	if p := c.Request().Header.Get("X-Share-Password"); p != "" {
		return p
	}
	return c.QueryParam("password")
}

func contentType(format string) string {
	if media.IsRaw(format) || format == "" {
		return echo.MIMEOctetStream
	}
	return format
}

// humanizeBytes formats a byte count into a human-readable string.
func humanizeBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
