package publish

import (
	"encoding/json"

	"channel-publisher/core/logger"
	"channel-publisher/core/reconcile"
	"channel-publisher/core/utils"
	"channel-publisher/feature/upload"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for publishing commands.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the publishing routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	app.Post("/sync", h.HandleTrigger)

	group := app.Group("/upload")
	group.Post("/all", h.HandleUploadAll)
	group.Post("/from", h.HandleUploadFrom)
	group.Post("/missing", h.HandleUploadMissing)
	group.Post("/stop", h.HandleUploadStop)

	idx := app.Group("/index")
	idx.Get("/", h.HandleReport)
	idx.Get("/gaps", h.HandleGaps)
}

// body decodes an optional JSON object. An empty body yields an empty map.
func body(c *fiber.Ctx) (map[string]any, error) {
	out := map[string]any{}
	raw := c.Body()
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// uploadOptions reads the category and limit query parameters.
func uploadOptions(c *fiber.Ctx) (UploadOptions, error) {
	limit := c.QueryInt("limit", 0)
	if limit < 0 {
		return UploadOptions{}, fiber.NewError(fiber.StatusBadRequest, "limit must not be negative")
	}
	return UploadOptions{Category: c.Query("category"), Limit: limit}, nil
}

func (h *Handler) fail(c *fiber.Ctx, l *zap.Logger, msg string, err error) error {
	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		l.Error(msg, zap.Error(err))
	} else {
		l.Warn(msg, zap.Error(err))
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

// HandleTrigger syncs the channel and uploads what is missing.
// @Summary Sync And Upload
// @Description Runs a full channel sync, then uploads every missing book at or after "since" (identity key, file name or scan index). Concurrent requests share one run.
// @Tags publish
// @Accept json
// @Produce json
// @Param request body TriggerRequest false "Optional starting point"
// @Success 200 {object} TriggerResult
// @Failure 400 {object} map[string]string "Offset not found"
// @Failure 409 {object} map[string]string "Index locked"
// @Failure 500 {object} map[string]string "Corrupt index"
// @Failure 502 {object} map[string]string "Channel sync failed"
// @Router /sync [post]
func (h *Handler) HandleTrigger(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	req, err := body(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid JSON body"})
	}
	since := utils.ToString(req["since"])
	l.Info("Sync triggered", zap.String("since", since))

	res, err := h.service.Trigger(c.UserContext(), since)
	if err != nil {
		return h.fail(c, l, "Triggered sync failed", err)
	}
	return c.JSON(res)
}

// HandleUploadAll uploads every missing book.
// @Summary Upload All Missing
// @Description Uploads every library book that is not in the channel index. Runs until the batch finishes.
// @Tags publish
// @Produce json
// @Param category query string false "Restrict to one category"
// @Param limit query int false "Upload at most this many books"
// @Success 200 {object} upload.BatchResult
// @Failure 409 {object} map[string]string "Index locked"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Failure 502 {object} map[string]string "Channel unreachable"
// @Router /upload/all [post]
func (h *Handler) HandleUploadAll(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	opts, err := uploadOptions(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	l.Info("Upload all requested", zap.Int("limit", opts.Limit))

	res, err := h.service.UploadAll(c.UserContext(), opts)
	return h.batch(c, l, res, err)
}

// HandleUploadFrom uploads missing books from an offset onwards.
// @Summary Upload From Offset
// @Description Uploads the missing books at or after the given offset in scan order. The offset is an identity key, a file name or a zero-based scan index.
// @Tags publish
// @Accept json
// @Produce json
// @Param request body UploadFromRequest true "Offset"
// @Param category query string false "Restrict to one category"
// @Param limit query int false "Upload at most this many books"
// @Success 200 {object} upload.BatchResult
// @Failure 400 {object} map[string]string "Offset missing or not found"
// @Failure 409 {object} map[string]string "Index locked"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /upload/from [post]
func (h *Handler) HandleUploadFrom(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	req, err := body(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid JSON body"})
	}
	raw := utils.ToString(req["offset"])
	if raw == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "offset is required"})
	}
	opts, err := uploadOptions(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	offset := reconcile.ParseOffset(raw)
	l.Info("Upload from offset requested", zap.Stringer("offset", offset), zap.Int("limit", opts.Limit))

	res, err := h.service.UploadFrom(c.UserContext(), offset, opts)
	return h.batch(c, l, res, err)
}

// HandleUploadMissing resends what the channel lacks.
// @Summary Resend Missing
// @Description Catches up with the channel with an incremental sync, then uploads every missing book.
// @Tags publish
// @Produce json
// @Param category query string false "Restrict to one category"
// @Param limit query int false "Upload at most this many books"
// @Success 200 {object} upload.BatchResult
// @Failure 409 {object} map[string]string "Index locked"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Failure 502 {object} map[string]string "Channel sync failed"
// @Router /upload/missing [post]
func (h *Handler) HandleUploadMissing(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	opts, err := uploadOptions(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	l.Info("Resend missing requested", zap.Int("limit", opts.Limit))

	res, err := h.service.ResendMissing(c.UserContext(), opts)
	return h.batch(c, l, res, err)
}

// HandleUploadStop stops the running upload batch.
// @Summary Stop Upload
// @Description Cancels the running upload batch. The book in flight is finished and recorded; the rest are reported as remaining by the batch request.
// @Tags publish
// @Produce json
// @Success 200 {object} map[string]bool "Whether a batch was running"
// @Router /upload/stop [post]
func (h *Handler) HandleUploadStop(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	stopped := h.service.Stop()
	l.Info("Upload stop requested", zap.Bool("stopped", stopped))
	return c.JSON(fiber.Map{"stopped": stopped})
}

func (h *Handler) batch(c *fiber.Ctx, l *zap.Logger, res *upload.BatchResult, err error) error {
	if err != nil {
		status := statusFor(err)
		l.Error("Upload batch failed", zap.Error(err))
		payload := fiber.Map{"error": err.Error()}
		if res != nil {
			payload["result"] = res
		}
		return c.Status(status).JSON(payload)
	}
	return c.JSON(res)
}

// HandleReport compares the library with the channel index.
// @Summary Reconciliation Report
// @Description Summarizes which books are published, missing, stale or only present on the channel. Pass details=true for the per-book results and planned actions.
// @Tags index
// @Produce json
// @Param details query boolean false "Include per-book results"
// @Success 200 {object} map[string]interface{} "Report"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /index [get]
func (h *Handler) HandleReport(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	plan, err := h.service.Report(c.UserContext())
	if err != nil {
		return h.fail(c, l, "Report failed", err)
	}
	if utils.ToBool(c.Query("details")) {
		return c.JSON(plan)
	}
	return c.JSON(fiber.Map{"summary": plan.Summary})
}

// HandleGaps lists the books that still need uploading.
// @Summary Missing Books
// @Description Lists the identity keys of library books absent from the channel index, in scan order.
// @Tags index
// @Produce json
// @Param from query string false "Offset: identity key, file name or scan index; key:<name> forces a key"
// @Param category query string false "Restrict to one category"
// @Success 200 {object} map[string]interface{} "Missing keys"
// @Failure 400 {object} map[string]string "Offset not found"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /index/gaps [get]
func (h *Handler) HandleGaps(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	offset := reconcile.NoOffset
	if from := c.Query("from"); from != "" {
		offset = reconcile.ParseOffset(from)
	}
	tasks, err := h.service.Gaps(c.UserContext(), offset, c.Query("category"))
	if err != nil {
		return h.fail(c, l, "Gap detection failed", err)
	}
	keys := reconcile.Keys(tasks)
	return c.JSON(fiber.Map{
		"count":   len(keys),
		"missing": keys,
	})
}

// TriggerRequest is the optional body of POST /sync.
type TriggerRequest struct {
	Since *string `json:"since"`
}

// UploadFromRequest is the body of POST /upload/from.
type UploadFromRequest struct {
	// Offset is a key, a file name or a scan index. A bare number is an
	// index; "key:1984" names the book 1984.
	Offset string `json:"offset"`
}
