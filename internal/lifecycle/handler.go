package lifecycle

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"registrar-backend/internal/pickup/render"
	"registrar-backend/internal/shared/server/middleware"
	"registrar-backend/internal/shared/server/respond"
	"registrar-backend/internal/shared/telemetry"
	"registrar-backend/internal/shared/util"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Handler exposes the lifecycle service over HTTP.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches requester routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/document-requests", h.create)
	rg.GET("/document-requests", h.listMine)
	rg.GET("/document-requests/:id", h.get)
	rg.POST("/document-requests/:id/submit", h.submit)
	rg.GET("/document-requests/:id/stub", h.downloadStub)
}

// RegisterAdminRoutes attaches admin routes; rg must already require the admin role.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.GET("/document-requests", h.listActive)
	rg.GET("/document-requests/archived", h.listArchived)
	rg.GET("/document-requests/stats", h.stats)
	rg.POST("/document-requests/bulk-archive-completed", h.bulkArchive)
	rg.POST("/document-requests/bulk-status", h.bulkStatus)
	rg.POST("/document-requests/check-overdue", h.checkOverdue)
	rg.PATCH("/document-requests/:id/status", h.updateStatus)
	rg.PATCH("/document-requests/:id/steps/:index", h.updateStep)
	rg.PATCH("/document-requests/:id/archive", h.archive)
	rg.PATCH("/document-requests/:id/restore", h.restore)
	rg.POST("/document-requests/:id/stub", h.reissueStub)
	rg.POST("/document-requests/:id/pickup", h.markPickedUp)
	rg.POST("/pickup/verify", h.verify)
}

func actorFrom(c *gin.Context) Actor {
	return Actor{
		ID:    middleware.UserIDFromContext(c),
		Name:  middleware.UserNameFromContext(c),
		Email: middleware.UserEmailFromContext(c),
		Admin: middleware.UserRoleFromContext(c) == "admin",
	}
}

func (h *Handler) create(c *gin.Context) {
	var req createRequest
	if err := decodeJSON(c.Request, &req); err != nil {
		writeValidation(c, err)
		return
	}
	created, err := h.Svc.Create(c.Request.Context(), actorFrom(c), req.input())
	if err != nil {
		writeError(c, err)
		return
	}
	c.Set(middleware.DocumentRequestIDKey, created.ID)
	respond.JSON(c, http.StatusCreated, toResponse(created))
}

func (h *Handler) listMine(c *gin.Context) {
	limit, offset := page(c)
	items, err := h.Svc.ListMine(c.Request.Context(), actorFrom(c), limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"items": toResponses(items), "limit": limit, "offset": offset})
}

func (h *Handler) get(c *gin.Context) {
	id := bindID(c)
	req, err := h.Svc.Get(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, toResponse(req))
}

func (h *Handler) submit(c *gin.Context) {
	id := bindID(c)
	req, err := h.Svc.Submit(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Set(middleware.StatusTransitionKey, "draft->submitted")
	respond.OK(c, toResponse(req))
}

func (h *Handler) downloadStub(c *gin.Context) {
	id := bindID(c)
	stub, err := h.Svc.OpenStub(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	defer stub.Body.Close()

	name, err := util.SanitizeFileName(stub.FileName)
	if err != nil {
		name = "pickup_stub"
	}
	c.Header("Content-Type", render.ContentTypeForKey(stub.Key))
	c.Header("Content-Disposition", "attachment; filename=\""+name+"\"")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, stub.Body); err != nil {
		telemetry.Warn("lifecycle.stub_stream_failed", map[string]any{
			"document_request_id": id,
			"error":               err,
		})
	}
}

func (h *Handler) listActive(c *gin.Context) {
	limit, offset := page(c)
	items, total, err := h.Svc.ListActive(c.Request.Context(), ListQuery{
		Status:       c.Query("status"),
		Priority:     c.Query("priority"),
		DocumentType: c.Query("documentType"),
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"items": toResponses(items), "total": total, "limit": limit, "offset": offset})
}

func (h *Handler) listArchived(c *gin.Context) {
	limit, offset := page(c)
	items, total, err := h.Svc.ListArchived(c.Request.Context(), limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"items": toResponses(items), "total": total, "limit": limit, "offset": offset})
}

func (h *Handler) stats(c *gin.Context) {
	st, err := h.Svc.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, st)
}

func (h *Handler) updateStatus(c *gin.Context) {
	id := bindID(c)
	var req statusRequest
	if err := decodeJSON(c.Request, &req); err != nil {
		writeValidation(c, err)
		return
	}
	res, err := h.Svc.UpdateStatus(c.Request.Context(), actorFrom(c), id, req.update())
	if err != nil {
		writeError(c, err)
		return
	}
	c.Set(middleware.StatusTransitionKey, string(res.From)+"->"+string(res.Request.Status))
	body := gin.H{"request": toResponse(res.Request)}
	if res.Warning != "" {
		body["warning"] = res.Warning
	}
	respond.OK(c, body)
}

func (h *Handler) reissueStub(c *gin.Context) {
	id := bindID(c)
	var req scheduleRequest
	if err := decodeJSON(c.Request, &req); err != nil {
		writeValidation(c, err)
		return
	}
	res, err := h.Svc.ReissueStub(c.Request.Context(), actorFrom(c), id, *req.schedule())
	if err != nil {
		writeError(c, err)
		return
	}
	body := gin.H{"request": toResponse(res.Request)}
	if res.Warning != "" {
		body["warning"] = res.Warning
	}
	respond.OK(c, body)
}

func (h *Handler) updateStep(c *gin.Context) {
	id := bindID(c)
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "step index must be an integer", nil)
		return
	}
	var req stepRequest
	if err := decodeJSON(c.Request, &req); err != nil {
		writeValidation(c, err)
		return
	}
	updated, err := h.Svc.UpdateProcessingStep(c.Request.Context(), actorFrom(c), id, index, req.Status, req.Notes)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, toResponse(updated))
}

func (h *Handler) archive(c *gin.Context) {
	id := bindID(c)
	req, err := h.Svc.Archive(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, toResponse(req))
}

func (h *Handler) restore(c *gin.Context) {
	id := bindID(c)
	req, err := h.Svc.Restore(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, toResponse(req))
}

func (h *Handler) bulkArchive(c *gin.Context) {
	n, err := h.Svc.BulkArchiveCompleted(c.Request.Context(), actorFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"archived": n})
}

func (h *Handler) bulkStatus(c *gin.Context) {
	var req bulkStatusRequest
	if err := decodeJSON(c.Request, &req); err != nil {
		writeValidation(c, err)
		return
	}
	res, err := h.Svc.BulkUpdateStatus(c.Request.Context(), actorFrom(c), req.IDs, req.update())
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, res)
}

func (h *Handler) checkOverdue(c *gin.Context) {
	res, err := h.Svc.CheckOverdue(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, res)
}

func (h *Handler) verify(c *gin.Context) {
	var req verifyRequest
	if err := decodeJSON(c.Request, &req); err != nil {
		writeValidation(c, err)
		return
	}
	res, err := h.Svc.VerifyPickup(c.Request.Context(), req.QRData)
	if err != nil {
		writeError(c, err)
		return
	}
	body := gin.H{
		"valid":   res.Valid,
		"message": res.Reason.Message(),
	}
	if !res.Valid {
		body["reason"] = string(res.Reason)
	}
	if res.Request != nil {
		c.Set(middleware.DocumentRequestIDKey, res.Request.ID)
		body["request"] = toResponse(*res.Request)
	}
	respond.OK(c, body)
}

func (h *Handler) markPickedUp(c *gin.Context) {
	id := bindID(c)
	var req pickupRequest
	if err := decodeJSON(c.Request, &req); err != nil {
		writeValidation(c, err)
		return
	}
	done, err := h.Svc.MarkPickedUp(c.Request.Context(), actorFrom(c), id, req.VerificationCode, req.PickedUpBy)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Set(middleware.StatusTransitionKey, "approved->completed")
	respond.OK(c, toResponse(done))
}

func bindID(c *gin.Context) string {
	id := c.Param("id")
	c.Set(middleware.DocumentRequestIDKey, id)
	return id
}

func page(c *gin.Context) (int, int) {
	limit := defaultPageSize
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func writeValidation(c *gin.Context, err error) {
	if details := validationDetails(err); details != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "request validation failed", details)
		return
	}
	respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
}

func writeError(c *gin.Context, err error) {
	var transition *TransitionError
	var pickupErr *PickupError
	switch {
	case errors.As(err, &transition):
		respond.Error(c, http.StatusConflict, "invalid_transition", err.Error(), gin.H{"from": transition.From, "to": transition.To})
	case errors.As(err, &pickupErr):
		respond.Error(c, http.StatusConflict, "pickup_refused", pickupErr.Reason.Message(), gin.H{"reason": string(pickupErr.Reason)})
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "document request not found", nil)
	case errors.Is(err, ErrForbidden):
		respond.Error(c, http.StatusForbidden, "forbidden", "not allowed for this account", nil)
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, ErrRejectionReasonRequired):
		respond.Error(c, http.StatusBadRequest, "rejection_reason_required", err.Error(), nil)
	case errors.Is(err, ErrBulkScheduleUnsupported):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, ErrIndexOutOfRange):
		respond.Error(c, http.StatusBadRequest, "index_out_of_range", err.Error(), nil)
	case errors.Is(err, ErrLimitReached):
		respond.Error(c, http.StatusConflict, "limit_reached", "too many active requests", nil)
	case errors.Is(err, ErrStubNotAvailable):
		respond.Error(c, http.StatusNotFound, "stub_not_available", err.Error(), nil)
	case errors.Is(err, ErrOperationFailed):
		respond.Error(c, http.StatusServiceUnavailable, "operation_failed", "operation failed, retry later", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "unexpected error", nil)
	}
}
