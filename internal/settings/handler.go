package settings

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"registrar-backend/internal/requests"
	"registrar-backend/internal/shared/server/respond"
)

// Handler exposes the registrar settings over HTTP.
type Handler struct {
	Store *Store
}

// NewHandler constructs a Handler.
func NewHandler(store *Store) *Handler {
	return &Handler{Store: store}
}

// RegisterRoutes attaches read-only routes for signed-in users.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/settings/public", h.public)
}

// RegisterAdminRoutes attaches the full view and the reload trigger.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.GET("/settings", h.get)
	rg.POST("/settings/reload", h.reload)
}

type documentOption struct {
	Type           string `json:"type"`
	Label          string `json:"label"`
	ProcessingDays int    `json:"processingDays"`
}

func (h *Handler) public(c *gin.Context) {
	s := h.Store.Get()
	docs := make([]documentOption, 0, len(requests.DocumentTypes()))
	for _, dt := range requests.DocumentTypes() {
		days := requests.BaseProcessingDays(dt)
		if override, ok := s.ProcessingDays[dt]; ok && override > 0 {
			days = override
		}
		docs = append(docs, documentOption{Type: string(dt), Label: dt.Label(), ProcessingDays: days})
	}
	respond.OK(c, gin.H{
		"school":        s.School,
		"timeSlots":     s.TimeSlots,
		"documentTypes": docs,
	})
}

func (h *Handler) get(c *gin.Context) {
	respond.OK(c, gin.H{"settings": h.Store.Get(), "source": h.Store.Path()})
}

func (h *Handler) reload(c *gin.Context) {
	if h.Store.Path() == "" {
		respond.Error(c, http.StatusConflict, "settings_not_reloadable", "no settings file configured", nil)
		return
	}
	if err := h.Store.Reload(); err != nil {
		respond.Error(c, http.StatusUnprocessableEntity, "settings_invalid", err.Error(), nil)
		return
	}
	respond.OK(c, gin.H{"settings": h.Store.Get(), "source": h.Store.Path()})
}
