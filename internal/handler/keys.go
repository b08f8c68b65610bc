package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/xorcism-go/internal/dao"
	"github.com/xorcism-go/internal/errors"
	"github.com/xorcism-go/internal/trace"
)

// KeyHandler handles /api/keys routes
type KeyHandler struct {
	keys *dao.KeyDAO
}

// NewKeyHandler creates a new key handler
func NewKeyHandler(keys *dao.KeyDAO) *KeyHandler {
	return &KeyHandler{keys: keys}
}

// keyView is a key profile as returned by the API. Material is never echoed.
type keyView struct {
	Name      string    `json:"name"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

func viewOf(p dao.KeyProfile) keyView {
	return keyView{Name: p.Name, Source: p.Source, CreatedAt: p.CreatedAt}
}

// Create stores a new key profile
func (h *KeyHandler) Create(c *gin.Context) {
	var req struct {
		Name     string `json:"name"`
		Source   string `json:"source"`
		Material string `json:"material"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c.Writer, errors.NewBadRequestWithCause("Invalid request body", err))
		return
	}

	p, err := h.keys.Create(dao.KeyProfile{Name: req.Name, Source: req.Source, Material: req.Material})
	if err != nil {
		RespondError(c.Writer, err)
		return
	}

	log.Info().Str("key", p.Name).Str("source", p.Source).
		Msg(trace.LogPrefix(c.Request.Context(), "key-create"))
	RespondCreated(c.Writer, viewOf(*p))
}

// List returns all key profiles
func (h *KeyHandler) List(c *gin.Context) {
	profiles, err := h.keys.List()
	if err != nil {
		RespondError(c.Writer, errors.NewStorageError("Failed to list keys", err))
		return
	}

	views := make([]keyView, 0, len(profiles))
	for _, p := range profiles {
		views = append(views, viewOf(p))
	}
	RespondSuccess(c.Writer, views)
}

// Get returns one key profile
func (h *KeyHandler) Get(c *gin.Context) {
	p, err := h.keys.Get(c.Param("name"))
	if err != nil {
		RespondError(c.Writer, err)
		return
	}
	RespondSuccess(c.Writer, viewOf(*p))
}

// Delete removes a key profile
func (h *KeyHandler) Delete(c *gin.Context) {
	name := c.Param("name")
	if err := h.keys.Delete(name); err != nil {
		RespondError(c.Writer, err)
		return
	}

	log.Info().Str("key", name).Msg(trace.LogPrefix(c.Request.Context(), "key-delete"))
	RespondSuccessMsg(c.Writer, "deleted")
}
