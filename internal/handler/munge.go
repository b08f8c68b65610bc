package handler

import (
	stderrors "errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/xorcism-go/internal/config"
	"github.com/xorcism-go/internal/dao"
	"github.com/xorcism-go/internal/errors"
	"github.com/xorcism-go/internal/httputil"
	"github.com/xorcism-go/internal/metrics"
	"github.com/xorcism-go/internal/pipeline"
	"github.com/xorcism-go/internal/trace"
	"github.com/xorcism-go/internal/xorcism"
)

const (
	HeaderMungeOffset   = "X-Munge-Offset"
	HeaderMungePosition = "X-Munge-Position"
)

// MungeHandler streams request bodies through a stored key
type MungeHandler struct {
	keys         *dao.KeyDAO
	stageSize    int
	defaultCodec string
}

// NewMungeHandler creates a new munge handler
func NewMungeHandler(cfg *config.Config, keys *dao.KeyDAO) *MungeHandler {
	return &MungeHandler{
		keys:         keys,
		stageSize:    cfg.Munger.StageSize,
		defaultCodec: cfg.Munger.DefaultCodec,
	}
}

// Munge handles POST /api/munge/:key. The body is streamed back munged,
// starting the key phase at the Range start or offset query. With
// ?decode=true the body is unmunged and then decompressed instead.
func (h *MungeHandler) Munge(c *gin.Context) {
	ctx := c.Request.Context()
	rangeHeader := c.GetHeader("Range")

	offset, err := httputil.ParseOffset(rangeHeader, c.Query("offset"))
	if err != nil {
		RespondError(c.Writer, errors.NewBadRequestWithCause("Invalid offset", err))
		return
	}

	codec, err := pipeline.ParseCodec(c.DefaultQuery("codec", h.defaultCodec))
	if err != nil {
		RespondError(c.Writer, errors.NewBadRequestWithCause("Invalid codec", err))
		return
	}
	decode, err := strconv.ParseBool(c.DefaultQuery("decode", "false"))
	if err != nil {
		RespondError(c.Writer, errors.NewBadRequestWithCause("Invalid decode flag", err))
		return
	}

	m, err := h.keys.NewMunger(c.Param("key"), offset)
	if err != nil {
		RespondError(c.Writer, err)
		return
	}

	// The response is written while the body is still being read. HTTP/1.x
	// servers drop the unread body on the first flush unless full duplex is on.
	if err := http.NewResponseController(c.Writer).EnableFullDuplex(); err != nil && !stderrors.Is(err, http.ErrNotSupported) {
		RespondError(c.Writer, errors.NewStreamError("Failed to enable full duplex", err))
		return
	}

	c.Header("Content-Type", "application/octet-stream")
	c.Header(HeaderMungeOffset, strconv.FormatUint(offset, 10))
	if rangeHeader != "" {
		c.Header("Content-Range", httputil.ContentRangeHeader(offset))
		c.Status(http.StatusPartialContent)
	} else {
		c.Status(http.StatusOK)
	}

	op := "encode"
	var n int64
	if decode {
		op = "decode"
		n, err = pipeline.Decode(c.Writer, c.Request.Body, m, codec)
	} else {
		n, err = pipeline.Encode(c.Writer, c.Request.Body, m, codec, xorcism.WithStageSize(h.stageSize))
	}
	metrics.AddMunged(op, n)

	if err != nil {
		metrics.StreamFailed(op)
		log.Warn().Err(err).Int64("bytes", n).Msg(trace.LogPrefix(ctx, "munge"))
		if !c.Writer.Written() {
			RespondError(c.Writer, errors.NewStreamError("Failed to munge body", err))
		}
		return
	}

	log.Debug().Uint64("offset", offset).Int64("bytes", n).Str("codec", string(codec)).
		Msg(trace.LogPrefix(ctx, "munge"))
}

// SessionHandler handles /api/sessions routes
type SessionHandler struct {
	keys         *dao.KeyDAO
	sessions     *dao.SessionDAO
	maxChunkSize int64
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(cfg *config.Config, keys *dao.KeyDAO, sessions *dao.SessionDAO) *SessionHandler {
	return &SessionHandler{
		keys:         keys,
		sessions:     sessions,
		maxChunkSize: cfg.Munger.MaxChunkSize,
	}
}

// Create starts a session on an existing key
func (h *SessionHandler) Create(c *gin.Context) {
	var req struct {
		Key      string `json:"key"`
		Position uint64 `json:"position"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c.Writer, errors.NewBadRequestWithCause("Invalid request body", err))
		return
	}
	if _, err := h.keys.Get(req.Key); err != nil {
		RespondError(c.Writer, err)
		return
	}

	s, err := h.sessions.Create(req.Key, req.Position)
	if err != nil {
		RespondError(c.Writer, errors.NewStorageError("Failed to create session", err))
		return
	}

	log.Info().Str("session", s.ID).Str("key", s.KeyName).
		Msg(trace.LogPrefix(c.Request.Context(), "session-create"))
	RespondCreated(c.Writer, s)
}

// Get returns a session and its position
func (h *SessionHandler) Get(c *gin.Context) {
	s, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		RespondError(c.Writer, err)
		return
	}
	RespondSuccess(c.Writer, s)
}

// Munge handles PUT /api/sessions/:id. The chunk is munged from the stored
// position and the advanced position is persisted before anything is sent,
// so a failed or conflicting request leaves the session untouched.
func (h *SessionHandler) Munge(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	s, err := h.sessions.Get(id)
	if err != nil {
		RespondError(c.Writer, err)
		return
	}

	chunk, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.maxChunkSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			RespondError(c.Writer, errors.NewBadRequest("Chunk exceeds max_chunk_size"))
			return
		}
		RespondError(c.Writer, errors.NewStreamError("Failed to read chunk", err))
		return
	}

	m, err := h.keys.NewMunger(s.KeyName, s.Position)
	if err != nil {
		RespondError(c.Writer, err)
		return
	}
	m.MungeInPlace(chunk)

	updated, err := h.sessions.Advance(id, s.Position, uint64(len(chunk)))
	if err != nil {
		RespondError(c.Writer, err)
		return
	}
	metrics.AddMunged("session", int64(len(chunk)))

	log.Debug().Str("session", id).Uint64("from", s.Position).Uint64("to", updated.Position).
		Msg(trace.LogPrefix(ctx, "session-munge"))

	c.Header(HeaderMungeOffset, strconv.FormatUint(s.Position, 10))
	c.Header(HeaderMungePosition, strconv.FormatUint(updated.Position, 10))
	c.Data(http.StatusOK, "application/octet-stream", chunk)
}

// Delete ends a session
func (h *SessionHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.sessions.Delete(id); err != nil {
		RespondError(c.Writer, err)
		return
	}

	log.Info().Str("session", id).Msg(trace.LogPrefix(c.Request.Context(), "session-delete"))
	RespondSuccessMsg(c.Writer, "deleted")
}
