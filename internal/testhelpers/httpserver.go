package testhelpers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/janhq/jan-chat-sync/internal/domain/conversation"
	"github.com/janhq/jan-chat-sync/internal/utils/platformerrors"
)

// HTTPBackend serves a FakeBackend over the chat backend REST contract.
type HTTPBackend struct {
	*httptest.Server
	Backend *FakeBackend

	mu        sync.Mutex
	token     string
	headers   []http.Header
	forced    []int
	requested int
}

// NewHTTPBackend starts a server over backend. When token is not empty every
// request must carry it as a bearer token.
func NewHTTPBackend(backend *FakeBackend, token string) *HTTPBackend {
	gin.SetMode(gin.TestMode)
	h := &HTTPBackend{Backend: backend, token: token}
	h.Server = httptest.NewServer(h.router())
	return h
}

// ForceStatus answers the next n requests with status and an error envelope.
func (h *HTTPBackend) ForceStatus(n, status int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := 0; i < n; i++ {
		h.forced = append(h.forced, status)
	}
}

// Requests returns how many requests reached the server.
func (h *HTTPBackend) Requests() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.requested
}

// LastHeader returns a header of the most recent request.
func (h *HTTPBackend) LastHeader(name string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.headers) == 0 {
		return ""
	}
	return h.headers[len(h.headers)-1].Get(name)
}

func (h *HTTPBackend) router() *gin.Engine {
	r := gin.New()
	r.Use(h.record)

	r.POST("/chat", h.sendChat)
	r.GET("/users/me", h.currentUser)

	conversations := r.Group("/conversations")
	conversations.GET("", h.listConversations)
	conversations.POST("", h.createConversation)
	conversations.POST("/bulk-delete", h.bulkDelete)
	conversations.GET("/:id", h.getConversation)
	conversations.PUT("/:id", h.updateConversation)
	conversations.DELETE("/:id", h.deleteConversation)
	conversations.POST("/:id/archive", h.archive)
	conversations.POST("/:id/unarchive", h.unarchive)

	messages := r.Group("/messages")
	messages.PUT("/:id/edit", h.editMessage)
	messages.PUT("/:id/versions/:version", h.switchVersion)
	messages.POST("/:id/regenerate", h.regenerate)
	messages.DELETE("/:id", h.deleteMessage)
	return r
}

func (h *HTTPBackend) record(c *gin.Context) {
	h.mu.Lock()
	h.requested++
	h.headers = append(h.headers, c.Request.Header.Clone())
	var forced int
	if len(h.forced) > 0 {
		forced = h.forced[0]
		h.forced = h.forced[1:]
	}
	token := h.token
	h.mu.Unlock()

	if forced != 0 {
		c.AbortWithStatusJSON(forced, gin.H{"success": false, "error": http.StatusText(forced)})
		return
	}
	if token != "" && c.GetHeader("Authorization") != "Bearer "+token {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid or missing token"})
		return
	}
	c.Next()
}

// fail maps a backend error onto the wire: explicit rejections are 200 with success false.
func fail(c *gin.Context, err error) {
	var pe *platformerrors.PlatformError
	if !errors.As(err, &pe) {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	status := http.StatusInternalServerError
	switch pe.GetErrorType() {
	case platformerrors.ErrorTypeValidation:
		status = http.StatusBadRequest
	case platformerrors.ErrorTypeAuthRequired:
		status = http.StatusUnauthorized
	case platformerrors.ErrorTypeNotFound:
		status = http.StatusNotFound
	case platformerrors.ErrorTypeConflict:
		status = http.StatusConflict
	case platformerrors.ErrorTypeNetwork:
		status = http.StatusServiceUnavailable
	case platformerrors.ErrorTypeServerRejected:
		status = http.StatusOK
	}
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": pe.Message})
}

func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return false
	}
	return true
}

func ok(c *gin.Context, fields gin.H) {
	body := gin.H{"success": true}
	for k, v := range fields {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}

func (h *HTTPBackend) sendChat(c *gin.Context) {
	var req conversation.ChatRequest
	if !bind(c, &req) {
		return
	}
	res, err := h.Backend.SendChat(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"conversation_id": res.ConversationID, "response": res.Response})
}

func (h *HTTPBackend) currentUser(c *gin.Context) {
	u, err := h.Backend.CurrentUser(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"user": u})
}

func (h *HTTPBackend) listConversations(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))
	res, err := h.Backend.ListConversations(c.Request.Context(), conversation.ListOptions{
		IncludeArchived: c.Query("include_archived") == "true",
		Page:            page,
		PerPage:         perPage,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"conversations": res.Conversations, "pagination": res.Pagination})
}

func (h *HTTPBackend) getConversation(c *gin.Context) {
	conv, err := h.Backend.GetConversation(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"conversation": conv})
}

func (h *HTTPBackend) createConversation(c *gin.Context) {
	var req conversation.CreateConversationRequest
	if !bind(c, &req) {
		return
	}
	conv, err := h.Backend.CreateConversation(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"conversation": conv})
}

func (h *HTTPBackend) updateConversation(c *gin.Context) {
	var req conversation.UpdateConversationRequest
	if !bind(c, &req) {
		return
	}
	conv, err := h.Backend.UpdateConversation(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"conversation": conv})
}

func (h *HTTPBackend) deleteConversation(c *gin.Context) {
	h.status(c, h.Backend.DeleteConversation(c.Request.Context(), c.Param("id")), "conversation deleted")
}

func (h *HTTPBackend) archive(c *gin.Context) {
	h.status(c, h.Backend.ArchiveConversation(c.Request.Context(), c.Param("id")), "conversation archived")
}

func (h *HTTPBackend) unarchive(c *gin.Context) {
	h.status(c, h.Backend.UnarchiveConversation(c.Request.Context(), c.Param("id")), "conversation unarchived")
}

func (h *HTTPBackend) bulkDelete(c *gin.Context) {
	var req conversation.BulkDeleteRequest
	if !bind(c, &req) {
		return
	}
	h.status(c, h.Backend.BulkDeleteConversations(c.Request.Context(), req), "conversations deleted")
}

func (h *HTTPBackend) editMessage(c *gin.Context) {
	var req conversation.EditMessageRequest
	if !bind(c, &req) {
		return
	}
	h.status(c, h.Backend.EditMessage(c.Request.Context(), c.Param("id"), req), "message edited")
}

func (h *HTTPBackend) switchVersion(c *gin.Context) {
	version, err := strconv.Atoi(c.Param("version"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "error": "version must be a number"})
		return
	}
	var req conversation.SwitchVersionRequest
	if !bind(c, &req) {
		return
	}
	h.status(c, h.Backend.SwitchMessageVersion(c.Request.Context(), c.Param("id"), version, req), "version switched")
}

func (h *HTTPBackend) regenerate(c *gin.Context) {
	var req conversation.RegenerateRequest
	if !bind(c, &req) {
		return
	}
	h.status(c, h.Backend.RegenerateMessage(c.Request.Context(), c.Param("id"), req), "message regenerated")
}

func (h *HTTPBackend) deleteMessage(c *gin.Context) {
	var req conversation.DeleteMessageRequest
	if !bind(c, &req) {
		return
	}
	h.status(c, h.Backend.DeleteMessage(c.Request.Context(), c.Param("id"), req), "message deleted")
}

func (h *HTTPBackend) status(c *gin.Context, err error, message string) {
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"message": message})
}
