// Package api serves the assistant over HTTP.
package api

import (
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/celerix-dev/celerix-assist/internal/agents"
	"github.com/celerix-dev/celerix-assist/internal/chat"
	"github.com/celerix-dev/celerix-assist/internal/history"
	"github.com/celerix-dev/celerix-assist/internal/identity"
	"github.com/celerix-dev/celerix-assist/internal/reply"
	"github.com/celerix-dev/celerix-assist/internal/speech"
	"github.com/celerix-dev/celerix-assist/pkg/schema"
	"github.com/gin-gonic/gin"
)

// MaxMessageLength is the longest accepted chat message, in characters.
const MaxMessageLength = 2000

type Handler struct {
	Identity *identity.Store
	History  *history.Store
	Session  *chat.Session
	Router   *reply.Router
	Voice    *speech.Synthesizer
}

// Register mounts every route on r.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/health", h.Health)

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/agents", h.GetAgents)
		apiGroup.GET("/agents/:agent", h.GetAgent)
		apiGroup.GET("/agents/:agent/messages", h.GetMessages)
		apiGroup.PUT("/agents/:agent/messages", h.ImportMessages)
		apiGroup.DELETE("/agents/:agent/messages", h.ClearMessages)

		apiGroup.GET("/profile", h.GetProfile)
		apiGroup.POST("/login", h.Login)
		apiGroup.POST("/logout", h.Logout)

		apiGroup.POST("/respond", h.Respond)
		apiGroup.GET("/audio/latest", h.LatestAudio)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "API route not found"})
	})
}

// CORS allows the browser front end to call the API from another origin.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":           "healthy",
		"agents_available": len(agents.List()),
		"model_online":     h.Router != nil && h.Router.Online(),
		"speech_enabled":   h.Voice != nil && h.Voice.Enabled(),
		"timestamp":        time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) GetAgents(c *gin.Context) {
	c.JSON(http.StatusOK, agents.List())
}

func (h *Handler) GetAgent(c *gin.Context) {
	agent, ok := agents.Get(c.Param("agent"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Agent not found"})
		return
	}
	c.JSON(http.StatusOK, agent)
}

func (h *Handler) GetProfile(c *gin.Context) {
	p, ok := h.Identity.Active()
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not signed in"})
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) Login(c *gin.Context) {
	var input struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := h.Identity.Login(input.Name, input.Email)
	var verr *identity.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Message, "field": verr.Field})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) Logout(c *gin.Context) {
	if err := h.Identity.Logout(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h *Handler) GetMessages(c *gin.Context) {
	agentID, ok := h.knownAgent(c)
	if !ok {
		return
	}
	msgs, err := h.History.Messages(agentID)
	if err != nil {
		h.historyError(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

func (h *Handler) ImportMessages(c *gin.Context) {
	agentID, ok := h.knownAgent(c)
	if !ok {
		return
	}
	var msgs []schema.Message
	if err := c.ShouldBindJSON(&msgs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.History.Replace(agentID, msgs); err != nil {
		h.historyError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "count": len(msgs)})
}

func (h *Handler) ClearMessages(c *gin.Context) {
	agentID, ok := h.knownAgent(c)
	if !ok {
		return
	}
	if err := h.History.ClearAgent(agentID); err != nil {
		h.historyError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h *Handler) Respond(c *gin.Context) {
	var input struct {
		AgentID string `json:"agent_id"`
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, ok := agents.Get(input.AgentID); !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid agent_id"})
		return
	}
	msg := strings.TrimSpace(input.Message)
	if msg == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message cannot be empty"})
		return
	}
	if utf8.RuneCountInString(msg) > MaxMessageLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message too long (max 2000 characters)"})
		return
	}

	ex, err := h.Session.Send(c.Request.Context(), input.AgentID, msg)
	switch {
	case errors.Is(err, chat.ErrSignedOut):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	case errors.Is(err, chat.ErrBusy):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process your request. Please try again."})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reply":           ex.Assistant.Content,
		"agent_id":        ex.AgentID,
		"processing_time": ex.ProcessingTime.Seconds(),
		"source":          ex.Source,
		"exchange_id":     ex.ID,
	})
}

func (h *Handler) LatestAudio(c *gin.Context) {
	a := h.Session.Audio()
	if a == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no audio available"})
		return
	}
	f, err := a.Open()
	if err != nil {
		// released between lookup and open
		c.JSON(http.StatusNotFound, gin.H{"error": "no audio available"})
		return
	}
	defer f.Close()
	c.DataFromReader(http.StatusOK, a.Size(), a.ContentType(), f, nil)
}

func (h *Handler) knownAgent(c *gin.Context) (string, bool) {
	agentID := c.Param("agent")
	if _, ok := agents.Get(agentID); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Agent not found"})
		return "", false
	}
	return agentID, true
}

func (h *Handler) historyError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, history.ErrNoActiveUser):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not signed in"})
	case errors.Is(err, history.ErrInvalidRole), errors.Is(err, history.ErrMissingTimestamp):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
