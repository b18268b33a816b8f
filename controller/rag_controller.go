package controller

import (
	"errors"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/itish2003/therapybot/models"
	"github.com/itish2003/therapybot/services"
)

// SessionKey is the cookie-session key holding the caller's session id.
const SessionKey = "user_id"

// RAGController handles the HTTP requests for the chat API. It depends on the
// RAGService to perform the actual business logic.
type RAGController struct {
	ragService services.RAGService
}

// NewRAGController is a constructor function that creates a new RAGController.
// main.go injects the RAGService it assembles at startup.
func NewRAGController(service services.RAGService) *RAGController {
	return &RAGController{
		ragService: service,
	}
}

// Index serves the chat page and makes sure the caller has a session id.
func (c *RAGController) Index(ctx *gin.Context) {
	ensureSessionID(ctx)
	ctx.HTML(http.StatusOK, "chat.html", gin.H{})
}

// Chat is the Gin handler for POST /chat. The message is read from the form
// field msg first and from a JSON body {"msg": ...} second.
func (c *RAGController) Chat(ctx *gin.Context) {
	sessionID := ensureSessionID(ctx)

	msg := ctx.PostForm("msg")
	if msg == "" {
		var req models.ChatRequest
		if err := ctx.ShouldBindJSON(&req); err == nil {
			msg = req.Msg
		}
	}
	if msg == "" {
		ctx.JSON(http.StatusBadRequest, models.ErrorResponse{Error: services.ErrEmptyMessage.Error()})
		return
	}

	answer, err := c.ragService.Respond(ctx.Request.Context(), sessionID, msg)
	switch {
	case err == nil:
		ctx.JSON(http.StatusOK, models.ChatResponse{Answer: answer})
	case errors.Is(err, services.ErrEmptyMessage):
		ctx.JSON(http.StatusBadRequest, models.ErrorResponse{Error: services.ErrEmptyMessage.Error()})
	case errors.Is(err, services.ErrNotReady):
		ctx.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: services.ErrNotReady.Error()})
	default:
		// Full detail stays in the server log; the caller gets a generic message.
		log.Error().Err(err).
			Str("request_id", ctx.GetString(RequestIDKey)).
			Str("session_id", sessionID).
			Msg("chat endpoint error")
		ctx.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to generate reply"})
	}
}

// History is the Gin handler for GET /history. It returns the caller's turn log.
func (c *RAGController) History(ctx *gin.Context) {
	sessionID := ensureSessionID(ctx)
	turns := c.ragService.History(sessionID)
	ctx.JSON(http.StatusOK, models.HistoryResponse{
		SessionID: sessionID,
		Count:     len(turns),
		Turns:     turns,
	})
}

// Health is the Gin handler for GET /health. The process is up whenever it
// answers; ready is false until the chat pipeline can serve replies.
func (c *RAGController) Health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, models.HealthResponse{
		Status:  "healthy",
		Service: "therapybot",
		Ready:   c.ragService.Ready(),
	})
}

// ensureSessionID returns the session id from the cookie session, creating
// and saving a new random one when absent.
func ensureSessionID(ctx *gin.Context) string {
	session := sessions.Default(ctx)
	if id, ok := session.Get(SessionKey).(string); ok && id != "" {
		return id
	}

	id := uuid.NewString()
	session.Set(SessionKey, id)
	if err := session.Save(); err != nil {
		log.Warn().Err(err).Msg("failed to save session cookie")
	}
	return id
}
