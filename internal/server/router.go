package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/modkit/modnotes/internal/auth"
	"github.com/modkit/modnotes/internal/modactions"
	"github.com/modkit/modnotes/internal/moderators"
	"github.com/modkit/modnotes/internal/removalreasons"
	"github.com/modkit/modnotes/internal/usernotes"
)

const moderatorContextKey = "modnotes_moderator"

var (
	errMissingModeratorService = errors.New("moderator service dependency required")
	errMissingTokenManager     = errors.New("token manager dependency required")
	errMissingNotesStore       = errors.New("usernotes store dependency required")
	errMissingReasonsResolver  = errors.New("removal reasons resolver dependency required")
	errMissingSessionValidator = errors.New("session validator dependency required")
	errMissingDispatcher       = errors.New("realtime dispatcher dependency required")
	errInvalidAuthorization    = errors.New("authorization header missing or invalid")
)

// ModeratorTokenManager issues session tokens after credential verification
// and validates them on authorized requests.
type ModeratorTokenManager interface {
	IssueModeratorToken(ctx context.Context, claims auth.ModeratorClaims) (string, int64, error)
	ValidateToken(token string) (string, error)
}

type Dependencies struct {
	Moderators   *moderators.Service
	TokenManager ModeratorTokenManager
	Notes        *usernotes.Store
	Reasons      *removalreasons.Resolver
	Pipeline     *modactions.Pipeline
	Sessions     *auth.SessionValidator
	Realtime     *RealtimeDispatcher
	Clock        func() time.Time
	Logger       *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Moderators == nil {
		return nil, errMissingModeratorService
	}
	if deps.TokenManager == nil {
		return nil, errMissingTokenManager
	}
	if deps.Notes == nil {
		return nil, errMissingNotesStore
	}
	if deps.Reasons == nil {
		return nil, errMissingReasonsResolver
	}
	if deps.Sessions == nil {
		return nil, errMissingSessionValidator
	}
	if deps.Realtime == nil {
		return nil, errMissingDispatcher
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		moderators: deps.Moderators,
		tokens:     deps.TokenManager,
		notes:      deps.Notes,
		reasons:    deps.Reasons,
		pipeline:   deps.Pipeline,
		sessions:   deps.Sessions,
		realtime:   deps.Realtime,
		clock:      clock,
		logger:     logger,
	}

	router.POST("/auth/login", handler.handleLogin)

	protected := router.Group("/subreddits/:subreddit")
	protected.Use(handler.authorizeRequest)
	protected.GET("/notes", handler.handleListNotes)
	protected.GET("/notes/:user", handler.handleGetUserNotes)
	protected.POST("/notes/:user", handler.handleAddNote)
	protected.DELETE("/notes/:user/:createdAt", handler.handleDeleteNote)
	protected.GET("/reasons", handler.handleGetReasons)
	protected.POST("/message", handler.handleBuildMessage)
	protected.POST("/removals", handler.handleRemoval)

	// The stream endpoint authenticates via the session cookie because
	// EventSource clients cannot set an Authorization header.
	router.GET("/subreddits/:subreddit/stream", handler.handleStream)

	return router, nil
}

type httpHandler struct {
	moderators *moderators.Service
	tokens     ModeratorTokenManager
	notes      *usernotes.Store
	reasons    *removalreasons.Resolver
	pipeline   *modactions.Pipeline
	sessions   *auth.SessionValidator
	realtime   *RealtimeDispatcher
	clock      func() time.Time
	logger     *zap.Logger
}

type loginRequestPayload struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type loginResponsePayload struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request loginRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.Name) == "" || request.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	identity, err := h.moderators.Verify(c.Request.Context(), request.Name, request.Password)
	if err != nil {
		h.logger.Warn("moderator credential verification failed", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	token, expiresIn, err := h.tokens.IssueModeratorToken(c.Request.Context(), auth.ModeratorClaims{
		Name:        identity.Name,
		DisplayName: identity.DisplayName,
	})
	if err != nil {
		h.logger.Error("failed to issue session token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}

	c.SetCookie(h.sessions.CookieName(), token, int(expiresIn), "/", "", false, true)
	c.JSON(http.StatusOK, loginResponsePayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
	})
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	subject, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Warn("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(moderatorContextKey, subject)
	c.Next()
}
