package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/modkit/modnotes/internal/modactions"
	"github.com/modkit/modnotes/internal/removalreasons"
)

type reasonPayload struct {
	Text      string `json:"text"`
	FlairText string `json:"flair_text,omitempty"`
	FlairCSS  string `json:"flair_css,omitempty"`
}

type reasonsResponsePayload struct {
	Reasons   []reasonPayload `json:"reasons"`
	PMSubject string          `json:"pm_subject"`
	Header    string          `json:"header"`
	Footer    string          `json:"footer"`
	LogReason string          `json:"log_reason"`
	LogSub    string          `json:"log_sub"`
	LogTitle  string          `json:"log_title"`
	BanTitle  string          `json:"ban_title"`
}

func reasonsPayloadFrom(config removalreasons.Config) reasonsResponsePayload {
	payload := reasonsResponsePayload{
		Reasons:   make([]reasonPayload, 0, len(config.Reasons)),
		PMSubject: config.PMSubject,
		Header:    config.Header,
		Footer:    config.Footer,
		LogReason: config.LogReason,
		LogSub:    config.LogSub,
		LogTitle:  config.LogTitle,
		BanTitle:  config.BanTitle,
	}
	for _, reason := range config.Reasons {
		payload.Reasons = append(payload.Reasons, reasonPayload{
			Text:      reason.Text,
			FlairText: reason.FlairText,
			FlairCSS:  reason.FlairCSS,
		})
	}
	return payload
}

func (h *httpHandler) handleGetReasons(c *gin.Context) {
	subreddit := c.Param("subreddit")
	config, err := h.reasons.Resolve(c.Request.Context(), subreddit)
	if err != nil {
		if errors.Is(err, removalreasons.ErrNotEnabled) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_enabled"})
			return
		}
		h.logger.Error("failed to resolve removal reasons", zap.String("subreddit", subreddit), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "resolve_failed"})
		return
	}
	c.JSON(http.StatusOK, reasonsPayloadFrom(config))
}

type messageRequestPayload struct {
	ReasonIDs     []int    `json:"reason_ids"`
	CustomInputs  []string `json:"custom_inputs"`
	IncludeHeader bool     `json:"include_header"`
	IncludeFooter bool     `json:"include_footer"`
	Author        string   `json:"author"`
	Kind          string   `json:"kind"`
	Title         string   `json:"title"`
	URL           string   `json:"url"`
	Domain        string   `json:"domain"`
	Link          string   `json:"link"`
}

type messageResponsePayload struct {
	Body     string `json:"body"`
	Subject  string `json:"subject"`
	LogTitle string `json:"log_title"`
}

// buildMessage resolves the subreddit's configuration and assembles the
// outgoing message from the selected reasons. It reports malformed
// selections through the returned gin-ready status and code.
func (h *httpHandler) buildMessage(c *gin.Context, subreddit string, request messageRequestPayload) (removalreasons.Config, removalreasons.Message, bool) {
	config, err := h.reasons.Resolve(c.Request.Context(), subreddit)
	if err != nil {
		if errors.Is(err, removalreasons.ErrNotEnabled) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_enabled"})
		} else {
			h.logger.Error("failed to resolve removal reasons", zap.String("subreddit", subreddit), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "resolve_failed"})
		}
		return removalreasons.Config{}, removalreasons.Message{}, false
	}

	fragments := make([]string, 0, len(request.ReasonIDs))
	for _, id := range request.ReasonIDs {
		if id < 0 || id >= len(config.Reasons) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_reason"})
			return removalreasons.Config{}, removalreasons.Message{}, false
		}
		fragments = append(fragments, config.Reasons[id].Text)
	}

	message, err := removalreasons.BuildMessage(removalreasons.MessageRequest{
		Fragments:     fragments,
		CustomInputs:  request.CustomInputs,
		Header:        config.Header,
		Footer:        config.Footer,
		IncludeHeader: request.IncludeHeader,
		IncludeFooter: request.IncludeFooter,
		Subject:       config.PMSubject,
		LogTitle:      config.LogTitle,
		BanTitle:      config.BanTitle,
		Variables: removalreasons.Variables{
			Subreddit: subreddit,
			Author:    request.Author,
			Kind:      request.Kind,
			Title:     request.Title,
			URL:       request.URL,
			Domain:    request.Domain,
			Link:      request.Link,
			LogSub:    config.LogSub,
		},
	})
	if err != nil {
		switch {
		case errors.Is(err, removalreasons.ErrNoReasonSelected):
			c.JSON(http.StatusBadRequest, gin.H{"error": "no_reason_selected"})
		case errors.Is(err, removalreasons.ErrEmptyMessage):
			c.JSON(http.StatusBadRequest, gin.H{"error": "empty_message"})
		default:
			h.logger.Error("failed to build message", zap.String("subreddit", subreddit), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "build_failed"})
		}
		return removalreasons.Config{}, removalreasons.Message{}, false
	}
	return config, message, true
}

func (h *httpHandler) handleBuildMessage(c *gin.Context) {
	subreddit := c.Param("subreddit")

	var request messageRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	_, message, ok := h.buildMessage(c, subreddit, request)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, messageResponsePayload{
		Body:     message.Body,
		Subject:  message.Subject,
		LogTitle: message.LogTitle,
	})
}

type removalRequestPayload struct {
	messageRequestPayload
	Fullname  string `json:"fullname"`
	NotifyBy  string `json:"notify_by"`
	LogReason string `json:"log_reason"`
	Ban       bool   `json:"ban"`
	BanReason string `json:"ban_reason"`
}

func (h *httpHandler) handleRemoval(c *gin.Context) {
	if h.pipeline == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "removals_disabled"})
		return
	}
	subreddit := c.Param("subreddit")

	var request removalRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || request.Fullname == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	notifyBy, err := modactions.ParseNotifyMode(request.NotifyBy)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_notify_mode"})
		return
	}

	config, message, ok := h.buildMessage(c, subreddit, request.messageRequestPayload)
	if !ok {
		return
	}

	// Flair from every selected reason is aggregated, space-joined.
	flairTexts := make([]string, 0, len(request.ReasonIDs))
	flairClasses := make([]string, 0, len(request.ReasonIDs))
	for _, id := range request.ReasonIDs {
		reason := config.Reasons[id]
		if reason.FlairText != "" {
			flairTexts = append(flairTexts, reason.FlairText)
		}
		if reason.FlairCSS != "" {
			flairClasses = append(flairClasses, reason.FlairCSS)
		}
	}
	flairText := strings.Join(flairTexts, " ")
	flairCSS := strings.Join(flairClasses, " ")

	// The configured log reason is only a prefill; the moderator's entry
	// wins when present.
	logReason := strings.TrimSpace(request.LogReason)
	if logReason == "" {
		logReason = config.LogReason
	}

	statuses, err := h.pipeline.ExecuteRemoval(c.Request.Context(), modactions.RemovalRequest{
		Subreddit: subreddit,
		Fullname:  request.Fullname,
		Author:    request.Author,
		Kind:      request.Kind,
		URL:       request.URL,
		Link:      request.Link,
		NotifyBy:  notifyBy,
		Message:   message,
		FlairText: flairText,
		FlairCSS:  flairCSS,
		LogSub:    config.LogSub,
		LogReason: logReason,
		Ban:       request.Ban,
		BanReason: request.BanReason,
	})
	if err != nil {
		switch {
		case errors.Is(err, modactions.ErrLogReasonMissing):
			c.JSON(http.StatusBadRequest, gin.H{"error": "log_reason_missing"})
		case errors.Is(err, modactions.ErrNoNotifyMode):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_notify_mode"})
		default:
			h.logger.Error("removal pipeline failed", zap.String("subreddit", subreddit), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "removal_failed"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"steps": statuses})
}
