package server

import (
	"errors"
	"html"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/modkit/modnotes/internal/usernotes"
)

type notePayload struct {
	Text        string `json:"text"`
	CreatedAtMS int64  `json:"created_at_ms"`
	Moderator   string `json:"moderator"`
	Link        string `json:"link,omitempty"`
	WarningType string `json:"warning_type,omitempty"`
}

type userNotesPayload struct {
	User  string        `json:"user"`
	Notes []notePayload `json:"notes"`
}

type previewPayload struct {
	Text            string `json:"text"`
	AdditionalNotes int    `json:"additional_notes"`
	Color           string `json:"color"`
}

func notePayloadFrom(note usernotes.Note) notePayload {
	return notePayload{
		Text:        html.UnescapeString(note.Text),
		CreatedAtMS: note.CreatedAt,
		Moderator:   note.Moderator,
		Link:        note.LinkedThingID,
		WarningType: note.WarningType,
	}
}

func (h *httpHandler) handleListNotes(c *gin.Context) {
	subreddit := c.Param("subreddit")
	doc, err := h.notes.Load(c.Request.Context(), subreddit)
	if err != nil {
		h.renderNotesError(c, subreddit, err)
		return
	}

	users := make([]userNotesPayload, 0, len(doc.Users))
	for _, record := range doc.Users {
		payload := userNotesPayload{User: record.Name, Notes: make([]notePayload, 0, len(record.Notes))}
		for _, note := range record.Notes {
			payload.Notes = append(payload.Notes, notePayloadFrom(note))
		}
		users = append(users, payload)
	}
	c.JSON(http.StatusOK, gin.H{"subreddit": subreddit, "users": users})
}

func (h *httpHandler) handleGetUserNotes(c *gin.Context) {
	subreddit := c.Param("subreddit")
	user := c.Param("user")

	doc, err := h.notes.Load(c.Request.Context(), subreddit)
	if err != nil {
		h.renderNotesError(c, subreddit, err)
		return
	}
	record, ok := doc.User(user)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "user_not_found"})
		return
	}

	payload := userNotesPayload{User: record.Name, Notes: make([]notePayload, 0, len(record.Notes))}
	for _, note := range record.Notes {
		payload.Notes = append(payload.Notes, notePayloadFrom(note))
	}

	response := gin.H{"user": payload.User, "notes": payload.Notes}
	if preview, ok := doc.PreviewUser(user); ok {
		response["preview"] = previewPayload{
			Text:            preview.Text,
			AdditionalNotes: preview.AdditionalNotes,
			Color:           preview.Color,
		}
	}
	c.JSON(http.StatusOK, response)
}

type addNoteRequestPayload struct {
	Text        string `json:"text"`
	Link        string `json:"link"`
	WarningType string `json:"warning_type"`
}

func (h *httpHandler) handleAddNote(c *gin.Context) {
	subreddit := c.Param("subreddit")
	user := c.Param("user")
	moderator := c.GetString(moderatorContextKey)

	var request addNoteRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	link := request.Link
	if thingID := usernotes.ThingIDFromPermalink(link); thingID != "" {
		link = thingID
	}

	note := usernotes.Note{
		Text:          html.EscapeString(request.Text),
		CreatedAt:     h.clock().UnixMilli(),
		Moderator:     moderator,
		LinkedThingID: link,
		WarningType:   request.WarningType,
	}
	if err := h.notes.UpsertNote(c.Request.Context(), subreddit, user, note); err != nil {
		switch {
		case errors.Is(err, usernotes.ErrInvalidWarningType),
			errors.Is(err, usernotes.ErrInvalidSubreddit),
			errors.Is(err, usernotes.ErrInvalidUserName):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		case errors.Is(err, usernotes.ErrSchemaTooNew):
			c.JSON(http.StatusConflict, gin.H{"error": "schema_too_new"})
		default:
			h.logger.Error("failed to save note", zap.String("subreddit", subreddit), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "save_failed"})
		}
		return
	}

	h.realtime.Publish(RealtimeMessage{
		Subreddit: subreddit,
		EventType: RealtimeEventNoteChanged,
		User:      user,
		Moderator: moderator,
		Timestamp: h.clock().UTC(),
	})
	c.JSON(http.StatusCreated, gin.H{"created_at_ms": note.CreatedAt})
}

func (h *httpHandler) handleDeleteNote(c *gin.Context) {
	subreddit := c.Param("subreddit")
	user := c.Param("user")
	moderator := c.GetString(moderatorContextKey)

	createdAt, err := strconv.ParseInt(c.Param("createdAt"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	if err := h.notes.DeleteNote(c.Request.Context(), subreddit, user, createdAt, moderator); err != nil {
		switch {
		case errors.Is(err, usernotes.ErrNoNotes),
			errors.Is(err, usernotes.ErrUserNotFound),
			errors.Is(err, usernotes.ErrNoteNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "note_not_found"})
		case errors.Is(err, usernotes.ErrSchemaTooNew):
			c.JSON(http.StatusConflict, gin.H{"error": "schema_too_new"})
		default:
			h.logger.Error("failed to delete note", zap.String("subreddit", subreddit), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "delete_failed"})
		}
		return
	}

	h.realtime.Publish(RealtimeMessage{
		Subreddit: subreddit,
		EventType: RealtimeEventNoteChanged,
		User:      user,
		Moderator: moderator,
		Timestamp: h.clock().UTC(),
	})
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) renderNotesError(c *gin.Context, subreddit string, err error) {
	switch {
	case errors.Is(err, usernotes.ErrNoNotes):
		c.JSON(http.StatusNotFound, gin.H{"error": "no_notes"})
	case errors.Is(err, usernotes.ErrSchemaTooNew):
		c.JSON(http.StatusConflict, gin.H{"error": "schema_too_new"})
	case errors.Is(err, usernotes.ErrInvalidSubreddit):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
	default:
		h.logger.Error("failed to load notes", zap.String("subreddit", subreddit), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load_failed"})
	}
}
