package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"meal-journal/internal/assistant"
	"meal-journal/internal/chat"
	"meal-journal/internal/models"
	"meal-journal/internal/storage"
)

const maxImageBytes = 10 << 20

func (s *MealJournalServer) addChatAPI(rg *gin.RouterGroup) {
	rg.POST("", s.startChat)

	sessionGroup := rg.Group("/:id")
	{
		sessionGroup.GET("", s.getChat)
		sessionGroup.DELETE("", s.endChat)
		sessionGroup.POST("/messages", s.sendChatMessage)
		sessionGroup.POST("/images", s.sendChatImage)
		sessionGroup.POST("/foods", s.selectChatFood)
		sessionGroup.POST("/confirm", s.confirmChat)
	}
}

func (s *MealJournalServer) startChat(c *gin.Context) {
	var req struct {
		ParticipantID string `json:"participant_id"`
		Date          string `json:"date"`
		Meal          string `json:"meal"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Error("failed to bind request", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pid, err := s.config.ParticipantFor(req.ParticipantID)
	if err != nil {
		respondError(c, err, false)
		return
	}

	conv, err := s.chats.Start(pid, req.Date, req.Meal)
	if err != nil {
		respondError(c, err, false)
		return
	}

	slog.Debug("chat started", slog.String("conversation", conv.ID()), slog.String("participantID", pid))
	c.JSON(http.StatusCreated, conv.Snapshot())
}

func (s *MealJournalServer) conversation(c *gin.Context) (*chat.Conversation, bool) {
	conv, err := s.chats.Get(c.Param("id"))
	if err != nil {
		respondError(c, err, false)
		return nil, false
	}
	return conv, true
}

func (s *MealJournalServer) getChat(c *gin.Context) {
	conv, ok := s.conversation(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, conv.Snapshot())
}

func (s *MealJournalServer) endChat(c *gin.Context) {
	if err := s.chats.End(c.Param("id")); err != nil {
		respondError(c, err, false)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *MealJournalServer) sendChatMessage(c *gin.Context) {
	conv, ok := s.conversation(c)
	if !ok {
		return
	}

	var req struct {
		Text  string `json:"text"`
		Voice bool   `json:"voice"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Error("failed to bind request", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var (
		reply string
		err   error
	)
	if req.Voice {
		reply, err = conv.SendVoice(c.Request.Context(), req.Text)
	} else {
		reply, err = conv.SendText(c.Request.Context(), req.Text)
	}
	s.respondTurn(c, conv, reply, err, s.prompts.Errors.Text)
}

func (s *MealJournalServer) sendChatImage(c *gin.Context) {
	conv, ok := s.conversation(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		respondError(c, fmt.Errorf("image file is required: %w", storage.ErrInvalidArgument), false)
		return
	}
	if fileHeader.Size > maxImageBytes {
		respondError(c, fmt.Errorf("image is larger than %d bytes: %w", maxImageBytes, storage.ErrInvalidArgument), false)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, fmt.Errorf("failed to open upload: %w", storage.ErrInvalidArgument), false)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImageBytes))
	if err != nil {
		respondError(c, fmt.Errorf("failed to read upload: %w", storage.ErrInvalidArgument), false)
		return
	}

	image := models.Image{
		Name:     fileHeader.Filename,
		MimeType: fileHeader.Header.Get("Content-Type"),
		Data:     data,
	}
	reply, err := conv.SendImage(c.Request.Context(), image, fileHeader.Filename)
	s.respondTurn(c, conv, reply, err, s.prompts.Errors.Image)
}

func (s *MealJournalServer) selectChatFood(c *gin.Context) {
	conv, ok := s.conversation(c)
	if !ok {
		return
	}

	var req struct {
		Food   string          `json:"food"`
		Source models.FoodMode `json:"source"` // saved or recent
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Error("failed to bind request", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reply, err := conv.SelectFood(c.Request.Context(), req.Food, req.Source)
	s.respondTurn(c, conv, reply, err, s.prompts.Errors.FoodSelection)
}

// respondTurn answers a chat turn. Assistant failures still return the
// conversation, which now carries the apology shown to the participant.
func (s *MealJournalServer) respondTurn(c *gin.Context, conv *chat.Conversation, reply string, err error, failure string) {
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"reply": reply, "conversation": conv.Snapshot()})
	case chat.IsUserError(err):
		respondError(c, err, false)
	case errors.Is(err, assistant.ErrNotConfigured):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": s.prompts.Errors.APIKeyMissing, "conversation": conv.Snapshot()})
	default:
		slog.Error("chat turn failed", slog.String("conversation", conv.ID()), slog.String("error", err.Error()))
		c.JSON(http.StatusBadGateway, gin.H{"error": failure, "conversation": conv.Snapshot()})
	}
}

func (s *MealJournalServer) confirmChat(c *gin.Context) {
	conv, ok := s.conversation(c)
	if !ok {
		return
	}

	var req chat.Confirmation
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Error("failed to bind request", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry, err := conv.Confirm(c.Request.Context(), s.journal, s.questionnaire, req)
	resp := gin.H{"meal": models.MealEntry{Food: entry.Food, Questions: entry.Questions}}
	switch {
	case errors.Is(err, chat.ErrFoodNotSaved):
		resp["saved_food_error"] = foodNotSavedMessage
	case err != nil:
		respondError(c, err, true)
		return
	}

	resp["conversation"] = conv.Snapshot()
	c.JSON(http.StatusCreated, resp)
}
