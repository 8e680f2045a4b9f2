package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"meal-journal/internal/journal"
	"meal-journal/internal/models"
	"meal-journal/internal/questionnaire"
	"meal-journal/internal/storage"
)

// "-" in the :pid segment stands for the configured default participant.
const defaultParticipantSegment = "-"

func (s *MealJournalServer) addJournalAPI(rg *gin.RouterGroup) {
	rg.GET("/record", s.getRecord)

	journalGroup := rg.Group("/journal")
	{
		journalGroup.GET("/:date", s.getDay)
		journalGroup.PUT("/:date", s.editDay)
	}

	rg.POST("/meals", s.logMeal)

	foodsGroup := rg.Group("/foods")
	{
		foodsGroup.GET("/recent", s.getRecentFoods) // ?meal=breakfast&q=egg
		foodsGroup.GET("/saved", s.getSavedFoods)   // ?mealtype=lunch&q=soup
		foodsGroup.POST("/saved", s.saveFood)
		foodsGroup.DELETE("/saved/:index", s.deleteSavedFood)
	}
}

func (s *MealJournalServer) participantID(c *gin.Context) (string, bool) {
	pid := c.Param("pid")
	if pid == defaultParticipantSegment {
		pid = ""
	}
	id, err := s.config.ParticipantFor(pid)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return id, true
}

func (s *MealJournalServer) getRecord(c *gin.Context) {
	pid, ok := s.participantID(c)
	if !ok {
		return
	}

	doc, err := s.journal.Record(c.Request.Context(), pid)
	if err != nil {
		respondError(c, err, false)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (s *MealJournalServer) getDay(c *gin.Context) {
	pid, ok := s.participantID(c)
	if !ok {
		return
	}

	day, err := s.journal.Day(c.Request.Context(), pid, c.Param("date"))
	if err != nil {
		respondError(c, err, false)
		return
	}
	c.JSON(http.StatusOK, day)
}

func (s *MealJournalServer) editDay(c *gin.Context) {
	pid, ok := s.participantID(c)
	if !ok {
		return
	}

	var day models.DayRecord
	if err := c.ShouldBindJSON(&day); err != nil {
		slog.Error("failed to bind request", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	date := c.Param("date")
	if err := s.journal.EditDay(c.Request.Context(), pid, date, day); err != nil {
		respondError(c, err, true)
		return
	}

	slog.Info("journal day edited", slog.String("participantID", pid), slog.String("date", date))
	c.JSON(http.StatusOK, day)
}

type logMealRequest struct {
	Date     string                 `json:"date"`
	Meal     string                 `json:"meal"`
	Food     string                 `json:"food"`
	Answers  []questionnaire.Answer `json:"answers"`
	Notes    string                 `json:"notes"`
	SaveFood bool                   `json:"save_food"`
}

func (s *MealJournalServer) logMeal(c *gin.Context) {
	pid, ok := s.participantID(c)
	if !ok {
		return
	}

	var req logMealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Error("failed to bind request", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	questions, err := s.questionnaire.Build(req.Answers, req.Notes)
	if err != nil {
		respondError(c, err, false)
		return
	}

	entry := journal.MealLog{Date: req.Date, Meal: req.Meal, Food: req.Food, Questions: questions}
	if err := s.journal.LogMeal(c.Request.Context(), pid, entry); err != nil {
		respondError(c, err, true)
		return
	}

	resp := gin.H{"meal": models.MealEntry{Food: entry.Food, Questions: entry.Questions}}
	if req.SaveFood {
		slot, _ := models.ParseMealSlot(req.Meal)
		saved, err := s.journal.SaveFood(c.Request.Context(), pid, req.Food, string(slot))
		if err != nil {
			slog.Error("saving logged food failed", slog.String("participantID", pid), slog.String("error", err.Error()))
			resp["saved_food_error"] = foodNotSavedMessage
		} else {
			resp["saved_food"] = saved
		}
	}

	c.JSON(http.StatusCreated, resp)
}

func (s *MealJournalServer) getRecentFoods(c *gin.Context) {
	pid, ok := s.participantID(c)
	if !ok {
		return
	}

	doc, err := s.journal.Record(c.Request.Context(), pid)
	if err != nil {
		respondError(c, err, false)
		return
	}
	c.JSON(http.StatusOK, gin.H{"foods": journal.SearchRecent(journal.RecentFoods(doc, c.Query("meal")), c.Query("q"))})
}

func (s *MealJournalServer) getSavedFoods(c *gin.Context) {
	pid, ok := s.participantID(c)
	if !ok {
		return
	}

	doc, err := s.journal.Record(c.Request.Context(), pid)
	if err != nil {
		respondError(c, err, false)
		return
	}
	c.JSON(http.StatusOK, gin.H{"foods": journal.SearchSaved(journal.SavedFoods(doc, c.Query("mealtype")), c.Query("q"))})
}

func (s *MealJournalServer) saveFood(c *gin.Context) {
	pid, ok := s.participantID(c)
	if !ok {
		return
	}

	var req struct {
		Food     string `json:"food"`
		MealType string `json:"mealtype"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Error("failed to bind request", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	saved, err := s.journal.SaveFood(c.Request.Context(), pid, req.Food, req.MealType)
	if err != nil {
		respondError(c, err, true)
		return
	}
	c.JSON(http.StatusCreated, saved)
}

func (s *MealJournalServer) deleteSavedFood(c *gin.Context) {
	pid, ok := s.participantID(c)
	if !ok {
		return
	}

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		respondError(c, fmt.Errorf("index must be a number: %w", storage.ErrInvalidArgument), false)
		return
	}

	if err := s.journal.DeleteSavedFood(c.Request.Context(), pid, index); err != nil {
		respondError(c, err, true)
		return
	}

	slog.Info("saved food deleted", slog.String("participantID", pid), slog.Int("index", index))
	c.Status(http.StatusNoContent)
}
