// internal/server/tools.go
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
	"github.com/gin-gonic/gin"

	"meal-journal/internal/journal"
	"meal-journal/internal/models"
	"meal-journal/internal/questionnaire"
	"meal-journal/internal/storage"
)

type toolHandler func(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error)

type LogMealParams struct {
	ParticipantID string                 `json:"participant_id,omitempty" description:"Participant whose journal is written (defaults to the configured participant in local use)"`
	Date          string                 `json:"date" description:"Day of the meal (YYYY-MM-DD)"`
	Meal          string                 `json:"meal" description:"breakfast, lunch, dinner, snacks or snack/drink"`
	Food          string                 `json:"food" description:"What was eaten"`
	Answers       []questionnaire.Answer `json:"answers,omitempty" description:"Questionnaire answers, all or none"`
	Notes         string                 `json:"notes,omitempty" description:"Free-text notes"`
	SaveFood      bool                   `json:"save_food,omitempty" description:"Also add the food to saved foods"`
}

type DayParams struct {
	ParticipantID string           `json:"participant_id,omitempty"`
	Date          string           `json:"date" description:"Day to read or replace (YYYY-MM-DD)"`
	Meals         models.DayRecord `json:"meals,omitempty" description:"Full replacement for the day; slots left out are removed"`
}

type SaveFoodParams struct {
	ParticipantID string `json:"participant_id,omitempty"`
	Food          string `json:"food" description:"Food to keep for quick logging"`
	MealType      string `json:"mealtype" description:"Meal the food belongs to"`
}

type DeleteSavedFoodParams struct {
	ParticipantID string `json:"participant_id,omitempty"`
	Index         *int   `json:"index" description:"Position in savedFoods as stored"`
}

type FoodsParams struct {
	ParticipantID string `json:"participant_id,omitempty"`
	Meal          string `json:"meal,omitempty" description:"Only foods logged for this meal"`
	MealType      string `json:"mealtype,omitempty" description:"Only saved foods of this meal type"`
	Query         string `json:"query,omitempty" description:"Case-insensitive text the food must contain"`
}

func (s *MealJournalServer) tools() map[string]toolHandler {
	return map[string]toolHandler{
		"log_meal":          s.handleLogMeal,
		"edit_journal_day":  s.handleEditJournalDay,
		"get_journal_day":   s.handleGetJournalDay,
		"save_food":         s.handleSaveFood,
		"delete_saved_food": s.handleDeleteSavedFood,
		"recent_foods":      s.handleRecentFoods,
		"saved_foods":       s.handleSavedFoods,
	}
}

func (s *MealJournalServer) handleMCP(c *gin.Context) {
	// Decode the MCP request
	var request protocol.CallToolRequest
	if err := json.NewDecoder(c.Request.Body).Decode(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid JSON: %v", err)})
		return
	}

	handler, ok := s.tools()[request.Name]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("Unknown tool: %s", request.Name)})
		return
	}

	result, err := handler(c.Request.Context(), &request)
	if err != nil {
		slog.Warn("tool call failed", slog.String("tool", request.Name), slog.String("error", err.Error()))
		respondError(c, err, false)
		return
	}
	c.JSON(http.StatusOK, result)
}

// extractParams safely extracts parameters from the request arguments
func extractParams(req *protocol.CallToolRequest, target interface{}) error {
	jsonBytes, err := json.Marshal(req.Arguments)
	if err != nil {
		return fmt.Errorf("failed to marshal arguments: %w", err)
	}

	if err := json.Unmarshal(jsonBytes, target); err != nil {
		return fmt.Errorf("invalid parameters: %v: %w", err, storage.ErrInvalidArgument)
	}

	return nil
}

func (s *MealJournalServer) handleLogMeal(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params LogMealParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}
	pid, err := s.config.ParticipantFor(params.ParticipantID)
	if err != nil {
		return nil, err
	}

	questions, err := s.questionnaire.Build(params.Answers, params.Notes)
	if err != nil {
		return nil, err
	}

	entry := journal.MealLog{Date: params.Date, Meal: params.Meal, Food: params.Food, Questions: questions}
	if err := s.journal.LogMeal(ctx, pid, entry); err != nil {
		return nil, err
	}

	result := map[string]interface{}{
		"date": entry.Date,
		"meal": entry.Meal,
		"entry": models.MealEntry{
			Food:      entry.Food,
			Questions: entry.Questions,
		},
	}
	if params.SaveFood {
		slot, _ := models.ParseMealSlot(params.Meal)
		saved, err := s.journal.SaveFood(ctx, pid, params.Food, string(slot))
		if err != nil {
			slog.Error("saving logged food failed", slog.String("participantID", pid), slog.String("error", err.Error()))
			result["saved_food_error"] = foodNotSavedMessage
		} else {
			result["saved_food"] = saved
		}
	}
	return s.createJSONResponse(result)
}

func (s *MealJournalServer) handleEditJournalDay(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params DayParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}
	pid, err := s.config.ParticipantFor(params.ParticipantID)
	if err != nil {
		return nil, err
	}

	if err := s.journal.EditDay(ctx, pid, params.Date, params.Meals); err != nil {
		return nil, err
	}
	return s.createJSONResponse(map[string]interface{}{"date": params.Date, "meals": params.Meals})
}

func (s *MealJournalServer) handleGetJournalDay(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params DayParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}
	pid, err := s.config.ParticipantFor(params.ParticipantID)
	if err != nil {
		return nil, err
	}

	day, err := s.journal.Day(ctx, pid, params.Date)
	if err != nil {
		return nil, err
	}
	return s.createJSONResponse(map[string]interface{}{"date": params.Date, "meals": day})
}

func (s *MealJournalServer) handleSaveFood(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params SaveFoodParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}
	pid, err := s.config.ParticipantFor(params.ParticipantID)
	if err != nil {
		return nil, err
	}

	saved, err := s.journal.SaveFood(ctx, pid, params.Food, params.MealType)
	if err != nil {
		return nil, err
	}
	return s.createJSONResponse(saved)
}

func (s *MealJournalServer) handleDeleteSavedFood(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params DeleteSavedFoodParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}
	if params.Index == nil {
		return nil, fmt.Errorf("index is required: %w", storage.ErrInvalidArgument)
	}
	pid, err := s.config.ParticipantFor(params.ParticipantID)
	if err != nil {
		return nil, err
	}

	if err := s.journal.DeleteSavedFood(ctx, pid, *params.Index); err != nil {
		return nil, err
	}
	return s.createJSONResponse(map[string]interface{}{"deleted": *params.Index})
}

func (s *MealJournalServer) handleRecentFoods(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params FoodsParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}
	pid, err := s.config.ParticipantFor(params.ParticipantID)
	if err != nil {
		return nil, err
	}

	doc, err := s.journal.Record(ctx, pid)
	if err != nil {
		return nil, err
	}
	return s.createJSONResponse(journal.SearchRecent(journal.RecentFoods(doc, params.Meal), params.Query))
}

func (s *MealJournalServer) handleSavedFoods(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params FoodsParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}
	pid, err := s.config.ParticipantFor(params.ParticipantID)
	if err != nil {
		return nil, err
	}

	doc, err := s.journal.Record(ctx, pid)
	if err != nil {
		return nil, err
	}
	return s.createJSONResponse(journal.SearchSaved(journal.SavedFoods(doc, params.MealType), params.Query))
}

func (s *MealJournalServer) createJSONResponse(data interface{}) (*protocol.CallToolResult, error) {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}

	return &protocol.CallToolResult{
		Content: []protocol.Content{
			protocol.TextContent{
				Type: "text",
				Text: string(jsonBytes),
			},
		},
	}, nil
}
