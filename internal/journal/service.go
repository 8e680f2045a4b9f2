// internal/journal/service.go
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"meal-journal/internal/models"
	"meal-journal/internal/storage"
)

// Service applies one logical change at a time to a participant's document:
// read it, merge in memory, write the whole thing back. Read and write are
// separate round trips with nothing held in between, so two writers racing on
// the same participant can lose each other's change. Last writer wins.
type Service struct {
	store storage.DocumentStore
	now   func() time.Time
}

func NewService(store storage.DocumentStore) *Service {
	return &Service{store: store, now: time.Now}
}

// MealLog is one confirmed meal for one slot of one day.
type MealLog struct {
	Date      string
	Meal      string
	Food      string
	Questions map[string]models.QuestionAnswer
}

// LogMeal sets doc[date][meal], keeping every other slot of that day and
// every other day as stored.
func (s *Service) LogMeal(ctx context.Context, participantID string, entry MealLog) error {
	if err := validateDate(entry.Date); err != nil {
		return err
	}
	slot, ok := models.ParseMealSlot(entry.Meal)
	if !ok {
		return fmt.Errorf("unknown meal type %q: %w", entry.Meal, storage.ErrInvalidArgument)
	}

	meal, err := json.Marshal(models.MealEntry{Food: entry.Food, Questions: entry.Questions})
	if err != nil {
		return fmt.Errorf("failed to encode meal: %w", err)
	}

	return s.mergeAndWrite(ctx, participantID, func(doc models.Document) error {
		day := map[string]json.RawMessage{}
		if raw, ok := doc[entry.Date]; ok {
			if err := json.Unmarshal(raw, &day); err != nil {
				slog.Warn("replacing malformed day record",
					slog.String("participantID", participantID),
					slog.String("date", entry.Date),
					slog.String("error", err.Error()))
				day = map[string]json.RawMessage{}
			}
		}
		day[string(slot)] = meal

		encoded, err := json.Marshal(day)
		if err != nil {
			return fmt.Errorf("failed to encode day: %w", err)
		}
		doc[entry.Date] = encoded
		return nil
	})
}

// EditDay replaces doc[date] with day as a whole. Slots missing from day are
// dropped, so callers resubmit the full day they fetched. Slot keys are stored
// lower-cased; two keys naming the same slot are rejected.
func (s *Service) EditDay(ctx context.Context, participantID, date string, day models.DayRecord) error {
	if err := validateDate(date); err != nil {
		return err
	}
	normalized, err := normalizeDay(day)
	if err != nil {
		return err
	}

	encoded, err := json.Marshal(normalized)
	if err != nil {
		return fmt.Errorf("failed to encode day: %w", err)
	}

	return s.mergeAndWrite(ctx, participantID, func(doc models.Document) error {
		doc[date] = encoded
		return nil
	})
}

// SaveFood appends to savedFoods, stamping today's date.
func (s *Service) SaveFood(ctx context.Context, participantID, food, mealType string) (models.SavedFoodEntry, error) {
	entry := models.SavedFoodEntry{
		Food:      food,
		MealType:  mealType,
		SavedDate: s.now().Format(models.SavedDateLayout),
	}
	if strings.TrimSpace(food) == "" {
		return entry, fmt.Errorf("food is required: %w", storage.ErrInvalidArgument)
	}

	encoded, err := json.Marshal(entry)
	if err != nil {
		return entry, fmt.Errorf("failed to encode saved food: %w", err)
	}

	err = s.mergeAndWrite(ctx, participantID, func(doc models.Document) error {
		foods, present, err := savedFoods(doc)
		if err != nil {
			return err
		}
		if !present {
			foods = []json.RawMessage{}
		}
		return setSavedFoods(doc, append(foods, encoded))
	})
	return entry, err
}

// DeleteSavedFood removes savedFoods[index]; the rest keep their order.
func (s *Service) DeleteSavedFood(ctx context.Context, participantID string, index int) error {
	if participantID == "" {
		return fmt.Errorf("participant id is required: %w", storage.ErrInvalidArgument)
	}

	doc, err := s.store.Read(ctx, participantID)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("no saved foods: %w", storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to read record: %w", err)
	}

	foods, present, err := savedFoods(doc)
	if err != nil || !present {
		return fmt.Errorf("no saved foods: %w", storage.ErrNotFound)
	}
	if index < 0 || index >= len(foods) {
		return fmt.Errorf("saved food index %d out of range [0,%d): %w", index, len(foods), storage.ErrInvalidArgument)
	}

	merged := doc.Clone()
	remaining := make([]json.RawMessage, 0, len(foods)-1)
	remaining = append(remaining, foods[:index]...)
	remaining = append(remaining, foods[index+1:]...)
	if err := setSavedFoods(merged, remaining); err != nil {
		return err
	}

	if err := s.store.Replace(ctx, participantID, merged); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}

// Record returns the participant's whole document, empty when none exists yet.
func (s *Service) Record(ctx context.Context, participantID string) (models.Document, error) {
	if participantID == "" {
		return nil, fmt.Errorf("participant id is required: %w", storage.ErrInvalidArgument)
	}
	doc, err := s.store.Read(ctx, participantID)
	if errors.Is(err, storage.ErrNotFound) {
		return models.Document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read record: %w", err)
	}
	return doc, nil
}

// Day returns the entries logged on date. ErrNotFound means the participant
// has no entry for that day.
func (s *Service) Day(ctx context.Context, participantID, date string) (models.DayRecord, error) {
	if err := validateDate(date); err != nil {
		return nil, err
	}
	doc, err := s.Record(ctx, participantID)
	if err != nil {
		return nil, err
	}

	raw, ok := doc[date]
	if !ok {
		return nil, fmt.Errorf("no entry for %s: %w", date, storage.ErrNotFound)
	}
	day := models.DayRecord{}
	if err := json.Unmarshal(raw, &day); err != nil {
		return nil, fmt.Errorf("failed to decode day %s: %w", date, err)
	}
	return day, nil
}

// mergeAndWrite treats a missing document as {} and creates it; otherwise the
// merged copy replaces the stored one. Write errors are returned as is.
func (s *Service) mergeAndWrite(ctx context.Context, participantID string, merge func(models.Document) error) error {
	if participantID == "" {
		return fmt.Errorf("participant id is required: %w", storage.ErrInvalidArgument)
	}

	existing, err := s.store.Read(ctx, participantID)
	exists := true
	if errors.Is(err, storage.ErrNotFound) {
		existing, exists = models.Document{}, false
	} else if err != nil {
		return fmt.Errorf("failed to read record: %w", err)
	}

	merged := existing.Clone()
	if err := merge(merged); err != nil {
		return err
	}

	if exists {
		err = s.store.Replace(ctx, participantID, merged)
	} else {
		slog.Info("creating participant record", slog.String("participantID", participantID))
		err = s.store.Create(ctx, participantID, merged)
	}
	if err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}

func normalizeDay(day models.DayRecord) (models.DayRecord, error) {
	out := make(models.DayRecord, len(day))
	for key, entry := range day {
		slot, ok := models.ParseMealSlot(key)
		if !ok {
			return nil, fmt.Errorf("unknown meal type %q: %w", key, storage.ErrInvalidArgument)
		}
		if _, dup := out[string(slot)]; dup {
			return nil, fmt.Errorf("meal %q given more than once: %w", slot, storage.ErrInvalidArgument)
		}
		out[string(slot)] = entry
	}
	return out, nil
}

func savedFoods(doc models.Document) ([]json.RawMessage, bool, error) {
	raw, ok := doc[models.SavedFoodsKey]
	if !ok {
		return nil, false, nil
	}
	var foods []json.RawMessage
	if err := json.Unmarshal(raw, &foods); err != nil || foods == nil {
		return nil, true, fmt.Errorf("%s is not a list: %w", models.SavedFoodsKey, storage.ErrInvalidArgument)
	}
	return foods, true, nil
}

func setSavedFoods(doc models.Document, foods []json.RawMessage) error {
	encoded, err := json.Marshal(foods)
	if err != nil {
		return fmt.Errorf("failed to encode saved foods: %w", err)
	}
	doc[models.SavedFoodsKey] = encoded
	return nil
}

func validateDate(date string) error {
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		return fmt.Errorf("invalid date %q: %w", date, storage.ErrInvalidArgument)
	}
	return nil
}
