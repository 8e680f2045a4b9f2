// internal/models/record.go
package models

import (
	"encoding/json"
	"strings"
)

// Document is a participant's whole record as the store holds it. Values stay
// raw so keys this service does not understand survive a rewrite unchanged.
type Document map[string]json.RawMessage

// SavedFoodsKey is the only top-level key that is not a date.
const SavedFoodsKey = "savedFoods"

// DateLayout is the layout of the top-level day keys.
const DateLayout = "2006-01-02"

// SavedDateLayout stamps SavedFoodEntry.SavedDate (DD/MM/YYYY).
const SavedDateLayout = "02/01/2006"

// Clone returns a shallow copy; the raw values are shared.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

type MealSlot string

const (
	Breakfast    MealSlot = "breakfast"
	Lunch        MealSlot = "lunch"
	Dinner       MealSlot = "dinner"
	Snacks       MealSlot = "snacks"
	SnackOrDrink MealSlot = "snack/drink"
)

var knownSlots = map[MealSlot]bool{
	Breakfast:    true,
	Lunch:        true,
	Dinner:       true,
	Snacks:       true,
	SnackOrDrink: true,
}

// ParseMealSlot lower-cases the name and reads a URL-style "-" separator as "/".
func ParseMealSlot(name string) (MealSlot, bool) {
	slot := MealSlot(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "/"))
	return slot, knownSlots[slot]
}

// Title renders the slot the way the meal picker labels it ("Snack/Drink").
func (s MealSlot) Title() string {
	parts := strings.Split(string(s), "/")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, "/")
}

type QuestionAnswer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type MealEntry struct {
	Food      string                    `json:"food"`
	Questions map[string]QuestionAnswer `json:"questions"`
}

// MarshalJSON keeps "questions" an object even when nothing was answered.
func (m MealEntry) MarshalJSON() ([]byte, error) {
	type alias MealEntry
	if m.Questions == nil {
		m.Questions = map[string]QuestionAnswer{}
	}
	return json.Marshal(alias(m))
}

// DayRecord maps a meal slot to what was eaten in it.
type DayRecord map[string]MealEntry

type SavedFoodEntry struct {
	Food      string `json:"food"`
	MealType  string `json:"mealtype"`
	SavedDate string `json:"savedDate"`
}
