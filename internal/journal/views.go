// internal/journal/views.go
package journal

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"meal-journal/internal/models"
)

const (
	recentDays         = 5
	recentLimit        = 7
	recentDisplayWords = 50
	savedDisplayWords  = 6
)

type RecentFood struct {
	Date    string `json:"date"`
	Meal    string `json:"meal"`
	Food    string `json:"food"`
	Display string `json:"display"`
}

type SavedFood struct {
	// Index is the position in savedFoods, used to delete the entry.
	Index     int    `json:"index"`
	Food      string `json:"food"`
	MealType  string `json:"mealtype"`
	SavedDate string `json:"savedDate"`
	Display   string `json:"display"`
}

// RecentFoods lists what was eaten on the five most recent logged days,
// newest first, at most seven items. An empty meal means every slot.
func RecentFoods(doc models.Document, meal string) []RecentFood {
	dates := make([]string, 0, len(doc))
	for key := range doc {
		if _, err := time.Parse(models.DateLayout, key); err == nil {
			dates = append(dates, key)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	if len(dates) > recentDays {
		dates = dates[:recentDays]
	}

	if meal != "" {
		slot, _ := models.ParseMealSlot(meal)
		meal = string(slot)
	}

	foods := []RecentFood{}
	for _, date := range dates {
		var day map[string]json.RawMessage
		if err := json.Unmarshal(doc[date], &day); err != nil {
			continue
		}

		slots := make([]string, 0, len(day))
		for slot := range day {
			if meal == "" || strings.EqualFold(slot, meal) {
				slots = append(slots, slot)
			}
		}
		sort.Strings(slots)

		for _, slot := range slots {
			var entry models.MealEntry
			if err := json.Unmarshal(day[slot], &entry); err != nil || strings.TrimSpace(entry.Food) == "" {
				continue
			}
			foods = append(foods, RecentFood{
				Date:    date,
				Meal:    slot,
				Food:    entry.Food,
				Display: truncateWords(entry.Food, recentDisplayWords),
			})
		}
	}

	// ISO dates order lexically
	sort.SliceStable(foods, func(i, j int) bool { return foods[i].Date > foods[j].Date })
	if len(foods) > recentLimit {
		foods = foods[:recentLimit]
	}
	return foods
}

// SavedFoods lists saved foods most recently saved first. An empty mealType
// means every entry. Elements that do not decode are skipped; Index still
// counts them.
func SavedFoods(doc models.Document, mealType string) []SavedFood {
	var raws []json.RawMessage
	if raw, ok := doc[models.SavedFoodsKey]; ok {
		if err := json.Unmarshal(raw, &raws); err != nil {
			return []SavedFood{}
		}
	}

	foods := []SavedFood{}
	for i := len(raws) - 1; i >= 0; i-- {
		var e models.SavedFoodEntry
		if err := json.Unmarshal(raws[i], &e); err != nil {
			continue
		}
		if mealType != "" && !strings.EqualFold(e.MealType, mealType) {
			continue
		}
		foods = append(foods, SavedFood{
			Index:     i,
			Food:      e.Food,
			MealType:  e.MealType,
			SavedDate: e.SavedDate,
			Display:   truncateWords(e.Food, savedDisplayWords),
		})
	}
	return foods
}

// SearchRecent keeps the foods whose text contains query, ignoring case.
// An empty query keeps everything.
func SearchRecent(foods []RecentFood, query string) []RecentFood {
	out := []RecentFood{}
	for _, f := range foods {
		if containsFold(f.Food, query) {
			out = append(out, f)
		}
	}
	return out
}

// SearchSaved is SearchRecent for saved foods.
func SearchSaved(foods []SavedFood, query string) []SavedFood {
	out := []SavedFood{}
	for _, f := range foods {
		if containsFold(f.Food, query) {
			out = append(out, f)
		}
	}
	return out
}

func containsFold(text, query string) bool {
	return strings.Contains(strings.ToLower(text), strings.ToLower(strings.TrimSpace(query)))
}

func truncateWords(text string, n int) string {
	words := strings.Fields(text)
	if len(words) <= n {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:n], " ") + "..."
}
