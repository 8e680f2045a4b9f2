package journal

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"meal-journal/internal/models"
	"meal-journal/internal/storage"
)

type memoryStore struct {
	docs       map[string][]byte
	creates    int
	replaces   int
	replaceErr error
	readErr    error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{docs: map[string][]byte{}}
}

func (m *memoryStore) Create(_ context.Context, id string, doc models.Document) error {
	m.creates++
	if _, ok := m.docs[id]; ok {
		return storage.ErrConflict
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	m.docs[id] = b
	return nil
}

func (m *memoryStore) Read(_ context.Context, id string) (models.Document, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	b, ok := m.docs[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	doc := models.Document{}
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (m *memoryStore) Replace(_ context.Context, id string, doc models.Document) error {
	m.replaces++
	if m.replaceErr != nil {
		return m.replaceErr
	}
	if _, ok := m.docs[id]; !ok {
		return storage.ErrNotFound
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	m.docs[id] = b
	return nil
}

func (m *memoryStore) Delete(_ context.Context, id string) error {
	if _, ok := m.docs[id]; !ok {
		return storage.ErrNotFound
	}
	delete(m.docs, id)
	return nil
}

func (m *memoryStore) seed(t *testing.T, id, doc string) {
	t.Helper()
	m.docs[id] = []byte(doc)
}

func (m *memoryStore) decoded(t *testing.T, id string) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(m.docs[id], &out); err != nil {
		t.Fatalf("stored document for %s is not JSON: %v", id, err)
	}
	return out
}

func mustJSON(t *testing.T, s string) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		t.Fatalf("bad fixture: %v", err)
	}
	return out
}

func fixedService(store storage.DocumentStore) *Service {
	s := NewService(store)
	s.now = func() time.Time { return time.Date(2024, 5, 3, 10, 0, 0, 0, time.UTC) }
	return s
}

func TestLogMealMergesIntoExistingDocument(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	store.seed(t, "p1", `{
		"2024-05-01": {"breakfast": {"food": "toast", "questions": {}}, "dinner": {"food": "soup", "questions": {}}},
		"2024-04-30": {"lunch": {"food": "wrap", "questions": {}}},
		"savedFoods": [{"food": "tea", "mealtype": "snacks", "savedDate": "01/05/2024"}],
		"profile": {"note": "kept"}
	}`)

	err := fixedService(store).LogMeal(ctx, "p1", MealLog{
		Date: "2024-05-01",
		Meal: "Breakfast",
		Food: "oatmeal",
		Questions: map[string]models.QuestionAnswer{
			"q1": {Question: "Where did you eat?", Answer: "At home"},
		},
	})
	if err != nil {
		t.Fatalf("LogMeal: %v", err)
	}

	want := mustJSON(t, `{
		"2024-05-01": {
			"breakfast": {"food": "oatmeal", "questions": {"q1": {"question": "Where did you eat?", "answer": "At home"}}},
			"dinner": {"food": "soup", "questions": {}}
		},
		"2024-04-30": {"lunch": {"food": "wrap", "questions": {}}},
		"savedFoods": [{"food": "tea", "mealtype": "snacks", "savedDate": "01/05/2024"}],
		"profile": {"note": "kept"}
	}`)
	if got := store.decoded(t, "p1"); !reflect.DeepEqual(got, want) {
		t.Errorf("merged document = %v, want %v", got, want)
	}
	if store.replaces != 1 || store.creates != 0 {
		t.Errorf("replaces=%d creates=%d, want 1 and 0", store.replaces, store.creates)
	}
}

func TestLogMealIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	svc := fixedService(store)
	entry := MealLog{Date: "2024-05-01", Meal: "lunch", Food: "salad"}

	if err := svc.LogMeal(ctx, "p1", entry); err != nil {
		t.Fatalf("first LogMeal: %v", err)
	}
	once := store.decoded(t, "p1")
	if err := svc.LogMeal(ctx, "p1", entry); err != nil {
		t.Fatalf("second LogMeal: %v", err)
	}
	if twice := store.decoded(t, "p1"); !reflect.DeepEqual(once, twice) {
		t.Errorf("second write changed the document: %v vs %v", once, twice)
	}
}

func TestLogMealValidation(t *testing.T) {
	tests := []struct {
		name  string
		pid   string
		entry MealLog
	}{
		{name: "malformed date", pid: "p1", entry: MealLog{Date: "01/05/2024", Meal: "lunch", Food: "x"}},
		{name: "impossible date", pid: "p1", entry: MealLog{Date: "2024-02-30", Meal: "lunch", Food: "x"}},
		{name: "unknown meal", pid: "p1", entry: MealLog{Date: "2024-05-01", Meal: "brunch", Food: "x"}},
		{name: "missing participant", pid: "", entry: MealLog{Date: "2024-05-01", Meal: "lunch", Food: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemoryStore()
			err := fixedService(store).LogMeal(context.Background(), tt.pid, tt.entry)
			if !errors.Is(err, storage.ErrInvalidArgument) {
				t.Errorf("LogMeal error = %v, want ErrInvalidArgument", err)
			}
			if store.creates+store.replaces != 0 {
				t.Errorf("store was written on invalid input")
			}
		})
	}
}

func TestLogMealNormalizesSlot(t *testing.T) {
	store := newMemoryStore()
	if err := fixedService(store).LogMeal(context.Background(), "p1", MealLog{Date: "2024-05-01", Meal: "Snack-Drink", Food: "juice"}); err != nil {
		t.Fatalf("LogMeal: %v", err)
	}
	day := store.decoded(t, "p1")["2024-05-01"].(map[string]interface{})
	if _, ok := day["snack/drink"]; !ok {
		t.Errorf("day = %v, want a snack/drink slot", day)
	}
}

func TestWriteFailureIsNotRetried(t *testing.T) {
	store := newMemoryStore()
	store.seed(t, "p1", `{}`)
	store.replaceErr = errors.Join(storage.ErrTransient, errors.New("HTTP error! status: 500"))

	err := fixedService(store).LogMeal(context.Background(), "p1", MealLog{Date: "2024-05-01", Meal: "dinner", Food: "rice"})
	if !errors.Is(err, storage.ErrTransient) {
		t.Fatalf("LogMeal error = %v, want ErrTransient", err)
	}
	if store.replaces != 1 {
		t.Errorf("replace called %d times, want 1", store.replaces)
	}
	if string(store.docs["p1"]) != `{}` {
		t.Errorf("document changed after failed write: %s", store.docs["p1"])
	}
}

func TestReadFailureAbortsWrite(t *testing.T) {
	store := newMemoryStore()
	store.readErr = storage.ErrTransient

	_, err := fixedService(store).SaveFood(context.Background(), "p1", "apple", "snacks")
	if !errors.Is(err, storage.ErrTransient) {
		t.Fatalf("error = %v, want ErrTransient", err)
	}
	if store.creates != 0 {
		t.Errorf("create called after a failed read")
	}
}

func TestEditDayReplacesWholeDay(t *testing.T) {
	store := newMemoryStore()
	store.seed(t, "p1", `{
		"2024-05-01": {"breakfast": {"food": "toast", "questions": {}}, "lunch": {"food": "soup", "questions": {}}},
		"2024-05-02": {"dinner": {"food": "pasta", "questions": {}}}
	}`)

	edited := models.DayRecord{"breakfast": {Food: "toast with jam"}}
	if err := fixedService(store).EditDay(context.Background(), "p1", "2024-05-01", edited); err != nil {
		t.Fatalf("EditDay: %v", err)
	}

	want := mustJSON(t, `{
		"2024-05-01": {"breakfast": {"food": "toast with jam", "questions": {}}},
		"2024-05-02": {"dinner": {"food": "pasta", "questions": {}}}
	}`)
	if got := store.decoded(t, "p1"); !reflect.DeepEqual(got, want) {
		t.Errorf("document = %v, want %v", got, want)
	}
}

func TestEditDayNormalizesSlots(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	svc := fixedService(store)

	edited := models.DayRecord{"Breakfast": {Food: "eggs"}, "Snack-Drink": {Food: "tea"}}
	if err := svc.EditDay(ctx, "p1", "2024-05-01", edited); err != nil {
		t.Fatalf("EditDay: %v", err)
	}
	if err := svc.LogMeal(ctx, "p1", MealLog{Date: "2024-05-01", Meal: "breakfast", Food: "porridge"}); err != nil {
		t.Fatalf("LogMeal: %v", err)
	}

	want := mustJSON(t, `{"2024-05-01": {
		"breakfast": {"food": "porridge", "questions": {}},
		"snack/drink": {"food": "tea", "questions": {}}
	}}`)
	if got := store.decoded(t, "p1"); !reflect.DeepEqual(got, want) {
		t.Errorf("document = %v, want %v", got, want)
	}
}

func TestEditDayRejectsBadSlots(t *testing.T) {
	tests := []struct {
		name string
		day  models.DayRecord
	}{
		{"unknown slot", models.DayRecord{"brunch": {Food: "waffles"}}},
		{"same slot twice", models.DayRecord{"lunch": {Food: "soup"}, "LUNCH": {Food: "salad"}}},
		{"separator variants", models.DayRecord{"snack/drink": {Food: "tea"}, "snack-drink": {Food: "juice"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemoryStore()
			store.seed(t, "p1", `{}`)
			err := fixedService(store).EditDay(context.Background(), "p1", "2024-05-01", tt.day)
			if !errors.Is(err, storage.ErrInvalidArgument) {
				t.Errorf("EditDay error = %v, want ErrInvalidArgument", err)
			}
			if store.replaces != 0 {
				t.Errorf("document written despite the error")
			}
		})
	}
}

func TestSaveFoodAppendsInOrder(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	svc := fixedService(store)

	for _, food := range []string{"apple", "banana"} {
		if _, err := svc.SaveFood(ctx, "p1", food, "snacks"); err != nil {
			t.Fatalf("SaveFood(%s): %v", food, err)
		}
	}
	if store.creates != 1 || store.replaces != 1 {
		t.Errorf("creates=%d replaces=%d, want 1 and 1", store.creates, store.replaces)
	}

	want := mustJSON(t, `{"savedFoods": [
		{"food": "apple", "mealtype": "snacks", "savedDate": "03/05/2024"},
		{"food": "banana", "mealtype": "snacks", "savedDate": "03/05/2024"}
	]}`)
	if got := store.decoded(t, "p1"); !reflect.DeepEqual(got, want) {
		t.Errorf("document = %v, want %v", got, want)
	}
}

func TestSaveFoodRejectsMalformedList(t *testing.T) {
	store := newMemoryStore()
	store.seed(t, "p1", `{"savedFoods": "oops"}`)

	_, err := fixedService(store).SaveFood(context.Background(), "p1", "apple", "snacks")
	if !errors.Is(err, storage.ErrInvalidArgument) {
		t.Errorf("SaveFood error = %v, want ErrInvalidArgument", err)
	}
}

func TestDeleteSavedFood(t *testing.T) {
	seed := `{"savedFoods": [
		{"food": "a", "mealtype": "lunch", "savedDate": "01/05/2024"},
		{"food": "b", "mealtype": "lunch", "savedDate": "01/05/2024"},
		{"food": "c", "mealtype": "dinner", "savedDate": "02/05/2024"}
	]}`

	tests := []struct {
		name    string
		seed    string
		index   int
		wantErr error
		want    []string
	}{
		{name: "middle", seed: seed, index: 1, want: []string{"a", "c"}},
		{name: "first", seed: seed, index: 0, want: []string{"b", "c"}},
		{name: "last", seed: seed, index: 2, want: []string{"a", "b"}},
		{name: "out of range", seed: seed, index: 3, wantErr: storage.ErrInvalidArgument, want: []string{"a", "b", "c"}},
		{name: "negative", seed: seed, index: -1, wantErr: storage.ErrInvalidArgument, want: []string{"a", "b", "c"}},
		{name: "no saved foods key", seed: `{"2024-05-01": {}}`, index: 0, wantErr: storage.ErrNotFound},
		{name: "not a list", seed: `{"savedFoods": {"food": "a"}}`, index: 0, wantErr: storage.ErrNotFound},
		{name: "no document", index: 0, wantErr: storage.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemoryStore()
			if tt.seed != "" {
				store.seed(t, "p1", tt.seed)
			}
			err := fixedService(store).DeleteSavedFood(context.Background(), "p1", tt.index)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("DeleteSavedFood error = %v, want %v", err, tt.wantErr)
				}
				if store.replaces+store.creates != 0 {
					t.Errorf("store written on failed delete")
				}
			} else if err != nil {
				t.Fatalf("DeleteSavedFood: %v", err)
			}
			if tt.want == nil {
				return
			}

			var got []string
			for _, e := range store.decoded(t, "p1")["savedFoods"].([]interface{}) {
				got = append(got, e.(map[string]interface{})["food"].(string))
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("savedFoods = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDayAndRecord(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	svc := fixedService(store)

	doc, err := svc.Record(ctx, "p1")
	if err != nil || len(doc) != 0 {
		t.Fatalf("Record on empty store = %v, %v; want empty document", doc, err)
	}
	if _, err := svc.Day(ctx, "p1", "2024-05-01"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Day error = %v, want ErrNotFound", err)
	}

	if err := svc.LogMeal(ctx, "p1", MealLog{Date: "2024-05-01", Meal: "lunch", Food: "salad"}); err != nil {
		t.Fatalf("LogMeal: %v", err)
	}
	day, err := svc.Day(ctx, "p1", "2024-05-01")
	if err != nil {
		t.Fatalf("Day: %v", err)
	}
	if day["lunch"].Food != "salad" {
		t.Errorf("Day = %v, want lunch salad", day)
	}
}

func TestEndToEndScenario(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	svc := fixedService(store)

	if err := svc.LogMeal(ctx, "4233", MealLog{Date: "2024-05-01", Meal: "breakfast", Food: "oatmeal"}); err != nil {
		t.Fatalf("log breakfast: %v", err)
	}
	want := mustJSON(t, `{"2024-05-01": {"breakfast": {"food": "oatmeal", "questions": {}}}}`)
	if got := store.decoded(t, "4233"); !reflect.DeepEqual(got, want) {
		t.Fatalf("after breakfast = %v, want %v", got, want)
	}

	if err := svc.LogMeal(ctx, "4233", MealLog{Date: "2024-05-01", Meal: "lunch", Food: "salad"}); err != nil {
		t.Fatalf("log lunch: %v", err)
	}
	want = mustJSON(t, `{"2024-05-01": {
		"breakfast": {"food": "oatmeal", "questions": {}},
		"lunch": {"food": "salad", "questions": {}}
	}}`)
	if got := store.decoded(t, "4233"); !reflect.DeepEqual(got, want) {
		t.Fatalf("after lunch = %v, want %v", got, want)
	}

	for _, food := range []string{"oatmeal", "salad"} {
		if _, err := svc.SaveFood(ctx, "4233", food, "breakfast"); err != nil {
			t.Fatalf("SaveFood: %v", err)
		}
	}
	if err := svc.DeleteSavedFood(ctx, "4233", 0); err != nil {
		t.Fatalf("DeleteSavedFood: %v", err)
	}
	saved := store.decoded(t, "4233")["savedFoods"].([]interface{})
	if len(saved) != 1 || saved[0].(map[string]interface{})["food"] != "salad" {
		t.Errorf("savedFoods = %v, want only salad", saved)
	}
}
