package questionnaire

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"meal-journal/internal/models"
	"meal-journal/internal/storage"
)

func testQuestionnaire() *Questionnaire {
	return &Questionnaire{Questions: []Question{
		{ID: "where", Question: "Where did you eat?", Options: []Option{{Value: "home", Label: "At home"}, {Value: "out", Label: "Outside"}}},
		{ID: "who", Question: "Who were you with?", Options: []Option{{Value: "alone", Label: "Alone"}}},
	}}
}

func TestBuild(t *testing.T) {
	tests := []struct {
		name    string
		answers []Answer
		notes   string
		want    map[string]models.QuestionAnswer
		wantErr error
	}{
		{
			name:  "declined",
			notes: "",
			want:  map[string]models.QuestionAnswer{},
		},
		{
			name:  "declined with notes",
			notes: "ate late",
			want:  map[string]models.QuestionAnswer{"q1": {Question: "Additional Notes", Answer: "ate late"}},
		},
		{
			name:    "answer order decides keys",
			answers: []Answer{{QuestionID: "who", Value: "alone"}, {QuestionID: "where", Value: "out"}},
			notes:   "  ",
			want: map[string]models.QuestionAnswer{
				"q1": {Question: "Who were you with?", Answer: "Alone"},
				"q2": {Question: "Where did you eat?", Answer: "Outside"},
			},
		},
		{
			name:    "typed answer and notes",
			answers: []Answer{{QuestionID: "where", Value: "in the park"}, {QuestionID: "who", Value: "alone"}},
			notes:   "sunny",
			want: map[string]models.QuestionAnswer{
				"q1": {Question: "Where did you eat?", Answer: "in the park"},
				"q2": {Question: "Who were you with?", Answer: "Alone"},
				"q3": {Question: "Additional Notes", Answer: "sunny"},
			},
		},
		{
			name:    "partial",
			answers: []Answer{{QuestionID: "where", Value: "home"}},
			wantErr: storage.ErrInvalidArgument,
		},
		{
			name:    "unknown question",
			answers: []Answer{{QuestionID: "where", Value: "home"}, {QuestionID: "mood", Value: "ok"}},
			wantErr: storage.ErrInvalidArgument,
		},
		{
			name:    "duplicate",
			answers: []Answer{{QuestionID: "where", Value: "home"}, {QuestionID: "where", Value: "out"}},
			wantErr: storage.ErrInvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := testQuestionnaire().Build(tt.answers, tt.notes)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Build error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Build = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDefaultQuestionnaire(t *testing.T) {
	q := Default()
	if len(q.Questions) == 0 {
		t.Fatal("default questionnaire is empty")
	}
	for _, question := range q.Questions {
		if question.Question == "" || len(question.Options) == 0 {
			t.Errorf("question %q is incomplete", question.ID)
		}
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "questions.yaml")
	content := "questions:\n  - id: a\n    question: A?\n    options:\n      - value: y\n        label: Yes\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	q, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(q.Questions) != 1 || q.Questions[0].Options[0].Label != "Yes" {
		t.Errorf("Load = %+v", q)
	}

	dup := "questions:\n  - id: a\n    question: A?\n  - id: a\n    question: B?\n"
	if err := os.WriteFile(path, []byte(dup), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load accepted duplicate question ids")
	}
}
