// internal/questionnaire/questionnaire.go
package questionnaire

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"

	"meal-journal/internal/models"
	"meal-journal/internal/storage"
)

//go:embed questions.yaml
var defaultQuestions []byte

const notesQuestion = "Additional Notes"

type Option struct {
	Value string `json:"value" yaml:"value"`
	Label string `json:"label" yaml:"label"`
}

type Question struct {
	ID       string   `json:"id" yaml:"id"`
	Question string   `json:"question" yaml:"question"`
	Options  []Option `json:"options" yaml:"options"`
}

type Questionnaire struct {
	Questions []Question `json:"questions" yaml:"questions"`
}

// Answer is one response in the order the participant gave it.
type Answer struct {
	QuestionID string `json:"question_id"`
	Value      string `json:"answer"`
}

// Default returns the questionnaire shipped with the binary.
func Default() *Questionnaire {
	q, err := parse(defaultQuestions)
	if err != nil {
		panic("embedded questionnaire is invalid: " + err.Error())
	}
	return q
}

// Load reads a questionnaire from a YAML file; an empty path means Default.
func Load(path string) (*Questionnaire, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read questionnaire: %w", err)
	}
	return parse(data)
}

func parse(data []byte) (*Questionnaire, error) {
	var q Questionnaire
	if err := yaml.Unmarshal(data, &q); err != nil {
		return nil, fmt.Errorf("failed to parse questionnaire: %w", err)
	}
	seen := map[string]bool{}
	for _, question := range q.Questions {
		if question.ID == "" || seen[question.ID] {
			return nil, fmt.Errorf("question ids must be unique and non-empty, got %q", question.ID)
		}
		seen[question.ID] = true
	}
	return &q, nil
}

func (q *Questionnaire) find(id string) (Question, bool) {
	for _, question := range q.Questions {
		if question.ID == id {
			return question, true
		}
	}
	return Question{}, false
}

// Build turns answers into the stored questions map. Keys run q1..qN in the
// order answers were given; non-blank notes go last. Either every question is
// answered or none is (the participant skipped the questionnaire).
func (q *Questionnaire) Build(answers []Answer, notes string) (map[string]models.QuestionAnswer, error) {
	if len(answers) > 0 && len(answers) != len(q.Questions) {
		return nil, fmt.Errorf("answered %d of %d questions: %w", len(answers), len(q.Questions), storage.ErrInvalidArgument)
	}

	out := make(map[string]models.QuestionAnswer, len(answers)+1)
	seen := map[string]bool{}
	for i, a := range answers {
		question, ok := q.find(a.QuestionID)
		if !ok {
			return nil, fmt.Errorf("unknown question %q: %w", a.QuestionID, storage.ErrInvalidArgument)
		}
		if seen[a.QuestionID] {
			return nil, fmt.Errorf("question %q answered twice: %w", a.QuestionID, storage.ErrInvalidArgument)
		}
		seen[a.QuestionID] = true

		out[fmt.Sprintf("q%d", i+1)] = models.QuestionAnswer{
			Question: question.Question,
			Answer:   question.label(a.Value),
		}
	}

	if strings.TrimSpace(notes) != "" {
		out[fmt.Sprintf("q%d", len(out)+1)] = models.QuestionAnswer{Question: notesQuestion, Answer: notes}
	}
	return out, nil
}

// label maps an option value to its label; free text passes through.
func (q Question) label(value string) string {
	for _, o := range q.Options {
		if o.Value == value {
			return o.Label
		}
	}
	return value
}
