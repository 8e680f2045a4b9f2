// internal/chat/conversation.go
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"meal-journal/internal/assistant"
	"meal-journal/internal/journal"
	"meal-journal/internal/models"
	"meal-journal/internal/questionnaire"
	"meal-journal/internal/storage"
)

const (
	imageShared      = "I shared an image of my food."
	defaultFoodLabel = "Food logged"
	greetingLayout   = "Monday 2 January 2006"
)

var (
	ErrNothingToConfirm = fmt.Errorf("nothing to confirm yet: %w", storage.ErrInvalidArgument)
	ErrClosed           = fmt.Errorf("conversation already confirmed: %w", storage.ErrInvalidArgument)
	ErrEmptyMessage     = fmt.Errorf("message is empty: %w", storage.ErrInvalidArgument)

	// ErrFoodNotSaved means the meal was logged and the conversation closed,
	// but adding the food to saved foods failed.
	ErrFoodNotSaved = errors.New("meal logged but saving the food failed")
)

type Assistant interface {
	Configured() bool
	TextToText(ctx context.Context, history []models.HistoryMessage) (string, error)
	ImageToText(ctx context.Context, prompt string, image models.Image) (string, error)
}

type Journal interface {
	LogMeal(ctx context.Context, participantID string, entry journal.MealLog) error
	SaveFood(ctx context.Context, participantID, food, mealType string) (models.SavedFoodEntry, error)
}

// Conversation is one meal-logging chat. The display list and the assistant
// history only ever grow; entries of both carry the turn that produced them.
type Conversation struct {
	mu sync.Mutex

	id            string
	participantID string
	date          string
	meal          models.MealSlot

	display []models.DisplayMessage
	history []models.HistoryMessage

	turn         int
	foodMode     models.FoodMode
	confirmReady bool
	confirmed    bool

	// unix nanos; read by the manager's sweep without taking mu
	lastActive atomic.Int64

	assistant Assistant
	prompts   *assistant.Prompts
	now       func() time.Time
}

// Snapshot is a copy of the conversation state safe to hand out.
type Snapshot struct {
	ID            string                  `json:"id"`
	ParticipantID string                  `json:"participant_id"`
	Date          string                  `json:"date"`
	Meal          string                  `json:"meal"`
	Messages      []models.DisplayMessage `json:"messages"`
	History       []models.HistoryMessage `json:"history"`
	FoodMode      models.FoodMode         `json:"food_mode,omitempty"`
	ConfirmReady  bool                    `json:"confirm_ready"`
	Confirmed     bool                    `json:"confirmed"`
}

type Confirmation struct {
	Answers  []questionnaire.Answer `json:"answers"`
	Notes    string                 `json:"notes"`
	SaveFood bool                   `json:"save_food"`
}

func newConversation(id, participantID, date string, meal models.MealSlot, a Assistant, p *assistant.Prompts, now func() time.Time) *Conversation {
	c := &Conversation{
		id:            id,
		participantID: participantID,
		date:          date,
		meal:          meal,
		assistant:     a,
		prompts:       p,
		now:           now,
	}
	c.lastActive.Store(now().UnixNano())

	day, _ := time.Parse(models.DateLayout, date)
	c.addDisplay(models.BotSender, fmt.Sprintf(
		"Hello! You're logging your %s for %s. Add what you ate using text, voice, or a photo.",
		meal.Title(), day.Format(greetingLayout)), "")
	c.addHistory(models.SystemRole, p.SystemMessage)
	return c
}

func (c *Conversation) ID() string { return c.id }

func (c *Conversation) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		ID:            c.id,
		ParticipantID: c.participantID,
		Date:          c.date,
		Meal:          string(c.meal),
		Messages:      append([]models.DisplayMessage(nil), c.display...),
		History:       append([]models.HistoryMessage(nil), c.history...),
		FoodMode:      c.foodMode,
		ConfirmReady:  c.confirmReady,
		Confirmed:     c.confirmed,
	}
}

// SendText handles a typed message.
func (c *Conversation) SendText(ctx context.Context, text string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	text = strings.TrimSpace(text)
	if err := c.checkOpen(); err != nil {
		return "", err
	}
	if text == "" {
		return "", ErrEmptyMessage
	}
	if !c.assistantReady() {
		return "", assistant.ErrNotConfigured
	}
	return c.userTurn(ctx, text, c.prompts.Errors.Text)
}

// SendVoice handles a final speech transcript from the browser recognizer.
// Unlike typed text the transcript is shown even when no assistant is set up.
func (c *Conversation) SendVoice(ctx context.Context, transcript string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	transcript = strings.TrimSpace(transcript)
	if err := c.checkOpen(); err != nil {
		return "", err
	}
	if transcript == "" {
		return "", ErrEmptyMessage
	}
	if !c.assistantReady() {
		c.turn++
		c.addDisplay(models.UserSender, transcript, "")
		c.addDisplay(models.BotSender, c.prompts.Errors.APIKeyMissing, "")
		return "", assistant.ErrNotConfigured
	}
	return c.userTurn(ctx, transcript, c.prompts.Errors.Voice)
}

func (c *Conversation) userTurn(ctx context.Context, text, failure string) (string, error) {
	c.turn++
	c.addDisplay(models.UserSender, text, "")
	c.addHistory(models.UserRole, text)

	if c.foodMode != models.NoFoodMode {
		// the picked-food instruction stays with every later message
		c.addHistory(models.SystemRole, c.prompts.FoodPrompt(c.foodMode))
	}

	reply, err := c.assistant.TextToText(ctx, copyHistory(c.history))
	if err != nil {
		slog.Error("assistant reply failed", slog.String("conversation", c.id), slog.String("error", err.Error()))
		c.addDisplay(models.BotSender, failure, "")
		return "", err
	}
	c.reply(reply)
	return reply, nil
}

// SendImage asks the assistant to describe a meal photo. imageRef is what the
// client shows in the bubble (a URL or file name).
func (c *Conversation) SendImage(ctx context.Context, image models.Image, imageRef string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkOpen(); err != nil {
		return "", err
	}
	if len(image.Data) == 0 {
		return "", fmt.Errorf("image is empty: %w", storage.ErrInvalidArgument)
	}
	if !c.assistantReady() {
		return "", assistant.ErrNotConfigured
	}

	c.turn++
	c.addDisplay(models.UserSender, imageShared, imageRef)

	reply, err := c.assistant.ImageToText(ctx, c.prompts.SystemMessage, image)
	if err != nil {
		slog.Error("image analysis failed", slog.String("conversation", c.id), slog.String("error", err.Error()))
		c.addDisplay(models.BotSender, c.prompts.Errors.Image, "")
		return "", err
	}
	c.addHistory(models.UserRole, imageShared)
	c.reply(reply)
	return reply, nil
}

// SelectFood logs a food picked from the saved or recent list. The pick is
// confirmable right away; the assistant, when available, acknowledges it.
func (c *Conversation) SelectFood(ctx context.Context, food string, mode models.FoodMode) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkOpen(); err != nil {
		return "", err
	}
	food = strings.TrimSpace(food)
	if food == "" {
		return "", fmt.Errorf("food is required: %w", storage.ErrInvalidArgument)
	}
	if mode != models.SavedFoodMode && mode != models.RecentFoodMode {
		return "", fmt.Errorf("unknown food source %q: %w", mode, storage.ErrInvalidArgument)
	}

	c.turn++
	c.foodMode = mode
	message := "I want to log: " + food
	c.addDisplay(models.UserSender, message, "")
	c.confirmReady = true

	if !c.assistantReady() {
		return "", nil
	}

	request := append(copyHistory(c.history),
		models.HistoryMessage{Turn: c.turn, Role: models.UserRole, Content: message},
		models.HistoryMessage{Turn: c.turn, Role: models.SystemRole, Content: fmt.Sprintf("%s The food item is: %s", c.prompts.FoodPrompt(mode), food)},
	)
	reply, err := c.assistant.TextToText(ctx, request)
	if err != nil {
		slog.Error("food selection reply failed", slog.String("conversation", c.id), slog.String("error", err.Error()))
		c.addDisplay(models.BotSender, c.prompts.Errors.FoodSelection, "")
		return "", err
	}
	c.addHistory(models.UserRole, message)
	c.reply(reply)
	return reply, nil
}

// FoodDescription is what gets stored as the meal's food: the last message
// shown in the conversation.
func (c *Conversation) FoodDescription() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.foodDescription()
}

func (c *Conversation) foodDescription() string {
	if len(c.display) == 0 {
		return defaultFoodLabel
	}
	if last := strings.TrimSpace(c.display[len(c.display)-1].Content); last != "" {
		return last
	}
	return defaultFoodLabel
}

// Confirm writes the meal to the participant's journal, optionally saving the
// food for later. A failed meal write leaves the conversation open for a
// retry; a failed food save after it returns the entry with ErrFoodNotSaved.
func (c *Conversation) Confirm(ctx context.Context, j Journal, q *questionnaire.Questionnaire, conf Confirmation) (journal.MealLog, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkOpen(); err != nil {
		return journal.MealLog{}, err
	}
	if !c.confirmReady {
		return journal.MealLog{}, ErrNothingToConfirm
	}

	questions, err := q.Build(conf.Answers, conf.Notes)
	if err != nil {
		return journal.MealLog{}, err
	}

	entry := journal.MealLog{
		Date:      c.date,
		Meal:      string(c.meal),
		Food:      c.foodDescription(),
		Questions: questions,
	}
	if err := j.LogMeal(ctx, c.participantID, entry); err != nil {
		return entry, err
	}
	c.confirmed = true

	if conf.SaveFood {
		if _, err := j.SaveFood(ctx, c.participantID, entry.Food, string(c.meal)); err != nil {
			slog.Error("saving confirmed food failed", slog.String("conversation", c.id), slog.String("error", err.Error()))
			return entry, fmt.Errorf("%w: %w", ErrFoodNotSaved, err)
		}
	}

	slog.Info("meal confirmed",
		slog.String("participantID", c.participantID),
		slog.String("date", c.date),
		slog.String("meal", string(c.meal)))
	return entry, nil
}

func (c *Conversation) checkOpen() error {
	c.lastActive.Store(c.now().UnixNano())
	if c.confirmed {
		return ErrClosed
	}
	return nil
}

func (c *Conversation) assistantReady() bool {
	return c.assistant != nil && c.assistant.Configured()
}

func (c *Conversation) reply(text string) {
	c.addDisplay(models.BotSender, text, "")
	c.addHistory(models.AssistantRole, text)
	c.confirmReady = true
}

func (c *Conversation) addDisplay(sender models.Sender, content, image string) {
	c.display = append(c.display, models.DisplayMessage{
		Turn:      c.turn,
		Sender:    sender,
		Content:   content,
		Image:     image,
		Timestamp: c.now(),
	})
}

func (c *Conversation) addHistory(role models.Role, content string) {
	c.history = append(c.history, models.HistoryMessage{Turn: c.turn, Role: role, Content: content})
}

func (c *Conversation) idleSince() time.Time {
	return time.Unix(0, c.lastActive.Load())
}

func copyHistory(h []models.HistoryMessage) []models.HistoryMessage {
	return append([]models.HistoryMessage(nil), h...)
}

// IsUserError reports whether err comes from bad input rather than a failing
// dependency.
func IsUserError(err error) bool {
	return errors.Is(err, storage.ErrInvalidArgument)
}
