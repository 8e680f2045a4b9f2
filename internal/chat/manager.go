package chat

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"meal-journal/internal/assistant"
	"meal-journal/internal/models"
	"meal-journal/internal/storage"
)

var ErrSessionNotFound = fmt.Errorf("chat session not found: %w", storage.ErrNotFound)

// Manager keeps the open conversations of this process.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Conversation

	assistant Assistant
	prompts   *assistant.Prompts
	maxIdle   time.Duration
	now       func() time.Time
}

// NewManager creates a Manager. Conversations idle for longer than maxIdle
// are dropped the next time one is started; zero keeps them forever.
func NewManager(a Assistant, prompts *assistant.Prompts, maxIdle time.Duration) *Manager {
	if prompts == nil {
		prompts = assistant.DefaultPrompts()
	}
	return &Manager{
		sessions:  make(map[string]*Conversation),
		assistant: a,
		prompts:   prompts,
		maxIdle:   maxIdle,
		now:       time.Now,
	}
}

func (m *Manager) Start(participantID, date, meal string) (*Conversation, error) {
	if participantID == "" {
		return nil, fmt.Errorf("participant id is required: %w", storage.ErrInvalidArgument)
	}
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		return nil, fmt.Errorf("date %q is not YYYY-MM-DD: %w", date, storage.ErrInvalidArgument)
	}
	slot, ok := models.ParseMealSlot(meal)
	if !ok {
		return nil, fmt.Errorf("unknown meal %q: %w", meal, storage.ErrInvalidArgument)
	}

	c := newConversation(uuid.NewString(), participantID, date, slot, m.assistant, m.prompts, m.now)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep()
	m.sessions[c.id] = c
	return c, nil
}

func (m *Manager) Get(id string) (*Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return c, nil
}

func (m *Manager) End(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(m.sessions, id)
	return nil
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// caller holds m.mu
func (m *Manager) sweep() {
	if m.maxIdle <= 0 {
		return
	}
	cutoff := m.now().Add(-m.maxIdle)
	for id, c := range m.sessions {
		if c.idleSince().Before(cutoff) {
			delete(m.sessions, id)
		}
	}
}
