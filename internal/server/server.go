// internal/server/server.go
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"meal-journal/internal/assistant"
	"meal-journal/internal/chat"
	"meal-journal/internal/config"
	"meal-journal/internal/datafoundation"
	"meal-journal/internal/journal"
	"meal-journal/internal/questionnaire"
	"meal-journal/internal/storage"
)

type MealJournalServer struct {
	httpServer    *http.Server
	router        *gin.Engine
	closeStore    func() error
	journal       *journal.Service
	chats         *chat.Manager
	questionnaire *questionnaire.Questionnaire
	prompts       *assistant.Prompts
	config        *config.Config
}

// Deps are the collaborators a server runs on. NewMealJournalServer builds
// them from configuration; tests pass their own.
type Deps struct {
	Store         storage.DocumentStore
	Assistant     chat.Assistant
	Prompts       *assistant.Prompts
	Questionnaire *questionnaire.Questionnaire
}

func NewMealJournalServer(cfg *config.Config) (*MealJournalServer, error) {
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	prompts, err := assistant.LoadPrompts(cfg.PromptsFile)
	if err != nil {
		closeStore()
		return nil, err
	}
	q, err := questionnaire.Load(cfg.QuestionnaireFile)
	if err != nil {
		closeStore()
		return nil, err
	}

	client := assistant.NewClient(cfg.Assistant)
	if !client.Configured() {
		slog.Warn("assistant API key missing; chat replies are disabled")
	}

	s := New(cfg, Deps{Store: store, Assistant: client, Prompts: prompts, Questionnaire: q})
	s.closeStore = closeStore
	return s, nil
}

func New(cfg *config.Config, deps Deps) *MealJournalServer {
	if deps.Prompts == nil {
		deps.Prompts = assistant.DefaultPrompts()
	}
	if deps.Questionnaire == nil {
		deps.Questionnaire = questionnaire.Default()
	}

	s := &MealJournalServer{
		closeStore:    func() error { return nil },
		journal:       journal.NewService(deps.Store),
		chats:         chat.NewManager(deps.Assistant, deps.Prompts, cfg.Chat.MaxIdle),
		questionnaire: deps.Questionnaire,
		prompts:       deps.Prompts,
		config:        cfg,
	}
	s.router = s.routes()
	s.httpServer = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s.router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}
	return s
}

func (s *MealJournalServer) routes() *gin.Engine {
	if !s.config.HTTP.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if len(s.config.HTTP.AllowOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     s.config.HTTP.AllowOrigins,
			AllowMethods:     []string{"POST", "GET", "PUT", "DELETE"},
			AllowHeaders:     []string{"Origin", "Authorization", "Content-Type", "Content-Length"},
			ExposeHeaders:    []string{"Content-Type", "Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/questionnaire", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.questionnaire)
	})

	s.addJournalAPI(router.Group("/participants/:pid"))
	s.addChatAPI(router.Group("/chat/sessions"))
	router.POST("/mcp", s.handleMCP)

	return router
}

func (s *MealJournalServer) Handler() http.Handler {
	return s.router
}

func (s *MealJournalServer) Start(ctx context.Context) error {
	slog.Info("starting meal journal server", slog.String("addr", s.httpServer.Addr), slog.String("store", s.config.Store.Driver))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *MealJournalServer) Stop(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if cerr := s.closeStore(); cerr != nil {
		slog.Error("failed to close store", slog.String("error", cerr.Error()))
	}
	return err
}

// openStore connects the configured record store and returns how to release it.
func openStore(cfg *config.Config) (storage.DocumentStore, func() error, error) {
	switch cfg.Store.Driver {
	case config.DriverSQLite:
		store, err := storage.NewSQLiteStore(cfg.Store.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case config.DriverMongo:
		store, err := storage.NewMongoStore(cfg.Store.Mongo)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case config.DriverDataFoundation:
		return datafoundation.NewClient(cfg.Store.DataFoundation), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
