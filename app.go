package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/google/uuid"

	"ledgerchat/agent"
	"ledgerchat/config"
	"ledgerchat/dataset"
	"ledgerchat/logger"
)

// App owns one chat session over the ledger dataset: the profile, the LLM
// collaborators, the pipeline, and the conversation history.
type App struct {
	cfg       config.Config
	logger    *logger.Logger
	sessionID string

	profile  *dataset.Profile
	pipeline *agent.Pipeline

	mu      sync.Mutex
	history []agent.Message
}

// NewApp wires a session from config: dataset profile, chat model, and the
// turn pipeline.
func NewApp(cfg config.Config) (*App, error) {
	log := logger.NewLogger()
	if err := log.Init(cfg.LogDir); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	app := &App{
		cfg:       cfg,
		logger:    log,
		sessionID: uuid.New().String(),
	}
	logFn := func(msg string) {
		log.Logf("[%s] %s", app.sessionID[:8], msg)
	}

	profile, err := dataset.LoadProfile(cfg.DatasetPath)
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("load dataset profile: %w", err)
	}
	app.profile = profile
	logFn(fmt.Sprintf("profile_loaded rows=%d columns=%d", profile.RowCount, len(profile.Columns)))

	chatModel, err := newChatModel(cfg)
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("create chat model: %w", err)
	}

	answerer := agent.NewEinoAnswerer(chatModel, logFn)
	executor := agent.NewPandasExecutor(cfg.PythonPath, cfg.DatasetPath, logFn)
	if cfg.ExecTimeoutSeconds > 0 {
		executor.SetTimeout(time.Duration(cfg.ExecTimeoutSeconds) * time.Second)
	}

	app.pipeline = agent.NewPipeline(agent.PipelineOptions{
		Profile:         profile,
		Classifier:      agent.NewEinoClassifier(chatModel, logFn),
		ProfileAnswerer: answerer,
		CodeGenerator:   agent.NewEinoCodeGenerator(chatModel, logFn),
		ResultAnswerer:  answerer,
		Executor:        executor,
		Logger:          logFn,
	})
	return app, nil
}

func newChatModel(cfg config.Config) (model.ChatModel, error) {
	return openai.NewChatModel(context.Background(), &openai.ChatModelConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.ModelName,
	})
}

// Ask runs one full turn and returns the final answer. Turns are serialized
// per session; history is carried across turns. The pipeline runs on a
// worker goroutine while the caller's goroutine reports elapsed time for
// long turns.
func (a *App) Ask(ctx context.Context, userQuery string) string {
	a.mu.Lock()
	defer a.mu.Unlock()

	startTime := time.Now()
	state := agent.NewTurnState(userQuery, a.history)

	done := make(chan struct{})
	go func() {
		defer close(done)
		state = a.pipeline.RunTurn(ctx, state)
	}()

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			a.history = state.Messages
			a.logger.Event("turn_complete",
				"session", a.sessionID[:8],
				"elapsed", time.Since(startTime).String(),
			)
			return state.FinalAnswer
		case <-ticker.C:
			a.logger.Event("turn_in_progress",
				"session", a.sessionID[:8],
				"elapsed", time.Since(startTime).Round(time.Second).String(),
			)
		}
	}
}

// SessionID returns the session identifier.
func (a *App) SessionID() string {
	return a.sessionID
}

// Close releases session resources.
func (a *App) Close() {
	a.logger.Close()
}
