// Package server wires the router, middleware and all dependencies. It is
// the composition root: main.go only loads config and calls Start.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/lovelanguages/server/internal/auth"
	"github.com/lovelanguages/server/internal/handler"
	"github.com/lovelanguages/server/internal/llm"
	"github.com/lovelanguages/server/internal/middleware"
	sqliteRepo "github.com/lovelanguages/server/internal/repository/sqlite"
	"github.com/lovelanguages/server/internal/service"
	"github.com/lovelanguages/server/internal/tts"
)

// Config holds everything the server needs from the environment.
type Config struct {
	Port           int
	DBPath         string
	JWTSecret      string
	AllowedOrigins []string

	LLMBaseURL string
	LLMAPIKey  string
	LLMModel   string

	TTSEndpoint string
	TTSAPIKey   string

	AppleClientID     string
	AppleClientSecret string

	// PromoCodes maps redeemable code to access duration.
	PromoCodes map[string]time.Duration
}

// Server owns the router and the resources that need closing on shutdown.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New assembles the whole dependency chain: database, services, handlers,
// routes. Optional providers (LLM, TTS, Apple) degrade to nil when
// unconfigured; the services answer with a configuration error instead of
// refusing to boot.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

func (s *Server) setupRoutes() error {
	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return err
	}

	var modelClient llm.Client
	if s.config.LLMBaseURL != "" {
		modelClient = llm.NewHTTPClient(s.config.LLMBaseURL, s.config.LLMAPIKey, s.config.LLMModel, s.logger)
	} else {
		s.logger.Warn("LLM not configured, AI features disabled")
	}

	var speech tts.Client
	if c := tts.NewHTTPClient(s.config.TTSEndpoint, s.config.TTSAPIKey, s.logger); c != nil {
		speech = c
	} else {
		s.logger.Warn("TTS not configured, speech synthesis disabled")
	}

	var apple service.AppleExchanger
	if s.config.AppleClientID != "" && s.config.AppleClientSecret != "" {
		apple = auth.NewAppleProvider(s.config.AppleClientID, s.config.AppleClientSecret)
	} else {
		s.logger.Warn("Apple Sign-In not configured, token storage disabled")
	}

	// Services.
	accessService := service.NewAccessService(s.db, s.db, service.DefaultLimits(), s.config.PromoCodes, s.logger)
	authService := service.NewAuthService(s.db, tokens, apple, s.logger)
	vocabService := service.NewVocabService(s.db, s.logger)
	chatService := service.NewChatService(modelClient, vocabService, s.db, accessService, s.logger)
	loveNoteService := service.NewLoveNoteService(s.db, s.db, s.db, s.logger)
	challengeService := service.NewChallengeService(s.db, s.db, s.db, s.db, accessService, modelClient, s.logger)
	gameService := service.NewGameService(s.db, s.db, s.db, s.db, s.logger)
	notificationService := service.NewNotificationService(s.db, s.logger)
	partnerService := service.NewPartnerService(s.db, s.db, accessService, s.logger)
	ttsService := service.NewTTSService(speech, accessService)

	// Handlers.
	authHandler := handler.NewAuthHandler(authService, s.logger)
	accessHandler := handler.NewAccessHandler(accessService, s.logger)
	chatHandler := handler.NewChatHandler(chatService, s.logger)
	vocabHandler := handler.NewVocabHandler(vocabService, s.logger)
	loveNoteHandler := handler.NewLoveNoteHandler(loveNoteService, s.logger)
	challengeHandler := handler.NewChallengeHandler(challengeService, s.logger)
	gameHandler := handler.NewGameHandler(gameService, s.logger)
	notificationHandler := handler.NewNotificationHandler(notificationService, s.logger)
	partnerHandler := handler.NewPartnerHandler(partnerService, s.logger)
	ttsHandler := handler.NewTTSHandler(ttsService, s.logger)

	// Global middleware.
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(cors.New(cors.Options{
		AllowedOrigins:   s.config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler)

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	s.router.Route("/api", func(r chi.Router) {
		// Public.
		r.Post("/auth/register", authHandler.HandleRegister)
		r.Post("/auth/login", authHandler.HandleLogin)

		// Everything else requires a bearer token.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))

			r.Get("/me", authHandler.HandleMe)
			r.Post("/apple/token-exchange", authHandler.HandleAppleToken)
			r.Post("/switch-language", authHandler.HandleSwitchLanguage)

			r.Get("/trial-status", accessHandler.HandleTrialStatus)
			r.Post("/choose-free-tier", accessHandler.HandleChooseFreeTier)
			r.Post("/promo/redeem", accessHandler.HandleRedeemPromo)

			r.Post("/chat", chatHandler.HandleChat)
			r.Post("/chat-stream", chatHandler.HandleChatStream)
			r.Post("/validate-answer", chatHandler.HandleValidateAnswer)

			r.Get("/dictionary", vocabHandler.HandleListWords)
			r.Post("/dictionary", vocabHandler.HandleAddWord)

			r.Get("/love-notes", loveNoteHandler.HandleList)
			r.Post("/love-notes", loveNoteHandler.HandleSend)

			r.Get("/challenge-requests", challengeHandler.HandleListRequests)
			r.Post("/challenge-requests", challengeHandler.HandleCreateRequest)
			r.Post("/challenge-requests/{id}/decline", challengeHandler.HandleDeclineRequest)
			r.Get("/challenges", challengeHandler.HandleListChallenges)
			r.Post("/challenges", challengeHandler.HandleCreateChallenge)
			r.Post("/challenges/{id}/start", challengeHandler.HandleStart)
			r.Post("/challenges/{id}/submit", challengeHandler.HandleSubmit)

			r.Post("/game-sessions", gameHandler.HandleRecordSession)
			r.Get("/game-history", gameHandler.HandleHistory)
			r.Post("/xp", gameHandler.HandleAwardXP)
			r.Get("/achievements", gameHandler.HandleAchievements)

			r.Get("/notifications", notificationHandler.HandleList)
			r.Post("/notifications/read", notificationHandler.HandleMarkRead)
			r.Get("/activity-feed", notificationHandler.HandleActivityFeed)

			r.Post("/invites", partnerHandler.HandleCreateInvite)
			r.Post("/invites/complete", partnerHandler.HandleCompleteInvite)
			r.Post("/partner/delink", partnerHandler.HandleDelink)

			r.Post("/tts", ttsHandler.HandleSynthesize)
		})
	})

	return nil
}

// Start runs the server until SIGINT/SIGTERM, then shuts down gracefully
// and closes the database.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // chat streams stay open well past a normal response
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
