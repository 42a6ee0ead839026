package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	httpSwagger "github.com/swaggo/http-swagger"

	"trivia-auth-server/config"
	_ "trivia-auth-server/docs"
	"trivia-auth-server/internal/handler"
	"trivia-auth-server/internal/repository"
	"trivia-auth-server/internal/security"
	"trivia-auth-server/internal/service"
)

// @title Trivia-auth-server
// @version 1.0
// @description Сервис аутентификации и сессий для многопользовательской викторины

// @host localhost:8080
func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	db, err := config.SetupDatabase(cfg.DatabaseConfig.DSN)
	if err != nil {
		log.Fatalf("Не удалось подключиться к БД: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Ошибка при закрытии БД: %v", err)
		}
	}()

	redisClient, err := config.SetupRedis(&cfg.RedisConfig)
	if err != nil {
		log.Fatalf("Ошибка подключения к Redis: %v", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Printf("Ошибка при закрытии Redis: %v", err)
		}
	}()

	srv, router := config.SetupServer(cfg.ServerAddr)

	userRepo := repository.NewUserRepository(db)
	keyRepo := repository.NewKeyRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	invalidationRepo := repository.NewInvalidationRepository(db)
	revocationCache := repository.NewMemoryRevocationCache()
	eventBus := repository.NewRedisEventBus(redisClient)

	keyManager, err := security.NewKeyManager(keyRepo, cfg.JWT.KeyLifetime)
	if err != nil {
		log.Fatalf("Ошибка создания менеджера ключей: %v", err)
	}
	keyManager.StartCleanup(ctx)

	tokenService, err := security.NewTokenService(keyManager, invalidationRepo, revocationCache, eventBus, &cfg.JWT)
	if err != nil {
		log.Fatalf("Ошибка создания сервиса токенов: %v", err)
	}

	if err := tokenService.WarmupCache(ctx); err != nil {
		log.Printf("прогрев кэша отзыва не удался, продолжаем с пустым кэшем: %v", err)
	}
	tokenService.StartCleanup(ctx)
	if err := tokenService.StartInvalidationListener(ctx); err != nil {
		log.Printf("подписка на события отзыва не удалась, работаем в деградированном режиме: %v", err)
	}

	sessionManager, err := service.NewSessionManager(sessionRepo, userRepo, tokenService, keyManager, &cfg.Session, &cfg.JWT)
	if err != nil {
		log.Fatalf("Ошибка создания менеджера сессий: %v", err)
	}
	sessionManager.StartCleanup(ctx)

	authService := service.NewAuthenticationService(userRepo, sessionManager)
	authHandler := handler.NewAuthenticationHandler(authService, sessionManager, tokenService, keyManager)

	router.Get("/swagger/*", httpSwagger.WrapHandler)
	setupAuthRoutes(router, authHandler, tokenService, cfg)

	runServer(ctx, srv)
}

func setupAuthRoutes(r chi.Router, h *handler.AuthenticationHandler, tokenService *security.TokenService, cfg *config.AppConfig) {
	r.Route("/api/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
		})
		r.Group(func(r chi.Router) {
			// Пока CSRF-cookie жива, чужой сайт не может форсировать
			// выход или ротацию сессии.
			r.Use(security.OptionalCSRFMiddleware(cfg.Session.CookieSecure))
			r.Post("/refresh", h.RefreshToken)
			r.Post("/logout", h.Logout)
		})
		r.Group(func(r chi.Router) {
			r.Use(security.JWTMiddleware(tokenService))
			r.Use(security.CSRFMiddleware(cfg.Session.CookieSecure))
			r.Get("/me", h.GetCurrentUser)
			r.Get("/ws-ticket", h.GetWSTicket)
			r.Post("/logout-all", h.LogoutAll)
			r.Post("/keys/rotate", h.RotateKey)
		})
	})
}

func runServer(ctx context.Context, server *http.Server) {
	serverErrors := make(chan error, 1)
	go func() {
		log.Println("сервер запущен на " + server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	signalChannel := make(chan os.Signal, 1)
	signal.Notify(signalChannel, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil {
			log.Fatalf("ошибка работы сервера: %v", err)
		}
	case sig := <-signalChannel:
		log.Printf("получен сигнал %v остановки работы сервера ", sig)
	}

	shutDownCtx, shutDownCancel := context.WithTimeout(ctx, 5*time.Second)
	defer shutDownCancel()

	if err := server.Shutdown(shutDownCtx); err != nil {
		log.Printf("ошибка при остановке сервера: %v", err)
	} else {
		log.Println("Сервер успешно остановлен")
	}
}
