package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/yourusername/quizpit/internal/config"
	"github.com/yourusername/quizpit/internal/engine"
	"github.com/yourusername/quizpit/internal/eventbus"
	"github.com/yourusername/quizpit/internal/handler"
	"github.com/yourusername/quizpit/internal/middleware"
	"github.com/yourusername/quizpit/internal/registry"
)

func main() {
	// Загружаем конфигурацию: файл необязателен, всё управляется
	// переменными окружения с дефолтами.
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}

	// Собираем игровой рантайм: реестр сессий, реестр шин, движок.
	sessions := registry.NewSessionManager(cfg.Game.MaxSessions)
	buses := eventbus.NewRegistry()
	gameEngine := engine.New(sessions, buses)

	quizHandler := handler.NewQuizHandler(sessions, cfg)
	wsHandler := handler.NewWSHandler(sessions, buses, gameEngine, cfg)

	router := gin.Default()

	// Пермиссивный CORS: сервер отдаёт публичный игровой API, доступ
	// контролируется обладанием кодом подключения.
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept"},
		MaxAge:          12 * time.Hour,
	}))

	// Настраиваем маршруты API
	api := router.Group("/api")
	{
		api.GET("/health", quizHandler.HealthCheck)
		api.POST("/quiz", quizHandler.UploadQuiz)
		api.POST("/sessions", quizHandler.CreateSession)

		sessionWithCode := api.Group("/sessions/:code")
		sessionWithCode.Use(middleware.ExtractJoinCodeParam("code", "joinCode"))
		{
			sessionWithCode.GET("", quizHandler.GetSession)
		}
	}

	// WebSocket маршруты
	ws := router.Group("/ws")
	ws.Use(middleware.ExtractJoinCodeParam("code", "joinCode"))
	{
		ws.GET("/host/:code", wsHandler.HandleHost)
		ws.GET("/player/:code", wsHandler.HandlePlayer)
	}

	// Статика клиента, если каталог задан; всё, что не попало в API,
	// уходит файловому серверу.
	if cfg.Server.StaticDir != "" {
		log.Printf("Раздаю статику из %s", cfg.Server.StaticDir)
		router.NoRoute(gin.WrapH(http.FileServer(http.Dir(cfg.Server.StaticDir))))
	}

	// Таймауты HTTP сервера защищают от медленных клиентов; на
	// WebSocket-соединения они не действуют, те живут после hijack.
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	// Запускаем сервер в горутине
	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Failed to start server: %v", err)
		}
	}()

	// Ожидаем сигнал остановки
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Создаем контекст с таймаутом для graceful shutdown сервера
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
		os.Exit(1)
	}

	log.Println("Server exited properly")
}
