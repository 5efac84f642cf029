// Package main 是服务端的入口点
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"dnc-chat-server/internal/cache"
	"dnc-chat-server/internal/config"
	"dnc-chat-server/internal/handler"
	"dnc-chat-server/internal/middleware"
	"dnc-chat-server/internal/model"
	"dnc-chat-server/internal/repository"
	"dnc-chat-server/internal/service"
	"dnc-chat-server/internal/websocket"
	"dnc-chat-server/pkg/jwt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func main() {
	// 加载配置
	cfg, err := config.Load("./configs")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化数据库
	db, err := initDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to init database: %v", err)
	}

	// 自动迁移数据库表
	if err := autoMigrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// 初始化 Redis
	redisCache, err := cache.NewRedisCache(cfg)
	if err != nil {
		log.Fatalf("Failed to init redis: %v", err)
	}

	// 初始化 JWT 服务
	jwtService := jwt.NewJWTService(
		cfg.JWT.Secret,
		cfg.JWT.AccessExpire,
		cfg.JWT.RefreshExpire,
	)

	// 初始化 Repository 层
	userRepo := repository.NewUserRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	fallbackRepo := repository.NewFallbackRuleRepository(db)
	snippetRepo := repository.NewSnippetRepository(db)

	// 写入内置的兜底规则
	if err := fallbackRepo.Seed(context.Background()); err != nil {
		log.Fatalf("Failed to seed fallback rules: %v", err)
	}

	// 初始化 Service 层
	llmClient := service.NewQwenClient(cfg)
	authService := service.NewAuthService(userRepo, redisCache, jwtService)
	userService := service.NewUserService(userRepo)
	chatService := service.NewChatService(messageRepo)
	retrievalService := service.NewRetrievalService(snippetRepo)
	generationService := service.NewGenerationService(llmClient)
	fallbackService := service.NewFallbackService(fallbackRepo)
	chatbotService := service.NewChatbotService(retrievalService, generationService, fallbackService, messageRepo)
	ingestService := service.NewIngestService(snippetRepo, llmClient)

	// 初始化 WebSocket Hub
	typingDelay := newTypingDelay(cfg.Chatbot.TypingDelayMS)
	wsHub := websocket.NewHub(chatService, chatbotService, userRepo, redisCache, cfg.Chatbot.BotName, typingDelay)
	go wsHub.Run() // 在单独的 goroutine 中运行

	// 初始化 Handler 层
	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	chatHandler := handler.NewChatHandler(chatService, redisCache)
	snippetHandler := handler.NewSnippetHandler(ingestService)
	wsHandler := websocket.NewHandler(wsHub, cfg.JWT.Secret)

	// 设置 Gin 模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建 Gin 引擎
	router := gin.New()

	// 全局中间件
	router.Use(gin.Recovery())                // 恢复 panic
	router.Use(middleware.LoggerMiddleware()) // 请求日志

	// CORS 来源取自配置，未配置时放开所有来源
	corsConfig := middleware.DefaultCORSConfig()
	if len(cfg.Server.CORS) > 0 {
		corsConfig.AllowOrigins = cfg.Server.CORS
	}
	router.Use(middleware.CORSMiddleware(corsConfig))

	// 注册路由
	registerRoutes(router, jwtService, redisCache, authHandler, userHandler, chatHandler, snippetHandler, wsHandler)

	// 创建 HTTP 服务器
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// 在 goroutine 中启动服务器
	go func() {
		log.Printf("Server starting on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// 创建关闭上下文，设置超时
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 关闭 HTTP 服务器
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	// 关闭 Redis 连接
	if err := redisCache.Close(); err != nil {
		log.Printf("Failed to close redis: %v", err)
	}

	log.Println("Server exited")
}

// newTypingDelay 构建机器人打字延迟函数
// 延迟期间上下文取消则提前返回
func newTypingDelay(delayMS int) func(ctx context.Context) {
	if delayMS <= 0 {
		return nil
	}
	delay := time.Duration(delayMS) * time.Millisecond
	return func(ctx context.Context) {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
		}
	}
}

// initDatabase 初始化数据库连接
func initDatabase(cfg *config.Config) (*gorm.DB, error) {
	// 构建 DSN (Data Source Name)
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
		cfg.MySQL.Username,
		cfg.MySQL.Password,
		cfg.MySQL.Host,
		cfg.MySQL.Port,
		cfg.MySQL.Database,
		cfg.MySQL.Charset,
	)

	// 配置 GORM logger
	gormLogger := logger.Default.LogMode(logger.Info)
	if cfg.Server.Mode == "release" {
		gormLogger = logger.Default.LogMode(logger.Warn)
	}

	// 连接数据库
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	// 获取底层 sql.DB
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	// 配置连接池
	sqlDB.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MySQL.MaxLifetime) * time.Second)

	log.Println("Database connected successfully")
	return db, nil
}

// autoMigrate 自动迁移数据库表
func autoMigrate(db *gorm.DB) error {
	log.Println("Running database migrations...")

	if err := db.AutoMigrate(
		&model.User{},
		&model.ChatMessage{},
		&model.FallbackRule{},
		&model.Snippet{},
	); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}

	log.Println("Database migrations completed")
	return nil
}

// registerRoutes 注册所有路由
func registerRoutes(
	router *gin.Engine,
	jwtService *jwt.JWTService,
	redisCache *cache.RedisCache,
	authHandler *handler.AuthHandler,
	userHandler *handler.UserHandler,
	chatHandler *handler.ChatHandler,
	snippetHandler *handler.SnippetHandler,
	wsHandler *websocket.Handler,
) {
	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API v1 路由组
	v1 := router.Group("/api/v1")

	// 认证相关（无需登录）
	auth := v1.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.RefreshToken)
	}

	// 登出需要登录态
	authed := v1.Group("/auth")
	authed.Use(middleware.AuthMiddleware(jwtService, redisCache))
	{
		authed.POST("/logout", authHandler.Logout)
	}

	// 用户相关（需要登录）
	users := v1.Group("/users")
	users.Use(middleware.AuthMiddleware(jwtService, redisCache))
	{
		users.GET("/me", userHandler.GetProfile)
		users.PUT("/me", userHandler.UpdateProfile)
		users.PUT("/me/password", userHandler.ChangePassword)
	}

	// 聊天相关（需要登录）
	chat := v1.Group("/chat")
	chat.Use(middleware.AuthMiddleware(jwtService, redisCache))
	{
		chat.GET("/messages", chatHandler.GetMessages)
		chat.PUT("/messages/:id/read", chatHandler.MarkAsRead)
		chat.GET("/online", chatHandler.GetOnlineUsers)
	}

	// 知识库相关（需要登录）
	snippets := v1.Group("/snippets")
	snippets.Use(middleware.AuthMiddleware(jwtService, redisCache))
	{
		snippets.POST("/ingest", snippetHandler.Ingest)
	}

	// WebSocket 路由
	wsHandler.RegisterRoutes(router)
}
