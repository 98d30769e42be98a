package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"fable/internal/config"
	"fable/internal/handler"
	storyHandler "fable/internal/handler/story"
	storyModel "fable/internal/model/story"
	"fable/internal/pkg/cache"
	"fable/internal/pkg/mongodb"
	"fable/internal/pkg/storagefactory"
	storyRepo "fable/internal/repository/story"
	"fable/internal/server/middleware"
	storyService "fable/internal/service/story"
)

// Server HTTP 服务器
type Server struct {
	cfg    *config.Config
	engine *gin.Engine
	mongo  *mongodb.Client
	redis  *cache.RedisCache
}

// New 创建服务器实例
func New(cfg *config.Config) (*Server, error) {
	// 设置 Gin 模式
	switch cfg.Server.Mode {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// 初始化 MongoDB (可选，未配置时作品接口不可用)
	var mongoClient *mongodb.Client
	if cfg.Mongo.URI != "" {
		client, err := mongodb.New(&cfg.Mongo)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to MongoDB, continuing without it")
		} else {
			mongoClient = client
			log.Info().Str("database", cfg.Mongo.Database).Msg("connected to MongoDB")
		}
	}

	// 初始化 Redis (可选，未配置时不写任务快照)
	var redisCache *cache.RedisCache
	if cfg.Redis.Addr != "" {
		rc, err := cache.NewRedisCache(&cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to Redis, continuing without it")
		} else {
			redisCache = rc
			log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to Redis")
		}
	}

	srv := &Server{
		cfg:    cfg,
		engine: engine,
		mongo:  mongoClient,
		redis:  redisCache,
	}

	if err := srv.setupRoutes(); err != nil {
		return nil, err
	}

	return srv, nil
}

// setupRoutes 设置路由
func (s *Server) setupRoutes() error {
	// 全局中间件
	s.engine.Use(middleware.Recovery())
	s.engine.Use(middleware.RequestID())
	s.engine.Use(middleware.Logger())
	s.engine.Use(middleware.CORS())

	// 健康检查
	healthHandler := handler.NewHealthHandler()
	s.engine.GET("/health", healthHandler.Health)
	s.engine.GET("/ready", healthHandler.Ready)

	// 本地存储时直接静态托管产物目录，本地 URL 即可播放
	if s.cfg.Storage.Type == "local" || s.cfg.Storage.Type == "" {
		if s.cfg.Storage.Local != nil && s.cfg.Storage.Local.BasePath != "" {
			s.engine.Static("/static", s.cfg.Storage.Local.BasePath)
		}
	}

	// API v1
	v1 := s.engine.Group("/api/v1")
	{
		if s.mongo == nil {
			log.Warn().Msg("MongoDB not configured, story endpoints disabled")
			return nil
		}

		svc, err := s.buildStoryService()
		if err != nil {
			return err
		}

		storyHdl := storyHandler.NewHandler(svc)

		v1.POST("/stories", storyHdl.CreateStory)
		v1.GET("/stories", storyHdl.ListStories)
		v1.GET("/stories/:id", storyHdl.GetStory)
		v1.GET("/stories/:id/status", storyHdl.GetStatus)
		v1.GET("/stories/:id/events", storyHdl.Events)
		v1.POST("/stories/:id/images", storyHdl.GenerateImages)
		v1.POST("/stories/:id/audio", storyHdl.GenerateAudio)
		v1.POST("/stories/:id/video", storyHdl.AssembleVideo)
	}

	return nil
}

// buildStoryService 组装作品生成服务及其外部能力客户端
// 未配置的能力置空，对应阶段调用时报配置错误而不是启动失败
func (s *Server) buildStoryService() (*storyService.StoryService, error) {
	ctx := context.Background()

	store, err := storagefactory.NewStorage(ctx, &s.cfg.Storage)
	if err != nil {
		return nil, err
	}

	repo := storyRepo.NewManifestRepo(s.mongo.Database())
	var manifest storyModel.Manifest
	if err := manifest.EnsureIndexes(ctx, s.mongo.Database()); err != nil {
		log.Warn().Err(err).Msg("failed to ensure indexes")
	}

	prov := storyService.BuildProviders(ctx, s.cfg)

	return storyService.NewStoryService(s.cfg, repo, store, s.redis, prov), nil
}

// Run 启动服务器
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down server...")

		if s.mongo != nil {
			if err := s.mongo.Close(context.Background()); err != nil {
				log.Error().Err(err).Msg("failed to close MongoDB connection")
			}
		}
		if s.redis != nil {
			if err := s.redis.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close Redis connection")
			}
		}

		return srv.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}

// Engine 获取 Gin 引擎 (用于测试)
func (s *Server) Engine() *gin.Engine {
	return s.engine
}
