package api

import (
	"fmt"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	"github.com/tixera/tixera-api/docs"
	v1 "github.com/tixera/tixera-api/internal/api/handler/v1"
	"github.com/tixera/tixera-api/internal/api/middleware"
	"github.com/tixera/tixera-api/internal/config"
	"github.com/tixera/tixera-api/internal/notification"
	"github.com/tixera/tixera-api/internal/repository"
	"github.com/tixera/tixera-api/internal/repository/dao"
	"github.com/tixera/tixera-api/internal/service"
	"github.com/tixera/tixera-api/internal/storage"
)

const defaultSweepInterval = time.Minute

type Server struct {
	Config  *config.AppConfig
	Router  *gin.Engine
	Sweeper *service.Sweeper
}

func NewServer(conf *config.AppConfig, db *gorm.DB) (*Server, error) {
	gin.SetMode(conf.Gin.Mode)
	engine := gin.New()

	s := &Server{
		Config: conf,
		Router: engine,
	}

	s.MountMiddlewares()

	userRepo := repository.NewUserRepository(dao.NewUserDAO(db))
	eventRepo := repository.NewEventRepository(dao.NewEventDAO(db))
	promoRepo := repository.NewPromotionRepository(dao.NewPromotionDAO(db))
	pointRepo := repository.NewPointRepository(dao.NewPointDAO(db))
	txnRepo := repository.NewTransactionRepository(dao.NewTransactionDAO(db))

	proofStorage, err := storage.NewLocalStorage(conf.Storage.Dir, conf.Storage.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("storage.NewLocalStorage -> %w", err)
	}

	var notifier service.Notifier = notification.Noop{}
	if conf.SMTP != nil && conf.SMTP.Host != "" {
		notifier = notification.NewMailer(conf.SMTP.Host, conf.SMTP.Port, conf.SMTP.From, conf.SMTP.Username, conf.SMTP.Password)
	}

	promoSvc := service.NewPromotionService(promoRepo)
	userSvc := service.NewUserService(userRepo, pointRepo)
	authSvc := service.NewAuthService(userRepo, pointRepo)
	eventSvc := service.NewEventService(eventRepo, promoSvc)
	txnSvc := service.NewTransactionService(txnRepo, eventRepo, userRepo, promoSvc, proofStorage, notifier)

	interval := defaultSweepInterval
	if conf.Sweeper != nil && conf.Sweeper.Interval != "" {
		interval, err = time.ParseDuration(conf.Sweeper.Interval)
		if err != nil {
			return nil, fmt.Errorf("invalid sweeper interval %q -> %w", conf.Sweeper.Interval, err)
		}
	}
	s.Sweeper = service.NewSweeper(txnSvc, pointRepo, interval)

	authHandler := v1.NewAuthHandler(conf.API, authSvc)
	userHandler := v1.NewUserHandler(userSvc)
	eventHandler := v1.NewEventHandler(eventSvc, userSvc)
	txnHandler := v1.NewTransactionHandler(txnSvc, userSvc)
	s.MountHandlers(authHandler, userHandler, eventHandler, txnHandler)

	return s, nil
}

func (s *Server) MountMiddlewares() {
	// Logger and Recovery are needed unless we use gin.Default().
	s.Router.Use(gin.Logger())
	s.Router.Use(gin.Recovery())
	s.Router.Use(requestid.New())
	s.Router.Use(middleware.ConfigCORS(s.Config.API.AllowedCORSDomains))
}

func (s *Server) MountHandlers(authHandler *v1.AuthHandler, userHandler *v1.UserHandler, eventHandler *v1.EventHandler, txnHandler *v1.TransactionHandler) {
	const basePath = "/api/v1"

	auth := s.Router.Group(basePath)
	{
		auth.POST("/auth/signup", authHandler.HandleSignup)
		auth.POST("/auth/login", authHandler.HandleLogin)
	}

	authed := s.Router.Group(basePath, middleware.NewAuthenticator(s.Config.API.JWTSigningKey).VerifyJWT())
	{
		authed.GET("/users/me", userHandler.HandleGetMe)
		authed.GET("/users/me/points", userHandler.HandleGetPointHistory)

		authed.GET("/events", eventHandler.HandleListEvents)
		authed.POST("/events", eventHandler.HandleCreateEvent)
		authed.GET("/events/:eventID", eventHandler.HandleGetEvent)
		authed.POST("/events/:eventID/promotions", eventHandler.HandleCreatePromotion)
		authed.GET("/events/:eventID/promotions", eventHandler.HandleListPromotions)
		authed.GET("/events/:eventID/summary", txnHandler.HandleEventSummary)

		authed.POST("/transactions", txnHandler.HandleCreateTransaction)
		authed.GET("/transactions", txnHandler.HandleListTransactions)
		authed.GET("/transactions/manage", txnHandler.HandleManageTransactions)
		authed.GET("/transactions/:transactionID", txnHandler.HandleGetTransaction)
		authed.POST("/transactions/:transactionID/proof", txnHandler.HandleUploadProof)
		authed.PUT("/transactions/:transactionID/status", txnHandler.HandleUpdateStatus)
	}

	s.Router.GET("/", v1.HandleHealthcheck)
	s.Router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.Router.Static("/uploads", s.Config.Storage.Dir)

	// Setup Swagger UI.
	docs.SwaggerInfo.Host = s.Config.API.BaseURL
	docs.SwaggerInfo.BasePath = basePath
	docs.SwaggerInfo.Title = "Tixera API"
	docs.SwaggerInfo.Description = "Event ticketing marketplace API."
	docs.SwaggerInfo.Version = "1.0"
	s.Router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))
}
