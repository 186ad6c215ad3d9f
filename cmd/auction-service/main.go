package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"auction-engine/internal/config"
	"auction-engine/internal/domain"
	"auction-engine/internal/infrastructure/leader"
	"auction-engine/internal/infrastructure/mysql"
	"auction-engine/internal/infrastructure/redis"
	"auction-engine/internal/services"
	"auction-engine/pkg/logger"

	redisClient "github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type AuctionHandler struct {
	auctions *services.AuctionService
	agents   domain.AgentRepository
	log      logger.Logger
}

type CreateAuctionRequest struct {
	AgentID   string     `json:"agentId"`
	SaleID    string     `json:"saleId"`
	SaleDate  *time.Time `json:"saleDate,omitempty"`
	OpenPrice float64    `json:"openPrice"`
	MinPrice  *float64   `json:"minPrice,omitempty"`
	Agents    []string   `json:"agents,omitempty"`
	OpenAt    *time.Time `json:"openAt,omitempty"`
	CloseAt   *time.Time `json:"closeAt,omitempty"`
}

type StartAuctionRequest struct {
	AgentID   string   `json:"agentId"`
	OpenPrice *float64 `json:"openPrice,omitempty"`
}

type PlaceBidRequest struct {
	AgentID  string   `json:"agentId"`
	Price    *float64 `json:"price,omitempty"`
	MaxPrice *float64 `json:"maxPrice,omitempty"`
}

type EndAuctionRequest struct {
	AgentID string `json:"agentId"`
}

type RegisterAgentRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

func NewAuctionHandler(auctions *services.AuctionService, agents domain.AgentRepository, log logger.Logger) *AuctionHandler {
	return &AuctionHandler{
		auctions: auctions,
		agents:   agents,
		log:      log,
	}
}

func (h *AuctionHandler) CreateAuction(c echo.Context) error {
	var req CreateAuctionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	if req.OpenAt != nil && req.OpenAt.Before(time.Now()) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Open time must be in the future"})
	}
	if req.OpenAt != nil && req.CloseAt != nil && req.CloseAt.Before(*req.OpenAt) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Close time must be after open time"})
	}

	data, err := h.auctions.CreateAuction(c.Request().Context(), services.CreateAuctionParams{
		AgentID:   req.AgentID,
		SaleID:    req.SaleID,
		SaleDate:  req.SaleDate,
		OpenPrice: req.OpenPrice,
		MinPrice:  req.MinPrice,
		Agents:    req.Agents,
		OpenAt:    req.OpenAt,
		CloseAt:   req.CloseAt,
	})
	if err != nil {
		return h.commandError(c, err)
	}

	return c.JSON(http.StatusCreated, data)
}

func (h *AuctionHandler) GetAuction(c echo.Context) error {
	data, err := h.auctions.GetAuction(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.commandError(c, err)
	}
	return c.JSON(http.StatusOK, data)
}

func (h *AuctionHandler) GetBidHistory(c echo.Context) error {
	bids, err := h.auctions.GetBidHistory(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.commandError(c, err)
	}
	return c.JSON(http.StatusOK, bids)
}

func (h *AuctionHandler) StartAuction(c echo.Context) error {
	var req StartAuctionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	data, err := h.auctions.StartAuction(c.Request().Context(), c.Param("id"), req.AgentID, req.OpenPrice)
	if err != nil {
		return h.commandError(c, err)
	}
	return c.JSON(http.StatusOK, data)
}

func (h *AuctionHandler) PlaceBid(c echo.Context) error {
	var req PlaceBidRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	bid, err := h.auctions.PlaceBid(c.Request().Context(), c.Param("id"), req.AgentID, req.Price, req.MaxPrice)
	if err != nil {
		return h.commandError(c, err)
	}
	return c.JSON(http.StatusCreated, bid)
}

func (h *AuctionHandler) EndAuction(c echo.Context) error {
	var req EndAuctionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	data, err := h.auctions.EndAuction(c.Request().Context(), c.Param("id"), req.AgentID)
	if err != nil {
		return h.commandError(c, err)
	}
	return c.JSON(http.StatusOK, data)
}

func (h *AuctionHandler) RegisterAgent(c echo.Context) error {
	var req RegisterAgentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	role := domain.AgentRole(req.Role)
	if role != domain.RoleAuctioneer && role != domain.RoleBidder {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Role must be auctioneer or bidder"})
	}
	if req.ID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Agent id required"})
	}

	agent := &domain.Agent{
		ID:        req.ID,
		Name:      req.Name,
		Role:      role,
		CreatedAt: time.Now(),
	}
	if err := h.agents.SaveAgent(c.Request().Context(), agent); err != nil {
		h.log.Error("Failed to save agent", "agent_id", req.ID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to save agent"})
	}
	return c.JSON(http.StatusCreated, agent)
}

func (h *AuctionHandler) commandError(c echo.Context, err error) error {
	var auctionErr *domain.AuctionError
	var bidErr *domain.BidError

	switch {
	case errors.Is(err, services.ErrAuctionNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Auction not found"})
	case errors.As(err, &auctionErr), errors.As(err, &bidErr):
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case errors.Is(err, services.ErrNotAuthorized):
		return c.JSON(http.StatusForbidden, map[string]string{"error": err.Error()})
	default:
		h.log.Error("Command failed", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal error"})
	}
}

func main() {
	log := logger.New()
	log.Info("Starting auction service")

	cfg, err := config.Load()
	if err != nil {
		log.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	rdb := redisClient.NewClient(&redisClient.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to Redis", "address", cfg.Redis.Address)

	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		log.Error("Failed to connect to MySQL", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		log.Error("Failed to ping MySQL", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to MySQL")

	auctionRepo := mysql.NewMySQLAuctionRepository(db)
	bidRepo := mysql.NewMySQLBidRepository(db)
	agentRepo := mysql.NewMySQLAgentRepository(db)
	schedulerRepo := mysql.NewMySQLSchedulerRepository(db)

	stateCache := redis.NewRedisStateCache(rdb)
	eventPublisher := redis.NewEventPublisher(rdb)

	ruleStore := services.NewIncrementRuleStore(rdb)
	if err := ruleStore.LoadRules(ctx); err != nil {
		log.Error("Failed to load increment rules", "error", err)
		os.Exit(1)
	}

	leaderElection := leader.NewRedisLeaderElection(rdb, cfg.Leader.TTL)

	authorizer := services.NewRoleAuthorizer(agentRepo, log)
	auctionService := services.NewAuctionService(
		auctionRepo,
		bidRepo,
		stateCache,
		eventPublisher,
		schedulerRepo,
		ruleStore,
		authorizer,
		log,
	)

	if err := auctionService.Restore(context.Background()); err != nil {
		log.Error("Failed to restore auctions", "error", err)
		os.Exit(1)
	}

	scheduler := services.NewLifecycleScheduler(schedulerRepo, auctionService, leaderElection, cfg.Instance.ID, log)

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RequestID())
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: `{"time":"${time_rfc3339}","id":"${id}","remote_ip":"${remote_ip}","host":"${host}","method":"${method}","uri":"${uri}","user_agent":"${user_agent}","status":${status},"error":"${error}","latency":${latency},"latency_human":"${latency_human}","bytes_in":${bytes_in},"bytes_out":${bytes_out}}` + "\n",
	}))
	e.Use(middleware.Recover())

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{
			echo.GET, echo.HEAD, echo.PUT, echo.PATCH,
			echo.POST, echo.DELETE, echo.OPTIONS,
		},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
			echo.HeaderXRequestedWith,
			echo.HeaderAccessControlRequestMethod,
			echo.HeaderAccessControlRequestHeaders,
		},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	handler := NewAuctionHandler(auctionService, agentRepo, log)

	api := e.Group("/api/v1")
	api.POST("/auctions", handler.CreateAuction)
	api.GET("/auctions/:id", handler.GetAuction)
	api.GET("/auctions/:id/bids", handler.GetBidHistory)
	api.POST("/auctions/:id/start", handler.StartAuction)
	api.POST("/auctions/:id/bids", handler.PlaceBid)
	api.POST("/auctions/:id/end", handler.EndAuction)
	api.POST("/agents", handler.RegisterAgent)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":    "ok",
			"service":   "auction-service",
			"timestamp": time.Now().Format(time.RFC3339),
			"port":      cfg.Server.Port,
			"version":   "1.0.0",
		})
	})

	go func() {
		if err := scheduler.Start(context.Background()); err != nil {
			log.Error("Failed to start scheduler", "error", err)
		}
	}()

	// Try to become leader
	go func() {
		for {
			became, err := leaderElection.BecomeLeader(context.Background(), cfg.Instance.ID)
			if err != nil {
				log.Error("Failed to attempt leadership", "error", err)
				time.Sleep(5 * time.Second)
				continue
			}
			if became {
				log.Info("Became auction leader", "instance_id", cfg.Instance.ID)
			}
			time.Sleep(10 * time.Second)
		}
	}()

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("Starting auction server", "address", serverAddr)

	go func() {
		if err := e.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down auction service...")

	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := scheduler.Stop(); err != nil {
		log.Error("Failed to stop scheduler", "error", err)
	}
	if err := leaderElection.ReleaseLeadership(ctx, cfg.Instance.ID); err != nil {
		log.Error("Failed to release leadership", "error", err)
	}

	if err := e.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Auction service stopped")
}
