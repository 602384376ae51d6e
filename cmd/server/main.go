package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/clemsytoff/tradesarace/internal/infrastructure/logger"
	"github.com/clemsytoff/tradesarace/internal/infrastructure/pricefeed"
	"github.com/clemsytoff/tradesarace/internal/infrastructure/storage"
	"github.com/clemsytoff/tradesarace/internal/usecase"
	"github.com/clemsytoff/tradesarace/internal/web"
)

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
	Logging struct {
		Level    string `yaml:"level"`
		AuditLog string `yaml:"audit_log"`
	} `yaml:"logging"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Auth struct {
		Issuer   string `yaml:"issuer"`
		TTLHours int    `yaml:"ttl_hours"`
	} `yaml:"auth"`
	Feed struct {
		WSEndpoint   string `yaml:"ws_endpoint"`
		RESTEndpoint string `yaml:"rest_endpoint"`
	} `yaml:"feed"`
	Markets []string `yaml:"markets"`
}

func loadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func main() {
	// .env carries the secrets the YAML file must not
	_ = godotenv.Load()

	cfg, err := loadConfig("config/config.yaml")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logging.Level)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET is required")
	}
	dbPath := cfg.Database.Path
	if v := os.Getenv("DB_PATH"); v != "" {
		dbPath = v
	}
	if dbPath == "" {
		dbPath = "tradesarace.db"
	}

	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		log.Fatal("Failed to init sqlite", zap.Error(err))
	}
	defer store.Close()

	auditLog := log
	if cfg.Logging.AuditLog != "" {
		auditLog, err = logger.NewFileLogger(cfg.Logging.AuditLog, "info")
		if err != nil {
			log.Error("Failed to init audit logger, using default", zap.Error(err))
			auditLog = log
		}
	}

	svc := usecase.NewTradingService(store, log, auditLog)

	feed := pricefeed.NewClient(cfg.Feed.WSEndpoint, cfg.Feed.RESTEndpoint, log)
	feed.OnPriceUpdate(func(market string, price float64) {
		if err := svc.ProcessTick(context.Background(), market, price); err != nil {
			log.Error("Error processing tick", zap.String("market", market), zap.Error(err))
		}
	})

	if err := svc.LoadInitialPrices(context.Background(), feed, cfg.Markets); err != nil {
		log.Error("Failed to load initial prices", zap.Error(err))
	}
	if err := feed.Subscribe(cfg.Markets); err != nil {
		log.Error("Failed to subscribe to price feed", zap.Error(err))
	}

	ttl := time.Duration(cfg.Auth.TTLHours) * time.Hour
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	issuer := cfg.Auth.Issuer
	if issuer == "" {
		issuer = "tradesarace"
	}
	auth := web.NewAuthService(store, issuer, []byte(secret), ttl)

	port := cfg.Server.Port
	if port == 0 {
		port = 8080
	}
	server := web.NewServer(port, svc, auth, store, store, log)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	server.Shutdown(ctx)
}
