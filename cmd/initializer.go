package main

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"vpsBack/internal/audit"
	"vpsBack/internal/cache"
	"vpsBack/internal/config"
	"vpsBack/internal/events"
	"vpsBack/internal/handlers"
	"vpsBack/internal/pay"
	"vpsBack/internal/pay/appstore"
	"vpsBack/internal/repositories"
	"vpsBack/internal/services"
	"vpsBack/internal/timeutil"
	"vpsBack/internal/tradeno"
)

type application struct {
	logger    *logrus.Logger
	jwtSecret []byte

	db        *sql.DB
	rdb       *redis.Client
	publisher *events.KafkaPublisher

	payHandler *handlers.PayHandler
}

func initializeApp(cfg config.Config, db *sql.DB, logger *logrus.Logger) (*application, error) {
	loc, err := timeutil.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, err
	}

	privateKey, err := pay.LoadPrivateKey(cfg.Gateway.PrivateKeyPath)
	if err != nil {
		return nil, err
	}
	publicKey, err := pay.LoadPublicKey(cfg.Gateway.PublicKeyPath)
	if err != nil {
		return nil, err
	}
	gateway, err := pay.NewGateway(pay.GatewayConfig{
		AppID:      cfg.Gateway.AppID,
		GatewayURL: cfg.Gateway.GatewayURL,
		NotifyURL:  cfg.Gateway.NotifyURL,
		ReturnURL:  cfg.Gateway.ReturnURL,
		SignType:   cfg.Gateway.SignType,
		Charset:    cfg.Gateway.Charset,
		PrivateKey: privateKey,
		Location:   loc,
	})
	if err != nil {
		return nil, err
	}
	verifier := pay.NewCallbackVerifier(cfg.Gateway.AppID, publicKey, cfg.Gateway.SignType)
	receipts := appstore.NewVerifier(appstore.Config{
		SharedSecret:  cfg.AppStore.SharedSecret,
		ProductionURL: cfg.AppStore.ProductionURL,
		SandboxURL:    cfg.AppStore.SandboxURL,
		Timeout:       cfg.AppStoreTimeout(),
	})

	// Repositories
	orderRepo := repositories.NewOrderRepository(db)
	orderLogRepo := repositories.NewOrderLogRepository(db)
	productRepo := repositories.NewProductRepository(db)
	userRepo := repositories.NewUserRepository(db)

	app := &application{logger: logger, jwtSecret: []byte(cfg.Auth.JWTSecret), db: db}

	var marker services.SettledMarker
	if cfg.Redis.Addr != "" {
		app.rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		marker = cache.NewSettledCache(app.rdb, cache.DefaultSettledTTL)
		logger.WithField("addr", cfg.Redis.Addr).Info("Settled marker cache enabled")
	}

	var publisher services.SettlementPublisher
	if cfg.Kafka.Brokers != "" {
		p, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return nil, fmt.Errorf("kafka: %w", err)
		}
		app.publisher = p
		publisher = p
	}

	// Services
	engine := services.NewReconcileEngine(orderRepo, productRepo, userRepo, marker, publisher, logger)
	paymentService := &services.PaymentService{
		Orders:   orderRepo,
		Products: productRepo,
		Users:    userRepo,
		IDs:      tradeno.NewGenerator(loc),
		Gateway:  services.NewGatewayRail(gateway, verifier, cfg.Gateway.SuccessStatus),
		InApp:    services.NewInAppRail(receipts),
		Engine:   engine,
		Audit:    audit.NewRecorder(orderLogRepo, cfg.Audit.Dir, loc, logger),
		Log:      logger,
	}

	// Handlers
	app.payHandler = handlers.NewPayHandler(paymentService, logger)
	return app, nil
}

func (app *application) close() {
	if app.publisher != nil {
		app.publisher.Close()
	}
	if app.rdb != nil {
		_ = app.rdb.Close()
	}
}

// openDB forces parseTime so DATETIME columns scan into time.Time.
func openDB(dsn string) (*sql.DB, error) {
	mc, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	mc.ParseTime = true
	db, err := sql.Open("mysql", mc.FormatDSN())
	if err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		return nil, err
	}
	db.SetMaxIdleConns(35)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func addSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Cross-Origin-Resource-Policy", "same-origin")
		next.ServeHTTP(w, r)
	})
}
