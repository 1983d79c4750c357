package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"vpsBack/internal/config"
	"vpsBack/internal/repositories"
)

func main() {
	logger := newLogger()

	if err := godotenv.Load(); err != nil {
		logger.WithError(err).Warn("Error loading .env file")
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = config.DefaultPath
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.WithError(err).Fatal("Could not load config")
	}

	addr := flag.String("addr", cfg.Server.Address, "HTTP network address")
	flag.Parse()

	db, err := openDB(cfg.Database.URL)
	if err != nil {
		logger.WithError(err).Fatal("Could not connect to database")
	}
	defer db.Close()

	if err := repositories.Migrate(db); err != nil {
		logger.WithError(err).Fatal("Could not apply migrations")
	}
	logger.Info("Database migration successfully applied")

	app, err := initializeApp(cfg, db, logger)
	if err != nil {
		logger.WithError(err).Fatal("Could not initialize application")
	}
	defer app.close()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowCredentials: true,
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
	})

	errorWriter := logger.WriterLevel(logrus.ErrorLevel)
	defer errorWriter.Close()

	srv := &http.Server{
		Addr:         *addr,
		ErrorLog:     log.New(errorWriter, "", 0),
		Handler:      addSecurityHeaders(c.Handler(app.routes())),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("addr", *addr).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("Shutting down server")
		return srv.Shutdown(shutdownCtx)
	})
	if app.publisher != nil {
		g.Go(func() error { return app.publisher.Run(gctx) })
	}

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("Server stopped with error")
	}
}

func newLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.SetOutput(os.Stdout)
	if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logger.SetLevel(lvl)
	}
	return logger
}
