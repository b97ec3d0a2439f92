package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"

	"metargb/media-service/internal/config"
	"metargb/media-service/internal/fetch"
	"metargb/media-service/internal/handler"
	"metargb/media-service/internal/metadata"
	"metargb/media-service/internal/pubsub"
	"metargb/media-service/internal/repository"
	"metargb/media-service/internal/service"
	"metargb/media-service/internal/storage"
	"metargb/media-service/pkg/db"
	"metargb/media-service/pkg/logger"
	"metargb/media-service/pkg/metrics"
)

func main() {
	cfg := config.Load()

	log := logger.New(cfg.ServiceName, os.Stdout, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.Connect(ctx, cfg.DB)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	defer database.Close()
	log.Info("Successfully connected to database")

	if cfg.SchemaCheck {
		guard := db.NewSchemaGuard(database)
		if err := guard.ValidateTables(ctx, db.ContentSchemas(cfg.TablePrefix)); err != nil {
			log.WithError(err).Fatal("Database schema validation failed")
		}
	}

	store, err := newStore(cfg.Storage)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize upload store")
	}
	defer store.Close()
	log.WithField("driver", cfg.Storage.Driver).Info("Upload store initialized")

	sizes, err := metadata.ParseSizes(cfg.ImageSizes)
	if err != nil {
		log.WithError(err).Fatal("Invalid IMAGE_SIZES")
	}

	publisher := pubsub.NewNoopPublisher()
	if cfg.RedisURL != "" {
		publisher, err = pubsub.NewRedisPublisher(ctx, cfg.RedisURL)
		if err != nil {
			log.WithError(err).Fatal("Failed to connect to redis")
		}
		log.Info("Publishing import events to redis")
	}
	defer publisher.Close()

	m := metrics.NewMetrics(strings.ReplaceAll(cfg.ServiceName, "-", "_"), prometheus.DefaultRegisterer)
	go m.CollectDBPoolStats(ctx, database, 15*time.Second)

	var fetchOpts []fetch.Option
	if cfg.FetchAllowPrivate {
		log.Warn("Imports may fetch from private network addresses")
		fetchOpts = append(fetchOpts, fetch.AllowPrivateNetworks())
	}

	postRepo := repository.NewPostRepository(database, cfg.TablePrefix)
	mediaService := service.NewMediaService(
		postRepo,
		storage.NewUploads(store, cfg.Storage.UploadURL, cfg.Storage.UseYearMonth),
		fetch.NewClient(cfg.FetchTimeout, cfg.UserAgent, cfg.FetchMaxSize, fetchOpts...),
		metadata.NewGenerator(store, sizes, cfg.JPEGQuality, cfg.ImageMaxPixels, log.Entry),
		publisher,
		m,
		log,
	)

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			logger.UnaryServerInterceptor(log),
			metrics.UnaryServerInterceptor(m),
		),
	)
	handler.RegisterMediaHandler(grpcServer, mediaService)

	listener, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		log.WithError(err).Fatalf("Failed to listen on gRPC port %s", cfg.GRPCPort)
	}

	go func() {
		log.Infof("gRPC server listening on port %s", cfg.GRPCPort)
		if err := grpcServer.Serve(listener); err != nil {
			log.WithError(err).Fatal("Failed to serve gRPC")
		}
	}()

	mux := http.NewServeMux()
	handler.NewHTTPHandler(mediaService, log, prometheus.DefaultGatherer).RegisterHTTPRoutes(mux)
	if cfg.Storage.Driver == "local" {
		serveUploads(mux, cfg.Storage)
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("HTTP server listening on port %s", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Failed to serve HTTP")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP server shutdown failed")
	}
	grpcServer.GracefulStop()
	log.Info("Server stopped")
}

func newStore(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Driver {
	case "ftp":
		return storage.NewFTPStore(cfg.FTPHost, cfg.FTPPort, cfg.FTPUser, cfg.FTPPassword, cfg.FTPBasePath), nil
	default:
		store, err := storage.NewLocalStore(cfg.UploadDir)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}

// serveUploads exposes the local upload dir under the path of the upload URL
func serveUploads(mux *http.ServeMux, cfg config.StorageConfig) {
	prefix := "/uploads"
	if u, err := url.Parse(cfg.UploadURL); err == nil && u.Path != "" {
		prefix = strings.TrimRight(u.Path, "/")
	}
	mux.Handle("GET "+prefix+"/", http.StripPrefix(prefix+"/", http.FileServer(http.Dir(cfg.UploadDir))))
}
