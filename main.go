// main.go

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/norun9/gomarketplace-cart/cartstore"
	"github.com/norun9/gomarketplace-cart/config"
	"github.com/norun9/gomarketplace-cart/events"
	"github.com/norun9/gomarketplace-cart/kvstore"
	"github.com/norun9/gomarketplace-cart/logging"
	"github.com/norun9/gomarketplace-cart/services"
	"github.com/norun9/gomarketplace-cart/telemetry"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}
	log := logging.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Fatal(err)
	}
}

func run(cfg config.Config, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1) OpenTelemetry
	if cfg.OTel.Enabled {
		shutdown, err := telemetry.Init(ctx, cfg.OTel.Endpoint)
		if err != nil {
			return fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				log.Warnf("error shutting down telemetry: %v", err)
			}
		}()
		log.Infof("telemetry exporting to %s", cfg.OTel.Endpoint)
	}

	// 2) Persistent slot
	slot, closer, err := openSlot(ctx, cfg.Storage, log)
	if err != nil {
		return err
	}
	defer closer.Close()

	// 3) Event publisher
	var publisher events.Publisher = events.NewLogPublisher(log)
	if len(cfg.Events.KafkaBrokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.Events.KafkaBrokers, cfg.Events.TopicPrefix, log)
		defer kp.Close()
		publisher = kp
	}

	// 4) Cart store
	store := cartstore.Open(ctx, slot,
		cartstore.WithKey(cfg.CartKey),
		cartstore.WithLogger(log),
		cartstore.WithNotifier(cartstore.NewLogNotifier(log)),
		cartstore.WithPublisher(publisher),
	)
	log.WithField("items", len(store.Products())).Info("cart store ready")

	// 5) Servers
	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           services.NewRouter(store, slot, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcSrv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
	)
	healthpb.RegisterHealthServer(grpcSrv, services.NewHealthCheckService(slot, log))
	reflection.Register(grpcSrv)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("HTTP server listening on %s", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
		if err != nil {
			return fmt.Errorf("failed to listen on :%s: %w", cfg.GRPCPort, err)
		}
		log.Infof("gRPC health server listening on :%s", cfg.GRPCPort)
		return grpcSrv.Serve(lis)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		grpcSrv.GracefulStop()
		return httpSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// openSlot builds the configured key-value store. The returned closer releases it.
func openSlot(ctx context.Context, cfg config.StorageConfig, log *logrus.Logger) (kvstore.Store, io.Closer, error) {
	switch cfg.Backend {
	case config.BackendRedis:
		log.Infof("using redis slot at %s", cfg.RedisAddr)
		r := kvstore.NewRedis(cfg.RedisAddr, log)
		if err := r.Initialize(ctx); err != nil {
			r.Close()
			return nil, nil, fmt.Errorf("failed to initialize redis slot: %w", err)
		}
		return r, r, nil
	case config.BackendSQLite:
		log.Infof("using sqlite slot at %s", cfg.SQLitePath)
		s, err := kvstore.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite slot: %w", err)
		}
		return s, s, nil
	default:
		log.Info("using in-memory slot")
		m := kvstore.NewMemory()
		return m, m, nil
	}
}
