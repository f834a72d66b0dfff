package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/vladislavdragonenkov/order-enricher/internal/client"
	healthcheck "github.com/vladislavdragonenkov/order-enricher/internal/health"
	"github.com/vladislavdragonenkov/order-enricher/internal/metrics"
	"github.com/vladislavdragonenkov/order-enricher/internal/service/enricher"
	"github.com/vladislavdragonenkov/order-enricher/internal/transport/httpapi"
	"github.com/vladislavdragonenkov/order-enricher/internal/version"
)

// Run поднимает HTTP API, сервер метрик, gRPC health и outbox worker; блокируется до отмены ctx.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.close(logger)

	enricherMetrics := metrics.NewEnricherMetrics()
	customers := client.NewCustomerServiceClient(cfg.CustomerServiceURL,
		client.WithTimeout(cfg.UpstreamTimeout),
		client.WithLogger(logger.WithField("layer", "customer-client")),
		client.WithMetrics(enricherMetrics),
	)
	products := client.NewProductServiceClient(cfg.ProductServiceURL,
		client.WithTimeout(cfg.UpstreamTimeout),
		client.WithLogger(logger.WithField("layer", "product-client")),
		client.WithMetrics(enricherMetrics),
	)

	serviceOptions := []enricher.Option{
		enricher.WithLogger(logger.WithField("layer", "service")),
		enricher.WithMetrics(enricherMetrics),
		enricher.WithCache(deps.cache),
	}

	// Без Kafka события не копятся: outbox подключается только вместе с публикацией.
	producer, _ := initKafkaProducer(cfg.KafkaBrokers, logger)
	defer closeKafka(producer, logger)

	workerCtx, stopWorker := context.WithCancel(ctx)
	var workerWG sync.WaitGroup
	if producer != nil {
		serviceOptions = append(serviceOptions, enricher.WithOutbox(deps.outboxRepo))
		outboxMetrics := metrics.NewOutboxMetricsWithRegisterer(prometheus.DefaultRegisterer)
		worker := newOutboxWorker(cfg, deps.outboxRepo, producer, outboxMetrics, logger)
		workerWG.Add(1)
		go func() {
			defer workerWG.Done()
			worker.Run(workerCtx)
		}()
	}
	// Воркер должен остановиться раньше, чем закроется producer.
	defer workerWG.Wait()
	defer stopWorker()

	svc := enricher.NewService(customers, products, deps.repo, serviceOptions...)
	handler := httpapi.NewHandler(svc,
		httpapi.WithLogger(logger.WithField("layer", "http")),
		httpapi.WithMetrics(enricherMetrics),
	)

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	for name, checker := range deps.checkers {
		healthHandler.RegisterChecker(name, checker)
	}
	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)
	defer shutdownHTTP(metricsSrv, logger)

	apiLis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return err
	}
	apiSrv := &http.Server{
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Infof("HTTP API слушает %s", apiLis.Addr())
		errCh <- apiSrv.Serve(apiLis)
	}()

	grpcServer, healthServer, err := startGRPCServer(cfg.GRPCAddr, logger, errCh)
	if err != nil {
		shutdownHTTP(apiSrv, logger)
		return err
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем серверы")
		runErr = ctx.Err()
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, grpc.ErrServerStopped) {
			runErr = err
		}
	}

	if healthServer != nil {
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	}
	shutdownHTTP(apiSrv, logger)
	stopGRPC(grpcServer, cfg.ShutdownTimeout, logger)

	return runErr
}

// startGRPCServer поднимает gRPC health и reflection; пустой addr отключает сервер.
func startGRPCServer(addr string, logger *log.Entry, errCh chan<- error) (*grpc.Server, *health.Server, error) {
	if addr == "" {
		return nil, nil, nil
	}

	grpcMetrics := promgrpc.NewServerMetrics()
	if err := prometheus.Register(grpcMetrics); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok2 := are.ExistingCollector.(*promgrpc.ServerMetrics); ok2 {
				grpcMetrics = existing
			}
		} else {
			logger.WithError(err).Warn("failed to register grpc metrics")
		}
	}
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()))

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)
	grpcMetrics.InitializeMetrics(grpcServer)

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, err
	}
	go func() {
		logger.Infof("gRPC health сервер слушает %s", lis.Addr())
		errCh <- grpcServer.Serve(lis)
	}()
	return grpcServer, healthServer, nil
}

func stopGRPC(srv *grpc.Server, timeout time.Duration, logger *log.Entry) {
	if srv == nil {
		return
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	stoppedCh := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(stoppedCh)
	}()
	select {
	case <-stoppedCh:
	case <-time.After(timeout):
		logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
		srv.Stop()
	}
}

// startMetricsServer запускает HTTP-обработчики /metrics и health probes.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/readyz, %s/livez", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
