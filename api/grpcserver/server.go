package grpcserver

import (
	"context"
	"errors"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"tickloop/domain/orderbook"
	"tickloop/service"
)

// StatsSource is what the server reports on.
type StatsSource interface {
	Stats() service.Stats
}

// Server exposes pipeline statistics and the standard health service.
type Server struct {
	src    StatsSource
	grpc   *grpc.Server
	health *health.Server
	log    *zap.Logger
}

func NewServer(src StatsSource, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		src:    src,
		health: health.NewServer(),
		log:    log.With(zap.String("component", "grpc")),
	}
	s.grpc = grpc.NewServer(grpc.ChainUnaryInterceptor(s.logUnary))

	RegisterPipelineServer(s.grpc, s)
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return s
}

// -------------------- Queries --------------------

func (s *Server) GetStats(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	st := s.src.Stats()

	fields := map[string]any{
		"processed":              st.Processed,
		"elapsed_ns":             int64(st.Elapsed),
		"throughput":             st.Throughput,
		"messages":               st.Messages,
		"mean_ingest_latency_ns": int64(st.MeanIngestLatency),
		"max_process_latency_ns": int64(st.MaxProcessLatency),
		"p99_process_latency_ns": int64(st.P99ProcessLatency),
		"samples":                st.Samples,
		"drops":                  st.Drops,
		"malformed":              st.Malformed,
		"submitted":              st.Submitted,
		"signals":                st.Signals,
		"connections":            st.Connections,
		"queue_depth":            st.QueueDepth,
	}
	if st.BestBid != orderbook.NoBid {
		fields["best_bid"] = st.BestBid
	}
	if st.BestAsk != orderbook.NoAsk {
		fields["best_ask"] = st.BestAsk
	}
	return structpb.NewStruct(fields)
}

// -------------------- Lifecycle --------------------

// Serve accepts on lis until ctx is done, then drains in-flight calls.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	errc := make(chan error, 1)
	go func() { errc <- s.grpc.Serve(lis) }()

	s.log.Info("grpc listening", zap.String("addr", lis.Addr().String()))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.health.Shutdown()
	s.grpc.GracefulStop()
	if err := <-errc; err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

func (s *Server) logUnary(
	ctx context.Context,
	req any,
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.log.Debug("rpc",
		zap.String("method", info.FullMethod),
		zap.Duration("took", time.Since(start)),
		zap.Error(err),
	)
	return resp, err
}
