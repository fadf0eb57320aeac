package main

import (
	"context"
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/smartfarm/irrigation/internal/config"
	"github.com/smartfarm/irrigation/internal/repo/backend"
	"github.com/smartfarm/irrigation/internal/service"
	grpcserver "github.com/smartfarm/irrigation/internal/transport/grpc"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	addr := flag.String("addr", cfg.GRPCAddr, "listen address")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := backend.Open(ctx, cfg.Store)
	if err != nil {
		log.Fatalf("open %s store: %v", cfg.Store.Backend, err)
	}
	defer store.Close()

	api := grpcserver.New(service.NewReadingService(store.Readings))

	lis, err := net.Listen("tcp", *addr)
	if err != nil {
		log.Fatalf("listen %q: %v", *addr, err)
	}
	log.Printf("gRPC listening on %s (store %s)", *addr, cfg.Store.Backend)

	g := grpc.NewServer()
	grpcserver.RegisterReadingServiceServer(g, api)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(grpcserver.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(g, hs)

	go func() {
		<-ctx.Done()
		log.Printf("shutting down gRPC")
		hs.Shutdown()
		ch := make(chan struct{})
		go func() {
			g.GracefulStop()
			close(ch)
		}()
		select {
		case <-ch:
		case <-time.After(5 * time.Second):
			g.Stop()
		}
	}()

	if err := g.Serve(lis); err != nil {
		log.Fatalf("serve: %v", err)
	}
}
