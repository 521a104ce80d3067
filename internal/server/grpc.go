// Package server wires the collector's gRPC services and interceptors.
package server

import (
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	meteringhandler "metering-collector/internal/metering/handler"
	"metering-collector/internal/security"
	"metering-collector/internal/server/interceptors"
)

// Health check methods stay reachable without an intake token and are not access-logged.
var healthMethods = map[string]bool{
	healthpb.Health_Check_FullMethodName: true,
	healthpb.Health_Watch_FullMethodName: true,
}

// Deps holds service dependencies for gRPC handlers.
type Deps struct {
	// Recorder backs MeteringService. If nil, metering RPCs return Unimplemented.
	Recorder meteringhandler.Recorder
	// Health serves grpc.health.v1.Health. If nil, the health service is not registered.
	Health *health.Server
}

// RegisterServices registers all gRPC services with the given server.
//
// Service → handler mapping:
//   - metering.v1.MeteringService → internal/metering/handler
//   - grpc.health.v1.Health       → google.golang.org/grpc/health, kept current by internal/health
func RegisterServices(s grpc.ServiceRegistrar, deps Deps) {
	meteringhandler.RegisterMeteringServiceServer(s, meteringhandler.NewServer(deps.Recorder))
	if deps.Health != nil {
		healthpb.RegisterHealthServer(s, deps.Health)
	}
}

// ServerOptions returns the collector's server options: OpenTelemetry stats handling, then
// the access-log and auth interceptors. A nil tokens provider disables authentication.
func ServerOptions(log zerolog.Logger, tokens *security.TokenProvider) []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			interceptors.LoggingUnary(log, healthMethods),
			interceptors.AuthUnary(tokens, healthMethods),
		),
	}
}
