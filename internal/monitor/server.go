// Package monitor exposes the progress of an experiment sweep through the
// standard gRPC health service and a small JSON endpoint.
package monitor

import (
	"fmt"
	"net"

	"github.com/GoSim-25-26J-441/denas/pkg/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the overall health service name. Per-space services are
// named ServiceName + ".space<N>".
const ServiceName = "denas"

// SpaceService returns the health service name of a search space
func SpaceService(space int) string {
	return fmt.Sprintf("%s.space%d", ServiceName, space)
}

// Server serves health and progress for one experiment
type Server struct {
	grpc     *grpc.Server
	health   *health.Server
	progress *Progress
}

// NewServer creates a server with the overall service SERVING
func NewServer(opts ...grpc.ServerOption) *Server {
	s := &Server{
		grpc:     grpc.NewServer(opts...),
		health:   health.NewServer(),
		progress: NewProgress(),
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return s
}

// Progress returns the progress store backing the server
func (s *Server) Progress() *Progress {
	return s.progress
}

// Serve accepts connections on lis until Stop is called
func (s *Server) Serve(lis net.Listener) error {
	logger.Info("health server listening", "addr", lis.Addr().String())
	return s.grpc.Serve(lis)
}

// Stop gracefully stops the gRPC server
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

// Register marks spaces as pending. Their health status is NOT_SERVING until
// a run starts.
func (s *Server) Register(spaces ...int) {
	s.progress.Register(spaces...)
	for _, sp := range spaces {
		s.health.SetServingStatus(SpaceService(sp), healthpb.HealthCheckResponse_NOT_SERVING)
	}
}

// MarkRunning reports space as SERVING
func (s *Server) MarkRunning(space int) {
	s.health.SetServingStatus(SpaceService(space), healthpb.HealthCheckResponse_SERVING)
}

// MarkDone reports space as NOT_SERVING and marks its progress done
func (s *Server) MarkDone(space int) {
	s.progress.Done(space)
	s.health.SetServingStatus(SpaceService(space), healthpb.HealthCheckResponse_NOT_SERVING)
}

// RunStarted records the start of a run
func (s *Server) RunStarted(space, runIndex int, runID string) {
	s.MarkRunning(space)
	s.progress.StartRun(space, runIndex, runID)
}

// GenerationDone records the best score after a generation
func (s *Server) GenerationDone(space, generation int, best float64) {
	s.progress.Update(space, generation, best)
}

// RunFinished counts a finished run
func (s *Server) RunFinished(space int) {
	s.progress.FinishRun(space)
}

// Finish reports the overall service as NOT_SERVING once the sweep has ended
func (s *Server) Finish() {
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
}
