package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/Domenick1991/airreservations/api"
	"github.com/Domenick1991/airreservations/config"
	"github.com/Domenick1991/airreservations/internal/auth"
	"github.com/Domenick1991/airreservations/internal/domain"
	"github.com/Domenick1991/airreservations/internal/logger"
	"github.com/Domenick1991/airreservations/internal/service/booking"
	"github.com/Domenick1991/airreservations/internal/service/flights"
	"github.com/Domenick1991/airreservations/internal/service/passengers"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	httpSwagger "github.com/swaggo/http-swagger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

const swaggerPath = "/swagger/bookings.swagger.json"

// Services is everything the HTTP layer dispatches to.
type Services struct {
	Flights    flights.FlightUseCase
	Bookings   booking.BookingUseCase
	Passengers passengers.PassengerUseCase
	Tokens     auth.TokenParser
	// Checks run on /healthz; any error reports the service unavailable.
	Checks map[string]func(context.Context) error
}

type Servers struct {
	grpcServer *grpc.Server
	health     *health.Server
	httpServer *http.Server
}

// Run starts the HTTP API and, when configured, the gRPC health listener.
// It blocks until ctx is canceled or a server fails.
func Run(ctx context.Context, cfg *config.Config, svc Services, log *logrus.Logger) error {
	s := newServers(cfg, svc, log)

	errCh := make(chan error, 2)

	if s.grpcServer != nil {
		lis, err := net.Listen("tcp", cfg.GRPC.Address)
		if err != nil {
			return fmt.Errorf("listen gRPC %s: %w", cfg.GRPC.Address, err)
		}
		log.WithField("address", cfg.GRPC.Address).Info("grpc health server listening")
		go func() { errCh <- s.grpcServer.Serve(lis) }()
	}

	log.WithField("address", cfg.HTTP.Address).Info("http server listening")
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info("shutting down servers")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if s.grpcServer != nil {
			s.health.Shutdown()
			s.grpcServer.GracefulStop()
		}
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	}
}

func newServers(cfg *config.Config, svc Services, log *logrus.Logger) *Servers {
	s := &Servers{
		httpServer: &http.Server{
			Addr:              cfg.HTTP.Address,
			Handler:           NewRouter(cfg, svc, log),
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}

	if cfg.GRPC.Address != "" {
		s.grpcServer = grpc.NewServer()
		s.health = health.NewServer()
		s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		healthpb.RegisterHealthServer(s.grpcServer, s.health)
		reflection.Register(s.grpcServer)
	}
	return s
}

// NewRouter wires middleware and routes. Everything under /api except flight
// lookups requires a bearer token; /api/admin additionally requires the admin role.
func NewRouter(cfg *config.Config, svc Services, log *logrus.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.GinMiddleware(log))

	corsConfig := cors.DefaultConfig()
	if len(cfg.HTTP.CORSOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.HTTP.CORSOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowHeaders("Authorization")
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.GET("/healthz", healthHandler(svc.Checks))

	if cfg.HTTP.SwaggerFile != "" {
		router.StaticFile(swaggerPath, cfg.HTTP.SwaggerFile)
		router.GET("/docs/*any", gin.WrapH(httpSwagger.Handler(httpSwagger.URL(swaggerPath))))
	}

	apiGroup := router.Group("/api")

	flightHandler := api.NewFlightHandler(svc.Flights)
	flightHandler.Register(apiGroup.Group("/flights"))

	authed := apiGroup.Group("", auth.Middleware(svc.Tokens, log))
	api.NewBookingHandler(svc.Bookings, svc.Passengers).Register(authed.Group("/bookings"))
	api.NewPassengerHandler(svc.Passengers).Register(authed.Group("/passengers"))

	admin := authed.Group("/admin", auth.RequireRole(domain.RoleAdmin))
	flightHandler.RegisterAdmin(admin.Group("/flights"))

	return router
}

func healthHandler(checks map[string]func(context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := gin.H{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				results[name] = err.Error()
				continue
			}
			results[name] = "ok"
		}

		state := "ok"
		if status != http.StatusOK {
			state = "unavailable"
		}
		c.JSON(status, gin.H{"status": state, "checks": results})
	}
}
