package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/automaton-hq/automaton/config"
	adapterpoller "github.com/automaton-hq/automaton/internal/adapters/poller"
	adapterreaper "github.com/automaton-hq/automaton/internal/adapters/reaper"
	"github.com/automaton-hq/automaton/internal/core"
	"github.com/automaton-hq/automaton/internal/data"
	"github.com/automaton-hq/automaton/internal/observability/statsd"
	"github.com/automaton-hq/automaton/internal/service"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Rules         *service.RuleService
	Agents        *service.AgentService
	Jobs          *service.JobService
	Matcher       *service.MatcherService
	Queue         core.PollQueue
	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	MetricsSink   *statsd.Client
	MetricsConfig config.ObservabilityMetricsConfig
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// serviceRepositories groups data adapters backing service ports.
type serviceRepositories struct {
	DB        *sql.DB
	Redis     redis.UniversalClient
	RuleRepo  *data.RuleRepo
	JobRepo   *data.JobRepo
	AgentRepo *data.AgentRepo
	CacheRepo *data.RedisCacheRepo
	Queue     *data.RedisPollQueue
}

// buildObservability configures the metrics sink.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	var metricsSink *statsd.Client
	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  "automaton",
			Logger:  obsLogger,
		})
		if err != nil {
			obsLogger.Error("failed to initialise statsd client", "error", err)
		} else {
			metricsSink = client
		}
	}

	return ObservabilityContainer{
		MetricsSink:   metricsSink,
		MetricsConfig: cfg.Metrics,
	}
}

// buildRepositories builds repositories backing service ports; no business rules here.
func buildRepositories(db *sql.DB, redisClient redis.UniversalClient, cfg *config.AppConfig) *serviceRepositories {
	queueKey := ""
	if cfg != nil {
		queueKey = cfg.Poller.QueueKey
	}

	repos := &serviceRepositories{
		DB:        db,
		Redis:     redisClient,
		RuleRepo:  data.NewRuleRepo(db),
		JobRepo:   data.NewJobRepo(db),
		AgentRepo: data.NewAgentRepo(db),
	}
	if redisClient != nil {
		repos.CacheRepo = data.NewRedisCacheRepo(redisClient)
		repos.Queue = data.NewRedisPollQueue(redisClient, queueKey)
	}
	return repos
}

func newAgentCacheService(repos *serviceRepositories, cfg config.CacheConfig) *core.AgentCacheService {
	if repos.CacheRepo == nil {
		return nil
	}
	cacheCfg := core.DefaultAgentCacheConfig()
	if cfg.AgentTTL > 0 {
		cacheCfg.TTL = cfg.AgentTTL
	}
	return core.NewAgentCacheService(core.AgentCacheServiceOptions{
		Cache:  repos.CacheRepo,
		Agents: repos.AgentRepo,
		Config: cacheCfg,
	})
}

// DomainServicesOptions groups dependencies for buildDomainServices.
type DomainServicesOptions struct {
	Repos         *serviceRepositories
	Observability ObservabilityContainer
	Config        *config.AppConfig
	Logger        *slog.Logger
}

// buildDomainServices wires business services using repositories and observability adapters.
func buildDomainServices(opts *DomainServicesOptions) (ServiceContainer, error) {
	if opts == nil {
		return ServiceContainer{}, errors.New("domain service options are required")
	}
	svcLogger := opts.Logger
	if svcLogger == nil {
		svcLogger = slog.Default()
	}

	appCfg := opts.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	agentCache := newAgentCacheService(opts.Repos, appCfg.Cache)

	matcher, err := service.NewMatcherService(service.MatcherServiceOptions{
		Jobs:   opts.Repos.JobRepo,
		Logger: svcLogger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build matcher service: %w", err)
	}

	ruleSvc, err := service.NewRuleService(service.RuleServiceOptions{
		Repos: service.RuleServiceRepos{
			Rules:  opts.Repos.RuleRepo,
			Jobs:   opts.Repos.JobRepo,
			Agents: opts.Repos.AgentRepo,
		},
		Matcher:    matcher,
		Condition:  service.NewJMESPathEvaluator(),
		AgentCache: agentCache,
		Logger:     svcLogger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build rule service: %w", err)
	}

	agentSvc, err := service.NewAgentService(service.AgentServiceOptions{
		Repo:   opts.Repos.AgentRepo,
		Cache:  agentCache,
		Logger: svcLogger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build agent service: %w", err)
	}

	jobOpts := service.JobServiceOptions{
		Repo:   opts.Repos.JobRepo,
		Logger: svcLogger,
	}
	var queue core.PollQueue
	if opts.Repos.Queue != nil {
		queue = opts.Repos.Queue
		jobOpts.Queue = opts.Repos.Queue
	}
	jobSvc, err := service.NewJobService(jobOpts)
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build job service: %w", err)
	}

	return ServiceContainer{
		Rules:         ruleSvc,
		Agents:        agentSvc,
		Jobs:          jobSvc,
		Matcher:       matcher,
		Queue:         queue,
		Observability: opts.Observability,
	}, nil
}

// NewServices builds the full service container from connected dependencies.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil {
		return ServiceContainer{}, errors.New("service dependencies are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var obsCfg config.ObservabilityConfig
	if deps.Config != nil {
		obsCfg = deps.Config.Observability
	}
	observability := buildObservability(logger, obsCfg)
	repos := buildRepositories(deps.DB, deps.RedisClient, deps.Config)
	return buildDomainServices(&DomainServicesOptions{
		Repos:         repos,
		Observability: observability,
		Config:        deps.Config,
		Logger:        logger,
	})
}

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config      *config.AppConfig
	Services    ServiceContainer
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

const (
	// shutdownWaitTimeout is the maximum time to wait for services to stop gracefully.
	shutdownWaitTimeout = 15 * time.Second
)

// serviceStartupDeps groups dependencies for service startup.
type serviceStartupDeps struct {
	ctx             context.Context
	cfg             *ServiceOrchestrationConfig
	logger          *slog.Logger
	enabledServices map[config.ServiceMode]bool
	errCh           chan error
}

// backgroundService describes a startable background component.
type backgroundService struct {
	mode  config.ServiceMode
	name  string
	start func(context.Context) error
}

// backgroundServiceHandle tracks a running background service.
type backgroundServiceHandle struct {
	mode config.ServiceMode
	name string
	done <-chan struct{}
}

func launchBackground(ctx context.Context, deps *serviceStartupDeps, descriptor backgroundService) <-chan struct{} {
	if deps == nil || !deps.enabledServices[descriptor.mode] {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := descriptor.start(ctx); err != nil {
			errMsg := fmt.Errorf("%s failed: %w", descriptor.name, err)
			select {
			case deps.errCh <- errMsg:
			case <-ctx.Done():
			default:
				deps.logger.WarnContext(
					ctx,
					"dropping background service error",
					"service",
					descriptor.name,
					"error",
					errMsg,
				)
			}
		}
	}()

	deps.logger.InfoContext(ctx, "background service started", "service", descriptor.name, "mode", descriptor.mode)

	return done
}

func startBackgroundServices(deps *serviceStartupDeps, services []backgroundService) []backgroundServiceHandle {
	if deps == nil {
		return nil
	}
	handles := make([]backgroundServiceHandle, 0, len(services))

	for _, svc := range services {
		done := launchBackground(deps.ctx, deps, svc)
		if done == nil {
			continue
		}

		handles = append(handles, backgroundServiceHandle{
			mode: svc.mode,
			name: svc.name,
			done: done,
		})
	}

	return handles
}

func newPollerBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModePoller,
		name: "poller",
		start: func(ctx context.Context) error {
			if deps == nil || deps.cfg == nil {
				return nil
			}
			if deps.cfg.Services.Queue == nil {
				return errors.New("poller requires a redis connection")
			}
			var pollerCfg config.PollerConfig
			if deps.cfg.Config != nil {
				pollerCfg = deps.cfg.Config.Poller
			}
			runner, err := adapterpoller.NewRunner(adapterpoller.RunnerOptions{
				DB:      deps.cfg.DB,
				Queue:   deps.cfg.Services.Queue,
				Config:  pollerCfg,
				Logger:  deps.logger,
				Metrics: metricsSink(deps.cfg.Services.Observability),
			})
			if err != nil {
				return fmt.Errorf("build poller runner: %w", err)
			}
			return runner.Run(ctx)
		},
	}
}

func newReaperBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeReaper,
		name: "reaper",
		start: func(ctx context.Context) error {
			if deps == nil || deps.cfg == nil {
				return nil
			}
			var reaperCfg config.ReaperConfig
			if deps.cfg.Config != nil {
				reaperCfg = deps.cfg.Config.Reaper
			}
			runner, err := adapterreaper.NewRunner(adapterreaper.RunnerOptions{
				DB:      deps.cfg.DB,
				Config:  reaperCfg,
				Logger:  deps.logger,
				Metrics: metricsSink(deps.cfg.Services.Observability),
			})
			if err != nil {
				return fmt.Errorf("build reaper runner: %w", err)
			}
			return runner.Run(ctx)
		},
	}
}

// metricsSink unwraps the optional statsd client into the Sink interface.
// A nil *statsd.Client stored in a non-nil interface would defeat the
// nil checks in the services.
func metricsSink(obs ObservabilityContainer) statsd.Sink {
	if obs.MetricsSink == nil {
		return nil
	}
	return obs.MetricsSink
}

func buildBackgroundServices(deps *serviceStartupDeps) []backgroundService {
	if deps == nil {
		return nil
	}
	return []backgroundService{
		newPollerBackgroundService(deps),
		newReaperBackgroundService(deps),
	}
}

// ServiceStartupResult holds the results of starting all services.
type ServiceStartupResult struct {
	Background []backgroundServiceHandle
}

// startServices starts all enabled services and returns their completion channels.
func startServices(deps *serviceStartupDeps) ServiceStartupResult {
	return ServiceStartupResult{
		Background: startBackgroundServices(deps, buildBackgroundServices(deps)),
	}
}

// RunServicesWithShutdown starts all enabled services and manages their lifecycle.
// This function blocks until a shutdown signal is received or a service fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	ctx := context.Background()
	serviceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}

	// Determine which services are enabled
	enabledServices, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}
	errCh := make(chan error, errorChannelBufferSize(enabledServices))

	// Start all enabled services
	result := startServices(&serviceStartupDeps{
		ctx:             serviceCtx,
		cfg:             cfg,
		logger:          logger,
		enabledServices: enabledServices,
		errCh:           errCh,
	})

	// Wait for shutdown signal or error
	return waitForShutdown(shutdownConfig{
		ctx:         serviceCtx,
		cancel:      cancel,
		errCh:       errCh,
		logger:      logger,
		backgrounds: result.Background,
	})
}

func errorChannelCapacity(enabled map[config.ServiceMode]bool) int {
	modes := []config.ServiceMode{
		config.ServiceModePoller,
		config.ServiceModeReaper,
	}

	count := 0
	for _, mode := range modes {
		if enabled[mode] {
			count++
		}
	}
	return count
}

func errorChannelBufferSize(enabled map[config.ServiceMode]bool) int {
	size := errorChannelCapacity(enabled) + 1
	if size < 1 {
		return 1
	}
	return size
}

// shutdownConfig contains dependencies for graceful shutdown.
type shutdownConfig struct {
	ctx         context.Context
	cancel      context.CancelFunc
	errCh       <-chan error
	logger      *slog.Logger
	backgrounds []backgroundServiceHandle
}

// waitForShutdown waits for shutdown signal or service error.
func waitForShutdown(cfg shutdownConfig) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		cfg.logger.Info("shutting down services...")
		cfg.cancel() // Cancel service context before waiting
		gracefulStop(cfg)
		return nil
	case err := <-cfg.errCh:
		cfg.logger.Error("service error", "error", err)
		cfg.cancel() // Cancel service context before waiting
		gracefulStop(cfg)
		return err
	}
}

// gracefulStop waits for background services to finish.
func gracefulStop(cfg shutdownConfig) {
	for _, svc := range cfg.backgrounds {
		waitForService(svc.done, svc.name, cfg.logger)
	}
}

// waitForService waits for a service to finish with timeout.
func waitForService(done <-chan struct{}, name string, logger *slog.Logger) {
	if done == nil {
		return
	}
	select {
	case <-done:
		logger.Info(name + " stopped")
	case <-time.After(shutdownWaitTimeout):
		logger.Warn("timeout waiting for " + name + " to stop")
	}
}
