package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModePoller runs the poll dispatcher for due jobs.
	ServiceModePoller ServiceMode = "poller"
	// ServiceModeReaper runs the orphaned job reaper.
	ServiceModeReaper ServiceMode = "reaper"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModePoller,
		ServiceModeReaper,
	}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	parts := strings.Split(servicesStr, ",")
	for _, part := range parts {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModePoller, ServiceModeReaper:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: poller, reaper)",
				serviceName,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// PollerConfig contains poller service configuration.
type PollerConfig struct {
	// Interval is the poller tick interval.
	Interval time.Duration `env:"POLLER_INTERVAL" envDefault:"5s"`

	// BatchSize is the maximum number of due jobs to claim per tick.
	BatchSize int `env:"POLLER_BATCH_SIZE" envDefault:"100"`

	// Concurrency is the number of goroutines used to enqueue poll requests.
	Concurrency int `env:"POLLER_CONCURRENCY" envDefault:"4"`

	// QueueKey is the Redis list key the poller pushes poll requests onto.
	QueueKey string `env:"POLLER_QUEUE_KEY" envDefault:"automaton:poll_queue"`
}

// Sanitize applies guardrails to poller configuration values.
func (p *PollerConfig) Sanitize() {
	if p.Interval < 1*time.Second {
		p.Interval = 1 * time.Second
	}
	if p.BatchSize < 1 {
		p.BatchSize = 1
	}
	if p.BatchSize > 10000 {
		p.BatchSize = 10000
	}
	if p.Concurrency < 1 {
		p.Concurrency = 1
	}
}

// ReaperConfig contains job reaper service configuration.
type ReaperConfig struct {
	// Interval is the reaper tick interval.
	Interval time.Duration `env:"REAPER_INTERVAL" envDefault:"5m"`

	// OrphanMaxAge is the minimum time a job must have served no rules
	// before the reaper deletes it.
	OrphanMaxAge time.Duration `env:"REAPER_ORPHAN_MAX_AGE" envDefault:"1h"`

	// BatchSize is the maximum number of rows to delete per operation.
	// Batching prevents long locks and I/O spikes on large tables.
	BatchSize int `env:"REAPER_BATCH_SIZE" envDefault:"1000"`
}

// Sanitize applies guardrails to reaper configuration values.
func (r *ReaperConfig) Sanitize() {
	// Enforce minimum intervals to prevent excessive database load
	if r.Interval < 1*time.Minute {
		r.Interval = 1 * time.Minute
	}
	if r.OrphanMaxAge < 5*time.Minute {
		r.OrphanMaxAge = 5 * time.Minute
	}

	// Enforce batch size bounds to prevent excessive locks or inefficiency
	if r.BatchSize < 1 {
		r.BatchSize = 1
	}
	if r.BatchSize > 10000 {
		r.BatchSize = 10000
	}
}
