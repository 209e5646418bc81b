package app

import (
	"log"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

type Config struct {
	DecisionBaseURL    string
	PersistenceBaseURL string
	EventsBaseURL      string
	HTTPTimeout        time.Duration

	BreakerFailures int
	BreakerOpenFor  time.Duration
	BreakerInterval time.Duration

	Logger *log.Logger
}

type Gateway struct {
	cfg         Config
	decision    *Upstream
	persistence *Upstream
	events      *Upstream

	// ultima risposta valida del servizio eventi, servita quando il breaker è aperto
	mu              sync.RWMutex
	lastIrrigations []Irrigation
}

func NewGateway(cfg Config) *Gateway {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 3 * time.Second
	}

	// Un breaker per ciascun upstream
	mk := func(name string) *gobreaker.CircuitBreaker {
		return gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:     name,
			Interval: cfg.BreakerInterval,
			Timeout:  cfg.BreakerOpenFor,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= uint32(cfg.BreakerFailures)
			},
		})
	}

	return &Gateway{
		cfg:         cfg,
		decision:    NewUpstream("decision", cfg.DecisionBaseURL, cfg.HTTPTimeout, mk("decision-engine")),
		persistence: NewUpstream("persistence", cfg.PersistenceBaseURL, cfg.HTTPTimeout, mk("persistence-service")),
		events:      NewUpstream("events", cfg.EventsBaseURL, cfg.HTTPTimeout, mk("event-service")),
	}
}

func (g *Gateway) cacheIrrigations(irr []Irrigation) {
	g.mu.Lock()
	g.lastIrrigations = irr
	g.mu.Unlock()
}

func (g *Gateway) cachedIrrigations() []Irrigation {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.lastIrrigations
}
