// Package progresskit wires the progression engine, the action processor, and
// their supporting services into one configured Service. Defaults keep New()
// usable with zero options: in-memory storage, async dispatch, the standard
// scoring table, and log-based notification delivery.
package progresskit

import (
	"context"
	"log/slog"

	"progresskit/adapters/memory"
	"progresskit/core"
	"progresskit/engine"
	"progresskit/notify"
	"progresskit/processor"
	"progresskit/realtime"
	"progresskit/scoring"
	"progresskit/stats"
)

// Option configures the Service builder.
type Option func(*config)

type config struct {
	store        engine.Store
	mode         engine.DispatchMode
	scorer       processor.Scorer
	achievements processor.AchievementService
	challenges   processor.ChallengeService
	habits       processor.HabitSource
	notifier     notify.Notifier
	hub          *realtime.Hub
	log          *slog.Logger
	statsOff     bool
}

// WithStore sets the persistence adapter.
func WithStore(s engine.Store) Option { return func(c *config) { c.store = s } }

// WithDispatchMode selects sync or async event dispatch.
func WithDispatchMode(m engine.DispatchMode) Option { return func(c *config) { c.mode = m } }

// WithScorer overrides the points calculator.
func WithScorer(s processor.Scorer) Option { return func(c *config) { c.scorer = s } }

// WithAchievements wires an achievement service into the pipeline.
func WithAchievements(a processor.AchievementService) Option {
	return func(c *config) { c.achievements = a }
}

// WithChallenges wires a challenge service into the pipeline.
func WithChallenges(ch processor.ChallengeService) Option {
	return func(c *config) { c.challenges = ch }
}

// WithHabits wires the habit source used for context derivation.
func WithHabits(h processor.HabitSource) Option { return func(c *config) { c.habits = h } }

// WithNotifier sets the notification delivery channel.
func WithNotifier(n notify.Notifier) Option { return func(c *config) { c.notifier = n } }

// WithRealtime bridges all engine events onto a realtime hub.
func WithRealtime(h *realtime.Hub) Option { return func(c *config) { c.hub = h } }

// WithLogger sets the logger for all components.
func WithLogger(l *slog.Logger) Option { return func(c *config) { c.log = l } }

// WithoutStats disables the in-process stats collector.
func WithoutStats() Option { return func(c *config) { c.statsOff = true } }

// Service bundles the configured components. Close releases event bus workers
// and detaches subscribers.
type Service struct {
	Engine    *engine.ProgressionEngine
	Processor *processor.Processor
	Bus       *engine.EventBus
	Stats     *stats.Collector

	detach []func()
}

// New builds a Service. Defaults when options are omitted:
//   - store: adapters/memory
//   - dispatch: async
//   - scorer: scoring table with default point values
//   - achievements/challenges: no-op services
//   - habits: empty source
//   - notifier: log delivery
func New(opts ...Option) *Service {
	cfg := &config{mode: engine.DispatchAsync}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.store == nil {
		cfg.store = memory.New()
	}
	if cfg.scorer == nil {
		cfg.scorer = scoring.NewTableScorer(scoring.DefaultConfig())
	}
	if cfg.achievements == nil {
		cfg.achievements = processor.NopAchievements{}
	}
	if cfg.challenges == nil {
		cfg.challenges = processor.NopChallenges{}
	}
	if cfg.habits == nil {
		cfg.habits = processor.EmptyHabits{}
	}
	if cfg.notifier == nil {
		cfg.notifier = notify.LogNotifier{Log: cfg.log}
	}
	if cfg.log == nil {
		cfg.log = slog.Default()
	}

	bus := engine.NewEventBus(cfg.mode)
	eng := engine.NewProgressionEngine(cfg.store, bus, cfg.log)

	svc := &Service{Engine: eng, Bus: bus}

	procOpts := []processor.Option{processor.WithLogger(cfg.log)}
	if !cfg.statsOff {
		svc.Stats = stats.NewCollector()
		svc.detach = append(svc.detach, svc.Stats.Attach(bus))
		procOpts = append(procOpts, processor.WithStats(svc.Stats))
	}
	svc.Processor = processor.New(eng, cfg.scorer, cfg.achievements, cfg.challenges, cfg.habits, procOpts...)

	dispatcher := notify.NewDispatcher(cfg.notifier, cfg.log)
	svc.detach = append(svc.detach, dispatcher.Attach(bus))

	if cfg.hub != nil {
		for _, typ := range []core.EventType{
			core.EventXPAwarded,
			core.EventLevelUp,
			core.EventPrestige,
			core.EventMilestone,
			core.EventRewardClaimed,
			core.EventNotification,
		} {
			hub := cfg.hub
			svc.detach = append(svc.detach, bus.Subscribe(typ, func(ctx context.Context, e core.Event) {
				hub.Broadcast(ctx, e)
			}))
		}
	}
	return svc
}

// Close detaches subscribers and drains the event bus.
func (s *Service) Close() {
	for _, d := range s.detach {
		d()
	}
	s.Bus.Close()
}
