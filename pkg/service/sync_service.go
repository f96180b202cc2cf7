package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/foxsync/foxsync-go/pkg/api"
	"github.com/foxsync/foxsync-go/pkg/config"
	"github.com/foxsync/foxsync-go/pkg/discovery"
	"github.com/foxsync/foxsync-go/pkg/engine"
	"github.com/foxsync/foxsync-go/pkg/log"
	"github.com/foxsync/foxsync-go/pkg/model"
	"github.com/foxsync/foxsync-go/pkg/mqtt"
	"github.com/foxsync/foxsync-go/pkg/persistence"
	"github.com/foxsync/foxsync-go/pkg/poller"
	"github.com/foxsync/foxsync-go/pkg/ratelimit"
	"github.com/foxsync/foxsync-go/pkg/staging"
	"github.com/foxsync/foxsync-go/pkg/state"
)

// trackedSettings are the setting keys refreshed on every poll.
var trackedSettings = []model.SettingKey{
	model.SettingWorkMode,
	model.SettingMinSoc,
	model.SettingMinSocOnGrid,
	model.SettingMaxSoc,
	model.SettingExportLimit,
}

// SyncService orchestrates one inverter's staged-configuration sync.
type SyncService struct {
	mu sync.RWMutex

	cfg    config.Config
	state  ServiceState
	logger *slog.Logger

	limiter *ratelimit.Limiter
	client  *api.Client
	cache   *state.Cache
	store   *staging.Store
	engine  *engine.Engine
	poller  *poller.Poller
	bridge  *mqtt.Bridge

	device model.Inverter
	caps   discovery.Capabilities

	audit      log.Logger
	auditFile  *log.FileLogger
	stateStore *persistence.Store

	ctx        context.Context
	cancel     context.CancelFunc
	pollerDone chan struct{}
}

// New creates a SyncService from a validated configuration.
func New(cfg config.Config, logger *slog.Logger) (*SyncService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncService{
		cfg:    cfg,
		state:  StateIdle,
		logger: logger,
	}, nil
}

// State returns the lifecycle state.
func (s *SyncService) State() ServiceState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Start resolves the device, reloads persisted intent and launches
// the poller. Blocking cloud calls honor ctx; the poller itself runs
// until Stop.
func (s *SyncService) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle && s.state != StateStopped {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.state = StateStarting
	s.mu.Unlock()

	if err := s.start(ctx); err != nil {
		s.teardown()
		s.mu.Lock()
		s.state = StateIdle
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.state = StateRunning
	s.mu.Unlock()
	s.logger.Info("service running",
		"device", s.device.DeviceSN,
		"profile", s.caps.Profile.ID,
		"scheduler", s.caps.SchedulerSupported,
		"pollInterval", s.poller.Interval())
	return nil
}

func (s *SyncService) start(ctx context.Context) error {
	audit, err := s.buildAudit()
	if err != nil {
		return err
	}
	s.audit = audit

	s.limiter, err = ratelimit.NewLimiter(ratelimit.Config{
		DailyQuota:  s.cfg.DailyQuota,
		MinInterval: s.cfg.MinCallInterval(),
		Location:    s.cfg.Location(),
	})
	if err != nil {
		return fmt.Errorf("limiter: %w", err)
	}

	s.client, err = api.NewClient(api.Config{
		APIKey:   s.cfg.APIKey,
		BaseURL:  s.cfg.BaseURL,
		Lang:     s.cfg.Lang,
		Timezone: s.cfg.Timezone,
		Gate:     s.limiter,
		Audit:    s.audit,
	})
	if err != nil {
		return fmt.Errorf("api client: %w", err)
	}

	device, err := discovery.Resolve(ctx, s.client, s.cfg.DeviceSN)
	if err != nil {
		return fmt.Errorf("resolve device: %w", err)
	}
	caps, err := discovery.Probe(ctx, s.client, device.DeviceSN)
	if err != nil {
		return fmt.Errorf("probe device: %w", err)
	}
	s.mu.Lock()
	s.device = device
	s.caps = caps
	s.mu.Unlock()

	s.cache = state.NewCache(&state.CloudFetcher{
		Client:             s.client,
		DeviceSN:           device.DeviceSN,
		Variables:          caps.Profile.RealtimeVariables,
		TrackedSettings:    trackedSettings,
		SchedulerSupported: caps.SchedulerSupported,
	})
	s.store = staging.NewStore(s.cache.Snapshot)

	s.engine, err = engine.New(engine.Config{
		DeviceSN: device.DeviceSN,
		Writer:   s.client,
		Store:    s.store,
		Cache:    s.cache,
		Ranges:   s.caps.Profile.Ranges,
		Logger:   s.logger,
		Audit:    s.audit,
	})
	if err != nil {
		return err
	}

	if s.cfg.MQTT.Enabled {
		s.bridge, err = mqtt.NewBridge(mqtt.Config{
			Broker:      s.cfg.MQTT.Broker,
			ClientID:    s.cfg.MQTT.ClientID,
			Username:    s.cfg.MQTT.Username,
			Password:    s.cfg.MQTT.Password,
			TopicPrefix: s.cfg.MQTT.TopicPrefix,
			DeviceSN:    device.DeviceSN,
			Logger:      s.logger,
		})
		if err != nil {
			return err
		}
		if err := s.bridge.Connect(); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	s.poller, err = poller.New(poller.Config{
		DeviceSN:          device.DeviceSN,
		Cache:             s.cache,
		Interval:          s.cfg.PollInterval(),
		FailureThreshold:  s.cfg.FailureThreshold,
		OnConditionChange: s.onCondition,
		OnRefresh:         s.onRefresh,
		Logger:            s.logger,
		Audit:             s.audit,
	})
	if err != nil {
		return err
	}

	s.restorePersisted()

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.pollerDone = make(chan struct{})
	go func() {
		defer close(s.pollerDone)
		_ = s.poller.Run(s.ctx)
	}()
	return nil
}

func (s *SyncService) buildAudit() (log.Logger, error) {
	loggers := []log.Logger{log.NewSlogAdapter(s.logger)}
	if s.cfg.AuditLog != "" {
		fl, err := log.NewFileLogger(s.cfg.AuditLog)
		if err != nil {
			return nil, fmt.Errorf("audit log: %w", err)
		}
		s.auditFile = fl
		loggers = append(loggers, fl)
	}
	if len(loggers) == 1 {
		return loggers[0], nil
	}
	return log.NewMultiLogger(loggers...), nil
}

// restorePersisted reloads staged values and the budget window. A
// missing or unreadable state file only logs; startup proceeds.
func (s *SyncService) restorePersisted() {
	if s.cfg.StateFile == "" {
		return
	}
	s.stateStore = persistence.NewStore(s.cfg.StateFile)
	saved, err := s.stateStore.Load()
	if err != nil {
		s.logger.Warn("state file unreadable, starting fresh", "error", err)
		return
	}
	if saved == nil {
		return
	}
	if saved.DeviceSN != s.device.DeviceSN {
		s.logger.Warn("state file belongs to another device, ignoring",
			"saved", saved.DeviceSN, "device", s.device.DeviceSN)
		return
	}
	for _, entry := range saved.Staged {
		id, v, err := entry.Value()
		if err != nil {
			s.logger.Warn("skipping persisted entry", "unit", entry.Unit, "error", err)
			continue
		}
		s.store.Stage(id, v)
	}
	if saved.Budget != nil {
		s.limiter.Restore(saved.Budget.WindowStart, saved.Budget.CallsUsed)
	}
	if len(saved.Staged) > 0 {
		s.logger.Info("restored staged values", "count", len(saved.Staged))
	}
}

// persist writes the dirty staged values and budget window to disk.
func (s *SyncService) persist() {
	if s.stateStore == nil {
		return
	}
	stats := s.limiter.Stats()
	doc := &persistence.SyncState{
		SavedAt:  time.Now(),
		DeviceSN: s.device.DeviceSN,
		Budget: &persistence.BudgetWindow{
			WindowStart: stats.WindowStart,
			CallsUsed:   stats.CallsUsedToday,
		},
	}
	for _, id := range s.store.DirtyUnits() {
		v, _, ok := s.store.Staged(id)
		if !ok {
			continue
		}
		if set, ok := v.Schedule(); ok {
			doc.Staged = append(doc.Staged, persistence.EntryForSchedule(id, set))
			continue
		}
		if sv, ok := v.Setting(); ok {
			doc.Staged = append(doc.Staged, persistence.EntryForSetting(id, sv))
		}
	}
	if err := s.stateStore.Save(doc); err != nil {
		s.logger.Warn("persisting state failed", "error", err)
	}
}

// Stop shuts the service down, persisting staged values first.
func (s *SyncService) Stop() error {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.state = StateStopping
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	if s.pollerDone != nil {
		<-s.pollerDone
	}
	s.persist()
	s.teardown()

	s.mu.Lock()
	s.state = StateStopped
	s.mu.Unlock()
	s.logger.Info("service stopped")
	return nil
}

func (s *SyncService) teardown() {
	if s.bridge != nil {
		s.bridge.Close()
		s.bridge = nil
	}
	if s.auditFile != nil {
		_ = s.auditFile.Close()
		s.auditFile = nil
	}
}

func (s *SyncService) onCondition(degraded bool) {
	if s.bridge != nil {
		s.bridge.PublishAvailability(!degraded)
	}
}

func (s *SyncService) onRefresh(snap model.DeviceState) {
	if s.bridge != nil {
		s.bridge.PublishState(snap)
	}
}

// Device returns the resolved inverter record.
func (s *SyncService) Device() model.Inverter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.device
}

// Capabilities returns the probed device capabilities.
func (s *SyncService) Capabilities() discovery.Capabilities {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.caps
}

// Snapshot returns the last known remote state; ok is false before
// the first successful refresh.
func (s *SyncService) Snapshot() (model.DeviceState, bool) {
	if s.cache == nil {
		return model.DeviceState{}, false
	}
	return s.cache.Snapshot()
}

// Budget returns the current call-budget statistics.
func (s *SyncService) Budget() ratelimit.Stats {
	if s.limiter == nil {
		return ratelimit.Stats{}
	}
	return s.limiter.Stats()
}

// Degraded reports the telemetry condition.
func (s *SyncService) Degraded() bool {
	if s.poller == nil {
		return false
	}
	return s.poller.Degraded()
}

// RefreshNow forces an immediate cache refresh outside the poll
// schedule.
func (s *SyncService) RefreshNow(ctx context.Context) (model.DeviceState, error) {
	if s.cache == nil {
		return model.DeviceState{}, ErrNotStarted
	}
	return s.cache.Refresh(ctx)
}

// StageSetting stages a value for a setting key. The key is
// canonicalized; unknown keys are rejected.
func (s *SyncService) StageSetting(key string, value model.SettingValue) (model.UnitID, error) {
	if s.store == nil {
		return "", ErrNotStarted
	}
	canonical, err := model.CanonicalSettingKey(key)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrUnknownSetting, key)
	}
	id := model.SettingUnit(canonical)
	s.store.Stage(id, staging.ForSetting(value))
	return id, nil
}

// StageSchedule stages a full schedule replacement. An empty set
// stages "clear all groups".
func (s *SyncService) StageSchedule(groups model.ScheduleSet) (model.UnitID, error) {
	if s.store == nil {
		return "", ErrNotStarted
	}
	if !s.Capabilities().SchedulerSupported {
		return "", ErrNoScheduler
	}
	s.store.Stage(model.UnitScheduler, staging.ForSchedule(groups))
	return model.UnitScheduler, nil
}

// Commit pushes one staged unit to the cloud.
func (s *SyncService) Commit(ctx context.Context, id model.UnitID) (engine.Outcome, error) {
	if s.engine == nil {
		return engine.OutcomeNoOp, ErrNotStarted
	}
	return s.engine.Commit(ctx, id)
}

// CommitAll commits every dirty unit.
func (s *SyncService) CommitAll(ctx context.Context) error {
	if s.engine == nil {
		return ErrNotStarted
	}
	return s.engine.CommitAll(ctx)
}

// SetSchedule stages and immediately commits a full schedule
// replacement. The groups are sent verbatim, in order; an empty list
// clears all groups on the device.
func (s *SyncService) SetSchedule(ctx context.Context, groups model.ScheduleSet) error {
	if _, err := s.StageSchedule(groups); err != nil {
		return err
	}
	_, err := s.Commit(ctx, model.UnitScheduler)
	return err
}

// ClearSchedule removes every schedule group on the device.
func (s *SyncService) ClearSchedule(ctx context.Context) error {
	return s.SetSchedule(ctx, model.ScheduleSet{})
}

// Dirty lists the units whose staged values differ from remote state.
func (s *SyncService) Dirty() []model.UnitID {
	if s.store == nil {
		return nil
	}
	return s.store.DirtyUnits()
}

// Staged returns the staged value for a unit.
func (s *SyncService) Staged(id model.UnitID) (staging.Value, bool) {
	if s.store == nil {
		return staging.Value{}, false
	}
	v, _, ok := s.store.Staged(id)
	return v, ok
}

// Discard drops the staged value for a unit.
func (s *SyncService) Discard(id model.UnitID) {
	if s.store != nil {
		s.store.Discard(id)
	}
}

// LastError returns the most recent commit error for a unit, or nil.
func (s *SyncService) LastError(id model.UnitID) error {
	if s.store == nil {
		return nil
	}
	return s.store.LastError(id)
}
