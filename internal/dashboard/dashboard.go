// Package dashboard keeps the recent-records list and backend stats fresh.
//
// A refresh cycle fetches both slots concurrently and applies each one
// independently. Cycles are numbered; a slot only accepts a response from a
// cycle newer than the one it last applied, so a slow response can never
// overwrite fresher data. Cycles may overlap freely: the timer and push
// triggers are not guarded, only manual refresh is.
package dashboard

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-dashboard/internal/client"
	"github.com/kjstillabower/weather-dashboard/internal/models"
	"github.com/kjstillabower/weather-dashboard/internal/observability"
	"github.com/kjstillabower/weather-dashboard/internal/push"
	"github.com/kjstillabower/weather-dashboard/internal/scheduler"
)

// DefaultLimit is the number of recent records shown.
const DefaultLimit = 10

// DefaultRefreshInterval is the background poll period.
const DefaultRefreshInterval = 5 * time.Minute

var (
	// ErrRefreshDisabled is returned by ManualRefresh until the first load settles.
	ErrRefreshDisabled = errors.New("refresh disabled while loading")
	ErrNotMounted      = errors.New("dashboard not mounted")
	ErrAlreadyMounted  = errors.New("dashboard already mounted")
)

// Trigger names what started a refresh cycle.
type Trigger string

const (
	TriggerMount  Trigger = "mount"
	TriggerTimer  Trigger = "timer"
	TriggerPush   Trigger = "push"
	TriggerManual Trigger = "manual"
	// TriggerDirect marks cycles started through Refresh by embedding code.
	TriggerDirect Trigger = "direct"
)

const (
	slotRecords = "records"
	slotStats   = "stats"
)

// Snapshot is a read-only copy of the view state.
type Snapshot struct {
	Records     []models.WeatherRecord `json:"records"`
	Stats       *models.DashboardStats `json:"stats,omitempty"`
	Loading     bool                   `json:"loading"`
	LastUpdate  time.Time              `json:"last_update"`
	NextRefresh time.Time              `json:"next_refresh"`
	Mounted     bool                   `json:"mounted"`
}

// Options configures a View. Zero values select the defaults.
type Options struct {
	Limit           int
	RefreshInterval time.Duration
	// Push, when set, is owned by the view: subscribed on Mount, closed on Unmount.
	Push   push.Subscriber
	Logger *zap.Logger
	Now    func() time.Time
}

// View is the dashboard state plus the resources that keep it fresh.
type View struct {
	client client.BackendClient
	limit  int
	push   push.Subscriber
	sched  *scheduler.Scheduler
	logger *zap.Logger
	now    func() time.Time

	cycle    atomic.Uint64
	inFlight sync.WaitGroup

	// notifyMu orders deliveries: each snapshot is taken and handed to the
	// observers while it is held, so observers never see state go backwards.
	notifyMu sync.Mutex

	mu         sync.Mutex
	records    []models.WeatherRecord
	stats      *models.DashboardStats
	recordsSeq uint64
	statsSeq   uint64
	loading    bool
	lastUpdate time.Time
	mounted    bool
	tornDown   bool
	cancel     context.CancelFunc
	observers  []func(Snapshot)
}

// New returns an unmounted view.
func New(c client.BackendClient, opts Options) *View {
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = DefaultRefreshInterval
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	v := &View{
		client: c,
		limit:  opts.Limit,
		push:   opts.Push,
		logger: opts.Logger,
		now:    opts.Now,
	}
	v.sched = scheduler.New(opts.RefreshInterval, v.onTick, opts.Logger)
	return v
}

// OnChange registers fn to be called with a fresh snapshot whenever the view
// changes. Register before Mount; fn runs on the goroutine that made the change.
// Deliveries are serialized, so fn must not start a refresh itself.
func (v *View) OnChange(fn func(Snapshot)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.observers = append(v.observers, fn)
}

// Mount shows the loading state, starts the timer and the push subscription,
// and runs the first refresh. It returns once that refresh settles. If ctx
// ends first, everything acquired so far is released and ctx.Err() returned.
// A push connection that cannot be established is logged and the view carries
// on with the timer and manual refresh.
func (v *View) Mount(ctx context.Context) error {
	v.mu.Lock()
	if v.mounted || v.tornDown {
		v.mu.Unlock()
		return ErrAlreadyMounted
	}
	// The push connection lives until Unmount; ctx only bounds setup.
	life, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stopSetup := context.AfterFunc(ctx, cancel)
	defer stopSetup()
	v.mounted = true
	v.loading = true
	v.cancel = cancel
	v.mu.Unlock()
	v.publish()

	first := make(chan struct{})
	go func() {
		defer close(first)
		v.refresh(ctx, TriggerMount)
	}()

	v.sched.Start()

	if v.push != nil {
		if err := v.push.Subscribe(life, v.onPush); err != nil {
			v.logger.Warn("push unavailable, relying on timer refresh", zap.Error(err))
		} else {
			go v.watchPush(life)
		}
	}

	select {
	case <-first:
	case <-ctx.Done():
	}
	if err := ctx.Err(); err != nil {
		v.Unmount()
		return err
	}
	return nil
}

// Unmount stops the timer and closes the push connection. Requests already in
// flight are not aborted, but nothing they return is applied. Safe to call
// more than once.
func (v *View) Unmount() {
	v.mu.Lock()
	if v.tornDown {
		v.mu.Unlock()
		return
	}
	v.tornDown = true
	v.mounted = false
	cancel := v.cancel
	v.mu.Unlock()

	if cancel != nil {
		defer cancel()
	}

	v.sched.Stop()
	if v.push != nil {
		if err := v.push.Close(); err != nil {
			v.logger.Warn("push close", zap.Error(err))
		}
	}
	v.logger.Info("dashboard unmounted")
}

// Refresh runs one cycle and waits for both fetches to settle. Fetch failures
// are logged, never returned. Unlike ManualRefresh it is not guarded by the
// loading state.
func (v *View) Refresh(ctx context.Context) {
	v.refresh(ctx, TriggerDirect)
}

// ManualRefresh is the refresh button: rejected while the first load is pending.
func (v *View) ManualRefresh(ctx context.Context) error {
	v.mu.Lock()
	if !v.mounted {
		v.mu.Unlock()
		return ErrNotMounted
	}
	if v.loading {
		v.mu.Unlock()
		return ErrRefreshDisabled
	}
	v.mu.Unlock()

	v.refresh(ctx, TriggerManual)
	return nil
}

// Snapshot returns a copy of the current state.
func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	snap := v.snapshotLocked()
	v.mu.Unlock()
	snap.NextRefresh = v.sched.Next()
	return snap
}

// Wait blocks until background cycles started by the timer or push have
// settled, or ctx ends.
func (v *View) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		v.inFlight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (v *View) onPush(m push.Message) {
	if !push.IsNewRecord(m) {
		return
	}
	if !v.begin() {
		return
	}
	v.logger.Debug("new record announced, refreshing")
	go func() {
		defer v.inFlight.Done()
		v.refresh(context.Background(), TriggerPush)
	}()
}

// watchPush warns when the push connection ends on its own. The view keeps
// running on the timer and manual refresh.
func (v *View) watchPush(life context.Context) {
	select {
	case <-v.push.Done():
	case <-life.Done():
		return
	}
	v.mu.Lock()
	tornDown := v.tornDown
	v.mu.Unlock()
	if !tornDown {
		v.logger.Warn("push delivery ended before unmount, relying on timer refresh")
	}
}

func (v *View) onTick() {
	if !v.begin() {
		return
	}
	defer v.inFlight.Done()
	v.refresh(context.Background(), TriggerTimer)
}

// begin registers a background cycle unless the view is torn down.
func (v *View) begin() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.tornDown {
		return false
	}
	v.inFlight.Add(1)
	return true
}

func (v *View) refresh(ctx context.Context, trigger Trigger) {
	seq := v.cycle.Add(1)
	observability.RefreshTriggersTotal.WithLabelValues(string(trigger)).Inc()
	observability.RefreshInFlight.Inc()
	defer observability.RefreshInFlight.Dec()

	logger := v.logger.With(zap.Uint64("cycle", seq), zap.String("trigger", string(trigger)))
	start := time.Now()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		records, err := v.client.ListRecent(ctx, v.limit)
		if err != nil {
			v.fetchFailed(logger, slotRecords, err)
			return
		}
		v.applyRecords(logger, seq, records)
	}()
	go func() {
		defer wg.Done()
		stats, err := v.client.GetStats(ctx)
		if err != nil {
			v.fetchFailed(logger, slotStats, err)
			return
		}
		v.applyStats(logger, seq, stats)
	}()
	wg.Wait()

	v.mu.Lock()
	if v.tornDown {
		v.mu.Unlock()
		logger.Debug("cycle settled after unmount, discarded")
		return
	}
	v.lastUpdate = v.now()
	v.loading = false
	v.mu.Unlock()

	logger.Debug("refresh settled", zap.Duration("duration", time.Since(start)))
	v.publish()
}

func (v *View) fetchFailed(logger *zap.Logger, slot string, err error) {
	observability.FetchFailuresTotal.WithLabelValues(slot).Inc()
	logger.Warn("dashboard fetch failed",
		zap.String("slot", slot),
		zap.String("category", string(client.CategorizeError(err))),
		zap.Error(err))
}

func (v *View) applyRecords(logger *zap.Logger, seq uint64, records []models.WeatherRecord) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.tornDown {
		return
	}
	if seq <= v.recordsSeq {
		observability.StaleResponsesTotal.WithLabelValues(slotRecords).Inc()
		logger.Debug("stale response discarded", zap.String("slot", slotRecords), zap.Uint64("applied_cycle", v.recordsSeq))
		return
	}
	v.records = append([]models.WeatherRecord(nil), records...)
	v.recordsSeq = seq
}

func (v *View) applyStats(logger *zap.Logger, seq uint64, stats models.DashboardStats) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.tornDown {
		return
	}
	if seq <= v.statsSeq {
		observability.StaleResponsesTotal.WithLabelValues(slotStats).Inc()
		logger.Debug("stale response discarded", zap.String("slot", slotStats), zap.Uint64("applied_cycle", v.statsSeq))
		return
	}
	v.stats = &stats
	v.statsSeq = seq
}

func (v *View) snapshotLocked() Snapshot {
	snap := Snapshot{
		Records:    append([]models.WeatherRecord{}, v.records...),
		Loading:    v.loading,
		LastUpdate: v.lastUpdate,
		Mounted:    v.mounted,
	}
	if v.stats != nil {
		s := *v.stats
		snap.Stats = &s
	}
	return snap
}

// publish hands the current state to every observer. Nothing is delivered
// after Unmount.
func (v *View) publish() {
	v.notifyMu.Lock()
	defer v.notifyMu.Unlock()

	v.mu.Lock()
	if v.tornDown {
		v.mu.Unlock()
		return
	}
	snap := v.snapshotLocked()
	observers := v.observers
	v.mu.Unlock()

	for _, fn := range observers {
		fn(snap)
	}
}
