package memoryengine

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/libropolis/lending-library-go/asyncstore"
)

const (
	defaultBaseLatency         = 50 * time.Millisecond
	defaultDegradedProbability = 0.1

	logMsgRecordSaved         = "record saved"
	logMsgRecordDeleted       = "record deleted"
	logMsgSaveFailureInjected = "transient save failure injected"
	logMsgDegradedSave        = "degraded save, latency doubled"
	logAttrKey                = "key"
	logAttrDurationMS         = "duration_ms"

	saveDurationMetric  = "asyncstore_save_duration"
	saveFailuresMetric  = "asyncstore_save_failures"
	degradedSavesMetric = "asyncstore_degraded_saves"
	labelOperation      = "operation"
	operationSave       = "save"
)

// Engine is the in-memory asyncstore.Store implementation with injected
// latency and random transient failure.
//
// Every operation waits the configured base latency before taking effect;
// Save doubles its latency with the configured degraded probability but
// never silently drops data. Writes for the same key are serialized: a
// per-key lock is held across the latency window, so two writes to one key
// can never interleave, while writes to different keys proceed in parallel.
type Engine struct {
	mu   sync.RWMutex
	data map[string]asyncstore.Record

	keyMu    sync.Mutex
	keyLocks map[string]*sync.Mutex

	baseLatency         time.Duration
	degradedProbability float64
	failureProbability  float64

	randMu sync.Mutex
	rand   *rand.Rand

	logger           asyncstore.Logger
	metricsCollector asyncstore.MetricsCollector
}

// NewEngine creates an in-memory store engine with optional configuration.
func NewEngine(options ...Option) (*Engine, error) {
	e := &Engine{
		data:                make(map[string]asyncstore.Record),
		keyLocks:            make(map[string]*sync.Mutex),
		baseLatency:         defaultBaseLatency,
		degradedProbability: defaultDegradedProbability,
		rand:                rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // simulation, not crypto
	}

	for _, option := range options {
		if err := option(e); err != nil {
			return nil, err
		}
	}

	return e, nil
}

// Save stores the value under the key after the configured latency,
// last-write-wins. With the configured degraded probability the latency
// doubles; with the configured failure probability the write fails with
// asyncstore.ErrTransientFailure and is not applied.
func (e *Engine) Save(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return asyncstore.ErrEmptyKeySupplied
	}

	if !jsoniter.ConfigFastest.Valid(value) {
		return asyncstore.ErrInvalidValueJSON
	}

	lock := e.lockForKey(key)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()

	latency := e.baseLatency
	if e.roll(e.degradedProbability) {
		latency *= 2
		e.logDebug(logMsgDegradedSave, logAttrKey, key)
		e.incrementCounter(degradedSavesMetric, nil)
	}

	if err := e.wait(ctx, latency); err != nil {
		return err
	}

	if e.roll(e.failureProbability) {
		e.logWarn(logMsgSaveFailureInjected, logAttrKey, key)
		e.incrementCounter(saveFailuresMetric, nil)

		return asyncstore.ErrTransientFailure
	}

	stored := asyncstore.Record{
		Key:      key,
		Value:    append([]byte(nil), value...),
		StoredAt: time.Now(),
	}

	e.mu.Lock()
	e.data[key] = stored
	e.mu.Unlock()

	duration := time.Since(start)
	e.logDebug(logMsgRecordSaved, logAttrKey, key, logAttrDurationMS, duration.Milliseconds())
	e.recordDuration(saveDurationMetric, duration, map[string]string{labelOperation: operationSave})

	return nil
}

// Get resolves to the record stored under the key after the configured
// latency. A missing key resolves to an explicit absent result, never an error.
func (e *Engine) Get(ctx context.Context, key string) (asyncstore.Record, bool, error) {
	if key == "" {
		return asyncstore.Record{}, false, asyncstore.ErrEmptyKeySupplied
	}

	if err := e.wait(ctx, e.baseLatency); err != nil {
		return asyncstore.Record{}, false, err
	}

	e.mu.RLock()
	record, found := e.data[key]
	e.mu.RUnlock()

	if !found {
		return asyncstore.Record{}, false, nil
	}

	record.Value = append([]byte(nil), record.Value...)

	return record, true, nil
}

// Delete removes the record stored under the key after the configured
// latency and reports whether the key existed.
func (e *Engine) Delete(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, asyncstore.ErrEmptyKeySupplied
	}

	lock := e.lockForKey(key)
	lock.Lock()
	defer lock.Unlock()

	if err := e.wait(ctx, e.baseLatency); err != nil {
		return false, err
	}

	e.mu.Lock()
	_, existed := e.data[key]
	delete(e.data, key)
	e.mu.Unlock()

	if existed {
		e.logDebug(logMsgRecordDeleted, logAttrKey, key)
	}

	return existed, nil
}

// List returns every stored record, ordered by key, after the configured latency.
func (e *Engine) List(ctx context.Context) ([]asyncstore.Record, error) {
	if err := e.wait(ctx, e.baseLatency); err != nil {
		return nil, err
	}

	e.mu.RLock()
	records := make([]asyncstore.Record, 0, len(e.data))
	for _, record := range e.data {
		record.Value = append([]byte(nil), record.Value...)
		records = append(records, record)
	}
	e.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		return records[i].Key < records[j].Key
	})

	return records, nil
}

// Clear removes every stored record after the configured latency and returns
// how many were removed.
func (e *Engine) Clear(ctx context.Context) (int, error) {
	if err := e.wait(ctx, e.baseLatency); err != nil {
		return 0, err
	}

	e.mu.Lock()
	count := len(e.data)
	e.data = make(map[string]asyncstore.Record)
	e.mu.Unlock()

	return count, nil
}

// wait suspends for the given latency, honoring context cancellation.
func (e *Engine) wait(ctx context.Context, latency time.Duration) error {
	if latency <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(latency)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// lockForKey returns the mutex serializing writes for one key.
func (e *Engine) lockForKey(key string) *sync.Mutex {
	e.keyMu.Lock()
	defer e.keyMu.Unlock()

	lock, exists := e.keyLocks[key]
	if !exists {
		lock = &sync.Mutex{}
		e.keyLocks[key] = lock
	}

	return lock
}

// roll returns true with the given probability.
func (e *Engine) roll(probability float64) bool {
	if probability <= 0 {
		return false
	}

	e.randMu.Lock()
	defer e.randMu.Unlock()

	return e.rand.Float64() < probability
}

func (e *Engine) logDebug(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}

func (e *Engine) logWarn(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Warn(msg, args...)
	}
}

func (e *Engine) recordDuration(metric string, duration time.Duration, labels map[string]string) {
	if e.metricsCollector != nil {
		e.metricsCollector.RecordDuration(metric, duration, labels)
	}
}

func (e *Engine) incrementCounter(metric string, labels map[string]string) {
	if e.metricsCollector != nil {
		e.metricsCollector.IncrementCounter(metric, labels)
	}
}

// Ensure Engine implements the store contract.
var _ asyncstore.Store = (*Engine)(nil)
