// Package fusion coordinates attitude estimation across the IMU slots of
// a session and caches the results.
//
// Selecting a slot computes its fusion result synchronously; the
// remaining slots are then precomputed speculatively in the background so
// cross-sensor angle analysis does not block. Two counters guard the
// cache against stale writes: a session generation bumped on Reset, and a
// per-slot generation bumped when a slot's CSV is replaced. A compute
// that started before either bump discards its result instead of caching
// it.
package fusion

import (
	"fmt"
	"sort"
	"sync"

	"github.com/banshee-data/motion.report/internal/ahrs"
	"github.com/banshee-data/motion.report/internal/dsp"
	"github.com/banshee-data/motion.report/internal/imucsv"
	"github.com/banshee-data/motion.report/internal/monitoring"
	"github.com/banshee-data/motion.report/internal/timebase"
	"github.com/banshee-data/motion.report/internal/timeutil"
)

// Source yields the parsed CSV tables backing each IMU slot of the active
// session. Implemented by the session registry.
type Source interface {
	// StreamCount returns the number of IMU slots in the session.
	StreamCount() int
	// Stream returns the table for one slot. The orchestrator never
	// mutates the returned table; normalization runs on a private clone.
	Stream(slot int) (*imucsv.Table, error)
}

// Orchestrator owns the per-slot fusion cache. Safe for concurrent use.
type Orchestrator struct {
	mu         sync.Mutex
	cache      map[int]*ahrs.FusionResult // nil entry records a failed background compute
	generation uint64
	slotGens   map[int]uint64 // bumped by InvalidateSlot, checked before caching

	opts       ahrs.Options
	clock      timeutil.Clock
	precompute bool
	wg         sync.WaitGroup
}

// NewOrchestrator creates an orchestrator with the given estimator
// options. A nil clock defaults to the real clock.
func NewOrchestrator(opts ahrs.Options, precompute bool, clock timeutil.Clock) *Orchestrator {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Orchestrator{
		cache:      make(map[int]*ahrs.FusionResult),
		slotGens:   make(map[int]uint64),
		opts:       opts,
		clock:      clock,
		precompute: precompute,
	}
}

// Select returns the fusion result for the given slot, computing it
// synchronously if it is not cached, then kicks off background
// precomputation of every other uncached slot.
func (o *Orchestrator) Select(src Source, slot int) (*ahrs.FusionResult, error) {
	o.mu.Lock()
	if cached, ok := o.cache[slot]; ok && cached != nil {
		gen := o.generation
		o.mu.Unlock()
		o.precomputeOthers(src, slot, gen)
		return cached, nil
	}
	gen := o.generation
	slotGen := o.slotGens[slot]
	o.mu.Unlock()

	table, err := src.Stream(slot)
	if err != nil {
		return nil, fmt.Errorf("slot %d: %w", slot, err)
	}

	// The source's table is shared with concurrent requests; time
	// normalization must run on a private copy.
	result, err := processTable(table.Clone(), o.opts)
	if err != nil {
		return nil, fmt.Errorf("slot %d: %w", slot, err)
	}

	o.mu.Lock()
	if o.generation == gen && o.slotGens[slot] == slotGen {
		o.cache[slot] = result
	}
	o.mu.Unlock()

	o.precomputeOthers(src, slot, gen)
	return result, nil
}

// precomputeOthers speculatively computes every uncached slot except the
// active one. Failures are logged and recorded as null entries; they are
// retried only when the user selects that slot directly.
func (o *Orchestrator) precomputeOthers(src Source, activeSlot int, gen uint64) {
	if !o.precompute {
		return
	}
	for slot := 0; slot < src.StreamCount(); slot++ {
		if slot == activeSlot {
			continue
		}
		o.mu.Lock()
		_, cached := o.cache[slot]
		slotGen := o.slotGens[slot]
		o.mu.Unlock()
		if cached {
			continue
		}

		table, err := src.Stream(slot)
		if err != nil {
			monitoring.Logf("[Fusion] background slot %d unavailable: %v", slot, err)
			continue
		}
		// The worker gets its own rows so the shared table is never touched
		// off the request path.
		clone := table.Clone()

		o.wg.Add(1)
		go func(slot int, slotGen uint64) {
			defer o.wg.Done()
			start := o.clock.Now()
			result, err := processTable(clone, o.opts)
			if err != nil {
				monitoring.Logf("[Fusion] background compute for slot %d failed: %v", slot, err)
				result = nil
			}

			o.mu.Lock()
			defer o.mu.Unlock()
			if o.generation != gen || o.slotGens[slot] != slotGen {
				// Session switched or the slot's CSV was replaced
				// mid-compute; discard the stale result.
				return
			}
			if _, ok := o.cache[slot]; ok {
				return
			}
			o.cache[slot] = result
			if result != nil {
				monitoring.Logf("[Fusion] precomputed slot %d (%d samples) in %v",
					slot, result.Len(), o.clock.Since(start))
			}
		}(slot, slotGen)
	}
}

// Cached returns the cached result for a slot, if any. A (nil, true)
// return means a background compute failed for that slot.
func (o *Orchestrator) Cached(slot int) (*ahrs.FusionResult, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	r, ok := o.cache[slot]
	return r, ok
}

// InvalidateSlot drops the cache entry for a slot whose CSV was replaced
// and bumps its generation so any compute already in flight for the old
// CSV cannot cache its result.
func (o *Orchestrator) InvalidateSlot(slot int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.cache, slot)
	o.slotGens[slot]++
}

// Reset clears the whole cache and bumps the generation so any in-flight
// background computes are discarded. Called on session switch.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.generation++
	o.cache = make(map[int]*ahrs.FusionResult)
	o.slotGens = make(map[int]uint64)
}

// Wait blocks until all in-flight background computes finish. Test hook.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// processTable runs the full per-stream pipeline: locate and normalize
// the time column, estimate the sample rate, then run the attitude
// filter.
func processTable(table *imucsv.Table, opts ahrs.Options) (*ahrs.FusionResult, error) {
	times, rate, err := PrepareTimes(table)
	if err != nil {
		return nil, err
	}
	return ahrs.Process(table, times, rate, opts)
}

// PrepareTimes normalizes the table's time column in place to zero-based
// seconds and returns the normalized series plus the estimated sample
// rate. Tables without a recognizable time column get synthetic 100 Hz
// timestamps.
func PrepareTimes(table *imucsv.Table) ([]float64, float64, error) {
	idx := table.TimeColumn()
	if idx < 0 {
		monitoring.Logf("[Fusion] no time column found, assuming %v Hz", dsp.DefaultSampleRateHz)
		times := make([]float64, len(table.Rows))
		for i := range times {
			times[i] = float64(i) / dsp.DefaultSampleRateHz
		}
		return times, dsp.DefaultSampleRateHz, nil
	}

	times := table.NumericColumn(idx)
	norm := timebase.Normalize(times)
	table.SetColumn(idx, times)

	rate := dsp.EstimateSampleRateHz(times)
	if rate <= 0 {
		rate = dsp.DefaultSampleRateHz
	}
	monitoring.Logf("[Fusion] time column %q normalized (scale=%g, span=%.2fs, rate=%.1fHz)",
		table.Headers[idx], norm.Scale, norm.MaxT, rate)
	return times, rate, nil
}

// NearestIndex returns the index of the time in the ascending series
// closest to t, or -1 for an empty series. Binary search.
func NearestIndex(times []float64, t float64) int {
	if len(times) == 0 {
		return -1
	}
	i := sort.SearchFloat64s(times, t)
	if i == 0 {
		return 0
	}
	if i == len(times) {
		return len(times) - 1
	}
	if t-times[i-1] <= times[i]-t {
		return i - 1
	}
	return i
}

// OrientationAt returns the orientation sample nearest to time t.
func OrientationAt(r *ahrs.FusionResult, t float64) (ahrs.OrientationSample, bool) {
	i := NearestIndex(r.Times, t)
	if i < 0 {
		return ahrs.OrientationSample{}, false
	}
	return r.Orientations[i], true
}
