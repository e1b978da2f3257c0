package loop

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/markusressel/hddfan/internal/configuration"
	"github.com/markusressel/hddfan/internal/controller"
	"github.com/markusressel/hddfan/internal/drives"
	"github.com/markusressel/hddfan/internal/sensors"
	"github.com/markusressel/hddfan/internal/ui"
	"github.com/markusressel/hddfan/internal/util"
	cmap "github.com/orcaman/concurrent-map/v2"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	Interval               time.Duration
	QueryWorkers           int
	MaxConsecutiveFailures int
	RetryAttempts          int
	RetryBackoff           time.Duration
	RestoreOnExit          bool
	Temperature            configuration.TemperatureConfig
}

func NewOptions(config configuration.Configuration) Options {
	return Options{
		Interval:               config.Interval,
		QueryWorkers:           config.QueryWorkers,
		MaxConsecutiveFailures: config.MaxConsecutiveFailures,
		RetryAttempts:          config.Retry.Attempts,
		RetryBackoff:           config.Retry.Backoff,
		RestoreOnExit:          config.RestoreOnExit,
		Temperature:            config.Temperature,
	}
}

type driveEntry struct {
	drive    drives.Drive
	tracker  *drives.Tracker
	failures *util.FailureCounter

	temperature    float64
	hasTemperature bool
	queryFailures  uint64
	spinDowns      uint64
}

type fanEntry struct {
	controller    *controller.FanController
	failures      *util.FailureCounter
	writeFailures uint64
}

type cpuEntry struct {
	sensor   sensors.Sensor
	failures *util.FailureCounter
}

// CycleResult describes what happened during a single control cycle
type CycleResult struct {
	Start    time.Time
	Duration time.Duration

	// Readings maps drive ids (and the cpu sensor id) to the temperature read this cycle
	Readings map[string]float64
	// Skipped contains the drives that were not queried because they are in standby
	Skipped []string

	Temperature    float64
	HasTemperature bool
	// Held is true if no temperature could be read and the previous targets were kept
	Held bool

	// Targets maps fan ids to their current target duty cycle
	Targets   map[string]float64
	SpinDowns []string
}

// ControlLoop periodically reads all temperatures, drives the fans accordingly and
// spins down idle drives.
type ControlLoop struct {
	opts   Options
	drives []*driveEntry
	cpu    *cpuEntry
	fans   []*fanEntry
	now    func() time.Time

	onCycle func(result CycleResult)

	temperature    float64
	hasTemperature bool
	cycles         uint64
	heldCycles     uint64
	lastDuration   time.Duration
}

func New(opts Options, driveList []drives.Drive, cpu sensors.Sensor, controllers []*controller.FanController) *ControlLoop {
	l := &ControlLoop{
		opts: opts,
		now:  time.Now,
	}

	start := l.now()
	for _, drive := range driveList {
		config := drive.GetConfig()
		tracker := drives.NewTracker(drive.GetId(), config.SpinDownTimeout, start).
			WithStandbySafeProbe(drive.SupportsStandbyProbe())
		l.drives = append(l.drives, &driveEntry{
			drive:    drive,
			tracker:  tracker,
			failures: util.NewFailureCounter(opts.MaxConsecutiveFailures),
		})
	}
	if cpu != nil {
		l.cpu = &cpuEntry{
			sensor:   cpu,
			failures: util.NewFailureCounter(opts.MaxConsecutiveFailures),
		}
	}
	for _, c := range controllers {
		l.fans = append(l.fans, &fanEntry{
			controller: c,
			failures:   util.NewFailureCounter(opts.MaxConsecutiveFailures),
		})
	}
	return l
}

// WithClock replaces the time source, it is used for cycle timing and drive idle tracking
func (l *ControlLoop) WithClock(now func() time.Time) *ControlLoop {
	l.now = now
	for _, entry := range l.drives {
		entry.tracker = drives.NewTracker(entry.drive.GetId(), entry.drive.GetConfig().SpinDownTimeout, now()).
			WithStandbySafeProbe(entry.drive.SupportsStandbyProbe())
	}
	return l
}

// OnCycle registers a function that is called after every completed cycle
func (l *ControlLoop) OnCycle(f func(result CycleResult)) *ControlLoop {
	l.onCycle = f
	return l
}

// Run executes control cycles until ctx is cancelled.
// The interval is measured between the start of two cycles.
func (l *ControlLoop) Run(ctx context.Context) error {
	for _, entry := range l.fans {
		entry.controller.TakeControl()
	}

	ui.Info("Starting control loop (interval %s, %d drives, %d fans)", l.opts.Interval, len(l.drives), len(l.fans))
	for {
		start := l.now()
		result := l.Cycle(ctx, start)
		if ctx.Err() != nil {
			return nil
		}
		if l.onCycle != nil {
			l.onCycle(result)
		}

		wait := start.Add(l.opts.Interval).Sub(l.now())
		if wait < 0 {
			ui.Debug("Control cycle took %s, longer than the interval of %s", result.Duration, l.opts.Interval)
			wait = 0
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// Shutdown hands all fans back to a safe state, if configured to do so.
// This is best effort, failures are only logged.
func (l *ControlLoop) Shutdown() {
	if !l.opts.RestoreOnExit {
		return
	}
	for _, entry := range l.fans {
		if err := entry.controller.RestoreSafeState(); err != nil {
			ui.Warning("Unable to restore fan %s, make sure it is running! %v", entry.controller.GetId(), err)
		}
	}
}

// Cycle runs a single control cycle
func (l *ControlLoop) Cycle(ctx context.Context, now time.Time) CycleResult {
	result := CycleResult{
		Start:    now,
		Readings: map[string]float64{},
		Targets:  map[string]float64{},
	}

	// 1. decide which drives can be queried without waking them up
	var queried []*driveEntry
	for _, entry := range l.drives {
		if entry.failures.IsPersistent() {
			continue
		}
		l.updateDriveState(ctx, entry, now)
		if entry.tracker.ShouldQuery() {
			queried = append(queried, entry)
		} else {
			ui.Debug("Drive %s is in standby, not querying its temperature", entry.drive.GetId())
			result.Skipped = append(result.Skipped, entry.drive.GetId())
		}
	}

	// 2. read temperatures, joined before aggregation
	temperatures, failures := l.readTemperatures(ctx, queried)
	for _, entry := range queried {
		id := entry.drive.GetId()
		if temp, ok := temperatures.Get(id); ok {
			entry.failures.Success()
			entry.temperature = temp
			entry.hasTemperature = true
			if entry.tracker.State() == drives.PowerStateUnknown {
				entry.tracker.RecordQueryResult(now, drives.PowerStateActive)
			}
			result.Readings[id] = temp
			continue
		}
		entry.hasTemperature = false
		if ctx.Err() != nil {
			continue
		}
		err, _ := failures.Get(id)
		if errors.Is(err, drives.ErrSpinUpRequired) {
			entry.tracker.RecordQueryResult(now, drives.PowerStateStandby)
			result.Skipped = append(result.Skipped, id)
			continue
		}
		l.driveFailed(entry, err)
	}

	if l.cpu != nil && !l.cpu.failures.IsPersistent() {
		temp, err := l.cpu.sensor.GetValue(ctx)
		if err != nil {
			if l.cpu.failures.Failure(err) {
				ui.ErrorAndNotify("CPU Sensor Failed", "CPU temperature sensor is excluded from now on: %v", err)
			} else {
				ui.Warning("Unable to read CPU temperature: %v", err)
			}
		} else {
			l.cpu.failures.Success()
			result.Readings[l.cpu.sensor.GetId()] = temp
		}
	}

	// 3. aggregate
	if len(result.Readings) > 0 {
		first := true
		for _, temp := range result.Readings {
			if first || temp > result.Temperature {
				result.Temperature = temp
				first = false
			}
		}
		result.HasTemperature = true
		l.temperature = result.Temperature
		l.hasTemperature = true
	} else {
		result.Held = true
		l.heldCycles++
		ui.Debug("No temperature readings this cycle, holding previous fan targets")
	}

	// 4. + 5. compute and apply fan targets
	for _, entry := range l.fans {
		id := entry.controller.GetId()
		if entry.failures.IsPersistent() {
			continue
		}
		if result.Held {
			if _, written := entry.controller.LastWritten(); written {
				result.Targets[id] = entry.controller.LastPct()
			}
			continue
		}

		target := entry.controller.ComputeTarget(result.Temperature, l.opts.Temperature)
		if err := entry.controller.Apply(target); err != nil {
			l.fanFailed(entry, err)
			continue
		}
		entry.failures.Success()
		result.Targets[id] = entry.controller.LastPct()
	}
	if result.HasTemperature {
		ui.Debug("Aggregated temperature %.1f°C, fan targets: %v", result.Temperature, result.Targets)
	}

	// 6. spin down idle drives
	for _, entry := range l.drives {
		if entry.failures.IsPersistent() || !entry.tracker.DueForSpinDown(now) {
			continue
		}
		id := entry.drive.GetId()
		if err := entry.drive.SpinDown(ctx); err != nil {
			ui.Warning("Unable to spin down drive %s: %v", id, err)
			continue
		}
		entry.tracker.MarkSpinDownIssued()
		entry.spinDowns++
		entry.hasTemperature = false
		result.SpinDowns = append(result.SpinDowns, id)
		ui.Info("Drive %s was idle since %s, spinning down", id, entry.tracker.LastActivity().Format(time.DateTime))
	}

	result.Duration = l.now().Sub(now)
	l.lastDuration = result.Duration
	l.cycles++
	return result
}

func (l *ControlLoop) updateDriveState(ctx context.Context, entry *driveEntry, now time.Time) {
	drive := entry.drive

	if counters, err := drive.ReadIoCounters(); err == nil {
		if entry.tracker.ObserveIoCounters(now, counters) {
			ui.Debug("Drive %s: I/O activity detected", drive.GetId())
		}
	} else {
		ui.Debug("Drive %s: cannot read I/O counters: %v", drive.GetId(), err)
	}

	previous := entry.tracker.State()
	state, err := drive.ReadPowerState(ctx)
	if err != nil {
		if !errors.Is(err, drives.ErrUnsupported) {
			ui.Debug("Drive %s: cannot read power state: %v", drive.GetId(), err)
		}
		return
	}
	entry.tracker.RecordQueryResult(now, state)
	if current := entry.tracker.State(); current != previous && previous != drives.PowerStateUnknown {
		ui.Info("Drive %s: %s -> %s", drive.GetId(), previous, current)
	}
}

// readTemperatures queries all given drives with a bounded number of parallel workers
func (l *ControlLoop) readTemperatures(ctx context.Context, entries []*driveEntry) (cmap.ConcurrentMap[string, float64], cmap.ConcurrentMap[string, error]) {
	temperatures := cmap.New[float64]()
	failures := cmap.New[error]()

	var g errgroup.Group
	g.SetLimit(max(l.opts.QueryWorkers, 1))
	for _, entry := range entries {
		drive := entry.drive
		g.Go(func() error {
			temp, err := util.RetryWithBackoff(ctx, l.opts.RetryAttempts, l.opts.RetryBackoff, func() (float64, error) {
				temp, err := drive.ReadTemperature(ctx)
				if errors.Is(err, drives.ErrSpinUpRequired) {
					return 0, backoff.Permanent(err)
				}
				return temp, err
			})
			if err != nil {
				failures.Set(drive.GetId(), err)
				return nil
			}
			temperatures.Set(drive.GetId(), temp)
			return nil
		})
	}
	_ = g.Wait()

	return temperatures, failures
}

func (l *ControlLoop) driveFailed(entry *driveEntry, err error) {
	entry.queryFailures++
	id := entry.drive.GetId()
	if entry.failures.Failure(err) {
		ui.ErrorAndNotify("Drive Failed", "Drive %s is excluded from temperature control from now on: %v", id, err)
		return
	}
	ui.Warning("Unable to read temperature of drive %s (%d consecutive failures): %v", id, entry.failures.Consecutive(), err)
}

func (l *ControlLoop) fanFailed(entry *fanEntry, err error) {
	entry.writeFailures++
	id := entry.controller.GetId()
	if !entry.failures.Failure(err) {
		ui.Warning("Unable to set fan %s (%d consecutive failures): %v", id, entry.failures.Consecutive(), err)
		return
	}

	ui.ErrorAndNotify("Fan Failed", "Fan %s is excluded from control from now on: %v", id, err)
	if restoreErr := entry.controller.RestoreSafeState(); restoreErr != nil {
		ui.Warning("Unable to restore fan %s, make sure it is running! %v", id, restoreErr)
	}
}
