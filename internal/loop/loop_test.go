package loop

import (
	"context"
	"errors"
	"io/fs"
	"sync"
	"testing"
	"time"

	"github.com/markusressel/hddfan/internal/configuration"
	"github.com/markusressel/hddfan/internal/controller"
	"github.com/markusressel/hddfan/internal/drives"
	"github.com/markusressel/hddfan/internal/fans"
	"github.com/markusressel/hddfan/internal/sensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDrive struct {
	mu sync.Mutex

	id              string
	spinDownTimeout time.Duration
	standbySafe     bool

	temp       float64
	tempErr    error
	state      drives.PowerState
	stateErr   error
	counters   drives.IoCounters
	reads      int
	spinDowns  int
	spinUpRead bool
}

func (d *fakeDrive) GetId() string {
	return d.id
}

func (d *fakeDrive) GetConfig() configuration.DriveConfig {
	return configuration.DriveConfig{
		ID:               d.id,
		Device:           "/dev/" + d.id,
		SpinDownTimeout:  d.spinDownTimeout,
		StandbySafeProbe: d.standbySafe,
	}
}

func (d *fakeDrive) ReadTemperature(ctx context.Context) (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reads++
	if d.state == drives.PowerStateStandby && !d.standbySafe {
		d.spinUpRead = true
	}
	return d.temp, d.tempErr
}

func (d *fakeDrive) ReadPowerState(ctx context.Context) (drives.PowerState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stateErr != nil {
		return drives.PowerStateUnknown, d.stateErr
	}
	return d.state, nil
}

func (d *fakeDrive) SpinDown(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.spinDowns++
	d.state = drives.PowerStateStandby
	return nil
}

func (d *fakeDrive) ReadIoCounters() (drives.IoCounters, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.counters, nil
}

func (d *fakeDrive) SupportsStandbyProbe() bool {
	return d.standbySafe
}

func (d *fakeDrive) setState(state drives.PowerState) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = state
}

func (d *fakeDrive) readCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reads
}

type fakeSensor struct {
	temp float64
	err  error
}

func (s *fakeSensor) GetId() string {
	return sensors.CpuSensorId
}

func (s *fakeSensor) GetValue(ctx context.Context) (float64, error) {
	return s.temp, s.err
}

type mockFan struct {
	ID          string
	Pwm         int
	Calls       int
	Writes      []int
	WriteErr    error
	PwmEnabled  fans.ControlMode
	EnableCalls []fans.ControlMode
}

func (fan *mockFan) GetId() string {
	return fan.ID
}

func (fan *mockFan) GetConfig() configuration.FanConfig {
	return configuration.FanConfig{ID: fan.ID}
}

func (fan *mockFan) GetRpm() (int, error) {
	return 0, errors.New("no rpm")
}

func (fan *mockFan) GetPwm() (int, error) {
	return fan.Pwm, nil
}

func (fan *mockFan) SetPwm(pwm int) error {
	fan.Calls++
	if fan.WriteErr != nil {
		return fan.WriteErr
	}
	fan.Pwm = pwm
	fan.Writes = append(fan.Writes, pwm)
	return nil
}

func (fan *mockFan) GetPwmEnabled() (fans.ControlMode, error) {
	return fan.PwmEnabled, nil
}

func (fan *mockFan) SetPwmEnabled(value fans.ControlMode) error {
	fan.EnableCalls = append(fan.EnableCalls, value)
	fan.PwmEnabled = value
	return nil
}

func (fan *mockFan) Supports(feature fans.FeatureFlag) bool {
	return feature == fans.FeatureControlMode
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) time.Time {
	c.now = c.now.Add(d)
	return c.now
}

func createOptions() Options {
	return Options{
		Interval:               20 * time.Second,
		QueryWorkers:           2,
		MaxConsecutiveFailures: 2,
		RetryAttempts:          1,
		RetryBackoff:           time.Millisecond,
		RestoreOnExit:          true,
		Temperature: configuration.TemperatureConfig{
			Low:        30,
			High:       50,
			Hysteresis: 2,
		},
	}
}

func createFanController(id string) (*controller.FanController, *mockFan) {
	fan := &mockFan{ID: id, PwmEnabled: fans.ControlModeAutomatic}
	c := controller.NewFanController(fan, controller.Config{
		StartValue: 255,
		StopValue:  0,
		MinDutyPct: 0,
		MaxDutyPct: 100,
	})
	return c, fan
}

func createLoop(opts Options, driveList []*fakeDrive, cpu sensors.Sensor, controllers ...*controller.FanController) (*ControlLoop, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	var list []drives.Drive
	for _, d := range driveList {
		list = append(list, d)
	}
	l := New(opts, list, cpu, controllers).WithClock(clock.Now)
	return l, clock
}

func findDriveStats(l *ControlLoop, id string) (result struct {
	Excluded      bool
	QueryFailures uint64
	SpinDowns     uint64
	State         drives.PowerState
}) {
	for _, s := range l.DriveStats() {
		if s.Id == id {
			result.Excluded = s.Excluded
			result.QueryFailures = s.QueryFailures
			result.SpinDowns = s.SpinDowns
			result.State = s.PowerState
		}
	}
	return result
}

func TestCycle_TemperatureToTarget(t *testing.T) {
	// GIVEN
	drive := &fakeDrive{id: "sda", temp: 40, state: drives.PowerStateActive}
	c, fan := createFanController("case")
	l, clock := createLoop(createOptions(), []*fakeDrive{drive}, nil, c)

	// WHEN
	result := l.Cycle(context.Background(), clock.Now())

	// THEN
	assert.True(t, result.HasTemperature)
	assert.Equal(t, 40.0, result.Temperature)
	assert.InDelta(t, 60.0, result.Targets["case"], 0.001)
	assert.Equal(t, []int{153}, fan.Writes)
	assert.False(t, result.Held)
}

func TestCycle_AggregatesMaximumIncludingCpu(t *testing.T) {
	// GIVEN
	sda := &fakeDrive{id: "sda", temp: 35, state: drives.PowerStateActive}
	sdb := &fakeDrive{id: "sdb", temp: 42, state: drives.PowerStateActive}
	cpu := &fakeSensor{temp: 45}
	c, fan := createFanController("case")
	l, clock := createLoop(createOptions(), []*fakeDrive{sda, sdb}, cpu, c)

	// WHEN
	result := l.Cycle(context.Background(), clock.Now())

	// THEN
	assert.Equal(t, 45.0, result.Temperature)
	assert.Equal(t, map[string]float64{"sda": 35, "sdb": 42, "cpu": 45}, result.Readings)
	assert.InDelta(t, 75.0, result.Targets["case"], 0.001)
	assert.Equal(t, []int{191}, fan.Writes)
}

func TestCycle_CpuFailureDoesNotAbortCycle(t *testing.T) {
	// GIVEN
	sda := &fakeDrive{id: "sda", temp: 40, state: drives.PowerStateActive}
	cpu := &fakeSensor{err: errors.New("read error")}
	c, _ := createFanController("case")
	l, clock := createLoop(createOptions(), []*fakeDrive{sda}, cpu, c)

	// WHEN
	result := l.Cycle(context.Background(), clock.Now())

	// THEN
	assert.Equal(t, 40.0, result.Temperature)
	assert.NotContains(t, result.Readings, sensors.CpuSensorId)
}

func TestCycle_StandbyDriveIsNotQueried(t *testing.T) {
	// GIVEN
	sda := &fakeDrive{id: "sda", temp: 40, state: drives.PowerStateActive}
	sdb := &fakeDrive{id: "sdb", temp: 48, state: drives.PowerStateStandby}
	c, _ := createFanController("case")
	l, clock := createLoop(createOptions(), []*fakeDrive{sda, sdb}, nil, c)

	// WHEN
	result := l.Cycle(context.Background(), clock.Now())

	// THEN
	assert.Equal(t, 0, sdb.readCount())
	assert.False(t, sdb.spinUpRead)
	assert.Equal(t, []string{"sdb"}, result.Skipped)
	assert.Equal(t, map[string]float64{"sda": 40}, result.Readings)
	assert.Equal(t, 40.0, result.Temperature)
}

func TestCycle_StandbySafeDriveIsQueried(t *testing.T) {
	// GIVEN
	sda := &fakeDrive{id: "sda", temp: 33, state: drives.PowerStateStandby, standbySafe: true}
	c, _ := createFanController("case")
	l, clock := createLoop(createOptions(), []*fakeDrive{sda}, nil, c)

	// WHEN
	result := l.Cycle(context.Background(), clock.Now())

	// THEN
	assert.Equal(t, 1, sda.readCount())
	assert.Equal(t, 33.0, result.Temperature)
	assert.Equal(t, drives.PowerStateStandby, findDriveStats(l, "sda").State)
}

func TestCycle_AllDrivesInStandby_HoldsPreviousTarget(t *testing.T) {
	// GIVEN
	sda := &fakeDrive{id: "sda", temp: 39, state: drives.PowerStateActive}
	sdb := &fakeDrive{id: "sdb", temp: 39, state: drives.PowerStateActive}
	c, fan := createFanController("case")
	l, clock := createLoop(createOptions(), []*fakeDrive{sda, sdb}, nil, c)

	first := l.Cycle(context.Background(), clock.Now())
	require.InDelta(t, 45.0, first.Targets["case"], 0.001)
	require.Equal(t, []int{115}, fan.Writes)

	sda.setState(drives.PowerStateStandby)
	sdb.setState(drives.PowerStateStandby)

	// WHEN
	result := l.Cycle(context.Background(), clock.Advance(20*time.Second))

	// THEN
	assert.True(t, result.Held)
	assert.False(t, result.HasTemperature)
	assert.InDelta(t, 45.0, result.Targets["case"], 0.001)
	assert.Equal(t, []int{115}, fan.Writes)
	assert.Equal(t, 1, sda.readCount())
	assert.Equal(t, 1, sdb.readCount())
	assert.Equal(t, uint64(1), l.LoopStats().HeldCycles)
}

func TestCycle_NoReadingsBeforeFirstTarget_WritesNothing(t *testing.T) {
	// GIVEN
	sda := &fakeDrive{id: "sda", temp: 39, state: drives.PowerStateStandby}
	c, fan := createFanController("case")
	l, clock := createLoop(createOptions(), []*fakeDrive{sda}, nil, c)

	// WHEN
	result := l.Cycle(context.Background(), clock.Now())

	// THEN
	assert.True(t, result.Held)
	assert.Empty(t, result.Targets)
	assert.Empty(t, fan.Writes)
}

func TestCycle_SpinDownIsIssuedOncePerIdlePeriod(t *testing.T) {
	// GIVEN
	sda := &fakeDrive{id: "sda", temp: 38, state: drives.PowerStateActive, spinDownTimeout: 10 * time.Minute}
	c, _ := createFanController("case")
	l, clock := createLoop(createOptions(), []*fakeDrive{sda}, nil, c)

	// WHEN
	first := l.Cycle(context.Background(), clock.Now())
	second := l.Cycle(context.Background(), clock.Advance(10*time.Minute))
	third := l.Cycle(context.Background(), clock.Advance(10*time.Minute))

	// THEN
	assert.Empty(t, first.SpinDowns)
	assert.Equal(t, []string{"sda"}, second.SpinDowns)
	assert.Empty(t, third.SpinDowns)
	assert.Equal(t, 1, sda.spinDowns)
	assert.Equal(t, 2, sda.readCount())
	assert.False(t, sda.spinUpRead)
	assert.Equal(t, uint64(1), findDriveStats(l, "sda").SpinDowns)
}

func TestCycle_WakeUpRestartsIdleTimer(t *testing.T) {
	// GIVEN
	sda := &fakeDrive{id: "sda", temp: 38, state: drives.PowerStateActive, spinDownTimeout: 10 * time.Minute}
	c, _ := createFanController("case")
	l, clock := createLoop(createOptions(), []*fakeDrive{sda}, nil, c)

	l.Cycle(context.Background(), clock.Now())
	l.Cycle(context.Background(), clock.Advance(10*time.Minute))
	// the drive confirms its standby state
	l.Cycle(context.Background(), clock.Advance(time.Minute))
	require.Equal(t, 1, sda.spinDowns)

	// WHEN
	sda.setState(drives.PowerStateActive)
	woken := l.Cycle(context.Background(), clock.Advance(time.Minute))
	early := l.Cycle(context.Background(), clock.Advance(9*time.Minute))
	due := l.Cycle(context.Background(), clock.Advance(time.Minute))

	// THEN
	assert.Empty(t, woken.SpinDowns)
	assert.Empty(t, early.SpinDowns)
	assert.Equal(t, []string{"sda"}, due.SpinDowns)
	assert.Equal(t, 2, sda.spinDowns)
}

func TestCycle_IoActivityPostponesSpinDown(t *testing.T) {
	// GIVEN
	sda := &fakeDrive{id: "sda", temp: 38, state: drives.PowerStateActive, spinDownTimeout: 10 * time.Minute}
	c, _ := createFanController("case")
	l, clock := createLoop(createOptions(), []*fakeDrive{sda}, nil, c)
	l.Cycle(context.Background(), clock.Now())

	// WHEN
	sda.mu.Lock()
	sda.counters = drives.IoCounters{Reads: 10, Writes: 2}
	sda.mu.Unlock()
	active := l.Cycle(context.Background(), clock.Advance(5*time.Minute))
	idle := l.Cycle(context.Background(), clock.Advance(5*time.Minute))

	// THEN
	assert.Empty(t, active.SpinDowns)
	assert.Empty(t, idle.SpinDowns)
	assert.Equal(t, 0, sda.spinDowns)
}

func TestCycle_SpinUpRequiredMarksDriveAsStandby(t *testing.T) {
	// GIVEN
	opts := createOptions()
	opts.RetryAttempts = 3
	sda := &fakeDrive{id: "sda", tempErr: drives.ErrSpinUpRequired, stateErr: drives.ErrUnsupported}
	sdb := &fakeDrive{id: "sdb", temp: 36, state: drives.PowerStateActive}
	c, _ := createFanController("case")
	l, clock := createLoop(opts, []*fakeDrive{sda, sdb}, nil, c)

	// WHEN
	first := l.Cycle(context.Background(), clock.Now())
	second := l.Cycle(context.Background(), clock.Advance(20*time.Second))

	// THEN
	assert.Equal(t, 1, sda.readCount())
	assert.Contains(t, first.Skipped, "sda")
	assert.Contains(t, second.Skipped, "sda")
	stats := findDriveStats(l, "sda")
	assert.Equal(t, drives.PowerStateStandby, stats.State)
	assert.Equal(t, uint64(0), stats.QueryFailures)
	assert.False(t, stats.Excluded)
}

func TestCycle_PersistentDriveErrorExcludesDrive(t *testing.T) {
	// GIVEN
	opts := createOptions()
	opts.RetryAttempts = 3
	sda := &fakeDrive{id: "sda", tempErr: fs.ErrNotExist, state: drives.PowerStateActive}
	sdb := &fakeDrive{id: "sdb", temp: 40, state: drives.PowerStateActive}
	c, _ := createFanController("case")
	l, clock := createLoop(opts, []*fakeDrive{sda, sdb}, nil, c)

	// WHEN
	first := l.Cycle(context.Background(), clock.Now())
	second := l.Cycle(context.Background(), clock.Advance(20*time.Second))

	// THEN
	assert.Equal(t, 1, sda.readCount())
	assert.Equal(t, 40.0, first.Temperature)
	assert.Equal(t, 40.0, second.Temperature)
	stats := findDriveStats(l, "sda")
	assert.True(t, stats.Excluded)
	assert.Equal(t, uint64(1), stats.QueryFailures)
}

func TestCycle_RepeatedDriveErrorsExcludeDrive(t *testing.T) {
	// GIVEN
	sda := &fakeDrive{id: "sda", tempErr: errors.New("i/o error"), state: drives.PowerStateActive}
	sdb := &fakeDrive{id: "sdb", temp: 40, state: drives.PowerStateActive}
	c, _ := createFanController("case")
	l, clock := createLoop(createOptions(), []*fakeDrive{sda, sdb}, nil, c)

	// WHEN
	for i := 0; i < 2; i++ {
		l.Cycle(context.Background(), clock.Advance(20*time.Second))
	}
	assert.False(t, findDriveStats(l, "sda").Excluded)
	for i := 0; i < 3; i++ {
		l.Cycle(context.Background(), clock.Advance(20*time.Second))
	}

	// THEN
	assert.Equal(t, 3, sda.readCount())
	stats := findDriveStats(l, "sda")
	assert.True(t, stats.Excluded)
	assert.Equal(t, uint64(3), stats.QueryFailures)
}

func TestCycle_FanWriteFailureExcludesFan(t *testing.T) {
	// GIVEN
	sda := &fakeDrive{id: "sda", temp: 40, state: drives.PowerStateActive}
	broken, brokenFan := createFanController("broken")
	brokenFan.WriteErr = fs.ErrPermission
	healthy, healthyFan := createFanController("healthy")
	l, clock := createLoop(createOptions(), []*fakeDrive{sda}, nil, broken, healthy)

	// WHEN
	first := l.Cycle(context.Background(), clock.Now())
	callsAfterExclusion := brokenFan.Calls
	second := l.Cycle(context.Background(), clock.Advance(20*time.Second))

	// THEN
	assert.NotContains(t, first.Targets, "broken")
	assert.NotContains(t, second.Targets, "broken")
	assert.Equal(t, callsAfterExclusion, brokenFan.Calls)
	assert.Equal(t, []int{153}, healthyFan.Writes)

	var brokenStats, healthyStats bool
	for _, s := range l.FanStats() {
		switch s.Id {
		case "broken":
			brokenStats = true
			assert.True(t, s.Excluded)
			assert.Equal(t, uint64(1), s.WriteFailures)
			assert.False(t, s.HasPwm)
		case "healthy":
			healthyStats = true
			assert.False(t, s.Excluded)
			assert.Equal(t, 153, s.Pwm)
		}
	}
	assert.True(t, brokenStats)
	assert.True(t, healthyStats)
}

func TestCycle_Stats(t *testing.T) {
	// GIVEN
	sda := &fakeDrive{id: "sda", temp: 40, state: drives.PowerStateActive}
	c, _ := createFanController("case")
	l, clock := createLoop(createOptions(), []*fakeDrive{sda}, nil, c)

	// WHEN
	l.Cycle(context.Background(), clock.Now())
	l.Cycle(context.Background(), clock.Advance(20*time.Second))

	// THEN
	stats := l.LoopStats()
	assert.Equal(t, uint64(2), stats.Cycles)
	assert.Equal(t, uint64(0), stats.HeldCycles)
	assert.True(t, stats.HasTemperature)
	assert.Equal(t, 40.0, stats.Temperature)

	driveStats := l.DriveStats()
	require.Len(t, driveStats, 1)
	assert.True(t, driveStats[0].HasTemperature)
	assert.Equal(t, drives.PowerStateActive, driveStats[0].PowerState)
}

func TestRun_WaitsForIntervalAndRestoresOnShutdown(t *testing.T) {
	// GIVEN
	opts := createOptions()
	opts.Interval = 20 * time.Millisecond
	sda := &fakeDrive{id: "sda", temp: 40, state: drives.PowerStateActive}
	c, fan := createFanController("case")
	l := New(opts, []drives.Drive{sda}, nil, []*controller.FanController{c})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var starts []time.Time
	l.OnCycle(func(result CycleResult) {
		starts = append(starts, result.Start)
		if len(starts) == 3 {
			cancel()
		}
	})

	// WHEN
	err := l.Run(ctx)
	l.Shutdown()

	// THEN
	assert.NoError(t, err)
	require.Len(t, starts, 3)
	for i := 1; i < len(starts); i++ {
		assert.GreaterOrEqual(t, starts[i].Sub(starts[i-1]), opts.Interval)
	}
	require.NotEmpty(t, fan.EnableCalls)
	assert.Equal(t, fans.ControlModePWM, fan.EnableCalls[0])
	assert.Equal(t, fans.ControlModeAutomatic, fan.PwmEnabled)
}

func TestShutdown_WithoutRestore_KeepsFanUntouched(t *testing.T) {
	// GIVEN
	opts := createOptions()
	opts.RestoreOnExit = false
	c, fan := createFanController("case")
	l := New(opts, nil, nil, []*controller.FanController{c})

	// WHEN
	l.Shutdown()

	// THEN
	assert.Empty(t, fan.EnableCalls)
	assert.Empty(t, fan.Writes)
}
