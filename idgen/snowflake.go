package idgen

import (
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/arloliu/splitdb/internal/logging"
	"github.com/arloliu/splitdb/internal/metrics"
	"github.com/arloliu/splitdb/types"
)

// DefaultEpoch is the reference instant IDs count milliseconds from.
var DefaultEpoch = time.UnixMilli(1582136400000).UTC()

// DefaultDriftTolerance is the largest clock regression the generator waits out.
const DefaultDriftTolerance = 5 * time.Millisecond

// minTimestampBits keeps at least ~24 days of timestamp range.
const minTimestampBits = 31

// Layout describes how the 63 usable bits of an ID are split.
//
// The timestamp receives whatever the other three fields leave over.
type Layout struct {
	DatacenterBits uint
	WorkerBits     uint
	SequenceBits   uint
}

// DefaultLayout is the classic 41/5/5/12 split: about 69 years of
// millisecond timestamps and 4096 IDs per millisecond per worker.
var DefaultLayout = Layout{DatacenterBits: 5, WorkerBits: 5, SequenceBits: 12}

// TimestampBits returns the number of bits left for the timestamp.
func (l Layout) TimestampBits() uint {
	used := l.DatacenterBits + l.WorkerBits + l.SequenceBits
	if used >= 63 {
		return 0
	}

	return 63 - used
}

// MaxDatacenterID returns the largest datacenter id the layout can hold.
func (l Layout) MaxDatacenterID() int64 { return mask(l.DatacenterBits) }

// MaxWorkerID returns the largest worker id the layout can hold.
func (l Layout) MaxWorkerID() int64 { return mask(l.WorkerBits) }

// MaxSequence returns the largest per-millisecond sequence number.
func (l Layout) MaxSequence() int64 { return mask(l.SequenceBits) }

// Validate checks that every field has room and the timestamp is usable.
func (l Layout) Validate() error {
	if l.DatacenterBits == 0 || l.WorkerBits == 0 || l.SequenceBits == 0 {
		return types.NewConfigurationError("layout", "datacenter, worker and sequence bits must be positive")
	}
	if l.TimestampBits() < minTimestampBits {
		return types.NewConfigurationError("layout",
			"timestamp needs at least "+strconv.Itoa(minTimestampBits)+" bits")
	}

	return nil
}

func mask(bits uint) int64 {
	return -1 ^ (-1 << bits)
}

// Option configures a Generator.
type Option func(*Generator)

// WithEpoch sets the reference instant timestamps are measured from.
//
// Default: DefaultEpoch (2020-02-19T18:20:00Z)
//
// Parameters:
//   - epoch: The custom epoch; must not be in the future
//
// Returns:
//   - Option: Configuration option
func WithEpoch(epoch time.Time) Option {
	return func(g *Generator) {
		g.epoch = epoch.UnixMilli()
	}
}

// WithClock sets the time source.
//
// Parameters:
//   - clock: The clock to read milliseconds from
//
// Returns:
//   - Option: Configuration option
func WithClock(clock Clock) Option {
	return func(g *Generator) {
		g.clock = clock
	}
}

// WithDriftTolerance sets the largest backwards clock step that is waited
// out instead of failing immediately.
//
// Default: 5ms
//
// Parameters:
//   - d: Tolerance; zero fails on any regression
//
// Returns:
//   - Option: Configuration option
func WithDriftTolerance(d time.Duration) Option {
	return func(g *Generator) {
		g.tolerance = d
	}
}

// WithLayout overrides the bit layout.
//
// Parameters:
//   - layout: The layout; validated by New
//
// Returns:
//   - Option: Configuration option
func WithLayout(layout Layout) Option {
	return func(g *Generator) {
		g.layout = layout
	}
}

// WithLogger sets the logger used to report clock regressions.
func WithLogger(logger types.Logger) Option {
	return func(g *Generator) {
		g.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(collector types.MetricsCollector) Option {
	return func(g *Generator) {
		g.metrics = collector
	}
}

// Generator mints Snowflake IDs for one (datacenter, worker) identity.
//
// NextID is safe for concurrent use. IDs from one Generator are strictly
// increasing while the clock does not regress past the drift tolerance.
// Uniqueness across processes requires every process to use a distinct
// (datacenter, worker) pair; the generator does not coordinate that.
type Generator struct {
	datacenterID int64
	workerID     int64
	epoch        int64
	tolerance    time.Duration
	layout       Layout
	clock        Clock
	logger       types.Logger
	metrics      types.MetricsCollector
	sleep        func(time.Duration)

	workerShift     uint
	datacenterShift uint
	timestampShift  uint
	maxTimestamp    int64

	mu            sync.Mutex
	lastTimestamp int64
	sequence      int64
}

// New creates a Generator for the given identity.
//
// Parameters:
//   - datacenterID: Datacenter part of the identity, 0..MaxDatacenterID
//   - workerID: Worker part of the identity, 0..MaxWorkerID
//   - opts: Optional configuration options
//
// Returns:
//   - *Generator: A ready generator
//   - error: *types.ConfigurationError if the identity or options are invalid
func New(datacenterID, workerID int64, opts ...Option) (*Generator, error) {
	g := &Generator{
		datacenterID:  datacenterID,
		workerID:      workerID,
		epoch:         DefaultEpoch.UnixMilli(),
		tolerance:     DefaultDriftTolerance,
		layout:        DefaultLayout,
		clock:         SystemClock{},
		sleep:         time.Sleep,
		lastTimestamp: -1,
	}

	for _, opt := range opts {
		opt(g)
	}

	g.logger = logging.OrNop(g.logger)
	g.metrics = metrics.OrNop(g.metrics)

	if err := g.layout.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateIdentity(g.layout, datacenterID, workerID); err != nil {
		return nil, err
	}
	if g.clock == nil {
		return nil, types.NewConfigurationError("clock", "must not be nil")
	}
	if g.tolerance < 0 {
		return nil, types.NewConfigurationError("driftTolerance", "must not be negative")
	}
	if g.epoch > g.clock.NowMillis() {
		return nil, types.NewConfigurationError("epoch", "must not be in the future")
	}

	g.workerShift = g.layout.SequenceBits
	g.datacenterShift = g.layout.SequenceBits + g.layout.WorkerBits
	g.timestampShift = g.layout.SequenceBits + g.layout.WorkerBits + g.layout.DatacenterBits
	g.maxTimestamp = mask(g.layout.TimestampBits())

	return g, nil
}

// ValidateIdentity checks that both ids fit the layout.
func ValidateIdentity(layout Layout, datacenterID, workerID int64) error {
	if maxDC := layout.MaxDatacenterID(); datacenterID < 0 || datacenterID > maxDC {
		return types.NewConfigurationError("datacenterID",
			"must be between 0 and "+strconv.FormatInt(maxDC, 10))
	}
	if maxWorker := layout.MaxWorkerID(); workerID < 0 || workerID > maxWorker {
		return types.NewConfigurationError("workerID",
			"must be between 0 and "+strconv.FormatInt(maxWorker, 10))
	}

	return nil
}

// NextID returns the next ID.
//
// Returns:
//   - int64: A positive ID greater than every ID previously returned
//   - error: *types.ClockRegressionError if the clock moved backwards
//     beyond tolerance, or did not catch up within the bounded wait
func (g *Generator) NextID() (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.NowMillis()

	if now < g.lastTimestamp {
		var err error
		if now, err = g.handleRegression(now); err != nil {
			return 0, err
		}
	}

	// State is committed only once the id is certain to be returned, so a
	// failed call never lets a later one reuse (lastTimestamp, sequence).
	var sequence int64
	if now == g.lastTimestamp {
		sequence = (g.sequence + 1) & g.layout.MaxSequence()
		if sequence == 0 {
			g.metrics.IncSequenceExhausted()

			var err error
			if now, err = g.waitNextMillis(g.lastTimestamp); err != nil {
				return 0, err
			}
		}
	}

	elapsed := now - g.epoch
	if elapsed < 0 || elapsed > g.maxTimestamp {
		return 0, types.NewConfigurationError("epoch", "current time is outside the timestamp range")
	}

	g.sequence = sequence
	g.lastTimestamp = now
	g.metrics.IncIDGenerated()

	return elapsed<<g.timestampShift |
		g.datacenterID<<g.datacenterShift |
		g.workerID<<g.workerShift |
		sequence, nil
}

// handleRegression waits out a small regression or fails on a large one.
// Must be called with g.mu held.
func (g *Generator) handleRegression(now int64) (int64, error) {
	drift := time.Duration(g.lastTimestamp-now) * time.Millisecond
	if drift > g.tolerance {
		g.metrics.IncClockRegression(false)
		g.logger.Error("clock moved backwards beyond tolerance, refusing to generate id",
			"drift", drift.String(),
			"tolerance", g.tolerance.String(),
		)

		return 0, &types.ClockRegressionError{Drift: drift, Last: g.lastTimestamp, Now: now}
	}

	g.metrics.IncClockRegression(true)
	g.logger.Warn("clock moved backwards, waiting for it to catch up",
		"drift", drift.String(),
	)

	g.sleep(2 * drift)

	now = g.clock.NowMillis()
	if now < g.lastTimestamp {
		return 0, &types.ClockRegressionError{
			Drift: time.Duration(g.lastTimestamp-now) * time.Millisecond,
			Last:  g.lastTimestamp,
			Now:   now,
		}
	}

	return now, nil
}

// waitNextMillis spins until the clock passes last.
// Must be called with g.mu held.
func (g *Generator) waitNextMillis(last int64) (int64, error) {
	for {
		now := g.clock.NowMillis()
		if now > last {
			return now, nil
		}

		if drift := time.Duration(last-now) * time.Millisecond; drift > g.tolerance {
			g.metrics.IncClockRegression(false)

			return 0, &types.ClockRegressionError{Drift: drift, Last: last, Now: now}
		}

		runtime.Gosched()
	}
}

// MustNextID is like NextID but panics on error.
//
// It is intended for initialization code where a clock fault is fatal anyway.
func (g *Generator) MustNextID() int64 {
	id, err := g.NextID()
	if err != nil {
		panic(err)
	}

	return id
}

// NextIDString returns the next ID in decimal form.
func (g *Generator) NextIDString() (string, error) {
	id, err := g.NextID()
	if err != nil {
		return "", err
	}

	return strconv.FormatInt(id, 10), nil
}

// DatacenterID returns the generator's datacenter id.
func (g *Generator) DatacenterID() int64 { return g.datacenterID }

// WorkerID returns the generator's worker id.
func (g *Generator) WorkerID() int64 { return g.workerID }

// Epoch returns the generator's epoch.
func (g *Generator) Epoch() time.Time { return time.UnixMilli(g.epoch).UTC() }

// Layout returns the generator's bit layout.
func (g *Generator) Layout() Layout { return g.layout }

// Decompose splits an ID issued by this generator into its fields.
func (g *Generator) Decompose(id int64) Parts {
	return DecomposeLayout(id, g.layout, g.Epoch())
}
