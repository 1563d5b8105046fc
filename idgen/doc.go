// Package idgen mints Snowflake-style 64-bit identifiers.
//
// An ID packs, from the most significant bit down:
//
//	| 1 bit unused | 41 bits ms since epoch | 5 bits datacenter | 5 bits worker | 12 bits sequence |
//
// which gives roughly 69 years of range from the epoch and 4096 IDs per
// millisecond per worker. IDs from one Generator are strictly increasing;
// IDs from generators with different (datacenter, worker) pairs never
// collide because those bits are disjoint. Assigning disjoint pairs across
// processes is the operator's job.
//
// # Usage
//
//	gen, err := idgen.New(datacenterID, workerID)
//	if err != nil {
//	    log.Fatal(err) // *types.ConfigurationError
//	}
//
//	id, err := gen.NextID()
//	if errors.Is(err, types.ErrClockRegression) {
//	    // the clock moved backwards too far; retry later
//	}
//
// # Clock Regression
//
// When the clock steps backwards by no more than the drift tolerance
// (5ms by default) NextID sleeps for twice the drift and tries again. Larger
// regressions fail immediately with *types.ClockRegressionError.
//
// # Testing
//
// ManualClock lets tests move time by hand, including backwards:
//
//	clock := idgen.NewManualClock(time.Now().UnixMilli())
//	gen, _ := idgen.New(0, 0, idgen.WithClock(clock))
//	clock.Advance(-50 * time.Millisecond)
//	_, err := gen.NextID() // ClockRegressionError
package idgen
