package idgen

import "time"

// Parts are the fields packed into an ID.
type Parts struct {
	// Elapsed is the number of milliseconds since the epoch.
	Elapsed int64

	DatacenterID int64
	WorkerID     int64
	Sequence     int64

	// Time is the instant the ID was issued at, at millisecond resolution.
	Time time.Time
}

// Decompose splits an ID produced with DefaultLayout and DefaultEpoch.
func Decompose(id int64) Parts {
	return DecomposeLayout(id, DefaultLayout, DefaultEpoch)
}

// DecomposeLayout splits an ID produced with the given layout and epoch.
func DecomposeLayout(id int64, layout Layout, epoch time.Time) Parts {
	seqShift := uint(0)
	workerShift := seqShift + layout.SequenceBits
	dcShift := workerShift + layout.WorkerBits
	tsShift := dcShift + layout.DatacenterBits

	elapsed := id >> tsShift

	return Parts{
		Elapsed:      elapsed,
		DatacenterID: (id >> dcShift) & layout.MaxDatacenterID(),
		WorkerID:     (id >> workerShift) & layout.MaxWorkerID(),
		Sequence:     id & layout.MaxSequence(),
		Time:         epoch.Add(time.Duration(elapsed) * time.Millisecond).UTC(),
	}
}
