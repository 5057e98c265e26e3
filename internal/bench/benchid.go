package bench

import "github.com/google/uuid"

// BenchID is the 128-bit identifier the worker manager generates at the
// start of every non-idle phase. Workers compare the (Phase, BenchID) pair
// they last observed against the shared state's current value to detect a
// phase transition; this lets the pair advance monotonically without a
// separate generation counter.
type BenchID uuid.UUID

// NilBenchID is the zero value, used before any phase has started.
var NilBenchID = BenchID(uuid.Nil)

// NewBenchID generates a fresh random bench ID, as the worker manager does
// at the start of every phase unless the caller supplies one explicitly
// (the remote protocol's /startphase passes one explicitly so the master
// and every service agree on the same ID).
func NewBenchID() BenchID {
	return BenchID(uuid.New())
}

// ParseBenchID parses the string form used on the wire (query parameters,
// JSON bodies).
func ParseBenchID(s string) (BenchID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return NilBenchID, err
	}
	return BenchID(id), nil
}

func (b BenchID) String() string {
	return uuid.UUID(b).String()
}
