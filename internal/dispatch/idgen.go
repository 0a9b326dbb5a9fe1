package dispatch

import (
	"fmt"
	"sync/atomic"
	"time"
)

var (
	dispatchSeq uint64
	eventSeq    uint64
)

// newDispatchID mints a monotonic, time-sortable dispatch id: a
// nanosecond UTC timestamp prefix guarantees ordering across restarts,
// the counter suffix disambiguates ids minted within the same clock
// tick.
func newDispatchID() string {
	n := atomic.AddUint64(&dispatchSeq, 1)
	return fmt.Sprintf("%s-%08d", time.Now().UTC().Format("20060102T150405.000000000"), n)
}

// newEventID mints a monotonic, time-sortable event id, same scheme as
// newDispatchID but on an independent counter.
func newEventID() string {
	n := atomic.AddUint64(&eventSeq, 1)
	return fmt.Sprintf("%s-%08d", time.Now().UTC().Format("20060102T150405.000000000"), n)
}
