// Package fdtable implements the client-side dual-namespace file
// descriptor scheme: the presence set that decides, per call, whether a
// descriptor the caller hands in should be satisfied locally or over the
// wire.
package fdtable

import (
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
)

// RemoteBase (R) separates the local and remote descriptor spaces in the
// caller-visible namespace. Any caller-visible descriptor at or above R
// whose (d-R) is present in the table is remote; everything else is
// local. The reference value is 2^15.
const RemoteBase = 1 << 15

// ErrOverflow is returned by Externalize when the internal descriptor
// value would exceed the configured bound M. This is a fatal condition
// for the client per the protocol's error-handling design — the caller
// should abort rather than continue with an inconsistent namespace.
var ErrOverflow = errors.New("fdtable: remote descriptor namespace exceeded")

// Table is the presence set Open together with the bound M. It is safe
// for concurrent use: Classify/Externalize/Internalize/Retire may be
// called from any goroutine. Serializing wire access itself is the
// caller's job (see rfsclient).
type Table struct {
	mu    sync.Mutex
	open  map[int]struct{}
	bound int

	// touched is purely a debug aid: the time each internal descriptor
	// was externalized, for an operator dumping "what's open and for how
	// long." It is not updated by later use of the descriptor and plays
	// no role in classification.
	touched *gocache.Cache
}

// New constructs a Table with the given upper bound M on internal
// descriptor values.
func New(bound int) *Table {
	return &Table{
		open:    make(map[int]struct{}),
		bound:   bound,
		touched: gocache.New(0, 0), // no expiry: entries are removed on Retire
	}
}

// Classify reports whether a caller-visible descriptor d should be routed
// remotely. Classify is total: for any int, exactly one of {local,
// remote} holds.
func (t *Table) Classify(d int) (remote bool) {
	if d < RemoteBase {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.open[d-RemoteBase]
	return ok
}

// Internalize converts a descriptor already known to classify as remote
// into the internal (server-visible) value.
func (t *Table) Internalize(d int) int {
	return d - RemoteBase
}

// Externalize records a successful remote OPEN's internal descriptor i
// and returns the external value the caller should see (i+R). It is an
// error to externalize i >= bound: the namespace has been exceeded.
func (t *Table) Externalize(i int) (int, error) {
	if i >= t.bound {
		return 0, errors.Wrapf(ErrOverflow, "internal fd %d exceeds bound %d", i, t.bound)
	}
	t.mu.Lock()
	t.open[i] = struct{}{}
	t.mu.Unlock()
	t.touched.Set(fmt.Sprintf("%d", i), time.Now(), gocache.NoExpiration)
	return i + RemoteBase, nil
}

// Retire removes internal descriptor i from the presence set. Per close
// semantics, this happens unconditionally — even if the CLOSE itself
// failed on the server, the descriptor is considered closed from the
// client's point of view.
func (t *Table) Retire(i int) {
	t.mu.Lock()
	delete(t.open, i)
	t.mu.Unlock()
	t.touched.Delete(fmt.Sprintf("%d", i))
}

// Snapshot returns the internal descriptors currently believed open, for
// diagnostics only.
func (t *Table) Snapshot() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]int, 0, len(t.open))
	for i := range t.open {
		out = append(out, i)
	}
	return out
}

// Diagnostics reports, for each open internal descriptor, how long ago it
// was opened (externalized). It is the operator-facing consumer of the
// touched side table: Externalize/Retire write it, this reads it back.
func (t *Table) Diagnostics() map[int]time.Duration {
	ids := t.Snapshot()
	out := make(map[int]time.Duration, len(ids))
	for _, i := range ids {
		if v, ok := t.touched.Get(fmt.Sprintf("%d", i)); ok {
			out[i] = time.Since(v.(time.Time))
		}
	}
	return out
}
