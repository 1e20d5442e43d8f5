package core

import (
	"sync"

	"github.com/dchest/uniuri"

	"github.com/babelcloud/vidcap/internal/util"
)

// Lease serializes pipeline access to one Source. Only one sampling or
// recording operation may hold it at a time; a second acquisition fails
// immediately instead of queueing.
type Lease struct {
	mu     sync.Mutex
	holder string
	op     string
}

// Acquire takes the lease for the named operation. It returns a release
// func that is safe to call more than once; only the first call releases.
func (l *Lease) Acquire(op string) (release func(), err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.holder != "" {
		return nil, &ResourceError{Op: "source held by " + l.op, Err: ErrSourceBusy}
	}

	token := uniuri.NewLen(8)
	l.holder = token
	l.op = op
	util.GetLogger().Debug("Source lease acquired", "op", op, "token", token)

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if l.holder == token {
				l.holder = ""
				l.op = ""
				util.GetLogger().Debug("Source lease released", "op", op, "token", token)
			}
		})
	}, nil
}

// Held reports whether the lease is currently taken.
func (l *Lease) Held() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.holder != ""
}
