package pagefs

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// LockLevel is a level of SQLite's hierarchical file locking protocol.
type LockLevel int

const (
	Unlocked LockLevel = iota
	Shared
	Reserved
	Pending
	Exclusive
)

func (l LockLevel) String() string {
	switch l {
	case Unlocked:
		return "unlocked"
	case Shared:
		return "shared"
	case Reserved:
		return "reserved"
	case Pending:
		return "pending"
	case Exclusive:
		return "exclusive"
	}
	return "invalid"
}

// LockManager tracks the lock level held by each open Handle of each path,
// and blocks Lock requests until they're compatible with the levels held by
// other Handles of the path.
type LockManager struct {
	mu    sync.Mutex
	files map[string]*fileLocks
}

// fileLocks is the lock table entry of a path.
type fileLocks struct {
	mu      sync.Mutex
	holders map[uint64]LockLevel // Never holds Unlocked.
	// changed is closed and replaced upon every change of |holders|.
	changed chan struct{}
	// waiters is the number of Lock calls referencing this entry.
	// Guarded by LockManager.mu rather than |mu|.
	waiters int
}

// NewLockManager returns an empty LockManager.
func NewLockManager() *LockManager {
	return &LockManager{files: make(map[string]*fileLocks)}
}

// Lock blocks until Handle |id| may hold |level| on |path|, and then records
// it. A Handle's own level never blocks its request, so upgrades always
// proceed once other Handles permit. Lock returns the Context error if |ctx|
// is done before the level can be acquired.
func (m *LockManager) Lock(ctx context.Context, path string, id uint64, level LockLevel) error {
	if level == Unlocked {
		m.Unlock(path, id, Unlocked)
		return nil
	}

	m.mu.Lock()
	var fl, ok = m.files[path]
	if !ok {
		fl = &fileLocks{holders: make(map[uint64]LockLevel), changed: make(chan struct{})}
		m.files[path] = fl
	}
	fl.waiters++
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		fl.waiters--
		m.gc(path, fl)
		m.mu.Unlock()
	}()

	var started time.Time

	fl.mu.Lock()
	for !compatible(level, fl.holders, id) {
		var ch = fl.changed
		fl.mu.Unlock()

		if started.IsZero() {
			started = time.Now()
			log.WithFields(log.Fields{
				"path":  path,
				"id":    id,
				"level": level,
			}).Debug("waiting for lock")
		}

		select {
		case <-ch:
		case <-ctx.Done():
			lockWaitSeconds.WithLabelValues("cancelled").Observe(time.Since(started).Seconds())
			return ctx.Err()
		}
		fl.mu.Lock()
	}
	fl.set(id, level)
	fl.mu.Unlock()

	if !started.IsZero() {
		lockWaitSeconds.WithLabelValues("acquired").Observe(time.Since(started).Seconds())
	}
	return nil
}

// Unlock downgrades the level held by Handle |id| of |path| to |level|,
// or removes it entirely if |level| is Unlocked. Handles blocked on |path|
// are woken to re-check their requests. Unlock never raises a level.
func (m *LockManager) Unlock(path string, id uint64, level LockLevel) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var fl, ok = m.files[path]
	if !ok {
		return
	}

	fl.mu.Lock()
	if cur, ok := fl.holders[id]; ok && level < cur {
		fl.set(id, level)
	} else {
		fl.broadcast()
	}
	fl.mu.Unlock()

	m.gc(path, fl)
}

// RemoveHandle removes any level held by Handle |id| of |path|, regardless of
// its current level, and wakes Handles blocked on |path|.
func (m *LockManager) RemoveHandle(path string, id uint64) {
	m.Unlock(path, id, Unlocked)
}

// CurrentMaxLevel returns the strongest level held by any Handle of |path|.
func (m *LockManager) CurrentMaxLevel(path string) LockLevel {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out = Unlocked
	if fl, ok := m.files[path]; ok {
		fl.mu.Lock()
		for _, l := range fl.holders {
			if l > out {
				out = l
			}
		}
		fl.mu.Unlock()
	}
	return out
}

// LevelOf returns the level held by Handle |id| of |path|.
func (m *LockManager) LevelOf(path string, id uint64) LockLevel {
	m.mu.Lock()
	defer m.mu.Unlock()

	if fl, ok := m.files[path]; ok {
		fl.mu.Lock()
		defer fl.mu.Unlock()
		return fl.holders[id]
	}
	return Unlocked
}

// gc removes the entry of |path| if no Handle holds or awaits a lock.
// m.mu must be held.
func (m *LockManager) gc(path string, fl *fileLocks) {
	fl.mu.Lock()
	var empty = len(fl.holders) == 0
	fl.mu.Unlock()

	if empty && fl.waiters == 0 && m.files[path] == fl {
		delete(m.files, path)
	}
}

// set the |level| of Handle |id| and wake waiters. fl.mu must be held.
func (fl *fileLocks) set(id uint64, level LockLevel) {
	if level == Unlocked {
		delete(fl.holders, id)
	} else {
		fl.holders[id] = level
	}
	fl.broadcast()
}

func (fl *fileLocks) broadcast() {
	close(fl.changed)
	fl.changed = make(chan struct{})
}

// compatible returns whether Handle |id| may hold |requested| given the
// levels of |holders|. The Handle's own entry is ignored.
func compatible(requested LockLevel, holders map[uint64]LockLevel, id uint64) bool {
	for other, held := range holders {
		if other == id {
			continue
		}
		switch {
		case requested == Exclusive || held == Exclusive:
			return false
		case requested == Pending && (held == Reserved || held == Pending):
			return false
		case requested == Reserved && (held == Reserved || held == Pending):
			return false
		}
	}
	return true
}
