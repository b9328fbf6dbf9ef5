// Package turnlock provides the mutual-exclusion handoff used to guard the
// relay's shared buffers.
//
// A Lock admits exactly one critical section at a time. Callers name a Role
// when they acquire it, but the role is advisory: two readers are never
// inside together. What the role does buy is turn-taking. When a turn is
// released, a waiter of the opposite role is admitted ahead of waiters of
// the role that just finished, so a render loop spinning on Reader cannot
// starve the receiving goroutine holding Writer, and vice versa.
package turnlock

import "sync"

// Role names the side acquiring the lock.
type Role int

const (
	// Reader is the presentation side.
	Reader Role = iota
	// Writer is the receiving side.
	Writer
)

func (r Role) other() Role {
	if r == Reader {
		return Writer
	}
	return Reader
}

// String returns the role name.
func (r Role) String() string {
	if r == Reader {
		return "reader"
	}
	return "writer"
}

// Lock is a single-owner turn lock. The zero value is ready to use and
// gives the first turn to Reader.
type Lock struct {
	mu      sync.Mutex
	cond    *sync.Cond
	busy    bool
	next    Role
	waiting [2]int
}

// Turn is the scoped handle returned by Acquire.
type Turn struct {
	lock     *Lock
	role     Role
	released bool
}

// Role reports which role holds the turn.
func (t *Turn) Role() Role {
	return t.role
}

func (l *Lock) init() {
	if l.cond == nil {
		l.cond = sync.NewCond(&l.mu)
	}
}

// mayEnter must be called with l.mu held.
func (l *Lock) mayEnter(role Role) bool {
	if l.busy {
		return false
	}
	return l.next == role || l.waiting[role.other()] == 0
}

// Acquire blocks until role may enter, then returns the turn.
func (l *Lock) Acquire(role Role) *Turn {
	l.mu.Lock()
	l.init()
	l.waiting[role]++
	for !l.mayEnter(role) {
		l.cond.Wait()
	}
	l.waiting[role]--
	l.busy = true
	l.mu.Unlock()

	return &Turn{lock: l, role: role}
}

// Release ends the turn and hands the next one to the opposite role.
// Releasing a turn twice panics, as does releasing it on another Lock.
func (l *Lock) Release(t *Turn) {
	if t == nil || t.lock != l || t.released {
		panic("turnlock: release of a turn not held on this lock")
	}
	t.released = true

	l.mu.Lock()
	l.init()
	l.busy = false
	l.next = t.role.other()
	l.mu.Unlock()

	// Waiters of both roles re-check their predicate, so all of them wake.
	l.cond.Broadcast()
}

// Do runs fn while holding a turn for role.
func (l *Lock) Do(role Role, fn func()) {
	t := l.Acquire(role)
	defer l.Release(t)
	fn()
}
