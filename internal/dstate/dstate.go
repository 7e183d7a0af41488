// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The gxemon authors

// Package dstate is the device-state publication store. The driver writes
// named facts, a status flag set, and an alarm set into it; subscribers
// read consistent snapshots. Set-valued facts change only through
// clear-then-accumulate-then-commit transactions, and a whole poll cycle
// is marked fresh or stale as a unit.
package dstate

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Snapshot is a consistent copy of the published state.
type Snapshot struct {
	Facts     map[string]string `json:"facts"`
	Status    []string          `json:"status"`
	Alarms    []string          `json:"alarms"`
	Commands  []string          `json:"commands"`
	Stale     bool              `json:"stale"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// Store holds the current device state. Safe for concurrent use: the
// driver writes from its single poll context while subscribers read.
type Store struct {
	mu       sync.RWMutex
	facts    map[string]string
	status   []string
	alarms   []string
	commands []string
	stale    bool
	updated  time.Time

	watchers map[chan Snapshot]struct{}
}

// New creates an empty store. The very first batch is stale until the
// driver commits a successful refresh.
func New() *Store {
	return &Store{
		facts:    make(map[string]string),
		stale:    true,
		watchers: make(map[chan Snapshot]struct{}),
	}
}

// SetInfo publishes a single named fact.
func (s *Store) SetInfo(name, value string) {
	s.mu.Lock()
	s.facts[name] = value
	s.mu.Unlock()
}

// SetInfof publishes a single named fact with a formatted value.
func (s *Store) SetInfof(name, format string, args ...any) {
	s.SetInfo(name, fmt.Sprintf(format, args...))
}

// GetInfo returns a fact's value, or "" if unset.
func (s *Store) GetInfo(name string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.facts[name]
}

// StatusInit begins a status transaction, clearing the flag set.
func (s *Store) StatusInit() {
	s.mu.Lock()
	s.status = s.status[:0]
	s.mu.Unlock()
}

// StatusSet accumulates a named status flag into the current transaction.
func (s *Store) StatusSet(flag string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.status {
		if f == flag {
			return
		}
	}
	s.status = append(s.status, flag)
}

// StatusCommit publishes the accumulated flag set atomically as the
// ups.status fact.
func (s *Store) StatusCommit() {
	s.mu.Lock()
	s.facts["ups.status"] = strings.Join(s.status, " ")
	s.mu.Unlock()
}

// StatusGet reports whether a named status flag is active in the current
// flag set, committed or not.
func (s *Store) StatusGet(flag string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, f := range s.status {
		if f == flag {
			return true
		}
	}
	return false
}

// AlarmInit begins an alarm transaction, clearing the alarm set.
func (s *Store) AlarmInit() {
	s.mu.Lock()
	s.alarms = s.alarms[:0]
	s.mu.Unlock()
}

// AlarmSet accumulates a named alarm into the current transaction.
func (s *Store) AlarmSet(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.alarms {
		if a == name {
			return
		}
	}
	s.alarms = append(s.alarms, name)
}

// AlarmCommit publishes the accumulated alarm set atomically as the
// ups.alarm fact; no alarms clears it.
func (s *Store) AlarmCommit() {
	s.mu.Lock()
	if len(s.alarms) == 0 {
		delete(s.facts, "ups.alarm")
	} else {
		s.facts["ups.alarm"] = strings.Join(s.alarms, ", ")
	}
	s.mu.Unlock()
}

// Alarms returns the committed alarm set.
func (s *Store) Alarms() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.alarms))
	copy(out, s.alarms)
	return out
}

// DataOK marks the current fact batch fresh and notifies subscribers.
func (s *Store) DataOK() {
	s.mu.Lock()
	s.stale = false
	s.updated = time.Now()
	s.mu.Unlock()
	s.notify()
}

// DataStale marks the current fact batch stale (failed refresh) and
// notifies subscribers. Previously published facts remain visible.
func (s *Store) DataStale() {
	s.mu.Lock()
	s.stale = true
	s.mu.Unlock()
	s.notify()
}

// Stale reports whether the last refresh failed.
func (s *Store) Stale() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stale
}

// AddCommand registers a named command the driver accepts.
func (s *Store) AddCommand(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.commands {
		if c == name {
			return
		}
	}
	s.commands = append(s.commands, name)
	sort.Strings(s.commands)
}

// HasCommand reports whether a named command is registered.
func (s *Store) HasCommand(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.commands {
		if c == name {
			return true
		}
	}
	return false
}

// Snapshot returns a consistent copy of the published state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	facts := make(map[string]string, len(s.facts))
	for k, v := range s.facts {
		facts[k] = v
	}
	snap := Snapshot{
		Facts:     facts,
		Status:    append([]string(nil), s.status...),
		Alarms:    append([]string(nil), s.alarms...),
		Commands:  append([]string(nil), s.commands...),
		Stale:     s.stale,
		UpdatedAt: s.updated,
	}
	return snap
}

// Subscribe returns a channel that receives a snapshot after every fresh
// or stale refresh mark, and a cancel function. Slow subscribers drop
// intermediate snapshots rather than blocking the driver.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	s.mu.Lock()
	s.watchers[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		delete(s.watchers, ch)
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Store) notify() {
	snap := s.Snapshot()
	s.mu.RLock()
	defer s.mu.RUnlock()
	for ch := range s.watchers {
		select {
		case ch <- snap:
		default:
			// Replace the stale queued snapshot with the current one.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
