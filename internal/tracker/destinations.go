// Slackiveroo - Order Status Relay for Slack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slackiveroo

package tracker

import "sync"

// Destination is a Slack channel in a workspace. Identity is the
// (TeamID, ChannelID) pair; credentials are looked up at delivery time.
type Destination struct {
	TeamID    string `json:"team_id"`
	ChannelID string `json:"channel_id"`
}

func (d Destination) String() string {
	return d.TeamID + "/" + d.ChannelID
}

// Valid reports whether both ids are set.
func (d Destination) Valid() bool {
	return d.TeamID != "" && d.ChannelID != ""
}

// DestinationSet is an insertion-ordered set of destinations, safe for
// concurrent use.
type DestinationSet struct {
	mu    sync.RWMutex
	index map[Destination]struct{}
	order []Destination
}

// NewDestinationSet returns a set holding initial, without duplicates.
func NewDestinationSet(initial ...Destination) *DestinationSet {
	s := &DestinationSet{index: make(map[Destination]struct{}, len(initial))}
	for _, d := range initial {
		s.Add(d)
	}
	return s
}

// Add inserts d and reports whether it was not already present.
func (s *DestinationSet) Add(d Destination) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[d]; ok {
		return false
	}
	s.index[d] = struct{}{}
	s.order = append(s.order, d)
	return true
}

// All returns a copy of the members in insertion order.
func (s *DestinationSet) All() []Destination {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Destination, len(s.order))
	copy(out, s.order)
	return out
}

// Contains reports whether d is a member.
func (s *DestinationSet) Contains(d Destination) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[d]
	return ok
}

// Len returns the number of members.
func (s *DestinationSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}
