package types

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned when a status change would move a record backwards.
var ErrInvalidTransition = errors.New("invalid status transition")

type StoryStatus string

const (
	StoryScraped   StoryStatus = "scraped"
	StorySelected  StoryStatus = "selected"
	StoryProcessed StoryStatus = "processed"
	StoryRejected  StoryStatus = "rejected"
)

var storyRank = map[StoryStatus]int{
	StoryScraped:   0,
	StorySelected:  1,
	StoryProcessed: 2,
}

func (s StoryStatus) Valid() bool {
	_, ok := storyRank[s]
	return ok || s == StoryRejected
}

// Terminal reports whether no further transitions are possible.
func (s StoryStatus) Terminal() bool {
	return s == StoryProcessed || s == StoryRejected
}

// CanAdvance checks a story status change. Moving to the same status is allowed
// so that retried updates are no-ops.
func CanAdvance(from, to StoryStatus) error {
	if !from.Valid() || !to.Valid() {
		return fmt.Errorf("%w: unknown status %q -> %q", ErrInvalidTransition, from, to)
	}
	if from == to {
		return nil
	}
	if from.Terminal() {
		return fmt.Errorf("%w: %s is terminal", ErrInvalidTransition, from)
	}
	if to == StoryRejected {
		return nil
	}
	if storyRank[to] != storyRank[from]+1 {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// Predecessors lists every status from which to is reachable, to included.
func Predecessors(to StoryStatus) []StoryStatus {
	var out []StoryStatus
	for _, s := range []StoryStatus{StoryScraped, StorySelected, StoryProcessed, StoryRejected} {
		if CanAdvance(s, to) == nil {
			out = append(out, s)
		}
	}
	return out
}

type VideoStatus string

const (
	VideoPending  VideoStatus = "pending_approval"
	VideoApproved VideoStatus = "approved"
	VideoRejected VideoStatus = "rejected"
)

func (s VideoStatus) Valid() bool {
	switch s {
	case VideoPending, VideoApproved, VideoRejected:
		return true
	}
	return false
}

// CanDecide checks that a review decision applies to a video in status from.
func CanDecide(from, to VideoStatus) error {
	if from != VideoPending {
		return fmt.Errorf("%w: video already %s", ErrInvalidTransition, from)
	}
	if to != VideoApproved && to != VideoRejected {
		return fmt.Errorf("%w: %s is not a decision", ErrInvalidTransition, to)
	}
	return nil
}

type PlatformPostStatus string

const (
	PostPending   PlatformPostStatus = "pending"
	PostPublished PlatformPostStatus = "published"
	PostFailed    PlatformPostStatus = "failed"
)

func (s PlatformPostStatus) Valid() bool {
	switch s {
	case PostPending, PostPublished, PostFailed:
		return true
	}
	return false
}
