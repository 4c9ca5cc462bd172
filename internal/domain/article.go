package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status enumerates the pipeline milestones an article moves through.
// Transitions are strictly forward; a stage re-run observing the current
// status is a no-op, a backward move is a logic bug.
type Status string

const (
	StatusFetched  Status = "fetched"
	StatusParsed   Status = "parsed"
	StatusRanked   Status = "ranked"
	StatusDrafted  Status = "drafted"
	StatusNotified Status = "notified"
)

// ErrBackwardTransition signals an attempt to move an article status
// backward. Treated as fatal by the pipeline.
var ErrBackwardTransition = errors.New("backward status transition")

var statusOrder = map[Status]int{
	StatusFetched:  0,
	StatusParsed:   1,
	StatusRanked:   2,
	StatusDrafted:  3,
	StatusNotified: 4,
}

// Ord returns the position of the status in the lifecycle, or -1 for an
// unknown value.
func (s Status) Ord() int {
	if ord, ok := statusOrder[s]; ok {
		return ord
	}
	return -1
}

// Valid reports whether the status is one of the known lifecycle values.
func (s Status) Valid() bool {
	return s.Ord() >= 0
}

// Advance validates a transition from s to next. Returns the resulting
// status, or ErrBackwardTransition when next precedes s.
func (s Status) Advance(next Status) (Status, error) {
	if !next.Valid() {
		return s, fmt.Errorf("unknown status %q", next)
	}
	if next.Ord() < s.Ord() {
		return s, fmt.Errorf("%w: %s -> %s", ErrBackwardTransition, s, next)
	}
	return next, nil
}

// Article is the core entity: one feed post tracked through the
// fetch/parse/select/draft/notify lifecycle.
type Article struct {
	ID          string
	URL         string
	Title       string
	Author      string
	Body        string
	Tags        []string
	PublishedAt time.Time
	FetchedAt   time.Time
	Status      Status
	Score       float64
	FailCount   int
	LastError   string
}

// Draft is the generated post derived from an article. Immutable once
// written; delivery fields are filled in by the notifier.
type Draft struct {
	ArticleID         string
	Title             string
	Lead              string
	Body              string
	Reason            string
	Model             string
	CreatedAt         time.Time
	TelegramMessageID string
	SentAt            time.Time
}

// FetchFailure is one journal entry for a URL that could not be fetched;
// the next fetch run re-queues it.
type FetchFailure struct {
	RunID      string
	URL        string
	Err        string
	OccurredAt time.Time
}

// ArticleID derives the stable identifier for a source URL. The digest
// keys both the store row and the on-disk artifact directory.
func ArticleID(rawURL string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(rawURL)))
	return hex.EncodeToString(sum[:8])
}
