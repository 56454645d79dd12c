package matching

import (
	"strings"
	"time"
)

// ItemType discriminates the two sides of a report.
type ItemType string

const (
	TypeLost  ItemType = "lost"
	TypeFound ItemType = "found"
)

// Opposite returns the type a base item is matched against.
func (t ItemType) Opposite() ItemType {
	if t == TypeLost {
		return TypeFound
	}
	return TypeLost
}

// ItemStatus is the lifecycle state of a reported item.
type ItemStatus string

const (
	StatusOpen    ItemStatus = "open"
	StatusMatched ItemStatus = "matched"
	StatusClaimed ItemStatus = "claimed"
	StatusClosed  ItemStatus = "closed"
)

// Item is the scorer's view of a reported item. It carries only the fields
// the matching pass reads, decoupled from the persistence row.
type Item struct {
	ID             int64
	Type           ItemType
	Title          string
	Description    string
	Location       string
	OccurredOn     *time.Time
	ReportedAt     time.Time
	Status         ItemStatus
	ReporterUserID *int64
}

// Text composes the scored document for an item.
func (it Item) Text() string {
	return strings.TrimSpace(it.Title + " " + it.Description)
}

// Date resolves "the" date of an item: occurred-on when reported, else the
// date portion of reported-at. ok is false when neither is available.
func (it Item) Date() (time.Time, bool) {
	if it.OccurredOn != nil {
		return truncateToDate(*it.OccurredOn), true
	}
	if it.ReportedAt.IsZero() {
		return time.Time{}, false
	}
	return truncateToDate(it.ReportedAt), true
}

func truncateToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
