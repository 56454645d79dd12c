package server

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/campusops/lostfound/internal/matching"
	"github.com/campusops/lostfound/internal/notify"
	"github.com/campusops/lostfound/internal/store"
)

func toMatchingItem(it store.Item) matching.Item {
	return matching.Item{
		ID:             it.ID,
		Type:           matching.ItemType(it.Type),
		Title:          it.Title,
		Description:    it.Description,
		Location:       it.Location,
		OccurredOn:     it.OccurredOn,
		ReportedAt:     it.ReportedAt,
		Status:         matching.ItemStatus(it.Status),
		ReporterUserID: it.ReporterUserID,
	}
}

// matchSource feeds the engine its candidate pool from Postgres.
type matchSource struct {
	Store *store.Store
}

func (s *matchSource) Candidates(ctx context.Context, q matching.CandidateQuery) ([]matching.Item, error) {
	rows, err := s.Store.CandidateItems(ctx, string(q.Type), q.Location, q.Around, q.Limit)
	if err != nil {
		return nil, err
	}
	out := make([]matching.Item, 0, len(rows))
	for _, r := range rows {
		out = append(out, toMatchingItem(r))
	}
	return out, nil
}

// matchSink persists qualifying pairs through the monotonic upsert.
type matchSink struct {
	Store *store.Store
}

func (s *matchSink) UpsertMatchScore(ctx context.Context, lostItemID, foundItemID int64, score float64) (float64, error) {
	return s.Store.UpsertMatchScore(ctx, lostItemID, foundItemID, score)
}

// matchNotifier stores an in-app notification for each affected reporter
// and pushes it to their live stream.
type matchNotifier struct {
	Store  *store.Store
	Bus    *notify.Bus
	Logger *log.Logger
}

func (n *matchNotifier) MatchFound(ctx context.Context, ev matching.MatchEvent) error {
	recipients := map[int64]matching.Item{}
	if ev.Base.ReporterUserID != nil {
		recipients[*ev.Base.ReporterUserID] = ev.Candidate
	}
	if ev.Candidate.ReporterUserID != nil {
		recipients[*ev.Candidate.ReporterUserID] = ev.Base
	}
	data := map[string]interface{}{
		"lostItemId":  ev.LostItemID,
		"foundItemId": ev.FoundItemID,
		"score":       ev.Score,
	}
	for userID, other := range recipients {
		title := fmt.Sprintf("Possible match: %s", other.Title)
		body := fmt.Sprintf("An item matching yours was reported (%.2f%% similar).", ev.Score)
		row, err := n.Store.CreateNotification(ctx, userID, "match_found", title, body, data)
		if err != nil {
			return err
		}
		if n.Bus != nil {
			pubErr := n.Bus.Publish(ctx, userID, notify.Event{
				ID:        row.ID,
				Kind:      row.Kind,
				Title:     row.Title,
				Body:      row.Body,
				Data:      row.Data,
				CreatedAt: row.CreatedAt,
			})
			if pubErr != nil && n.Logger != nil {
				n.Logger.Printf("publish notification %d: %v", row.ID, pubErr)
			}
		}
	}
	return nil
}

func parseDateOnly(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return &d, nil
}
