package store

import (
	"context"
	"time"
)

// OverviewStats is the admin dashboard headline block.
type OverviewStats struct {
	TotalItems     int64
	OpenLost       int64
	OpenFound      int64
	PendingMatches int64
	PendingClaims  int64
	RecoveredTotal int64
	RecoveredMonth int64
}

// Overview gathers the dashboard counters in one round trip.
func (s *Store) Overview(ctx context.Context) (OverviewStats, error) {
	var o OverviewStats
	err := s.DB.QueryRowContext(ctx, `
SELECT
  (SELECT COUNT(*) FROM items),
  (SELECT COUNT(*) FROM items WHERE type = 'lost' AND status = 'open'),
  (SELECT COUNT(*) FROM items WHERE type = 'found' AND status = 'open'),
  (SELECT COUNT(*) FROM matches WHERE status = 'pending'),
  (SELECT COUNT(*) FROM claims WHERE status IN ('requested','verified')),
  (SELECT COUNT(*) FROM items WHERE status = 'claimed'),
  (SELECT COUNT(*) FROM items WHERE status = 'claimed' AND updated_at >= date_trunc('month', NOW()))
`).Scan(&o.TotalItems, &o.OpenLost, &o.OpenFound, &o.PendingMatches, &o.PendingClaims, &o.RecoveredTotal, &o.RecoveredMonth)
	return o, err
}

// DailyStats is the dashboard's same-day snapshot block.
type DailyStats struct {
	NewReports        int64
	PendingClaims     int64
	SuccessfulReturns int64
}

// Daily gathers today's snapshot counters in one round trip. Returns
// count items closed today, with the reported date as a fallback when a
// row never got an update timestamp.
func (s *Store) Daily(ctx context.Context) (DailyStats, error) {
	var d DailyStats
	err := s.DB.QueryRowContext(ctx, `
SELECT
  (SELECT COUNT(*) FROM items WHERE reported_at::date = CURRENT_DATE),
  (SELECT COUNT(*) FROM claims WHERE status IN ('requested','verified')),
  (SELECT COUNT(*) FROM items WHERE status = 'closed' AND (updated_at::date = CURRENT_DATE OR reported_at::date = CURRENT_DATE))
`).Scan(&d.NewReports, &d.PendingClaims, &d.SuccessfulReturns)
	return d, err
}

// DailyCount is one bucket of a reports-per-day series.
type DailyCount struct {
	Day   time.Time
	Lost  int64
	Found int64
}

// ReportSeries returns reports-per-day for the trailing window.
func (s *Store) ReportSeries(ctx context.Context, days int) ([]DailyCount, error) {
	if days <= 0 || days > 365 {
		days = 30
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT date_trunc('day', reported_at) AS day,
       COUNT(*) FILTER (WHERE type = 'lost'),
       COUNT(*) FILTER (WHERE type = 'found')
FROM items
WHERE reported_at >= NOW() - ($1 || ' days')::interval
GROUP BY day
ORDER BY day
`, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DailyCount
	for rows.Next() {
		var d DailyCount
		if err := rows.Scan(&d.Day, &d.Lost, &d.Found); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// MonthlyCount is one bucket of the public recovered-per-month series.
type MonthlyCount struct {
	Month     time.Time
	Recovered int64
}

// RecoveredMonthly returns claimed-item counts per month for the trailing
// year, for the public stats page.
func (s *Store) RecoveredMonthly(ctx context.Context) ([]MonthlyCount, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT date_trunc('month', updated_at) AS month, COUNT(*)
FROM items
WHERE status = 'claimed' AND updated_at >= NOW() - interval '1 year'
GROUP BY month
ORDER BY month
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []MonthlyCount
	for rows.Next() {
		var m MonthlyCount
		if err := rows.Scan(&m.Month, &m.Recovered); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
