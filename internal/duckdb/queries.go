package duckdb

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/keepwatching/logtail/internal/model"
)

var _ model.ArchiveReader = (*Store)(nil)

// queryCtx returns a context with the store's configured query timeout.
func (s *Store) queryCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.QueryTimeout)
}

// archiveFilter builds a WHERE clause for q. Limit is not applied.
func archiveFilter(q model.ArchiveQuery) (clause string, args []any) {
	var conditions []string
	if q.Service != "" {
		conditions = append(conditions, "service = ?")
		args = append(args, string(q.Service))
	}
	if len(q.Levels) > 0 {
		placeholders := make([]string, len(q.Levels))
		for i, lvl := range q.Levels {
			placeholders[i] = "?"
			args = append(args, string(lvl))
		}
		conditions = append(conditions, "level IN ("+strings.Join(placeholders, ", ")+")")
	}
	if q.Search != "" {
		conditions = append(conditions, "contains(lower(message), ?)")
		args = append(args, strings.ToLower(q.Search))
	}
	if !q.Since.IsZero() {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, q.Since.UTC())
	}
	if len(conditions) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

// TotalLogCount returns the number of archived records.
func (s *Store) TotalLogCount() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM logs`).Scan(&count)
	return count, err
}

// LevelCounts returns archived record counts for every level, including
// levels with no records.
func (s *Store) LevelCounts() ([]model.LevelCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT level, COUNT(*) FROM logs GROUP BY level`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byLevel := make(map[model.Level]int64, len(model.Levels))
	for rows.Next() {
		var level string
		var count int64
		if err := rows.Scan(&level, &count); err != nil {
			log.Printf("duckdb scan error (LevelCounts): %v", err)
			continue
		}
		byLevel[model.Level(level)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]model.LevelCount, 0, len(model.Levels))
	for _, lvl := range model.Levels {
		out = append(out, model.LevelCount{Level: lvl, Count: byLevel[lvl]})
	}
	return out, nil
}

// ServiceCounts returns services by descending record count.
func (s *Store) ServiceCounts(limit int) ([]model.DimensionCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT service, COUNT(*) AS count
		FROM logs
		GROUP BY service
		ORDER BY count DESC, service ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.DimensionCount
	for rows.Next() {
		var item model.DimensionCount
		if err := rows.Scan(&item.Value, &item.Count); err != nil {
			log.Printf("duckdb scan error (ServiceCounts): %v", err)
			continue
		}
		results = append(results, item)
	}
	return results, rows.Err()
}

// CountsByMinute returns per-minute level breakdowns for records newer than window.
func (s *Store) CountsByMinute(window time.Duration) ([]model.MinuteCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()
	cutoff := time.Now().Add(-window).UTC()

	rows, err := s.db.QueryContext(ctx, `
		SELECT date_trunc('minute', timestamp) AS minute,
			SUM(CASE WHEN level='info' THEN 1 ELSE 0 END) AS info,
			SUM(CASE WHEN level='warn' THEN 1 ELSE 0 END) AS warn,
			SUM(CASE WHEN level='error' THEN 1 ELSE 0 END) AS error,
			COUNT(*) AS total
		FROM logs
		WHERE timestamp >= ?
		GROUP BY minute ORDER BY minute`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.MinuteCounts
	for rows.Next() {
		var mc model.MinuteCounts
		if err := rows.Scan(&mc.Minute, &mc.Info, &mc.Warn, &mc.Error, &mc.Total); err != nil {
			log.Printf("duckdb scan error (CountsByMinute): %v", err)
			continue
		}
		results = append(results, mc)
	}
	return results, rows.Err()
}

// RecentLogs returns the newest records matching q in chronological order.
// A non-positive limit defaults to model.DefaultMaxRecords.
func (s *Store) RecentLogs(q model.ArchiveQuery) ([]model.LogRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	limit := q.Limit
	if limit <= 0 {
		limit = model.DefaultMaxRecords
	}
	where, args := archiveFilter(q)
	inner := fmt.Sprintf(`SELECT id, timestamp, service, level, message, origin, details, raw FROM logs %s ORDER BY timestamp DESC, id DESC LIMIT ?`, where)
	args = append(args, limit)

	// Wrap so results come back oldest first.
	rows, err := s.db.QueryContext(ctx, "SELECT * FROM ("+inner+") ORDER BY timestamp ASC, id ASC", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.LogRecord
	for rows.Next() {
		var (
			r                    model.LogRecord
			service, level, kind string
			details, raw         string
		)
		if err := rows.Scan(&r.ID, &r.Timestamp, &service, &level, &r.Message, &kind, &details, &raw); err != nil {
			log.Printf("duckdb scan error (RecentLogs): %v", err)
			continue
		}
		r.Service = model.Service(service)
		r.Level = model.Level(level)
		r.Timestamp = r.Timestamp.UTC()
		origin, err := model.UnmarshalOrigin(model.OriginKind(kind), []byte(details))
		if err != nil {
			log.Printf("duckdb: origin of %s: %v", r.ID, err)
			origin = model.AppOrigin{}
		}
		r.Origin = origin
		if raw != "" {
			r.Raw = []byte(raw)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// DeleteBefore removes records older than cutoff and returns how many were deleted.
func (s *Store) DeleteBefore(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM logs WHERE timestamp < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("duckdb: delete before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return res.RowsAffected()
}
