// Package historydb reads visited pages from a browser-history sqlite database.
package historydb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/theimaginaryfoundation/browse-o-bot/history"
	"github.com/theimaginaryfoundation/browse-o-bot/history/fileutils"
	_ "modernc.org/sqlite"
)

const (
	// DriverCGO is mattn/go-sqlite3.
	DriverCGO = "sqlite3"
	// DriverPure is modernc.org/sqlite.
	DriverPure = "sqlite"

	// TimestampLayout is how the history table stores its updated column.
	TimestampLayout = "2006-01-02 15:04:05"
)

const fetchQuery = `SELECT id, url, title, content FROM history WHERE updated >= ? ORDER BY id`

// Store is a read-only handle on a history database.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens path read-only with the given driver ("sqlite3" or "sqlite").
// A missing file is history.ErrInputNotFound.
func Open(driver, path string) (*Store, error) {
	switch driver {
	case "":
		driver = DriverCGO
	case DriverCGO, DriverPure:
	default:
		return nil, fmt.Errorf("%w: unknown db driver %q (want %s or %s)", history.ErrConfiguration, driver, DriverCGO, DriverPure)
	}
	if err := fileutils.RequireFile(path); err != nil {
		return nil, fmt.Errorf("%w: history database %s", history.ErrInputNotFound, path)
	}

	db, err := sql.Open(driver, fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return nil, fmt.Errorf("historydb.Open: %w", err)
	}
	if _, err := db.Exec("PRAGMA query_only=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("historydb.Open: %s: %w", path, err)
	}
	return &Store{db: db, path: path}, nil
}

func (s *Store) Path() string { return s.path }

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Fetch returns records updated at or after since, ordered by id. NULL text columns read as "".
func (s *Store) Fetch(ctx context.Context, since time.Time) ([]history.HistoryRecord, error) {
	rows, err := s.db.QueryContext(ctx, fetchQuery, since.Format(TimestampLayout))
	if err != nil {
		return nil, fmt.Errorf("historydb.Fetch: query: %w", err)
	}
	defer rows.Close()

	var out []history.HistoryRecord
	for rows.Next() {
		var (
			id                  int64
			url, title, content sql.NullString
		)
		if err := rows.Scan(&id, &url, &title, &content); err != nil {
			return nil, fmt.Errorf("historydb.Fetch: scan: %w", err)
		}
		out = append(out, history.HistoryRecord{
			ID:      id,
			URL:     url.String,
			Title:   title.String,
			Content: content.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("historydb.Fetch: rows: %w", err)
	}
	return out, nil
}

// Since resolves the lower bound for a run: an explicit date or RFC3339 value wins,
// otherwise now minus days.
func Since(now time.Time, since string, days int) (time.Time, error) {
	if since != "" {
		if t, err := time.Parse(time.RFC3339, since); err == nil {
			return t, nil
		}
		if t, err := time.ParseInLocation(TimestampLayout, since, now.Location()); err == nil {
			return t, nil
		}
		if t, err := time.ParseInLocation(history.DateLayout, since, now.Location()); err == nil {
			return t, nil
		}
		return time.Time{}, fmt.Errorf("%w: cannot parse since %q (want YYYY-MM-DD or RFC3339)", history.ErrConfiguration, since)
	}
	if days <= 0 {
		return time.Time{}, fmt.Errorf("%w: days must be > 0 (got %d)", history.ErrConfiguration, days)
	}
	return now.AddDate(0, 0, -days), nil
}
