package pins

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/pinmap/internal/types"
	_ "github.com/lib/pq"  // PostgreSQL driver
	_ "modernc.org/sqlite" // SQLite driver
)

// Driver names accepted by OpenSQLStore.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// SQLStore keeps pins in a relational table, one row per pin.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// OpenSQLStore opens a database and creates the pins table if needed.
func OpenSQLStore(driver, dsn string) (*SQLStore, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported pin store driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == DriverSQLite {
		if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
	}

	s := &SQLStore{db: db, driver: driver}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return s, nil
}

func (s *SQLStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS pins (
			id TEXT PRIMARY KEY,
			sort_order INTEGER NOT NULL,
			lat DOUBLE PRECISION NOT NULL,
			lon DOUBLE PRECISION NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			video_link TEXT NOT NULL DEFAULT '',
			pin_date TEXT NOT NULL DEFAULT '',
			emoji TEXT NOT NULL DEFAULT '',
			flag_code TEXT NOT NULL DEFAULT '',
			location_id TEXT NOT NULL DEFAULT ''
		)`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS pin_store_meta (name TEXT PRIMARY KEY, value TEXT NOT NULL)`)
	return err
}

// rebind rewrites "?" placeholders to "$n" for postgres.
func (s *SQLStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// Load returns all pins in saved order. A store that was never saved
// yields ErrNotFound.
func (s *SQLStore) Load(ctx context.Context) ([]types.Pin, error) {
	var saved int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM pin_store_meta WHERE name = 'saved_at'").Scan(&saved); err != nil {
		return nil, fmt.Errorf("failed to query store state: %w", err)
	}
	if saved == 0 {
		return nil, ErrNotFound
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, lat, lon, title, video_link, pin_date, emoji, flag_code, location_id
		FROM pins ORDER BY sort_order`)
	if err != nil {
		return nil, fmt.Errorf("failed to query pins: %w", err)
	}
	defer rows.Close()

	list := []types.Pin{}
	for rows.Next() {
		var p types.Pin
		if err := rows.Scan(&p.ID, &p.Lat, &p.Lon, &p.Title, &p.VideoLink, &p.Date, &p.Emoji, &p.FlagCode, &p.LocationID); err != nil {
			return nil, fmt.Errorf("failed to scan pin: %w", err)
		}
		list = append(list, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read pins: %w", err)
	}
	return list, nil
}

// Save replaces the stored collection in one transaction.
func (s *SQLStore) Save(ctx context.Context, list []types.Pin) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM pins"); err != nil {
		return fmt.Errorf("failed to clear pins: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, s.rebind(`INSERT INTO pins
		(id, sort_order, lat, lon, title, video_link, pin_date, emoji, flag_code, location_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, p := range list {
		if _, err := stmt.ExecContext(ctx, p.ID, i, p.Lat, p.Lon, p.Title, p.VideoLink, p.Date, p.Emoji, p.FlagCode, p.LocationID); err != nil {
			return fmt.Errorf("failed to insert pin %s: %w", p.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM pin_store_meta WHERE name = 'saved_at'"); err != nil {
		return fmt.Errorf("failed to update store state: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.rebind("INSERT INTO pin_store_meta (name, value) VALUES ('saved_at', ?)"),
		time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("failed to update store state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
