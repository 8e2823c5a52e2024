package store

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/deb4uuu-coder/stock-strategy-alert/internal/model"
)

const dayLayout = "2006-01-02"

// SQLiteCache persists fetched daily bars to a SQLite database.
type SQLiteCache struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteCache opens (or creates) the SQLite database and runs migrations.
func NewSQLiteCache(dbPath string) (*SQLiteCache, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	c := &SQLiteCache{db: db}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite bar cache opened: %s", dbPath)
	return c, nil
}

func (c *SQLiteCache) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS daily_bars (
			symbol TEXT    NOT NULL,
			day    TEXT    NOT NULL,
			open   REAL    NOT NULL,
			close  REAL    NOT NULL,
			PRIMARY KEY (symbol, day)
		)`,
		`CREATE TABLE IF NOT EXISTS fetches (
			symbol     TEXT PRIMARY KEY,
			fetched_on TEXT    NOT NULL,
			requested  INTEGER NOT NULL,
			source     TEXT
		)`,
	}

	for _, s := range stmts {
		if _, err := c.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// Load returns the cached bars for symbol if they were fetched on day with at
// least the requested lookback. ok is false on a miss.
func (c *SQLiteCache) Load(symbol string, requested int, day time.Time) (bars []model.Bar, ok bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var fetchedOn string
	var had int
	err = c.db.QueryRow(`SELECT fetched_on, requested FROM fetches WHERE symbol = ?`, symbol).Scan(&fetchedOn, &had)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if fetchedOn != day.Format(dayLayout) || had < requested {
		return nil, false, nil
	}

	rows, err := c.db.Query(`SELECT day, open, close FROM daily_bars WHERE symbol = ? ORDER BY day`, symbol)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	for rows.Next() {
		var d string
		var b model.Bar
		if err := rows.Scan(&d, &b.Open, &b.Close); err != nil {
			return nil, false, err
		}
		if b.Date, err = time.Parse(dayLayout, d); err != nil {
			return nil, false, fmt.Errorf("parse day %q: %w", d, err)
		}
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	if requested > 0 && len(bars) > requested {
		bars = bars[len(bars)-requested:]
	}
	return bars, true, nil
}

// Save replaces the cached bars of symbol.
func (c *SQLiteCache) Save(symbol, source string, requested int, bars []model.Bar, day time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tx, err := c.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM daily_bars WHERE symbol = ?`, symbol); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO daily_bars (symbol, day, open, close) VALUES (?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, b := range bars {
		if _, err := stmt.Exec(symbol, b.Date.Format(dayLayout), b.Open, b.Close); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO fetches (symbol, fetched_on, requested, source) VALUES (?,?,?,?)`,
		symbol, day.Format(dayLayout), requested, source); err != nil {
		return err
	}
	return tx.Commit()
}

func (c *SQLiteCache) Close() error {
	log.Println("[INFO] closing sqlite bar cache")
	return c.db.Close()
}
