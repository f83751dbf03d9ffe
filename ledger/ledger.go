// Package ledger keeps the append only record of water pumped by each dose.
// Rows are never updated or deleted.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	_ "modernc.org/sqlite"
)

const (
	// Fixed width and UTC so lexical order in the database is time order.
	timestampLayout = "2006-01-02 15:04:05.000000000"

	createSepticData = "CREATE TABLE IF NOT EXISTS SEPTIC_DATA(timestamp DATETIME, raw_sensor_voltage NUMERIC, amperage NUMERIC)"
	createWaterUsage = "CREATE TABLE IF NOT EXISTS WATER_USAGE_DATA(timestamp DATETIME, gallons_pumped NUMERIC)"
)

// Record is one finished dose.
type Record struct {
	Time    time.Time
	Gallons float64
}

// Point is a Record with the running total of all doses up to and including it.
type Point struct {
	Time    time.Time
	Gallons float64
	Total   float64
}

type Ledger struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at path. The handle is
// meant to be held for the lifetime of the process.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// One writer, one connection; keeps each insert its own committed transaction.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", path, err)
	}
	for _, stmt := range []string{createSepticData, createWaterUsage} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create tables: %w", err)
		}
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

// Record appends the volume pumped by the dose that started at t.
func (l *Ledger) Record(ctx context.Context, t time.Time, gallons float64) error {
	_, err := l.db.ExecContext(ctx,
		"INSERT INTO WATER_USAGE_DATA(timestamp, gallons_pumped) VALUES(?, ?)",
		t.UTC().Format(timestampLayout),
		gallons,
	)
	return err
}

// Records returns every dose sorted by time, oldest first.
func (l *Ledger) Records(ctx context.Context) ([]Record, error) {
	rows, err := l.db.QueryContext(ctx,
		"SELECT timestamp, gallons_pumped FROM WATER_USAGE_DATA ORDER BY timestamp ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var raw any
		var r Record
		if err := rows.Scan(&raw, &r.Gallons); err != nil {
			return nil, err
		}
		if r.Time, err = parseTimestamp(raw); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Rows written by older versions may not share the fixed width layout.
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Time.Before(records[j].Time)
	})
	return records, nil
}

// CumulativeSeries is the running total of gallons pumped over time.
func (l *Ledger) CumulativeSeries(ctx context.Context) ([]Point, error) {
	records, err := l.Records(ctx)
	if err != nil {
		return nil, err
	}
	return Cumulative(records), nil
}

// Cumulative computes the prefix sum of records that are already in time order.
func Cumulative(records []Record) []Point {
	points := make([]Point, len(records))
	total := 0.0
	for i, r := range records {
		total += r.Gallons
		points[i] = Point{Time: r.Time, Gallons: r.Gallons, Total: total}
	}
	return points
}

var parseLayouts = []string{
	timestampLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func parseTimestamp(raw any) (time.Time, error) {
	var s string
	switch v := raw.(type) {
	case time.Time:
		return v.UTC(), nil
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return time.Time{}, fmt.Errorf("unexpected timestamp type %T", raw)
	}
	for _, layout := range parseLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}
