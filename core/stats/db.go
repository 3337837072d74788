package stats

import (
	"database/sql"
	_ "embed"
	"fmt"
	"math"

	_ "github.com/mattn/go-sqlite3"

	"github.com/adalundhe/subpop/core/table"
)

//go:embed schema.sql
var schemaSQL string

// Save writes the bundle to a SQLite database at path, replacing any bundle
// already stored there. NaN sample cells are stored as NULL.
func Save(path string, b *Bundle) error {
	if err := b.Validate(); err != nil {
		return err
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("stats: open %s: %w", path, err)
	}
	defer db.Close()

	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("stats: apply schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("stats: begin save: %w", err)
	}
	defer tx.Rollback()

	for _, t := range []string{"bundle", "real_stats", "value_counts", "sample_columns", "sample_values"} {
		if _, err := tx.Exec("DELETE FROM " + t); err != nil {
			return fmt.Errorf("stats: clear %s: %w", t, err)
		}
	}

	if _, err := tx.Exec(
		"INSERT INTO bundle (id, version, n_total) VALUES (1, ?, ?)",
		b.Version, b.NTotal,
	); err != nil {
		return fmt.Errorf("stats: save bundle row: %w", err)
	}

	realStmt, err := tx.Prepare("INSERT INTO real_stats (feat, mean, std) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("stats: prepare real_stats: %w", err)
	}
	defer realStmt.Close()
	for f, m := range b.RealMeans {
		if _, err := realStmt.Exec(f, m, b.RealStds[f]); err != nil {
			return fmt.Errorf("stats: save real stat %q: %w", f, err)
		}
	}

	vcStmt, err := tx.Prepare("INSERT INTO value_counts (feat, ord, category, count) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("stats: prepare value_counts: %w", err)
	}
	defer vcStmt.Close()
	for f, vc := range b.ValueCounts {
		for i, v := range vc.Values {
			if _, err := vcStmt.Exec(f, i, v, vc.Counts[i]); err != nil {
				return fmt.Errorf("stats: save value count %q: %w", f, err)
			}
		}
	}

	if b.Sample != nil {
		colStmt, err := tx.Prepare("INSERT INTO sample_columns (ord, name) VALUES (?, ?)")
		if err != nil {
			return fmt.Errorf("stats: prepare sample_columns: %w", err)
		}
		defer colStmt.Close()
		valStmt, err := tx.Prepare("INSERT INTO sample_values (row, col, value) VALUES (?, ?, ?)")
		if err != nil {
			return fmt.Errorf("stats: prepare sample_values: %w", err)
		}
		defer valStmt.Close()

		for i, name := range b.Sample.Columns() {
			if _, err := colStmt.Exec(i, name); err != nil {
				return fmt.Errorf("stats: save sample column %q: %w", name, err)
			}
			col, err := b.Sample.Column(name)
			if err != nil {
				return err
			}
			for r, v := range col {
				var cell any
				if !math.IsNaN(v) {
					cell = v
				}
				if _, err := valStmt.Exec(r, i, cell); err != nil {
					return fmt.Errorf("stats: save sample cell: %w", err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("stats: commit save: %w", err)
	}
	return nil
}

// Load reads a bundle previously written by Save.
func Load(path string) (*Bundle, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("stats: open %s: %w", path, err)
	}
	defer db.Close()

	b := &Bundle{
		RealMeans:   make(map[string]float64),
		RealStds:    make(map[string]float64),
		ValueCounts: make(map[string]*Categories),
	}
	if err := db.QueryRow("SELECT version, n_total FROM bundle WHERE id = 1").
		Scan(&b.Version, &b.NTotal); err != nil {
		return nil, fmt.Errorf("stats: load bundle row: %w", err)
	}

	rows, err := db.Query("SELECT feat, mean, std FROM real_stats")
	if err != nil {
		return nil, fmt.Errorf("stats: load real_stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var f string
		var m, s float64
		if err := rows.Scan(&f, &m, &s); err != nil {
			return nil, fmt.Errorf("stats: scan real stat: %w", err)
		}
		b.RealMeans[f] = m
		b.RealStds[f] = s
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	vcRows, err := db.Query("SELECT feat, category, count FROM value_counts ORDER BY feat, ord")
	if err != nil {
		return nil, fmt.Errorf("stats: load value_counts: %w", err)
	}
	defer vcRows.Close()
	for vcRows.Next() {
		var f string
		var v float64
		var n int64
		if err := vcRows.Scan(&f, &v, &n); err != nil {
			return nil, fmt.Errorf("stats: scan value count: %w", err)
		}
		vc := b.ValueCounts[f]
		if vc == nil {
			vc = &Categories{}
			b.ValueCounts[f] = vc
		}
		vc.Values = append(vc.Values, v)
		vc.Counts = append(vc.Counts, n)
	}
	if err := vcRows.Err(); err != nil {
		return nil, err
	}

	sample, err := loadSample(db)
	if err != nil {
		return nil, err
	}
	b.Sample = sample

	return b, b.Validate()
}

func loadSample(db *sql.DB) (*table.Batch, error) {
	colRows, err := db.Query("SELECT name FROM sample_columns ORDER BY ord")
	if err != nil {
		return nil, fmt.Errorf("stats: load sample columns: %w", err)
	}
	defer colRows.Close()
	var cols []string
	for colRows.Next() {
		var name string
		if err := colRows.Scan(&name); err != nil {
			return nil, err
		}
		cols = append(cols, name)
	}
	if err := colRows.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, nil
	}

	var nRows int
	if err := db.QueryRow("SELECT COALESCE(MAX(row) + 1, 0) FROM sample_values").Scan(&nRows); err != nil {
		return nil, fmt.Errorf("stats: count sample rows: %w", err)
	}
	sample := table.New(cols, nRows)

	valRows, err := db.Query("SELECT row, col, value FROM sample_values")
	if err != nil {
		return nil, fmt.Errorf("stats: load sample values: %w", err)
	}
	defer valRows.Close()
	for valRows.Next() {
		var r, c int
		var v sql.NullFloat64
		if err := valRows.Scan(&r, &c, &v); err != nil {
			return nil, fmt.Errorf("stats: scan sample cell: %w", err)
		}
		if v.Valid {
			sample.Set(r, cols[c], v.Float64)
		}
	}
	return sample, valRows.Err()
}
