package cmd

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"

	_ "github.com/mattn/go-sqlite3"

	"github.com/adalundhe/subpop/core/stream"
)

const resultsSchema = `
CREATE TABLE IF NOT EXISTS run (
    id          INTEGER PRIMARY KEY CHECK (id = 1),
    bandwidth   REAL,
    n_feats     INTEGER NOT NULL,
    n_freqs     INTEGER NOT NULL,
    n_queries   INTEGER NOT NULL,
    squeezed    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS feat_names (
    ord   INTEGER PRIMARY KEY,
    name  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS embeddings (
    file   TEXT NOT NULL,
    query  INTEGER NOT NULL,
    kind   TEXT NOT NULL,
    dim    INTEGER NOT NULL,
    data   BLOB NOT NULL,
    PRIMARY KEY (file, query, kind)
);

CREATE TABLE IF NOT EXISTS region_weights (
    file    TEXT NOT NULL,
    query   INTEGER NOT NULL,
    weight  REAL NOT NULL,
    PRIMARY KEY (file, query)
);
`

// writeResults persists one run's embeddings. Vectors are packed as
// little-endian float64 blobs.
func writeResults(path string, files []string, res *stream.Result) error {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer db.Close()

	if _, err := db.Exec(resultsSchema); err != nil {
		return fmt.Errorf("apply results schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, t := range []string{"run", "feat_names", "embeddings", "region_weights"} {
		if _, err := tx.Exec("DELETE FROM " + t); err != nil {
			return err
		}
	}

	squeezed := 0
	if res.Squeezed {
		squeezed = 1
	}
	if _, err := tx.Exec(
		"INSERT INTO run (id, bandwidth, n_feats, n_freqs, n_queries, squeezed) VALUES (1, ?, ?, ?, ?, ?)",
		res.Bandwidth, res.NumFeats, res.NumFreqs, res.NumQueries, squeezed,
	); err != nil {
		return fmt.Errorf("save run row: %w", err)
	}

	for i, name := range res.FeatNames {
		if _, err := tx.Exec("INSERT INTO feat_names (ord, name) VALUES (?, ?)", i, name); err != nil {
			return fmt.Errorf("save feature name: %w", err)
		}
	}

	embStmt, err := tx.Prepare("INSERT INTO embeddings (file, query, kind, dim, data) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer embStmt.Close()
	rwStmt, err := tx.Prepare("INSERT INTO region_weights (file, query, weight) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer rwStmt.Close()

	for fi, file := range files {
		for j := range res.NumQueries {
			vec := res.LinearAt(fi, j)
			if _, err := embStmt.Exec(file, j, "linear", len(vec), packFloats(vec)); err != nil {
				return fmt.Errorf("save linear embedding %s/%d: %w", file, j, err)
			}
			if res.RFF != nil {
				vec = res.RFFAt(fi, j)
				if _, err := embStmt.Exec(file, j, "rff", len(vec), packFloats(vec)); err != nil {
					return fmt.Errorf("save rff embedding %s/%d: %w", file, j, err)
				}
			}
			if _, err := rwStmt.Exec(file, j, res.RegionWeights[fi][j]); err != nil {
				return fmt.Errorf("save region weight %s/%d: %w", file, j, err)
			}
		}
	}

	return tx.Commit()
}

func packFloats(v []float64) []byte {
	out := make([]byte, 8*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint64(out[i*8:], math.Float64bits(x))
	}
	return out
}
