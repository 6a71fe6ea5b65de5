package chimera

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// readMarkersSQLite reads marker records from a SQLite catalog. The
// expected schema is a single markers table with one row per record;
// species is a comma separated list in a text column.
//
//	CREATE TABLE markers (
//		id TEXT PRIMARY KEY,
//		category TEXT NOT NULL,
//		value TEXT NOT NULL,
//		species TEXT NOT NULL,
//		locus TEXT NOT NULL,
//		operation TEXT NOT NULL,
//		payload TEXT,
//		confidence REAL NOT NULL,
//		citation TEXT
//	);
//
// Row-level problems surface later as validation skips; only a
// missing table or unreadable file fails the load
func readMarkersSQLite(path string) (records []MarkerRecord, err error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite catalog: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	rows, err := db.Query(
		`SELECT id, category, value, species, locus, operation,
			COALESCE(payload, ''), confidence, COALESCE(citation, '')
		FROM markers`,
	)
	if err != nil {
		return nil, fmt.Errorf("query markers table: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			r       MarkerRecord
			cat     string
			species string
		)
		if err := rows.Scan(
			&r.ID, &cat, &r.Value, &species, &r.Locus,
			(*string)(&r.Op), &r.Payload, &r.Confidence, &r.Citation,
		); err != nil {
			return nil, fmt.Errorf("scan marker row: %w", err)
		}

		r.Category = Category(cat)
		for _, sp := range strings.Split(species, ",") {
			if sp = strings.TrimSpace(sp); sp != "" {
				r.Species = append(r.Species, sp)
			}
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read marker rows: %w", err)
	}

	return records, nil
}
