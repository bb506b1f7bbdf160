package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"lcdmatch/logging"
	"lcdmatch/types"

	_ "github.com/mattn/go-sqlite3"
)

// ErrReferenceNotFound is returned when no reference has the requested name.
var ErrReferenceNotFound = errors.New("reference not found")

// InitDatabase initializes and returns a database connection
func InitDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS reference_patterns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		path TEXT NOT NULL,
		group_name TEXT NOT NULL DEFAULT '',
		format TEXT,
		width INTEGER,
		height INTEGER,
		size INTEGER,
		is_render INTEGER NOT NULL DEFAULT 0,
		average_hash INTEGER,
		perceptual_hash INTEGER,
		modified_at TEXT,
		registered_at TEXT,
		UNIQUE(path, group_name)
	);
	CREATE INDEX IF NOT EXISTS idx_reference_name ON reference_patterns(name);
	CREATE INDEX IF NOT EXISTS idx_reference_group ON reference_patterns(group_name);`

	if _, err = db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot create schema: %w", err)
	}

	// Catalogues created before render verdicts were stored lack the column
	var hasRenderColumn bool
	err = db.QueryRow("SELECT COUNT(*) FROM pragma_table_info('reference_patterns') WHERE name='is_render'").Scan(&hasRenderColumn)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("error checking for is_render column: %w", err)
	}

	if !hasRenderColumn {
		if _, err = db.Exec("ALTER TABLE reference_patterns ADD COLUMN is_render INTEGER NOT NULL DEFAULT 0;"); err != nil {
			db.Close()
			return nil, fmt.Errorf("error adding is_render column: %w", err)
		}
		logging.DebugLog("Added 'is_render' column to existing catalogue schema")
	}

	return db, nil
}

// OpenDatabase opens an existing database connection
func OpenDatabase(dbPath string) (*sql.DB, error) {
	return sql.Open("sqlite3", dbPath)
}

// CheckReferenceExists reports whether path is registered in group and
// returns the modification time stored for it.
func CheckReferenceExists(db *sql.DB, path string, group string) (bool, string, error) {
	var storedModTime string
	err := db.QueryRow("SELECT modified_at FROM reference_patterns WHERE path = ? AND group_name = ?", path, group).Scan(&storedModTime)
	if errors.Is(err, sql.ErrNoRows) {
		return false, "", nil
	}
	if err != nil {
		return false, "", fmt.Errorf("database error for %s: %w", path, err)
	}

	return true, storedModTime, nil
}

// StoreReference stores reference information in the database. Without
// forceRewrite an existing row is left untouched.
func StoreReference(db *sql.DB, info types.ReferenceInfo, forceRewrite bool) error {
	now := time.Now().Format(time.RFC3339)

	verb := "INSERT OR IGNORE"
	if forceRewrite {
		verb = "INSERT OR REPLACE"
	}

	stmt, err := db.Prepare(verb + ` INTO reference_patterns (
			name, path, group_name, format, width, height, size, is_render,
			average_hash, perceptual_hash, modified_at, registered_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("cannot prepare statement for %s: %w", info.Path, err)
	}
	defer stmt.Close()

	_, err = stmt.Exec(
		info.Name,
		info.Path,
		info.Group,
		info.Format,
		info.Width,
		info.Height,
		info.Size,
		info.IsRender,
		int64(info.AverageHash),
		int64(info.PerceptualHash),
		info.ModifiedAt,
		now,
	)
	if err != nil {
		return fmt.Errorf("cannot insert data for %s: %w", info.Path, err)
	}

	return nil
}

const selectColumns = `SELECT id, name, path, group_name, format, width, height, size, is_render,
	average_hash, perceptual_hash, modified_at, registered_at FROM reference_patterns`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReference(row rowScanner) (types.ReferenceInfo, error) {
	var (
		info          types.ReferenceInfo
		format        sql.NullString
		avgHash, pHsh int64
		modifiedAt    sql.NullString
		registeredAt  sql.NullString
	)

	err := row.Scan(&info.ID, &info.Name, &info.Path, &info.Group, &format, &info.Width, &info.Height,
		&info.Size, &info.IsRender, &avgHash, &pHsh, &modifiedAt, &registeredAt)
	if err != nil {
		return types.ReferenceInfo{}, err
	}

	info.Format = format.String
	info.AverageHash = uint64(avgHash)
	info.PerceptualHash = uint64(pHsh)
	info.ModifiedAt = modifiedAt.String
	info.RegisteredAt = registeredAt.String
	return info, nil
}

// GetReference looks a reference up by name. An empty group matches any
// group; when several rows share the name the most recently registered wins.
func GetReference(db *sql.DB, name string, group string) (types.ReferenceInfo, error) {
	row := db.QueryRow(selectColumns+` WHERE name = ? AND (group_name = ? OR ? = '')
		ORDER BY registered_at DESC, id DESC LIMIT 1`, name, group, group)

	info, err := scanReference(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.ReferenceInfo{}, fmt.Errorf("%w: %s", ErrReferenceNotFound, name)
	}
	if err != nil {
		return types.ReferenceInfo{}, fmt.Errorf("cannot read reference %s: %w", name, err)
	}
	return info, nil
}

// ListReferences returns the references of a group, or all of them when
// group is empty, ordered by name.
func ListReferences(db *sql.DB, group string) ([]types.ReferenceInfo, error) {
	rows, err := db.Query(selectColumns+` WHERE group_name = ? OR ? = '' ORDER BY name, group_name`, group, group)
	if err != nil {
		return nil, fmt.Errorf("database query error: %w", err)
	}
	defer rows.Close()

	var refs []types.ReferenceInfo
	for rows.Next() {
		info, err := scanReference(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning row: %w", err)
		}
		refs = append(refs, info)
	}
	return refs, rows.Err()
}

// CatalogStats contains statistics about the registered references
type CatalogStats struct {
	TotalReferences    int
	RenderedReferences int
	UniqueHashes       int
}

// GetCatalogStats retrieves statistics about a group, or the whole
// catalogue when group is empty
func GetCatalogStats(db *sql.DB, group string) (*CatalogStats, error) {
	var stats CatalogStats

	err := db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(is_render), 0), COUNT(DISTINCT perceptual_hash)
		FROM reference_patterns WHERE group_name = ? OR ? = ''`, group, group).
		Scan(&stats.TotalReferences, &stats.RenderedReferences, &stats.UniqueHashes)
	if err != nil {
		return nil, fmt.Errorf("failed to get catalogue stats: %w", err)
	}

	return &stats, nil
}
