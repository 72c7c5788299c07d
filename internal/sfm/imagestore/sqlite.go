package imagestore

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/viewgraph-sfm/trifocal-init/internal/sfm/kernels"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore is a Store backed by a sqlite database holding one
// view_shape row per view and one pixel_feature row per feature.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLiteStore opens (creating if needed) a sqlite database at path
// and migrates it to the latest schema.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("imagestore: open %s: %w", path, err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// migrateUp applies all pending embedded migrations.
//
// Note: the returned migrate instance is never closed explicitly — the
// sqlite driver's Close() would close the underlying sql.DB, which this
// store manages separately via Close().
func (s *SQLiteStore) migrateUp() error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("imagestore: iofs source: %w", err)
	}

	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("imagestore: sqlite driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("imagestore: migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("imagestore: migrate up: %w", err)
	}

	return nil
}

type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...interface{}) { log.Printf("[imagestore migrate] "+format, v...) }
func (migrateLogger) Verbose() bool                          { return false }

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// RegisterView upserts a view's shape.
func (s *SQLiteStore) RegisterView(viewID string, shape Shape) error {
	_, err := s.db.Exec(
		`INSERT INTO view_shape (view_id, width, height, total_features) VALUES (?, ?, ?, ?)
		 ON CONFLICT(view_id) DO UPDATE SET width=excluded.width, height=excluded.height, total_features=excluded.total_features`,
		viewID, shape.Width, shape.Height, shape.TotalFeatures,
	)
	if err != nil {
		return fmt.Errorf("imagestore: register view %s: %w", viewID, err)
	}
	return nil
}

// InsertFeature upserts one feature's pixel coordinate.
func (s *SQLiteStore) InsertFeature(viewID string, featureIdx int, px kernels.Vec2) error {
	_, err := s.db.Exec(
		`INSERT INTO pixel_feature (view_id, feature_idx, x, y) VALUES (?, ?, ?, ?)
		 ON CONFLICT(view_id, feature_idx) DO UPDATE SET x=excluded.x, y=excluded.y`,
		viewID, featureIdx, px.X, px.Y,
	)
	if err != nil {
		return fmt.Errorf("imagestore: insert feature %s/%d: %w", viewID, featureIdx, err)
	}
	return nil
}

// LookupPixelFeats implements Store.
func (s *SQLiteStore) LookupPixelFeats(viewID string, idx []int) ([]kernels.Vec2, error) {
	out := make([]kernels.Vec2, len(idx))
	stmt, err := s.db.Prepare(`SELECT x, y FROM pixel_feature WHERE view_id = ? AND feature_idx = ?`)
	if err != nil {
		return nil, fmt.Errorf("imagestore: prepare lookup: %w", err)
	}
	defer stmt.Close()

	for i, fi := range idx {
		var x, y float64
		if err := stmt.QueryRow(viewID, fi).Scan(&x, &y); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("%w: view %s feature %d", ErrFeatureNotFound, viewID, fi)
			}
			return nil, fmt.Errorf("imagestore: lookup %s/%d: %w", viewID, fi, err)
		}
		out[i] = kernels.Vec2{X: x, Y: y}
	}

	return out, nil
}

// LookupShape implements Store.
func (s *SQLiteStore) LookupShape(viewID string) (Shape, error) {
	var shape Shape
	err := s.db.QueryRow(
		`SELECT width, height, total_features FROM view_shape WHERE view_id = ?`,
		viewID,
	).Scan(&shape.Width, &shape.Height, &shape.TotalFeatures)
	if errors.Is(err, sql.ErrNoRows) {
		return Shape{}, fmt.Errorf("%w: %s", ErrViewNotFound, viewID)
	}
	if err != nil {
		return Shape{}, fmt.Errorf("imagestore: lookup shape %s: %w", viewID, err)
	}
	return shape, nil
}
