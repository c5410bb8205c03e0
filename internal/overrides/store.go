// Package overrides persists staff override decisions for QC-failed
// interpretation records. An override marks a record as clinically
// releasable despite its QC status; only one override may be active
// per record at a time, and revocations are kept as an audit trail.
package overrides

import (
	"fmt"
	"time"

	"github.com/AzizElGhezal/NRIS-sub000/internal/domain"
)

// Supported storage backends.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// OverrideExport is the versioned envelope written by ExportJSON and
// read back by ImportJSON.
type OverrideExport struct {
	Version    string             `json:"version"`
	ExportedAt time.Time          `json:"exported_at"`
	Count      int                `json:"count"`
	Overrides  []*domain.Override `json:"overrides"`
}

// Open creates the override store selected by the configuration.
// The SQLite backend owns its database file; the Postgres backend
// shares the main database via databaseURL.
func Open(cfg domain.OverridesConfig, databaseURL string) (domain.OverrideStore, error) {
	switch cfg.Backend {
	case BackendSQLite:
		return NewSQLiteStore(cfg.SQLitePath)
	case BackendPostgres:
		return NewPostgresStoreFromURL(databaseURL)
	default:
		return nil, fmt.Errorf("unknown override store backend: %q", cfg.Backend)
	}
}
