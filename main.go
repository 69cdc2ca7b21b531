package SliceDB

import (
	"context"

	"github.com/nickyhof/SliceDB/core"
	"github.com/nickyhof/SliceDB/db"
	"github.com/nickyhof/SliceDB/ps"
)

// Instance names a DuckDB database file. Opening an instance does not
// connect; connections are made per session scope.
type Instance struct {
	Path string
}

// Open returns an instance bound to the database file at path. The engine
// creates the file on first session entry if it does not exist.
func Open(path string) *Instance {
	return &Instance{Path: path}
}

// Session runs fn inside a transaction-scoped session against the
// instance's database. See db.Run for the commit and rollback contract.
func (instance *Instance) Session(ctx context.Context, fn func(*db.Session) error) error {
	return db.Run(ctx, instance.Path, fn)
}

// Snapshot commits the current database file to the archive. Only call
// between session scopes; the file must not be held open.
func (instance *Instance) Snapshot(archive *ps.Archive, identity core.Identity, message string) (ps.Snapshot, error) {
	return archive.Commit(instance.Path, identity, message)
}

// Restore overwrites the database file with the archived content of the
// given snapshot. Only call between session scopes.
func (instance *Instance) Restore(archive *ps.Archive, id string) error {
	return archive.Restore(id, instance.Path)
}

// Export copies the database file to url (s3://, file:// or a plain path).
func (instance *Instance) Export(url string, cfg *ps.S3Config) error {
	return ps.Export(instance.Path, url, cfg)
}

// Import replaces the database file with the content at url (s3://,
// http(s)://, file:// or a plain path).
func (instance *Instance) Import(url string, cfg *ps.S3Config) error {
	return ps.Import(url, instance.Path, cfg)
}
