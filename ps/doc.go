// Package ps provides the snapshot archive for SliceDB.
//
// The archive is backed by Git, using go-git for storage. Every snapshot
// is a commit of the database file, providing full history, restore to any
// point in time, and remote sync.
//
// Snapshots must be taken between session scopes, while no connection
// holds the database file open.
//
// # Memory Archive
//
// For testing or ephemeral archives:
//
//	archive, err := ps.NewMemoryArchive()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # File Archive
//
// For persistent storage, optionally cloned from a remote:
//
//	archive, err := ps.NewFileArchive("/path/to/archive", nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Snapshots
//
//	snapshot, _ := archive.Commit("sales.duckdb", identity, "nightly load")
//	archive.Tag("v1", &snapshot)
//	archive.Restore(snapshot.Id, "sales.duckdb")
//
// # Remote Sync
//
//	archive.AddRemote("origin", "git@github.com:acme/sales-archive.git")
//	archive.Push("origin", &ps.RemoteAuth{Type: ps.AuthTypeSSH})
//
// # Export and Import
//
// Database files can also be copied directly to and from S3, HTTP and
// file URLs without Git in the middle:
//
//	ps.Export("sales.duckdb", "s3://bucket/sales.duckdb", cfg)
//	ps.Import("https://example.com/sales.duckdb", "sales.duckdb", nil)
package ps
