// Package SliceDB processes DuckDB tables larger than available memory by
// pulling them out in bounded-size slices, transforming them, and pushing
// results back, all inside a single atomic transaction scope.
//
// # Quick Start
//
//	instance := SliceDB.Open("sample.duckdb")
//
//	err := instance.Session(ctx, func(s *db.Session) error {
//	    for frame, err := range s.IterChunk("events", 100_000) {
//	        if err != nil {
//	            return err
//	        }
//	        if err := s.Push(transform(frame), "events_out"); err != nil {
//	            return err
//	        }
//	    }
//	    return nil
//	})
//
// Everything inside the session scope is one transaction: a nil return
// commits, an error or panic rolls everything back. The single exception
// is UDF registration (db.Session.Regfn), which is a documented commit
// point.
//
// # Slicing Strategies
//
// Three cursor strategies partition a table into an ordered sequence of
// in-memory frames, each backed by an ephemeral index so slicing avoids
// full scans:
//   - IterGroup: one frame per distinct key tuple over named columns
//   - IterWindow: half-open windows over a reference column, with
//     independent window and step strides (overlapping or gapped windows)
//   - IterChunk: fixed-size runs of the table's intrinsic rowid
//
// # Snapshots and Sharing
//
// The ps package archives the database file in a Git repository between
// sessions and copies it to or from S3, HTTP and local locations:
//
//	archive, _ := ps.NewFileArchive("/var/lib/slicedb/archive", nil)
//	instance.Snapshot(&archive, identity, "nightly load")
//	instance.Export("s3://bucket/backups/sample.duckdb", nil)
package SliceDB
