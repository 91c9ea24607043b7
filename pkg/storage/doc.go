// Package storage keeps small named blobs in a single directory.
//
// Writes go through a temporary dot file that is renamed into place, so a
// crash mid-write never leaves a truncated blob behind. Names are validated
// so callers can pass user supplied identifiers without risking a path
// escape.
//
// Usage:
//
//	m, err := storage.NewManager("sessions", 0600)
//	if err != nil {
//	    return err
//	}
//	if err := m.Save("alice", bytes.NewReader(blob)); err != nil {
//	    return err
//	}
//	data, err := m.Load("alice")
package storage
