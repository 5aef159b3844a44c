// Package sqliteexternal provides the optional CGO SQLite driver.
//
// To use the CGO driver (github.com/mattn/go-sqlite3):
//
//	CGO_ENABLED=1 go build -tags cgo_sqlite ./...
//
// core/sqlite imports this package under the cgo_sqlite tag, so callers
// keep using sqlite.Open. Without the tag the pure Go modernc.org/sqlite
// driver is used and this package compiles to nothing.
package sqliteexternal
