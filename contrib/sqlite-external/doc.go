// Package sqliteexternal provides the optional CGO SQLite driver.
//
// To use github.com/mattn/go-sqlite3 instead of the default pure Go
// driver, build with:
//
//	CGO_ENABLED=1 go build -tags cgo_sqlite ./cmd/rectify
//
// internal/sqlite then imports this package and opens revision stores
// through it. Pure Go builds never link it.
package sqliteexternal
