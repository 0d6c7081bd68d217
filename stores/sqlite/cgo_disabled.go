//go:build !cgo

package sqlite

import (
	_ "modernc.org/sqlite"
)

// CGOEnabled reports whether the sqlite store is built with cgo support.
// The go-sqlite3 driver requires cgo; without it the pure Go driver is used.
const CGOEnabled = false

const driverName = "sqlite"
