//go:build cgo

package sqlite

import (
	_ "github.com/mattn/go-sqlite3"
)

const CGOEnabled = true

const driverName = "sqlite3"
