// Package db embeds the database schema.
package db

import _ "embed"

// Schema creates every table used by the checkout service. All statements
// are idempotent.
//
//go:embed migrations/001_schema.sql
var Schema string
