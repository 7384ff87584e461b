// Package db carries the SQL schema compiled into the binary, so the server
// and the seeder can migrate a fresh database without shipping files.
package db

import _ "embed"

// Schema is the idempotent DDL for the products, customers, codes, and
// orders tables.
//
//go:embed migrations/001_schema.sql
var Schema string
