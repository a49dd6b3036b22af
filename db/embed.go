// Package db embeds the database schema applied at startup.
package db

import _ "embed"

// Schema contains the idempotent DDL for all platform tables and the
// change-feed triggers.
//
//go:embed migrations/001_schema.sql
var Schema string
