// Package db embeds the schema applied at startup.
package db

import _ "embed"

// Schema is the idempotent DDL for the products, buyers, and orders tables.
//
//go:embed migrations/001_schema.sql
var Schema string
