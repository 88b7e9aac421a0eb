// Package repository provides data access interfaces and PostgreSQL
// implementations for experiment metadata, run links, and extraction jobs.
//
// Interfaces are defined here so that business logic can depend on
// abstractions, making it possible to swap implementations or use mocks
// in tests.
package repository

import (
	"github.com/seqcore/sra-metadata-service/internal/database"
)

// DBTX is re-exported from the database package for convenience.
// It allows repositories to work with both *pgxpool.Pool and pgx.Tx.
type DBTX = database.DBTX
