// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Structure:
//   - base.go: shared columns (id, timestamps, version, company and creator)
//   - closing.go: closing records and their append-only thread messages
//
// Money columns hold integer cents; attachments are stored as JSONB.
package models
