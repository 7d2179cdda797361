// Package models contains GORM persistence models for the ledger tables.
// Domain aggregates carry no ORM tags; each model converts to and from the
// aggregate's State snapshot.
//
// Structure:
//   - base.go: shared columns (ID, timestamps, version)
//   - account.go, journal.go, document.go, payment.go, reconciliation.go: one file per aggregate
//   - outbox.go: transactional outbox rows for event delivery
package models
