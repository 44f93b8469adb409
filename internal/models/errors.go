package models

import "errors"

// Sentinel errors shared across repositories and services. Stale and
// duplicate actions are NOT errors; they come back as outcome values.
var (
	// ErrStorage marks any durable-store failure. Callers may retry reads;
	// writes fail closed (no credit, no point change).
	ErrStorage = errors.New("storage error")

	// ErrAlreadyReferred is returned when inserting a ReferralRecord for a
	// referred user that already has one (UNIQUE collision).
	ErrAlreadyReferred = errors.New("user already referred")

	// ErrUserNotFound is returned by username lookups only; ID-keyed reads
	// report zero values instead.
	ErrUserNotFound = errors.New("user not found")

	// ErrNoQuestions means the pool for a subject/difficulty is empty or
	// missing.
	ErrNoQuestions = errors.New("no questions available")
)
