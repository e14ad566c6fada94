// Package journal tracks which recordings still require processing and how
// each pipeline run ended, persisted in SQLite.
package journal
