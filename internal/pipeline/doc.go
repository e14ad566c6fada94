// Package pipeline orchestrates one anonymization run: discover pending
// recordings, process each one in isolation, then publish the staged outputs.
//
// A failed recording is journaled and counted but never stops the run. The
// staging area is deleted on every exit path so personal data cannot outlive
// a run on local disk.
package pipeline
