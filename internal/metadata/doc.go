// Package metadata derives per-channel metadata tables from decoded
// recordings and reshapes them into the long/tidy form the warehouse ingests.
package metadata
