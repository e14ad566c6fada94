// Package edf decodes and encodes EDF/EDF+ biosignal containers.
//
// The codec keeps the original header bytes alongside the parsed view so an
// unmodified recording re-encodes bit-identically and a header redaction
// rewrites only the identification fields it touched.
package edf
