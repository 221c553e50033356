// Package stats derives display statistics from extracted text.
package stats
