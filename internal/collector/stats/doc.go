// Package stats reads one-shot Docker resource statistics for running
// containers. Stats are enrichment; a failed read degrades to an
// absent entry for that container.
package stats
