// Package pagination provides paging and sorting for CLI listings.
//
// It holds the --limit/--offset and --page/--page-size flag model, the
// metadata emitted alongside paged JSON output, and a record sorter keyed by
// field name.
package pagination
