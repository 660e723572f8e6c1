// Package export provides backup and restore of the performance log.
//
// # Formats
//
// JSON:
//   - Every record field, wrapped with export metadata (timestamp, record count)
//   - Can be re-imported with POST /v1/import
//
// CSV:
//   - One row per record with fixed columns in feature order
//   - Good for spreadsheets and pandas; export-only
//
// # HTTP API
//
// Export endpoint: GET /v1/export
// Query parameters:
//   - format: "json" or "csv" (default: json)
//   - component: only export records for this component (optional, repeatable)
//
// Example:
//
//	curl "http://localhost:5001/v1/export?format=csv" -o performance.csv
//
// Import endpoint: POST /v1/import
//
//	curl -X POST "http://localhost:5001/v1/import" \
//	  -H "Content-Type: application/json" \
//	  -d @backup.json
//
// Imported records are appended after the existing log in file order, so the
// latest-record semantics of the analyzer carry over. Invalid records are
// skipped and reported in ImportResult.Errors rather than failing the import.
package export
