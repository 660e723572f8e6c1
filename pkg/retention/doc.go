/*
Package retention applies a storage.RetentionPolicy to the performance log.

The log is append-only and, by default, grows without bound: the default
policy is storage.KeepAll and a retention pass removes nothing. Setting
RENDERSCOPE_RETENTION_MAX_RECORDS switches the server to storage.KeepLast,
which trims the oldest records once the log exceeds the limit.

Retention is the only operation allowed to remove records. It never edits a
record and never reorders the survivors, so "latest record for component"
keeps its meaning across passes.

	runner := retention.New(store, retention.PolicyFor(maxRecords), logger)
	removed, err := runner.Run(ctx)
*/
package retention
