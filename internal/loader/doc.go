// Package loader implements the ingestion pipelines that bulk-load the
// geospatial source datasets into PostgreSQL.
//
// Every loader runs the same stage sequence on a single connection:
//
//	Connect -> Truncate -> Stream -> Finalize
//
// Connect retries transient failures at a fixed interval and is the only
// time-bounded stage. Truncate empties the target table so reruns are
// idempotent. Stream reads the source record-by-record, pushing candidates
// through validity filtering, canonical-grid indexing, and deduplication
// into a COPY buffer that flushes at a size threshold and once more at
// end-of-stream. Finalize refreshes planner statistics.
//
// Input-side anomalies (out-of-bounds mappings, duplicates, malformed
// records, unsupported geometry) are counted and skipped; connection and
// store errors abort the run. A run is all-or-nothing: the recovery path
// for an aborted run is rerunning the loader from the start.
package loader
