package database

// connLogTable is the ClickHouse DDL for the flow store. It mirrors the
// Zeek conn.log fields the ingester parses, keyed so repeated ingestion
// of the same uid is idempotent.
const connLogTable = `
CREATE TABLE IF NOT EXISTS {database:Identifier}.conn_log (
	ts DateTime64(6, 'UTC'),
	uid String,
	id_orig_h String,
	id_orig_p Nullable(UInt16),
	id_resp_h String,
	id_resp_p Nullable(UInt16),
	proto LowCardinality(String),
	service LowCardinality(String),
	duration Nullable(Float64),
	orig_bytes Nullable(Int64),
	resp_bytes Nullable(Int64),
	conn_state LowCardinality(String),
	ingested_at DateTime64(6, 'UTC') DEFAULT now64(6, 'UTC')
) ENGINE = ReplacingMergeTree(ingested_at)
ORDER BY (id_orig_h, ts, uid)
`

// detectionResultsTable is the ClickHouse DDL for the detection store.
// One row per (host, analyzed_at) scheduler pass, whether or not the
// host crossed the detection threshold.
const detectionResultsTable = `
CREATE TABLE IF NOT EXISTS {database:Identifier}.detection_results (
	host String,
	analyzed_at DateTime64(6, 'UTC'),
	p_score Float64,
	fft_peak Float64,
	autocorr_max Float64,
	entropy_norm Float64,
	sample_count UInt32,
	detected Bool,
	pass_id String
) ENGINE = MergeTree
ORDER BY (host, analyzed_at)
`

// tables lists every table created against a freshly selected database,
// in dependency order.
var tables = []string{
	connLogTable,
	detectionResultsTable,
}
