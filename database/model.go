package database

import "time"

// FlowRecord is a single parsed conn.log line, shaped for insertion into
// conn_log. OrigP/RespP/Duration/OrigBytes/RespBytes are pointers rather
// than a wrapper type: the clickhouse-go driver maps a nil pointer straight
// onto a Nullable(...) column, so the "-" absent sentinel from Zeek's log
// needs no extra indirection once parsed, and absent stays distinguishable
// from the zero value.
type FlowRecord struct {
	Ts        time.Time `ch:"ts"`
	UID       string    `ch:"uid"`
	OrigH     string    `ch:"id_orig_h"`
	OrigP     *uint16   `ch:"id_orig_p"`
	RespH     string    `ch:"id_resp_h"`
	RespP     *uint16   `ch:"id_resp_p"`
	Proto     string    `ch:"proto"`
	Service   string    `ch:"service"`
	Duration  *float64  `ch:"duration"`
	OrigBytes *int64    `ch:"orig_bytes"`
	RespBytes *int64    `ch:"resp_bytes"`
	ConnState string    `ch:"conn_state"`
}

// DetectionResult is a single scheduler-pass verdict for one host, shaped
// for insertion into detection_results.
type DetectionResult struct {
	Host        string    `ch:"host"`
	AnalyzedAt  time.Time `ch:"analyzed_at"`
	PScore      float64   `ch:"p_score"`
	FFTPeak     float64   `ch:"fft_peak"`
	AutocorrMax float64   `ch:"autocorr_max"`
	EntropyNorm float64   `ch:"entropy_norm"`
	SampleCount uint32    `ch:"sample_count"`
	Detected    bool      `ch:"detected"`
	PassID      string    `ch:"pass_id"`
}
