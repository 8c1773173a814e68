// Package ingest tails a Zeek-style conn.log and turns each line into a
// database.FlowRecord ready for the flow store.
package ingest

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/activecm/beaconwatch/database"
)

// ErrTooFewFields is returned when a line has fewer than the configured
// minimum number of tab-separated fields.
var ErrTooFewFields = errors.New("line has too few fields")

const absentField = "-"

// field indices within the fixed 12-field conn.log record.
const (
	fieldTS = iota
	fieldUID
	fieldOrigH
	fieldOrigP
	fieldRespH
	fieldRespP
	fieldProto
	fieldService
	fieldDuration
	fieldOrigBytes
	fieldRespBytes
	fieldConnState
	minConnLogFields
)

// ParseLine parses one tab-separated conn.log line into a FlowRecord.
// Lines beginning with '#' (Zeek's directive/header lines) or that are
// blank are the caller's responsibility to skip before calling ParseLine.
func ParseLine(line string, minFields int) (database.FlowRecord, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < minFields {
		return database.FlowRecord{}, fmt.Errorf("%w: got %d, want at least %d", ErrTooFewFields, len(fields), minFields)
	}

	ts, err := parseTimestamp(fields[fieldTS])
	if err != nil {
		return database.FlowRecord{}, fmt.Errorf("parsing ts: %w", err)
	}

	origP, err := parseUint16(fields[fieldOrigP])
	if err != nil {
		return database.FlowRecord{}, fmt.Errorf("parsing id.orig_p: %w", err)
	}

	respP, err := parseUint16(fields[fieldRespP])
	if err != nil {
		return database.FlowRecord{}, fmt.Errorf("parsing id.resp_p: %w", err)
	}

	rec := database.FlowRecord{
		Ts:        ts,
		UID:       fields[fieldUID],
		OrigH:     fields[fieldOrigH],
		OrigP:     origP,
		RespH:     fields[fieldRespH],
		RespP:     respP,
		Proto:     fields[fieldProto],
		Service:   valueOrEmpty(fields[fieldService]),
		ConnState: fields[fieldConnState],
	}

	if rec.Duration, err = parseOptionalFloat(fields[fieldDuration]); err != nil {
		return database.FlowRecord{}, fmt.Errorf("parsing duration: %w", err)
	}
	if rec.OrigBytes, err = parseOptionalInt(fields[fieldOrigBytes]); err != nil {
		return database.FlowRecord{}, fmt.Errorf("parsing orig_bytes: %w", err)
	}
	if rec.RespBytes, err = parseOptionalInt(fields[fieldRespBytes]); err != nil {
		return database.FlowRecord{}, fmt.Errorf("parsing resp_bytes: %w", err)
	}

	return rec, nil
}

func valueOrEmpty(v string) string {
	if v == absentField {
		return ""
	}
	return v
}

func parseTimestamp(v string) (time.Time, error) {
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return time.Time{}, err
	}
	wholeSecs := int64(secs)
	nanos := int64((secs - float64(wholeSecs)) * 1e9)
	return time.Unix(wholeSecs, nanos).UTC(), nil
}

func parseUint16(v string) (*uint16, error) {
	if v == absentField {
		return nil, nil
	}
	n, err := strconv.ParseUint(v, 10, 16)
	if err != nil {
		return nil, err
	}
	parsed := uint16(n)
	return &parsed, nil
}

func parseOptionalFloat(v string) (*float64, error) {
	if v == absentField {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func parseOptionalInt(v string) (*int64, error) {
	if v == absentField {
		return nil, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// IsDirectiveOrBlank reports whether a raw log line should be skipped
// outright instead of being handed to ParseLine (Zeek '#'-prefixed header
// lines, and blank lines).
func IsDirectiveOrBlank(line string) bool {
	return line == "" || strings.HasPrefix(line, "#")
}
