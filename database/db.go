package database

import (
	"context"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/activecm/beaconwatch/config"

	clickhouse "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

var ErrInvalidDatabaseConnection = fmt.Errorf("database connection is nil")

// DB is the workhorse container for messing with the database.
type DB struct {
	Conn     driver.Conn
	selected string
	ctx      context.Context
	cancel   context.CancelFunc
}

// GetSelectedDB returns the name of the target database of db connection
func (db *DB) GetSelectedDB() string {
	return db.selected
}

// QueryParameters generates ClickHouse query parameters by creating a context with the specified parameters in it
func (db *DB) QueryParameters(params clickhouse.Parameters) context.Context {
	return clickhouse.Context(db.ctx, clickhouse.WithParameters(params))
}

// GetContext returns the context for the database connection
func (db *DB) GetContext() context.Context {
	return db.ctx
}

// getConn returns the driver connection
func (db *DB) getConn() driver.Conn {
	return db.Conn
}

// Close releases the underlying connection and cancels the database's context, if any.
func (db *DB) Close() error {
	if db.cancel != nil {
		db.cancel()
	}
	if db.Conn == nil {
		return nil
	}
	return db.Conn.Close()
}

// ConnectToDB connects to the given database name, creating it and its tables if they
// do not already exist.
func ConnectToDB(ctx context.Context, dbName string, cfg *config.Config, cancel context.CancelFunc) (*DB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Env.DBConnection},
		Auth: clickhouse.Auth{
			Database: "default",
			Username: cfg.Env.DBUsername,
			Password: cfg.Env.DBPassword,
		},
		DialContext: func(ctx context.Context, addr string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "tcp", addr)
		},
		Debug: false,
		Debugf: func(format string, v ...any) {
			log.Println(format, v)
		},
		Settings: clickhouse.Settings{
			"max_execution_time": cfg.Database.MaxQueryExecutionTime,
			"mutations_sync":     1,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		DialTimeout:          time.Second * 120,
		MaxOpenConns:         50,
		MaxIdleConns:         50,
		ConnMaxLifetime:      time.Duration(1) * time.Hour,
		ConnOpenStrategy:     clickhouse.ConnOpenInOrder,
		BlockBufferSize:      10,
		MaxCompressionBuffer: 10240,

		ClientInfo: clickhouse.ClientInfo{
			Products: []struct {
				Name    string
				Version string
			}{
				{Name: "beaconwatch", Version: "0.1"},
			},
		},
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(ctx); err != nil {
		return nil, err
	}

	if err := conn.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", dbName)); err != nil {
		return nil, fmt.Errorf("unable to create database %s: %w", dbName, err)
	}

	db := &DB{Conn: conn, ctx: ctx, cancel: cancel, selected: dbName}

	if err := db.createTables(ctx); err != nil {
		return nil, err
	}

	return db, nil
}

// createTables creates every table this database needs, if they do not already exist.
func (db *DB) createTables(ctx context.Context) error {
	for _, ddl := range tables {
		tableCtx := clickhouse.Context(ctx, clickhouse.WithParameters(clickhouse.Parameters{
			"database": db.selected,
		}))
		if err := db.Conn.Exec(tableCtx, ddl); err != nil {
			return fmt.Errorf("unable to create table: %w", err)
		}
	}
	return nil
}

// InsertDetectionResult inserts a single scheduler-pass detection record for a host.
func (db *DB) InsertDetectionResult(ctx context.Context, rec DetectionResult) error {
	batch, err := db.Conn.PrepareBatch(db.QueryParameters(clickhouse.Parameters{"database": db.selected}),
		"INSERT INTO {database:Identifier}.detection_results")
	if err != nil {
		return err
	}
	if err := batch.AppendStruct(&rec); err != nil {
		return err
	}
	return batch.Send()
}

// WindowSample is a single flow's contribution to a host's analysis window:
// the timestamp and response byte count used for time-series binning.
type WindowSample struct {
	Ts        time.Time `ch:"ts"`
	RespBytes int64     `ch:"resp_bytes"`
}

// HostsInWindow returns the distinct internal hosts (id_orig_h) that produced
// at least one flow with a timestamp in [start, end).
func (db *DB) HostsInWindow(ctx context.Context, start, end time.Time) ([]string, error) {
	queryCtx := db.QueryParameters(clickhouse.Parameters{"database": db.selected})

	rows, err := db.Conn.Query(queryCtx, `
		SELECT DISTINCT id_orig_h
		FROM {database:Identifier}.conn_log
		WHERE ts >= @start AND ts < @end
	`, clickhouse.Named("start", start), clickhouse.Named("end", end))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hosts []string
	for rows.Next() {
		var host string
		if err := rows.Scan(&host); err != nil {
			return nil, err
		}
		hosts = append(hosts, host)
	}
	return hosts, rows.Err()
}

// HostWindowSamples returns every flow sample for the given host inside
// [start, end), ordered by timestamp, for feature extraction.
func (db *DB) HostWindowSamples(ctx context.Context, host string, start, end time.Time) ([]WindowSample, error) {
	queryCtx := db.QueryParameters(clickhouse.Parameters{"database": db.selected})

	rows, err := db.Conn.Query(queryCtx, `
		SELECT ts, ifNull(resp_bytes, 0) AS resp_bytes
		FROM {database:Identifier}.conn_log
		WHERE id_orig_h = @host AND ts >= @start AND ts < @end
		ORDER BY ts ASC
	`, clickhouse.Named("host", host), clickhouse.Named("start", start), clickhouse.Named("end", end))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []WindowSample
	for rows.Next() {
		var s WindowSample
		if err := rows.Scan(&s.Ts, &s.RespBytes); err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}
