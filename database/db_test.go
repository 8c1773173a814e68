package database_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/activecm/beaconwatch/config"
	"github.com/activecm/beaconwatch/database"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	cl "github.com/testcontainers/testcontainers-go/modules/clickhouse"
	"golang.org/x/time/rate"
)

func uint16Ptr(v uint16) *uint16 { return &v }

type DatabaseTestSuite struct {
	suite.Suite
	cfg                  *config.Config
	clickhouseContainer  *cl.ClickHouseContainer
	clickhouseConnection string
}

func TestDatabase(t *testing.T) {
	suite.Run(t, new(DatabaseTestSuite))
}

// SetupSuite is run once before the first test starts
func (d *DatabaseTestSuite) SetupSuite() {
	t := d.T()

	cfg := config.GetDefaultConfig()
	require.NoError(t, cfg.SetTestEnv())

	d.SetupClickHouse(t)
	cfg.Env.DBConnection = d.clickhouseConnection
	d.cfg = &cfg
}

// TearDownSuite is run once after all tests have finished
func (d *DatabaseTestSuite) TearDownSuite() {
	if err := d.clickhouseContainer.Terminate(context.Background()); err != nil {
		log.Fatalf("failed to terminate clickhouse container: %s", err)
	}
}

// SetupClickHouse creates a ClickHouse container and records its connection host.
func (d *DatabaseTestSuite) SetupClickHouse(t *testing.T) {
	t.Helper()

	version := os.Getenv("CLICKHOUSE_VERSION")
	if version == "" {
		version = "24.3"
	}

	ctx := context.Background()
	clickhouseContainer, err := cl.RunContainer(ctx,
		testcontainers.WithImage(fmt.Sprintf("clickhouse/clickhouse-server:%s-alpine", version)),
		cl.WithUsername("default"),
		cl.WithPassword(""),
		cl.WithDatabase("default"),
	)
	require.NoError(t, err, "failed to start clickhouse container")

	connectionHost, err := clickhouseContainer.ConnectionHost(ctx)
	require.NoError(t, err, "failed to get clickhouse connection host")

	d.clickhouseContainer = clickhouseContainer
	d.clickhouseConnection = connectionHost
}

func (d *DatabaseTestSuite) TestConnectToDB() {
	t := d.T()

	d.Run("Connect and Create Tables", func() {
		db, err := database.ConnectToDB(context.Background(), "beaconwatch_test_connect", d.cfg, nil)
		require.NoError(t, err, "connecting should not produce an error")
		require.NotNil(t, db)
		require.Equal(t, "beaconwatch_test_connect", db.GetSelectedDB())
	})

	d.Run("Invalid Configuration", func() {
		invalidCfg := *d.cfg
		invalidCfg.Env.DBConnection = "127.0.0.1:1"

		db, err := database.ConnectToDB(context.Background(), "beaconwatch_test_invalid", &invalidCfg, nil)
		require.Error(t, err, "connecting with an unreachable address should produce an error")
		require.Nil(t, db)
	})

	d.Run("Cancelled Context", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		db, err := database.ConnectToDB(ctx, "beaconwatch_test_cancel", d.cfg, nil)
		require.Error(t, err, "connecting with a cancelled context should produce an error")
		require.Nil(t, db)
	})
}

func (d *DatabaseTestSuite) TestDetectionResultRoundTrip() {
	t := d.T()

	db, err := database.ConnectToDB(context.Background(), "beaconwatch_test_detections", d.cfg, nil)
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Microsecond)
	rec := database.DetectionResult{
		Host:        "10.0.0.5",
		AnalyzedAt:  now,
		PScore:      0.82,
		FFTPeak:     0.7,
		AutocorrMax: 0.9,
		EntropyNorm: 0.2,
		SampleCount: 120,
		Detected:    true,
		PassID:      "pass-1",
	}
	require.NoError(t, db.InsertDetectionResult(context.Background(), rec))

	var result struct {
		Count uint64 `ch:"count"`
	}
	err = db.Conn.QueryRow(db.GetContext(), `
		SELECT count() as count FROM beaconwatch_test_detections.detection_results WHERE host = '10.0.0.5'
	`).ScanStruct(&result)
	require.NoError(t, err)
	require.Equal(t, uint64(1), result.Count)
}

func (d *DatabaseTestSuite) TestHostWindowQueries() {
	t := d.T()

	db, err := database.ConnectToDB(context.Background(), "beaconwatch_test_window", d.cfg, nil)
	require.NoError(t, err)

	limiter := rate.NewLimiter(rate.Every(time.Millisecond), 1)
	writer := database.NewBulkWriter(db, d.cfg, 1, db.GetSelectedDB(), "flow-store-test", "INSERT INTO {database:Identifier}.conn_log", limiter, false)
	writer.Start(0)

	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Microsecond)
	for i := 0; i < 5; i++ {
		writer.WriteChannel <- &database.FlowRecord{
			Ts:        base.Add(time.Duration(i) * time.Minute),
			UID:       fmt.Sprintf("Cuid%d", i),
			OrigH:     "10.0.0.9",
			OrigP:     uint16Ptr(4444),
			RespH:     "198.51.100.7",
			RespP:     uint16Ptr(443),
			Proto:     "tcp",
			Service:   "ssl",
			ConnState: "SF",
		}
	}
	require.NoError(t, writer.Close())

	hosts, err := db.HostsInWindow(context.Background(), base.Add(-time.Minute), base.Add(time.Hour))
	require.NoError(t, err)
	require.Contains(t, hosts, "10.0.0.9")

	samples, err := db.HostWindowSamples(context.Background(), "10.0.0.9", base.Add(-time.Minute), base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, samples, 5)
}
