package ingest

import (
	"context"
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/activecm/beaconwatch/config"
	"github.com/activecm/beaconwatch/database"
)

func testIngestConfig() config.Ingest {
	return config.Ingest{LogPath: "/logs/conn.log", MinFields: minConnLogFields}
}

func TestTailer_ReadBacklog(t *testing.T) {
	afs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(afs, "/logs/conn.log", []byte(
		"#fields\tts\tuid\n"+
			"1715641054.367201\tCxT1\t10.0.0.1\t1234\t52.12.0.1\t443\ttcp\tssl\t0.1\t10\t20\tSF\n"+
			"1715641055.367201\tCxT2\t10.0.0.2\t1234\t52.12.0.2\t443\ttcp\tssl\t0.1\t10\t20\tSF\n",
	), 0o644))

	tailer, err := NewTailer(afs, testIngestConfig())
	require.NoError(t, err)

	out := make(chan database.FlowRecord, 10)
	require.NoError(t, tailer.ReadBacklog(context.Background(), out))
	close(out)

	var recs []database.FlowRecord
	for r := range out {
		recs = append(recs, r)
	}
	require.Len(t, recs, 2)
	require.Equal(t, "CxT1", recs[0].UID)
	require.Equal(t, "CxT2", recs[1].UID)
}

func TestTailer_OnlyReadsFromEndOfFileOnCreation(t *testing.T) {
	afs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(afs, "/logs/conn.log", []byte(
		"1715641054.367201\tCxT1\t10.0.0.1\t1234\t52.12.0.1\t443\ttcp\tssl\t0.1\t10\t20\tSF\n",
	), 0o644))

	tailer, err := NewTailer(afs, testIngestConfig())
	require.NoError(t, err)

	out := make(chan database.FlowRecord, 10)
	require.NoError(t, tailer.poll(context.Background(), out))
	close(out)
	require.Empty(t, out, "no lines written before the tailer started should be read")
}

func TestTailer_PollReadsAppendedLines(t *testing.T) {
	afs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(afs, "/logs/conn.log", []byte(
		"1715641054.367201\tCxT1\t10.0.0.1\t1234\t52.12.0.1\t443\ttcp\tssl\t0.1\t10\t20\tSF\n",
	), 0o644))

	tailer, err := NewTailer(afs, testIngestConfig())
	require.NoError(t, err)

	f, err := afs.OpenFile("/logs/conn.log", os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("1715641099.367201\tCxT2\t10.0.0.2\t1234\t52.12.0.2\t443\ttcp\tssl\t0.1\t10\t20\tSF\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	out := make(chan database.FlowRecord, 10)
	require.NoError(t, tailer.poll(context.Background(), out))
	close(out)

	var recs []database.FlowRecord
	for r := range out {
		recs = append(recs, r)
	}
	require.Len(t, recs, 1)
	require.Equal(t, "CxT2", recs[0].UID)
}

func TestTailer_PartialTrailingLineIsLeftForNextPoll(t *testing.T) {
	afs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(afs, "/logs/conn.log", []byte(
		"1715641054.367201\tCxT1\t10.0.0.1\t1234\t52.12.0.1\t443\ttcp\tssl\t0.1\t10\t20\tSF\n",
	), 0o644))

	tailer, err := NewTailer(afs, testIngestConfig())
	require.NoError(t, err)

	f, err := afs.OpenFile("/logs/conn.log", os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	partialLine := "1715641099.367201\tCxT2\t10.0.0.2\t1234\t52.12.0.2\t443\ttcp\tssl\t0.1\t10\t20\tS"
	_, err = f.WriteString(partialLine)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	out := make(chan database.FlowRecord, 10)
	require.NoError(t, tailer.poll(context.Background(), out))
	close(out)
	require.Empty(t, out, "a line with no trailing newline must not be parsed yet")

	f, err = afs.OpenFile("/logs/conn.log", os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("F\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	out = make(chan database.FlowRecord, 10)
	require.NoError(t, tailer.poll(context.Background(), out))
	close(out)

	var recs []database.FlowRecord
	for r := range out {
		recs = append(recs, r)
	}
	require.Len(t, recs, 1, "the completed line should be read once its newline finally arrives")
	require.Equal(t, "CxT2", recs[0].UID)
}
