package ingest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLine_FullRecord(t *testing.T) {
	line := "1715641054.367201\tCxT122\t10.0.0.2\t4444\t52.12.0.2\t443\ttcp\tssl\t0.52\t120\t4500\tSF"

	rec, err := ParseLine(line, minConnLogFields)
	require.NoError(t, err)

	require.Equal(t, "CxT122", rec.UID)
	require.Equal(t, "10.0.0.2", rec.OrigH)
	require.NotNil(t, rec.OrigP)
	require.EqualValues(t, 4444, *rec.OrigP)
	require.Equal(t, "52.12.0.2", rec.RespH)
	require.NotNil(t, rec.RespP)
	require.EqualValues(t, 443, *rec.RespP)
	require.Equal(t, "tcp", rec.Proto)
	require.Equal(t, "ssl", rec.Service)
	require.NotNil(t, rec.Duration)
	require.InDelta(t, 0.52, *rec.Duration, 0.0001)
	require.NotNil(t, rec.OrigBytes)
	require.EqualValues(t, 120, *rec.OrigBytes)
	require.NotNil(t, rec.RespBytes)
	require.EqualValues(t, 4500, *rec.RespBytes)
	require.Equal(t, "SF", rec.ConnState)
}

func TestParseLine_AbsentFieldsBecomeNil(t *testing.T) {
	line := "1715641054.367201\tCxT123\t10.0.0.3\t-\t52.12.0.3\t-\tudp\t-\t-\t-\t-\tS0"

	rec, err := ParseLine(line, minConnLogFields)
	require.NoError(t, err)

	require.Nil(t, rec.OrigP, "an absent port must stay nil, not collapse to zero")
	require.Nil(t, rec.RespP, "an absent port must stay nil, not collapse to zero")
	require.Equal(t, "", rec.Service)
	require.Nil(t, rec.Duration)
	require.Nil(t, rec.OrigBytes)
	require.Nil(t, rec.RespBytes)
}

func TestParseLine_TooFewFields(t *testing.T) {
	_, err := ParseLine("1715641054.367201\tCxT124\t10.0.0.4", minConnLogFields)
	require.ErrorIs(t, err, ErrTooFewFields)
}

func TestParseLine_MalformedTimestamp(t *testing.T) {
	line := "not-a-timestamp\tCxT125\t10.0.0.5\t1234\t52.12.0.5\t443\ttcp\t-\t-\t-\t-\tSF"
	_, err := ParseLine(line, minConnLogFields)
	require.Error(t, err)
}

func TestIsDirectiveOrBlank(t *testing.T) {
	require.True(t, IsDirectiveOrBlank(""))
	require.True(t, IsDirectiveOrBlank("#fields\tts\tuid"))
	require.False(t, IsDirectiveOrBlank("1715641054.367201\tCxT126\t10.0.0.6"))
}
