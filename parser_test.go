package asn2ip

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func parseLines(t *testing.T, lines []string) ([]string, error) {
	t.Helper()
	var p frameParser
	for i, line := range lines {
		done, err := p.feed(line)
		if err != nil {
			return nil, err
		}
		if done {
			require.Equal(t, len(lines)-1, i, "terminator before the last line")
			return p.result(), nil
		}
	}
	t.Fatal("frame not terminated")
	return nil, nil
}

func TestParserFrame(t *testing.T) {
	tokens, err := parseLines(t, []string{"A2906", "191.1.0.0/16 191.2.0.0/17", "C"})
	require.NoError(t, err)
	require.Equal(t, []string{"191.1.0.0/16", "191.2.0.0/17"}, tokens)
}

func TestParserMultiLineFrame(t *testing.T) {
	tokens, err := parseLines(t, []string{"a120", "10.0.0.0/8", "192.168.0.0/16 172.16.0.0/12", "C"})
	require.NoError(t, err)
	require.Equal(t, []string{"10.0.0.0/8", "192.168.0.0/16", "172.16.0.0/12"}, tokens)
}

func TestParserNoData(t *testing.T) {
	tokens, err := parseLines(t, []string{"A2906", "D"})
	require.NoError(t, err)
	require.Nil(t, tokens)
}

func TestParserImmediateNoData(t *testing.T) {
	// "D" terminates the frame in any state
	tokens, err := parseLines(t, []string{"D"})
	require.NoError(t, err)
	require.Nil(t, tokens)
}

func TestParserEmptySuccess(t *testing.T) {
	// A successful frame without data lines is empty but present, which is
	// not the same as "no data"
	tokens, err := parseLines(t, []string{"A2906", "C"})
	require.NoError(t, err)
	require.NotNil(t, tokens)
	require.Empty(t, tokens)
}

func TestParserBadStart(t *testing.T) {
	_, err := parseLines(t, []string{"X2906", "C"})
	require.Error(t, err)
	perr, ok := err.(ProtocolError)
	require.True(t, ok)
	require.Equal(t, "X2906", perr.Line)
	require.Equal(t, "await-start", perr.State)
}

func TestParserTerminatorAsStart(t *testing.T) {
	// "C" is only valid in the frame body
	_, err := parseLines(t, []string{"C"})
	require.Error(t, err)
	require.IsType(t, ProtocolError{}, err)
}

func TestParserFeedAfterDone(t *testing.T) {
	var p frameParser
	done, err := p.feed("A2906")
	require.NoError(t, err)
	require.False(t, done)
	done, err = p.feed("C")
	require.NoError(t, err)
	require.True(t, done)

	_, err = p.feed("10.0.0.0/8")
	require.Error(t, err)
	require.IsType(t, ProtocolError{}, err)
}
