package asn2ip

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenMMDBMissingFile(t *testing.T) {
	_, err := OpenMMDB("testdata/does-not-exist.mmdb")
	require.Error(t, err)
}
