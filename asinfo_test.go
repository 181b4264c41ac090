package asn2ip

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseASInfo(t *testing.T) {
	info, err := parseASInfo("AS2906", "2906 | US | arin | 2011-02-02 | NETFLIX-ASN, US")
	require.NoError(t, err)
	require.Equal(t, &ASInfo{
		ASN:       "AS2906",
		Country:   "US",
		Registry:  "arin",
		Allocated: "2011-02-02",
		Name:      "NETFLIX-ASN, US",
	}, info)
}

func TestParseASInfoMalformed(t *testing.T) {
	_, err := parseASInfo("AS2906", "2906 | US")
	require.Error(t, err)
	require.IsType(t, ValidationError{}, err)
}
