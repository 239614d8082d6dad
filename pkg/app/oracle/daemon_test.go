package oracle

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"troczen.dev/pkg/app/config"
)

func TestNewDaemonRequiresKey(t *testing.T) {
	_, err := NewDaemon(&config.C{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ORACLE_NSEC_HEX")
}

func TestNewDaemonRejectsMalformedKey(t *testing.T) {
	_, err := NewDaemon(&config.C{OracleNsec: "not-hex"})
	require.Error(t, err)
}

func TestNewDaemonDerivesPubkey(t *testing.T) {
	sec := strings.Repeat("0", 63) + "1"
	d, err := NewDaemon(&config.C{OracleNsec: sec, RelayURL: "ws://127.0.0.1:7777"})
	require.NoError(t, err)
	// x-only public key of the generator point
	assert.Equal(
		t,
		"79be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798",
		d.Pubkey(),
	)
}
