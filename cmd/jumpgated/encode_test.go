package jumpgated

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return strings.TrimSpace(out.String()), err
}

func TestEncodeDecodeAddress(t *testing.T) {
	const evm = "0x90F8bf6A479f320ead074411a4B0e7944Ea8c9C1"

	encoded, err := run(t, EncodeAddressCmd, "ethereum", evm)
	require.NoError(t, err)
	assert.Equal(t, "0x00000000000000000000000090f8bf6a479f320ead074411a4b0e7944ea8c9c1", encoded)

	decoded, err := run(t, DecodeAddressCmd, "2", strings.TrimPrefix(encoded, "0x"))
	require.NoError(t, err)
	assert.Equal(t, evm, decoded)
}

func TestEncodeAddressRejects(t *testing.T) {
	_, err := run(t, EncodeAddressCmd, "atlantis", "0x00")
	assert.Error(t, err)

	_, err = run(t, EncodeAddressCmd, "terra", "0x90F8bf6A479f320ead074411a4B0e7944Ea8c9C1")
	assert.Error(t, err)
}
