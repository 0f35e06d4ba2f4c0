package jumpgated

import (
	"fmt"

	"github.com/aremia/jumpgates/pkg/encode"
	"github.com/spf13/cobra"
	"github.com/wormhole-foundation/wormhole/sdk/vaa"
)

var EncodeAddressCmd = &cobra.Command{
	Use:   "encode-address [CHAIN] [ADDRESS]",
	Short: "Encode a native address of CHAIN as the 32-byte Wormhole recipient",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		chainID, err := encode.ParseChainID(args[0])
		if err != nil {
			return err
		}
		addr, err := encode.Address(chainID, args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "0x%s\n", addr)
		return nil
	},
}

var DecodeAddressCmd = &cobra.Command{
	Use:   "decode-address [CHAIN] [HEX]",
	Short: "Render a 32-byte Wormhole recipient in the native format of CHAIN",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		chainID, err := encode.ParseChainID(args[0])
		if err != nil {
			return err
		}
		addr, err := vaa.StringToAddress(args[1])
		if err != nil {
			return err
		}
		s, err := encode.Decode(chainID, addr)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), s)
		return nil
	},
}
