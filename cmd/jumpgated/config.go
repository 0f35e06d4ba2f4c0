package jumpgated

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// applyConfig fills every flag the user did not set on the command line from the config
// file or environment, as loaded by viper.
func applyConfig(cmd *cobra.Command) error {
	var err error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if err != nil || f.Changed || !viper.IsSet(f.Name) {
			return
		}
		if serr := f.Value.Set(viper.GetString(f.Name)); serr != nil {
			err = fmt.Errorf("invalid value for %s in config: %w", f.Name, serr)
		}
	})
	return err
}
