package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ambiyansyah-risyal/netguard"
)

// VersionCmd prints build information.
func VersionCmd(env *Env) *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := fmt.Fprintln(env.Stdout, netguard.GetVersion()); err != nil {
				return err
			}
			if !verbose {
				return nil
			}
			info := netguard.GetVersionInfo()
			keys := make([]string, 0, len(info))
			for k := range info {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(env.Stdout, "  %s: %s\n", k, info[k])
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print every build field")
	return cmd
}
