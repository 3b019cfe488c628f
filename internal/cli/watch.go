package cli

import "github.com/spf13/cobra"

var watchCmd = &cobra.Command{
	Use:   "watch <version>",
	Short: "Rebuild a docs version whenever DOCS_DIR changes",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	version, err := parseVersion(args[0])
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	svc, err := a.ingestService()
	if err != nil {
		return err
	}
	return svc.Watch(ctx, version)
}
