package cli

import (
	"time"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <version>",
	Short: "Rebuild one docs version and swap it live",
	Long: `Rebuilds every page of the given docs version from DOCS_DIR in shadow
tables, then promotes them in a single transaction. If the run fails before
the swap the live corpus is left as it was.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
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

	res, err := svc.Run(ctx, version)
	if err != nil {
		return err
	}

	cmd.Printf("version %d ingested: %d pages, %d chunks (%d discarded, %d split) in %s [run %s]\n",
		res.Version, res.Pages, res.Chunks, res.Skipped, res.Split, res.Duration.Round(time.Second), res.RunID)
	return nil
}
