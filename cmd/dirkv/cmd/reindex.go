package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/dirkv/internal/ui"
)

func newReindexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild every index record from the data records",
		Long: `Reindex purges all index records and rebuilds them from scratch,
rekeying data records whose storage key no longer matches the configured
identifier mode. Use it after changing @INDEXLIST or to repair a
corrupted index.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(false)
			if err != nil {
				return exitErr(err)
			}
			defer e.close()

			styles := ui.AutoStyles()
			progress := ui.NewProgress(os.Stderr, styles)
			e.engine.SetProgressFunc(progress.Update)

			if err := e.engine.Reindex(); err != nil {
				return exitErr(err)
			}

			progress.Done("Reindex complete")
			return nil
		},
	}
	return cmd
}
