package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/dirkv/internal/dn"
	"github.com/Aman-CERP/dirkv/internal/ui"
)

func newDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <dn>",
		Short: "Delete the entry at a DN",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := dn.Parse(args[0])
			if err != nil {
				return exitErr(err)
			}

			e, err := openEnv(false)
			if err != nil {
				return exitErr(err)
			}
			defer e.close()

			if err := e.engine.DeleteRecord(d); err != nil {
				return exitErr(err)
			}

			styles := ui.AutoStyles()
			fmt.Println(styles.Success.Render(fmt.Sprintf("Deleted %s", d.String())))
			return nil
		},
	}
	return cmd
}
