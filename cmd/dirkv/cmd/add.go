package cmd

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/dirkv/internal/message"
	"github.com/Aman-CERP/dirkv/internal/ui"
)

func newAddCmd() *cobra.Command {
	var fromFile string

	cmd := &cobra.Command{
		Use:   "add [file]",
		Short: "Add entries from JSON documents",
		Long: `Add reads JSON documents ({"dn": "...", "attrs": {"cn": ["a"]}}) from a
file or stdin and stores them. All entries commit in a single transaction;
any failure rolls the whole batch back.

In GUID mode an entry without a GUID attribute value gets a fresh one.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				fromFile = args[0]
			}

			in := os.Stdin
			if fromFile != "" && fromFile != "-" {
				f, err := os.Open(fromFile)
				if err != nil {
					return exitErr(err)
				}
				defer func() { _ = f.Close() }()
				in = f
			}

			msgs, err := decodeDocs(in)
			if err != nil {
				return exitErr(err)
			}
			if len(msgs) == 0 {
				return exitErr(fmt.Errorf("no documents to add"))
			}

			e, err := openEnv(false)
			if err != nil {
				return exitErr(err)
			}
			defer e.close()

			if err := addAll(e, msgs); err != nil {
				return exitErr(err)
			}

			styles := ui.AutoStyles()
			fmt.Println(styles.Success.Render(fmt.Sprintf("Added %d entries", len(msgs))))
			return nil
		},
	}

	cmd.Flags().StringVar(&fromFile, "file", "", "Read documents from this file instead of stdin")
	return cmd
}

// addAll stores the batch inside one transaction so repeated index record
// rewrites collapse into single storage writes.
func addAll(e *env, msgs []*message.Message) error {
	if err := e.engine.Begin(); err != nil {
		return err
	}
	for _, msg := range msgs {
		ensureGUID(e, msg)
		if err := e.engine.AddRecord(msg); err != nil {
			_ = e.engine.Cancel()
			return err
		}
	}
	return e.engine.Commit()
}

// ensureGUID assigns a fresh GUID to entries that lack one in GUID mode.
func ensureGUID(e *env, msg *message.Message) {
	attr := e.engine.GUIDAttr()
	if attr == "" || msg.DN.IsSpecial() || msg.Element(attr) != nil {
		return
	}
	u := uuid.New()
	msg.Add(attr, u[:])
}
