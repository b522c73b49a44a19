package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// dbInfo is the JSON shape of `dirkv info`.
type dbInfo struct {
	Path           string `json:"path"`
	Backend        string `json:"backend"`
	GUIDMode       bool   `json:"guid_mode"`
	GUIDAttr       string `json:"guid_attr,omitempty"`
	OneLevel       bool   `json:"one_level"`
	SequenceNumber uint64 `json:"sequence_number"`
	DataRecords    int    `json:"data_records"`
	IndexRecords   int    `json:"index_records"`
}

func newInfoCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show database and index statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(true)
			if err != nil {
				return exitErr(err)
			}
			defer e.close()

			seq, err := e.engine.SequenceNumber()
			if err != nil {
				return exitErr(err)
			}

			info := dbInfo{
				Path:           e.cfg.Database.Path,
				Backend:        e.cfg.Database.Backend,
				GUIDMode:       e.engine.GUIDMode(),
				GUIDAttr:       e.engine.GUIDAttr(),
				OneLevel:       e.engine.OneLevelIndexed(),
				SequenceNumber: seq,
			}

			err = e.kv.Iterate(func(key, _ []byte) error {
				switch {
				case bytes.HasPrefix(key, []byte("DN=@INDEX:")),
					bytes.HasPrefix(key, []byte("DN=@INDEX#")):
					info.IndexRecords++
				case bytes.HasPrefix(key, []byte("DN=@")):
					// control records
				default:
					info.DataRecords++
				}
				return nil
			})
			if err != nil {
				return exitErr(err)
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}

			fmt.Printf("Path:            %s\n", info.Path)
			fmt.Printf("Backend:         %s\n", info.Backend)
			mode := "dn"
			if info.GUIDMode {
				mode = fmt.Sprintf("guid (%s)", info.GUIDAttr)
			}
			fmt.Printf("Identifier mode: %s\n", mode)
			fmt.Printf("One-level index: %v\n", info.OneLevel)
			fmt.Printf("Sequence number: %d\n", info.SequenceNumber)
			fmt.Printf("Data records:    %d\n", info.DataRecords)
			fmt.Printf("Index records:   %d\n", info.IndexRecords)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
