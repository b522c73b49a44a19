package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/dirkv/internal/dn"
	"github.com/Aman-CERP/dirkv/internal/filter"
	"github.com/Aman-CERP/dirkv/internal/index"
	"github.com/Aman-CERP/dirkv/internal/message"
)

func newSearchCmd() *cobra.Command {
	var baseDN string
	var scopeName string
	var attrs []string
	var limit int

	cmd := &cobra.Command{
		Use:   "search <filter>",
		Short: "Search entries with an LDAP-style filter",
		Long: `Search evaluates a filter like '(cn=alice)' or '(&(cn=a*)(ou=eng))'
against the database and prints matching entries as JSON lines.

Indexed equality filters are answered through the secondary indexes;
everything else falls back to a full scan.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := filter.Parse(args[0])
			if err != nil {
				return exitErr(err)
			}
			scope, err := index.ParseScope(scopeName)
			if err != nil {
				return exitErr(err)
			}
			base, err := dn.Parse(baseDN)
			if err != nil {
				return exitErr(err)
			}

			e, err := openEnv(true)
			if err != nil {
				return exitErr(err)
			}
			defer e.close()

			enc := json.NewEncoder(os.Stdout)
			count := 0
			var errLimit = errors.New("limit reached")

			req := &index.Request{
				Base:  base,
				Scope: scope,
				Tree:  tree,
				Attrs: attrs,
				Callback: func(msg *message.Message) error {
					if limit > 0 && count >= limit {
						return errLimit
					}
					count++
					return enc.Encode(messageToDoc(msg))
				},
			}

			err = searchWithBase(e, req)
			if errors.Is(err, errLimit) {
				err = nil
			}
			if err != nil {
				return exitErr(err)
			}

			fmt.Fprintf(os.Stderr, "%d entries\n", count)
			return nil
		},
	}

	cmd.Flags().StringVar(&baseDN, "base", "", "Search base DN (default: root)")
	cmd.Flags().StringVar(&scopeName, "scope", "sub", "Search scope: base, one, sub")
	cmd.Flags().StringSliceVar(&attrs, "attrs", nil, "Attributes to return (default: all)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Stop after this many entries (0: unlimited)")
	return cmd
}

// searchWithBase answers base scope directly and routes everything else
// through the index engine, falling back to a full scan when no index can
// answer.
func searchWithBase(e *env, req *index.Request) error {
	if req.Scope == index.ScopeBase {
		msg, err := e.engine.FetchRecord(req.Base)
		if err != nil {
			return nil // no base record: empty result, not an error
		}
		ok, merr := filter.Match(e.reg, msg, req.Tree)
		if merr != nil || !ok {
			return merr
		}
		return req.Callback(msg)
	}

	err := e.engine.Search(req)
	if errors.Is(err, index.ErrFullScan) {
		return e.engine.FullScan(req)
	}
	return err
}
