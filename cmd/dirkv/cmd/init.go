package cmd

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/dirkv/internal/config"
	"github.com/Aman-CERP/dirkv/internal/dn"
	"github.com/Aman-CERP/dirkv/internal/index"
	"github.com/Aman-CERP/dirkv/internal/message"
	"github.com/Aman-CERP/dirkv/internal/store"
	"github.com/Aman-CERP/dirkv/internal/ui"
)

func newInitCmd() *cobra.Command {
	var guidAttr string
	var guidDNComponent string
	var oneLevel bool
	var indexedAttrs []string
	var uniqueAttrs []string
	var writeConfig bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a database and its index configuration",
		Long: `Init creates the database file and writes the @INDEXLIST control record
declaring the indexed attributes, the one-level index, and (optionally)
the GUID identifier mode.

The identifier mode is fixed for the lifetime of the database.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return exitErr(err)
			}
			if guidAttr != "" {
				cfg.Index.GUIDAttr = guidAttr
			}
			if guidDNComponent != "" {
				cfg.Index.GUIDDNComponent = guidDNComponent
			}
			if cmd.Flags().Changed("one-level") {
				cfg.Index.OneLevel = oneLevel
			}
			if len(indexedAttrs) > 0 {
				cfg.Index.Attributes = indexedAttrs
			}
			if len(uniqueAttrs) > 0 {
				cfg.Index.UniqueAttributes = uniqueAttrs
			}

			if err := runInit(cfg); err != nil {
				return exitErr(err)
			}

			if writeConfig {
				path := filepath.Join(filepath.Dir(cfg.Database.Path), config.ConfigFileName)
				if err := cfg.WriteYAML(path); err != nil {
					return exitErr(err)
				}
				fmt.Printf("Wrote %s\n", path)
			}

			styles := ui.AutoStyles()
			fmt.Println(styles.Success.Render(fmt.Sprintf("Initialized database at %s", cfg.Database.Path)))
			return nil
		},
	}

	cmd.Flags().StringVar(&guidAttr, "guid-attr", "", "Attribute carrying the 16-byte entry GUID (enables GUID mode)")
	cmd.Flags().StringVar(&guidDNComponent, "guid-dn-component", "", "Extended DN component carrying the GUID")
	cmd.Flags().BoolVar(&oneLevel, "one-level", true, "Maintain the parent->children index")
	cmd.Flags().StringSliceVar(&indexedAttrs, "index", nil, "Attributes to equality-index")
	cmd.Flags().StringSliceVar(&uniqueAttrs, "unique", nil, "Attributes with a uniqueness constraint")
	cmd.Flags().BoolVar(&writeConfig, "write-config", false, "Write the effective configuration next to the database")

	return cmd
}

func runInit(cfg *config.Config) error {
	kv, err := store.Open(store.Options{
		Backend: cfg.Database.Backend,
		Path:    cfg.Database.Path,
	})
	if err != nil {
		return err
	}
	defer func() { _ = kv.Close() }()

	eng, err := index.New(kv, buildRegistry(cfg), slog.Default(), index.Options{
		MaxKeyLength:     cfg.Index.MaxKeyLength,
		DisallowDNFilter: cfg.Index.DisallowDNFilter,
	})
	if err != nil {
		return err
	}

	return eng.AddRecord(indexListRecord(cfg))
}

// indexListRecord builds the @INDEXLIST control record from configuration.
func indexListRecord(cfg *config.Config) *message.Message {
	msg := message.New(dn.MustParse(index.IndexListDN))
	for _, attr := range cfg.Index.Attributes {
		msg.Add(index.AttrIndexedAttrs, []byte(attr))
	}
	for _, attr := range cfg.Index.UniqueAttributes {
		if !containsFold(cfg.Index.Attributes, attr) {
			msg.Add(index.AttrIndexedAttrs, []byte(attr))
		}
	}
	if cfg.Index.OneLevel {
		msg.Set(index.AttrOneLevel, []byte("1"))
	}
	if cfg.Index.GUIDAttr != "" {
		msg.Set(index.AttrGUID, []byte(cfg.Index.GUIDAttr))
	}
	if cfg.Index.GUIDDNComponent != "" {
		msg.Set(index.AttrDNGUID, []byte(cfg.Index.GUIDDNComponent))
	}
	return msg
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
