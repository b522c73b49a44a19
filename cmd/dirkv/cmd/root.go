// Package cmd provides the CLI commands for dirkv.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/dirkv/internal/config"
	"github.com/Aman-CERP/dirkv/internal/index"
	"github.com/Aman-CERP/dirkv/internal/logging"
	"github.com/Aman-CERP/dirkv/internal/profiling"
	"github.com/Aman-CERP/dirkv/internal/schema"
	"github.com/Aman-CERP/dirkv/internal/store"
	"github.com/Aman-CERP/dirkv/pkg/version"
)

// Global flags.
var (
	dbPath         string
	dbBackend      string
	debugMode      bool
	loggingCleanup func()
)

// Profiling flags.
var (
	profileCPU   string
	profileMem   string
	profileTrace string
	profiler     = profiling.NewProfiler()
	cpuCleanup   func()
	traceCleanup func()
)

// NewRootCmd creates the root command for the dirkv CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dirkv",
		Short: "Schemaless directory-style key/value database",
		Long: `dirkv stores directory entries (a DN plus multi-valued attributes) in an
ordered key/value store and answers LDAP-style filter searches through
secondary indexes.

Run 'dirkv init' to create a database, 'dirkv add' to load entries and
'dirkv search' to query them.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("dirkv version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database file path (default: from config or ./dirkv.db)")
	cmd.PersistentFlags().StringVar(&dbBackend, "backend", "", "Storage backend: bolt or sqlite (default: from config)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	cmd.PersistentFlags().StringVar(&profileCPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileMem, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&profileTrace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = startProfilingAndLogging
	cmd.PersistentPostRunE = stopProfilingAndLogging

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newAddCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newDeleteCmd())
	cmd.AddCommand(newReindexCmd())
	cmd.AddCommand(newInfoCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func startProfilingAndLogging(*cobra.Command, []string) error {
	cfg := logging.DefaultConfig()
	cfg.WriteToStderr = false
	if debugMode {
		cfg.Level = "debug"
		cfg.WriteToStderr = true
	}
	logger, cleanup, err := logging.Setup(cfg)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	slog.SetDefault(logger)
	loggingCleanup = cleanup

	if profileCPU != "" {
		cpuCleanup, err = profiler.StartCPU(profileCPU)
		if err != nil {
			return err
		}
	}
	if profileTrace != "" {
		traceCleanup, err = profiler.StartTrace(profileTrace)
		if err != nil {
			return err
		}
	}
	return nil
}

func stopProfilingAndLogging(*cobra.Command, []string) error {
	if cpuCleanup != nil {
		cpuCleanup()
		cpuCleanup = nil
	}
	if traceCleanup != nil {
		traceCleanup()
		traceCleanup = nil
	}
	if profileMem != "" {
		if err := profiler.WriteHeap(profileMem); err != nil {
			return err
		}
	}
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// env bundles everything an open database command needs.
type env struct {
	cfg    *config.Config
	kv     store.KV
	reg    *schema.Registry
	engine *index.Engine
}

func (e *env) close() {
	if e.kv != nil {
		_ = e.kv.Close()
	}
}

// openEnv loads configuration, opens the backing store and builds the
// engine over it.
func openEnv(readOnly bool) (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	kv, err := store.Open(store.Options{
		Backend:  cfg.Database.Backend,
		Path:     cfg.Database.Path,
		ReadOnly: readOnly || cfg.Database.ReadOnly,
	})
	if err != nil {
		return nil, err
	}

	reg := buildRegistry(cfg)
	eng, err := index.New(kv, reg, slog.Default(), index.Options{
		MaxKeyLength:     cfg.Index.MaxKeyLength,
		DisallowDNFilter: cfg.Index.DisallowDNFilter,
	})
	if err != nil {
		_ = kv.Close()
		return nil, err
	}

	return &env{cfg: cfg, kv: kv, reg: reg, engine: eng}, nil
}

func loadConfig() (*config.Config, error) {
	dir := "."
	if dbPath != "" {
		dir = filepath.Dir(dbPath)
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if dbBackend != "" {
		cfg.Database.Backend = dbBackend
	}
	return cfg, nil
}

// buildRegistry seeds the schema registry with the configured unique
// attributes. Equality index membership lives in @INDEXLIST; uniqueness is
// a schema flag.
func buildRegistry(cfg *config.Config) *schema.Registry {
	reg := schema.NewRegistry()
	syntax, _ := schema.BySyntaxName(schema.SyntaxCaseIgnore)
	for _, name := range cfg.Index.UniqueAttributes {
		reg.Register(&schema.Attribute{
			Name:   name,
			Syntax: syntax,
			Flags:  schema.FlagUnique | schema.FlagIndexed,
		})
	}
	return reg
}

func exitErr(err error) error {
	fmt.Fprintln(os.Stderr, "Error:", err)
	return err
}
