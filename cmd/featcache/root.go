package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/featcache/internal/cache"
)

// usageError marks errors caused by bad command-line input.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

func isUsageError(err error) bool {
	var ue *usageError
	return errors.As(err, &ue)
}

// app carries the state shared by all subcommands of one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     Config
	logger  *zap.Logger
	fs      afero.Fs
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New(), logger: zap.NewNop(), fs: afero.NewOsFs()}

	cmd := &cobra.Command{
		Use:   "featcache",
		Short: "Disk cache for genomic feature segments",
		Long: `featcache stores values and region annotations for sub-ranges of
(track, organism, build, chromosome) keys on disk, keeping the stored ranges
of each key non-overlapping.`,
		Version:       fmt.Sprintf("%s (%s) built %s", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}
	cmd.SetVersionTemplate("featcache version {{.Version}}\n")

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/.featcache.yaml)")
	pf.String("root", "", "cache root directory")
	pf.String("compression", "", "compression for new entries: none, zstd, lz4")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	_ = a.v.BindPFlag("cache.root", pf.Lookup("root"))
	_ = a.v.BindPFlag("cache.compression", pf.Lookup("compression"))
	_ = a.v.BindPFlag("log.level", pf.Lookup("log-level"))

	cmd.AddCommand(
		newSaveCmd(a),
		newLoadCmd(a),
		newLsCmd(a),
		newVerifyCmd(a),
		newClearCmd(a),
		newInventoryCmd(a),
		newConfigCmd(a),
	)
	return cmd
}

// init reads configuration and builds the logger.
func (a *app) init() error {
	setDefaults(a.v)

	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		a.v.AddConfigPath(home)
		a.v.SetConfigName(".featcache")
		a.v.SetConfigType("yaml")
	}
	a.v.SetEnvPrefix("FEATCACHE")
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	cfg, err := decodeConfig(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	a.logger = logger
	return nil
}

// manager opens the configured cache.
func (a *app) manager() (*cache.Manager, error) {
	root := a.cfg.Cache.Root
	if root == "" {
		return nil, usagef("no cache root configured; use --root or set cache.root")
	}
	m := cache.New(a.fs, filepath.Clean(root))
	m.SetLogger(a.logger)
	m.SetCompression(a.cfg.Cache.Compression)
	return m, nil
}
