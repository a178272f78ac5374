package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kailas-cloud/imgdetect/internal/config"
	"github.com/kailas-cloud/imgdetect/internal/domain"
	"github.com/kailas-cloud/imgdetect/internal/version"
)

// Operation modes.
const (
	modeDetect = "detect"
	modeFeed   = "feed"
	modeServe  = "serve"
)

// usageError marks invalid command line arguments.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

type options struct {
	mode           string
	vespaURL       string
	docType        string
	imagesFolder   string
	image          string
	hits           int
	skipDuplicates bool
	env            string
	configPath     string
}

// validate checks the flag combination required by the selected mode.
func (o *options) validate() error {
	switch o.mode {
	case modeFeed:
		if o.imagesFolder == "" {
			return usagef("--images-folder is required when mode=feed")
		}
	case modeDetect:
		if o.image == "" {
			return usagef("--image is required when mode=detect")
		}
	case modeServe:
	case "":
		return usagef("--mode is required (detect, feed or serve)")
	default:
		return usagef("invalid --mode %q: choose from detect, feed, serve", o.mode)
	}
	if o.hits <= 0 {
		return usagef("--hits must be positive, got %d", o.hits)
	}
	if o.docType != "" {
		if err := domain.ValidateDocType(o.docType); err != nil {
			return usagef("invalid --doc-type: %v", err)
		}
	}
	return nil
}

// NewRootCmd creates the detector command.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "detector",
		Short: "Feed images into Vespa or classify an image by similarity",
		Long: `detector computes normalized image embeddings and either feeds a folder of
images into a Vespa index (--mode feed), classifies one image as forbidden,
needs review or safe from its nearest neighbors (--mode detect), or serves
detection over HTTP (--mode serve).`,
		Version:       version.String(),
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.validate(); err != nil {
				return err
			}
			cmd.SilenceUsage = true

			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), opts, cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.mode, "mode", "", "operation mode: detect, feed or serve")
	f.StringVar(&opts.vespaURL, "vespa-url", "http://localhost:8080", "Vespa base URL")
	f.StringVar(&opts.docType, "doc-type", domain.DefaultDocType, "document type/schema name in Vespa")
	f.StringVar(&opts.imagesFolder, "images-folder", "", "folder with images to feed (feed mode)")
	f.StringVar(&opts.image, "image", "", "single image path to detect (detect mode)")
	f.IntVar(&opts.hits, "hits", domain.DefaultHits, "number of nearest neighbors to average (detect mode)")
	f.BoolVar(&opts.skipDuplicates, "skip-duplicates", false, "skip near-duplicate images within a feed run")
	f.StringVar(&opts.env, "env", config.GetEnv(), "config environment, selects config/<env>.yaml")
	f.StringVar(&opts.configPath, "config", "", "explicit config file path (overrides --env)")

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{msg: err.Error()}
	})

	cmd.AddCommand(newVersionCmd())
	return cmd
}

// loadConfig reads .env and the YAML config, then applies explicitly set flags on top.
func loadConfig(cmd *cobra.Command, opts *options) (config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return config.Config{}, fmt.Errorf("load .env: %w", err)
	}

	var (
		cfg config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.LoadFile(opts.configPath)
	} else {
		cfg, err = config.Load(opts.env)
	}
	if err != nil {
		return config.Config{}, err
	}

	return applyFlags(cfg, cmd, opts)
}

// applyFlags overrides config values with flags the user set explicitly.
func applyFlags(cfg config.Config, cmd *cobra.Command, opts *options) (config.Config, error) {
	f := cmd.Flags()
	if f.Changed("vespa-url") {
		cfg.Vespa.URL = opts.vespaURL
	}
	if f.Changed("doc-type") {
		cfg.Vespa.DocType = opts.docType
	}
	if f.Changed("hits") {
		cfg.Vespa.Hits = opts.hits
	}
	if f.Changed("skip-duplicates") {
		cfg.Feed.SkipDuplicates = opts.skipDuplicates
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "detector %s\n", version.Version)
			fmt.Fprintf(cmd.OutOrStdout(), "Commit: %s\n", version.Commit)
			fmt.Fprintf(cmd.OutOrStdout(), "Built:  %s\n", version.Date)
		},
	}
}
