// Package cli implements the tocpages command line.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dgallion1/tocpages/internal/app"
	"github.com/dgallion1/tocpages/internal/config"
	"github.com/dgallion1/tocpages/internal/mcptools"
	"github.com/dgallion1/tocpages/internal/parser"
	"github.com/dgallion1/tocpages/internal/store"
	"github.com/dgallion1/tocpages/internal/version"
)

type options struct {
	base    string
	json    bool
	verbose bool
}

// NewRootCmd builds the command tree. Configuration comes from the
// environment (and .env); --base overrides IMAGES_BASE_DIR.
func NewRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "tocpages",
		Short: "Render PDFs into per-section page images and query them",
		Long: `tocpages renders every page of a PDF to JPEG and files each page under the
outline (table of contents) entry it belongs to:

  <base>/<document>/<section>/page_<n>.jpg

Lookups read the directory tree directly; there is no separate index.`,
		SilenceUsage: true,
	}
	root.Version = version.Version
	root.SetVersionTemplate(fmt.Sprintf("tocpages %s\n", version.String()))

	root.PersistentFlags().StringVar(&opts.base, "base", "", "Image base directory (default $IMAGES_BASE_DIR or ./images)")
	root.PersistentFlags().BoolVar(&opts.json, "json", false, "Print JSON instead of styled text")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log debug output to stderr")

	root.AddCommand(
		processCmd(opts),
		inspectCmd(opts),
		sectionsCmd(opts),
		sectionCmd(opts),
		pageCmd(opts),
		documentCmd(opts),
		mcpCmd(opts),
	)
	return root
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (o *options) config() config.Config {
	cfg := config.Load()
	if o.base != "" {
		cfg.ImagesBaseDir = o.base
	}
	return cfg
}

func (o *options) logger() *slog.Logger {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func (o *options) lookup() *store.Lookup {
	return store.NewLookup(o.config().ImagesBaseDir, store.DefaultURIPrefix)
}

func processCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "process <file.pdf>",
		Short: "Render a PDF into section directories",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			a, err := app.New(o.config(), o.logger())
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Processor.Process(cmd.Context(), filepath.Base(args[0]), data)
			if err != nil {
				return err
			}
			if o.json {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
}

func inspectCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file.pdf>",
		Short: "Show page count, title and top-level outline without rendering",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if !parser.IsPDF(data) {
				return fmt.Errorf("%s is not a PDF", args[0])
			}
			info, err := parser.Inspect(data)
			if err != nil {
				return err
			}
			if o.json {
				return writeJSON(cmd.OutOrStdout(), info)
			}
			printInfo(cmd.OutOrStdout(), info)
			return nil
		},
	}
}

func sectionsCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "sections <document>",
		Short: "List the section directories of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sections, err := o.lookup().Sections(args[0])
			if err != nil {
				return err
			}
			if o.json {
				return writeJSON(cmd.OutOrStdout(), sections)
			}
			printList(cmd.OutOrStdout(), args[0], sections)
			return nil
		},
	}
}

func sectionCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "section <document> <section>",
		Short: "List the image URIs of one section in page order",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			uris, err := o.lookup().SectionImages(args[0], args[1])
			if err != nil {
				return err
			}
			if o.json {
				return writeJSON(cmd.OutOrStdout(), uris)
			}
			printList(cmd.OutOrStdout(), args[1], uris)
			return nil
		},
	}
}

func pageCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "page <document> <n>",
		Short: "Find the image URI and section of a 1-based page",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("page must be an integer: %q", args[1])
			}
			ref, err := o.lookup().PageImage(args[0], n)
			if err != nil {
				return err
			}
			if o.json {
				return writeJSON(cmd.OutOrStdout(), ref)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", titleStyle.Render(ref.Section), ref.URI)
			return nil
		},
	}
}

func documentCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "document <document>",
		Short: "List every image of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			refs, err := o.lookup().DocumentImages(args[0])
			if err != nil {
				return err
			}
			if o.json {
				return writeJSON(cmd.OutOrStdout(), refs)
			}
			printImageRefs(cmd.OutOrStdout(), refs)
			return nil
		},
	}
}

func mcpCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the document tools over MCP stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// stdout carries the protocol; logs must stay on stderr.
			log := o.logger()
			a, err := app.New(o.config(), log)
			if err != nil {
				return err
			}
			defer a.Close()
			return mcptools.New(a.Processor, a.Lookup, version.Version, log).ServeStdio()
		},
	}
}
