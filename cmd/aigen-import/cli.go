package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"aigen-library/internal/catalog"
	"aigen-library/internal/importer"
	"aigen-library/internal/logging"
	"aigen-library/internal/memory"
	"aigen-library/internal/metadata"
	"aigen-library/internal/startup"
	"aigen-library/internal/thumbnail"

	"github.com/urfave/cli/v2"
	"golang.org/x/term"
)

// isTerminal is swapped in tests.
var isTerminal = func(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp() *cli.App {
	app := &cli.App{
		Name:    "aigen-import",
		Usage:   "Import AI-generated images and their generation metadata",
		Version: startup.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "cache-dir", Value: "./cache", EnvVars: []string{"CACHE_DIR"}, Usage: "Thumbnail cache root"},
			&cli.IntFlag{Name: "thumbnail-size", Value: thumbnail.DefaultMaxEdge, EnvVars: []string{"THUMBNAIL_SIZE"}, Usage: "Longest thumbnail edge in pixels"},
			&cli.StringFlag{Name: "log-level", EnvVars: []string{"LOG_LEVEL"}, Usage: "debug, info, warn or error"},
		},
		Before: func(c *cli.Context) error {
			if name := c.String("log-level"); name != "" {
				level, ok := logging.ParseLevel(name)
				if !ok {
					return cli.Exit(fmt.Sprintf("unknown log level %q", name), 2)
				}
				logging.SetLevel(level)
			}
			return nil
		},
		Commands: []*cli.Command{
			importCmd(),
			extractCmd(),
			thumbnailCmd(),
			cacheCmd(),
		},
	}
	// Keep errors as return values so tests can inspect them.
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

func openCache(c *cli.Context) (*thumbnail.Cache, error) {
	return thumbnail.New(filepath.Join(c.String("cache-dir"), "thumbnails"),
		thumbnail.WithMaxEdge(c.Int("thumbnail-size")))
}

// importCmd creates the import command.
func importCmd() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import every supported image in a folder",
		ArgsUsage: "<dir>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "recursive", Aliases: []string{"r"}, EnvVars: []string{"IMPORT_RECURSIVE"}, Usage: "Descend into subfolders"},
			&cli.IntFlag{Name: "workers", Aliases: []string{"w"}, Usage: "Worker count (default: derived from CPUs)"},
			&cli.StringFlag{Name: "db", Usage: "Catalog database to write outcomes to"},
			&cli.BoolFlag{Name: "no-thumbnails", Usage: "Skip thumbnail generation"},
			&cli.BoolFlag{Name: "validate-crc", EnvVars: []string{"VALIDATE_CRC"}, Usage: "Reject PNG chunks with bad checksums"},
			&cli.BoolFlag{Name: "json", Usage: "Print the run result as JSON"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("import needs exactly one folder", 2)
			}
			ctx := c.Context

			opts := []importer.Option{importer.WithWorkers(c.Int("workers"))}

			if dbPath := c.String("db"); dbPath != "" {
				cat, err := catalog.New(ctx, dbPath)
				if err != nil {
					return cli.Exit(fmt.Sprintf("open catalog: %v", err), 1)
				}
				defer cat.Close()
				opts = append(opts,
					importer.WithSink(catalog.NewSink(cat)),
					importer.WithKnownPaths(cat.KnownPaths(ctx)))
			}

			var thumbs importer.Thumbnailer
			if !c.Bool("no-thumbnails") {
				cache, err := openCache(c)
				if err != nil {
					return cli.Exit(err.Error(), 1)
				}
				thumbs = cache
			}

			asJSON := c.Bool("json")
			if !asJSON && isTerminal(os.Stderr) {
				opts = append(opts, importer.WithProgress(progressPrinter(c.App.ErrWriter)))
			}

			monitor := memory.NewMonitor(memory.DefaultConfig())
			monitor.Start()
			defer monitor.Stop()
			opts = append(opts, importer.WithGate(monitor))

			extractor := metadata.NewExtractor(metadata.WithCRCValidation(c.Bool("validate-crc")))
			res := importer.New(extractor, thumbs, opts...).Run(ctx, c.Args().First(), c.Bool("recursive"))

			if asJSON {
				if err := outputJSON(c.App.Writer, res); err != nil {
					return err
				}
			} else {
				printRunResult(c.App.Writer, res)
			}

			if res.Failed() {
				return cli.Exit(res.Errors[0].Error(), 1)
			}
			return nil
		},
	}
}

// extractCmd creates the extract command.
func extractCmd() *cli.Command {
	return &cli.Command{
		Name:      "extract",
		Usage:     "Print the generation metadata embedded in one file",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "validate-crc", EnvVars: []string{"VALIDATE_CRC"}, Usage: "Reject PNG chunks with bad checksums"},
			&cli.BoolFlag{Name: "json", Usage: "Print the result as JSON"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("extract needs exactly one file", 2)
			}
			extractor := metadata.NewExtractor(metadata.WithCRCValidation(c.Bool("validate-crc")))
			res := extractor.Extract(c.Context, c.Args().First())

			if c.Bool("json") {
				if err := outputJSON(c.App.Writer, res); err != nil {
					return err
				}
			} else {
				printMetadata(c.App.Writer, res)
			}

			if res.Reason == metadata.ReasonFileNotFound {
				return cli.Exit(res.Message, 1)
			}
			return nil
		},
	}
}

// thumbnailCmd creates the thumbnail command.
func thumbnailCmd() *cli.Command {
	return &cli.Command{
		Name:      "thumbnail",
		Usage:     "Generate or look up the cached thumbnail for a file",
		ArgsUsage: "<file>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("thumbnail needs exactly one file", 2)
			}
			cache, err := openCache(c)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			path, err := cache.GetOrGenerate(c.Context, c.Args().First())
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			fmt.Fprintln(c.App.Writer, path)
			return nil
		},
	}
}

// cacheCmd creates the cache maintenance commands.
func cacheCmd() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Maintain the thumbnail cache",
		Subcommands: []*cli.Command{
			{
				Name:  "clear",
				Usage: "Delete every cached thumbnail",
				Action: func(c *cli.Context) error {
					cache, err := openCache(c)
					if err != nil {
						return cli.Exit(err.Error(), 1)
					}
					if err := cache.Clear(); err != nil {
						return cli.Exit(err.Error(), 1)
					}
					fmt.Fprintf(c.App.Writer, "Cleared %s\n", cache.Dir())
					return nil
				},
			},
			{
				Name:  "cleanup",
				Usage: "Remove leftover temp files and unreadable thumbnails",
				Action: func(c *cli.Context) error {
					cache, err := openCache(c)
					if err != nil {
						return cli.Exit(err.Error(), 1)
					}
					removed, err := cache.CleanupInvalid()
					if err != nil {
						return cli.Exit(err.Error(), 1)
					}
					fmt.Fprintf(c.App.Writer, "Removed %d invalid files\n", removed)
					return nil
				},
			},
			{
				Name:  "stats",
				Usage: "Show the number and total size of cached thumbnails",
				Action: func(c *cli.Context) error {
					cache, err := openCache(c)
					if err != nil {
						return cli.Exit(err.Error(), 1)
					}
					count, size, err := cache.Stats()
					if err != nil {
						return cli.Exit(err.Error(), 1)
					}
					fmt.Fprintf(c.App.Writer, "%d thumbnails, %d bytes\n", count, size)
					return nil
				},
			},
		},
	}
}

// outputJSON writes v as indented JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// progressPrinter rewrites a single status line on each report.
func progressPrinter(w io.Writer) func(importer.Progress) {
	return func(p importer.Progress) {
		fmt.Fprintf(w, "\r\033[K[%d/%d] %s", p.Done, p.Total, p.Current)
		if p.Total > 0 && p.Done == p.Total {
			fmt.Fprintln(w)
		}
	}
}

func printRunResult(w io.Writer, res *importer.RunResult) {
	fmt.Fprintf(w, "Run %s: %s\n", res.RunID, res.Root)
	fmt.Fprintf(w, "  total: %d  success: %d  failed: %d (manual entry: %d)  skipped: %d\n",
		res.Total, res.SuccessCount, res.FailureCount, res.ManualCount, res.Skipped)
	fmt.Fprintf(w, "  duration: %v\n", res.Duration)
	if res.Cancelled {
		fmt.Fprintln(w, "  cancelled: partial result")
	}
	if len(res.Errors) > 0 {
		fmt.Fprintln(w, "  errors:")
		for _, e := range res.Errors {
			fmt.Fprintf(w, "    %s\n", e.Error())
		}
	}
}

func printMetadata(w io.Writer, res metadata.Result) {
	fmt.Fprintln(w, res.String())
	if !res.Success {
		return
	}
	md := res.Metadata
	field := func(name string, v any) {
		fmt.Fprintf(w, "  %-16s %v\n", name+":", v)
	}
	if md.Prompt != nil {
		field("prompt", *md.Prompt)
	}
	if md.NegativePrompt != nil {
		field("negative prompt", *md.NegativePrompt)
	}
	if md.Steps != nil {
		field("steps", *md.Steps)
	}
	if md.Sampler != nil {
		field("sampler", *md.Sampler)
	}
	if md.CFGScale != nil {
		field("cfg scale", *md.CFGScale)
	}
	if md.Seed != nil {
		field("seed", *md.Seed)
	}
	if md.Width != nil && md.Height != nil {
		field("size", fmt.Sprintf("%dx%d", *md.Width, *md.Height))
	}
	if md.ModelName != nil {
		field("model", *md.ModelName)
	}
	if md.ModelHash != nil {
		field("model hash", *md.ModelHash)
	}
}
