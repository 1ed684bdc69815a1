package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aadjones/kent-repertory-etl/internal/config"
	"github.com/aadjones/kent-repertory-etl/internal/fetch"
	"github.com/aadjones/kent-repertory-etl/internal/logging"
	"github.com/aadjones/kent-repertory-etl/internal/metrics"
	"github.com/aadjones/kent-repertory-etl/internal/pipeline"
	"github.com/aadjones/kent-repertory-etl/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "0.1.0"

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "kentetl",
		Short: "Kent's Repertory rubric and remedy extractor",
		Long: `kentetl converts the HTML edition of Kent's Repertory into structured
rubric trees with graded remedies.

It can:
  - download the raw corpus pages
  - convert a page to canonical JSON
  - store converted chapters in SQLite
  - serve conversion and lookup over HTTP`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (KENTETL_* env vars override it)")

	rootCmd.AddCommand(convertCmd())
	rootCmd.AddCommand(downloadCmd())
	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(loadCmd())
	rootCmd.AddCommand(serveCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the logger shared by all commands.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func newFetcher(cfg *config.Config) *fetch.Auto {
	return &fetch.Auto{
		HTTP: fetch.NewHTTPFetcher(cfg.FetchTimeout, cfg.FetchRate),
		File: fetch.FileFetcher{},
	}
}

func newConverter(cfg *config.Config, m *metrics.Metrics, log *zap.Logger) *pipeline.Converter {
	return pipeline.NewConverter(newFetcher(cfg), pipeline.ConverterOptions{
		MaxDepth:       cfg.MaxDepth,
		DefaultSection: cfg.DefaultSection,
		RawDir:         cfg.RawDir,
		Metrics:        m,
		Logger:         log,
	})
}

func hintFlags(cmd *cobra.Command) {
	cmd.Flags().String("section", "", "section keyword (e.g. MIND); seeded from the page when empty")
	cmd.Flags().String("start-page", "", "page marker for content before the first page break (e.g. P6)")
	cmd.Flags().String("page-info", "", "page range stored with the document (e.g. \"p. 6-10\")")
}

func readHints(cmd *cobra.Command) pipeline.Hints {
	section, _ := cmd.Flags().GetString("section")
	startPage, _ := cmd.Flags().GetString("start-page")
	pageInfo, _ := cmd.Flags().GetString("page-info")
	return pipeline.Hints{Section: section, StartPage: startPage, PageInfo: pageInfo}
}

func convertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert <source>",
		Short: "Convert one page to canonical JSON",
		Long: `Convert a local file, URL or corpus file number to canonical JSON.

A bare number such as 0005 reads raw_dir/kent0005_P6.html and infers the
start page and page range from it.

Example:
  kentetl convert 0005
  kentetl convert data/raw/kent0000_P1.html --out mind.json
  kentetl convert http://homeoint.org/books/kentrep/kent0000.htm --save`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("out")
			save, _ := cmd.Flags().GetBool("save")

			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			conv := newConverter(cfg, nil, log)
			res, err := conv.Convert(cmd.Context(), args[0], readHints(cmd))
			if err != nil {
				return err
			}
			log.Info("converted",
				zap.String("source", args[0]),
				zap.String("section", res.Canonical.Section),
				zap.Int("rubrics", res.Rubrics),
				zap.Int("remedies", res.Remedies),
			)

			switch {
			case save:
				path, err := pipeline.WriteChapter(cfg.OutputDir, res.Canonical)
				if err != nil {
					return err
				}
				fmt.Printf("Saved %s\n", path)
			case out != "":
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create %s: %w", out, err)
				}
				if err := pipeline.EncodeChapter(f, res.Canonical); err != nil {
					f.Close()
					return fmt.Errorf("write %s: %w", out, err)
				}
				if err := f.Close(); err != nil {
					return err
				}
				fmt.Printf("Wrote %s\n", out)
			default:
				return pipeline.EncodeChapter(os.Stdout, res.Canonical)
			}
			return nil
		},
	}
	hintFlags(cmd)
	cmd.Flags().StringP("out", "o", "", "output file (default stdout)")
	cmd.Flags().Bool("save", false, "write chapter_<title>.json into output_dir")
	return cmd
}

func downloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download raw corpus pages",
		Long: `Download numbered corpus files into the raw directory as
kent<NNNN>_P<N+1>.html.

Example:
  kentetl download --start 0 --end 100
  kentetl download --start 305 --end 305 --out-dir /tmp/raw`,
		RunE: func(cmd *cobra.Command, args []string) error {
			start, _ := cmd.Flags().GetInt("start")
			end, _ := cmd.Flags().GetInt("end")
			step, _ := cmd.Flags().GetInt("step")
			outDir, _ := cmd.Flags().GetString("out-dir")
			concurrency, _ := cmd.Flags().GetInt("concurrency")

			if start < 0 || end < start {
				return fmt.Errorf("invalid range %d-%d", start, end)
			}

			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			if outDir == "" {
				outDir = cfg.RawDir
			}
			if concurrency <= 0 {
				concurrency = cfg.MaxConcurrentFetch
			}

			nums := fetch.Identifiers(start, end, step)
			fetcher := fetch.NewHTTPFetcher(cfg.FetchTimeout, cfg.FetchRate)
			failed, err := fetch.Download(cmd.Context(), fetcher, nums, outDir, concurrency, log)
			if err != nil {
				return err
			}
			fmt.Printf("Downloaded %d of %d files to %s\n", len(nums)-failed, len(nums), outDir)
			if failed > 0 {
				return fmt.Errorf("%d downloads failed", failed)
			}
			return nil
		},
	}
	cmd.Flags().Int("start", 0, "first file number")
	cmd.Flags().Int("end", fetch.LastFile, "last file number")
	cmd.Flags().Int("step", fetch.PagesPerFile, "file number increment")
	cmd.Flags().String("out-dir", "", "directory for raw pages (default raw_dir)")
	cmd.Flags().Int("concurrency", 0, "parallel downloads (default max_concurrent_fetch)")
	return cmd
}

func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <source>...",
		Short: "Convert sources and store them in the database",
		Long: `Fetch, convert and store one or more sources. Sources whose content
is already stored are skipped.

Example:
  kentetl ingest 0000 0005 0010 --section MIND`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			st, err := store.Open(cfg.DatabasePath, log)
			if err != nil {
				return err
			}
			defer st.Close()

			worker := pipeline.NewWorker(newConverter(cfg, nil, log), st, nil, log, cfg.MaxConcurrentFetch)
			job := pipeline.NewJob(args, readHints(cmd))
			worker.Process(cmd.Context(), job)

			snap := job.Snapshot()
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(snap); err != nil {
				return err
			}
			if snap.Status == pipeline.StatusFailed {
				return errors.New("ingest failed")
			}
			return nil
		},
	}
	hintFlags(cmd)
	return cmd
}

func loadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load <chapter.json>...",
		Short: "Store previously converted JSON chapters",
		Long: `Insert chapter JSON files produced by convert into the database.
Files already loaded (same content hash) are skipped.

Example:
  kentetl load data/processed/*.json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			st, err := store.Open(cfg.DatabasePath, log)
			if err != nil {
				return err
			}
			defer st.Close()

			loaded, skipped := 0, 0
			for _, path := range args {
				ok, err := loadChapter(cmd.Context(), st, path)
				if err != nil {
					return err
				}
				if ok {
					loaded++
					log.Info("chapter loaded", zap.String("path", path))
				} else {
					skipped++
					log.Info("chapter already stored, skipping", zap.String("path", path))
				}
			}
			fmt.Printf("Loaded %d chapters (%d skipped)\n", loaded, skipped)
			return nil
		},
	}
}

func loadChapter(ctx context.Context, st *store.Store, path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	hash := pipeline.ContentHashHex(data)
	if _, err := st.FindByHash(ctx, hash); err == nil {
		return false, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return false, err
	}

	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()
	doc, err := store.DecodeChapter(f)
	if err != nil {
		return false, fmt.Errorf("%s: %w", path, err)
	}
	if _, err := st.SaveDocument(ctx, doc, hash); err != nil {
		return false, fmt.Errorf("%s: %w", path, err)
	}
	return true, nil
}
