package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/shanehull/grantwatch/internal/ai"
	"github.com/shanehull/grantwatch/internal/classify"
	"github.com/shanehull/grantwatch/internal/config"
	"github.com/shanehull/grantwatch/internal/history"
	"github.com/shanehull/grantwatch/internal/keywords"
	"github.com/shanehull/grantwatch/internal/logging"
	"github.com/shanehull/grantwatch/internal/notify"
	"github.com/shanehull/grantwatch/internal/pipeline"
	"github.com/shanehull/grantwatch/internal/source"
)

type runOptions struct {
	sources []string
	dryRun  bool
}

func newRunCmd(flags *rootFlags) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Poll the enabled sources once and notify new announcements",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOnce(cmd.Context(), flags, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringSliceVar(&opts.sources, "source", nil, "sources to poll (bizinfo, kstartup, iris); default all enabled")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "print messages instead of sending them")
	return cmd
}

func runOnce(ctx context.Context, flags *rootFlags, opts *runOptions, stdout, stderr io.Writer) error {
	cfg, err := config.Load(flags.configFile)
	if err != nil {
		return err
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	if flags.logFormat != "" {
		cfg.LogFormat = flags.logFormat
	}

	names, err := cfg.Selected(opts.sources)
	if err != nil {
		return err
	}
	if err := cfg.Validate(names, opts.dryRun); err != nil {
		return err
	}

	log, runID := logging.WithRun(logging.New(cfg.LogLevel, cfg.LogFormat, stderr))
	if len(names) == 0 {
		log.Warn().Msg("no sources enabled")
		return nil
	}

	tx, err := keywords.Load(cfg.KeywordsFile)
	if err != nil {
		return err
	}

	sender, err := buildSender(cfg, opts.dryRun, stdout, log)
	if err != nil {
		return err
	}

	var summarizer ai.Summarizer
	if cfg.SummaryEnabled {
		s, err := ai.NewGeminiSummarizer(ctx, ai.GeminiConfig{APIKey: cfg.GeminiKey, Model: cfg.SummaryModel})
		if err != nil {
			return err
		}
		summarizer = s
	}

	client := source.NewClient(cfg.HTTPTimeout, log)
	var sources []pipeline.Source
	defer func() {
		for _, src := range sources {
			if err := src.History.Close(); err != nil {
				log.Warn().Err(err).Str("source", src.Adapter.Name()).Msg("failed to close state store")
			}
		}
	}()
	for _, name := range names {
		src, err := buildSource(ctx, cfg, name, tx, client, log)
		if err != nil {
			return err
		}
		sources = append(sources, src)
	}

	log.Info().Strs("sources", names).Bool("dry_run", opts.dryRun).Msg("run started")

	runner := pipeline.NewRunner(classify.NewClassifier(tx), sender, summarizer, log)
	reports, runErr := runner.RunAll(ctx, sources, cfg.SourcePause)

	if err := printReports(stderr, reports); err != nil {
		return err
	}
	sent := 0
	for _, rep := range reports {
		sent += rep.Sent
	}
	if sent == 0 && runErr == nil {
		notify.ReportNothing(stdout, names)
	}

	log.Info().Str("run_id", runID).Int("sent", sent).Msg("run finished")
	return runErr
}

func buildSource(ctx context.Context, cfg *config.Config, name string, tx *keywords.Taxonomy, client *source.Client, log zerolog.Logger) (pipeline.Source, error) {
	sc := cfg.Sources[name]

	var adapter source.Adapter
	switch name {
	case config.SourceBizinfo:
		tags := cfg.BizinfoHashtags
		if len(tags) == 0 {
			tags = tx.Hashtags()
		}
		adapter = source.NewBizinfo(source.BizinfoConfig{
			APIKey:      cfg.BizinfoKey,
			Endpoint:    cfg.BizinfoEndpoint,
			ResultCount: cfg.BizinfoResultCount,
			Hashtags:    tags,
		}, client, log)
	case config.SourceKStartup:
		k, err := source.NewKStartup(source.KStartupConfig{
			URLs:         cfg.KStartupURLs,
			AllowPattern: cfg.KStartupAllow,
		}, client, log)
		if err != nil {
			return pipeline.Source{}, err
		}
		adapter = k
	case config.SourceIRIS:
		adapter = source.NewIRIS(source.IRISConfig{URL: cfg.IRISURL, Limit: cfg.IRISLimit}, client, log)
	default:
		return pipeline.Source{}, fmt.Errorf("%w: %s", config.ErrUnknownSource, name)
	}

	mode, ok := notify.ParseMode(sc.Mode)
	if !ok {
		return pipeline.Source{}, fmt.Errorf("invalid mode %q for source %s", sc.Mode, name)
	}

	store, err := history.Open(ctx, history.Config{
		Driver:      cfg.State.Driver,
		Dir:         cfg.State.Dir,
		SQLitePath:  cfg.State.SQLitePath,
		RedisAddr:   cfg.State.RedisAddr,
		RedisPrefix: cfg.State.RedisPrefix,
	}, name, sc.StateFile, log)
	if err != nil {
		return pipeline.Source{}, fmt.Errorf("failed to open state for %s: %w", name, err)
	}

	return pipeline.Source{
		Adapter:   adapter,
		Label:     sc.Label,
		Mode:      mode,
		MaxPerRun: sc.MaxPerRun,
		DigestMax: sc.DigestMax,
		Pace:      sc.Pace,
		Filter:    classify.NewFilter(tx.Source(name)),
		History:   history.NewManager(store, log.With().Str("source", name).Logger()),
	}, nil
}

func buildSender(cfg *config.Config, dryRun bool, stdout io.Writer, log zerolog.Logger) (notify.Sender, error) {
	if dryRun {
		return notify.NewConsoleSender(stdout), nil
	}
	switch cfg.NotifyDriver {
	case "console":
		return notify.NewConsoleSender(stdout), nil
	case "telegram":
		return notify.NewTelegramSender(notify.TelegramConfig{
			Token:  cfg.TelegramToken,
			ChatID: cfg.TelegramChatID,
			APIURL: cfg.TelegramAPIURL,
		})
	case "email":
		return notify.NewEmailSender(notify.EmailConfig{
			SMTPServer: cfg.SMTP.Server,
			SMTPPort:   cfg.SMTP.Port,
			SMTPUser:   cfg.SMTP.User,
			SMTPPass:   cfg.SMTP.Pass,
			FromEmail:  cfg.SMTP.From,
			ToEmail:    cfg.SMTP.To,
		}, log)
	}
	return nil, fmt.Errorf("%w: notify.driver %q", config.ErrUnknownDriver, cfg.NotifyDriver)
}

func printReports(w io.Writer, reports []pipeline.Report) error {
	if len(reports) == 0 {
		return nil
	}
	header := []string{"source", "stage", "fetched", "new", "relevant", "classified", "sent", "marked", "seen"}
	rows := make([][]string, 0, len(reports))
	for _, r := range reports {
		rows = append(rows, []string{
			r.Source,
			r.Stage,
			strconv.Itoa(r.Fetched),
			strconv.Itoa(r.New),
			strconv.Itoa(r.Relevant),
			strconv.Itoa(r.Classified),
			strconv.Itoa(r.Sent),
			strconv.Itoa(r.Marked),
			strconv.Itoa(r.SeenTotal),
		})
	}
	return writeTable(w, header, rows)
}

// exitCode maps a run error to the process status.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var missing *config.MissingError
	if errors.As(err, &missing) {
		return 2
	}
	return 1
}
