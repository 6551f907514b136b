package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pavelanni/assessor/internal/config"
	"github.com/pavelanni/assessor/internal/doctext"
	"github.com/pavelanni/assessor/internal/evaluate"
	"github.com/pavelanni/assessor/internal/generate"
	"github.com/pavelanni/assessor/internal/handler"
	appI18n "github.com/pavelanni/assessor/internal/i18n"
	"github.com/pavelanni/assessor/internal/ledger"
	"github.com/pavelanni/assessor/internal/llm"
	"github.com/pavelanni/assessor/internal/model"
	"github.com/pavelanni/assessor/internal/report"
	"github.com/pavelanni/assessor/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "assessor",
		Short: "Generate assessments from study documents and grade student answers with LLMs",
	}

	serve := serveCmd()
	root.AddCommand(serve, generateCmd(), exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.StringP("lang", "l", "en", "Default language of error messages (en, ru)")
	f.String("ledger", "grades.csv", "CSV file that receives one row per graded submission")
	f.Int("excerpt-runes", generate.DefaultExcerptRunes, "Maximum document characters included in the generation prompt")
	f.Int("min-questions", generate.DefaultMinQuestions, "Minimum number of questions a generation response must contain")
	f.Bool("ping-llm", false, "Check every LLM endpoint at startup")
	addStoreFlags(f)
	addProviderFlags(f)
	addLogFlags(f)
	return cmd
}

func generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate questions from a document and print them as JSON",
		RunE:  runGenerate,
	}
	f := cmd.Flags()
	f.String("file", "", "Study document (PDF or plain text)")
	f.String("grade", "", "Grade level, e.g. \"Grade 8\"")
	f.String("subject", "", "Subject")
	f.String("difficulty", "Medium", "Difficulty (Easy, Medium, Hard, Expert)")
	f.String("type", "Mixed", "Question type (MCQ, Subjective, One-liner, Mixed)")
	f.String("topic", "", "Topic stored with the assignment when --save is set")
	f.Bool("save", false, "Store the generated questions as an assignment")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.Int("excerpt-runes", generate.DefaultExcerptRunes, "Maximum document characters included in the generation prompt")
	f.Int("min-questions", generate.DefaultMinQuestions, "Minimum number of questions a generation response must contain")
	addStoreFlags(f)
	addProviderFlags(f)
	addLogFlags(f)

	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("grade")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export assignments, evaluations and statistics",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("format", "json", "Output format (json, xlsx)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addStoreFlags(f)
	addLogFlags(f)
	return cmd
}

func addStoreFlags(f *pflag.FlagSet) {
	f.String("store", config.StoreSQLite, "Document store backend (sqlite, mongo)")
	f.String("db", "assessor.db", "SQLite database path")
	f.String("mongo-uri", "", "MongoDB connection URI")
	f.String("mongo-database", "assessor", "MongoDB database name")
}

func addProviderFlags(f *pflag.FlagSet) {
	f.String("fast-url", config.GroqBaseURL, "Fast text provider base URL")
	f.String("fast-key", "", "Fast text provider API key (or GROQ_API_KEY)")
	f.String("fast-model", config.GroqModel, "Fast text provider model")
	f.String("native-url", config.GeminiBaseURL, "Native document provider base URL")
	f.String("native-key", "", "Native document provider API key (or GEMINI_API_KEY)")
	f.String("native-model", config.GeminiModel, "Native document provider model")
	f.String("grader-url", config.GroqBaseURL, "Grading provider base URL")
	f.String("grader-key", "", "Grading provider API key (or GROQ_API_KEY)")
	f.String("grader-model", config.GroqModel, "Grading provider model")
	f.Float64("temperature", 0.2, "Sampling temperature for every provider")
}

func addLogFlags(f *pflag.FlagSet) {
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func setupLogging(v *viper.Viper) {
	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper
// instance. A .env file in the working directory is loaded first.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	if err := config.LoadDotEnv(); err != nil {
		slog.Warn("error reading .env file", "error", err)
	}

	v := viper.New()
	config.SetDefaults(v)
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("ASSESSOR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("assessor")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/assessor")
	v.AddConfigPath("/etc/assessor")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// loadConfig sets up logging and returns the validated configuration along
// with the viper instance for command-specific keys.
func loadConfig(cmd *cobra.Command, providers ...string) (*config.Config, *viper.Viper, error) {
	v := viperForCmd(cmd)
	setupLogging(v)
	cfg := config.FromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if err := cfg.ValidateProviders(providers...); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := appI18n.Init(cfg.Lang); err != nil {
		return nil, nil, fmt.Errorf("init i18n: %w", err)
	}
	return cfg, v, nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.DocumentStore, error) {
	switch cfg.Store {
	case config.StoreMongo:
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		s, err := store.NewMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		slog.Info("using MongoDB store", "database", cfg.MongoDatabase)
		return s, nil
	default:
		s, err := store.New(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		slog.Info("using SQLite store", "path", cfg.DBPath)
		return s, nil
	}
}

func newClient(p config.Provider) *llm.Client {
	return llm.New(llm.Options{
		Name:        p.Name,
		BaseURL:     p.BaseURL,
		APIKey:      p.APIKey,
		Model:       p.Model,
		Temperature: p.Temperature,
	})
}

func newGenerator(cfg *config.Config) (*generate.Generator, []*llm.Client) {
	fast, native := newClient(cfg.Fast), newClient(cfg.Native)
	gen := generate.New(fast, native, doctext.New(nil), generate.Options{
		ExcerptRunes: cfg.ExcerptRunes,
		MinQuestions: cfg.MinQuestions,
	})
	return gen, []*llm.Client{fast, native}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig(cmd, "fast", "native", "grader")
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	docs, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer docs.Close()
	repo := store.NewRepository(docs)

	gen, clients := newGenerator(cfg)
	grader := newClient(cfg.Grader)
	clients = append(clients, grader)
	if cfg.PingLLM {
		for _, c := range clients {
			if err := c.Ping(ctx); err != nil {
				return fmt.Errorf("LLM health check %s: %w", c.Name(), err)
			}
			slog.Info("LLM endpoint OK", "provider", c.Name())
		}
	}

	var ledgerSink evaluate.Ledger
	if cfg.LedgerPath != "" {
		ledgerSink = ledger.New(cfg.LedgerPath, nil)
	}
	eval := evaluate.New(grader, repo, ledgerSink, nil)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler.New(gen, eval, repo, nil).Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server",
			"addr", cfg.Addr,
			"store", cfg.Store,
			"fast_model", cfg.Fast.Model,
			"native_model", cfg.Native.Model,
			"grader_model", cfg.Grader.Model,
			"lang", cfg.Lang,
			"ledger", cfg.LedgerPath,
		)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	cfg, v, err := loadConfig(cmd, "fast", "native")
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	path := v.GetString("file")
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}
	difficulty, err := model.ParseDifficulty(v.GetString("difficulty"))
	if err != nil {
		return err
	}
	questionType, err := model.ParseQuestionType(v.GetString("type"))
	if err != nil {
		return err
	}
	spec := model.AssessmentSpec{
		GradeLevel:   v.GetString("grade"),
		Subject:      v.GetString("subject"),
		Difficulty:   difficulty,
		QuestionType: questionType,
	}

	gen, _ := newGenerator(cfg)
	doc := model.SourceDocument{
		Name:      filepath.Base(path),
		MediaType: doctext.MediaType(data, ""),
		Data:      data,
	}
	res, err := gen.Generate(ctx, doc, spec)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, appI18n.Tp(ctx, "QuestionsGenerated", res.Questions.Len()))

	var out any = res
	if v.GetBool("save") {
		docs, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer docs.Close()
		a, err := store.NewRepository(docs).AddAssignment(ctx, model.Assignment{
			Questions:  res.Questions,
			Subject:    spec.Subject,
			Grade:      spec.GradeLevel,
			Difficulty: string(spec.Difficulty),
			Topic:      v.GetString("topic"),
		})
		if err != nil {
			return fmt.Errorf("save assignment: %w", err)
		}
		slog.Info("assignment saved", "assignment_id", a.ID)
		out = a
	}

	return writeOutput(v.GetString("output"), func(w io.Writer) error {
		return writeJSON(w, out)
	})
}

func runExport(cmd *cobra.Command, _ []string) error {
	cfg, v, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	docs, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer docs.Close()
	repo := store.NewRepository(docs)

	outPath := v.GetString("output")
	switch format := strings.ToLower(v.GetString("format")); format {
	case "json":
		exp, err := repo.Export(ctx)
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		err = writeOutput(outPath, func(w io.Writer) error { return writeJSON(w, exp) })
		if err != nil {
			return err
		}
	case "xlsx":
		if outPath == "" || outPath == "-" {
			return errors.New("xlsx export needs --output")
		}
		snap, err := repo.Snapshot(ctx)
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		err = writeOutput(outPath, func(w io.Writer) error {
			return report.Write(w, snap.Assignments, snap.Evaluations)
		})
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported format %q (json, xlsx)", format)
	}

	if outPath != "" && outPath != "-" {
		fmt.Fprintln(os.Stderr, appI18n.Td(ctx, "ExportWritten", map[string]any{"Path": outPath}))
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)
	return nil
}

// writeOutput runs write against stdout or the named file.
func writeOutput(path string, write func(io.Writer) error) error {
	if path == "" || path == "-" {
		return write(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
