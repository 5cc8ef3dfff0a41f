package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/chitti-ai/chitti/internal/bridge/terminal"
	"github.com/chitti-ai/chitti/internal/brain"
	"github.com/chitti-ai/chitti/internal/conductor"
	"github.com/chitti-ai/chitti/internal/config"
	"github.com/chitti-ai/chitti/internal/tools"
	"github.com/chitti-ai/chitti/internal/tools/sandbox"
)

// version is the only build-time identifier this daemon carries; there is
// no release pipeline in scope to stamp it via ldflags, so it stays a
// literal per the "version" subcommand's contract.
const version = "0.1.0"

var (
	configPath  string
	modelFlag   string
	verboseFlag bool
	logger      *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "chitti",
	Short: "Chitti — a conversational-agent conductor over a streaming brain API",
	Long: `Chitti conducts a turn loop between an operator, a streaming brain
API, and a local tool registry: it streams assistant text as it arrives,
dispatches tool calls the brain requests, round-trips their results, and
repeats until the brain settles on a final answer.

Run without arguments to start the interactive terminal session.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verboseFlag {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runInteractive,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the Chitti version and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("chitti", version)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".env", "Path to a .env-style configuration file")
	rootCmd.PersistentFlags().StringVar(&modelFlag, "model", "", "Override brain.default_model for this session")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable debug-level logging")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps §6's exit-code contract: 0 normal, 1 configuration
// error, 2 fatal brain error on startup probe.
func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return 0
	case isConfigError(err):
		return 1
	default:
		return 2
	}
}

func isConfigError(err error) bool {
	_, ok := err.(*startupConfigError)
	return ok
}

type startupConfigError struct{ err error }

func (e *startupConfigError) Error() string { return e.err.Error() }
func (e *startupConfigError) Unwrap() error { return e.err }

func runInteractive(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return &startupConfigError{err: err}
	}

	model := cfg.Brain.DefaultModel
	if modelFlag != "" {
		model = modelFlag
	}
	if model == "" {
		return &startupConfigError{err: fmt.Errorf("no model configured: set brain.default_model or pass --model")}
	}

	if cfg.Log.Level == "off" {
		logger = zap.NewNop()
	} else {
		logger = logger.WithOptions(zap.IncreaseLevel(translateLogLevel(cfg.Log.Level)))
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolving working directory: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	brainClient := &brain.Client{
		BaseURL:    cfg.Brain.BaseURL,
		Credential: cfg.Brain.Credential,
		Timeout:    cfg.Brain.RequestTimeout,
		Log:        logger.Named("brain"),
	}

	term := terminal.New(os.Stdin, os.Stdout, int(os.Stdin.Fd()))
	term.SetStatus(terminal.StatusState{
		Model:     model,
		PWD:       cwd,
		GitBranch: gitBranch(cwd),
	})

	registry, err := buildRegistry(cfg, cwd, term)
	if err != nil {
		return fmt.Errorf("building tool registry: %w", err)
	}

	cond := conductor.New(brainClient, registry, term, conductor.Config{
		Model:             model,
		MaxTurnRoundtrips: cfg.Conductor.MaxTurnRoundtrips,
	}, logger.Named("conductor"))

	if err := cond.Run(ctx); err != nil && err != conductor.ErrQuit {
		return fmt.Errorf("conductor exited: %w", err)
	}
	return nil
}

// buildRegistry wires the sandbox reference toolset to the current working
// directory and the authorize_by_default posture from configuration,
// generalizing the teacher's single global tool list into a per-run
// dependency container (sdk/tools/deps.go).
func buildRegistry(cfg *config.Config, cwd string, authorizer tools.Authorizer) (*tools.Registry, error) {
	sb, err := sandbox.New(cwd)
	if err != nil {
		return nil, err
	}

	deps := tools.NewContainer()
	tools.Provide(deps, sandbox.Key, func(ctx context.Context) (*sandbox.Sandbox, error) { return sb, nil })
	tools.Provide(deps, sandbox.MaxOutputBytesKey, func(ctx context.Context) (int, error) {
		return cfg.Tools.Bash.MaxOutputBytes, nil
	})
	tools.Provide(deps, sandbox.TimeoutKey, func(ctx context.Context) (int, error) {
		return int(cfg.Tools.Bash.Timeout.Seconds()), nil
	})

	toolset := sandbox.Tools()
	if !cfg.Tools.Bash.Enabled {
		toolset = withoutBash(toolset)
	}

	var auth tools.Authorizer = authorizer
	if cfg.Conductor.AuthorizeByDefault {
		auth = tools.AllowAll{}
	}

	return tools.NewRegistry(toolset, deps, auth)
}

func withoutBash(in []tools.Tool) []tools.Tool {
	out := make([]tools.Tool, 0, len(in))
	for _, t := range in {
		if t.Name == "bash" {
			continue
		}
		out = append(out, t)
	}
	return out
}

func translateLogLevel(level string) zapcore.Level {
	switch level {
	case "error":
		return zapcore.ErrorLevel
	case "warn":
		return zapcore.WarnLevel
	case "debug":
		return zapcore.DebugLevel
	case "trace":
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

func gitBranch(cwd string) string {
	data, err := os.ReadFile(cwd + "/.git/HEAD")
	if err != nil {
		return ""
	}
	const prefix = "ref: refs/heads/"
	s := string(data)
	if len(s) > len(prefix) && s[:len(prefix)] == prefix {
		return s[len(prefix) : len(s)-1]
	}
	return ""
}
