package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/djx/internal/provider"
	"github.com/desertthunder/djx/internal/selector"
	"github.com/desertthunder/djx/internal/shared"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	selector   *selector.Client
	bridge     *provider.Bridge
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	Selector   *selector.Client
	Bridge     *provider.Bridge
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Selector == nil {
		opts.Selector = selector.NewClient(opts.Config.Selector.BaseURL, opts.HTTPClient, opts.Config.Selector.WriteRate, opts.Logger)
	}
	if opts.Bridge == nil {
		opts.Bridge = provider.NewBridge(opts.Config.Provider.BaseURL, opts.HTTPClient, opts.Logger)
	}

	return &Runner{
		config:     opts.Config,
		selector:   opts.Selector,
		bridge:     opts.Bridge,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

// reloadConfig swaps in the config file named by --config when it exists.
func (r *Runner) reloadConfig(cmd *cli.Command) {
	configPath := cmd.String("config")
	if configPath == "" {
		return
	}
	if _, err := os.Stat(configPath); err != nil {
		return
	}

	config, err := shared.LoadConfig(configPath)
	if err != nil {
		r.logger.Warnf("failed to load config, keeping current settings %v", err)
		return
	}
	r.config = config
	r.selector = selector.NewClient(config.Selector.BaseURL, r.httpClient, config.Selector.WriteRate, r.logger)
	r.bridge = provider.NewBridge(config.Provider.BaseURL, r.httpClient, r.logger)
}

// openDatabase opens the configured sqlite database with migrations applied.
func (r *Runner) openDatabase() (*sql.DB, error) {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

// connectBridge obtains a provider token and authorizes the bridge session.
// One-shot commands call this instead of running a full session guardian.
func (r *Runner) connectBridge(ctx context.Context) error {
	if err := r.installToken(ctx); err != nil {
		return err
	}
	if err := r.bridge.Authorize(ctx); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}
	return nil
}

// installToken places a bearer token on the bridge per the configured auth
// mode. The interactive OAuth flow lives in auth.go; here the selector's
// developer token is the non-interactive path.
func (r *Runner) installToken(ctx context.Context) error {
	switch r.config.Provider.AuthMode {
	case "", "selector":
		token, err := r.selector.Token(ctx, r.config.Provider.Origin)
		if err != nil {
			return fmt.Errorf("failed to obtain provider token: %w", err)
		}
		r.bridge.SetToken(token.Token)
		return nil
	case "oauth":
		token, err := r.doOAuth(ctx)
		if err != nil {
			return err
		}
		r.bridge.SetTokenSource(r.oauthConfig().TokenSource(ctx, token))
		return nil
	default:
		return fmt.Errorf("%w: unknown auth_mode %q", shared.ErrInvalidConfig, r.config.Provider.AuthMode)
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, runCommand, djCommand, weightsCommand, stateCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
