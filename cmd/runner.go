package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/spotlake/internal/delivery"
	"github.com/desertthunder/spotlake/internal/events"
	"github.com/desertthunder/spotlake/internal/services"
	"github.com/desertthunder/spotlake/internal/shared"
	"github.com/desertthunder/spotlake/internal/storage"
)

// Runner holds the dependencies shared by every command and builds per-invocation clients.
type Runner struct {
	config     *shared.Config
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	input      io.Reader
	lookupEnv  func(string) (string, bool)
	now        func() time.Time
	opener     *storage.Opener
}

// RunnerOpts contains configuration options for creating a Runner.
//
// A non-nil Config skips loading the config file; environment overrides are still applied.
type RunnerOpts struct {
	Config     *shared.Config
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Input      io.Reader
	LookupEnv  func(string) (string, bool)
	Now        func() time.Time
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.LookupEnv == nil {
		opts.LookupEnv = os.LookupEnv
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Runner{
		config:     opts.Config,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		input:      opts.Input,
		lookupEnv:  opts.LookupEnv,
		now:        opts.Now,
		opener:     &storage.Opener{},
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		fetchCommand, normalizeCommand, recapCommand, releaseRadarCommand, rotateCommand, stageCommand,
		setupCommand, rulesCommand, contractsCommand, authCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// prepare loads configuration, applies --verbose, checks the fields the command needs, and derives the
// invocation context from --timeout. The returned cancel func must be called.
func (r *Runner) prepare(ctx context.Context, cmd *cli.Command, required ...string) (context.Context, context.CancelFunc, error) {
	if err := r.loadConfig(cmd); err != nil {
		return ctx, func() {}, err
	}

	level := shared.ParseLogLevel(r.config.Log.Level)
	if cmd.Bool("verbose") {
		level = log.DebugLevel
	}
	shared.SetLogLevel(r.logger, level)

	if err := r.config.Require(required...); err != nil {
		return ctx, func() {}, err
	}

	if timeout := cmd.Duration("timeout"); timeout > 0 {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		return ctx, cancel, nil
	}
	ctx, cancel := context.WithCancel(ctx)
	return ctx, cancel, nil
}

func (r *Runner) loadConfig(cmd *cli.Command) error {
	if r.config == nil {
		if err := shared.LoadEnvFile(cmd.String("env-file")); err != nil {
			return err
		}

		path := cmd.String("config")
		config, err := shared.LoadConfig(path)
		switch {
		case err == nil:
			r.config = config
		case errors.Is(err, shared.ErrMissingConfig) && !cmd.IsSet("config"):
			r.logger.Debug("no config file, using defaults", "path", path)
			r.config = shared.DefaultConfig()
		default:
			return err
		}
	}
	return r.config.ApplyEnv(r.lookupEnv)
}

// readEvent reads the trigger event named by --event ("-" for stdin). An unset flag yields nil.
func (r *Runner) readEvent(cmd *cli.Command) (events.Event, error) {
	path := cmd.String("event")
	if path == "" {
		return nil, nil
	}

	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(r.input)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read event: %w", err)
	}
	return events.Parse(data)
}

// scheduleEvent merges --event with the --user, --category, --window and --to overrides.
func (r *Runner) scheduleEvent(cmd *cli.Command) (events.ScheduleEvent, error) {
	ev, err := r.readEvent(cmd)
	if err != nil {
		return events.ScheduleEvent{}, err
	}
	se, err := events.Schedule(ev)
	if err != nil {
		return events.ScheduleEvent{}, err
	}

	for flag, dst := range map[string]*string{
		"user":     &se.UserName,
		"category": &se.Category,
		"window":   &se.TimeWindow,
		"to":       &se.TargetEmail,
	} {
		if v := cmd.String(flag); v != "" {
			*dst = v
		}
	}
	return se, nil
}

// objectRefs returns the object references carried by the required --event.
func (r *Runner) objectRefs(cmd *cli.Command) ([]events.ObjectRef, error) {
	ev, err := r.readEvent(cmd)
	if err != nil {
		return nil, err
	}
	if ev == nil {
		return nil, fmt.Errorf("%w: --event is required", shared.ErrMissingArgument)
	}
	return events.Objects(ev)
}

func (r *Runner) secretSource() services.SecretSource {
	if path := r.config.Spotify.SecretsPath; path != "" {
		if _, err := os.Stat(path); err == nil {
			return services.FileSecretSource{Path: path}
		}
		r.logger.Debug("secrets file not found, reading environment", "path", path)
	}
	return services.EnvSecretSource{Lookup: r.lookupEnv}
}

func (r *Runner) spotifyClient() *services.SpotifyClient {
	resolver := services.NewCredentialResolver(r.secretSource(), r.config.Spotify.TokenURL, r.httpClient, r.logger)
	return services.NewSpotifyClient(services.SpotifyClientOpts{
		BaseURL:           r.config.Spotify.BaseURL,
		Tokens:            resolver,
		HTTPClient:        r.httpClient,
		RequestsPerSecond: r.config.Spotify.RequestsPerSecond,
		Logger:            r.logger,
	})
}

func (r *Runner) bucket(ctx context.Context, rawURL string) (storage.Bucket, error) {
	return r.opener.Open(ctx, rawURL)
}

func (r *Runner) database(ctx context.Context) (*sql.DB, error) {
	return shared.OpenDatabase(ctx, r.config.Database)
}

// dispatcher returns the configured dispatcher, or one that writes to the output when --dry-run is set.
func (r *Runner) dispatcher(cmd *cli.Command) (delivery.Dispatcher, error) {
	if cmd.Bool("dry-run") {
		return delivery.NewWriterDispatcher(r.output), nil
	}
	return delivery.New(r.config.Delivery, r.httpClient, r.output, r.logger)
}

func deliveryFields(cmd *cli.Command) []string {
	if cmd.Bool("dry-run") {
		return []string{"Delivery.From"}
	}
	return []string{"Delivery.Kind", "Delivery.From", "Delivery.SMTPHost", "Delivery.SMTPPort", "Delivery.WebhookURL"}
}

func (r *Runner) close() {
	if err := r.opener.Close(); err != nil {
		r.logger.Warn("failed to close storage clients", "error", err)
	}
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

	if _, err := r.output.Write(append(output, '\n')); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	if _, err := fmt.Fprintf(r.output, format, args...); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
