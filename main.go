// Command tokencache inspects and maintains a persisted access-token cache.
// Storage is selected with the same environment configuration used by the
// client that owns the cache.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/batchexplorer/tokencache/internal/shutdown"
	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// shutdownTimeout bounds flushing pending writes and closing storage.
const shutdownTimeout = 15 * time.Second

func main() {
	configureLogging()

	logBuildInfo()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout)
	stop()

	if err == nil {
		return
	}

	var flagsErr *flags.Error
	if errors.As(err, &flagsErr) {
		if flagsErr.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stdout, flagsErr.Message)
			return
		}
		fmt.Fprintln(os.Stderr, flagsErr.Message)
		os.Exit(2)
	}

	log.Error().Err(err).Msg("command failed")
	os.Exit(1)
}

// run parses args and executes the selected command. Shutdown hooks
// registered by the command run before it returns.
func run(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	a := &app{ctx: ctx, in: in, out: out}

	parser := flags.NewParser(newOptions(a), flags.HelpFlag|flags.PassDoubleDash)
	parser.Name = "tokencache"

	_, err := parser.ParseArgs(args)

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if shutdownErr := a.hooks.Execute(shutdownCtx); shutdownErr != nil {
		err = errors.Join(err, fmt.Errorf("shutdown: %w", shutdownErr))
	}

	return err
}

// app carries the state shared by every command.
type app struct {
	ctx   context.Context
	in    io.Reader
	out   io.Writer
	hooks shutdown.Hooks
}

func configureLogging() {
	// Set global level to the minimum: allows the Open Telemetry logging to be
	// configured separately.
	zerolog.SetGlobalLevel(zerolog.Level(-128))

	// Output is for the user; logs go to stderr and stay quiet by default.
	log.Logger = log.Output(os.Stderr).Level(zerolog.WarnLevel)

	if os.Getenv("ENV") == "development" {
		log.Logger = log.
			Output(zerolog.ConsoleWriter{Out: os.Stderr}).
			Level(zerolog.DebugLevel)
	}

	zerolog.DefaultContextLogger = &log.Logger
}

func logBuildInfo() {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	ev := log.Debug().Str("version", buildInfo.Main.Version)
	for _, v := range buildInfo.Settings {
		if strings.HasPrefix(v.Key, "vcs.") ||
			strings.HasPrefix(v.Key, "GO") ||
			v.Key == "CGO_ENABLED" {
			ev = ev.Str(v.Key, v.Value)
		}
	}

	ev.Msg("build information")
}
