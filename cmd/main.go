package main

import (
	"context"
	"errors"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/spotlake/internal/shared"
)

func main() {
	logger := shared.WithLogger(shared.NewLogger(nil), "invocation", shared.GenerateID())
	runner := NewRunner(RunnerOpts{Logger: logger})

	if err := newApp(runner).Run(context.Background(), os.Args); err != nil {
		if benign(err) {
			logger.Warn("nothing to send", "reason", err)
			os.Exit(0)
		}
		logger.Fatalf("application error: %v", err)
	}
}

// benign reports whether err ends the invocation without failing it.
func benign(err error) bool {
	return errors.Is(err, shared.ErrNothingToSend)
}

func newApp(r *Runner) *cli.Command {
	return &cli.Command{
		Name:     "spotlake",
		Usage:    "Land, normalize and report on your Spotify listening data",
		Version:  "0.1.0",
		Flags:    globalFlags(),
		Commands: r.register(),
	}
}
