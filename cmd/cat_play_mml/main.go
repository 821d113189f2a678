// Package main is the cat_play_mml command: play MML, MIDI or YM2151 logs
// through the background playback server, or render them to WAV files.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/cbegin/ym2151play-go/internal/app"
	"github.com/cbegin/ym2151play-go/internal/daemon"
	"github.com/cbegin/ym2151play-go/internal/ipc"
	"github.com/cbegin/ym2151play-go/internal/launcher"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := newRootCmd(run)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

type runFunc func(ctx context.Context, opts app.Options) error

func newRootCmd(runner runFunc) *cobra.Command {
	var opts app.Options
	cmd := &cobra.Command{
		Use:   "cat_play_mml [INPUT]",
		Short: "Play MML, MIDI or YM2151 logs on an emulated YM2151",
		Long: `cat_play_mml converts its input to a YM2151 register log and hands it to
a background playback server, starting the server when none is running.

INPUT is MML text, an .mml file, a .mid file or a YM2151 .json log.

Examples:
  cat_play_mml "t120 o4 l8 cdefgab>c"
  cat_play_mml song.mid
  cat_play_mml song.mml --output song.wav
  cat_play_mml --stop
  cat_play_mml --shutdown`,
		Version:       version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.Input = args[0]
			}
			return runner(cmd.Context(), opts)
		},
	}
	flags := cmd.Flags()
	flags.BoolVar(&opts.Server, "server", false, "run as the playback server in idle state")
	flags.BoolVar(&opts.Stop, "stop", false, "stop playback on the running server")
	flags.BoolVar(&opts.Shutdown, "shutdown", false, "shut down the running server")
	flags.BoolVar(&opts.Verbose, "verbose", false, "print progress even in server mode")
	flags.StringVar(&opts.Output, "output", "", "render WAV files to `FILE` instead of playing")
	return cmd
}

func run(ctx context.Context, opts app.Options) error {
	v := app.NewVerbosityConfig(opts.Server, opts.Verbose, os.Stdout)
	a := &app.App{
		Client:    ipc.NewClient(""),
		Launcher:  &launcher.Launcher{},
		Server:    daemon.New(daemon.WithLogger(v.Logger(os.Stderr))),
		Renderer:  app.NewFileRenderer(),
		Supported: ipc.Supported,
	}
	return a.Run(ctx, opts, v)
}
