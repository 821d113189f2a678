// Package main is play_mml: it plays its input directly on the local audio
// device without going through the playback server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	ym2151play "github.com/cbegin/ym2151play-go"
	"github.com/cbegin/ym2151play-go/internal/app"
	"github.com/cbegin/ym2151play-go/internal/convert"
	"github.com/cbegin/ym2151play-go/internal/input"
)

const (
	defaultMML = "t120 o4 l8 cdefgab>c"
	drainDelay = 250 * time.Millisecond
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

type playOptions struct {
	gain    float64
	tail    float64
	verbose bool
}

func newRootCmd() *cobra.Command {
	var opts playOptions
	cmd := &cobra.Command{
		Use:           "play_mml [INPUT]",
		Short:         "Play MML, MIDI or a YM2151 log directly on the audio device",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			arg := defaultMML
			if len(args) == 1 {
				arg = args[0]
			}
			return play(cmd.Context(), arg, opts)
		},
	}
	cmd.Flags().Float64Var(&opts.gain, "gain", 0.5, "chip output gain")
	cmd.Flags().Float64Var(&opts.tail, "tail", 5, "maximum release tail in seconds")
	cmd.Flags().BoolVar(&opts.verbose, "verbose", false, "print conversion progress")
	return cmd
}

func play(ctx context.Context, arg string, opts playOptions) error {
	v := app.NewVerbosityConfig(!opts.verbose, opts.verbose, os.Stdout)
	in, err := input.Classify(arg)
	if err != nil {
		return err
	}
	payload, err := convert.ToEventLog(in, v)
	if err != nil {
		return err
	}
	pl, err := ym2151play.NewPlayerFromJSON(payload, ym2151play.WithGain(opts.gain), ym2151play.WithTailLimit(opts.tail))
	if err != nil {
		return err
	}
	if err := pl.Play(); err != nil {
		return errors.Wrap(err, "start playback")
	}

	finished := make(chan struct{})
	go func() {
		pl.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		// the device still holds a buffer of audio
		time.Sleep(drainDelay)
		if err := pl.Stop(); err != nil {
			return err
		}
		fmt.Println("playback completed")
	case <-ctx.Done():
		if err := pl.Stop(); err != nil {
			return err
		}
		fmt.Println("playback interrupted")
	}
	return nil
}
