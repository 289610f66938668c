package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"amequeue/internal/api"
	"amequeue/internal/config"
	"amequeue/internal/job"
	"amequeue/internal/logging"
	"amequeue/internal/presets"
	"amequeue/internal/services/ame"
	"amequeue/internal/workflow"
)

func newEncodeCommand(ctx *commandContext) *cobra.Command {
	var flags submitFlags
	var wait bool

	cmd := &cobra.Command{
		Use:   "encode <source> <destination>",
		Short: "Encode one file in process, without the daemon",
		Long: "Encode submits one job directly to the encoder and follows it.\n" +
			"With --wait (the default) it renders progress until the job ends and exits\n" +
			"non-zero unless the encode succeeded. With --wait=false it returns once the\n" +
			"encoder has accepted the job.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			req := flags.request(cmd, args[0], args[1])
			gateway := ame.NewFromConfig(cfg, ctx.cliLogger())
			view, err := runEncode(cmd.Context(), cmd, cfg, gateway, req, encodeOptions{
				wait:   wait,
				logger: ctx.cliLogger(),
			})
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, api.FromJobView(view))
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&wait, "wait", true, "Follow the job until it ends")
	return cmd
}

type encodeOptions struct {
	wait   bool
	logger *slog.Logger
}

// runEncode drives a single job through a private workflow manager. An
// interrupt aborts the job and waits for it to wind down.
func runEncode(parent context.Context, cmd *cobra.Command, cfg *config.Config, gateway job.Gateway, req api.EnqueueRequest, opts encodeOptions) (job.View, error) {
	catalog, err := presets.LoadCatalog(cfg.Paths.PresetCache, cfg.Paths.PresetTree)
	if err != nil {
		opts.logger.Warn("preset catalog unavailable", logging.Error(err))
	}
	if req.Preset, err = catalog.Resolve(req.Preset); err != nil {
		return job.View{}, fmt.Errorf("resolve preset: %w", err)
	}

	manager, err := workflow.NewManager(cfg, gateway, opts.logger)
	if err != nil {
		return job.View{}, err
	}
	j, err := manager.EnqueueJob(req.ToSubmission(), req.ID)
	if err != nil {
		return job.View{}, err
	}

	signalCtx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	out := cmd.ErrOrStderr()
	reporter := newProgressReporter(out, baseName(req.Source))
	accepted := make(chan struct{})
	var acceptOnce sync.Once
	unsubscribe := j.OnProgress(func(ev job.Event) {
		reporter.update(ev)
		if ev.Lifecycle == job.LifecycleEncoding {
			acceptOnce.Do(func() { close(accepted) })
		}
	})
	defer unsubscribe()

	if !opts.wait {
		select {
		case <-accepted:
			view := j.View()
			fmt.Fprintf(cmd.OutOrStdout(), "Encoder accepted %s as job %s\n", baseName(req.Source), orDash(view.RemoteJobID()))
			return view, nil
		case <-j.Done():
		case <-signalCtx.Done():
			j.Abort()
			<-j.Done()
		}
	} else {
		select {
		case <-j.Done():
		case <-signalCtx.Done():
			fmt.Fprintln(out, "\nInterrupted; aborting encode")
			j.Abort()
			<-j.Done()
		}
	}
	j.Flush()
	reporter.finish(j.View())

	shutdownCtx, cancelShutdown := context.WithTimeout(context.WithoutCancel(parent), cfg.ShutdownGrace())
	defer cancelShutdown()
	if err := manager.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		opts.logger.Warn("workflow shutdown", logging.Error(err))
	}

	view := j.View()
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", view.Lifecycle, orDash(view.Detail))
	if view.Lifecycle != job.LifecycleSucceeded {
		return view, fmt.Errorf("encode %s: %s", baseName(req.Source), view.Lifecycle)
	}
	return view, nil
}

// progressReporter renders a bar on terminals and sampled lines elsewhere.
type progressReporter struct {
	out     io.Writer
	label   string
	bar     *progressbar.ProgressBar
	sampler *logging.ProgressSampler
	last    job.Lifecycle
}

func newProgressReporter(out io.Writer, label string) *progressReporter {
	r := &progressReporter{out: out, label: label}
	if isTerminal(out) {
		r.bar = progressbar.NewOptions(100,
			progressbar.OptionSetWriter(out),
			progressbar.OptionSetDescription(label),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionEnableColorCodes(colorEnabled(out)),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionSetRenderBlankState(true),
		)
	} else {
		r.sampler = logging.NewProgressSampler(10)
	}
	return r
}

func (r *progressReporter) update(ev job.Event) {
	if r.bar != nil {
		if ev.Lifecycle != r.last {
			r.bar.Describe(fmt.Sprintf("%s [%s]", r.label, ev.Lifecycle))
		}
		if ev.HasProgress {
			_ = r.bar.Set(int(ev.Progress))
		}
		r.last = ev.Lifecycle
		return
	}
	if ev.Lifecycle != r.last {
		fmt.Fprintf(r.out, "%s: %s\n", r.label, ev.Lifecycle)
		r.last = ev.Lifecycle
	}
	if ev.HasProgress && r.sampler.ShouldLog(ev.Progress, string(ev.JobStatus)) {
		fmt.Fprintf(r.out, "%s: %.0f%%\n", r.label, ev.Progress)
	}
}

func (r *progressReporter) finish(view job.View) {
	if r.bar == nil {
		return
	}
	if view.Lifecycle == job.LifecycleSucceeded {
		_ = r.bar.Finish()
	} else {
		_ = r.bar.Exit()
	}
	fmt.Fprintln(r.out)
}
