// =============================================================================
// Donation Ledger - Schedule Command
// =============================================================================
//
// COMMAND USAGE:
//   donledger schedule
//
// Runs import, acknowledge and rollup on the cron specs in schedule.*.
// Scheduled runs email their summary to report.recipients and print nothing.
// A run that comes due while another is still going is skipped.
//
// =============================================================================

package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ginjaninja78/donation-ledger/internal/report"
	"github.com/ginjaninja78/donation-ledger/internal/runner"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the pipeline on the configured cron schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		c, err := newScheduler(ctx, env, runner.New(zap.L()))
		if err != nil {
			return err
		}
		if len(c.Entries()) == 0 {
			return eris.New("schedule: no jobs configured under schedule.*")
		}

		c.Start()
		zap.L().Info("scheduler started", zap.Int("jobs", len(c.Entries())))

		<-ctx.Done()
		zap.L().Info("stopping scheduler")
		<-c.Stop().Done()
		return nil
	},
}

// scheduledOptions is how scheduled runs deliver their summaries.
var scheduledOptions = report.Options{Display: false, Email: true}

// pipelineJobs returns the run for each job name with the given delivery.
func pipelineJobs(env *pipelineEnv, opts report.Options, rollupYear int) map[string]runner.Job {
	return map[string]runner.Job{
		"import": func(ctx context.Context) error {
			return env.runImport(ctx, opts)
		},
		"acknowledge": func(ctx context.Context) error {
			return env.runAcknowledge(ctx, opts)
		},
		"rollup": func(ctx context.Context) error {
			return env.runRollup(ctx, rollupYear, opts)
		},
	}
}

// newScheduler registers a cron entry for every job with a non-empty spec.
func newScheduler(ctx context.Context, env *pipelineEnv, r *runner.Runner) (*cron.Cron, error) {
	c := cron.New()
	jobs := pipelineJobs(env, scheduledOptions, 0)

	specs := []struct {
		name string
		spec string
	}{
		{"import", env.cfg.Schedule.Import},
		{"acknowledge", env.cfg.Schedule.Acknowledge},
		{"rollup", env.cfg.Schedule.Rollup},
	}

	for _, s := range specs {
		if s.spec == "" {
			continue
		}
		name, job := s.name, jobs[s.name]
		_, err := c.AddFunc(s.spec, func() {
			if err := r.TryRun(ctx, name, job); err != nil {
				zap.L().Warn("scheduled run did not complete", zap.String("job", name), zap.Error(err))
			}
		})
		if err != nil {
			return nil, eris.Wrapf(err, "schedule: %s spec %q", s.name, s.spec)
		}
		zap.L().Debug("job scheduled", zap.String("job", s.name), zap.String("spec", s.spec))
	}
	return c, nil
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
}
