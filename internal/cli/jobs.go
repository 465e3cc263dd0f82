package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"harvester/internal/core/job"
	"harvester/internal/platform/tasks"

	"github.com/spf13/cobra"
)

// submitFlags are shared by submit and bulk.
type submitFlags struct {
	platform   string
	priority   string
	maxRetries int
	params     []string
	wait       bool
	timeout    time.Duration
}

func (f *submitFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.platform, "platform", "web", "Platform capability to run the job on")
	cmd.Flags().StringVar(&f.priority, "priority", "normal", "low, normal, high, urgent or a numeric tier")
	cmd.Flags().IntVar(&f.maxRetries, "max-retries", 0, "Retries after the first attempt (engine default if not set)")
	cmd.Flags().StringSliceVar(&f.params, "param", nil, "Job parameter as KEY=VALUE (repeatable)")
	cmd.Flags().BoolVar(&f.wait, "wait", false, "Wait until the work is finished")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 10*time.Minute, "How long --wait waits")
}

type normalizedFlags struct {
	kind       job.Kind
	priority   job.Priority
	params     map[string]any
	maxRetries *int
}

func (f *submitFlags) normalize(cmd *cobra.Command, kindArg string) (normalizedFlags, error) {
	var n normalizedFlags
	var err error
	if n.kind, err = job.ParseKind(kindArg); err != nil {
		return n, err
	}
	if n.priority, err = job.ParsePriority(f.priority); err != nil {
		return n, err
	}
	if n.params, err = parseParams(f.params); err != nil {
		return n, err
	}
	if cmd.Flags().Changed("max-retries") {
		if f.maxRetries < 0 {
			return n, fmt.Errorf("--max-retries must not be negative")
		}
		n.maxRetries = &f.maxRetries
	}
	return n, nil
}

func NewSubmitCmd(envFn EnvFunc) *cobra.Command {
	var f submitFlags
	var id string

	cmd := &cobra.Command{
		Use:   "submit KIND TARGET",
		Short: "Queue a single scrape job (KIND is profile, posts, search or url)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := f.normalize(cmd, args[0])
			if err != nil {
				return err
			}
			env, err := envFn()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			jobID, err := env.Tasks.EnqueueJob(ctx, tasks.JobPayload{
				ID:         id,
				Kind:       string(n.kind),
				Platform:   f.platform,
				Target:     args[1],
				Parameters: n.params,
				Priority:   int(n.priority),
				MaxRetries: n.maxRetries,
			})
			if err != nil {
				return err
			}
			env.Out.Success("Job queued: " + jobID)
			if !f.wait {
				env.Out.Print([]string{"ID"}, [][]string{{jobID}}, map[string]string{"id": jobID})
				return nil
			}

			var j *job.Job
			err = env.poll(ctx, f.timeout, func(ctx context.Context) (bool, error) {
				got, err := env.Jobs.GetJob(ctx, jobID)
				if err != nil {
					return false, err
				}
				j = got
				return j.Status.IsTerminal(), nil
			})
			if err != nil {
				return err
			}
			printJobs(env.Out, []job.Job{*j})
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&id, "id", "", "Job id (generated if not set)")
	return cmd
}

func NewBulkCmd(envFn EnvFunc) *cobra.Command {
	var f submitFlags
	var id, name, file string

	cmd := &cobra.Command{
		Use:   "bulk KIND [TARGET...]",
		Short: "Queue one job per target as a bulk job",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := f.normalize(cmd, args[0])
			if err != nil {
				return err
			}
			targets := args[1:]
			if file != "" {
				fromFile, err := readTargets(file, cmd.InOrStdin())
				if err != nil {
					return err
				}
				targets = append(targets, fromFile...)
			}
			if len(targets) == 0 {
				return fmt.Errorf("no targets given")
			}
			env, err := envFn()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			bulkID, err := env.Tasks.EnqueueBulk(ctx, tasks.BulkPayload{
				ID:         id,
				Name:       name,
				Kind:       string(n.kind),
				Platform:   f.platform,
				Targets:    targets,
				Parameters: n.params,
				Priority:   int(n.priority),
				MaxRetries: n.maxRetries,
			})
			if err != nil {
				return err
			}
			env.Out.Success(fmt.Sprintf("Bulk job queued: %s (%d targets)", bulkID, len(targets)))
			if !f.wait {
				env.Out.Print([]string{"ID"}, [][]string{{bulkID}}, map[string]string{"id": bulkID})
				return nil
			}

			var b *job.BulkJob
			err = env.poll(ctx, f.timeout, func(ctx context.Context) (bool, error) {
				got, err := env.Jobs.GetBulk(ctx, bulkID)
				if err != nil {
					return false, err
				}
				b = got
				return b.Status.IsTerminal(), nil
			})
			if err != nil {
				return err
			}
			printBulk(env.Out, b)
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&id, "id", "", "Bulk job id (generated if not set)")
	cmd.Flags().StringVar(&name, "name", "", "Bulk job name")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read targets from a file, one per line ('-' for stdin)")
	return cmd
}

// readTargets reads one target per line, skipping blanks and '#' comments.
func readTargets(path string, stdin io.Reader) ([]string, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open targets: %w", err)
		}
		defer f.Close()
		r = f
	}
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read targets: %w", err)
	}
	return out, nil
}

func NewStatusCmd(envFn EnvFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "status ID",
		Short: "Show a bulk job or a single job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := envFn()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if b, err := env.Jobs.GetBulk(ctx, args[0]); err == nil {
				printBulk(env.Out, b)
				return nil
			}
			j, err := env.Jobs.GetJob(ctx, args[0])
			if err != nil {
				return err
			}
			printJobs(env.Out, []job.Job{*j})
			return nil
		},
	}
}

func NewResultsCmd(envFn EnvFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "results BULK_ID",
		Short: "List the member results of a bulk job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := envFn()
			if err != nil {
				return err
			}
			rows, err := env.Jobs.BulkRows(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			table := make([][]string, len(rows))
			for i, r := range rows {
				table[i] = []string{r.JobID, r.Target, string(r.Status), strconv.Itoa(len(r.Result)), r.Error}
			}
			env.Out.Print([]string{"JOB_ID", "TARGET", "STATUS", "FIELDS", "ERROR"}, table, rows)
			return nil
		},
	}
}

func NewExportCmd(envFn EnvFunc) *cobra.Command {
	var format string
	var wait bool
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "export ID",
		Short: "Ask the daemon to export a bulk job or job as JSON or CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format = strings.ToLower(format)
			if format != "json" && format != "csv" {
				return fmt.Errorf("unsupported format %q (json or csv)", format)
			}
			env, err := envFn()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			id := args[0]

			if err := env.Tasks.EnqueueExport(ctx, tasks.ExportPayload{ID: id, Format: format}); err != nil {
				return err
			}
			env.Out.Success(fmt.Sprintf("Export of %s queued as %s", id, format))
			if !wait {
				return nil
			}

			var location string
			err = env.poll(ctx, timeout, func(ctx context.Context) (bool, error) {
				loc, err := env.Jobs.ExportLocation(ctx, id, format)
				if err != nil {
					return false, err
				}
				location = loc
				return true, nil
			})
			if err != nil {
				return err
			}
			env.Out.Print([]string{"ID", "FORMAT", "LOCATION"}, [][]string{{id, format, location}},
				map[string]string{"id": id, "format": format, "location": location})
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "Export format: json or csv")
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait for the export and print where it was stored")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "How long --wait waits")
	return cmd
}

func printJobs(out *Output, jobs []job.Job) {
	rows := make([][]string, len(jobs))
	for i, j := range jobs {
		rows[i] = []string{
			j.ID, string(j.Kind), j.Platform, j.Target, string(j.Status), j.Priority.String(),
			fmt.Sprintf("%d/%d", j.RetryCount, j.MaxRetries), j.Error,
		}
	}
	data := any(jobs)
	if len(jobs) == 1 {
		data = jobs[0]
	}
	out.Print([]string{"ID", "KIND", "PLATFORM", "TARGET", "STATUS", "PRIORITY", "RETRIES", "ERROR"}, rows, data)
}

func printBulk(out *Output, b *job.BulkJob) {
	out.Print(
		[]string{"ID", "NAME", "STATUS", "TOTAL", "COMPLETED", "FAILED", "PROGRESS"},
		[][]string{{
			b.ID, b.Name, string(b.Status), strconv.Itoa(b.Total), strconv.Itoa(b.Completed),
			strconv.Itoa(b.Failed), fmt.Sprintf("%.1f%%", b.Progress()),
		}},
		b,
	)
}
