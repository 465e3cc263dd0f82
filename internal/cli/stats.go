package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func NewStatsCmd(envFn EnvFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show engine statistics from the running daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := envFn()
			if err != nil {
				return err
			}
			st, err := env.Ops.Stats(cmd.Context())
			if err != nil {
				return err
			}
			pairs := [][2]string{
				{"total_jobs", strconv.Itoa(st.TotalJobs)},
				{"pending", strconv.Itoa(st.Pending)},
				{"running", strconv.Itoa(st.Running)},
				{"completed", strconv.Itoa(st.Completed)},
				{"failed", strconv.Itoa(st.Failed)},
				{"bulk_jobs", fmt.Sprintf("%d (%d active, advisory max %d)", st.BulkJobs, st.ActiveBulkJobs, st.MaxConcurrentBulkJobs)},
				{"workers", fmt.Sprintf("%d/%d busy", st.ActiveWorkers, st.Workers)},
				{"queue_size", strconv.Itoa(st.QueueSize)},
				{"proxies", fmt.Sprintf("%d/%d healthy", st.ProxiesHealthy, st.ProxiesTotal)},
			}
			rows := make([][]string, len(pairs))
			for i, p := range pairs {
				rows[i] = []string{p[0], p[1]}
			}
			env.Out.Print([]string{"METRIC", "VALUE"}, rows, st)
			return nil
		},
	}
}

func NewProxiesCmd(envFn EnvFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "proxies",
		Short: "Show proxy pool health from the running daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := envFn()
			if err != nil {
				return err
			}
			st, err := env.Ops.Proxies(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([][]string, len(st.Proxies))
			for i, p := range st.Proxies {
				rows[i] = []string{
					p.Address, strconv.FormatBool(p.Healthy), fmt.Sprintf("%.0f%%", p.SuccessRate*100),
					p.AvgResponseTime.String(), fmt.Sprintf("%d/%d", p.RequestsThisMinute, p.MaxRequestsPerMinute),
					strconv.Itoa(p.ConsecutiveFailures),
				}
			}
			env.Out.Success(fmt.Sprintf("%d proxies, %d healthy, %d available (strategy %s)", st.Total, st.Healthy, st.Available, st.Strategy))
			env.Out.Print([]string{"ADDRESS", "HEALTHY", "SUCCESS", "AVG_RT", "THIS_MINUTE", "FAILS"}, rows, st)
			return nil
		},
	}
}

// Commands returns every harvestctl subcommand.
func Commands(envFn EnvFunc) []*cobra.Command {
	return []*cobra.Command{
		NewSubmitCmd(envFn),
		NewBulkCmd(envFn),
		NewStatusCmd(envFn),
		NewResultsCmd(envFn),
		NewExportCmd(envFn),
		NewStatsCmd(envFn),
		NewProxiesCmd(envFn),
	}
}
