// harvestctl queues scraping work for a harvester daemon and reads results
// back.
//
// Usage:
//
//	harvestctl [--redis-addr ADDR] [--api-url URL] [--json] <command> [flags]
package main

import (
	"fmt"
	"os"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"harvester/internal/cli"
	"harvester/internal/core/job"
	rds "harvester/internal/platform/redis"
	"harvester/internal/platform/tasks"
)

// version is set through ldflags.
var version = "dev"

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	_ = godotenv.Load()

	var redisAddr, redisPassword, apiURL, queue string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "harvestctl",
		Short:         "Queue and inspect harvester scraping jobs",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&redisAddr, "redis-addr", getenv("REDIS_ADDR", "127.0.0.1:6379"), "Redis address shared with the daemon")
	rootCmd.PersistentFlags().StringVar(&redisPassword, "redis-password", os.Getenv("REDIS_PASSWORD"), "Redis password")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", getenv("HARVESTER_API_URL", "http://localhost:8081"), "Daemon ops API URL")
	rootCmd.PersistentFlags().StringVar(&queue, "queue", getenv("TASK_QUEUE", "default"), "Task queue the daemon consumes")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	var (
		once     sync.Once
		env      *cli.Env
		envErr   error
		redisSvc *rds.Service
		taskCli  *tasks.Client
	)
	envFn := func() (*cli.Env, error) {
		once.Do(func() {
			redisSvc, envErr = rds.New(rds.Options{Addr: redisAddr, Password: redisPassword})
			if envErr != nil {
				return
			}
			taskCli = tasks.New(redisSvc, queue, 3)
			env = &cli.Env{
				Tasks: taskCli,
				Jobs:  job.NewMirror(redisSvc),
				Ops:   cli.NewAPIClient(apiURL),
				Out:   cli.NewOutput(jsonOutput, os.Stdout, os.Stderr),
			}
		})
		return env, envErr
	}
	rootCmd.AddCommand(cli.Commands(envFn)...)

	err := rootCmd.Execute()
	if taskCli != nil {
		_ = taskCli.Close()
	}
	if redisSvc != nil {
		_ = redisSvc.Close()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
