// Command concdemo runs the goworkq concurrency scenarios: plain goroutines,
// a synchronized counter, producer/consumer coordination, a worker pool,
// ordered map, a weighted semaphore and a count-down latch.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout, os.Stderr).RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "concdemo",
		Usage:     "Run goworkq concurrency scenarios",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags:     globalFlags(),
		Action:    scenarioAction(stdout, stderr, (*demo).runAll),
		Commands: []*cli.Command{
			scenarioCommand("basic", nil, "Start goroutines and wait for all of them", stdout, stderr, (*demo).runBasic),
			scenarioCommand("sync", nil, "Increment a shared counter from many goroutines", stdout, stderr, (*demo).runSync),
			scenarioCommand("producer-consumer", []string{"pc"}, "Coordinate producers and consumers over a bounded queue", stdout, stderr, (*demo).runProducerConsumer),
			scenarioCommand("pool", nil, "Run tasks on a worker pool and collect results as they complete", stdout, stderr, (*demo).runPool),
			scenarioCommand("map", nil, "Map a function over inputs and keep input order", stdout, stderr, (*demo).runMap),
			scenarioCommand("semaphore", nil, "Limit concurrent access with a weighted semaphore", stdout, stderr, (*demo).runSemaphore),
			scenarioCommand("latch", nil, "Wait for a group of goroutines with a count-down latch", stdout, stderr, (*demo).runLatch),
			scenarioCommand("all", nil, "Run every scenario in sequence", stdout, stderr, (*demo).runAll),
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:    "capacity",
			Value:   10,
			Usage:   "Capacity of the producer/consumer queue",
			EnvVars: []string{"CONCDEMO_CAPACITY"},
		},
		&cli.IntFlag{
			Name:    "producers",
			Value:   2,
			Usage:   "Number of producers",
			EnvVars: []string{"CONCDEMO_PRODUCERS"},
		},
		&cli.IntFlag{
			Name:    "consumers",
			Value:   3,
			Usage:   "Number of consumers",
			EnvVars: []string{"CONCDEMO_CONSUMERS"},
		},
		&cli.IntFlag{
			Name:    "items",
			Value:   5,
			Usage:   "Items emitted by each producer",
			EnvVars: []string{"CONCDEMO_ITEMS"},
		},
		&cli.IntFlag{
			Name:    "workers",
			Aliases: []string{"w"},
			Value:   3,
			Usage:   "Number of pool workers",
			EnvVars: []string{"CONCDEMO_WORKERS"},
		},
		&cli.IntFlag{
			Name:    "tasks",
			Value:   10,
			Usage:   "Number of tasks submitted in the pool scenario",
			EnvVars: []string{"CONCDEMO_TASKS"},
		},
		&cli.IntFlag{
			Name:  "permits",
			Value: 10,
			Usage: "Semaphore permits",
		},
		&cli.DurationFlag{
			Name:    "get-timeout",
			Value:   500 * time.Millisecond,
			Usage:   "How long a consumer waits for an item before checking for shutdown",
			EnvVars: []string{"CONCDEMO_GET_TIMEOUT"},
		},
		&cli.DurationFlag{
			Name:    "put-timeout",
			Value:   5 * time.Second,
			Usage:   "How long a producer waits for queue room",
			EnvVars: []string{"CONCDEMO_PUT_TIMEOUT"},
		},
		&cli.DurationFlag{
			Name:  "work",
			Value: 100 * time.Millisecond,
			Usage: "Unit of simulated work; scenario sleeps are multiples of it",
		},
		&cli.BoolFlag{
			Name:  "no-progress",
			Usage: "Disable progress bars",
		},
		&cli.BoolFlag{
			Name:  "metrics",
			Usage: "Print collected metrics after the run",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Enable development logging",
		},
	}
}

type scenarioFunc func(d *demo, ctx context.Context) error

func scenarioCommand(name string, aliases []string, usage string, stdout, stderr io.Writer, run scenarioFunc) *cli.Command {
	return &cli.Command{
		Name:    name,
		Aliases: aliases,
		Usage:   usage,
		Action:  scenarioAction(stdout, stderr, run),
	}
}

func scenarioAction(stdout, stderr io.Writer, run scenarioFunc) cli.ActionFunc {
	return func(c *cli.Context) error {
		settings, err := settingsFromContext(c)
		if err != nil {
			return cli.Exit(err.Error(), 2)
		}

		d, err := newDemo(settings, stdout, stderr)
		if err != nil {
			return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
		}
		defer d.close()

		if err := run(d, c.Context); err != nil {
			return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
		}
		if settings.showMetrics {
			d.renderMetrics()
		}
		return nil
	}
}
