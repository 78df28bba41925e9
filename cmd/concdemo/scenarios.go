package main

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/jzx17/goworkq/pkg/coordinator"
	"github.com/jzx17/goworkq/pkg/counter"
	"github.com/jzx17/goworkq/pkg/latch"
	"github.com/jzx17/goworkq/pkg/worker"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const (
	basicWorkers    = 5
	syncGoroutines  = 10
	syncIncrements  = 100
	mapWorkers      = 4
	mapInputs       = 10
	semaphoreTasks  = 50
	latchGoroutines = 50
)

func (d *demo) runAll(ctx context.Context) error {
	d.colorPrintf(bold, "%s\nCONCURRENCY SCENARIOS\n%s\n\n", rule, rule)

	scenarios := []struct {
		name string
		run  scenarioFunc
	}{
		{"Basic Goroutines", (*demo).runBasic},
		{"Synchronization", (*demo).runSync},
		{"Producer-Consumer", (*demo).runProducerConsumer},
		{"Worker Pool", (*demo).runPool},
		{"Worker Pool Map", (*demo).runMap},
		{"Semaphore", (*demo).runSemaphore},
		{"Count-Down Latch", (*demo).runLatch},
	}
	for _, s := range scenarios {
		if err := s.run(d, ctx); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}

	d.colorPrintf(green, "%s\nALL SCENARIOS COMPLETED SUCCESSFULLY\n%s\n", rule, rule)
	return nil
}

const rule = "============================================================"

// runBasic starts a handful of goroutines sleeping for increasing durations
// and waits for all of them
func (d *demo) runBasic(ctx context.Context) error {
	d.header("Basic Goroutines")

	g, ctx := errgroup.WithContext(ctx)
	for i := range basicWorkers {
		g.Go(func() error {
			d.printf("Worker %d starting...\n", i)
			duration := time.Duration(i) * d.settings.work
			if err := sleep(ctx, duration); err != nil {
				return err
			}
			d.printf("Worker %d finished after %v\n", i, duration)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	d.success("All goroutines completed!")
	return nil
}

// runSync increments one counter from many goroutines, with a pause between
// the read and the write to widen the window a lost update would need
func (d *demo) runSync(ctx context.Context) error {
	d.header("Synchronization")

	pause := d.settings.work / 100
	c := counter.New(counter.WithYield(func() { time.Sleep(pause) }))

	g, ctx := errgroup.WithContext(ctx)
	for range syncGoroutines {
		g.Go(func() error {
			for range syncIncrements {
				if err := ctx.Err(); err != nil {
					return err
				}
				c.Increment()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	expected := int64(syncGoroutines * syncIncrements)
	d.printf("Counter (mutex guarded):\n")
	d.printf("Expected: %d, Got: %d\n", expected, c.Value())
	if got := c.Value(); got != expected {
		return fmt.Errorf("counter lost updates: expected %d, got %d", expected, got)
	}

	d.success("No increments were lost")
	return nil
}

// runProducerConsumer moves Item-<producer>-<index> strings from producers
// to consumers through a bounded queue
func (d *demo) runProducerConsumer(ctx context.Context) error {
	d.header("Producer-Consumer")

	cfg := coordinator.DefaultConfig()
	cfg.Capacity = d.settings.capacity
	cfg.Producers = d.settings.producers
	cfg.Consumers = d.settings.consumers
	cfg.GetTimeout = d.settings.getTimeout
	cfg.PutTimeout = d.settings.putTimeout
	cfg.Logger = d.logger
	cfg.Metrics = d.metrics
	cfg.Name = "demo"

	items := d.settings.items
	produce := func(ctx context.Context, id int, emit coordinator.Emitter[string]) error {
		for i := range items {
			item := fmt.Sprintf("Item-%d-%d", id, i)
			if err := emit(item); err != nil {
				return err
			}
			d.printf("Producer %d produced: %s\n", id, item)
			if err := sleep(ctx, d.between(1, 5)); err != nil {
				return err
			}
		}
		d.printf("Producer %d finished\n", id)
		return nil
	}
	consume := func(ctx context.Context, id int, item string) error {
		d.printf("Consumer %d consumed: %s\n", id, item)
		return sleep(ctx, d.between(1, 3))
	}

	report, err := coordinator.Run(ctx, cfg, produce, consume)
	if err != nil {
		return err
	}

	d.printf("\n")
	rows := make([][]string, 0, len(report.PerProducer)+len(report.PerConsumer))
	for id, n := range report.PerProducer {
		rows = append(rows, []string{"producer", strconv.Itoa(id), strconv.FormatInt(n, 10)})
	}
	for id, n := range report.PerConsumer {
		rows = append(rows, []string{"consumer", strconv.Itoa(id), strconv.FormatInt(n, 10)})
	}
	d.table([]string{"Role", "ID", "Items"}, rows)

	if report.Produced != report.Consumed {
		return fmt.Errorf("produced %d items but consumed %d", report.Produced, report.Consumed)
	}
	d.success("All producers and consumers finished! %d items in %v",
		report.Consumed, report.Elapsed.Round(time.Millisecond))
	return nil
}

// taskResult is what each pool task reports back
type taskResult struct {
	ID       int
	Square   int
	Duration time.Duration
}

// runPool submits tasks of random length and prints results in the order
// they complete
func (d *demo) runPool(ctx context.Context) error {
	d.header("Worker Pool")

	pool, err := worker.New(func(ctx context.Context, id int) (taskResult, error) {
		duration := d.between(5, 20)
		d.printf("Task %d starting (will take %v)\n", id, duration.Round(time.Millisecond))
		if err := sleep(ctx, duration); err != nil {
			return taskResult{}, err
		}
		d.printf("Task %d completed\n", id)
		return taskResult{ID: id, Square: id * id, Duration: duration}, nil
	}, &worker.Config{
		Workers: d.settings.workers,
		Logger:  d.logger,
		Metrics: d.metrics,
		Name:    "demo-pool",
	})
	if err != nil {
		return err
	}
	defer func() { _ = pool.Shutdown(true) }()

	d.printf("Executing %d tasks with %d workers\n\n", d.settings.tasks, pool.Size())
	start := time.Now()

	futures := make([]*worker.Future[taskResult], 0, d.settings.tasks)
	for i := range d.settings.tasks {
		f, err := pool.SubmitContext(ctx, i)
		if err != nil {
			return fmt.Errorf("submit task %d: %w", i, err)
		}
		futures = append(futures, f)
	}

	bar := d.progressBar(len(futures), "Running tasks")
	results := make([]taskResult, 0, len(futures))
	workerOf := make(map[int]int, len(futures))
	for _, r := range worker.AsCompleted(ctx, futures...) {
		if r.Error != nil {
			return r.Error
		}
		results = append(results, r.Value)
		workerOf[r.Value.ID] = r.WorkerID
		_ = bar.Add(1)
		d.colorPrintf(cyan, "Retrieved result: Task %d = %d\n", r.Value.ID, r.Value.Square)
	}
	_ = bar.Finish()
	if err := ctx.Err(); err != nil {
		return err
	}

	slices.SortFunc(results, func(a, b taskResult) int { return a.ID - b.ID })
	rows := make([][]string, len(results))
	for i, r := range results {
		rows[i] = []string{
			strconv.Itoa(r.ID),
			strconv.Itoa(r.Square),
			r.Duration.Round(time.Millisecond).String(),
			strconv.Itoa(workerOf[r.ID]),
		}
	}
	d.printf("\n")
	d.table([]string{"Task", "Result", "Duration", "Worker"}, rows)

	stats := pool.Stats()
	d.success("All tasks completed in %v (completed %d, failed %d)",
		time.Since(start).Round(time.Millisecond), stats.Completed, stats.Failed)
	return nil
}

// runMap squares a range of numbers on a pool and keeps input order
func (d *demo) runMap(ctx context.Context) error {
	d.header("Worker Pool Map")

	numbers := make([]int, mapInputs)
	for i := range numbers {
		numbers[i] = i
	}

	pause := 2 * d.settings.work
	squares, err := worker.Map(ctx, mapWorkers, func(ctx context.Context, n int) (int, error) {
		if err := sleep(ctx, pause); err != nil {
			return 0, err
		}
		return n * n, nil
	}, numbers)
	if err != nil {
		return err
	}

	d.printf("Input:  %v\n", numbers)
	d.printf("Output: %v\n", squares)
	d.success("Results kept input order")
	return nil
}

// runSemaphore lets many goroutines contend for a fixed number of permits
func (d *demo) runSemaphore(ctx context.Context) error {
	d.header("Semaphore")

	permits := int64(d.settings.permits)
	sem := semaphore.NewWeighted(permits)
	inUse := counter.New()
	var peak atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	for i := range semaphoreTasks {
		g.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			held := inUse.Increment()
			for {
				old := peak.Load()
				if held <= old || peak.CompareAndSwap(old, held) {
					break
				}
			}
			d.printf("Goroutine %d acquired a permit (%d of %d in use)\n", i, held, permits)

			err := sleep(ctx, d.settings.work)
			inUse.Add(-1)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if peak.Load() > permits {
		return fmt.Errorf("%d permits in use at once, limit is %d", peak.Load(), permits)
	}
	d.success("%d goroutines shared %d permits, at most %d at once", semaphoreTasks, permits, peak.Load())
	return nil
}

// runLatch waits until every goroutine has counted down
func (d *demo) runLatch(ctx context.Context) error {
	d.header("Count-Down Latch")

	l := latch.New(latchGoroutines)
	g, gctx := errgroup.WithContext(ctx)
	for i := range latchGoroutines {
		g.Go(func() error {
			if i%10 == 0 {
				d.colorPrintf(yellow, "Latch count: %d\n", l.Count())
			}
			if err := sleep(gctx, d.settings.work); err != nil {
				return err
			}
			l.CountDown()
			return nil
		})
	}

	waitErr := l.Wait(ctx)
	if err := g.Wait(); err != nil {
		return err
	}
	if waitErr != nil {
		return waitErr
	}

	d.success("%d goroutines counted down; latch released", latchGoroutines)
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
