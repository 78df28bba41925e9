package main

import (
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/jzx17/goworkq/pkg/metrics"
	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var (
	bold   = color.New(color.Bold)
	green  = color.New(color.FgGreen)
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
	cyan   = color.New(color.FgCyan)
)

// settings are the command-line knobs shared by every scenario
type settings struct {
	capacity    int
	producers   int
	consumers   int
	items       int
	workers     int
	tasks       int
	permits     int
	getTimeout  time.Duration
	putTimeout  time.Duration
	work        time.Duration
	progress    bool
	showMetrics bool
	verbose     bool
}

func settingsFromContext(c *cli.Context) (settings, error) {
	s := settings{
		capacity:    c.Int("capacity"),
		producers:   c.Int("producers"),
		consumers:   c.Int("consumers"),
		items:       c.Int("items"),
		workers:     c.Int("workers"),
		tasks:       c.Int("tasks"),
		permits:     c.Int("permits"),
		getTimeout:  c.Duration("get-timeout"),
		putTimeout:  c.Duration("put-timeout"),
		work:        c.Duration("work"),
		progress:    !c.Bool("no-progress"),
		showMetrics: c.Bool("metrics"),
		verbose:     c.Bool("verbose"),
	}
	return s, s.validate()
}

func (s settings) validate() error {
	var errs []error
	positive := map[string]int{
		"capacity":  s.capacity,
		"producers": s.producers,
		"consumers": s.consumers,
		"workers":   s.workers,
		"permits":   s.permits,
	}
	for _, name := range []string{"capacity", "producers", "consumers", "workers", "permits"} {
		if positive[name] <= 0 {
			errs = append(errs, fmt.Errorf("--%s must be positive, got %d", name, positive[name]))
		}
	}
	if s.items < 0 || s.tasks < 0 {
		errs = append(errs, errors.New("--items and --tasks must not be negative"))
	}
	if s.getTimeout <= 0 {
		errs = append(errs, fmt.Errorf("--get-timeout must be positive, got %v", s.getTimeout))
	}
	if s.putTimeout < 0 || s.work < 0 {
		errs = append(errs, errors.New("--put-timeout and --work must not be negative"))
	}
	return errors.Join(errs...)
}

// demo carries the output and ambient dependencies of one command run
type demo struct {
	settings settings
	out      io.Writer
	errOut   io.Writer
	mu       sync.Mutex

	logger   *zap.Logger
	metrics  *metrics.Registry
	gatherer prometheus.Gatherer
}

func newDemo(s settings, out, errOut io.Writer) (*demo, error) {
	logger := zap.NewNop()
	if s.verbose {
		var err error
		if logger, err = zap.NewDevelopment(); err != nil {
			return nil, err
		}
	}
	reg, promReg := metrics.NewIsolated()

	return &demo{
		settings: s,
		out:      out,
		errOut:   errOut,
		logger:   logger,
		metrics:  reg,
		gatherer: promReg,
	}, nil
}

func (d *demo) close() {
	_ = d.logger.Sync()
}

// printf serializes output from concurrent goroutines
func (d *demo) printf(format string, a ...any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(d.out, format, a...)
}

func (d *demo) colorPrintf(c *color.Color, format string, a ...any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, _ = c.Fprintf(d.out, format, a...)
}

func (d *demo) header(title string) {
	d.colorPrintf(bold, "=== %s ===\n\n", title)
}

func (d *demo) success(format string, a ...any) {
	d.colorPrintf(green, "✓ "+format+"\n\n", a...)
}

// between returns a random duration in [lo, hi) units of simulated work
func (d *demo) between(lo, hi int) time.Duration {
	base := time.Duration(lo) * d.settings.work
	span := time.Duration(hi-lo) * d.settings.work
	if span <= 0 {
		return base
	}
	return base + rand.N(span)
}

func (d *demo) progressBar(total int, description string) *progressbar.ProgressBar {
	if !d.settings.progress {
		return progressbar.DefaultSilent(int64(total))
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWriter(d.errOut),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

func (d *demo) table(header []string, rows [][]string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	table := tablewriter.NewWriter(d.out)
	table.Header(toAny(header)...)
	for _, row := range rows {
		_ = table.Append(toAny(row)...)
	}
	if err := table.Render(); err != nil {
		_, _ = red.Fprintln(d.out, "Error rendering table:", err)
	}
	fmt.Fprintln(d.out)
}

// renderMetrics prints every collected sample
func (d *demo) renderMetrics() {
	families, err := d.gatherer.Gather()
	if err != nil {
		d.colorPrintf(red, "Error gathering metrics: %v\n", err)
		return
	}

	var rows [][]string
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}

			var value string
			switch {
			case m.GetCounter() != nil:
				value = fmt.Sprintf("%g", m.GetCounter().GetValue())
			case m.GetGauge() != nil:
				value = fmt.Sprintf("%g", m.GetGauge().GetValue())
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				value = fmt.Sprintf("count=%d sum=%.3fs", h.GetSampleCount(), h.GetSampleSum())
			default:
				continue
			}
			rows = append(rows, []string{mf.GetName(), strings.Join(labels, ","), value})
		}
	}

	d.header("Metrics")
	d.table([]string{"Metric", "Labels", "Value"}, rows)
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
