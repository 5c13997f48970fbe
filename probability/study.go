package probability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/cpu"
	mpb "github.com/vbauerster/mpb/v7"
	"github.com/vbauerster/mpb/v7/decor"
	"github.com/xhhuango/json"

	"github.com/bcdannyboy/trinomial/lattice"
	"github.com/bcdannyboy/trinomial/models"
)

const jobBatchSize = 64

// ErrNoSteps is returned when a study is asked for no step counts.
var ErrNoSteps = errors.New("probability: no step counts to study")

type StudyOptions struct {
	Workers  int       // 0 means runtime.NumCPU
	Bounded  bool      // price with lattice.PriceBounded
	Progress io.Writer // progress bar output, nil disables the bar
}

// Row is one step count of a convergence study. Benchmark, Gap and
// GapTimesSteps are nil when the contract has no closed form.
type Row struct {
	Steps         int           `json:"steps"`
	Price         float64       `json:"price"`
	Benchmark     *float64      `json:"benchmark,omitempty"`
	Gap           *float64      `json:"gap,omitempty"`
	GapTimesSteps *float64      `json:"gap_times_steps,omitempty"`
	Nodes         int           `json:"nodes"`
	Pruned        int           `json:"pruned"`
	MaxWidth      int           `json:"max_width"`
	BuildTime     time.Duration `json:"build_ns"`
	PriceTime     time.Duration `json:"price_ns"`
}

type Host struct {
	CPUModel     string `json:"cpu_model"`
	LogicalCPUs  int    `json:"logical_cpus"`
	PhysicalCPUs int    `json:"physical_cpus"`
	GoMaxProcs   int    `json:"gomaxprocs"`
	GOOS         string `json:"goos"`
	GOARCH       string `json:"goarch"`
}

type Report struct {
	Generated time.Time     `json:"generated"`
	Option    string        `json:"option"`
	Market    models.Market `json:"market"`
	Threshold float64       `json:"threshold"`
	Bounded   bool          `json:"bounded"`
	Host      Host          `json:"host"`
	Rows      []Row         `json:"rows"`
}

type job struct {
	steps int
}

type result struct {
	row Row
	err error
}

// HostInfo describes the machine a study ran on. Fields gopsutil cannot read
// are left zero.
func HostInfo() Host {
	h := Host{
		GoMaxProcs: runtime.GOMAXPROCS(0),
		GOOS:       runtime.GOOS,
		GOARCH:     runtime.GOARCH,
	}
	if info, err := cpu.Info(); err == nil && len(info) > 0 {
		h.CPUModel = info[0].ModelName
	}
	if n, err := cpu.Counts(true); err == nil {
		h.LogicalCPUs = n
	}
	if n, err := cpu.Counts(false); err == nil {
		h.PhysicalCPUs = n
	}
	return h
}

// ProgressOutput returns f when it is a terminal and nil otherwise, for use as
// StudyOptions.Progress.
func ProgressOutput(f *os.File) io.Writer {
	if f == nil {
		return nil
	}
	if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
		return f
	}
	return nil
}

// RunStudy prices option on a fresh lattice for every step count and reports
// price, timing and the gap to the closed form. Rows are sorted by step count.
// The first pricing error aborts the study.
func RunStudy(ctx context.Context, market models.Market, option models.Option, steps []int, threshold float64, opts StudyOptions) (*Report, error) {
	if len(steps) == 0 {
		return nil, ErrNoSteps
	}
	log := zerolog.Ctx(ctx)

	var benchmark *float64
	if bs, err := models.BlackScholes(market, option); err == nil {
		benchmark = &bs.Price
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(steps) {
		workers = len(steps)
	}

	jobs := make([]job, len(steps))
	for i, n := range steps {
		jobs[i] = job{steps: n}
	}

	var p *mpb.Progress
	var bar *mpb.Bar
	if opts.Progress != nil {
		p = mpb.New(mpb.WithWidth(64), mpb.WithOutput(opts.Progress))
		bar = p.AddBar(int64(len(jobs)),
			mpb.PrependDecorators(
				decor.Name("Study"),
				decor.Percentage(decor.WCSyncSpace),
			),
			mpb.AppendDecorators(
				decor.CountersNoUnit("(%d / %d)", decor.WCSyncSpace),
			),
		)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	rows, err := processJobs(ctx, cancel, jobs, workers, bar, func(n int) (Row, error) {
		return priceRow(market, option, n, threshold, opts.Bounded, benchmark)
	})
	if bar != nil {
		if !bar.Completed() {
			bar.Abort(false)
		}
		p.Wait()
	}
	if err != nil {
		return nil, err
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Steps < rows[j].Steps })
	log.Info().
		Int("rows", len(rows)).
		Int("workers", workers).
		Dur("elapsed", time.Since(start)).
		Msg("study finished")

	return &Report{
		Generated: time.Now().UTC(),
		Option:    fmt.Sprint(option),
		Market:    market,
		Threshold: threshold,
		Bounded:   opts.Bounded,
		Host:      HostInfo(),
		Rows:      rows,
	}, nil
}

func processJobs(ctx context.Context, cancel context.CancelFunc, jobs []job, numWorkers int, bar *mpb.Bar, price func(int) (Row, error)) ([]Row, error) {
	var wg sync.WaitGroup
	jobChan := make(chan job, jobBatchSize)
	resultChan := make(chan result, jobBatchSize)
	var processed int64

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go worker(ctx, jobChan, resultChan, &wg, &processed, bar, price)
	}

	go func() {
		defer close(jobChan)
		for _, j := range jobs {
			select {
			case jobChan <- j:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	var rows []Row
	var firstErr error
	for r := range resultChan {
		if r.err != nil {
			if firstErr == nil {
				firstErr = r.err
				cancel()
			}
			continue
		}
		rows = append(rows, r.row)
	}
	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Debug().Int64("processed", atomic.LoadInt64(&processed)).Msg("jobs done")
	return rows, nil
}

func worker(ctx context.Context, jobs <-chan job, results chan<- result, wg *sync.WaitGroup, processed *int64, bar *mpb.Bar, price func(int) (Row, error)) {
	defer wg.Done()
	for j := range jobs {
		if err := ctx.Err(); err != nil {
			results <- result{err: err}
			return
		}
		row, err := price(j.steps)
		if err != nil {
			err = fmt.Errorf("%d steps: %w", j.steps, err)
		} else {
			zerolog.Ctx(ctx).Debug().
				Int("steps", row.Steps).
				Float64("price", row.Price).
				Dur("build", row.BuildTime).
				Dur("price_time", row.PriceTime).
				Msg("priced")
		}
		results <- result{row: row, err: err}
		atomic.AddInt64(processed, 1)
		if bar != nil {
			bar.Increment()
		}
	}
}

func priceRow(market models.Market, option models.Option, steps int, threshold float64, bounded bool, benchmark *float64) (Row, error) {
	row := Row{Steps: steps}
	if bounded {
		start := time.Now()
		v, err := lattice.PriceBounded(market, option, steps, threshold)
		if err != nil {
			return Row{}, err
		}
		row.PriceTime = time.Since(start)
		row.Price = v
	} else {
		start := time.Now()
		l, err := lattice.BuildLattice(market, option, steps, threshold)
		if err != nil {
			return Row{}, err
		}
		row.BuildTime = time.Since(start)

		start = time.Now()
		v, err := l.Price()
		if err != nil {
			return Row{}, err
		}
		row.PriceTime = time.Since(start)
		row.Price = v

		stats := l.Stats()
		row.Nodes = stats.Nodes
		row.Pruned = stats.Pruned
		row.MaxWidth = stats.MaxWidth
	}

	if benchmark != nil {
		b := *benchmark
		gap := row.Price - b
		scaled := gap * float64(steps)
		row.Benchmark = &b
		row.Gap = &gap
		row.GapTimesSteps = &scaled
	}
	return row, nil
}

// WriteReport writes report to path as indented JSON.
func WriteReport(path string, report *Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("probability: encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("probability: write report: %w", err)
	}
	return nil
}
