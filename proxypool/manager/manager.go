package manager

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"proxybench/internal/shared/logger"
	"proxybench/proxypool/history"
	"proxybench/proxypool/model"
	"proxybench/proxypool/report"
	"proxybench/proxypool/scheduler"
	"proxybench/proxypool/scorer"
	"proxybench/proxypool/selector"
	"proxybench/proxypool/source"
)

// Runner 执行一批探测并在全部完成后返回。
type Runner interface {
	Run(ctx context.Context, records []model.ProxyRecord) []model.ProbeResult
}

// Summary 是一轮测试的汇总。
type Summary struct {
	RunID      string
	Total      int
	Succeeded  int
	Failed     int
	Skipped    int // 因中断而未完成的探测
	TopN       int
	FailedSet  int
	Responded  int
	Bytes      int64
	Elapsed    time.Duration
	HistoryErr error // 历史读写失败，本轮仍然完成
	Selection  selector.Selection
}

// Manager 是 proxybench 的总控制器：来源 -> 调度探测 -> 合并历史 -> 评分 -> 筛选 -> 输出。
type Manager struct {
	sources  []source.Source
	runner   Runner
	history  *history.Store
	writer   *report.Writer
	selOpts  selector.Options
	interval time.Duration

	// 周期运行与生命周期管理
	mu       sync.Mutex // 同一时间只运行一轮
	ticker   *time.Ticker
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewManager 创建管理器。interval 为 0 时只支持单次运行。
func NewManager(sources []source.Source, runner Runner, store *history.Store, writer *report.Writer, opts selector.Options, interval time.Duration) *Manager {
	return &Manager{
		sources:  sources,
		runner:   runner,
		history:  store,
		writer:   writer,
		selOpts:  opts,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// RunOnce 执行一轮完整的测试。历史读写失败不会中断本轮，只记录在 Summary 中。
// ctx 在探测期间被取消时，已完成的结果仍写入历史，但不再生成输出文件，
// 返回 ctx.Err()。其它返回的 error 表示输出文件写入失败。
func (m *Manager) RunOnce(ctx context.Context) (Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := time.Now()
	sum := Summary{RunID: uuid.NewString()}
	l := logger.WithComponent("ProxyBench/Manager").With().Str("run_id", sum.RunID).Logger()

	records := source.Collect(ctx, m.sources...)
	sum.Total = len(records)
	if len(records) == 0 {
		l.Warn().Msg("No proxies to test in this cycle.")
		return sum, nil
	}
	l.Info().Int("count", len(records)).Msg("Starting benchmark cycle...")

	loadErr := m.history.Load()

	results := m.runner.Run(ctx, records)
	sum.Skipped = len(records) - len(results)

	m.history.Merge(results)
	saveErr := m.history.Save()
	sum.HistoryErr = errors.Join(loadErr, saveErr)

	if err := ctx.Err(); err != nil {
		for _, r := range results {
			if r.Success {
				sum.Succeeded++
			} else {
				sum.Failed++
			}
		}
		sum.Elapsed = time.Since(start)
		l.Warn().Int("completed", len(results)).Int("skipped", sum.Skipped).Msg("Benchmark cycle interrupted; output files were left unchanged.")
		return sum, err
	}

	candidates := make([]selector.Candidate, 0, len(results))
	for i, r := range results {
		entry := m.history.Entry(r.Proxy.Key())
		candidates = append(candidates, selector.Candidate{
			Proxy:   r.Proxy,
			Order:   i,
			Current: r,
			History: entry,
			Stats:   scorer.Aggregate(entry.Points, &r),
		})
		if r.Success {
			sum.Succeeded++
			sum.Bytes += r.Bytes
		} else {
			sum.Failed++
		}
	}

	sel := selector.Select(candidates, m.selOpts)
	sum.Selection = sel
	sum.TopN = len(sel.TopN)
	sum.FailedSet = len(sel.Failed)
	sum.Responded = len(sel.Responded)

	writeErr := m.writer.Write(sel)
	sum.Elapsed = time.Since(start)

	logSummary(l, sum)
	return sum, writeErr
}

func logSummary(l zerolog.Logger, sum Summary) {
	ev := l.Info()
	if sum.HistoryErr != nil {
		ev = l.Warn().AnErr("history_error", sum.HistoryErr)
	}
	ev.Str("tested", humanize.Comma(int64(sum.Total))).
		Int("good", sum.Succeeded).
		Int("bad", sum.Failed).
		Int("skipped", sum.Skipped).
		Int("top_n", sum.TopN).
		Int("failed_set", sum.FailedSet).
		Int("responded", sum.Responded).
		Str("downloaded", humanize.Bytes(uint64(sum.Bytes))).
		Dur("elapsed", sum.Elapsed).
		Msg("Benchmark cycle finished.")
}

// Start 立即运行一轮，然后按 interval 周期运行，直到 Stop 或 ctx 结束。
func (m *Manager) Start(ctx context.Context) {
	l := logger.WithComponent("ProxyBench/Manager")
	if m.interval <= 0 {
		l.Warn().Msg("Start called without an interval; running a single cycle.")
		if _, err := m.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			l.Error().Err(err).Msg("Benchmark cycle finished with output errors.")
		}
		return
	}

	m.ticker = time.NewTicker(m.interval)
	l.Info().Dur("interval", m.interval).Msg("Scheduler initialized.")

	m.wg.Add(1)
	go m.schedulerLoop(ctx)
}

// schedulerLoop 是核心的调度循环，监听 Ticker 和停止信号。
func (m *Manager) schedulerLoop(ctx context.Context) {
	defer m.wg.Done()
	l := logger.WithComponent("ProxyBench/Manager")

	run := func() {
		if _, err := m.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			l.Error().Err(err).Msg("Benchmark cycle finished with output errors.")
		}
	}
	run()

	for {
		select {
		case <-m.ticker.C:
			l.Info().Msg("Benchmark ticker triggered.")
			run()

		case <-ctx.Done():
			l.Info().Msg("Context cancelled. Shutting down scheduler.")
			m.ticker.Stop()
			return

		case <-m.stopChan:
			l.Info().Msg("Stop signal received. Shutting down scheduler.")
			m.ticker.Stop()
			return
		}
	}
}

// Stop 停止周期运行并等待当前一轮结束。
func (m *Manager) Stop() {
	select {
	case <-m.stopChan:
	default:
		close(m.stopChan)
	}
	m.wg.Wait()
	logger.Info().Msg("ProxyBench Manager gracefully stopped.")
}

// ProgressLogger 返回一个按 "[i/total]" 格式逐条记录探测结果的回调。
func ProgressLogger() scheduler.ProgressFunc {
	l := logger.WithComponent("ProxyBench/Scheduler")
	return func(done, total int, r model.ProbeResult) {
		if r.Success {
			l.Info().
				Int("done", done).Int("total", total).
				Str("proxy", r.Proxy.Key()).
				Float64("latency_s", r.Latency.Seconds()).
				Float64("speed_mb_s", *r.Throughput).
				Float64("score", r.Score).
				Msg("[+] probe ok")
			return
		}
		l.Info().
			Int("done", done).Int("total", total).
			Str("proxy", r.Proxy.Key()).
			Str("kind", string(r.Kind())).
			Err(r.Err).
			Msg("[-] probe failed")
	}
}
