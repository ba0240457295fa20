package scheduler

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"proxybench/internal/shared/logger"
	"proxybench/proxypool/model"
)

// Prober 执行一次探测，失败通过 ProbeResult 表达。
type Prober interface {
	Probe(ctx context.Context, rec model.ProxyRecord) model.ProbeResult
}

// ProgressFunc 在每个探测结束后被调用，调用是串行的。
// done 是已完成数量，total 是本批总数。
type ProgressFunc func(done, total int, res model.ProbeResult)

// Scheduler 在并发上限 K 内对每个代理执行且只执行一次探测。
type Scheduler struct {
	prober   Prober
	limit    int
	progress ProgressFunc
}

func New(prober Prober, limit int) *Scheduler {
	if limit <= 0 {
		limit = 1
	}
	return &Scheduler{prober: prober, limit: limit}
}

// OnProgress 注册进度回调。
func (s *Scheduler) OnProgress(fn ProgressFunc) *Scheduler {
	s.progress = fn
	return s
}

// Run 对 records 中每个元素执行一次探测，最多 limit 个同时进行，
// 全部结束后才返回结果。结果顺序与输入顺序一致，与完成顺序无关。
// 单个代理的失败不会取消其它探测。
//
// ctx 被取消后尚未开始的探测不再执行；因取消而中断的失败探测也被丢弃，
// 它们不代表代理本身的状态。因此返回的结果可能少于 records。
func (s *Scheduler) Run(ctx context.Context, records []model.ProxyRecord) []model.ProbeResult {
	l := logger.WithComponent("ProxyBench/Scheduler")
	if len(records) == 0 {
		return []model.ProbeResult{}
	}

	l.Info().Int("count", len(records)).Int("concurrency", s.limit).Msg("Starting probe batch...")

	var (
		mu   sync.Mutex
		done int
	)
	results := make([]model.ProbeResult, len(records))
	probed := make([]bool, len(records))

	// 不使用 errgroup.WithContext：任务永远返回 nil，不存在跨探测取消
	var g errgroup.Group
	g.SetLimit(s.limit)

	for i, rec := range records {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			res := s.prober.Probe(ctx, rec)
			if !res.Success && ctx.Err() != nil {
				return nil
			}
			results[i] = res
			probed[i] = true

			if s.progress != nil {
				mu.Lock()
				done++
				s.progress(done, len(records), res)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]model.ProbeResult, 0, len(records))
	for i, ok := range probed {
		if ok {
			out = append(out, results[i])
		}
	}
	if skipped := len(records) - len(out); skipped > 0 {
		l.Warn().Int("skipped", skipped).Msg("Probe batch interrupted; unfinished probes were discarded.")
	}

	l.Info().Int("completed", len(out)).Msg("Probe batch finished.")
	return out
}

// Partition 把结果分为成功和失败两组。
func Partition(results []model.ProbeResult) (succeeded, failed []model.ProbeResult) {
	for _, r := range results {
		if r.Success {
			succeeded = append(succeeded, r)
		} else {
			failed = append(failed, r)
		}
	}
	return succeeded, failed
}
