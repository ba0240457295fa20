package scorer

import "proxybench/proxypool/model"

// Aggregate 从历史计算长期指标，是纯函数。
//   - LongTermScore: 全部历史 score 的均值
//   - ResponseRate:  成功次数 / 总次数 * 100
//   - ResponseAvg:   仅成功记录的 score 均值，没有成功记录时为 0
//
// 历史为空时（首次探测）回退到本轮结果 current；current 为 nil 时全部为 0。
func Aggregate(points []model.HistoryPoint, current *model.ProbeResult) model.AggregateStats {
	if len(points) == 0 {
		if current == nil {
			return model.AggregateStats{}
		}
		p := current.Point()
		stats := model.AggregateStats{LongTermScore: p.Score}
		if p.Success {
			stats.ResponseRate = 100
			stats.ResponseAvg = p.Score
		}
		return stats
	}

	var (
		sum, successSum float64
		successes       int
	)
	for _, p := range points {
		sum += p.Score
		if p.Success {
			successes++
			successSum += p.Score
		}
	}

	stats := model.AggregateStats{
		LongTermScore: sum / float64(len(points)),
		ResponseRate:  float64(successes) / float64(len(points)) * 100,
		Samples:       len(points),
	}
	if successes > 0 {
		stats.ResponseAvg = successSum / float64(successes)
	}
	return stats
}
