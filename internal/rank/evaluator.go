package rank

import "github.com/rankpulse/monitor/internal/models"

// ChangeType 排名变化类型
type ChangeType string

const (
	Improved     ChangeType = "improved"      // 排名上升
	Declined     ChangeType = "declined"      // 排名下降
	EnteredTop10 ChangeType = "entered_top10" // 进入前10
	ExitedTop10  ChangeType = "exited_top10"  // 跌出前10
	NewRank      ChangeType = "new_rank"      // 新上榜
	LostRank     ChangeType = "lost_rank"     // 跌出榜单
)

// Change 单个监控项一次检测产生的排名变化
type Change struct {
	Keyword string     `json:"keyword"`
	Country string     `json:"country"`
	OldRank *int64     `json:"old_rank"`
	NewRank *int64     `json:"new_rank"`
	Delta   int64      `json:"delta"`
	Type    ChangeType `json:"type"`
}

// Classify 计算排名变化
//
// delta = old - new，正数表示排名上升（数字变小是变好）。
// 进入/跌出前10的判断优先于普通升降。
// 注意：排名不变 (delta == 0) 被归为 Declined，这是沿用的历史行为，
// 下游依赖它，不要“修复”。
func Classify(oldRank, newRank *int64) (int64, ChangeType, bool) {
	switch {
	case oldRank == nil && newRank != nil:
		return *newRank, NewRank, true
	case oldRank != nil && newRank == nil:
		return 0, LostRank, true
	case oldRank == nil && newRank == nil:
		return 0, "", false
	}

	old, new := *oldRank, *newRank
	delta := old - new

	var typ ChangeType
	switch {
	case old > 10 && new <= 10:
		typ = EnteredTop10
	case old <= 10 && new > 10:
		typ = ExitedTop10
	case delta > 0:
		typ = Improved
	default:
		typ = Declined
	}
	return delta, typ, true
}

// ShouldNotify 判断变化是否达到通知条件
//
// 进入/跌出前10、新上榜、跌出榜单只看对应开关；
// 普通升降看绝对变化量是否达到阈值（等于阈值也通知）。
func ShouldNotify(delta int64, typ ChangeType, settings models.SchedulerSettings) bool {
	switch typ {
	case EnteredTop10:
		return settings.NotifyOnEnterTop10
	case ExitedTop10:
		return settings.NotifyOnExitTop10
	case NewRank:
		return settings.NotifyOnNewRank
	case LostRank:
		return settings.NotifyOnLostRank
	case Improved, Declined:
		abs := delta
		if abs < 0 {
			abs = -abs
		}
		return abs >= settings.RankChangeThreshold
	}
	return false
}
