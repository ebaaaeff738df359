package model

import (
	"fmt"
	"math"
	"time"
)

// DayLayout 使用记录中日期字段的格式
const DayLayout = "2006-01-02"

// UsageRecord 受限平台的每日使用记录，按请求者 ID 唯一。
// 只在任务确认成功之后记账，检查与记账之间存在竞态，按原始设计保留。
type UsageRecord struct {
	ID        uint       `json:"id" gorm:"primarykey"`
	UserID    int64      `json:"user_id" gorm:"uniqueIndex;not null"`
	Count     int        `json:"count" gorm:"default:0"`
	LastTime  *time.Time `json:"last_time"`
	Day       string     `json:"day" gorm:"size:10"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// TableName 指定表名
func (UsageRecord) TableName() string {
	return "usage_records"
}

// ResetIfNewDay 若记录不属于今天则视为清零
func (r *UsageRecord) ResetIfNewDay(now time.Time) {
	today := now.Format(DayLayout)
	if r.Day != today {
		r.Count = 0
		r.LastTime = nil
		r.Day = today
	}
}

// MarkSuccess 在一次成功下载后记账
func (r *UsageRecord) MarkSuccess(now time.Time) {
	r.ResetIfNewDay(now)
	r.Count++
	t := now
	r.LastTime = &t
}

// UsageDecision 用量闸门的判定结果
type UsageDecision struct {
	Allowed bool
	Message string
}

// EvaluateUsage 纯策略判定：每日限额优先，其次冷却时间。
// 传入的记录按值处理，不会修改存储状态。
func EvaluateUsage(r UsageRecord, now time.Time, dailyLimit int, cooldown time.Duration) UsageDecision {
	r.ResetIfNewDay(now)

	if r.Count >= dailyLimit {
		return UsageDecision{
			Message: fmt.Sprintf("Daily limit reached (%d videos). Try again tomorrow.", dailyLimit),
		}
	}

	if r.LastTime != nil {
		elapsed := now.Sub(*r.LastTime)
		if elapsed < cooldown {
			wait := int(math.Ceil((cooldown - elapsed).Minutes()))
			if wait < 1 {
				wait = 1
			}
			return UsageDecision{
				Message: fmt.Sprintf("Wait %d minutes before next download.", wait),
			}
		}
	}

	return UsageDecision{Allowed: true}
}
