package service

import (
	"errors"
	"time"

	"media-fetch/app/config"
	"media-fetch/app/logger"
	"media-fetch/app/model"

	"gorm.io/gorm"
)

// UsageService 受限平台的用量闸门与记账。
// 检查发生在入队之前，记账发生在编排方确认成功之后，两者之间不构成
// 原子操作：同一请求者的并发请求可能同时通过闸门，这是沿袭自原始
// 设计的已知弱点。
type UsageService struct {
	db       *gorm.DB
	logger   *logger.Logger
	limit    int
	cooldown time.Duration
}

// NewUsageService 创建用量服务
func NewUsageService(db *gorm.DB, log *logger.Logger, cfg config.LimitConfig) *UsageService {
	return &UsageService{
		db:       db,
		logger:   log,
		limit:    cfg.DailyLimit,
		cooldown: cfg.CooldownDuration(),
	}
}

// Check 判定请求是否放行。不受限平台一律放行；受限平台按每日限额
// 与冷却时间判定，拒绝时返回面向用户的消息。本方法不记账。
func (s *UsageService) Check(userID int64, platform model.Platform, now time.Time) model.UsageDecision {
	if !platform.RateLimited() {
		return model.UsageDecision{Allowed: true}
	}

	record, err := s.load(userID)
	if err != nil {
		// 读取失败时放行，限额闸门不应阻断主流程
		s.logger.Errorf("读取用量记录失败: UserID=%d, %v", userID, err)
		return model.UsageDecision{Allowed: true}
	}

	return model.EvaluateUsage(record, now, s.limit, s.cooldown)
}

// Record 在一次成功下载后记账。只有受限平台需要记账。
func (s *UsageService) Record(userID int64, platform model.Platform, now time.Time) error {
	if !platform.RateLimited() {
		return nil
	}

	record, err := s.load(userID)
	if err != nil {
		return err
	}

	record.UserID = userID
	record.MarkSuccess(now)

	if err := s.db.Save(&record).Error; err != nil {
		s.logger.Errorf("保存用量记录失败: UserID=%d, %v", userID, err)
		return err
	}

	s.logger.Infof("用量记账: UserID=%d, 今日第 %d 次", userID, record.Count)
	return nil
}

// GetRecord 读取请求者的用量记录，供管理接口查询
func (s *UsageService) GetRecord(userID int64) (model.UsageRecord, error) {
	return s.load(userID)
}

// load 读取记录，不存在时返回零值记录
func (s *UsageService) load(userID int64) (model.UsageRecord, error) {
	var record model.UsageRecord
	err := s.db.Where("user_id = ?", userID).First(&record).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return model.UsageRecord{}, err
	}
	return record, nil
}
