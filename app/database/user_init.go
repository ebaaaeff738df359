package database

import (
	"fmt"

	"media-fetch/app/config"
	"media-fetch/app/logger"
	"media-fetch/app/model"
	"media-fetch/app/utils"

	"gorm.io/gorm"
)

// InitAdminUser 按配置初始化管理员账户，已存在时同步用户名与密码
func InitAdminUser(db *gorm.DB, cfg *config.Config, log *logger.Logger) error {
	if cfg.Server.Username == "" || cfg.Server.Password == "" {
		return fmt.Errorf("管理员账户配置不能为空，请在配置文件中设置 username 和 password")
	}

	var admin model.User
	result := db.Where("is_admin = ?", true).First(&admin)
	if result.Error != nil {
		// 不存在管理员，创建新账户
		hashed, err := utils.HashPassword(cfg.Server.Password)
		if err != nil {
			return fmt.Errorf("哈希密码失败: %v", err)
		}

		admin = model.User{
			Username: cfg.Server.Username,
			Password: hashed,
			IsActive: true,
			IsAdmin:  true,
		}
		if err := db.Create(&admin).Error; err != nil {
			return fmt.Errorf("创建管理员账户失败: %v", err)
		}

		log.Infof("管理员账户 '%s' 创建成功", cfg.Server.Username)
		return nil
	}

	// 已存在管理员，按配置同步
	changed := false
	if admin.Username != cfg.Server.Username {
		log.Infof("管理员用户名从 '%s' 更新为 '%s'", admin.Username, cfg.Server.Username)
		admin.Username = cfg.Server.Username
		changed = true
	}
	if !utils.VerifyPassword(cfg.Server.Password, admin.Password) {
		hashed, err := utils.HashPassword(cfg.Server.Password)
		if err != nil {
			return fmt.Errorf("哈希密码失败: %v", err)
		}
		admin.Password = hashed
		changed = true
		log.Infof("管理员 '%s' 密码已更新", cfg.Server.Username)
	}

	if changed {
		if err := db.Save(&admin).Error; err != nil {
			return fmt.Errorf("更新管理员账户失败: %v", err)
		}
	}
	return nil
}
