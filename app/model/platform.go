package model

// Platform 支持的媒体来源平台（闭集）
type Platform string

const (
	PlatformYouTube   Platform = "youtube"
	PlatformInstagram Platform = "instagram"
	PlatformTwitter   Platform = "twitter"
	PlatformFacebook  Platform = "facebook"
)

// AllPlatforms 全部受支持的平台
var AllPlatforms = []Platform{
	PlatformYouTube,
	PlatformInstagram,
	PlatformTwitter,
	PlatformFacebook,
}

// cookieFiles 各平台对应的登录 Cookie 文件名（位于下载目录，可选）
var cookieFiles = map[Platform]string{
	PlatformInstagram: "insta_cookies.txt",
	PlatformTwitter:   "twitter_cookies.txt",
	PlatformFacebook:  "facebook_cookies.txt",
	PlatformYouTube:   "youtube_cookies.txt",
}

// Valid 判断平台是否在支持范围内
func (p Platform) Valid() bool {
	_, ok := cookieFiles[p]
	return ok
}

// CookieFile 返回平台对应的 Cookie 文件名，未知平台返回空串
func (p Platform) CookieFile() string {
	return cookieFiles[p]
}

// RateLimited 平台是否受每日限额与冷却时间限制（目前只有 Instagram）
func (p Platform) RateLimited() bool {
	return p == PlatformInstagram
}
