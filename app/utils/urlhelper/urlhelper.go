package urlhelper

import (
	"net/url"
	"time"

	"media-fetch/app/model"

	"resty.dev/v3"
)

// shortLinkHosts 已知的分享短链域名，提交前需要展开成最终地址
var shortLinkHosts = map[string]bool{
	"youtu.be": true,
	"t.co":     true,
	"fb.watch": true,
}

// Normalize 对提交给提取引擎前的 URL 做平台相关整形。
// YouTube 链接（尤其是 Shorts 分享链接）携带的跟踪参数会干扰提取，
// 这里去掉除视频 ID 之外的全部查询参数；其余平台原样返回。
func Normalize(rawURL string, platform model.Platform) string {
	if platform != model.PlatformYouTube {
		return rawURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	q := u.Query()
	cleaned := url.Values{}
	if v := q.Get("v"); v != "" {
		cleaned.Set("v", v)
	}
	u.RawQuery = cleaned.Encode()
	u.Fragment = ""
	return u.String()
}

// ShouldResolve 判断地址是否是需要先展开的分享短链
func ShouldResolve(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return shortLinkHosts[u.Hostname()]
}

// ResolveRedirects 跟随重定向返回最终地址，失败时原样返回。
// 只发 HEAD 请求，不取响应体。
func ResolveRedirects(rawURL string, timeout time.Duration) string {
	client := resty.New().SetTimeout(timeout)
	defer client.Close()

	resp, err := client.R().Head(rawURL)
	if err != nil || resp.RawResponse == nil || resp.RawResponse.Request == nil {
		return rawURL
	}
	return resp.RawResponse.Request.URL.String()
}
