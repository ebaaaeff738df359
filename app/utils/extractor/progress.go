package extractor

import (
	"regexp"
	"strconv"
	"strings"
)

// ansiRe 终端色码
var ansiRe = regexp.MustCompile(`\x1b\[[0-9;]*[mK]`)

// StripANSI 去掉字符串中的终端色码
func StripANSI(s string) string {
	return ansiRe.ReplaceAllString(s, "")
}

// ParsePercent 把引擎输出的百分比字符串解析为 0-100 的整数。
// 先去掉终端色码与百分号，解析失败一律按 0 处理，超界值收敛到边界。
func ParsePercent(s string) int {
	s = StripANSI(s)
	s = strings.TrimSpace(strings.ReplaceAll(s, "%", ""))

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}

	p := int(f)
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
