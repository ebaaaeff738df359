package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePercent(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  int
	}{
		{"普通百分比", "45.2%", 45},
		{"整数", "100%", 100},
		{"带空白", "  12.3% ", 12},
		{"带终端色码", "\x1b[0;94m 37.5%\x1b[0m", 37},
		{"无百分号", "80", 80},
		{"解析失败归零", "N/A", 0},
		{"空字符串", "", 0},
		{"负值收敛", "-5%", 0},
		{"超界收敛", "120%", 100},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ParsePercent(tc.input))
		})
	}
}

func TestStripANSI(t *testing.T) {
	assert.Equal(t, " 55.0%", StripANSI("\x1b[0;32m 55.0%\x1b[0m"))
	assert.Equal(t, "plain", StripANSI("plain"))
}
