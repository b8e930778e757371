// Package reqid 生成带操作前缀的唯一请求 ID。
// 用于客户端订单 ID 与改单请求 ID；交易所要求 ID 为不超过 32 位的字母数字串。
package reqid

import (
	"strings"

	"github.com/google/uuid"
)

// maxLen 交易所允许的 ID 最大长度
const maxLen = 32

// New 生成 "<op><随机串>" 形式的请求 ID
// 参数 op: 操作前缀，如 "order"、"amend"
func New(op string) string {
	id := op + strings.ReplaceAll(uuid.NewString(), "-", "")
	if len(id) > maxLen {
		id = id[:maxLen]
	}
	return id
}
