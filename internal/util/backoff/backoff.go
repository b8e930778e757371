// Package backoff 实现指数退避。
// 用于交易所 WebSocket 断线重连的延迟计算，避免频繁重连触发交易所限频。
package backoff

import (
	"math/rand"
	"time"
)

// Backoff 指数退避计算器
// 每次 Next() 返回下一次重试的等待时间，按指数增长直到最大值
type Backoff struct {
	// base 基础等待时间
	base time.Duration
	// max 最大等待时间
	max time.Duration
	// jitter 抖动比例（0-1）
	jitter float64
	// attempt 当前重试次数
	attempt int
}

// New 创建退避计算器
// 参数 base: 基础等待时间
// 参数 max: 最大等待时间
// 参数 jitter: 抖动比例，0.2 表示 ±20%
func New(base, max time.Duration, jitter float64) *Backoff {
	return &Backoff{base: base, max: max, jitter: jitter}
}

// NewDefault 创建默认退避计算器
// 基础间隔 1s，最大间隔 30s，抖动 ±20%
func NewDefault() *Backoff {
	return New(time.Second, 30*time.Second, 0.2)
}

// Next 返回下次重试的等待时间
// 计算公式: base * 2^attempt，限制在 max 内，再应用抖动
func (b *Backoff) Next() time.Duration {
	delay := b.base * time.Duration(int64(1)<<b.attempt)
	if delay > b.max || delay <= 0 {
		delay = b.max
	}

	if b.jitter > 0 {
		factor := 1.0 + (rand.Float64()*2-1)*b.jitter
		delay = time.Duration(float64(delay) * factor)
	}

	b.attempt++
	return delay
}

// Reset 重置重试次数
// 连接成功后调用
func (b *Backoff) Reset() {
	b.attempt = 0
}

// Attempt 返回当前重试次数
func (b *Backoff) Attempt() int {
	return b.attempt
}
