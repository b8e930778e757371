// Package backoff 退避算法测试
package backoff

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestBackoff_ExponentialGrowth 测试退避时间指数增长
func TestBackoff_ExponentialGrowth(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("退避时间单调不减且不超过最大值", prop.ForAll(
		func(baseMs int, maxMs int) bool {
			if maxMs <= baseMs {
				return true
			}

			base := time.Duration(baseMs) * time.Millisecond
			max := time.Duration(maxMs) * time.Millisecond
			b := New(base, max, 0) // 无抖动，便于验证

			prev := time.Duration(0)
			for i := 0; i < 10; i++ {
				delay := b.Next()
				if delay < prev && delay != max {
					return false
				}
				if delay > max {
					return false
				}
				prev = delay
			}
			return true
		},
		gen.IntRange(100, 2000),
		gen.IntRange(5000, 60000),
	))

	properties.TestingRun(t)
}

// TestBackoff_MaxBound 测试最大值边界（考虑抖动）
func TestBackoff_MaxBound(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("延迟不超过最大值上限", prop.ForAll(
		func(baseMs int, maxMs int, jitterPercent int) bool {
			base := time.Duration(baseMs) * time.Millisecond
			max := time.Duration(maxMs) * time.Millisecond
			jitter := float64(jitterPercent) / 100.0
			b := New(base, max, jitter)

			maxPossible := float64(max) * (1 + jitter)
			for i := 0; i < 20; i++ {
				if float64(b.Next()) > maxPossible {
					return false
				}
			}
			return true
		},
		gen.IntRange(100, 2000),
		gen.IntRange(1000, 60000),
		gen.IntRange(0, 30),
	))

	properties.TestingRun(t)
}

// TestBackoff_Reset 测试重置后从基础值重新开始
func TestBackoff_Reset(t *testing.T) {
	b := New(time.Second, 30*time.Second, 0)
	for i := 0; i < 5; i++ {
		b.Next()
	}
	b.Reset()
	if b.Attempt() != 0 {
		t.Fatalf("Attempt = %d, want 0", b.Attempt())
	}
	if got := b.Next(); got != time.Second {
		t.Fatalf("重置后延迟 = %v, want 1s", got)
	}
}

// TestBackoff_SpecificValues 验证无抖动时的指数序列
func TestBackoff_SpecificValues(t *testing.T) {
	b := New(time.Second, 30*time.Second, 0)

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second}, // 2^5 = 32s，封顶 30s
		{6, 30 * time.Second},
	}

	for _, tt := range tests {
		b.Reset()
		for i := 0; i < tt.attempt; i++ {
			b.Next()
		}
		if got := b.Next(); got != tt.expected {
			t.Errorf("attempt %d: got %v, want %v", tt.attempt, got, tt.expected)
		}
	}
}

// TestBackoff_JitterRange 测试抖动范围
func TestBackoff_JitterRange(t *testing.T) {
	for i := 0; i < 100; i++ {
		b := New(time.Second, 30*time.Second, 0.2)
		delay := b.Next()
		if float64(delay) < float64(time.Second)*0.8 || float64(delay) > float64(time.Second)*1.2 {
			t.Fatalf("delay = %v, 期望范围 [0.8s, 1.2s]", delay)
		}
	}
}
