// Package marketdata 管理订单簿副本的订阅生命周期与一致性校验。
// 消息分发与校验和巡检作为两个独立活动并发运行，仅通过副本的并发安全契约同步。
package marketdata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"okx-market-maker/internal/book"
	"okx-market-maker/internal/okx"
)

// State 订阅状态机状态
type State int32

// 状态机枚举: Disconnected → Subscribing → Streaming → Resyncing → Streaming
const (
	StateDisconnected State = iota
	StateSubscribing
	StateStreaming
	StateResyncing
)

// String 状态名称
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateSubscribing:
		return "subscribing"
	case StateStreaming:
		return "streaming"
	case StateResyncing:
		return "resyncing"
	default:
		return "unknown"
	}
}

// BookFeed 订单簿订阅接口，由 WebSocket 客户端实现
type BookFeed interface {
	// Subscribe 订阅频道
	Subscribe(args ...okx.SubscriptionArg) error
	// Unsubscribe 取消订阅
	Unsubscribe(args ...okx.SubscriptionArg) error
}

// Options 监督器配置
type Options struct {
	// InstID 产品 ID
	InstID string
	// Channel 订单簿频道名称
	Channel string
	// ChecksumInterval 校验和巡检间隔
	ChecksumInterval time.Duration
	// ResyncCoolDown 重新同步前的冷却时长
	ResyncCoolDown time.Duration
}

// setDefaults 填充缺省值
func (o *Options) setDefaults() {
	if o.Channel == "" {
		o.Channel = okx.ChannelBooks
	}
	if o.ChecksumInterval == 0 {
		o.ChecksumInterval = 5 * time.Second
	}
	if o.ResyncCoolDown == 0 {
		o.ResyncCoolDown = 3 * time.Second
	}
}

// Supervisor 订单簿副本监督器
// 持有当前副本；校验失败时丢弃并重建副本，下一条消息必须是全新快照
type Supervisor struct {
	// opts 配置
	opts Options
	// feed 订阅接口
	feed BookFeed
	// logger 日志记录器
	logger *zap.Logger

	// mu 保护副本指针与状态
	mu sync.RWMutex
	// replica 当前副本
	replica *book.Replica
	// state 状态机状态
	state State
	// awaitingSnapshot 重建后是否在等待快照（期间丢弃增量）
	awaitingSnapshot bool
}

// NewSupervisor 创建监督器
func NewSupervisor(opts Options, feed BookFeed, logger *zap.Logger) *Supervisor {
	opts.setDefaults()
	return &Supervisor{
		opts:             opts,
		feed:             feed,
		logger:           logger.Named("marketdata").With(zap.String("instId", opts.InstID)),
		replica:          book.NewReplica(opts.InstID),
		state:            StateDisconnected,
		awaitingSnapshot: true,
	}
}

// Book 获取当前副本
// 重新同步会整体替换副本，读取方每次取用最新指针
func (s *Supervisor) Book() *book.Replica {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.replica
}

// State 当前状态机状态
func (s *Supervisor) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// subscriptionArg 本监督器的订阅参数
func (s *Supervisor) subscriptionArg() okx.SubscriptionArg {
	return okx.SubscriptionArg{Channel: s.opts.Channel, InstID: s.opts.InstID}
}

// Start 发起订阅，Disconnected → Subscribing
func (s *Supervisor) Start() error {
	s.mu.Lock()
	s.state = StateSubscribing
	s.awaitingSnapshot = true
	s.mu.Unlock()

	if err := s.feed.Subscribe(s.subscriptionArg()); err != nil {
		s.mu.Lock()
		s.state = StateDisconnected
		s.mu.Unlock()
		return fmt.Errorf("订阅订单簿失败: %w", err)
	}
	return nil
}

// Stop 取消订阅
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	s.state = StateDisconnected
	s.mu.Unlock()
	return s.feed.Unsubscribe(s.subscriptionArg())
}

// Run 启动分发与校验两个活动，阻塞至 ctx 取消
func (s *Supervisor) Run(ctx context.Context, booksCh <-chan *okx.BooksMsg) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		s.dispatchLoop(ctx, booksCh)
	}()
	go func() {
		defer wg.Done()
		s.checksumLoop(ctx)
	}()

	wg.Wait()
}

// dispatchLoop 消息分发活动
func (s *Supervisor) dispatchLoop(ctx context.Context, booksCh <-chan *okx.BooksMsg) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-booksCh:
			if !ok {
				return
			}
			if msg.Arg.InstID != s.opts.InstID {
				continue
			}
			s.applyMsg(msg)
		}
	}
}

// applyMsg 解码并应用一条订单簿消息
// 等待快照期间丢弃增量；快照到达后进入 Streaming
func (s *Supervisor) applyMsg(msg *okx.BooksMsg) {
	snapshot := msg.IsSnapshot()

	s.mu.Lock()
	if s.awaitingSnapshot && !snapshot {
		s.mu.Unlock()
		return
	}
	replica := s.replica
	if snapshot {
		s.awaitingSnapshot = false
		s.state = StateStreaming
	}
	s.mu.Unlock()

	for _, data := range msg.Data {
		batch, err := data.Batch(snapshot)
		if err != nil {
			s.logger.Warn("解码订单簿消息失败", zap.Error(err))
			continue
		}
		replica.Apply(batch)
	}
}

// checksumLoop 校验和巡检活动
func (s *Supervisor) checksumLoop(ctx context.Context) {
	ticker := time.NewTicker(s.opts.ChecksumInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.State() != StateStreaming {
				continue
			}
			if s.Book().VerifyChecksum() {
				continue
			}
			s.logger.Warn("订单簿校验和不一致，触发重新同步")
			s.resync(ctx)
		}
	}
}

// resync 重新同步
// 顺序：取消订阅 → 冷却 → 丢弃并重建副本 → 重新订阅
func (s *Supervisor) resync(ctx context.Context) {
	s.mu.Lock()
	s.state = StateResyncing
	s.mu.Unlock()

	if err := s.feed.Unsubscribe(s.subscriptionArg()); err != nil {
		s.logger.Error("重新同步时取消订阅失败", zap.Error(err))
	}

	select {
	case <-ctx.Done():
		return
	case <-time.After(s.opts.ResyncCoolDown):
	}

	s.mu.Lock()
	s.replica = book.NewReplica(s.opts.InstID)
	s.awaitingSnapshot = true
	s.state = StateSubscribing
	s.mu.Unlock()

	if err := s.feed.Subscribe(s.subscriptionArg()); err != nil {
		s.logger.Error("重新同步时订阅失败", zap.Error(err))
		s.mu.Lock()
		s.state = StateDisconnected
		s.mu.Unlock()
		return
	}
	s.logger.Info("订单簿重新同步完成，等待新快照")
}
