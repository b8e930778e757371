// Package okx 实现 OKX v5 WebSocket 客户端。
// 公有地址: wss://ws.okx.com:8443/ws/v5/public
// 私有地址: wss://ws.okx.com:8443/ws/v5/private
// 心跳机制: 文本 ping/pong，25秒间隔，10秒超时
package okx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"okx-market-maker/internal/util/backoff"
	"okx-market-maker/internal/util/reqid"
)

// opBatchLimit 单次订单操作请求的最大笔数（交易所限制）
const opBatchLimit = 20

// Authenticator 私有连接的登录钩子
// 报文签名属于传输层职责，由调用方注入实现；公有连接传 nil
type Authenticator interface {
	// Authenticate 在连接建立后、订阅之前完成登录
	Authenticate(ctx context.Context, conn *websocket.Conn) error
}

// Options WebSocket 客户端配置
type Options struct {
	// URL 连接地址
	URL string
	// DialTimeout 握手超时
	DialTimeout time.Duration
	// PingInterval 心跳间隔
	PingInterval time.Duration
	// PongTimeout 心跳响应超时
	PongTimeout time.Duration
	// BufferSize 各消息通道的容量
	BufferSize int
}

// setDefaults 填充缺省值
func (o *Options) setDefaults() {
	if o.DialTimeout == 0 {
		o.DialTimeout = 10 * time.Second
	}
	if o.PingInterval == 0 {
		o.PingInterval = 25 * time.Second
	}
	if o.PongTimeout == 0 {
		o.PongTimeout = 10 * time.Second
	}
	if o.BufferSize == 0 {
		o.BufferSize = 1000
	}
}

// Client OKX WebSocket 客户端
// 解码后的消息按频道类型投递到对应通道；订阅参数在断线重连后幂等重发
type Client struct {
	// opts 连接配置
	opts Options
	// auth 私有连接登录钩子，公有连接为 nil
	auth Authenticator
	// logger 日志记录器
	logger *zap.Logger

	// conn WebSocket 连接
	conn *websocket.Conn
	// connMu 连接锁（gorilla/websocket 不允许并发多写者）
	connMu sync.Mutex

	// subs 当前生效的订阅参数，重连后全量重发
	subs map[string]SubscriptionArg
	// subsMu 订阅表锁
	subsMu sync.Mutex

	// booksCh 订单簿消息通道
	booksCh chan *BooksMsg
	// ordersCh 订单推送通道
	ordersCh chan *OrdersMsg
	// accountCh 账户推送通道
	accountCh chan *AccountMsg
	// positionsCh 持仓推送通道
	positionsCh chan *PositionsMsg
	// balPosCh 资产与持仓推送通道
	balPosCh chan *BalanceAndPositionMsg

	// backoff 重连退避
	backoff *backoff.Backoff
	// closed 是否已关闭
	closed int32

	// lastMsgTime 最后消息时间（纳秒）
	lastMsgTime int64
	// lastPingSentNs 上次发送 ping 的时间（纳秒）
	lastPingSentNs int64
	// lastPongRecvNs 上次收到 pong 的时间（纳秒）
	lastPongRecvNs int64

	// parseErrSampleCount 解析错误计数（用于采样日志）
	parseErrSampleCount uint64
	// lastParseErrLogNs 上次解析错误日志时间（纳秒）
	lastParseErrLogNs int64
}

// NewClient 创建 WebSocket 客户端
// 参数 opts: 连接配置
// 参数 auth: 私有连接登录钩子，公有连接传 nil
// 参数 logger: 日志记录器
func NewClient(opts Options, auth Authenticator, logger *zap.Logger) *Client {
	opts.setDefaults()
	return &Client{
		opts:        opts,
		auth:        auth,
		logger:      logger.Named("okx"),
		subs:        make(map[string]SubscriptionArg),
		booksCh:     make(chan *BooksMsg, opts.BufferSize),
		ordersCh:    make(chan *OrdersMsg, opts.BufferSize),
		accountCh:   make(chan *AccountMsg, opts.BufferSize),
		positionsCh: make(chan *PositionsMsg, opts.BufferSize),
		balPosCh:    make(chan *BalanceAndPositionMsg, opts.BufferSize),
		backoff:     backoff.NewDefault(),
	}
}

// Connect 建立 WebSocket 连接并完成登录
func (c *Client) Connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	header := http.Header{}
	header.Set("User-Agent", "okx-market-maker/1.0")

	dialer := websocket.Dialer{
		HandshakeTimeout: c.opts.DialTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, c.opts.URL, header)
	if err != nil {
		return fmt.Errorf("连接 OKX WebSocket 失败: %w", err)
	}

	if c.auth != nil {
		if err := c.auth.Authenticate(ctx, conn); err != nil {
			conn.Close()
			return fmt.Errorf("OKX WebSocket 登录失败: %w", err)
		}
	}

	c.conn = conn
	c.backoff.Reset()
	c.logger.Info("OKX WebSocket 连接成功", zap.String("url", c.opts.URL))

	return nil
}

// Subscribe 订阅频道并记录参数
// 记录的参数会在断线重连后自动重发
func (c *Client) Subscribe(args ...SubscriptionArg) error {
	if len(args) == 0 {
		return nil
	}

	c.subsMu.Lock()
	for _, arg := range args {
		c.subs[arg.Key()] = arg
	}
	c.subsMu.Unlock()

	return c.writeRequest(WsRequest{ID: reqid.New("sub"), Op: OpSubscribe, Args: args})
}

// Unsubscribe 取消订阅并移除记录
func (c *Client) Unsubscribe(args ...SubscriptionArg) error {
	if len(args) == 0 {
		return nil
	}

	c.subsMu.Lock()
	for _, arg := range args {
		delete(c.subs, arg.Key())
	}
	c.subsMu.Unlock()

	return c.writeRequest(WsRequest{ID: reqid.New("unsub"), Op: OpUnsubscribe, Args: args})
}

// PlaceOrders 批量下单，按交易所限制分片
func (c *Client) PlaceOrders(reqs []PlaceOrderRequest) error {
	for start := 0; start < len(reqs); start += opBatchLimit {
		end := start + opBatchLimit
		if end > len(reqs) {
			end = len(reqs)
		}
		if err := c.writeRequest(WsRequest{
			ID:   reqid.New("order"),
			Op:   OpBatchOrders,
			Args: reqs[start:end],
		}); err != nil {
			return fmt.Errorf("发送下单请求失败: %w", err)
		}
	}
	return nil
}

// AmendOrders 批量改单，按交易所限制分片
func (c *Client) AmendOrders(reqs []AmendOrderRequest) error {
	for start := 0; start < len(reqs); start += opBatchLimit {
		end := start + opBatchLimit
		if end > len(reqs) {
			end = len(reqs)
		}
		if err := c.writeRequest(WsRequest{
			ID:   reqid.New("amend"),
			Op:   OpBatchAmendOrders,
			Args: reqs[start:end],
		}); err != nil {
			return fmt.Errorf("发送改单请求失败: %w", err)
		}
	}
	return nil
}

// CancelOrders 批量撤单，按交易所限制分片
func (c *Client) CancelOrders(reqs []CancelOrderRequest) error {
	for start := 0; start < len(reqs); start += opBatchLimit {
		end := start + opBatchLimit
		if end > len(reqs) {
			end = len(reqs)
		}
		if err := c.writeRequest(WsRequest{
			ID:   reqid.New("cancel"),
			Op:   OpBatchCancelOrders,
			Args: reqs[start:end],
		}); err != nil {
			return fmt.Errorf("发送撤单请求失败: %w", err)
		}
	}
	return nil
}

// writeRequest 序列化并发送请求帧
func (c *Client) writeRequest(req WsRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("序列化请求失败: %w", err)
	}

	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("WebSocket 未连接")
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("发送请求失败: %w", err)
	}
	return nil
}

// Run 启动客户端主循环
// 包含读取循环和心跳循环
func (c *Client) Run(ctx context.Context) {
	go c.heartbeatLoop(ctx)
	c.readLoop(ctx)
}

// readLoop 读取循环
// 持续读取消息，按频道解码并投递
func (c *Client) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if atomic.LoadInt32(&c.closed) == 1 {
			return
		}

		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			c.reconnect(ctx)
			continue
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if atomic.LoadInt32(&c.closed) == 1 {
				return
			}
			c.logger.Warn("读取 OKX 消息失败", zap.Error(err))
			c.reconnect(ctx)
			continue
		}

		nowNs := time.Now().UnixNano()
		atomic.StoreInt64(&c.lastMsgTime, nowNs)

		if IsPong(data) {
			atomic.StoreInt64(&c.lastPongRecvNs, nowNs)
			continue
		}

		c.dispatch(data)
	}
}

// dispatch 解码并投递一条入站消息
func (c *Client) dispatch(data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.maybeLogParseError(err, data)
		return
	}

	// 订阅/取消订阅事件
	if env.Event != "" {
		if env.Event == "error" {
			c.logger.Warn("OKX 事件错误",
				zap.String("code", env.Code), zap.String("msg", env.Msg))
			return
		}
		c.logger.Debug("收到 OKX 事件", zap.String("event", env.Event))
		return
	}

	// 订单操作响应
	if env.Op != "" {
		c.handleOpResponse(data)
		return
	}

	if env.Arg == nil || env.Arg.Channel == "" {
		return
	}

	switch {
	case IsBookChannel(env.Arg.Channel):
		var msg BooksMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			c.maybeLogParseError(err, data)
			return
		}
		select {
		case c.booksCh <- &msg:
		default:
			c.logger.Warn("OKX booksCh 已满，丢弃消息")
		}

	case env.Arg.Channel == ChannelOrders:
		var msg OrdersMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			c.maybeLogParseError(err, data)
			return
		}
		select {
		case c.ordersCh <- &msg:
		default:
			c.logger.Warn("OKX ordersCh 已满，丢弃消息")
		}

	case env.Arg.Channel == ChannelAccount:
		var msg AccountMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			c.maybeLogParseError(err, data)
			return
		}
		select {
		case c.accountCh <- &msg:
		default:
			c.logger.Warn("OKX accountCh 已满，丢弃消息")
		}

	case env.Arg.Channel == ChannelPositions:
		var msg PositionsMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			c.maybeLogParseError(err, data)
			return
		}
		select {
		case c.positionsCh <- &msg:
		default:
			c.logger.Warn("OKX positionsCh 已满，丢弃消息")
		}

	case env.Arg.Channel == ChannelBalanceAndPosition:
		var msg BalanceAndPositionMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			c.maybeLogParseError(err, data)
			return
		}
		select {
		case c.balPosCh <- &msg:
		default:
			c.logger.Warn("OKX balPosCh 已满，丢弃消息")
		}
	}
}

// handleOpResponse 处理订单操作响应
// 逐笔检查 sCode，失败的操作记录告警；订单的权威状态以订单频道推送为准
func (c *Client) handleOpResponse(data []byte) {
	var resp OpResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		c.maybeLogParseError(err, data)
		return
	}

	for _, result := range resp.Data {
		if result.SCode == "0" || result.SCode == "" {
			continue
		}
		c.logger.Warn("OKX 订单操作失败",
			zap.String("op", resp.Op),
			zap.String("clOrdId", result.ClOrdID),
			zap.String("sCode", result.SCode),
			zap.String("sMsg", result.SMsg))
	}
}

// heartbeatLoop 心跳循环
// 定期发送文本 ping，超时未收到 pong 则断开触发重连
func (c *Client) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if atomic.LoadInt32(&c.closed) == 1 {
				return
			}

			c.connMu.Lock()
			conn := c.conn
			if conn == nil {
				c.connMu.Unlock()
				continue
			}

			pingTime := time.Now().UnixNano()
			if err := conn.WriteMessage(websocket.TextMessage, []byte("ping")); err != nil {
				c.connMu.Unlock()
				c.logger.Warn("发送 OKX ping 失败", zap.Error(err))
				continue
			}
			atomic.StoreInt64(&c.lastPingSentNs, pingTime)
			c.connMu.Unlock()

			lastPing := atomic.LoadInt64(&c.lastPingSentNs)
			lastPong := atomic.LoadInt64(&c.lastPongRecvNs)
			if lastPing > 0 && lastPong < lastPing {
				if time.Now().UnixNano()-lastPing > c.opts.PongTimeout.Nanoseconds() {
					c.logger.Warn("OKX 心跳超时，触发重连")
					c.closeConn()
				}
			}
		}
	}
}

// reconnect 重连并重发全部订阅
func (c *Client) reconnect(ctx context.Context) {
	c.closeConn()

	delay := c.backoff.Next()
	c.logger.Info("OKX 准备重连", zap.Duration("delay", delay))

	select {
	case <-ctx.Done():
		return
	case <-time.After(delay):
	}

	if err := c.Connect(ctx); err != nil {
		c.logger.Error("OKX 重连失败", zap.Error(err))
		return
	}

	// 重发记录的订阅参数
	c.subsMu.Lock()
	args := make([]SubscriptionArg, 0, len(c.subs))
	for _, arg := range c.subs {
		args = append(args, arg)
	}
	c.subsMu.Unlock()

	if len(args) == 0 {
		return
	}
	if err := c.writeRequest(WsRequest{ID: reqid.New("sub"), Op: OpSubscribe, Args: args}); err != nil {
		c.logger.Error("OKX 重新订阅失败", zap.Error(err))
	}
}

// closeConn 关闭底层连接
func (c *Client) closeConn() {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// Close 关闭客户端
func (c *Client) Close() error {
	atomic.StoreInt32(&c.closed, 1)
	c.closeConn()
	close(c.booksCh)
	close(c.ordersCh)
	close(c.accountCh)
	close(c.positionsCh)
	close(c.balPosCh)
	c.logger.Info("OKX 客户端已关闭")
	return nil
}

// BooksCh 获取订单簿消息通道
func (c *Client) BooksCh() <-chan *BooksMsg {
	return c.booksCh
}

// OrdersCh 获取订单推送通道
func (c *Client) OrdersCh() <-chan *OrdersMsg {
	return c.ordersCh
}

// AccountCh 获取账户推送通道
func (c *Client) AccountCh() <-chan *AccountMsg {
	return c.accountCh
}

// PositionsCh 获取持仓推送通道
func (c *Client) PositionsCh() <-chan *PositionsMsg {
	return c.positionsCh
}

// BalanceAndPositionCh 获取资产与持仓推送通道
func (c *Client) BalanceAndPositionCh() <-chan *BalanceAndPositionMsg {
	return c.balPosCh
}

// LastMessageAge 返回距最后一条消息的时长
func (c *Client) LastMessageAge() time.Duration {
	last := atomic.LoadInt64(&c.lastMsgTime)
	if last == 0 {
		return 0
	}
	return time.Duration(time.Now().UnixNano() - last)
}

// maybeLogParseError 采样记录解析错误原始消息，避免刷盘
// 采样策略：每 100 次错误记录 1 条，且同一类日志至少间隔 1 分钟。
func (c *Client) maybeLogParseError(err error, data []byte) {
	count := atomic.AddUint64(&c.parseErrSampleCount, 1)
	if count%100 != 1 {
		return
	}

	nowNs := time.Now().UnixNano()
	last := atomic.LoadInt64(&c.lastParseErrLogNs)
	if last > 0 && nowNs-last < int64(time.Minute) {
		return
	}
	atomic.StoreInt64(&c.lastParseErrLogNs, nowNs)

	sample := data
	if len(sample) > 200 {
		sample = sample[:200]
	}
	c.logger.Warn("解析 OKX 消息失败（采样）", zap.Error(err), zap.ByteString("data", sample))
}
