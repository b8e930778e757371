// Package okx 定义 OKX v5 WebSocket/REST 消息类型。
package okx

import "encoding/json"

// WebSocket 操作类型
const (
	// OpSubscribe 订阅
	OpSubscribe = "subscribe"
	// OpUnsubscribe 取消订阅
	OpUnsubscribe = "unsubscribe"
	// OpBatchOrders 批量下单（单次最多 20 笔）
	OpBatchOrders = "batch-orders"
	// OpBatchAmendOrders 批量改单（单次最多 20 笔）
	OpBatchAmendOrders = "batch-amend-orders"
	// OpBatchCancelOrders 批量撤单（单次最多 20 笔）
	OpBatchCancelOrders = "batch-cancel-orders"
	// OpLogin 私有连接登录
	OpLogin = "login"
)

// 频道名称
const (
	// ChannelBooks 全量深度频道
	ChannelBooks = "books"
	// ChannelBooks5 5 档深度频道
	ChannelBooks5 = "books5"
	// ChannelBboTbt 逐笔一档频道
	ChannelBboTbt = "bbo-tbt"
	// ChannelBooks50L2Tbt 逐笔 50 档频道
	ChannelBooks50L2Tbt = "books50-l2-tbt"
	// ChannelBooksL2Tbt 逐笔全量频道
	ChannelBooksL2Tbt = "books-l2-tbt"
	// ChannelOrders 私有订单频道
	ChannelOrders = "orders"
	// ChannelAccount 私有账户频道
	ChannelAccount = "account"
	// ChannelPositions 私有持仓频道
	ChannelPositions = "positions"
	// ChannelBalanceAndPosition 私有资产与持仓频道
	ChannelBalanceAndPosition = "balance_and_position"
)

// bookChannels 订单簿频道族
var bookChannels = map[string]bool{
	ChannelBooks:        true,
	ChannelBooks5:       true,
	ChannelBboTbt:       true,
	ChannelBooks50L2Tbt: true,
	ChannelBooksL2Tbt:   true,
}

// IsBookChannel 判断频道是否属于订单簿频道族
func IsBookChannel(channel string) bool {
	return bookChannels[channel]
}

// WsRequest WebSocket 请求帧
// ID 用于幂等重发与响应关联
type WsRequest struct {
	// ID 请求唯一标识
	ID string `json:"id,omitempty"`
	// Op 操作类型
	Op string `json:"op"`
	// Args 操作参数
	Args any `json:"args"`
}

// SubscriptionArg 订阅参数
type SubscriptionArg struct {
	// Channel 频道名称
	Channel string `json:"channel"`
	// InstType 产品类型，如 ANY、SPOT、SWAP
	InstType string `json:"instType,omitempty"`
	// InstID 产品 ID，如 BTC-USDT-SWAP
	InstID string `json:"instId,omitempty"`
}

// Key 返回订阅参数的唯一键，用于重连后的幂等重订阅
func (a SubscriptionArg) Key() string {
	return a.Channel + "@" + a.InstType + "@" + a.InstID
}

// envelope 入站消息信封，仅用于路由
type envelope struct {
	// Event 事件类型: subscribe, unsubscribe, error
	Event string `json:"event"`
	// Arg 所属频道参数
	Arg *SubscriptionArg `json:"arg"`
	// ID 请求标识（操作响应）
	ID string `json:"id"`
	// Op 操作类型（操作响应）
	Op string `json:"op"`
	// Code 错误码
	Code string `json:"code"`
	// Msg 错误消息
	Msg string `json:"msg"`
}

// BooksMsg 订单簿频道消息
type BooksMsg struct {
	// Arg 订阅参数
	Arg SubscriptionArg `json:"arg"`
	// Action 动作类型: snapshot, update；缺省按 snapshot 处理
	Action string `json:"action"`
	// Data 深度数据列表
	Data []BooksData `json:"data"`
}

// BooksData 单条深度数据
type BooksData struct {
	// Asks 卖盘档位: [[价格, 数量, 废弃, 订单数], ...]
	Asks [][]string `json:"asks"`
	// Bids 买盘档位: [[价格, 数量, 废弃, 订单数], ...]
	Bids [][]string `json:"bids"`
	// Ts 交易所时间戳（毫秒字符串）
	Ts string `json:"ts"`
	// Checksum 交易所校验和（32 位有符号）
	Checksum int32 `json:"checksum"`
	// SeqID 序列号
	SeqID int64 `json:"seqId"`
}

// OrdersMsg 私有订单频道消息
type OrdersMsg struct {
	// Arg 订阅参数
	Arg SubscriptionArg `json:"arg"`
	// Data 订单推送列表
	Data []OrderData `json:"data"`
}

// OrderData 单条订单推送
// 数值字段保留交易所下发的字符串表示，由消费方解码
type OrderData struct {
	// InstType 产品类型
	InstType string `json:"instType"`
	// InstID 产品 ID
	InstID string `json:"instId"`
	// OrdID 交易所订单 ID
	OrdID string `json:"ordId"`
	// ClOrdID 客户端订单 ID
	ClOrdID string `json:"clOrdId"`
	// Px 委托价格
	Px string `json:"px"`
	// Sz 委托数量
	Sz string `json:"sz"`
	// OrdType 订单类型: limit, market 等
	OrdType string `json:"ordType"`
	// Side 方向: buy, sell
	Side string `json:"side"`
	// TdMode 交易模式: cash, cross, isolated
	TdMode string `json:"tdMode"`
	// AccFillSz 累计成交数量
	AccFillSz string `json:"accFillSz"`
	// FillPx 最新成交价格
	FillPx string `json:"fillPx"`
	// AvgPx 成交均价
	AvgPx string `json:"avgPx"`
	// State 订单状态: live, partially_filled, filled, canceled
	State string `json:"state"`
	// Ccy 保证金币种
	Ccy string `json:"ccy"`
	// UTime 更新时间（毫秒字符串）
	UTime string `json:"uTime"`
	// CTime 创建时间（毫秒字符串）
	CTime string `json:"cTime"`
}

// AccountMsg 私有账户频道消息
type AccountMsg struct {
	// Arg 订阅参数
	Arg SubscriptionArg `json:"arg"`
	// Data 账户快照列表
	Data []AccountData `json:"data"`
}

// AccountData 账户快照
type AccountData struct {
	// UTime 更新时间（毫秒字符串）
	UTime string `json:"uTime"`
	// TotalEq 美元层面权益
	TotalEq string `json:"totalEq"`
	// AdjEq 调整后权益
	AdjEq string `json:"adjEq"`
	// Details 各币种明细
	Details []AccountDetail `json:"details"`
}

// AccountDetail 单币种账户明细
type AccountDetail struct {
	// Ccy 币种
	Ccy string `json:"ccy"`
	// Eq 币种权益
	Eq string `json:"eq"`
	// CashBal 现金余额
	CashBal string `json:"cashBal"`
	// AvailBal 可用余额
	AvailBal string `json:"availBal"`
	// FrozenBal 冻结余额
	FrozenBal string `json:"frozenBal"`
	// UTime 更新时间（毫秒字符串）
	UTime string `json:"uTime"`
}

// PositionsMsg 私有持仓频道消息
type PositionsMsg struct {
	// Arg 订阅参数
	Arg SubscriptionArg `json:"arg"`
	// Data 持仓推送列表
	Data []PositionData `json:"data"`
}

// PositionData 单条持仓推送
type PositionData struct {
	// InstType 产品类型
	InstType string `json:"instType"`
	// InstID 产品 ID
	InstID string `json:"instId"`
	// MgnMode 保证金模式
	MgnMode string `json:"mgnMode"`
	// PosSide 持仓方向: long, short, net
	PosSide string `json:"posSide"`
	// Pos 持仓数量
	Pos string `json:"pos"`
	// AvgPx 开仓均价
	AvgPx string `json:"avgPx"`
	// Upl 未实现盈亏
	Upl string `json:"upl"`
	// Ccy 保证金币种
	Ccy string `json:"ccy"`
	// UTime 更新时间（毫秒字符串）
	UTime string `json:"uTime"`
}

// BalanceAndPositionMsg 私有资产与持仓频道消息
type BalanceAndPositionMsg struct {
	// Arg 订阅参数
	Arg SubscriptionArg `json:"arg"`
	// Data 资产与持仓推送列表
	Data []BalanceAndPositionData `json:"data"`
}

// BalanceAndPositionData 单条资产与持仓推送
type BalanceAndPositionData struct {
	// PTime 推送时间（毫秒字符串）
	PTime string `json:"pTime"`
	// EventType 触发事件类型: snapshot, delivered, filled 等
	EventType string `json:"eventType"`
	// BalData 余额变更
	BalData []BalanceEntry `json:"balData"`
	// PosData 持仓变更
	PosData []PositionEntry `json:"posData"`
}

// BalanceEntry 单币种余额变更
type BalanceEntry struct {
	// Ccy 币种
	Ccy string `json:"ccy"`
	// CashBal 现金余额
	CashBal string `json:"cashBal"`
	// UTime 更新时间（毫秒字符串）
	UTime string `json:"uTime"`
}

// PositionEntry 单产品持仓变更
type PositionEntry struct {
	// InstID 产品 ID
	InstID string `json:"instId"`
	// InstType 产品类型
	InstType string `json:"instType"`
	// MgnMode 保证金模式
	MgnMode string `json:"mgnMode"`
	// PosSide 持仓方向
	PosSide string `json:"posSide"`
	// Pos 持仓数量
	Pos string `json:"pos"`
	// AvgPx 开仓均价
	AvgPx string `json:"avgPx"`
	// Ccy 保证金币种
	Ccy string `json:"ccy"`
	// UTime 更新时间（毫秒字符串）
	UTime string `json:"uTime"`
}

// PlaceOrderRequest 下单请求
type PlaceOrderRequest struct {
	// InstID 产品 ID
	InstID string `json:"instId"`
	// TdMode 交易模式
	TdMode string `json:"tdMode"`
	// Side 方向: buy, sell
	Side string `json:"side"`
	// OrdType 订单类型
	OrdType string `json:"ordType"`
	// Sz 委托数量
	Sz string `json:"sz"`
	// Px 委托价格
	Px string `json:"px"`
	// ClOrdID 客户端订单 ID
	ClOrdID string `json:"clOrdId"`
	// PosSide 持仓方向
	PosSide string `json:"posSide,omitempty"`
	// Ccy 保证金币种（仅杠杆单需要）
	Ccy string `json:"ccy,omitempty"`
	// TgtCcy 市价单数量单位
	TgtCcy string `json:"tgtCcy,omitempty"`
}

// AmendOrderRequest 改单请求
// 只携带实际变化的字段
type AmendOrderRequest struct {
	// InstID 产品 ID
	InstID string `json:"instId"`
	// ClOrdID 客户端订单 ID
	ClOrdID string `json:"clOrdId"`
	// ReqID 改单请求 ID，用于关联推送确认
	ReqID string `json:"reqId"`
	// NewPx 新价格
	NewPx string `json:"newPx,omitempty"`
	// NewSz 新数量（绝对值 = 已成交 + 期望剩余）
	NewSz string `json:"newSz,omitempty"`
}

// CancelOrderRequest 撤单请求
type CancelOrderRequest struct {
	// InstID 产品 ID
	InstID string `json:"instId"`
	// ClOrdID 客户端订单 ID
	ClOrdID string `json:"clOrdId"`
}

// OpResponse 订单操作响应帧
type OpResponse struct {
	// ID 请求标识
	ID string `json:"id"`
	// Op 操作类型
	Op string `json:"op"`
	// Code 整体错误码，"0" 为全部成功
	Code string `json:"code"`
	// Msg 整体错误消息
	Msg string `json:"msg"`
	// Data 单笔结果列表
	Data []OpResult `json:"data"`
}

// OpResult 单笔订单操作结果
type OpResult struct {
	// ClOrdID 客户端订单 ID
	ClOrdID string `json:"clOrdId"`
	// OrdID 交易所订单 ID
	OrdID string `json:"ordId"`
	// ReqID 改单请求 ID
	ReqID string `json:"reqId"`
	// SCode 单笔错误码，"0" 为成功
	SCode string `json:"sCode"`
	// SMsg 单笔错误消息
	SMsg string `json:"sMsg"`
}

// restEnvelope REST 响应信封
type restEnvelope struct {
	// Code 错误码，"0" 为成功
	Code string `json:"code"`
	// Msg 错误消息
	Msg string `json:"msg"`
	// Data 数据载荷
	Data json.RawMessage `json:"data"`
}

// TickerData 单产品行情
type TickerData struct {
	// InstType 产品类型
	InstType string `json:"instType"`
	// InstID 产品 ID
	InstID string `json:"instId"`
	// Last 最新成交价
	Last string `json:"last"`
	// LastSz 最新成交量
	LastSz string `json:"lastSz"`
	// AskPx 卖一价
	AskPx string `json:"askPx"`
	// AskSz 卖一量
	AskSz string `json:"askSz"`
	// BidPx 买一价
	BidPx string `json:"bidPx"`
	// BidSz 买一量
	BidSz string `json:"bidSz"`
	// Open24h 24 小时开盘价
	Open24h string `json:"open24h"`
	// High24h 24 小时最高价
	High24h string `json:"high24h"`
	// Low24h 24 小时最低价
	Low24h string `json:"low24h"`
	// VolCcy24h 24 小时成交额（计价货币）
	VolCcy24h string `json:"volCcy24h"`
	// Vol24h 24 小时成交量（交易货币）
	Vol24h string `json:"vol24h"`
	// Ts 数据产生时间（毫秒字符串）
	Ts string `json:"ts"`
}

// MarkPxData 单产品标记价格
type MarkPxData struct {
	// InstType 产品类型
	InstType string `json:"instType"`
	// InstID 产品 ID
	InstID string `json:"instId"`
	// MarkPx 标记价格
	MarkPx string `json:"markPx"`
	// Ts 数据产生时间（毫秒字符串）
	Ts string `json:"ts"`
}

// InstrumentData 产品静态数据
type InstrumentData struct {
	// InstType 产品类型
	InstType string `json:"instType"`
	// InstID 产品 ID
	InstID string `json:"instId"`
	// Uly 标的指数
	Uly string `json:"uly"`
	// InstFamily 交易品种
	InstFamily string `json:"instFamily"`
	// BaseCcy 交易货币（币币）
	BaseCcy string `json:"baseCcy"`
	// QuoteCcy 计价货币（币币）
	QuoteCcy string `json:"quoteCcy"`
	// SettleCcy 结算币种（衍生品）
	SettleCcy string `json:"settleCcy"`
	// CtVal 合约面值
	CtVal string `json:"ctVal"`
	// CtMult 合约乘数
	CtMult string `json:"ctMult"`
	// CtValCcy 面值计价币种
	CtValCcy string `json:"ctValCcy"`
	// TickSz 最小价格增量
	TickSz string `json:"tickSz"`
	// LotSz 最小数量增量
	LotSz string `json:"lotSz"`
	// MinSz 最小下单数量
	MinSz string `json:"minSz"`
	// CtType 合约类型: linear, inverse
	CtType string `json:"ctType"`
	// State 产品状态: live, suspend 等
	State string `json:"state"`
}
