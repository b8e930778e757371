// Package config 负责加载和验证 YAML 配置文件。
// 提供应用程序所需的所有配置项，包括交易所连接、做市产品、策略参数等。
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 应用配置根结构
// 包含所有子模块的配置项
type Config struct {
	// App 应用基础配置
	App AppConfig `yaml:"app"`
	// Exchange 交易所连接配置
	Exchange ExchangeConfig `yaml:"exchange"`
	// Trading 做市产品与账户配置
	Trading TradingConfig `yaml:"trading"`
	// MarketData 行情订阅配置
	MarketData MarketDataConfig `yaml:"market_data"`
	// RefData 参考数据轮询配置
	RefData RefDataConfig `yaml:"ref_data"`
	// Strategy 策略参数配置
	Strategy StrategyConfig `yaml:"strategy"`
	// Output 输出配置
	Output OutputConfig `yaml:"output"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	// Name 应用名称，用于日志标识
	Name string `yaml:"name"`
	// LogLevel 日志级别: debug, info, warn, error
	LogLevel string `yaml:"log_level"`
}

// ExchangeConfig 交易所连接配置
type ExchangeConfig struct {
	// PublicWsURL 公有 WebSocket 地址
	PublicWsURL string `yaml:"public_ws_url"`
	// PrivateWsURL 私有 WebSocket 地址
	PrivateWsURL string `yaml:"private_ws_url"`
	// RestURL REST 接口基础地址
	RestURL string `yaml:"rest_url"`
	// PingIntervalMs 心跳间隔（毫秒）
	PingIntervalMs int `yaml:"ping_interval_ms"`
	// PongTimeoutMs 心跳响应超时（毫秒）
	PongTimeoutMs int `yaml:"pong_timeout_ms"`
	// DialTimeoutMs 握手超时（毫秒）
	DialTimeoutMs int `yaml:"dial_timeout_ms"`
	// RestTimeoutMs REST 请求超时（毫秒）
	RestTimeoutMs int `yaml:"rest_timeout_ms"`
}

// TradingConfig 做市产品与账户配置
type TradingConfig struct {
	// InstID 做市产品 ID，如 BTC-USDT-SWAP
	InstID string `yaml:"inst_id"`
	// TdMode 配置的交易模式: cash, isolated, cross
	TdMode string `yaml:"td_mode"`
	// AccountMode 账户配置模式 acctLv: 1 现货, 2 单币杠杆, 3 多币杠杆, 4 组合保证金
	AccountMode int `yaml:"account_mode"`
}

// MarketDataConfig 行情订阅配置
type MarketDataConfig struct {
	// Channel 订单簿频道: books, books5, bbo-tbt, books50-l2-tbt, books-l2-tbt
	Channel string `yaml:"channel"`
	// ChecksumIntervalMs 校验和巡检间隔（毫秒）
	ChecksumIntervalMs int `yaml:"checksum_interval_ms"`
	// ResyncCoolDownMs 重新同步冷却（毫秒）
	ResyncCoolDownMs int `yaml:"resync_cool_down_ms"`
}

// RefDataConfig 参考数据轮询配置
type RefDataConfig struct {
	// PollIntervalMs 正常轮询间隔（毫秒）
	PollIntervalMs int `yaml:"poll_interval_ms"`
	// ErrBackoffMs 出错后的休眠（毫秒）
	ErrBackoffMs int `yaml:"err_backoff_ms"`
}

// StrategyConfig 策略参数配置
type StrategyConfig struct {
	// StepPct 每档相对盘口的价格间隔比例
	StepPct float64 `yaml:"step_pct"`
	// NumOfOrderEachSide 每侧基准档数
	NumOfOrderEachSide int `yaml:"num_of_order_each_side"`
	// SingleSizeAsMultipleOfLotSz 单笔数量为 lot size 的倍数
	SingleSizeAsMultipleOfLotSz int64 `yaml:"single_size_as_multiple_of_lot_sz"`
	// MaximumNetBuy 买向最大净头寸
	MaximumNetBuy float64 `yaml:"maximum_net_buy"`
	// MaximumNetSell 卖向最大净头寸
	MaximumNetSell float64 `yaml:"maximum_net_sell"`
	// CycleIntervalMs 决策周期（毫秒）
	CycleIntervalMs int `yaml:"cycle_interval_ms"`
	// RecoveryDelayMs 周期出错后的恢复等待（毫秒）
	RecoveryDelayMs int `yaml:"recovery_delay_ms"`
	// BookDelayedSec 订单簿数据过期阈值（秒）
	BookDelayedSec int `yaml:"book_delayed_sec"`
	// AccountDelayedSec 账户数据过期阈值（秒）
	AccountDelayedSec int `yaml:"account_delayed_sec"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	// Dir 输出目录
	Dir string `yaml:"dir"`
	// OpsJournalEnabled 是否输出订单操作流水
	OpsJournalEnabled bool `yaml:"ops_journal_enabled"`
	// BufferSize 异步写入缓冲区大小
	BufferSize int `yaml:"buffer_size"`
}

// Load 从文件加载配置并验证
// 参数 path: 配置文件路径
// 返回: 解析后的配置对象，若失败则返回错误
func Load(path string) (*Config, error) {
	// 读取配置文件
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	// 解析 YAML
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// 设置默认值
	cfg.setDefaults()

	// 验证配置
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	return &cfg, nil
}

// setDefaults 设置配置默认值
func (c *Config) setDefaults() {
	// 应用默认值
	if c.App.Name == "" {
		c.App.Name = "okx-market-maker"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}

	// 交易所连接默认值
	if c.Exchange.PublicWsURL == "" {
		c.Exchange.PublicWsURL = "wss://ws.okx.com:8443/ws/v5/public"
	}
	if c.Exchange.PrivateWsURL == "" {
		c.Exchange.PrivateWsURL = "wss://ws.okx.com:8443/ws/v5/private"
	}
	if c.Exchange.RestURL == "" {
		c.Exchange.RestURL = "https://www.okx.com"
	}
	if c.Exchange.PingIntervalMs == 0 {
		c.Exchange.PingIntervalMs = 25000 // 25 秒
	}
	if c.Exchange.PongTimeoutMs == 0 {
		c.Exchange.PongTimeoutMs = 10000 // 10 秒
	}
	if c.Exchange.DialTimeoutMs == 0 {
		c.Exchange.DialTimeoutMs = 10000 // 10 秒
	}
	if c.Exchange.RestTimeoutMs == 0 {
		c.Exchange.RestTimeoutMs = 10000 // 10 秒
	}

	// 交易默认值
	if c.Trading.TdMode == "" {
		c.Trading.TdMode = "cross"
	}

	// 行情默认值
	if c.MarketData.Channel == "" {
		c.MarketData.Channel = "books"
	}
	if c.MarketData.ChecksumIntervalMs == 0 {
		c.MarketData.ChecksumIntervalMs = 5000 // 5 秒
	}
	if c.MarketData.ResyncCoolDownMs == 0 {
		c.MarketData.ResyncCoolDownMs = 3000 // 3 秒
	}

	// 参考数据默认值
	if c.RefData.PollIntervalMs == 0 {
		c.RefData.PollIntervalMs = 2000 // 2 秒
	}
	if c.RefData.ErrBackoffMs == 0 {
		c.RefData.ErrBackoffMs = 10000 // 10 秒
	}

	// 策略默认值
	if c.Strategy.NumOfOrderEachSide == 0 {
		c.Strategy.NumOfOrderEachSide = 5
	}
	if c.Strategy.SingleSizeAsMultipleOfLotSz == 0 {
		c.Strategy.SingleSizeAsMultipleOfLotSz = 1
	}
	if c.Strategy.CycleIntervalMs == 0 {
		c.Strategy.CycleIntervalMs = 1000 // 1 秒
	}
	if c.Strategy.RecoveryDelayMs == 0 {
		c.Strategy.RecoveryDelayMs = 20000 // 20 秒
	}
	if c.Strategy.BookDelayedSec == 0 {
		c.Strategy.BookDelayedSec = 60
	}
	if c.Strategy.AccountDelayedSec == 0 {
		c.Strategy.AccountDelayedSec = 60
	}

	// 输出默认值
	if c.Output.Dir == "" {
		c.Output.Dir = "./output"
	}
	if c.Output.BufferSize == 0 {
		c.Output.BufferSize = 1000
	}
}

// Validate 验证配置合法性
// 检查所有必填项和数值范围
// 返回: 若配置无效则返回描述性错误
func (c *Config) Validate() error {
	var errs []string

	// 验证交易配置
	if c.Trading.InstID == "" {
		errs = append(errs, "trading.inst_id: 做市产品不能为空")
	}
	validTdModes := map[string]bool{"cash": true, "isolated": true, "cross": true}
	if !validTdModes[c.Trading.TdMode] {
		errs = append(errs, fmt.Sprintf("trading.td_mode: 无效的交易模式 '%s'，有效值: cash, isolated, cross", c.Trading.TdMode))
	}
	if c.Trading.AccountMode < 1 || c.Trading.AccountMode > 4 {
		errs = append(errs, fmt.Sprintf("trading.account_mode: 无效的账户模式 %d，有效值: 1-4", c.Trading.AccountMode))
	}

	// 验证行情配置
	validChannels := map[string]bool{
		"books": true, "books5": true, "bbo-tbt": true,
		"books50-l2-tbt": true, "books-l2-tbt": true,
	}
	if !validChannels[c.MarketData.Channel] {
		errs = append(errs, fmt.Sprintf("market_data.channel: 无效的订单簿频道 '%s'", c.MarketData.Channel))
	}

	// 验证策略参数
	if c.Strategy.StepPct <= 0 {
		errs = append(errs, "strategy.step_pct: 价格间隔比例必须为正数")
	}
	if c.Strategy.NumOfOrderEachSide <= 0 {
		errs = append(errs, "strategy.num_of_order_each_side: 每侧档数必须为正数")
	}
	if c.Strategy.SingleSizeAsMultipleOfLotSz <= 0 {
		errs = append(errs, "strategy.single_size_as_multiple_of_lot_sz: 单笔数量倍数必须为正数")
	}
	if c.Strategy.MaximumNetBuy <= 0 {
		errs = append(errs, "strategy.maximum_net_buy: 买向净头寸上限必须为正数")
	}
	if c.Strategy.MaximumNetSell <= 0 {
		errs = append(errs, "strategy.maximum_net_sell: 卖向净头寸上限必须为正数")
	}

	// 验证日志级别
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.App.LogLevel)] {
		errs = append(errs, fmt.Sprintf("app.log_level: 无效的日志级别 '%s'，有效值: debug, info, warn, error", c.App.LogLevel))
	}

	if len(errs) > 0 {
		return fmt.Errorf("配置验证错误:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// ChecksumInterval 校验和巡检间隔
func (c *MarketDataConfig) ChecksumInterval() time.Duration {
	return time.Duration(c.ChecksumIntervalMs) * time.Millisecond
}

// ResyncCoolDown 重新同步冷却时长
func (c *MarketDataConfig) ResyncCoolDown() time.Duration {
	return time.Duration(c.ResyncCoolDownMs) * time.Millisecond
}

// PollInterval 参考数据轮询间隔
func (c *RefDataConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// ErrBackoff 参考数据出错休眠时长
func (c *RefDataConfig) ErrBackoff() time.Duration {
	return time.Duration(c.ErrBackoffMs) * time.Millisecond
}
