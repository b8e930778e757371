// Package main 是 OKX 做市程序的入口点。
// 程序订阅公有订单簿与私有订单/账户/持仓频道，
// 按库存偏斜的阶梯报价在配置产品上持续做市。
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"okx-market-maker/internal/account"
	"okx-market-maker/internal/config"
	"okx-market-maker/internal/instrument"
	"okx-market-maker/internal/marketdata"
	"okx-market-maker/internal/okx"
	"okx-market-maker/internal/orders"
	"okx-market-maker/internal/output/jsonl"
	"okx-market-maker/internal/refdata"
	"okx-market-maker/internal/strategy"

	"github.com/shopspring/decimal"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "配置文件路径")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.App.LogLevel)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 捕获 SIGINT/SIGTERM，触发优雅退出
	sigCh := make(chan os.Signal, 2)
	ossignal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("收到退出信号，开始优雅关闭")
		cancel()
	}()

	// 启动时获取产品元数据（禁止硬编码 tick/lot size）
	rest := okx.NewRESTClient(cfg.Exchange.RestURL, time.Duration(cfg.Exchange.RestTimeoutMs)*time.Millisecond, logger)

	acctMode := instrument.AcctMode(cfg.Trading.AccountMode)
	configured := instrument.TdMode(cfg.Trading.TdMode)
	tradingInstType := instrument.ResolveTradingInstType(cfg.Trading.InstID, acctMode, configured)

	startCtx, startCancel := context.WithTimeout(ctx, 10*time.Second)
	inst, err := fetchInstrument(startCtx, rest, cfg.Trading.InstID)
	startCancel()
	if err != nil {
		logger.Error("获取产品元数据失败", zap.Error(err))
		os.Exit(1)
	}

	// 账户模式与配置交易模式共同决定实际下单模式，非法组合直接退出
	tdMode, err := instrument.DecideTdMode(acctMode, tradingInstType, configured)
	if err != nil {
		logger.Error("交易模式决策失败", zap.Error(err),
			zap.Int("acctMode", cfg.Trading.AccountMode),
			zap.String("configured", cfg.Trading.TdMode))
		os.Exit(1)
	}
	logger.Info("做市产品就绪",
		zap.String("instId", inst.InstID),
		zap.String("instType", string(tradingInstType)),
		zap.String("tdMode", string(tdMode)),
		zap.String("tickSz", inst.TickSz.String()),
		zap.String("lotSz", inst.LotSz.String()))

	// 公有连接：订单簿
	publicClient := okx.NewClient(okx.Options{
		URL:          cfg.Exchange.PublicWsURL,
		DialTimeout:  time.Duration(cfg.Exchange.DialTimeoutMs) * time.Millisecond,
		PingInterval: time.Duration(cfg.Exchange.PingIntervalMs) * time.Millisecond,
		PongTimeout:  time.Duration(cfg.Exchange.PongTimeoutMs) * time.Millisecond,
		BufferSize:   cfg.Output.BufferSize,
	}, nil, logger.Named("public"))

	// 私有连接：订单操作与账户/持仓推送
	auth := &okx.LoginAuth{
		APIKey:     os.Getenv("OKX_API_KEY"),
		SecretKey:  os.Getenv("OKX_SECRET_KEY"),
		Passphrase: os.Getenv("OKX_PASSPHRASE"),
	}
	privateClient := okx.NewClient(okx.Options{
		URL:          cfg.Exchange.PrivateWsURL,
		DialTimeout:  time.Duration(cfg.Exchange.DialTimeoutMs) * time.Millisecond,
		PingInterval: time.Duration(cfg.Exchange.PingIntervalMs) * time.Millisecond,
		PongTimeout:  time.Duration(cfg.Exchange.PongTimeoutMs) * time.Millisecond,
		BufferSize:   cfg.Output.BufferSize,
	}, auth, logger.Named("private"))

	connectCtx, connectCancel := context.WithTimeout(ctx, 10*time.Second)
	defer connectCancel()
	if err := publicClient.Connect(connectCtx); err != nil {
		logger.Error("公有连接失败", zap.Error(err))
		os.Exit(1)
	}
	if err := privateClient.Connect(connectCtx); err != nil {
		logger.Error("私有连接失败", zap.Error(err))
		os.Exit(1)
	}

	go publicClient.Run(ctx)
	go privateClient.Run(ctx)

	// 私有频道订阅
	if err := privateClient.Subscribe(
		okx.SubscriptionArg{Channel: okx.ChannelOrders, InstType: "ANY"},
		okx.SubscriptionArg{Channel: okx.ChannelAccount},
		okx.SubscriptionArg{Channel: okx.ChannelPositions, InstType: "ANY"},
		okx.SubscriptionArg{Channel: okx.ChannelBalanceAndPosition},
	); err != nil {
		logger.Error("私有频道订阅失败", zap.Error(err))
		os.Exit(1)
	}

	// 行情监督器：订阅订单簿并维护校验后的本地副本
	supervisor := marketdata.NewSupervisor(marketdata.Options{
		InstID:           inst.InstID,
		Channel:          cfg.MarketData.Channel,
		ChecksumInterval: cfg.MarketData.ChecksumInterval(),
		ResyncCoolDown:   cfg.MarketData.ResyncCoolDown(),
	}, publicClient, logger)
	if err := supervisor.Start(); err != nil {
		logger.Error("订单簿订阅失败", zap.Error(err))
		os.Exit(1)
	}
	go supervisor.Run(ctx, publicClient.BooksCh())

	// 账户与订单容器
	acctStore := account.NewStore()
	orderStore := orders.NewStore()
	go acctStore.Serve(ctx, privateClient.AccountCh(), privateClient.PositionsCh(), privateClient.BalanceAndPositionCh(), logger)
	go orderStore.Serve(ctx, privateClient.OrdersCh(), logger)

	// 参考数据：行情与标记价格轮询，用于估值换算
	refCache := refdata.NewCache()
	poller := refdata.NewPoller(rest, refCache, cfg.RefData.PollInterval(), cfg.RefData.ErrBackoff(), logger)
	go poller.Run(ctx)

	// 订单操作流水
	var opsWriter *jsonl.Writer
	if cfg.Output.OpsJournalEnabled {
		opsWriter, err = jsonl.NewWriter(fmt.Sprintf("%s/ops.jsonl", cfg.Output.Dir), cfg.Output.BufferSize)
		if err != nil {
			logger.Error("创建 ops writer 失败", zap.Error(err))
			os.Exit(1)
		}
	}

	// 策略主循环
	var journal strategy.Journal
	if opsWriter != nil {
		journal = opsWriter
	}
	loop := strategy.NewLoop(inst, tdMode, strategy.Params{
		StepPct:                     decimal.NewFromFloat(cfg.Strategy.StepPct),
		NumOfOrderEachSide:          cfg.Strategy.NumOfOrderEachSide,
		SingleSizeAsMultipleOfLotSz: cfg.Strategy.SingleSizeAsMultipleOfLotSz,
		MaximumNetBuy:               decimal.NewFromFloat(cfg.Strategy.MaximumNetBuy),
		MaximumNetSell:              decimal.NewFromFloat(cfg.Strategy.MaximumNetSell),
		CycleInterval:               time.Duration(cfg.Strategy.CycleIntervalMs) * time.Millisecond,
		RecoveryDelay:               time.Duration(cfg.Strategy.RecoveryDelayMs) * time.Millisecond,
		BookStaleAfter:              time.Duration(cfg.Strategy.BookDelayedSec) * time.Second,
		AccountStaleAfter:           time.Duration(cfg.Strategy.AccountDelayedSec) * time.Second,
	}, privateClient, supervisor, orderStore, acctStore, journal, logger)

	loop.Run(ctx)

	// 退出前撤掉全部在途单
	if err := loop.CancelAll(); err != nil {
		logger.Warn("退出撤单失败", zap.Error(err))
	}

	// 优雅关闭（10s 超时）
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = publicClient.Close()
		_ = privateClient.Close()
		if opsWriter != nil {
			_ = opsWriter.Close()
		}
	}()

	select {
	case <-shutdownCtx.Done():
		logger.Warn("关闭超时，强制退出")
	case <-done:
		logger.Info("关闭完成")
	}
}

// fetchInstrument 拉取产品元数据并定位做市产品
func fetchInstrument(ctx context.Context, rest *okx.RESTClient, instID string) (*instrument.Instrument, error) {
	instType := instrument.GuessInstTypeFromInstID(instID)
	list, err := rest.Instruments(ctx, string(instType), "")
	if err != nil {
		return nil, err
	}
	for _, d := range list {
		if d.InstID != instID {
			continue
		}
		return instrument.FromWire(d)
	}
	return nil, fmt.Errorf("产品 %s 不存在于 %s 列表", instID, instType)
}

func newLogger(level string) *zap.Logger {
	lvl := zapcore.InfoLevel
	if err := lvl.Set(level); err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
