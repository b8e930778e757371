package orders

import (
	"context"

	"go.uber.org/zap"

	"okx-market-maker/internal/okx"
)

// Serve 消费订单频道推送并更新容器，阻塞至 ctx 取消或通道关闭
func (s *Store) Serve(ctx context.Context, ch <-chan *okx.OrdersMsg, logger *zap.Logger) {
	logger = logger.Named("orders")

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			s.Apply(msg.Data)
			for _, d := range msg.Data {
				logger.Debug("订单状态更新",
					zap.String("clOrdId", d.ClOrdID),
					zap.String("state", d.State),
					zap.String("accFillSz", d.AccFillSz))
			}
		}
	}
}
