package account

import (
	"context"

	"go.uber.org/zap"

	"okx-market-maker/internal/okx"
)

// Serve 消费私有频道推送并更新容器，阻塞至 ctx 取消或全部通道关闭
func (s *Store) Serve(
	ctx context.Context,
	accountCh <-chan *okx.AccountMsg,
	positionsCh <-chan *okx.PositionsMsg,
	balPosCh <-chan *okx.BalanceAndPositionMsg,
	logger *zap.Logger,
) {
	logger = logger.Named("account")

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-accountCh:
			if !ok {
				accountCh = nil
				if positionsCh == nil && balPosCh == nil {
					return
				}
				continue
			}
			for _, data := range msg.Data {
				s.ApplyAccount(data)
			}
			logger.Debug("账户快照已更新", zap.Int("details", detailCount(msg)))

		case msg, ok := <-positionsCh:
			if !ok {
				positionsCh = nil
				if accountCh == nil && balPosCh == nil {
					return
				}
				continue
			}
			s.ApplyPositions(msg.Data)

		case msg, ok := <-balPosCh:
			if !ok {
				balPosCh = nil
				if accountCh == nil && positionsCh == nil {
					return
				}
				continue
			}
			for _, data := range msg.Data {
				s.ApplyBalanceAndPosition(data)
			}
		}
	}
}

// detailCount 统计推送中的币种明细条数
func detailCount(msg *okx.AccountMsg) int {
	n := 0
	for _, d := range msg.Data {
		n += len(d.Details)
	}
	return n
}
