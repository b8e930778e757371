package instrument

import "fmt"

// DecideTdMode 根据账户配置模式、产品类型和配置的交易模式推导下单用的 tdMode
//
// 现货模式：仅允许 SPOT 与 OPTION（买方），均为 cash。
// 单币种杠杆模式：现货为 cash；衍生品按配置取 isolated/cross，配置为 cash 时回退 cross。
// 多币种杠杆与组合保证金模式：杠杆交易为 isolated，现货为 cross，
// 衍生品按配置取 isolated/cross，配置为 cash 时回退 cross。
//
// 组合不合法时返回错误，调用方应视为致命配置错误。
func DecideTdMode(acctMode AcctMode, instType InstType, configured TdMode) (TdMode, error) {
	switch acctMode {
	case AcctModeCash:
		if instType != InstTypeSpot && instType != InstTypeOption {
			return "", fmt.Errorf("现货模式下不支持的产品类型: %s", instType)
		}
		return TdModeCash, nil

	case AcctModeSingleCcyMargin:
		if configured.valid() {
			if instType != InstTypeSpot && instType != InstTypeMargin && configured == TdModeCash {
				return TdModeCross, nil
			}
			if instType == InstTypeSpot {
				return TdModeCash, nil
			}
			return configured, nil
		}
		if instType == InstTypeSpot {
			return TdModeCash, nil
		}
		return TdModeCross, nil

	case AcctModeMultiCcyMargin, AcctModePortfolioMargin:
		if configured.valid() {
			if configured == TdModeCash {
				return TdModeCross, nil
			}
			if instType == InstTypeMargin {
				return TdModeIsolated, nil
			}
			if instType == InstTypeSpot {
				return TdModeCross, nil
			}
			return configured, nil
		}
		if instType == InstTypeMargin {
			return TdModeIsolated, nil
		}
		return TdModeCross, nil
	}

	return "", fmt.Errorf("无效的账户配置模式: %d", acctMode)
}

// ResolveTradingInstType 推导交易产品的实际类型
// 从产品 ID 猜测类型后，现货产品的实际类型还取决于账户模式与配置的交易模式：
// 带杠杆的现货下单实际走 MARGIN 通道。
func ResolveTradingInstType(instID string, acctMode AcctMode, configured TdMode) InstType {
	guessed := GuessInstTypeFromInstID(instID)
	if guessed != InstTypeSpot {
		return guessed
	}

	switch acctMode {
	case AcctModeCash:
		return InstTypeSpot
	case AcctModeSingleCcyMargin:
		if configured == TdModeCash {
			return InstTypeSpot
		}
		return InstTypeMargin
	case AcctModeMultiCcyMargin, AcctModePortfolioMargin:
		if configured == TdModeIsolated {
			return InstTypeMargin
		}
		return InstTypeSpot
	}
	return guessed
}
