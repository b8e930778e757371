package okx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// REST 接口路径
const (
	pathTickers     = "/api/v5/market/tickers"
	pathMarkPrice   = "/api/v5/public/mark-price"
	pathInstruments = "/api/v5/public/instruments"
)

// RESTClient OKX v5 公共 REST 客户端
// 仅覆盖行情与产品规格等公共只读接口，无需鉴权
type RESTClient struct {
	// baseURL 接口基础地址
	baseURL string
	// httpClient HTTP 客户端
	httpClient *http.Client
	// logger 日志记录器
	logger *zap.Logger
}

// NewRESTClient 创建 REST 客户端
// 参数 baseURL: 接口基础地址，如 https://www.okx.com
// 参数 timeout: 单次请求超时
func NewRESTClient(baseURL string, timeout time.Duration, logger *zap.Logger) *RESTClient {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &RESTClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.Named("okx-rest"),
	}
}

// Tickers 获取指定产品类型的全部行情
func (c *RESTClient) Tickers(ctx context.Context, instType string) ([]TickerData, error) {
	params := url.Values{}
	params.Set("instType", instType)

	var tickers []TickerData
	if err := c.doRequest(ctx, pathTickers, params, &tickers); err != nil {
		return nil, fmt.Errorf("获取行情失败: %w", err)
	}
	return tickers, nil
}

// MarkPrices 获取指定产品类型的全部标记价格
func (c *RESTClient) MarkPrices(ctx context.Context, instType string) ([]MarkPxData, error) {
	params := url.Values{}
	params.Set("instType", instType)

	var marks []MarkPxData
	if err := c.doRequest(ctx, pathMarkPrice, params, &marks); err != nil {
		return nil, fmt.Errorf("获取标记价格失败: %w", err)
	}
	return marks, nil
}

// Instruments 获取指定产品类型的产品规格
// 参数 uly: 标的指数，仅衍生品需要，可为空
func (c *RESTClient) Instruments(ctx context.Context, instType, uly string) ([]InstrumentData, error) {
	params := url.Values{}
	params.Set("instType", instType)
	if uly != "" {
		params.Set("uly", uly)
	}

	var insts []InstrumentData
	if err := c.doRequest(ctx, pathInstruments, params, &insts); err != nil {
		return nil, fmt.Errorf("获取产品规格失败: %w", err)
	}
	return insts, nil
}

// doRequest 发起 GET 请求并解码信封
func (c *RESTClient) doRequest(ctx context.Context, path string, params url.Values, out any) error {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("HTTP 状态异常: %d, body: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应失败: %w", err)
	}

	var env restEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("解析响应信封失败: %w", err)
	}
	if env.Code != "0" {
		return fmt.Errorf("OKX 接口错误: code=%s, msg=%s", env.Code, env.Msg)
	}

	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("解析响应数据失败: %w", err)
	}
	return nil
}
