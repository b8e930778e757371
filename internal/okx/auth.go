package okx

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
)

// LoginAuth 私有连接登录钩子
// 连接建立后发送一次 login 帧，签名为 HMAC-SHA256(timestamp + "GET" + "/users/self/verify")
type LoginAuth struct {
	// APIKey API Key
	APIKey string
	// SecretKey 签名密钥
	SecretKey string
	// Passphrase 口令
	Passphrase string
}

// loginArg login 帧的单个凭证参数
type loginArg struct {
	APIKey     string `json:"apiKey"`
	Passphrase string `json:"passphrase"`
	Timestamp  string `json:"timestamp"`
	Sign       string `json:"sign"`
}

// loginRequest login 帧
type loginRequest struct {
	Op   string     `json:"op"`
	Args []loginArg `json:"args"`
}

// Authenticate 在连接上发送 login 帧
func (a *LoginAuth) Authenticate(ctx context.Context, conn *websocket.Conn) error {
	if a.APIKey == "" || a.SecretKey == "" || a.Passphrase == "" {
		return fmt.Errorf("私有连接凭证不完整")
	}

	ts := strconv.FormatInt(time.Now().Unix(), 10)
	mac := hmac.New(sha256.New, []byte(a.SecretKey))
	mac.Write([]byte(ts + "GET" + "/users/self/verify"))
	sign := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	req := loginRequest{
		Op: OpLogin,
		Args: []loginArg{{
			APIKey:     a.APIKey,
			Passphrase: a.Passphrase,
			Timestamp:  ts,
			Sign:       sign,
		}},
	}

	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("序列化 login 帧失败: %w", err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
		defer conn.SetWriteDeadline(time.Time{})
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("发送 login 帧失败: %w", err)
	}
	return nil
}
