package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// RequestSigner 按服务商规则对请求做 HMAC-SHA256 签名
//
// 签名串: 时间戳(十进制) + 大写方法 + 路径(含查询串) + 请求体原文
type RequestSigner struct {
	secretKey []byte
}

// NewRequestSigner 创建签名器，密钥不能为空
func NewRequestSigner(secretKey string) (*RequestSigner, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("missing secret key for request signer")
	}
	return &RequestSigner{secretKey: []byte(secretKey)}, nil
}

// Sign 计算签名，输出小写十六进制
func (s *RequestSigner) Sign(timestamp int64, method, path string, body []byte) string {
	h := hmac.New(sha256.New, s.secretKey)
	h.Write(CanonicalMessage(timestamp, method, path, body))
	return hex.EncodeToString(h.Sum(nil))
}

// CanonicalMessage 构建待签名串
func CanonicalMessage(timestamp int64, method, path string, body []byte) []byte {
	ts := strconv.FormatInt(timestamp, 10)
	method = strings.ToUpper(method)

	msg := make([]byte, 0, len(ts)+len(method)+len(path)+len(body))
	msg = append(msg, ts...)
	msg = append(msg, method...)
	msg = append(msg, path...)
	msg = append(msg, body...)
	return msg
}
