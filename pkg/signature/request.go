package signature

import (
	"net/http"
	"strconv"
	"strings"
)

// SignedRequest 一次出站调用的签名材料，每次调用单独生成
type SignedRequest struct {
	Timestamp int64
	Method    string
	Path      string
	Body      []byte
	Signature string
}

// NewSignedRequest 对将要发送的请求体原文签名
// body 必须与实际发送的字节完全一致
func NewSignedRequest(signer Signer, timestamp int64, method, path string, body []byte) *SignedRequest {
	method = strings.ToUpper(method)
	return &SignedRequest{
		Timestamp: timestamp,
		Method:    method,
		Path:      path,
		Body:      body,
		Signature: signer.Sign(timestamp, method, path, body),
	}
}

// Headers 返回需要添加到请求上的认证头
func (r *SignedRequest) Headers(appToken string) map[string]string {
	return map[string]string{
		HeaderAppToken:    appToken,
		HeaderTimestamp:   strconv.FormatInt(r.Timestamp, 10),
		HeaderSignature:   r.Signature,
		HeaderContentType: ContentTypeJSON,
	}
}

// Apply 将认证头写入 http.Header
func (r *SignedRequest) Apply(h http.Header, appToken string) {
	for name, value := range r.Headers(appToken) {
		h.Set(name, value)
	}
}
