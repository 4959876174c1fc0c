package signature

// Signer 出站请求签名器
type Signer interface {
	Sign(timestamp int64, method, path string, body []byte) string
}

// 服务商认证头
const (
	HeaderAppToken    = "X-App-Token"
	HeaderTimestamp   = "X-App-Access-Ts"
	HeaderSignature   = "X-App-Access-Sig"
	HeaderContentType = "Content-Type"

	ContentTypeJSON = "application/json"
)

// 回调摘要头
const (
	HeaderPayloadDigest    = "X-Payload-Digest"
	HeaderPayloadDigestAlg = "X-Payload-Digest-Alg"
)
