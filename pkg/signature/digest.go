package signature

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"strings"
)

// 回调摘要算法
const (
	DigestHMACSHA1   = "HMAC_SHA1_HEX"
	DigestHMACSHA256 = "HMAC_SHA256_HEX"
	DigestHMACSHA512 = "HMAC_SHA512_HEX"

	DefaultDigestAlgorithm = DigestHMACSHA256
)

var (
	ErrMissingDigest        = errors.New("missing payload digest")
	ErrUnsupportedAlgorithm = errors.New("unsupported digest algorithm")
	ErrDigestMismatch       = errors.New("payload digest mismatch")
)

// DigestVerifier 校验服务商回调的请求体摘要
type DigestVerifier struct {
	secret []byte
}

// NewDigestVerifier 创建回调摘要校验器
func NewDigestVerifier(secret string) (*DigestVerifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("missing webhook secret")
	}
	return &DigestVerifier{secret: []byte(secret)}, nil
}

// Compute 计算请求体摘要，algorithm 为空时使用默认算法
func (v *DigestVerifier) Compute(algorithm string, body []byte) (string, error) {
	newHash, err := hashFor(algorithm)
	if err != nil {
		return "", err
	}
	h := hmac.New(newHash, v.secret)
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Verify 校验摘要
func (v *DigestVerifier) Verify(algorithm string, body []byte, digest string) error {
	if digest == "" {
		return ErrMissingDigest
	}
	expected, err := v.Compute(algorithm, body)
	if err != nil {
		return err
	}
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(digest))) {
		return ErrDigestMismatch
	}
	return nil
}

func hashFor(algorithm string) (func() hash.Hash, error) {
	switch strings.ToUpper(algorithm) {
	case "", DigestHMACSHA256:
		return sha256.New, nil
	case DigestHMACSHA1:
		return sha1.New, nil
	case DigestHMACSHA512:
		return sha512.New, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, algorithm)
	}
}
