package signature

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigestVerifier(t *testing.T) {
	v, err := NewDigestVerifier("webhook-secret")
	require.NoError(t, err)
	body := []byte(`{"type":"applicantReviewed"}`)

	t.Run("sha256 default", func(t *testing.T) {
		digest, err := v.Compute("", body)
		require.NoError(t, err)
		assert.Equal(t, "460b9e4781f23141fddce4e008e1b524cea8dc6ef88c86a32229a3f961cad310", digest)
		assert.NoError(t, v.Verify("", body, digest))
		assert.NoError(t, v.Verify(DigestHMACSHA256, body, digest))
	})

	t.Run("sha1", func(t *testing.T) {
		assert.NoError(t, v.Verify(DigestHMACSHA1, body, "f5c42e17a848b4b6aff2fa33ec2d59e38dd0dbdd"))
	})

	t.Run("upper-case digest accepted", func(t *testing.T) {
		assert.NoError(t, v.Verify(DigestHMACSHA1, body, "F5C42E17A848B4B6AFF2FA33EC2D59E38DD0DBDD"))
	})

	t.Run("tampered body", func(t *testing.T) {
		err := v.Verify("", []byte(`{"type":"applicantCreated"}`), "460b9e4781f23141fddce4e008e1b524cea8dc6ef88c86a32229a3f961cad310")
		assert.True(t, errors.Is(err, ErrDigestMismatch))
	})

	t.Run("missing digest", func(t *testing.T) {
		assert.True(t, errors.Is(v.Verify("", body, ""), ErrMissingDigest))
	})

	t.Run("unsupported algorithm", func(t *testing.T) {
		assert.True(t, errors.Is(v.Verify("MD5", body, "abc"), ErrUnsupportedAlgorithm))
	})

	t.Run("empty secret", func(t *testing.T) {
		_, err := NewDigestVerifier("")
		assert.Error(t, err)
	})
}
