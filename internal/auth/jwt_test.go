package auth

import (
	"encoding/base64"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndVerify(t *testing.T) {
	m := NewTokenManager("super-secret", time.Hour)
	tok, exp, err := m.Sign("doc_user", true)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	c, err := m.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "doc_user", c.Subject)
	assert.True(t, c.Admin)
}

func TestVerifyExpired(t *testing.T) {
	m := NewTokenManager("secret", time.Minute)
	m.now = func() time.Time { return time.Now().Add(-2 * time.Minute) }
	tok, _, err := m.Sign("u1", false)
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.Verify(tok)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyWrongSecret(t *testing.T) {
	tok, _, err := NewTokenManager("right-secret", time.Hour).Sign("u2", false)
	require.NoError(t, err)

	_, err = NewTokenManager("wrong-secret", time.Hour).Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyTamperedPayload(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)
	tok, _, err := m.Sign("doc_user", false)
	require.NoError(t, err)

	parts := strings.Split(tok, ".")
	require.Len(t, parts, 3)
	payload := `{"adm":true,"sub":"doc_user","exp":` + strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10) + `}`
	parts[1] = base64.RawURLEncoding.EncodeToString([]byte(payload))

	_, err = m.Verify(strings.Join(parts, "."))
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyTamperedSignature(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)
	tok, _, err := m.Sign("doc_user", false)
	require.NoError(t, err)

	parts := strings.Split(tok, ".")
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	require.NoError(t, err)
	sig[0] ^= 0xff
	parts[2] = base64.RawURLEncoding.EncodeToString(sig)

	_, err = m.Verify(strings.Join(parts, "."))
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func flipAt(s string, i int) string {
	b := []byte(s)
	if b[i] == 'A' {
		b[i] = 'B'
	} else {
		b[i] = 'A'
	}
	return string(b)
}

func TestVerifySingleCharacterEdits(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)
	tok, _, err := m.Sign("doc_user", false)
	require.NoError(t, err)
	parts := strings.Split(tok, ".")
	require.Len(t, parts, 3)

	for i := range parts[1] {
		edited := parts[0] + "." + flipAt(parts[1], i) + "." + parts[2]
		_, err := m.Verify(edited)
		assert.ErrorIs(t, err, ErrInvalidSignature, "payload offset %d", i)
	}
	// The last character of the signature carries padding bits that some
	// edits leave unchanged after decoding.
	for i := 0; i < len(parts[2])-1; i++ {
		edited := parts[0] + "." + parts[1] + "." + flipAt(parts[2], i)
		_, err := m.Verify(edited)
		assert.ErrorIs(t, err, ErrInvalidSignature, "signature offset %d", i)
	}
}

func TestVerifyUndecodableSegments(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)
	tok, _, err := m.Sign("doc_user", false)
	require.NoError(t, err)
	parts := strings.Split(tok, ".")

	_, err = m.Verify(parts[0] + ".!!!." + parts[2])
	assert.ErrorIs(t, err, ErrInvalidSignature)
	_, err = m.Verify(parts[0] + "." + parts[1] + ".***")
	assert.ErrorIs(t, err, ErrInvalidSignature)
	_, err = m.Verify("%%%." + parts[1] + "." + parts[2])
	assert.ErrorIs(t, err, ErrMalformedToken)
}

func TestVerifyRejectsOtherAlgorithms(t *testing.T) {
	claims := jwt.MapClaims{"sub": "doc_user", "exp": time.Now().Add(time.Hour).Unix()}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewTokenManager("secret", time.Hour).Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyMalformed(t *testing.T) {
	m := NewTokenManager("k", time.Hour)
	for _, s := range []string{"", "not.a.jwt", "abc"} {
		_, err := m.Verify(s)
		assert.ErrorIs(t, err, ErrMalformedToken, s)
	}
}

func TestVerifyRequiresSubject(t *testing.T) {
	claims := jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("k"))
	require.NoError(t, err)

	_, err = NewTokenManager("k", time.Hour).Verify(tok)
	assert.ErrorIs(t, err, ErrMalformedToken)
}
