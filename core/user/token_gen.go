package user

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var (
	salt = []byte("academy.core.user.token_gen")

	// errors
	errInvalidToken = errors.New("invalid token")
	errTokenExpired = errors.New("token expired")
)

// tokenGenerator makes and verifies password reset tokens of the form "<minutes base36>-<hmac>".
// A token is invalidated by a password change, a new login or its expiration.
type tokenGenerator struct {
	key     [sha256.Size]byte
	timeout time.Duration
	now     func() time.Time // mockable
}

func newTokenGenerator(secret string, timeout time.Duration) tokenGenerator {
	return tokenGenerator{
		key:     sha256.Sum256(append(append([]byte{}, salt...), secret...)),
		timeout: timeout,
		now:     time.Now,
	}
}

// EncodeUID base64 encodes given User ID
func EncodeUID(usr User) string {
	return base64.RawURLEncoding.EncodeToString([]byte(usr.ID))
}

func decodeUID(uid string) (string, error) {
	idBytes, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return "", err
	}
	return string(idBytes), nil
}

func (g tokenGenerator) makeToken(usr User) string {
	return g.tokenAt(usr, g.now().Unix()/60)
}

func (g tokenGenerator) verifyToken(usr User, token string) error {
	stamp, _, ok := strings.Cut(token, "-")
	if !ok {
		return errInvalidToken
	}
	minutes, err := strconv.ParseInt(stamp, 36, 64)
	if err != nil || minutes < 0 {
		return errInvalidToken
	}
	if !hmac.Equal([]byte(g.tokenAt(usr, minutes)), []byte(token)) {
		return errInvalidToken
	}
	if g.now().Sub(time.Unix(minutes*60, 0)) > g.timeout {
		return errTokenExpired
	}
	return nil
}

// tokenAt signs the user state that must not change while the token is valid.
func (g tokenGenerator) tokenAt(usr User, minutes int64) string {
	stamp := strconv.FormatInt(minutes, 36)
	h := hmac.New(sha256.New, g.key[:])
	h.Write([]byte(usr.ID))
	h.Write(usr.PasswordHash)
	if !usr.LastLogin.IsZero() {
		h.Write([]byte(usr.LastLogin.UTC().Format(time.RFC3339)))
	}
	h.Write([]byte(stamp))
	return stamp + "-" + base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
