package user

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/pkg/errors"
)

const otpAlphabet = "0123456789"

var ErrOTPNotFound = errors.New("otp not found")

type (
	// OTPEntry is a stored one-time code. Only the code's HMAC is kept.
	OTPEntry struct {
		Hash     string
		Attempts int
	}

	// OTPStore keeps one pending code per email.
	OTPStore interface {
		Save(ctx context.Context, email, hash string, ttl time.Duration) error
		Get(ctx context.Context, email string) (OTPEntry, error)
		IncrAttempts(ctx context.Context, email string) (int, error)
		Delete(ctx context.Context, email string) error
	}
)

func hashOTP(secret, email, code string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(email))
	h.Write([]byte{0})
	h.Write([]byte(code))
	return hex.EncodeToString(h.Sum(nil))
}

func checkOTP(secret, email, code, hash string) bool {
	return hmac.Equal([]byte(hashOTP(secret, email, code)), []byte(hash))
}
