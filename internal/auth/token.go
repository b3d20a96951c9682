// Package auth issues and verifies signed invite tokens that carry a couple
// code, so a second device can join by scanning a QR image instead of
// typing the code.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Invite is the payload of an invite token.
type Invite struct {
	CoupleID string `json:"pareja"`
	Inviter  string `json:"de,omitempty"`
	JTI      string `json:"jti"`
	Exp      int64  `json:"exp"`
}

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("expired token")
	ErrNoSecret     = errors.New("invite secret is not configured")
)

// TokenSeparator splits payload from signature. Couple codes never contain it.
const TokenSeparator = "."

// IssueInvite signs an invite for coupleID valid for ttl.
func IssueInvite(secret []byte, coupleID, inviter string, ttl time.Duration, now time.Time) (string, error) {
	if len(secret) == 0 {
		return "", ErrNoSecret
	}
	return issue(secret, Invite{
		CoupleID: coupleID,
		Inviter:  inviter,
		JTI:      uuid.NewString(),
		Exp:      now.Add(ttl).Unix(),
	})
}

func issue(secret []byte, invite Invite) (string, error) {
	payloadBytes, err := json.Marshal(invite)
	if err != nil {
		return "", fmt.Errorf("marshal invite: %w", err)
	}
	payload := base64.RawURLEncoding.EncodeToString(payloadBytes)
	return payload + TokenSeparator + sign(secret, payload), nil
}

// ParseInvite verifies token and returns its invite.
func ParseInvite(secret []byte, token string, now time.Time) (Invite, error) {
	if len(secret) == 0 {
		return Invite{}, ErrNoSecret
	}
	parts := strings.Split(strings.TrimSpace(token), TokenSeparator)
	if len(parts) != 2 {
		return Invite{}, ErrInvalidToken
	}
	payload := parts[0]
	signature := parts[1]

	expected := sign(secret, payload)
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return Invite{}, ErrInvalidToken
	}

	decoded, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return Invite{}, ErrInvalidToken
	}

	var invite Invite
	if err := json.Unmarshal(decoded, &invite); err != nil {
		return Invite{}, ErrInvalidToken
	}
	if invite.CoupleID == "" || invite.JTI == "" || invite.Exp == 0 {
		return Invite{}, ErrInvalidToken
	}
	if now.Unix() >= invite.Exp {
		return Invite{}, ErrExpiredToken
	}
	return invite, nil
}

// LooksLikeInvite reports whether value has the shape of an invite token
// rather than a raw couple code.
func LooksLikeInvite(value string) bool {
	return strings.Contains(value, TokenSeparator)
}

func sign(secret []byte, payload string) string {
	sum := hmac.New(sha256.New, secret)
	_, _ = sum.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(sum.Sum(nil))
}
