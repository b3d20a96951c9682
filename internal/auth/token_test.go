package auth

import (
	"errors"
	"testing"
	"time"
)

func TestIssueAndParseInvite(t *testing.T) {
	secret := []byte("secret")
	now := time.Unix(1_700_000_000, 0)
	issued, err := IssueInvite(secret, "ABC123", "Ana", time.Hour, now)
	if err != nil {
		t.Fatalf("IssueInvite() error = %v", err)
	}
	if !LooksLikeInvite(issued) {
		t.Fatalf("LooksLikeInvite(%q) = false", issued)
	}
	invite, err := ParseInvite(secret, issued, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("ParseInvite() error = %v", err)
	}
	if invite.CoupleID != "ABC123" || invite.Inviter != "Ana" || invite.JTI == "" {
		t.Fatalf("unexpected invite: %+v", invite)
	}
}

func TestParseInviteRejectsExpired(t *testing.T) {
	secret := []byte("secret")
	now := time.Unix(1_700_000_000, 0)
	issued, err := IssueInvite(secret, "ABC123", "", time.Minute, now)
	if err != nil {
		t.Fatalf("IssueInvite() error = %v", err)
	}
	if _, err := ParseInvite(secret, issued, now.Add(time.Minute)); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("ParseInvite() error = %v, want ErrExpiredToken", err)
	}
}

func TestParseInviteRejectsTampering(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	issued, err := IssueInvite([]byte("secret"), "ABC123", "", time.Hour, now)
	if err != nil {
		t.Fatalf("IssueInvite() error = %v", err)
	}
	if _, err := ParseInvite([]byte("other"), issued, now); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("ParseInvite() error = %v, want ErrInvalidToken", err)
	}
	forged, err := issue([]byte("other"), Invite{CoupleID: "ZZZ999", JTI: "x", Exp: now.Add(time.Hour).Unix()})
	if err != nil {
		t.Fatalf("issue() error = %v", err)
	}
	if _, err := ParseInvite([]byte("secret"), forged, now); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("ParseInvite() error = %v, want ErrInvalidToken", err)
	}
	if _, err := ParseInvite([]byte("secret"), "ABC123", now); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("ParseInvite(code) error = %v, want ErrInvalidToken", err)
	}
	if LooksLikeInvite("ABC123") {
		t.Fatal("raw code detected as invite")
	}
}

func TestInviteRequiresSecret(t *testing.T) {
	if _, err := IssueInvite(nil, "ABC123", "", time.Hour, time.Now()); !errors.Is(err, ErrNoSecret) {
		t.Fatalf("IssueInvite() error = %v, want ErrNoSecret", err)
	}
}
