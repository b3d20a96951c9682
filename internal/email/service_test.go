package email

import (
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"
)

func TestServiceIsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected bool
	}{
		{
			name:     "empty config",
			config:   Config{},
			expected: false,
		},
		{
			name: "missing host",
			config: Config{
				Port: "587",
				From: "hola@example.com",
			},
			expected: false,
		},
		{
			name: "missing from",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
			},
			expected: false,
		},
		{
			name: "fully configured",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
				From: "hola@example.com",
			},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.config)
			if svc.IsConfigured() != tt.expected {
				t.Errorf("IsConfigured() = %v, want %v", svc.IsConfigured(), tt.expected)
			}
		})
	}

	var nilService *Service
	if nilService.IsConfigured() {
		t.Error("nil service reports configured")
	}
}

func TestSendInvite(t *testing.T) {
	svc := NewService(Config{Host: "smtp.example.com", Port: "587", From: "hola@example.com", FromName: "Nosotros"})

	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
	)
	svc.send = func(addr string, _ smtp.Auth, _ string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		return nil
	}

	expires := time.Date(2026, 2, 14, 20, 30, 0, 0, time.UTC)
	err := svc.SendInvite("Ana <ana@example.com>", InviteData{
		FromName:  "Luis",
		Code:      "ABC123",
		Token:     "token.firma",
		ExpiresAt: expires,
	})
	if err != nil {
		t.Fatalf("SendInvite() error = %v", err)
	}

	if gotAddr != "smtp.example.com:587" {
		t.Errorf("server = %q", gotAddr)
	}
	if len(gotTo) != 1 || gotTo[0] != "ana@example.com" {
		t.Errorf("recipients = %v", gotTo)
	}
	for _, want := range []string{
		"Subject: Luis te invita a Nosotros",
		"From: Nosotros <hola@example.com>",
		"ABC123",
		"token.firma",
		"14/02/2026 20:30",
	} {
		if !strings.Contains(gotMsg, want) {
			t.Errorf("message missing %q", want)
		}
	}
}

func TestSendInviteRejects(t *testing.T) {
	unconfigured := NewService(Config{})
	if err := unconfigured.SendInvite("ana@example.com", InviteData{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("unconfigured SendInvite() error = %v", err)
	}

	svc := NewService(Config{Host: "smtp.example.com", Port: "587", From: "hola@example.com"})
	svc.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("send called for invalid address")
		return nil
	}
	if err := svc.SendInvite("no es un correo", InviteData{Code: "ABC123"}); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("SendInvite() error = %v, want ErrInvalidAddress", err)
	}
}

func TestSendInviteWrapsTransportErrors(t *testing.T) {
	svc := NewService(Config{Host: "smtp.example.com", Port: "587", From: "hola@example.com"})
	boom := errors.New("connection reset")
	svc.send = func(string, smtp.Auth, string, []string, []byte) error { return boom }

	err := svc.SendInvite("ana@example.com", InviteData{Code: "ABC123"})
	if !errors.Is(err, boom) {
		t.Fatalf("SendInvite() error = %v, want wrapped transport error", err)
	}
}
