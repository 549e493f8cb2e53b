package config

import (
	"reflect"
	"testing"
)

func TestParseList(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{name: "empty", raw: "", want: []string{}},
		{name: "only_separators", raw: " , ,, ", want: []string{}},
		{name: "trims_and_drops_empty", raw: " ops@example.com, ,boss@example.com ", want: []string{"ops@example.com", "boss@example.com"}},
		{name: "single", raw: "ops@example.com", want: []string{"ops@example.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseList(tt.raw)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("ParseList(%q) = %#v, want %#v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestLoadReadsAdminAlertEmails(t *testing.T) {
	t.Setenv("ADMIN_ALERT_EMAILS", "a@example.com, b@example.com,")
	t.Setenv("MAIL_BACKEND", "SMTP")
	t.Setenv("PORT", "not-a-number")

	cfg := Load()

	if !reflect.DeepEqual(cfg.AdminAlertEmails, []string{"a@example.com", "b@example.com"}) {
		t.Fatalf("AdminAlertEmails = %#v", cfg.AdminAlertEmails)
	}
	if cfg.Mail.Backend != "smtp" {
		t.Fatalf("Mail.Backend = %q, want smtp", cfg.Mail.Backend)
	}
	if cfg.Port != 8080 {
		t.Fatalf("Port = %d, want fallback 8080", cfg.Port)
	}
}
