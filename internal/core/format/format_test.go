package format

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vietddude/dashnotifier/internal/core/domain"
)

const testHash = "4f1c2a9be0d7a3c6b5e8f9d0c1b2a3e4f5d6c7b8a9e0f1d2c3b4a5e6f7d8c9b0"

func TestFormat_AmountAndFiat(t *testing.T) {
	f := New(Config{})
	tx := domain.Transaction{
		Hash:    testHash,
		Time:    time.Date(2024, 3, 1, 12, 30, 45, 0, time.UTC),
		Value:   850_000_000,
		Ordinal: 12,
	}

	msg := f.Format(tx, decimal.NewNullDecimal(decimal.NewFromFloat(30.0)))

	if msg.Amount != "8.50000000" {
		t.Errorf("Amount = %q, want 8.50000000", msg.Amount)
	}
	if msg.Fiat != "255.00" {
		t.Errorf("Fiat = %q, want 255.00", msg.Fiat)
	}

	for _, want := range []string{
		"📥 New incoming transaction #12",
		"8.50000000 DASH (~255.00$)",
		"2024-03-01 12:30",
		"https://blockchair.com/dash/transaction/" + testHash,
		"TxID: 4f1c2a9b...",
	} {
		if !strings.Contains(msg.Text, want) {
			t.Errorf("text missing %q:\n%s", want, msg.Text)
		}
	}

	if msg.ParseMode != ParseModeMarkdown {
		t.Errorf("ParseMode = %q", msg.ParseMode)
	}
	if msg.ButtonURL != "https://blockchair.com/dash/transaction/"+testHash {
		t.Errorf("ButtonURL = %q", msg.ButtonURL)
	}
}

func TestFormat_UnknownPrice(t *testing.T) {
	f := New(Config{})
	msg := f.Format(domain.Transaction{Hash: testHash, Value: 850_000_000}, decimal.NullDecimal{})

	if msg.Fiat != "" {
		t.Errorf("Fiat = %q, want empty", msg.Fiat)
	}
	if strings.Contains(msg.Text, "$") {
		t.Errorf("text should omit fiat:\n%s", msg.Text)
	}
	if !strings.Contains(msg.Text, "8.50000000 DASH\n") {
		t.Errorf("text missing amount:\n%s", msg.Text)
	}
	if !strings.Contains(msg.Text, "Time: unknown") {
		t.Errorf("zero time should render as unknown:\n%s", msg.Text)
	}
}

func TestFormat_Outgoing(t *testing.T) {
	f := New(Config{Ticker: "tDASH"})
	msg := f.Format(domain.Transaction{Hash: "abc", Value: -100_000}, decimal.NullDecimal{})

	if !strings.HasPrefix(msg.Text, "📤 New outgoing transaction\n") {
		t.Errorf("unexpected header:\n%s", msg.Text)
	}
	if msg.Amount != "-0.00100000" {
		t.Errorf("Amount = %q", msg.Amount)
	}
	if !strings.Contains(msg.Text, "-0.00100000 tDASH") {
		t.Errorf("text missing ticker:\n%s", msg.Text)
	}
	if !strings.Contains(msg.Text, "TxID: abc") {
		t.Errorf("short ids are not truncated:\n%s", msg.Text)
	}
}

func TestFormat_Location(t *testing.T) {
	loc := time.FixedZone("AMT", 4*60*60)
	f := New(Config{Location: loc, ExplorerURL: "https://explorer.example/tx/%s"})
	tx := domain.Transaction{Hash: "abc", Value: 1, Time: time.Date(2024, 3, 1, 22, 15, 0, 0, time.UTC)}

	msg := f.Format(tx, decimal.NullDecimal{})
	if !strings.Contains(msg.Text, "2024-03-02 02:15") {
		t.Errorf("time not converted:\n%s", msg.Text)
	}
	if msg.ButtonURL != "https://explorer.example/tx/abc" {
		t.Errorf("ButtonURL = %q", msg.ButtonURL)
	}
}

func TestFiat_Rounding(t *testing.T) {
	tests := []struct {
		value int64
		price string
		want  string
	}{
		{100_000_000, "27.456", "27.46"},
		{1, "30", "0.00"},
		{123_456_789, "10", "12.35"},
	}
	for _, tt := range tests {
		got := Fiat(tt.value, decimal.NewNullDecimal(decimal.RequireFromString(tt.price)))
		if got != tt.want {
			t.Errorf("Fiat(%d, %s) = %q, want %q", tt.value, tt.price, got, tt.want)
		}
	}
}
