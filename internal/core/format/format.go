// Package format renders transactions into chat notifications.
package format

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vietddude/dashnotifier/internal/core/domain"
)

const (
	DefaultExplorerURL = "https://blockchair.com/dash/transaction/%s"
	DefaultTicker      = "DASH"

	// ParseModeMarkdown is the Telegram legacy Markdown parse mode.
	ParseModeMarkdown = "Markdown"

	coinDecimals = 8
	fiatDecimals = 2
	timeLayout   = "2006-01-02 15:04"
	previewLen   = 8
)

// Message is a rendered notification.
type Message struct {
	Text       string
	ParseMode  string
	ButtonText string
	ButtonURL  string
	Amount     string // coin amount, 8 decimals
	Fiat       string // fiat value, 2 decimals; empty when the price is unknown
}

// Config controls rendering.
type Config struct {
	ExplorerURL string
	Location    *time.Location
	Ticker      string
}

// Formatter is pure and safe for concurrent use.
type Formatter struct {
	explorerURL string
	loc         *time.Location
	ticker      string
}

// New creates a formatter, filling defaults for empty fields.
func New(cfg Config) *Formatter {
	f := &Formatter{
		explorerURL: cfg.ExplorerURL,
		loc:         cfg.Location,
		ticker:      cfg.Ticker,
	}
	if f.explorerURL == "" {
		f.explorerURL = DefaultExplorerURL
	}
	if f.loc == nil {
		f.loc = time.UTC
	}
	if f.ticker == "" {
		f.ticker = DefaultTicker
	}
	return f
}

// Amount converts a duff value into coins with 8 decimals.
func Amount(value int64) string {
	return decimal.New(value, -coinDecimals).StringFixed(coinDecimals)
}

// Fiat converts a duff value into fiat with 2 decimals. It returns "" when
// the price is unknown.
func Fiat(value int64, price decimal.NullDecimal) string {
	if !price.Valid {
		return ""
	}
	return decimal.New(value, -coinDecimals).Mul(price.Decimal).StringFixed(fiatDecimals)
}

// ExplorerLink returns the explorer deep link for hash.
func (f *Formatter) ExplorerLink(hash string) string {
	return fmt.Sprintf(f.explorerURL, hash)
}

// Format renders tx with an optional price.
func (f *Formatter) Format(tx domain.Transaction, price decimal.NullDecimal) Message {
	amount := Amount(tx.Value)
	fiat := Fiat(tx.Value, price)
	link := f.ExplorerLink(tx.Hash)

	var b strings.Builder

	icon, title := "📥", "New incoming transaction"
	if !tx.Incoming() {
		icon, title = "📤", "New outgoing transaction"
	}
	b.WriteString(icon + " " + title)
	if tx.Ordinal > 0 {
		fmt.Fprintf(&b, " #%d", tx.Ordinal)
	}
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "💰 Amount: %s %s", amount, f.ticker)
	if fiat != "" {
		fmt.Fprintf(&b, " (~%s$)", fiat)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "⏰ Time: %s\n", f.humanTime(tx.Time))
	fmt.Fprintf(&b, "🔗 [View on Blockchair](%s)\n", link)
	fmt.Fprintf(&b, "🧾 TxID: %s", Preview(tx.Hash))

	return Message{
		Text:       b.String(),
		ParseMode:  ParseModeMarkdown,
		ButtonText: "View transaction",
		ButtonURL:  link,
		Amount:     amount,
		Fiat:       fiat,
	}
}

func (f *Formatter) humanTime(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.In(f.loc).Format(timeLayout)
}

// Preview shortens a transaction id to its first characters.
func Preview(hash string) string {
	if len(hash) <= previewLen {
		return hash
	}
	return hash[:previewLen] + "..."
}
