// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// BookLevel represents one price level in the merged book.
type BookLevel struct {
	Price    float64
	Amount   float64
	Exchange string
}

// BookData holds a merged book summary for display.
type BookData struct {
	Spread float64
	Bids   []BookLevel
	Asks   []BookLevel
}

// BookComponent renders the merged orderbook side by side.
type BookComponent struct {
	data   BookData
	symbol string
}

// NewBookComponent creates a new book component.
func NewBookComponent() *BookComponent {
	return &BookComponent{}
}

// Update replaces the displayed book data.
func (b *BookComponent) Update(data BookData) {
	b.data = data
}

// SetSymbol sets the trading pair name.
func (b *BookComponent) SetSymbol(symbol string) {
	b.symbol = symbol
}

// Clear drops the displayed book data.
func (b *BookComponent) Clear() {
	b.data = BookData{}
}

// View renders the book component.
func (b *BookComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	bidStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	askStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))

	title := "BOOK"
	if b.symbol != "" {
		title = fmt.Sprintf("BOOK (%s)", strings.ToUpper(b.symbol))
	}

	var result string
	result = headerStyle.Render(title)
	result += "\n\n"

	if len(b.data.Bids) == 0 && len(b.data.Asks) == 0 {
		result += dimStyle.Render("  Waiting for book data...") + "\n"
		return result
	}

	result += fmt.Sprintf("  %-14s %-12s %-10s   %-14s %-12s %-10s\n",
		"Bid", "Amount", "Venue", "Ask", "Amount", "Venue")
	result += dimStyle.Render("  "+strings.Repeat("─", 76)) + "\n"

	rows := len(b.data.Bids)
	if len(b.data.Asks) > rows {
		rows = len(b.data.Asks)
	}
	for i := 0; i < rows; i++ {
		bid, ask := "", ""
		if i < len(b.data.Bids) {
			l := b.data.Bids[i]
			bid = fmt.Sprintf("%s %-12s %-10s",
				bidStyle.Render(fmt.Sprintf("%-14.8f", l.Price)),
				fmt.Sprintf("%.8f", l.Amount),
				dimStyle.Render(l.Exchange))
		} else {
			bid = fmt.Sprintf("%-38s", "")
		}
		if i < len(b.data.Asks) {
			l := b.data.Asks[i]
			ask = fmt.Sprintf("%s %-12s %-10s",
				askStyle.Render(fmt.Sprintf("%-14.8f", l.Price)),
				fmt.Sprintf("%.8f", l.Amount),
				dimStyle.Render(l.Exchange))
		}
		result += "  " + bid + "   " + ask + "\n"
	}

	result += dimStyle.Render("  "+strings.Repeat("─", 76)) + "\n"
	result += fmt.Sprintf("  Spread: %s\n",
		headerStyle.Render(fmt.Sprintf("%.8f", b.data.Spread)))

	return result
}
