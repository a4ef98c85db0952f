package common

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Report width for the operator tools
const DefaultWidth = 80

// PrintSeparator prints a separator line with the specified character and width
func PrintSeparator(char string, width int) {
	fmt.Println(strings.Repeat(char, width))
}

func PrintSeparatorNewline(char string, width int) {
	fmt.Println("\n" + strings.Repeat(char, width))
}

// PrintHeader prints a formatted header with title and separators
func PrintHeader(title string, width int) {
	PrintSeparatorNewline("=", width)
	fmt.Println(title)
	PrintSeparator("=", width)
}

func PrintFooter(message string, width int) {
	PrintSeparatorNewline("=", width)
	fmt.Println(message)
	fmt.Println(strings.Repeat("=", width) + "\n")
}

// PrintBoxSeparator prints a box-drawing separator line (for sub-sections)
func PrintBoxSeparator(width int) {
	fmt.Println("├" + strings.Repeat("─", width))
}

// BoxPrefix returns the appropriate box-drawing prefix for list items
func BoxPrefix(isLast bool) string {
	if isLast {
		return "└  "
	}
	return "│  "
}

// FormatUsd renders a ledger amount with two decimals and a dollar sign
func FormatUsd(amount decimal.Decimal) string {
	return "$" + amount.StringFixed(2)
}

// ShortAddress keeps the head and tail of a wallet address for tables
func ShortAddress(address string) string {
	if address == "" {
		return "none"
	}
	if len(address) > 16 {
		return address[:8] + "..." + address[len(address)-6:]
	}
	return address
}
