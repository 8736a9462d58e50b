package entity

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var amountPrinter = message.NewPrinter(language.English)

// ToPaise converts a rupee amount to integer paise, rounding half away from zero.
func ToPaise(rupees float64) int64 {
	return int64(math.Round(rupees * 100))
}

// FromPaise converts integer paise back to rupees.
func FromPaise(paise int64) float64 {
	return float64(paise) / 100
}

// FormatINR renders an amount as "INR 123,000.00"
func FormatINR(amount float64) string {
	return amountPrinter.Sprintf("INR %.2f", FromPaise(ToPaise(amount)))
}
