package tui

import (
	"github.com/gdamore/tcell/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tis24dev/diskwatch/internal/types"
)

// diskwatch color palette
var (
	// Primary accent
	AccentTeal = tcell.NewRGBColor(20, 184, 166) // #14B8A6

	// Neutral colors
	PanelDark = tcell.NewRGBColor(40, 40, 40)    // #282828
	MutedGray = tcell.NewRGBColor(128, 128, 128) // #808080

	// Status colors
	SuccessGreen  = tcell.NewRGBColor(34, 197, 94)  // #22C55E
	ErrorRed      = tcell.NewRGBColor(239, 68, 68)  // #EF4444
	WarningYellow = tcell.NewRGBColor(234, 179, 8)  // #EAB308
	InfoBlue      = tcell.NewRGBColor(59, 130, 246) // #3B82F6
)

// Symbols
const (
	SymbolSuccess = "✓"
	SymbolError   = "✗"
	SymbolWarning = "⚠"
	SymbolBullet  = "•"
)

// SeverityColor returns the color a severity is drawn with.
func SeverityColor(s types.Severity) tcell.Color {
	switch s {
	case types.SeverityOK:
		return SuccessGreen
	case types.SeverityWarn:
		return WarningYellow
	case types.SeverityCritical:
		return ErrorRed
	default:
		return MutedGray
	}
}

// SeveritySymbol returns the marker shown next to a severity.
func SeveritySymbol(s types.Severity) string {
	switch s {
	case types.SeverityOK:
		return SymbolSuccess
	case types.SeverityWarn:
		return SymbolWarning
	case types.SeverityCritical:
		return SymbolError
	default:
		return SymbolBullet
	}
}

// SeverityLabel renders a severity for humans ("Critical", "Warn", "Ok").
func SeverityLabel(s types.Severity) string {
	return cases.Title(language.English).String(s.String())
}
