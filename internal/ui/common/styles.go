// Package common provides shared styles and utilities for the UI.
package common

import (
	"github.com/charmbracelet/lipgloss"
)

// Icon constants
const (
	FocusMarker = "▸"
	BlankMarker = " "
)

// Lipgloss Styles
var (
	DocStyle     = lipgloss.NewStyle().Margin(1, 2)
	TitleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("228")).Bold(true).Render
	HeaderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("111")).Bold(true)
	LabelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(10)
	BoxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	SSEBoxStyle  = BoxStyle.BorderForeground(lipgloss.Color("39"))
	LogBoxStyle  = BoxStyle.Foreground(lipgloss.Color("46"))
	MutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	ErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	SuccessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	WarnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	BoldStyle    = lipgloss.NewStyle().Bold(true)
)
