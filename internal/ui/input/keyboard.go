// Package input handles keyboard input processing.
package input

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/palemoky/room-chat/internal/ui/model"
)

// HandleKeyPress handles keyboard input and returns whether it was handled.
// Unhandled keys are passed on to the focused text input.
func HandleKeyPress(m model.Model, msg tea.KeyMsg) (bool, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return true, m.Quit()
	case tea.KeyTab:
		m.SetFocus(m.Focus().Next())
		return true, nil
	case tea.KeyShiftTab:
		m.SetFocus(m.Focus().Prev())
		return true, nil
	case tea.KeyCtrlJ:
		m.JoinNow()
		return true, nil
	case tea.KeyEnter:
		return true, handleEnter(m)
	}
	return false, nil
}

// handleEnter submits the focused field.
func handleEnter(m model.Model) tea.Cmd {
	switch m.Focus() {
	case model.FieldUsername:
		return m.Login()
	case model.FieldRoom:
		return m.ApplyRoom()
	case model.FieldToUser:
		m.ApplyToUser()
	case model.FieldMessage:
		m.Publish()
	}
	return nil
}
