// Package ui provides the main entry point for the UI.
package ui

import (
	"github.com/palemoky/room-chat/internal/config"
	"github.com/palemoky/room-chat/internal/ui/handler"
	"github.com/palemoky/room-chat/internal/ui/input"
	"github.com/palemoky/room-chat/internal/ui/model"
	"github.com/palemoky/room-chat/internal/ui/view"
)

// NewChatModel creates a fully wired ChatModel.
func NewChatModel(cfg *config.Config, opts model.Options) *model.ChatModel {
	m := model.NewChatModel(cfg, opts)
	m.SetViewRenderer(view.CreateViewRenderer())
	m.SetKeyHandler(input.HandleKeyPress)
	m.SetEventHandler(handler.HandleEvent)
	return m
}
