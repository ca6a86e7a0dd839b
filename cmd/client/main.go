package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/palemoky/room-chat/internal/config"
	"github.com/palemoky/room-chat/internal/logger"
	"github.com/palemoky/room-chat/internal/ui"
	"github.com/palemoky/room-chat/internal/ui/model"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "room-chat",
		Short:         "Terminal client for the room chat gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("加载配置失败: %w", err)
			}
			if err := applyFlags(cmd, cfg); err != nil {
				return err
			}
			return run(cfg)
		},
	}

	flags := rootCmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "配置文件路径 (yaml)")
	flags.String("server", "", "网关地址，例如 http://localhost:8080")
	flags.Int64("room", 0, "初始房间 ID")
	flags.Int64("to", 0, "默认接收者 userId")
	flags.StringP("username", "u", "", "启动后自动登录的用户名")
	flags.Bool("no-sound", false, "关闭提示音")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// applyFlags 命令行参数覆盖配置文件和环境变量
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("server") {
		cfg.Server.Origin, _ = flags.GetString("server")
	}
	if flags.Changed("room") {
		cfg.Chat.RoomID, _ = flags.GetInt64("room")
	}
	if flags.Changed("to") {
		cfg.Chat.ToUserID, _ = flags.GetInt64("to")
	}
	if flags.Changed("username") {
		cfg.Chat.Username, _ = flags.GetString("username")
	}
	if flags.Changed("no-sound") {
		cfg.Sound.Muted, _ = flags.GetBool("no-sound")
	}
	return cfg.Validate()
}

func run(cfg *config.Config) error {
	if err := logger.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "日志初始化失败: %v\n", err)
	}
	defer logger.Close()

	m := ui.NewChatModel(cfg, model.Options{})
	defer m.Shutdown()

	defer func() {
		if r := recover(); r != nil {
			logger.LogPanic(r)
			panic(r)
		}
	}()

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("启动客户端时出错: %w", err)
	}
	return nil
}
