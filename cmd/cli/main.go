package main

import (
	"fmt"
	"os"
	"time"

	"usernotify/pkg/config"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	dimStyle   = lipgloss.NewStyle().Faint(true)
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	labelStyle = lipgloss.NewStyle().Width(12)
)

var httpTimeout = 5 * time.Second

var rootCmd = &cobra.Command{
	Use:           "notifyctl",
	Short:         "Operate the user notification pipeline",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("api-url", "", "userdb-api base URL (overrides API_URL env var)")
	rootCmd.PersistentFlags().String("notify-url", "", "notification-service base URL (overrides NOTIFY_URL env var)")
	rootCmd.PersistentFlags().DurationVar(&httpTimeout, "timeout", httpTimeout, "HTTP request timeout")

	rootCmd.AddCommand(publishCmd, sendMailCmd, healthCmd, usersCmd)
}

// loadConfig reads the environment and applies URL flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("api-url") {
		cfg.APIURL, _ = cmd.Flags().GetString("api-url")
	}
	if cmd.Flags().Changed("notify-url") {
		cfg.NotifyURL, _ = cmd.Flags().GetString("notify-url")
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errStyle.Render("[x] ")+err.Error())
		os.Exit(1)
	}
}
