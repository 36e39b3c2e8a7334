package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"usernotify/pkg/models"

	"github.com/spf13/cobra"
)

var sendMailCmd = &cobra.Command{
	Use:   "send-mail",
	Short: "Trigger a lifecycle notification through the notification service",
	RunE:  runSendMail,
}

func init() {
	sendMailCmd.Flags().String("email", "", "Recipient email")
	sendMailCmd.Flags().String("type", string(models.EventUserCreated), "Event type (USER_CREATED or USER_DELETED)")
	_ = sendMailCmd.MarkFlagRequired("email")
}

func runSendMail(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	email, _ := cmd.Flags().GetString("email")
	eventType, _ := cmd.Flags().GetString("type")

	if err := sendMail(cmd.Context(), newHTTPClient(), cfg.NotifyURL, email, models.EventType(strings.ToUpper(eventType))); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("[ok] ")+"notification accepted for "+email)
	return nil
}

func sendMail(ctx context.Context, client *http.Client, baseURL, email string, t models.EventType) error {
	req := models.ManualMailRequest{Email: email, EventType: t}
	return doJSON(ctx, client, http.MethodPost, strings.TrimRight(baseURL, "/")+"/api/notifications/send-mail", req, nil)
}
