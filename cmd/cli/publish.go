package main

import (
	"context"
	"fmt"
	"strings"

	"usernotify/pkg/logger"
	"usernotify/pkg/models"
	"usernotify/pkg/rabbitmq"

	"github.com/spf13/cobra"
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish a lifecycle event and wait for the broker to confirm it",
	RunE:  runPublish,
}

func init() {
	publishCmd.Flags().String("type", string(models.EventUserCreated), "Event type (USER_CREATED or USER_DELETED)")
	publishCmd.Flags().Int64("user-id", 0, "User ID, also the partition key")
	publishCmd.Flags().String("email", "", "Recipient email")
	publishCmd.Flags().String("source", "notifyctl", "Event source")
	_ = publishCmd.MarkFlagRequired("user-id")
	_ = publishCmd.MarkFlagRequired("email")
}

func runPublish(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	eventType, _ := cmd.Flags().GetString("type")
	userID, _ := cmd.Flags().GetInt64("user-id")
	email, _ := cmd.Flags().GetString("email")
	source, _ := cmd.Flags().GetString("source")

	event, err := buildEvent(models.EventType(strings.ToUpper(eventType)), userID, email, source)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.PublishTimeout+httpTimeout)
	defer cancel()

	conn, err := rabbitmq.Connect(ctx, cfg.RabbitMQURL, logger.Discard())
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	topology := rabbitmq.Topology{Topic: cfg.UserTopic, Partitions: cfg.TopicPartitions, DeadLetterQueue: cfg.DeadLetterQueue}
	if err := topology.Declare(ch); err != nil {
		return err
	}
	confirmCh, err := rabbitmq.NewConfirmChannel(ch)
	if err != nil {
		return err
	}

	producer := rabbitmq.NewProducer(confirmCh, topology,
		rabbitmq.WithPublishTimeout(cfg.PublishTimeout),
		rabbitmq.WithProducerLogger(logger.Discard()),
	)
	delivery, err := producer.Publish(ctx, event).Wait(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, okStyle.Render("[ok] ")+titleStyle.Render("event delivered"))
	fmt.Fprintln(out, formatDelivery(event, delivery))
	return nil
}

func buildEvent(t models.EventType, userID int64, email, source string) (models.LifecycleEvent, error) {
	switch t {
	case models.EventUserCreated:
		return models.NewUserCreated(userID, email, source), nil
	case models.EventUserDeleted:
		return models.NewUserDeleted(userID, email, source), nil
	default:
		return models.LifecycleEvent{}, fmt.Errorf("unsupported event type %q", t)
	}
}

func formatDelivery(e models.LifecycleEvent, d rabbitmq.Delivery) string {
	rows := [][2]string{
		{"event", e.EventID},
		{"type", string(e.EventType)},
		{"key", e.Key()},
		{"topic", d.Topic},
		{"partition", fmt.Sprint(d.Partition)},
		{"offset", fmt.Sprint(d.Offset)},
		{"timestamp", d.Timestamp.Format("2006-01-02T15:04:05.000Z07:00")},
	}
	var b strings.Builder
	for i, r := range rows {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("  " + dimStyle.Render(labelStyle.Render(r[0])) + r[1])
	}
	return b.String()
}
