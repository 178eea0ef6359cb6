package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"go-face-notify/internal/infrastructure/config"
	"go-face-notify/internal/infrastructure/logger"
	"go-face-notify/internal/infrastructure/stream"
)

var (
	publishFile    string
	publishRequest bool
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish a stream batch document to the recognition subject",
	Long: `Publish reads a stream batch trigger ({"Records":[...]}) from a file
and publishes it on the configured NATS subject. With --request it waits
for the relay's response and prints it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if publishFile == "" {
			return fmt.Errorf("--file is required")
		}
		batch, err := os.ReadFile(publishFile)
		if err != nil {
			return fmt.Errorf("read %s: %w", publishFile, err)
		}

		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		lCfg, err := cfg.Logging.LoggerConfig()
		if err != nil {
			return err
		}
		log := logger.NewLogrusLogger(lCfg)

		nc, err := stream.Connect(cfg.Stream.NATS, log)
		if err != nil {
			return err
		}
		defer nc.Close()

		subject := cfg.Stream.NATS.Subject
		if !publishRequest {
			if err := stream.Publish(nc, subject, batch); err != nil {
				return err
			}
			log.Infof("Published %d bytes to %s", len(batch), subject)
			return nil
		}

		msg, err := nc.Request(subject, batch, 10*time.Second)
		if err != nil {
			return fmt.Errorf("request %s: %w", subject, err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(msg.Data))
		return nil
	},
}

func init() {
	publishCmd.Flags().StringVarP(&publishFile, "file", "f", "", "stream batch JSON file")
	publishCmd.Flags().BoolVar(&publishRequest, "request", false, "wait for and print the relay response")
}
