/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/idhub/authserver/config"
	"github.com/idhub/authserver/internal/mail"
	"github.com/idhub/authserver/internal/mq"
	"github.com/spf13/cobra"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consumes the mail queue and delivers OTP emails over SMTP",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.LoadConfig()

		queue, err := mq.New(cmd.Context(), cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to connect to queue: %v\n", err)
			os.Exit(1)
		}
		defer queue.Close()

		deliverer := mail.NewSMTPDeliverer(cfg.SMTP)

		log.Printf("worker consuming %q via %s", cfg.MQ.MailQueue, cfg.MQ.Backend)
		err = queue.Subscribe(cmd.Context(), cfg.MQ.MailQueue, func(ctx context.Context, msg mq.Message) error {
			var job mail.Job
			if err := json.Unmarshal(msg.Data, &job); err != nil {
				// Malformed jobs are dropped, not redelivered forever.
				log.Printf("dropping malformed mail job %s: %v", msg.ID, err)
				return nil
			}
			if err := deliverer.Deliver(job); err != nil {
				log.Printf("deliver mail job %s: %v", msg.ID, err)
				return err
			}
			return nil
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "worker error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
