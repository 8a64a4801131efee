package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/congo-pay/timelock/internal/auth"
)

func newSignCmd() *cobra.Command {
	var (
		keyPath   string
		method    string
		body      string
		bodyFile  string
		timestamp int64
	)
	cmd := &cobra.Command{
		Use:   "sign <path>",
		Short: "Print the signature headers for a request",
		Example: `  timelockctl sign --key owner.json --method POST \
    --body '{"amount":1000}' /api/v1/wallets/<owner>/deposit`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			priv, id, err := loadKey(keyPath)
			if err != nil {
				return err
			}
			payload := []byte(body)
			if bodyFile != "" {
				if payload, err = os.ReadFile(bodyFile); err != nil {
					return fmt.Errorf("read body: %w", err)
				}
			}
			if timestamp == 0 {
				timestamp = time.Now().Unix()
			}
			sig := auth.Sign(priv, auth.Request{Method: method, Path: args[0], Timestamp: timestamp, Body: payload})

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %s\n", auth.HeaderIdentity, id)
			fmt.Fprintf(out, "%s: %d\n", auth.HeaderTimestamp, timestamp)
			_, err = fmt.Fprintf(out, "%s: %s\n", auth.HeaderSignature, sig)
			return err
		},
	}
	cmd.Flags().StringVarP(&keyPath, "key", "k", "", "key file written by keygen")
	cmd.Flags().StringVarP(&method, "method", "X", "POST", "HTTP method")
	cmd.Flags().StringVarP(&body, "body", "d", "", "request body")
	cmd.Flags().StringVar(&bodyFile, "body-file", "", "read the request body from a file")
	cmd.Flags().Int64Var(&timestamp, "timestamp", 0, "unix timestamp to sign (default now)")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}
