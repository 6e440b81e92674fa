package main

import (
	"fmt"
	"strings"

	"github.com/sevotec/voting-service/adapters/envelope"
	"github.com/spf13/cobra"
)

var (
	keygenBits   int
	keygenPrefix string
)

func init() {
	keygenCmd.Flags().IntVar(&keygenBits, "bits", 2048, "RSA key size")
	keygenCmd.Flags().StringVar(&keygenPrefix, "prefix", "VOTING", "Environment variable prefix")
	rootCmd.AddCommand(keygenCmd)
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an RSA key pair as environment variables",
	RunE: func(cmd *cobra.Command, args []string) error {
		pair, err := envelope.GenerateKeyPair(keygenBits)
		if err != nil {
			return fmt.Errorf("failed to generate key pair: %w", err)
		}

		prefix := strings.ToUpper(keygenPrefix)
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s_PRIVATE_KEY_BASE64=%s\n", prefix, pair.Private)
		fmt.Fprintf(out, "%s_PUBLIC_KEY_BASE64=%s\n", prefix, pair.Public)
		return nil
	},
}
