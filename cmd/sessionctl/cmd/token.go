package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mentorspark/sessiond/internal/client"
)

var tokenCmd = &cobra.Command{
	Use:   "token <session-name>",
	Short: "Mint a signaling token for a meeting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		grant, err := client.FetchSessionToken(cmd.Context(), serverURL, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("userId:    %s\nmeetingId: %s\ntoken:     %s\n",
			grant.UserID, grant.MeetingID, grant.Token)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
}
