package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mentorspark/sessiond/internal/client"
	"github.com/mentorspark/sessiond/internal/domain"
)

var joinToken string

var joinCmd = &cobra.Command{
	Use:   "join <session-name>",
	Short: "Join a meeting and watch the signaling exchange",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		grant, err := client.FetchSessionToken(ctx, serverURL, args[0])
		if err != nil {
			return err
		}
		if joinToken != "" {
			grant.Token = joinToken
		}
		fmt.Printf("joining %s as %s\n", grant.MeetingID, grant.UserID)

		sess := client.NewSession(client.Config{
			ServerURL: serverURL,
			Token:     grant.Token,
			UserID:    domain.ParticipantID(grant.UserID),
			MeetingID: domain.RoomID(grant.MeetingID),
		}, client.NewSilentSource())
		if err := sess.Start(ctx); err != nil {
			return err
		}
		defer sess.Close()

		for {
			select {
			case <-ctx.Done():
				fmt.Println("leaving")
				return nil
			case ev, ok := <-sess.Events():
				if !ok {
					return nil
				}
				if ev.Err != nil {
					return fmt.Errorf("session %s: %w", ev.State, ev.Err)
				}
				fmt.Printf("state: %s\n", ev.State)
			case <-sess.Done():
				return nil
			}
		}
	},
}

func init() {
	joinCmd.Flags().StringVar(&joinToken, "token", "", "use a pre-minted signaling token")
	rootCmd.AddCommand(joinCmd)
}
