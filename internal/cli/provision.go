package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/groupscribe/groupscribe/internal/config"
	"github.com/groupscribe/groupscribe/internal/store"
)

var (
	provisionPhone      string
	provisionAdminPhone string
	provisionEmail      string
	provisionBotID      string
	provisionMaxInvites int
)

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Register a bot client (phone, owning admin, invite quota)",
	Run:   runProvision,
}

func init() {
	provisionCmd.Flags().StringVar(&provisionPhone, "phone", "", "Bot phone number (digits only)")
	provisionCmd.Flags().StringVar(&provisionAdminPhone, "admin-phone", "", "Owning admin phone number")
	provisionCmd.Flags().StringVar(&provisionEmail, "email", "", "Admin email for notices")
	provisionCmd.Flags().StringVar(&provisionBotID, "bot-id", "", "Bot identity (defaults to the phone number)")
	provisionCmd.Flags().IntVar(&provisionMaxInvites, "max-invites", 1, "Maximum concurrent group admissions")
	provisionCmd.MarkFlagRequired("phone")
}

func runProvision(cmd *cobra.Command, args []string) {
	printHeader("🔑 groupscribe provision")

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Config error: %v\n", err)
		os.Exit(1)
	}
	s, err := store.Open(cfg.Store.Path)
	if err != nil {
		fmt.Printf("Store error: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()

	botID := provisionBotID
	if botID == "" {
		botID = provisionPhone
	}
	client := &store.BotClient{
		Phone:          provisionPhone,
		AdminPhone:     provisionAdminPhone,
		Email:          provisionEmail,
		BotID:          botID,
		MaxInviteCount: provisionMaxInvites,
	}

	ctx := context.Background()
	clients := store.NewBotClients()
	err = s.ExecTx(ctx, func(q store.Queryer) error {
		return clients.Create(ctx, q, client)
	})
	if err != nil {
		fmt.Printf("Provision error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Bot client created: %s\n", client.ID)
	fmt.Printf("  Phone:       %s\n", client.Phone)
	fmt.Printf("  Bot ID:      %s\n", client.BotID)
	fmt.Printf("  Max invites: %d\n", client.MaxInviteCount)
}
