package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/groupscribe/groupscribe/internal/config"
	"github.com/groupscribe/groupscribe/internal/store"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("🏷️ groupscribe Version")
		fmt.Printf("Version: %s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and store status",
	Run:   runStatus,
}

func runStatus(cmd *cobra.Command, args []string) {
	printHeader("📊 groupscribe Status")
	fmt.Printf("Version: %s\n", version)

	path, err := config.ConfigPath()
	if err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			fmt.Println("Config:  ✓ Found (" + path + ")")
		} else {
			fmt.Println("Config:  ✗ Not found (" + path + ")")
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Config error: %v\n", err)
		os.Exit(1)
	}
	if cfg.Provider.APIKey != "" {
		fmt.Println("API Key: ✓ Found")
	} else {
		fmt.Println("API Key: ✗ Not found")
	}
	if cfg.Crypto.MessageKey != "" {
		fmt.Println("Msg Key: ✓ Found")
	} else {
		fmt.Println("Msg Key: ✗ Not found (ingestion will refuse to store messages)")
	}

	if _, err := os.Stat(cfg.WhatsApp.DevicePath); err == nil {
		fmt.Println("WhatsApp: ✓ Device session found (no QR needed)")
	} else {
		fmt.Println("WhatsApp: ✗ Not paired yet (QR will be written to " + cfg.WhatsApp.QRPath + ")")
	}

	s, err := store.Open(cfg.Store.Path)
	if err != nil {
		fmt.Printf("Store:   ✗ %v\n", err)
		return
	}
	defer s.Close()

	ctx := context.Background()
	var clients, chats, messages int
	s.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM bot_clients`).Scan(&clients)
	s.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM chats WHERE is_deleted = 0`).Scan(&chats)
	s.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&messages)
	fmt.Printf("Store:   ✓ %s\n", cfg.Store.Path)
	fmt.Printf("  Bot clients:  %d\n", clients)
	fmt.Printf("  Active chats: %d\n", chats)
	fmt.Printf("  Fragments:    %d\n", messages)
}
