package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/goodtune/folio/internal/auth"
	"github.com/goodtune/folio/internal/config"
	"github.com/spf13/cobra"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage admin users",
}

var userPasswdCmd = &cobra.Command{
	Use:   "passwd USERNAME",
	Short: "Set an admin user's password",
	Long: `Set an admin user's password without knowing the old one. The new
password is read from standard input.`,
	Example: `  echo 'n3w-passw0rd' | folio user passwd admin`,
	Args:    cobra.ExactArgs(1),
	RunE:    runUserPasswd,
}

func init() {
	userCmd.AddCommand(userPasswdCmd)
	rootCmd.AddCommand(userCmd)
}

func runUserPasswd(cmd *cobra.Command, args []string) error {
	username := args[0]

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	password, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && password == "" {
		return fmt.Errorf("failed to read password: %w", err)
	}
	password = strings.TrimRight(password, "\r\n")
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	ctx := context.Background()
	account, err := store.AdminUsers().Get(ctx, username)
	if err != nil {
		return fmt.Errorf("failed to find user %q: %w", username, err)
	}

	if err := auth.SetPassword(ctx, store.AdminUsers(), account, password); err != nil {
		return fmt.Errorf("failed to set password: %w", err)
	}

	_, _ = color.New(color.FgGreen).Fprintf(os.Stdout, "✅ Password updated for %s\n", username)
	return nil
}
