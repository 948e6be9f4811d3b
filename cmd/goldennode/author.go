package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/Chloe-lh/Social-Gold/internal/config"
	"github.com/Chloe-lh/Social-Gold/internal/model"
)

var (
	authorPassword string
	authorDisplay  string
	authorEmail    string
)

var authorCmd = &cobra.Command{
	Use:   "author",
	Short: "Manage this node's local authors",
}

// Authors join by an admin creating their row; there is no open signup.
// The username doubles as the FQID serial, so it is immutable.
var authorAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Create an approved local author",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if authorPassword == "" {
			return errors.New("--password is required")
		}
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		hash, err := bcrypt.GenerateFromPassword([]byte(authorPassword), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hashing password: %w", err)
		}
		username := args[0]
		display := authorDisplay
		if display == "" {
			display = username
		}
		a := &model.Author{
			ID:           cfg.Site.URL + "/api/authors/" + username,
			Username:     username,
			PasswordHash: string(hash),
			Email:        authorEmail,
			DisplayName:  display,
			Host:         cfg.Site.URL,
			IsApproved:   true,
			Created:      time.Now().UTC(),
		}
		if err := st.CreateAuthor(cmd.Context(), a); err != nil {
			return err
		}
		fmt.Println(a.ID)
		return nil
	},
}

func init() {
	authorAddCmd.Flags().StringVar(&authorPassword, "password", "", "password the author signs in with")
	authorAddCmd.Flags().StringVar(&authorDisplay, "display-name", "", "display name (defaults to the username)")
	authorAddCmd.Flags().StringVar(&authorEmail, "email", "", "contact email")
	authorCmd.AddCommand(authorAddCmd)
}
