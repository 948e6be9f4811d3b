package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/Chloe-lh/Social-Gold/internal/config"
	"github.com/Chloe-lh/Social-Gold/internal/model"
)

var (
	nodeTitle        string
	nodeDescription  string
	nodeOutboundUser string
	nodeOutboundPass string
	nodeInboundUser  string
	nodeInboundPass  string
	nodeInactive     bool
)

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Manage federation peers",
}

// node add upserts, so rerunning it rotates a peer's credentials.
var nodeAddCmd = &cobra.Command{
	Use:   "add <base-url>",
	Short: "Register or update a peer node",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if nodeOutboundUser == "" || nodeOutboundPass == "" {
			return errors.New("--outbound-user and --outbound-pass are required")
		}
		if nodeInboundUser == "" || nodeInboundPass == "" {
			return errors.New("--inbound-user and --inbound-pass are required")
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

		hash, err := bcrypt.GenerateFromPassword([]byte(nodeInboundPass), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hashing inbound password: %w", err)
		}
		n := &model.Node{
			ID:          strings.TrimRight(args[0], "/"),
			Title:       nodeTitle,
			Description: nodeDescription,
			AuthUser:    nodeOutboundUser,
			AuthPass:    nodeOutboundPass,
			InboundUser: nodeInboundUser,
			InboundHash: string(hash),
			IsActive:    !nodeInactive,
			Created:     time.Now().UTC(),
		}
		if err := st.UpsertNode(cmd.Context(), n); err != nil {
			return err
		}
		fmt.Println(n.ID)
		return nil
	},
}

var nodeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known peer nodes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		nodes, err := st.ListNodes(cmd.Context(), false)
		if err != nil {
			return err
		}
		for _, n := range nodes {
			state := "active"
			if !n.IsActive {
				state = "inactive"
			}
			fmt.Printf("%s\t%s\t%s\n", n.ID, state, n.Title)
		}
		return nil
	},
}

func init() {
	nodeAddCmd.Flags().StringVar(&nodeTitle, "title", "", "human-readable name for the peer")
	nodeAddCmd.Flags().StringVar(&nodeDescription, "description", "", "notes about the peer")
	nodeAddCmd.Flags().StringVar(&nodeOutboundUser, "outbound-user", "", "username we present to the peer")
	nodeAddCmd.Flags().StringVar(&nodeOutboundPass, "outbound-pass", "", "password we present to the peer")
	nodeAddCmd.Flags().StringVar(&nodeInboundUser, "inbound-user", "", "username the peer presents to us")
	nodeAddCmd.Flags().StringVar(&nodeInboundPass, "inbound-pass", "", "password the peer presents to us")
	nodeAddCmd.Flags().BoolVar(&nodeInactive, "inactive", false, "register the peer without enabling federation")
	nodeCmd.AddCommand(nodeAddCmd, nodeListCmd)
}
