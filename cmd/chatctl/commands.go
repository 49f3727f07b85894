// File: cmd/chatctl/commands.go
package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/iyunix/go-relaychat/internal/auth"
	"github.com/iyunix/go-relaychat/internal/chat"
	"github.com/iyunix/go-relaychat/internal/config"
	"github.com/iyunix/go-relaychat/internal/database"
	"github.com/iyunix/go-relaychat/internal/identity"
	"github.com/iyunix/go-relaychat/internal/logger"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create the store and its tables if missing",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return runSetup(cmd.OutOrStdout(), cfg, commandLogger(cmd, cfg))
	},
}

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Load the store the way the server does and print every entity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return runDump(cmd.Context(), cmd.OutOrStdout(), cfg, commandLogger(cmd, cfg))
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print entity counts and skipped rows",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return runStats(cmd.Context(), cmd.OutOrStdout(), cfg, commandLogger(cmd, cfg))
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token <peer>",
	Short: "Issue a relay token for a peer server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ttl, _ := cmd.Flags().GetDuration("ttl")
		server, _ := cmd.Flags().GetUint32("server")
		return runToken(cmd.OutOrStdout(), cfg, args[0], server, ttl)
	},
}

func init() {
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "token lifetime")
	tokenCmd.Flags().Uint32("server", 0, "server id of the peer (recorded in the token)")
}

func runSetup(w io.Writer, cfg *config.Config, log logger.Logger) error {
	_, closeStore, err := database.OpenGateway(cfg, log)
	if err != nil {
		return err
	}
	if err := closeStore(); err != nil {
		return err
	}
	fmt.Fprintf(w, "store ready (driver %s)\n", cfg.StoreDriver)
	return nil
}

// restore rebuilds a model from the configured store without writing to it.
func restore(ctx context.Context, cfg *config.Config, log logger.Logger) (*chat.Controller, *chat.Report, error) {
	gateway, closeStore, err := database.OpenGateway(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	defer closeStore()

	ids, err := identity.New(cfg.IDStrategy, cfg.ServerID)
	if err != nil {
		return nil, nil, err
	}
	controller, err := chat.NewController(&chat.Config{
		ServerID:      cfg.ServerID,
		MaxIDAttempts: cfg.MaxIDAttempts,
		Clock:         time.Now,
	}, chat.NewModel(), gateway, ids, log, nil)
	if err != nil {
		return nil, nil, err
	}
	loader, err := chat.NewLoader(controller, gateway, log, nil)
	if err != nil {
		return nil, nil, err
	}
	report, err := loader.Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	return controller, report, nil
}

func runDump(ctx context.Context, w io.Writer, cfg *config.Config, log logger.Logger) error {
	controller, _, err := restore(ctx, cfg, log)
	if err != nil {
		return err
	}
	model := controller.Model()

	fmt.Fprintln(w, "users:")
	for user := range model.Users() {
		fmt.Fprintf(w, "  %s %q created %s\n", user.ID, user.Name, humanize.Time(user.Created))
	}
	fmt.Fprintln(w, "conversations:")
	for conv := range model.Conversations() {
		fmt.Fprintf(w, "  %s %q owner %s, %d participants, created %s\n",
			conv.ID, conv.Title, conv.Owner, len(conv.Participants), humanize.Time(conv.Created))
		for msg := range model.Chain(conv.ID) {
			fmt.Fprintf(w, "    %s by %s: %q\n", msg.ID, msg.Author, msg.Content)
		}
	}
	return nil
}

func runStats(ctx context.Context, w io.Writer, cfg *config.Config, log logger.Logger) error {
	controller, report, err := restore(ctx, cfg, log)
	if err != nil {
		return err
	}
	counts := controller.Model().Counts()
	fmt.Fprintf(w, "server %d (%s)\n", cfg.ServerID, cfg.StoreDriver)
	fmt.Fprintf(w, "users:         %s\n", humanize.Comma(int64(counts.Users)))
	fmt.Fprintf(w, "conversations: %s\n", humanize.Comma(int64(counts.Conversations)))
	fmt.Fprintf(w, "messages:      %s\n", humanize.Comma(int64(counts.Messages)))
	fmt.Fprintf(w, "skipped rows:  %s\n", humanize.Comma(int64(report.Skipped())))
	return nil
}

func runToken(w io.Writer, cfg *config.Config, peer string, server uint32, ttl time.Duration) error {
	if cfg.RelaySecret == "" {
		return fmt.Errorf("RELAY_SECRET is not configured")
	}
	token, err := auth.GenerateRelayToken(peer, server, []byte(cfg.RelaySecret), ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, token)
	return nil
}
