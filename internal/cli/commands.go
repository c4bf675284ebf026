package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/Mikespro21/ARC/internal/infrastructure/config"
)

const (
	defaultServer  = "http://localhost:8080"
	defaultTimeout = 10 * time.Second
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	var (
		server  string
		timeout time.Duration
		client  *Client
	)

	rootCmd := &cobra.Command{
		Use:   "crowdctl",
		Short: "crowdctl - Crowdlike engine client",
		Long: `crowdctl talks to a running Crowdlike engine over its HTTP API.
It lists agents and leaderboards, places paper trades and asks the coach.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if server == "" {
				return fmt.Errorf("--server must not be empty")
			}
			client = NewClient(strings.TrimRight(server, "/"), timeout)
			return nil
		},
	}

	envServer := os.Getenv("CROWDCTL_SERVER")
	if envServer == "" {
		envServer = defaultServer
	}
	rootCmd.PersistentFlags().StringVar(&server, "server", envServer, "Engine base URL (env CROWDCTL_SERVER)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", defaultTimeout, "Request timeout")

	get := func() *Client { return client }

	rootCmd.AddCommand(newLeaderboardCmd(get))
	rootCmd.AddCommand(newCrowdCmd(get))
	rootCmd.AddCommand(newAgentsCmd(get))
	rootCmd.AddCommand(newCreateCmd(get))
	rootCmd.AddCommand(newTradeCmd(get))
	rootCmd.AddCommand(newMarketCmd(get))
	rootCmd.AddCommand(newCoachCmd(get))
	rootCmd.AddCommand(newVersionCmd(get))

	return rootCmd
}

func newLeaderboardCmd(client func() *Client) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:       "leaderboard [period]",
		Short:     "Show the leaderboard for daily, weekly, monthly or yearly",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"daily", "weekly", "monthly", "yearly"},
		RunE: func(cmd *cobra.Command, args []string) error {
			period := "daily"
			if len(args) == 1 {
				period = strings.ToLower(args[0])
			}
			entries, err := client().Leaderboard(cmd.Context(), period, limit)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), RenderLeaderboard(period, entries))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum rows to show (0 for all)")
	return cmd
}

func newCrowdCmd(client func() *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "crowd",
		Short: "Show aggregated crowd metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			metrics, err := client().Crowd(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), RenderCrowd(metrics))
			return nil
		},
	}
}

func newAgentsCmd(client func() *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List your agents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			agents, limit, err := client().Agents(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), RenderAgents(agents, limit))
			return nil
		},
	}
}

func newCreateCmd(client func() *Client) *cobra.Command {
	var (
		params  CreateAgentParams
		balance string
	)
	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create and fund a new agent",
		Long: `Create a new agent funded from your USDC balance.
Example: crowdctl create Momentum --strategy swing --risk 40 --balance 500`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := decimal.NewFromString(balance)
			if err != nil {
				return fmt.Errorf("invalid balance %q: %w", balance, err)
			}
			params.Name = args[0]
			params.InitialBalance = amount

			created, err := client().CreateAgent(cmd.Context(), params)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%s) with %s\n", created.Name, created.BotID, usd(created.InitialBalance))
			fmt.Fprintf(cmd.OutOrStdout(), "Agent ID: %s\n", created.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&params.Strategy, "strategy", "balanced", "Strategy type")
	cmd.Flags().StringVar(&params.CopyMode, "copy-mode", "", "Copy mode: mirror, rules or strategy")
	cmd.Flags().IntVar(&params.Riskness, "risk", 50, "Riskness 0-100")
	cmd.Flags().StringVar(&balance, "balance", "100", "Initial USDC balance")
	return cmd
}

func newTradeCmd(client func() *Client) *cobra.Command {
	var (
		params TradeParams
		amount string
	)
	cmd := &cobra.Command{
		Use:   "trade AGENT_ID buy|sell ASSET",
		Short: "Place a paper trade",
		Long: `Place a paper trade at the current market price.
--amount is in units of the asset for both sides; the USDC cost is amount x price.
Example: crowdctl trade 3f2a... buy bitcoin --amount 0.005`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			side := strings.ToLower(args[1])
			if side != "buy" && side != "sell" {
				return fmt.Errorf("side must be buy or sell, got %q", args[1])
			}
			value, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", amount, err)
			}
			params.Type = side
			params.Asset = strings.ToLower(args[2])
			params.Amount = value

			trade, err := client().Trade(cmd.Context(), args[0], params)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), RenderTrade(trade))
			return nil
		},
	}
	cmd.Flags().StringVar(&amount, "amount", "", "Asset units to buy or sell")
	cmd.Flags().StringVar(&params.Reason, "reason", "", "Optional note stored with the trade")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newMarketCmd(client func() *Client) *cobra.Command {
	var ids string
	cmd := &cobra.Command{
		Use:   "market",
		Short: "Show market data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := client().Market(cmd.Context(), ids)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), RenderMarket(data))
			return nil
		},
	}
	cmd.Flags().StringVar(&ids, "ids", "", "Comma separated coin ids (default set when empty)")
	return cmd
}

func newCoachCmd(client func() *Client) *cobra.Command {
	var agentID string
	cmd := &cobra.Command{
		Use:   "coach MESSAGE...",
		Short: "Ask the coach a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reply, err := client().Coach(cmd.Context(), strings.Join(args, " "), agentID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), RenderCoach(reply))
			return nil
		},
	}
	cmd.Flags().StringVar(&agentID, "agent", "", "Focus the advice on one agent")
	return cmd
}

func newVersionCmd(client func() *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show client and server version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "crowdctl %s\n", config.AppVersion)
			serverVersion, err := client().Version(cmd.Context())
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "server: %s\n", mutedStyle.Render("unreachable"))
				return
			}
			fmt.Fprintf(cmd.OutOrStdout(), "server: %s\n", serverVersion)
		},
	}
}
