package cli

import (
	"fmt"
	"time"

	"creditline-backend/internal/domain"
	"creditline-backend/internal/security"
	"creditline-backend/internal/utils"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func newCustomerCommand(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "customer",
		Short: "Manage customer accounts",
	}

	var email, name, credits string
	var free int32
	add := &cobra.Command{
		Use:   "add",
		Short: "Create a customer with an opening balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opening, err := decimal.NewFromString(credits)
			if err != nil || opening.IsNegative() {
				return fmt.Errorf("invalid --credits %q", credits)
			}
			if free < 0 {
				return fmt.Errorf("--free-messages must not be negative")
			}
			c := &domain.Customer{Email: email, DisplayName: name, Credits: opening, FreeChatMessages: free}
			if err := s.app.Repos.Customers.Create(cmd.Context(), c); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), c)
		},
	}
	add.Flags().StringVar(&email, "email", "", "Customer email (required)")
	add.Flags().StringVar(&name, "name", "", "Display name")
	add.Flags().StringVar(&credits, "credits", "0", "Opening credit balance")
	add.Flags().Int32Var(&free, "free-messages", 0, "Free chat messages granted")
	add.MarkFlagRequired("email")

	get := &cobra.Command{
		Use:   "get CUSTOMER_ID",
		Short: "Show a customer's balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := s.app.Repos.Customers.GetByID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), c)
		},
	}

	cmd.AddCommand(add, get)
	return cmd
}

func newConversationCommand(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conversation",
		Short: "Register conversations for the billing hook",
	}

	var customerID, operatorID, site string
	add := &cobra.Command{
		Use:   "add",
		Short: "Link a customer and operator in a new conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := s.app.Repos.Customers.GetByID(cmd.Context(), customerID); err != nil {
				return err
			}
			conv := &domain.Conversation{CustomerID: customerID, OperatorID: operatorID, SiteDomain: site}
			if err := s.app.Repos.Conversations.Create(cmd.Context(), conv); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), conv)
		},
	}
	add.Flags().StringVar(&customerID, "customer", "", "Customer ID (required)")
	add.Flags().StringVar(&operatorID, "operator", "", "Operator ID (required)")
	add.Flags().StringVar(&site, "site", "", "Site domain")
	add.MarkFlagRequired("customer")
	add.MarkFlagRequired("operator")

	cmd.AddCommand(add)
	return cmd
}

func newTokenCommand(s *session) *cobra.Command {
	var userID, role string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tm := security.NewTokenManager(s.cfg.JWT.Secret, ttl)
			token, err := tm.GenerateAccessToken(userID, security.Role(role))
			if err != nil {
				return fmt.Errorf("issue token for %s/%s: %w", userID, role, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User ID (required)")
	cmd.Flags().StringVar(&role, "role", string(security.RoleCustomer), "customer, operator, admin or service")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	cmd.MarkFlagRequired("user")
	return cmd
}

func newRefundCommand(s *session) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "refund TRANSACTION_ID",
		Short: "Refund a completed purchase and remove its credits",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			txn, err := s.app.Transactions.RefundTransaction(cmd.Context(), args[0], reason)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), txn)
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Refund reason (required)")
	cmd.MarkFlagRequired("reason")
	return cmd
}

func newChargebackCommand(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chargeback",
		Short: "Open and resolve payment disputes",
	}

	var amount, reason, caseID, notes string
	open := &cobra.Command{
		Use:   "open TRANSACTION_ID",
		Short: "Record a dispute against a completed purchase",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amt, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("invalid --amount %q", amount)
			}
			cb, err := s.app.Transactions.CreateChargeback(cmd.Context(), args[0], reason, amt,
				domain.ChargebackMeta{ProcessorCaseID: caseID, Notes: notes})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), cb)
		},
	}
	open.Flags().StringVar(&amount, "amount", "", "Disputed USD amount (required)")
	open.Flags().StringVar(&reason, "reason", "", "Dispute reason")
	open.Flags().StringVar(&caseID, "case-id", "", "Processor dispute ID")
	open.Flags().StringVar(&notes, "notes", "", "Notes")
	open.MarkFlagRequired("amount")

	var resolution, adjustment, resolveNotes string
	resolve := &cobra.Command{
		Use:   "resolve CHARGEBACK_ID",
		Short: "Close a dispute as won, lost or partial",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			adj, err := decimal.NewFromString(adjustment)
			if err != nil {
				return fmt.Errorf("invalid --adjustment %q", adjustment)
			}
			cb, err := s.app.Transactions.ResolveChargeback(cmd.Context(), args[0],
				domain.ChargebackStatus(resolution), adj, resolveNotes)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), cb)
		},
	}
	resolve.Flags().StringVar(&resolution, "resolution", "", "won, lost or partial (required)")
	resolve.Flags().StringVar(&adjustment, "adjustment", "0", "USD lost on a partial resolution")
	resolve.Flags().StringVar(&resolveNotes, "notes", "", "Resolution notes")
	resolve.MarkFlagRequired("resolution")

	list := &cobra.Command{
		Use:   "list",
		Short: "List every chargeback with totals by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := s.app.Reports.GetAllChargebacks(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}

	cmd.AddCommand(open, resolve, list)
	return cmd
}

func newStatsCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print purchase totals by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := s.app.Reports.GetTransactionStats(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stats)
		},
	}
}

func newEarningsCommand(s *session) *cobra.Command {
	var preset, start, end, typ string
	cmd := &cobra.Command{
		Use:   "earnings OPERATOR_ID",
		Short: "Print an operator's earnings by activity type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := s.app.Reports.GetDateRangePreset(preset)
			if start != "" || end != "" {
				var err error
				if r, err = utils.ParseDateRange(start, end, time.UTC); err != nil {
					return err
				}
			}
			var filter domain.ActivityFilter
			if typ != "" {
				t, err := domain.ParseActivityType(typ)
				if err != nil {
					return err
				}
				filter.Type = t
			}
			report, err := s.app.Reports.GetOperatorEarnings(cmd.Context(), args[0], r, filter)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().StringVar(&preset, "preset", utils.PresetMonthly, "Date range preset")
	cmd.Flags().StringVar(&start, "start", "", "Range start (yyyy-mm-dd)")
	cmd.Flags().StringVar(&end, "end", "", "Range end (yyyy-mm-dd)")
	cmd.Flags().StringVar(&typ, "type", "", "Only this activity type")
	return cmd
}

func newPresetCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:       "preset NAME",
		Short:     "Show the window a date range preset resolves to",
		Args:      cobra.ExactArgs(1),
		ValidArgs: utils.PresetNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			r := s.app.Reports.GetDateRangePreset(args[0])
			if !utils.IsPreset(args[0]) {
				fmt.Fprintf(cmd.ErrOrStderr(), "unknown preset %q, showing monthly\n", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339))
			return nil
		},
	}
}
