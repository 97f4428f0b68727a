package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nate-a11y/lrpbolt-sub001/internal/config"
	"github.com/nate-a11y/lrpbolt-sub001/internal/db"
	"github.com/nate-a11y/lrpbolt-sub001/internal/domain"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := db.Migrate(cfg.DatabaseURL); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func smsCmd(env *environment) *cobra.Command {
	var (
		to, body string
		now      bool
	)
	cmd := &cobra.Command{
		Use:   "sms",
		Short: "Enqueue a direct SMS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := env.open(ctx)
			if err != nil {
				return err
			}
			defer env.close()

			msg, err := a.Service.EnqueueSMS(ctx, domain.CreateSMSRequest{To: to, Body: body})
			if err != nil {
				return err
			}
			if now {
				if err := a.SMS.Process(ctx, msg.ID, ""); err != nil {
					return err
				}
				if msg, err = a.Service.GetOutbound(ctx, msg.ID); err != nil {
					return err
				}
			}
			return printJSON(cmd, msg)
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "Recipient phone number")
	cmd.Flags().StringVar(&body, "body", "", "Message text")
	cmd.Flags().BoolVar(&now, "now", false, "Deliver inline instead of waiting for a worker")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("body")
	return cmd
}

func enqueueCmd(env *environment) *cobra.Command {
	var (
		emails, tokens, phones []string
		ticket                 domain.Ticket
		link                   string
		now                    bool
	)
	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Enqueue a ticket notification work item",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			req := domain.CreateWorkItemRequest{
				Targets: rawTargets(tokens, emails, phones),
				Context: domain.TicketContext{Ticket: ticket, Link: link},
			}
			if err := req.Validate(); err != nil {
				return err
			}

			a, err := env.open(ctx)
			if err != nil {
				return err
			}
			defer env.close()

			w, err := a.Service.EnqueueWorkItem(ctx, req)
			if err != nil {
				return err
			}
			if now {
				if err := a.Notify.Process(ctx, w.ID, ""); err != nil {
					return err
				}
				if w, err = a.Service.GetWorkItem(ctx, w.ID); err != nil {
					return err
				}
			}
			return printJSON(cmd, w)
		},
	}
	cmd.Flags().StringSliceVar(&emails, "email", nil, "Email target (repeatable)")
	cmd.Flags().StringSliceVar(&tokens, "push", nil, "FCM token target (repeatable)")
	cmd.Flags().StringSliceVar(&phones, "sms", nil, "Phone number target (repeatable)")
	cmd.Flags().StringVar(&ticket.Title, "title", "", "Ticket title")
	cmd.Flags().StringVar(&ticket.Description, "description", "", "Ticket description")
	cmd.Flags().StringVar(&ticket.Status, "status", "", "Ticket status (default open)")
	cmd.Flags().StringVar(&ticket.Category, "category", "", "Ticket category")
	cmd.Flags().StringVar(&link, "link", "", "Deep link to the ticket")
	cmd.Flags().BoolVar(&now, "now", false, "Dispatch inline instead of waiting for a worker")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func rawTargets(tokens, emails, phones []string) []domain.RawTarget {
	targets := make([]domain.RawTarget, 0, len(tokens)+len(emails)+len(phones))
	for _, t := range tokens {
		targets = append(targets, domain.RawTarget{Type: domain.ChannelPush, To: t})
	}
	for _, e := range emails {
		targets = append(targets, domain.RawTarget{Type: domain.ChannelEmail, To: e})
	}
	for _, p := range phones {
		targets = append(targets, domain.RawTarget{Type: domain.ChannelSMS, To: p})
	}
	return targets
}

func statusCmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "status <id>",
		Short: "Show a work item or outbound message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := env.open(ctx)
			if err != nil {
				return err
			}
			defer env.close()

			w, err := a.Service.GetWorkItem(ctx, args[0])
			if err == nil {
				return printJSON(cmd, w)
			}
			if !errors.Is(err, domain.ErrNotFound) {
				return err
			}
			msg, err := a.Service.GetOutbound(ctx, args[0])
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			return printJSON(cmd, msg)
		},
	}
}

func processCmd(env *environment) *cobra.Command {
	var (
		kind    string
		eventID string
	)
	cmd := &cobra.Command{
		Use:   "process <id>",
		Short: "Run one queued document through its pipeline now",
		Long: `Process claims the document through the idempotency guard exactly as a
worker would, so a document that was already handled is left untouched.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := env.open(ctx)
			if err != nil {
				return err
			}
			defer env.close()

			id := args[0]
			switch kind {
			case "notify":
				if err := a.Notify.Process(ctx, id, eventID); err != nil {
					return err
				}
				w, err := a.Service.GetWorkItem(ctx, id)
				if err != nil {
					return err
				}
				return printJSON(cmd, w)
			case "sms":
				if err := a.SMS.Process(ctx, id, eventID); err != nil {
					return err
				}
				msg, err := a.Service.GetOutbound(ctx, id)
				if err != nil {
					return err
				}
				return printJSON(cmd, msg)
			default:
				return fmt.Errorf("unknown kind %q (want notify or sms)", kind)
			}
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "notify", "Document kind: notify or sms")
	cmd.Flags().StringVar(&eventID, "event-id", "", "Trigger event id used for deduplication")
	return cmd
}
