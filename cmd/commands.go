package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"review-gateway/core"
	"review-gateway/core/adapter"
	"review-gateway/core/security"

	"github.com/spf13/cobra"
)

func newReviewCommand(ctx *commandContext) *cobra.Command {
	var question, answer, provider string

	cmd := &cobra.Command{
		Use:   "review",
		Short: "Run one review against the configured provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(question) == "" || strings.TrimSpace(answer) == "" {
				return errors.New("--question and --answer are required")
			}
			return ctx.withApp(cmd, func(a *app) error {
				res, err := a.reviewer.Review(cmd.Context(), question, answer, provider)
				if err != nil {
					var rerr *adapter.ReviewError
					if errors.As(err, &rerr) {
						return fmt.Errorf("%s (kind=%s status=%d)", rerr.SafeMessage(), rerr.Kind, rerr.Status)
					}
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), res.Text)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&question, "question", "", "User question")
	cmd.Flags().StringVar(&answer, "answer", "", "Answer to review")
	cmd.Flags().StringVar(&provider, "provider", "", "Override review_provider (anthropic, openrouter, straico)")
	return cmd
}

func newRotationCommand(ctx *commandContext) *cobra.Command {
	rotationCmd := &cobra.Command{
		Use:   "rotation",
		Short: "Inspect and reset key rotation state",
	}
	rotationCmd.AddCommand(newRotationShowCommand(ctx))
	rotationCmd.AddCommand(newRotationResetCommand(ctx))
	return rotationCmd
}

func newRotationShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the next start index of every pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(a *app) error {
				snapshot, err := a.rotator.Snapshot(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(snapshot) == 0 {
					fmt.Fprintln(out, "No rotation state recorded")
					return nil
				}
				pools := make([]string, 0, len(snapshot))
				for pool := range snapshot {
					pools = append(pools, pool)
				}
				sort.Strings(pools)
				for _, pool := range pools {
					fmt.Fprintf(out, "%-32s %d\n", pool, snapshot[pool])
				}
				return nil
			})
		},
	}
}

func newRotationResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <pool>",
		Short: "Reset a pool so the next review starts at key #0",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(a *app) error {
				if err := a.rotator.Reset(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Rotation for %s reset\n", args[0])
				return nil
			})
		},
	}
}

func newOptionsCommand(ctx *commandContext) *cobra.Command {
	optionsCmd := &cobra.Command{
		Use:   "options",
		Short: "Read and write review options",
	}
	optionsCmd.AddCommand(newOptionsGetCommand(ctx))
	optionsCmd.AddCommand(newOptionsSetCommand(ctx))
	return optionsCmd
}

func newOptionsGetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "get [name]",
		Short: "Print one option, or all options when no name is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(a *app) error {
				var v interface{} = a.options.Snapshot()
				if len(args) == 1 {
					masked, ok := a.options.Masked(args[0])
					if !ok {
						return fmt.Errorf("option %s is not set", args[0])
					}
					v = masked
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(v)
			})
		},
	}
}

func newOptionsSetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "set <name> <json>",
		Short:   "Set an option to a JSON value",
		Example: `  review-gateway options set review_provider '"openrouter"'
  review-gateway options set openrouter_api_keys '["sk-or-1","sk-or-2"]'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(a *app) error {
				if err := a.options.Set(cmd.Context(), args[0], json.RawMessage(args[1])); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Option %s saved\n", args[0])
				return nil
			})
		},
	}
}

func newKeysCommand(ctx *commandContext) *cobra.Command {
	keysCmd := &cobra.Command{
		Use:   "keys",
		Short: "API key helpers",
	}
	keysCmd.AddCommand(newKeysEncryptCommand(ctx))
	return keysCmd
}

func newKeysEncryptCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt <plaintext>",
		Short: "Encrypt an API key with SECRET_KEY for storage in a key pool option",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !ctx.config.EncryptionEnabled() {
				return errors.New("SECRET_KEY is not set")
			}
			sp, err := security.NewAESSecretProvider(ctx.config.SecretKey)
			if err != nil {
				return err
			}
			enc, err := core.EncryptKey(sp, strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), enc)
			return nil
		},
	}
}

func newGatewayCommand(ctx *commandContext) *cobra.Command {
	gatewayCmd := &cobra.Command{
		Use:   "gateway",
		Short: "Manage the token guarding /v1/review",
	}
	gatewayCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show whether the gateway token is set",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(a *app) error {
				view := gatewayView(a)
				if !view.AuthEnabled {
					fmt.Fprintln(cmd.OutOrStdout(), "Gateway auth disabled")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Gateway auth enabled (%s)\n", view.TokenPreview)
				return nil
			})
		},
	})
	gatewayCmd.AddCommand(&cobra.Command{
		Use:   "set-token <token>",
		Short: "Set the gateway token; an empty string disables gateway auth",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(a *app) error {
				if err := a.authorizer.SetToken(cmd.Context(), args[0]); err != nil {
					return err
				}
				if a.authorizer.Enabled() {
					fmt.Fprintln(cmd.OutOrStdout(), "Gateway token saved")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "Gateway auth disabled")
				}
				return nil
			})
		},
	})
	return gatewayCmd
}
