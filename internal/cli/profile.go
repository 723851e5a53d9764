package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/tixly/tixly/internal/app"
	"github.com/tixly/tixly/internal/profile"
	"github.com/tixly/tixly/pkg/types"
)

func (c *cli) printProfile(p *types.UserProfile) error {
	if c.jsonOut {
		return c.printJSON(p)
	}
	c.printf("Name:   %s\n", p.Name)
	c.printf("Email:  %s\n", p.Email)
	if p.AvatarURL != "" {
		c.printf("Avatar: %s\n", p.AvatarURL)
	}
	return nil
}

func (c *cli) profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show the registration state and profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withCore(cmd, func(ctx context.Context, core *app.App) error {
				st := core.Profiles.Status(ctx)
				if c.jsonOut {
					return c.printJSON(st)
				}
				switch {
				case st.Profile == nil:
					c.printf("Not registered.\n")
					return nil
				case !st.Connected:
					c.printf("Registered, but no wallet is connected.\n")
				}
				return c.printProfile(st.Profile)
			})
		},
	}

	var req profile.RegisterRequest
	register := &cobra.Command{
		Use:   "register",
		Short: "Create or replace the profile for the connected wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withCore(cmd, func(ctx context.Context, core *app.App) error {
				p, err := core.Profiles.Register(ctx, req)
				if err != nil {
					return err
				}
				return c.printProfile(p)
			})
		},
	}
	register.Flags().StringVar(&req.Name, "name", "", "display name")
	register.Flags().StringVar(&req.Email, "email", "", "email address")
	register.Flags().StringVar(&req.AvatarURL, "avatar", "", "avatar image URL")
	_ = register.MarkFlagRequired("name")
	_ = register.MarkFlagRequired("email")

	var name, email, avatar string
	update := &cobra.Command{
		Use:   "update",
		Short: "Change profile fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var upd profile.UpdateRequest
			if cmd.Flags().Changed("name") {
				upd.Name = &name
			}
			if cmd.Flags().Changed("email") {
				upd.Email = &email
			}
			if cmd.Flags().Changed("avatar") {
				upd.AvatarURL = &avatar
			}
			return c.withCore(cmd, func(ctx context.Context, core *app.App) error {
				p, err := core.Profiles.Update(ctx, upd)
				if err != nil {
					return err
				}
				return c.printProfile(p)
			})
		},
	}
	update.Flags().StringVar(&name, "name", "", "display name")
	update.Flags().StringVar(&email, "email", "", "email address")
	update.Flags().StringVar(&avatar, "avatar", "", "avatar image URL")

	logout := &cobra.Command{
		Use:   "logout",
		Short: "Remove the profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withCore(cmd, func(ctx context.Context, core *app.App) error {
				if err := core.Profiles.Logout(ctx); err != nil {
					return err
				}
				c.printf("Logged out.\n")
				return nil
			})
		},
	}

	cmd.AddCommand(register, update, logout)
	return cmd
}
