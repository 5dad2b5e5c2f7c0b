package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"oncoscan/internal/auth"
	"oncoscan/internal/models"
	"oncoscan/internal/users"
)

type repoOpener func() (*users.Repository, func(), error)

func rootCommand(open repoOpener) *cobra.Command {
	root := &cobra.Command{
		Use:           "oncoscanctl",
		Short:         "OncoScan user administration",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(createAdminCommand(open), setPasswordCommand(open))
	return root
}

func createAdminCommand(open repoOpener) *cobra.Command {
	var fullName string
	cmd := &cobra.Command{
		Use:   "create-admin <username> <password>",
		Short: "Create an administrator account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, done, err := open()
			if err != nil {
				return err
			}
			defer done()

			hash, err := auth.HashPassword(args[1])
			if err != nil {
				return err
			}
			u := models.User{Username: args[0], PasswordHash: hash, FullName: fullName, IsAdmin: true}
			err = repo.Create(cmd.Context(), &u)
			if errors.Is(err, users.ErrDuplicate) {
				fmt.Fprintln(cmd.OutOrStdout(), "User already exists")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Admin user created")
			return nil
		},
	}
	cmd.Flags().StringVar(&fullName, "full-name", "", "display name of the administrator")
	return cmd
}

func setPasswordCommand(open repoOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "set-password <username> <password>",
		Short: "Replace a user's password",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[1] == "" {
				return errors.New("password must not be empty")
			}
			repo, done, err := open()
			if err != nil {
				return err
			}
			defer done()

			hash, err := auth.HashPassword(args[1])
			if err != nil {
				return err
			}
			if _, err := repo.Apply(cmd.Context(), args[0], users.Update{PasswordHash: &hash}); err != nil {
				return fmt.Errorf("set password for %q: %w", args[0], err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Password updated")
			return nil
		},
	}
}
