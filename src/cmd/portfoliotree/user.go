package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"portfoliotree/app/src/pkg/model"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var userAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Create a user; the password is read from the terminal or stdin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runUserAdd(cmd.Context(), args[0])
	},
}

func init() {
	userCmd.AddCommand(userAddCmd)
}

func runUserAdd(ctx context.Context, username string) error {
	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	password, err := readPassword(fmt.Sprintf("Password for %s: ", username))
	if err != nil {
		return err
	}
	id, err := a.dataManager.UserManager.UserAdd(ctx, model.UserInfo{Username: username, Password: password, Active: true})
	if err != nil {
		return fmt.Errorf("failed to add user: %w", err)
	}
	fmt.Printf("User '%s' added with id %d\n", username, id)
	return nil
}
