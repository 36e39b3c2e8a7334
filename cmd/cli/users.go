package main

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"usernotify/pkg/models"

	"github.com/spf13/cobra"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage users through userdb-api",
}

var usersCreateCmd = &cobra.Command{
	Use:   "create <name> <email> <age>",
	Short: "Create a user (publishes USER_CREATED)",
	Args:  cobra.ExactArgs(3),
	RunE:  runUsersCreate,
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users",
	RunE:  runUsersList,
}

var usersDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a user (publishes USER_DELETED)",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersDelete,
}

func init() {
	usersCmd.AddCommand(usersCreateCmd, usersListCmd, usersDeleteCmd)
}

func usersURL(base string) string {
	return strings.TrimRight(base, "/") + "/api/users"
}

func runUsersCreate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	age, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("invalid age %q", args[2])
	}

	var user models.User
	req := models.CreateUserRequest{Name: args[0], Email: args[1], Age: &age}
	if err := doJSON(cmd.Context(), newHTTPClient(), http.MethodPost, usersURL(cfg.APIURL), req, &user); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s created user %d %s\n", okStyle.Render("[ok]"), user.ID, dimStyle.Render(user.Email))
	return nil
}

func runUsersList(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	var users []models.User
	if err := doJSON(cmd.Context(), newHTTPClient(), http.MethodGet, usersURL(cfg.APIURL), nil, &users); err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), formatUsers(users))
	return nil
}

func runUsersDelete(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
		return fmt.Errorf("invalid user id %q", args[0])
	}

	if err := doJSON(cmd.Context(), newHTTPClient(), http.MethodDelete, usersURL(cfg.APIURL)+"/"+args[0], nil, nil); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s deleted user %s\n", okStyle.Render("[ok]"), args[0])
	return nil
}

func formatUsers(users []models.User) string {
	if len(users) == 0 {
		return dimStyle.Render("  no users") + "\n"
	}
	var b strings.Builder
	b.WriteString(dimStyle.Render(fmt.Sprintf("  %-6s %-24s %-32s %4s", "ID", "NAME", "EMAIL", "AGE")) + "\n")
	for _, u := range users {
		fmt.Fprintf(&b, "  %-6d %-24s %-32s %4d\n", u.ID, u.Name, u.Email, u.Age)
	}
	return b.String()
}
