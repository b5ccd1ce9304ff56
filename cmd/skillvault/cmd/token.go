package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/javi11/skillvault/internal/auth"
)

var (
	tokenUserID string
	tokenName   string
	tokenSkills []string
)

func init() {
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Manage tool connection tokens",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a tool connection token scoped to a set of skills",
		Long: `Create a tool connection token scoped to a set of skills. The token is
printed once; only its digest is stored.`,
		RunE: runTokenCreate,
	}

	createCmd.Flags().StringVar(&tokenUserID, "user", "", "owner of the connection")
	createCmd.Flags().StringVar(&tokenName, "name", "default", "connection name")
	createCmd.Flags().StringSliceVar(&tokenSkills, "skills", nil, "entry ids the token may read")
	_ = createCmd.MarkFlagRequired("user")
	_ = createCmd.MarkFlagRequired("skills")

	tokenCmd.AddCommand(createCmd)
	rootCmd.AddCommand(tokenCmd)
}

func runTokenCreate(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfigAndLogger()
	if err != nil {
		return err
	}

	db, err := initializeDatabase(cfg, slog.Default())
	if err != nil {
		return err
	}
	defer db.Close()

	token, conn, err := auth.NewTokenService(db.Connections).CreateConnection(cmd.Context(), tokenUserID, tokenName, tokenSkills)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Connection %s (%s) for user %s, %d skills\n", conn.ID, conn.Name, conn.UserID, len(conn.AllowedSkillIDs))
	fmt.Fprintf(out, "Token (shown once): %s\n", token)
	return nil
}
