package main

import (
	"context"
	"fmt"
	"io"

	"noticeboard/internal/common/security"
	"noticeboard/internal/domain/repository"
	"noticeboard/internal/platform/config"
	"noticeboard/internal/platform/database"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"
)

// Demo credentials the seed data is documented with.
const (
	defaultStudentPassword = "student123"
	defaultAdminPassword   = "admin123"
	defaultSuperPassword   = "super123"
)

type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "noticectl",
		Short:         "Operator tooling for the notice board service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newHashPasswordCommand())
	cmd.AddCommand(newResetPasswordsCommand())
	cmd.AddCommand(newMigrateCommand())
	return cmd
}

func newHashPasswordCommand() *cobra.Command {
	var defaults bool
	cmd := &cobra.Command{
		Use:   "hash-password [password...]",
		Short: "Print bcrypt hashes suitable for the students and admins tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			if defaults {
				args = append(args, defaultStudentPassword, defaultAdminPassword, defaultSuperPassword)
			}
			if len(args) == 0 {
				return fmt.Errorf("give at least one password or --defaults")
			}
			return runHashPasswords(cmd.OutOrStdout(), args)
		},
	}
	cmd.Flags().BoolVar(&defaults, "defaults", false, "Also hash the demo passwords")
	return cmd
}

func newResetPasswordsCommand() *cobra.Command {
	var opts resetOptions
	cmd := &cobra.Command{
		Use:   "reset-passwords",
		Short: "Set every student, section admin and super-admin password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			pool, err := database.Connect(cmd.Context(), cfg.DBConnStr)
			if err != nil {
				return err
			}
			defer pool.Close()
			return runResetPasswords(cmd.Context(), pool, opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.Student, "student", defaultStudentPassword, "Password for every student")
	cmd.Flags().StringVar(&opts.Admin, "admin", defaultAdminPassword, "Password for every section admin")
	cmd.Flags().StringVar(&opts.Super, "super", defaultSuperPassword, "Password for the super-admin")
	return cmd
}

func newMigrateCommand() *cobra.Command {
	var status bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if status {
				return database.MigrationStatus(cmd.Context(), cfg.DBConnStr)
			}
			if err := database.Migrate(cmd.Context(), cfg.DBConnStr); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
	cmd.Flags().BoolVar(&status, "status", false, "Show migration status instead of applying")
	return cmd
}

func runHashPasswords(out io.Writer, passwords []string) error {
	for _, p := range passwords {
		hash, err := security.HashPassword(p)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\t%s\n", p, hash)
	}
	return nil
}

type resetOptions struct {
	Student string
	Admin   string
	Super   string
}

// runResetPasswords rewrites all three tiers in one transaction, so a failure
// leaves every password as it was.
func runResetPasswords(ctx context.Context, db txBeginner, opts resetOptions, out io.Writer) error {
	if opts.Student == "" || opts.Admin == "" || opts.Super == "" {
		return fmt.Errorf("passwords must not be empty")
	}
	studentHash, err := security.HashPassword(opts.Student)
	if err != nil {
		return err
	}
	adminHash, err := security.HashPassword(opts.Admin)
	if err != nil {
		return err
	}
	superHash, err := security.HashPassword(opts.Super)
	if err != nil {
		return err
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	users := repository.NewPgUserRepository(tx)

	students, err := users.UpdateStudentPasswords(ctx, studentHash)
	if err != nil {
		tx.Rollback(ctx)
		return err
	}
	admins, err := users.UpdateAdminPasswords(ctx, adminHash, false)
	if err != nil {
		tx.Rollback(ctx)
		return err
	}
	supers, err := users.UpdateAdminPasswords(ctx, superHash, true)
	if err != nil {
		tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit password reset: %w", err)
	}

	fmt.Fprintf(out, "updated %d students\n", students)
	fmt.Fprintf(out, "updated %d section admins\n", admins)
	fmt.Fprintf(out, "updated %d super admins\n", supers)
	return nil
}
