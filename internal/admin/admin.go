// Package admin implements authkeeper-admin, the operator command line used
// for actions that have no public API: unlocking accounts, resetting
// passwords, reading the audit trail and applying migrations.
package admin

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/authkeeper/internal/cryptox"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// Options are the seams of the command tree. Zero fields get production
// defaults.
type Options struct {
	Open         func(ctx context.Context, dsn string) (repomanager.RepositoryManager, error)
	ReadPassword func(fd int) ([]byte, error)
	Stdin        io.Reader
	Out          io.Writer
	Err          io.Writer
}

func (o *Options) setDefaults() {
	if o.Open == nil {
		o.Open = repomanager.Open
	}
	if o.ReadPassword == nil {
		o.ReadPassword = term.ReadPassword
	}
	if o.Stdin == nil {
		o.Stdin = os.Stdin
	}
	if o.Out == nil {
		o.Out = os.Stdout
	}
	if o.Err == nil {
		o.Err = os.Stderr
	}
}

type cli struct {
	opts       Options
	dsn        string
	algorithm  string
	bcryptCost int
}

var (
	okLine   = color.New(color.FgGreen)
	failLine = color.New(color.FgRed)
)

// NewRootCommand builds the authkeeper-admin command tree.
func NewRootCommand(opts Options) *cobra.Command {
	opts.setDefaults()
	c := &cli{opts: opts}

	root := &cobra.Command{
		Use:           "authkeeper-admin",
		Short:         "Operator tools for the authkeeper database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(opts.Out)
	root.SetErr(opts.Err)

	root.PersistentFlags().StringVar(&c.dsn, "dsn", os.Getenv("DATABASE_DSN"), "database connection string (default $DATABASE_DSN)")
	root.PersistentFlags().StringVar(&c.algorithm, "password-algorithm", string(cryptox.AlgorithmBcrypt), "hash algorithm for new passwords (bcrypt, argon2id)")
	root.PersistentFlags().IntVar(&c.bcryptCost, "bcrypt-cost", cryptox.DefaultBcryptCost, "bcrypt work factor")

	root.AddCommand(c.unlockCmd(), c.resetPasswordCmd(), c.auditCmd(), c.migrateCmd())
	return root
}

// Execute runs the command tree and reports the outcome in color. It returns
// the process exit code.
func Execute(ctx context.Context, args []string, opts Options) int {
	root := NewRootCommand(opts)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		failLine.Fprintf(root.ErrOrStderr(), "error: %v\n", err)
		return 1
	}
	return 0
}

func (c *cli) open(ctx context.Context) (repomanager.RepositoryManager, error) {
	if c.dsn == "" {
		return nil, errors.New("--dsn is required")
	}
	return c.opts.Open(ctx, c.dsn)
}

func (c *cli) adminService(ctx context.Context) (*services.AdminService, func(), error) {
	repos, err := c.open(ctx)
	if err != nil {
		return nil, nil, err
	}
	hasher, err := cryptox.NewPasswordHasher(cryptox.PasswordAlgorithm(c.algorithm), c.bcryptCost)
	if err != nil {
		repos.Close()
		return nil, nil, err
	}
	log, err := logging.New(logging.FormatText, c.opts.Err)
	if err != nil {
		repos.Close()
		return nil, nil, err
	}
	return services.NewAdminService(repos, hasher, log), func() { repos.Close() }, nil
}

func (c *cli) unlockCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "unlock",
		Short: "Clear an account lockout and its failed login counter",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := c.adminService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			if err := svc.UnlockAccount(cmd.Context(), email); err != nil {
				return fmt.Errorf("unlock %s: %w", email, err)
			}
			okLine.Fprintf(cmd.OutOrStdout(), "unlocked %s\n", email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.MarkFlagRequired("email")
	return cmd
}

// promptPassword reads the new password twice without echo. When stdin is
// not a terminal it falls back to reading two lines.
func (c *cli) promptPassword(w io.Writer) (string, error) {
	read := c.passwordReader()

	fmt.Fprint(w, "New password: ")
	first, err := read()
	fmt.Fprintln(w)
	if err != nil {
		return "", err
	}
	fmt.Fprint(w, "Repeat password: ")
	second, err := read()
	fmt.Fprintln(w)
	if err != nil {
		return "", err
	}

	if first != second {
		return "", errors.New("passwords do not match")
	}
	if !services.StrongPassword(first) {
		return "", errors.New("password " + services.PasswordPolicy)
	}
	return first, nil
}

func (c *cli) passwordReader() func() (string, error) {
	if f, ok := c.opts.Stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return func() (string, error) {
			b, err := c.opts.ReadPassword(int(f.Fd()))
			defer cryptox.WipeByteArray(b)
			return string(b), err
		}
	}
	r := bufio.NewReader(c.opts.Stdin)
	return func() (string, error) {
		line, err := r.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
}

func (c *cli) resetPasswordCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Set a new password and revoke every session of the account",
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := c.promptPassword(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			svc, closeFn, err := c.adminService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			revoked, err := svc.ResetPassword(cmd.Context(), email, password)
			if err != nil {
				return fmt.Errorf("reset password for %s: %w", email, err)
			}
			okLine.Fprintf(cmd.OutOrStdout(), "password reset for %s, %d session(s) revoked\n", email, revoked)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.MarkFlagRequired("email")
	return cmd
}

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			repos, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer repos.Close()

			if err := repos.RunMigrations(cmd.Context()); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			okLine.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}
