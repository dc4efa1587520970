package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"fsrollback/internal/app"
	"fsrollback/internal/config"
	"fsrollback/internal/rollback"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer app.Close().
func newApp() (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewApp(cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

var rootCmd = &cobra.Command{
	Use:   "fsrb",
	Short: "Apply filesystem changes all at once or not at all",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		hostID := uuid.New().String()
		cfg := config.NewConfig(hostID, defaults.BaseDir)

		if err := config.Init(defaults.ConfigPath, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults.ConfigPath)
		fmt.Printf("Host ID: %s\n", hostID)
		fmt.Printf("Base Dir: %s\n", defaults.BaseDir)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults.ConfigPath)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults.ConfigPath)
		fmt.Printf("Host ID:     %s\n", cfg.HostID)
		fmt.Printf("Base Dir:    %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:     %s\n", cfg.LogDir)
		fmt.Printf("Staging Dir: %s\n", cfg.Staging.StagingDir)
		fmt.Printf("Database:    %s %s\n", cfg.Database.Type, cfg.Database.DataDir)
		fmt.Printf("Max Workers: %d\n", cfg.Commit.MaxWorkers)
		return nil
	},
}

var applyCmd = &cobra.Command{
	Use:   "apply PLAN",
	Short: "Apply a change plan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Apply(args[0])
		if err != nil {
			if res != nil {
				fmt.Println(describeFailure(res, err))
			}
			return err
		}

		fmt.Printf("Commit #%d applied: %d modified, %d new dir(s), %d new file(s)\n",
			res.CommitID, res.Noted, res.NewDirs, res.NewFiles)
		return nil
	},
}

// describeFailure summarizes a failed commit. A rollback that could not
// restore every file leaves the filesystem changed, so the backups holding
// the old content are listed instead.
func describeFailure(res *app.Result, err error) string {
	var restoreErr *rollback.RestoreError
	if !errors.As(err, &restoreErr) {
		return fmt.Sprintf("Commit #%d rolled back, filesystem unchanged", res.CommitID)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Commit #%d rollback incomplete, manual recovery required:", res.CommitID)
	for _, re := range restoreErrors(err) {
		if re.Backup != "" {
			fmt.Fprintf(&b, "\n  %s: previous content kept in %s", re.Path, re.Backup)
		} else {
			fmt.Fprintf(&b, "\n  %s: could not be removed", re.Path)
		}
	}
	return b.String()
}

// restoreErrors collects every *RestoreError in err's tree.
func restoreErrors(err error) []*rollback.RestoreError {
	if re, ok := err.(*rollback.RestoreError); ok {
		return []*rollback.RestoreError{re}
	}
	switch u := err.(type) {
	case interface{ Unwrap() []error }:
		var all []*rollback.RestoreError
		for _, e := range u.Unwrap() {
			all = append(all, restoreErrors(e)...)
		}
		return all
	case interface{ Unwrap() error }:
		return restoreErrors(u.Unwrap())
	}
	return nil
}

var checkCmd = &cobra.Command{
	Use:   "check PLAN",
	Short: "Validate and stage a change plan without applying it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Check(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Plan OK: %d change(s) would be applied\n", res.Changes())
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View commit history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		commits, err := a.History(limit)
		if err != nil {
			return err
		}

		if len(commits) == 0 {
			fmt.Println("No commits recorded.")
			return nil
		}

		for _, c := range commits {
			duration := ""
			if c.FinishedAt != nil {
				d := c.FinishedAt.Sub(c.StartedAt)
				duration = d.Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %s  %-10s  %3d/%3d/%3d  %-8s  %s\n",
				c.ID,
				c.StartedAt.Format("2006-01-02 15:04:05"),
				c.Status,
				c.Noted, c.NewDirs, c.NewFiles,
				duration,
				c.PlanPath,
			)
			if c.Error != "" {
				fmt.Printf("    %s\n", c.Error)
			}
		}
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of commits to show")
}
