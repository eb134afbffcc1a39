package main

import (
	"errors"

	"github.com/OFFIS-RIT/fundtrace/backend/internal/migrations"
	"github.com/OFFIS-RIT/fundtrace/backend/internal/util"
	"github.com/OFFIS-RIT/fundtrace/backend/pkg/logger"

	"github.com/spf13/cobra"
)

var errNoDatabaseURL = errors.New("DATABASE_URL is not set")

func databaseURL() (string, error) {
	url := util.GetEnv("DATABASE_URL")
	if url == "" {
		return "", errNoDatabaseURL
	}
	return url, nil
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := databaseURL()
			if err != nil {
				return err
			}
			if err := migrations.Up(url); err != nil {
				return err
			}
			logger.Info("[Migrate] Database is up to date")
			return nil
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := databaseURL()
			if err != nil {
				return err
			}
			if err := migrations.Down(url, steps); err != nil {
				return err
			}
			logger.Info("[Migrate] Rolled back", "steps", steps)
			return nil
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	cmd.AddCommand(up, down)
	return cmd
}
