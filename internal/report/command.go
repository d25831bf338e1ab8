package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"metas/internal/config"
	"metas/internal/services"
	"metas/internal/storage"
)

// NewCommand builds the metas-report root command.
func NewCommand(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "metas-report",
		Short:         "Print goal progress and the annual projection",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runCommand,
	}

	flags := cmd.Flags()
	flags.String("start", "", "Period start (YYYY-MM-DD), default Jan 1")
	flags.String("end", "", "Period end (YYYY-MM-DD), default Dec 31")
	flags.IntP("year", "Y", 0, "Calendar year to report (default: current year)")
	flags.String("db", envOr("SQLITE_DB_PATH", "./data/metas.db"), "Path to the SQLite database")
	flags.StringP("categories-file", "C", os.Getenv("CATEGORIES_FILE"), "TOML, YAML or JSON category table")
	flags.StringSliceP("report-type", "y", nil, "Export files to write: csv, json, pdf")
	flags.StringP("dir", "d", "", "Directory to save the report files (default: current directory)")
	flags.StringP("report-name", "n", "", "Base name for the report files (without extension)")

	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func runCommand(cmd *cobra.Command, _ []string) error {
	opts, dbPath, categoriesFile, err := parseFlags(cmd)
	if err != nil {
		return err
	}

	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("database %s: %w", dbPath, err)
	}

	defaults, err := config.LoadCategories(categoriesFile)
	if err != nil {
		return err
	}

	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		return err
	}
	defer repo.Close()

	goals := services.NewGoalService(repo, defaults)
	if _, err := Run(cmd.Context(), goals, opts, time.Now(), cmd.OutOrStdout()); err != nil {
		pterm.Error.Println(err.Error())
		return err
	}
	return nil
}

func parseFlags(cmd *cobra.Command) (Options, string, string, error) {
	flags := cmd.Flags()
	start, _ := flags.GetString("start")
	end, _ := flags.GetString("end")
	year, _ := flags.GetInt("year")
	dbPath, _ := flags.GetString("db")
	categoriesFile, _ := flags.GetString("categories-file")
	reportTypes, _ := flags.GetStringSlice("report-type")
	dir, _ := flags.GetString("dir")
	reportName, _ := flags.GetString("report-name")

	formats, err := ParseFormats(reportTypes)
	if err != nil {
		return Options{}, "", "", err
	}

	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return Options{}, "", "", err
		}
		dir = cwd
	} else {
		absDir, err := filepath.Abs(dir)
		if err != nil {
			return Options{}, "", "", err
		}
		dir = absDir
	}

	opts := Options{
		Start:      start,
		End:        end,
		Year:       year,
		Formats:    formats,
		Dir:        dir,
		ReportName: reportName,
	}
	return opts, dbPath, categoriesFile, nil
}
