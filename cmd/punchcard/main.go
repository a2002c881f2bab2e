package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/lmoretti/punchcard/internal/bundle"
	"github.com/lmoretti/punchcard/internal/client"
	"github.com/lmoretti/punchcard/internal/config"
	"github.com/lmoretti/punchcard/internal/db"
	"github.com/lmoretti/punchcard/internal/git"
	"github.com/lmoretti/punchcard/internal/git/hooks"
	"github.com/lmoretti/punchcard/internal/models"
	"github.com/lmoretti/punchcard/internal/report"
	"github.com/lmoretti/punchcard/internal/tracker"
	"github.com/lmoretti/punchcard/internal/tui"
)

type services struct {
	cfg      *config.Config
	database *sql.DB
	tracker  *tracker.Service
	reports  *report.Service
	bundles  *bundle.Service
}

func openServices() (*services, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if err := config.EnsureDirectories(); err != nil {
		return nil, err
	}

	dbPath, err := config.DatabasePath()
	if err != nil {
		return nil, err
	}

	database, err := db.OpenAndMigrate(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	return &services{
		cfg:      cfg,
		database: database,
		tracker:  tracker.NewService(database),
		reports:  report.NewService(database, cfg.Location()),
		bundles:  bundle.NewService(database),
	}, nil
}

func (s *services) close() {
	s.database.Close()
}

var rootCmd = &cobra.Command{
	Use:   "punchcard",
	Short: "Local time tracker with tasks, reports and export",
	Long:  `Punchcard tracks units of work against tasks and folders, derives monthly reports, and exports/imports the full dataset.`,
	Run: func(cmd *cobra.Command, args []string) {
		svcs, err := openServices()
		if err != nil {
			fatal(err)
		}
		defer svcs.close()

		store := client.NewStore(svcs.tracker, svcs.bundles)
		defer store.Close()

		if err := tui.Run(store, svcs.reports, svcs.bundles, svcs.cfg); err != nil {
			fatal(err)
		}
	},
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a new time entry",
	Run: func(cmd *cobra.Command, args []string) {
		svcs, err := openServices()
		if err != nil {
			fatal(err)
		}
		defer svcs.close()

		taskID := stringFlag(cmd, "task")
		memo := stringFlag(cmd, "memo")

		entry, err := svcs.tracker.StartEntry(taskID, memo)
		if err != nil {
			fatal(err)
		}

		fmt.Printf("Started entry %s at %s\n", entry.ID, entry.StartedAt.Local().Format("15:04:05"))
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running time entry",
	Run: func(cmd *cobra.Command, args []string) {
		svcs, err := openServices()
		if err != nil {
			fatal(err)
		}
		defer svcs.close()

		running, err := svcs.tracker.RunningEntry()
		if err != nil {
			fatal(err)
		}
		if running == nil {
			fmt.Println("No entry is running.")
			os.Exit(1)
		}

		memo := stringFlag(cmd, "memo")
		entry, err := svcs.tracker.StopEntry(running.ID, memo)
		if err != nil {
			fatal(err)
		}

		secs := entry.EndedAt.Sub(entry.StartedAt) / time.Second
		fmt.Printf("Stopped entry %s after %s\n", entry.ID, formatSeconds(int64(secs)))
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the running entry, if any",
	Run: func(cmd *cobra.Command, args []string) {
		svcs, err := openServices()
		if err != nil {
			fatal(err)
		}
		defer svcs.close()

		running, err := svcs.tracker.RunningEntry()
		if err != nil {
			fatal(err)
		}
		if running == nil {
			fmt.Println("No entry running.")
			return
		}

		name := models.UnclassifiedName
		if running.Task != nil {
			name = running.Task.Name
		}
		elapsed := svcs.tracker.ElapsedSeconds(&running.TimeEntry)
		fmt.Printf("%s  %s (started %s)\n", formatSeconds(elapsed), name,
			running.StartedAt.Local().Format("15:04:05"))
	},
}

var reportCmd = &cobra.Command{
	Use:   "report [year month]",
	Short: "Print the monthly report",
	Args:  cobra.RangeArgs(0, 2),
	Run: func(cmd *cobra.Command, args []string) {
		svcs, err := openServices()
		if err != nil {
			fatal(err)
		}
		defer svcs.close()

		now := time.Now()
		year, month := now.Year(), int(now.Month())
		if len(args) == 2 {
			if year, err = strconv.Atoi(args[0]); err != nil {
				fatal(fmt.Errorf("invalid year %q", args[0]))
			}
			if month, err = strconv.Atoi(args[1]); err != nil || month < 1 || month > 12 {
				fatal(fmt.Errorf("invalid month %q", args[1]))
			}
		}

		rep, err := svcs.reports.Monthly(year, month)
		if err != nil {
			fatal(err)
		}

		fmt.Printf("%04d-%02d\n", rep.Year, rep.Month)
		fmt.Printf("Total: %s over %d entries\n", formatSeconds(rep.TotalSeconds), rep.TotalEntries)
		fmt.Printf("Working days: %d, average per day: %s\n", rep.WorkingDays, formatSeconds(rep.AverageSecondsPerDay))
		if len(rep.TaskSummaries) > 0 {
			fmt.Println("\nBy task:")
			for _, ts := range rep.TaskSummaries {
				fmt.Printf("  %-30s %10s  (%d entries)\n", ts.TaskName, formatSeconds(ts.TotalSeconds), ts.EntryCount)
			}
		}
		if len(rep.DailySummaries) > 0 {
			fmt.Println("\nBy day:")
			for _, ds := range rep.DailySummaries {
				fmt.Printf("  %s  %10s  (%d entries)\n", ds.Date, formatSeconds(ds.TotalSeconds), ds.EntryCount)
			}
		}
	},
}

var monthsCmd = &cobra.Command{
	Use:   "months",
	Short: "List months that have time entries, most recent first",
	Run: func(cmd *cobra.Command, args []string) {
		svcs, err := openServices()
		if err != nil {
			fatal(err)
		}
		defer svcs.close()

		months, err := svcs.reports.AvailableMonths()
		if err != nil {
			fatal(err)
		}

		for _, ym := range months {
			fmt.Printf("%04d-%02d\n", ym.Year, ym.Month)
		}
	},
}

var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export the full dataset as a JSON bundle",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		svcs, err := openServices()
		if err != nil {
			fatal(err)
		}
		defer svcs.close()

		compress, _ := cmd.Flags().GetBool("compress")

		path := ""
		if len(args) == 1 {
			path = args[0]
		} else {
			if err := os.MkdirAll(svcs.cfg.ExportOutput, 0755); err != nil {
				fatal(err)
			}
			name := fmt.Sprintf("punchcard-%s.json", time.Now().Format("20060102-150405"))
			if compress {
				name += ".xz"
			}
			path = filepath.Join(svcs.cfg.ExportOutput, name)
		}

		b, err := svcs.bundles.Export()
		if err != nil {
			fatal(err)
		}
		if err := bundle.WriteFile(path, b); err != nil {
			fatal(err)
		}

		fmt.Printf("Exported %d tasks, %d entries, %d artifacts to %s\n",
			len(b.Tasks), len(b.TimeEntries), len(b.Artifacts), path)
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a JSON bundle",
	Long: `Import a bundle exported by punchcard.

Replace mode (default) clears the local tasks, artifacts, entries and
links before applying the bundle. --merge keeps local data and adds new
records, skipping any whose id already exists.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		svcs, err := openServices()
		if err != nil {
			fatal(err)
		}
		defer svcs.close()

		merge, _ := cmd.Flags().GetBool("merge")

		b, err := bundle.ReadFile(args[0])
		if err != nil {
			fatal(err)
		}

		result, err := svcs.bundles.Import(b, merge)
		if err != nil {
			fatal(err)
		}

		fmt.Printf("Imported: %d tasks, %d entries, %d artifacts\n",
			result.TasksImported, result.EntriesImported, result.ArtifactsImported)
	},
}

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks",
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	Run: func(cmd *cobra.Command, args []string) {
		svcs, err := openServices()
		if err != nil {
			fatal(err)
		}
		defer svcs.close()

		includeArchived, _ := cmd.Flags().GetBool("all")
		tasks, err := svcs.tracker.ListTasks(includeArchived)
		if err != nil {
			fatal(err)
		}

		for _, t := range tasks {
			suffix := ""
			if t.Archived {
				suffix = " (archived)"
			}
			fmt.Printf("%s  %s%s\n", t.ID, t.Name, suffix)
		}
	},
}

var taskAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a task",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		svcs, err := openServices()
		if err != nil {
			fatal(err)
		}
		defer svcs.close()

		input := models.CreateTask{
			Name:        args[0],
			Color:       stringFlag(cmd, "color"),
			Description: stringFlag(cmd, "description"),
			FolderID:    stringFlag(cmd, "folder"),
		}

		task, err := svcs.tracker.CreateTask(input)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("Created task %s (%s)\n", task.Name, task.ID)
	},
}

var taskArchiveCmd = &cobra.Command{
	Use:   "archive <id>",
	Short: "Archive or restore a task",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		svcs, err := openServices()
		if err != nil {
			fatal(err)
		}
		defer svcs.close()

		restore, _ := cmd.Flags().GetBool("restore")
		if err := svcs.tracker.ArchiveTask(args[0], !restore); err != nil {
			fatal(err)
		}

		if restore {
			fmt.Println("Task restored.")
		} else {
			fmt.Println("Task archived.")
		}
	},
}

var folderCmd = &cobra.Command{
	Use:   "folder",
	Short: "Manage folders",
}

var folderListCmd = &cobra.Command{
	Use:   "list",
	Short: "List folders",
	Run: func(cmd *cobra.Command, args []string) {
		svcs, err := openServices()
		if err != nil {
			fatal(err)
		}
		defer svcs.close()

		folders, err := svcs.tracker.ListFolders()
		if err != nil {
			fatal(err)
		}

		for _, f := range folders {
			fmt.Printf("%s  %s\n", f.ID, f.Name)
		}
	},
}

var folderAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a folder",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		svcs, err := openServices()
		if err != nil {
			fatal(err)
		}
		defer svcs.close()

		input := models.CreateFolder{
			Name:  args[0],
			Color: stringFlag(cmd, "color"),
		}

		folder, err := svcs.tracker.CreateFolder(input)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("Created folder %s (%s)\n", folder.Name, folder.ID)
	},
}

var folderRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a folder, moving its tasks to unclassified",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		svcs, err := openServices()
		if err != nil {
			fatal(err)
		}
		defer svcs.close()

		if err := svcs.tracker.DeleteFolder(args[0]); err != nil {
			fatal(err)
		}
		fmt.Println("Folder deleted. Its tasks are now unclassified.")
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Record the HEAD commit as an artifact",
	Long: `Record the HEAD commit of the current repository as a commit
artifact. While an entry is running the commit is linked to it. Meant to
be called from git hooks; see "punchcard hooks install".`,
	Run: func(cmd *cobra.Command, args []string) {
		svcs, err := openServices()
		if err != nil {
			fatal(err)
		}
		defer svcs.close()

		result, err := git.NewIngestor(svcs.tracker).IngestHead()
		if err != nil {
			fatal(err)
		}

		verbose, _ := cmd.Flags().GetBool("verbose")
		if !verbose {
			return
		}
		if result.Skipped {
			fmt.Printf("Skipped: %s\n", result.SkipReason)
			return
		}
		if result.Linked {
			fmt.Printf("Recorded %.8s and linked it to the running entry\n", result.CommitHash)
		} else {
			fmt.Printf("Recorded %.8s (no entry running)\n", result.CommitHash)
		}
	},
}

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Record past commits of the current repository as artifacts",
	Run: func(cmd *cobra.Command, args []string) {
		svcs, err := openServices()
		if err != nil {
			fatal(err)
		}
		defer svcs.close()

		count, _ := cmd.Flags().GetInt("count")
		branch, _ := cmd.Flags().GetString("branch")
		sinceStr, _ := cmd.Flags().GetString("since")

		opts := git.HistoryOptions{Count: count, Branch: branch}
		if sinceStr != "" {
			since, err := time.Parse("2006-01-02", sinceStr)
			if err != nil {
				fatal(fmt.Errorf("invalid --since %q, expected YYYY-MM-DD", sinceStr))
			}
			opts.Since = since
		}

		result, err := git.NewIngestor(svcs.tracker).Backfill(opts)
		if err != nil {
			fatal(err)
		}

		fmt.Printf("Found %d commits in %s: %d recorded, %d already known\n",
			result.TotalFound, result.RepoPath, result.Recorded, result.Skipped)
	},
}

var hooksCmd = &cobra.Command{
	Use:   "hooks",
	Short: "Manage git hooks that feed commits into the ledger",
}

var hooksInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install global git hooks",
	Run: func(cmd *cobra.Command, args []string) {
		if err := hooks.Install(); err != nil {
			fatal(err)
		}
		fmt.Println("Git hooks installed. Commits will now be recorded automatically.")
	},
}

var hooksUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove global git hooks",
	Run: func(cmd *cobra.Command, args []string) {
		if err := hooks.Uninstall(); err != nil {
			fatal(err)
		}
		fmt.Println("Git hooks removed.")
	},
}

func init() {
	startCmd.Flags().String("task", "", "Task id to record against")
	startCmd.Flags().String("memo", "", "Memo for the entry")
	stopCmd.Flags().String("memo", "", "Replace the entry memo on stop")

	exportCmd.Flags().Bool("compress", false, "xz-compress the bundle")
	importCmd.Flags().Bool("merge", false, "Merge with local data instead of replacing it")

	taskListCmd.Flags().Bool("all", false, "Include archived tasks")
	taskAddCmd.Flags().String("color", "", "Hex color (#RRGGBB)")
	taskAddCmd.Flags().String("description", "", "Task description")
	taskAddCmd.Flags().String("folder", "", "Folder id")
	taskArchiveCmd.Flags().Bool("restore", false, "Restore instead of archive")

	folderAddCmd.Flags().String("color", "", "Hex color (#RRGGBB)")

	ingestCmd.Flags().BoolP("verbose", "v", false, "Print what happened")
	backfillCmd.Flags().Int("count", 0, "Limit to the N most recent commits")
	backfillCmd.Flags().String("since", "", "Only commits since this date (YYYY-MM-DD)")
	backfillCmd.Flags().String("branch", "", "Limit to one branch")

	taskCmd.AddCommand(taskListCmd, taskAddCmd, taskArchiveCmd)
	folderCmd.AddCommand(folderListCmd, folderAddCmd, folderRmCmd)
	hooksCmd.AddCommand(hooksInstallCmd, hooksUninstallCmd)

	rootCmd.AddCommand(startCmd, stopCmd, statusCmd, reportCmd, monthsCmd, exportCmd, importCmd,
		taskCmd, folderCmd, ingestCmd, backfillCmd, hooksCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// stringFlag returns nil when the flag was left empty.
func stringFlag(cmd *cobra.Command, name string) *string {
	v, _ := cmd.Flags().GetString(name)
	if v == "" {
		return nil
	}
	return &v
}

func formatSeconds(secs int64) string {
	h := secs / 3600
	m := (secs % 3600) / 60
	s := secs % 60
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}
