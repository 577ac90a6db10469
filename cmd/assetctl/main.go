// Command assetctl runs file asset maintenance from the shell. Every mutating
// command is a dry run unless --apply is given.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go-lms/internal/common/models"
	"go-lms/internal/config"
	"go-lms/internal/database"
	"go-lms/internal/dispatch"
	"go-lms/internal/features/audit"
	"go-lms/internal/features/bulk_operation"
	"go-lms/internal/features/file"
	"go-lms/internal/features/integrity"
	"go-lms/internal/features/policy"
	"go-lms/internal/features/reference"
	"go-lms/internal/features/relocation"
	"go-lms/internal/features/unused"
	"go-lms/internal/logger"
	"go-lms/internal/storage"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// deps are the components a command can use, filled by fx.Populate.
type deps struct {
	Scanner   *reference.Scanner
	Finder    *unused.Finder
	Validator *integrity.Validator
	Executor  *bulk_operation.Executor
}

var (
	apply       bool
	jsonOutput  bool
	xlsxPath    string
	timeout     time.Duration
	gracePeriod time.Duration
	category    string
	limit       int
	repairSize  bool
	confirmBulk bool
	backupRefs  bool
)

// withDeps starts a minimal fx application, runs fn and stops the application.
func withDeps(fn func(ctx context.Context, d *deps) error) error {
	var d deps
	app := fx.New(
		fx.NopLogger,
		fx.Provide(
			config.LoadConfig,
			logger.NewLogger,
			database.NewDatabase,
			storage.NewStore,
			dispatch.NewDispatchQueue,
			file.NewFileRepository,
			audit.NewAuditRepository,
			audit.NewAuditService,
			reference.NewRegistryFromDB,
			reference.NewReferenceScanner,
			policy.NewPolicyEngine,
			relocation.NewMover,
			bulk_operation.NewBulkExecutor,
			integrity.NewValidator,
			unused.NewUnusedFinder,
		),
		fx.Populate(&d.Scanner, &d.Finder, &d.Validator, &d.Executor),
	)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer stopCancel()
		if err := app.Stop(stopCtx); err != nil {
			zap.L().Warn("Shutdown failed", zap.Error(err))
		}
	}()
	return fn(ctx, &d)
}

func emit(v any) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	fmt.Printf("%+v\n", v)
	return nil
}

func writeXLSX(data []byte, name string) error {
	if xlsxPath == "" {
		return nil
	}
	if err := os.WriteFile(xlsxPath, data, 0o640); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "wrote %s (%s)\n", xlsxPath, name)
	return nil
}

func buildFilter() (file.Filter, error) {
	return file.NewFilterBuilder().Category(category).Build()
}

var rootCmd = &cobra.Command{
	Use:           "assetctl",
	Short:         "File asset maintenance",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var unusedCmd = &cobra.Command{
	Use:   "unused",
	Short: "List unreferenced files older than the grace period",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withDeps(func(ctx context.Context, d *deps) error {
			filter, err := buildFilter()
			if err != nil {
				return err
			}
			result, err := d.Finder.Find(ctx, unused.Query{GracePeriod: gracePeriod, Filter: filter, Limit: limit})
			if err != nil {
				return err
			}
			if xlsxPath != "" {
				data, name, err := unused.Workbook(result)
				if err != nil {
					return err
				}
				if err := writeXLSX(data, name); err != nil {
					return err
				}
			}
			if jsonOutput {
				return emit(result)
			}
			for _, f := range result.Files {
				fmt.Printf("%s\t%d\t%s\t%s\n", f.ID, f.Size, f.CreatedAt.Format(time.RFC3339), f.Path)
			}
			fmt.Printf("unused=%d wasted_bytes=%d scan_failures=%d\n",
				result.Analysis.UnusedFiles, result.Analysis.WastedBytes, len(result.Analysis.ScanFailures))
			return nil
		})
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check metadata against the physical store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withDeps(func(ctx context.Context, d *deps) error {
			req := integrity.Request{
				Checks:      integrity.AllChecks(),
				AutoRepair:  integrity.AutoRepair{Size: repairSize},
				DryRun:      !apply,
				Concurrency: 4,
			}
			if category != "" {
				filter, err := buildFilter()
				if err != nil {
					return err
				}
				req.Filter = &filter
			}
			report, err := d.Validator.Validate(ctx, req)
			if err != nil {
				return err
			}
			if xlsxPath != "" {
				data, name, err := integrity.Workbook(report)
				if err != nil {
					return err
				}
				if err := writeXLSX(data, name); err != nil {
					return err
				}
			}
			if jsonOutput {
				return emit(report)
			}
			for c, issues := range report.Issues {
				fmt.Printf("%s\t%d\n", c, len(issues))
			}
			fmt.Printf("files=%d issues=%d dry_run=%t\n", report.Total, report.IssueCount(), report.DryRun)
			if report.Repairs != nil {
				fmt.Printf("repairs attempted=%d successful=%d failed=%d\n",
					report.Repairs.Attempted, report.Repairs.Successful, report.Repairs.Failed)
			}
			return nil
		})
	},
}

var deleteUnusedCmd = &cobra.Command{
	Use:   "delete-unused",
	Short: "Delete the files the unused finder reports",
	Long:  "Finds unused files and deletes them with skip_referenced handling, so a file referenced since the scan is kept.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withDeps(func(ctx context.Context, d *deps) error {
			filter, err := buildFilter()
			if err != nil {
				return err
			}
			result, err := d.Finder.Find(ctx, unused.Query{GracePeriod: gracePeriod, Filter: filter, Limit: limit})
			if err != nil {
				return err
			}
			if len(result.Files) == 0 {
				fmt.Println("nothing to delete")
				return nil
			}

			ids := make([]string, 0, len(result.Files))
			for _, f := range result.Files {
				ids = append(ids, f.ID)
			}
			report, err := d.Executor.Run(ctx, bulk_operation.Request{
				Operation:       models.OperationDelete,
				IDs:             ids,
				DryRun:          !apply,
				ContinueOnError: true,
				Flags:           policy.Flags{ConfirmBulk: confirmBulk},
				Delete: bulk_operation.DeleteOptions{
					ReferenceHandling: policy.SkipReferenced,
					DeletePhysical:    true,
					BackupReferences:  backupRefs,
				},
			})
			if report != nil {
				if perr := emit(report); perr != nil {
					return perr
				}
			}
			return err
		})
	},
}

var referencesCmd = &cobra.Command{
	Use:   "references <file-id>",
	Short: "Show the entities referencing a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDeps(func(ctx context.Context, d *deps) error {
			return emit(d.Scanner.Scan(ctx, args[0]))
		})
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "JSON output")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Minute, "Overall command timeout")
	rootCmd.PersistentFlags().StringVar(&category, "category", "", "Restrict to one category")

	for _, c := range []*cobra.Command{unusedCmd, deleteUnusedCmd} {
		c.Flags().DurationVar(&gracePeriod, "grace", 0, "Grace period (default from ASSET_UNUSED_GRACE_PERIOD)")
		c.Flags().IntVar(&limit, "limit", 0, "Maximum number of files")
	}
	for _, c := range []*cobra.Command{unusedCmd, validateCmd} {
		c.Flags().StringVar(&xlsxPath, "xlsx", "", "Also write the report to this xlsx file")
	}

	validateCmd.Flags().BoolVar(&repairSize, "repair-size", false, "Repair stored sizes that differ from disk")
	validateCmd.Flags().BoolVar(&apply, "apply", false, "Write repairs instead of previewing them")

	deleteUnusedCmd.Flags().BoolVar(&apply, "apply", false, "Delete instead of previewing")
	deleteUnusedCmd.Flags().BoolVar(&confirmBulk, "confirm-bulk", false, "Confirm deleting more files than the bulk threshold")
	deleteUnusedCmd.Flags().BoolVar(&backupRefs, "backup-references", false, "Snapshot referencing entities before deletion")

	rootCmd.AddCommand(unusedCmd, validateCmd, deleteUnusedCmd, referencesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
