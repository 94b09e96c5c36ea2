package main

import (
	"context"
	"fmt"
	"log"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/njprem/agri_admin_backend/internal/domain"
	"github.com/njprem/agri_admin_backend/internal/exchange"
	"github.com/njprem/agri_admin_backend/internal/idcache"
)

var loginCmd = &cobra.Command{
	Use:   "login EMAIL",
	Short: "Sign in and print a token for AGRI_API_TOKEN",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password := os.Getenv("AGRI_PASSWORD")
		if password == "" {
			return fmt.Errorf("set AGRI_PASSWORD to sign in")
		}
		res, err := api.Login(cmd.Context(), args[0], password)
		if err != nil {
			return err
		}
		fmt.Println(res.Token)
		return nil
	},
}

func entityFlag(cmd *cobra.Command) (domain.EntityType, error) {
	raw, _ := cmd.Flags().GetString("entity")
	entity, ok := domain.ParseEntityType(raw)
	if !ok {
		return "", fmt.Errorf("--entity must be farmer or employee")
	}
	return entity, nil
}

func newEngine(ctx context.Context, opts ...exchange.Option) *exchange.Engine {
	base := []exchange.Option{
		exchange.WithPolling(cfg.PollInterval, cfg.PollAttempts),
		exchange.WithSaver(exchange.DirSaver{Dir: cfg.DownloadDir}),
		exchange.WithIDCache(idcache.New(nil)),
		exchange.AsSuperAdmin(isSuperAdmin(ctx)),
	}
	return exchange.New(api, append(base, opts...)...)
}

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Upload an .xlsx, .xls or .csv file and follow the import",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	entity, err := entityFlag(cmd)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	engine := newEngine(ctx)
	defer engine.Close()

	name := filepath.Base(args[0])
	if err := engine.SelectFile(exchange.SelectedFile{
		Name:        name,
		ContentType: mime.TypeByExtension(strings.ToLower(filepath.Ext(name))),
		Data:        data,
	}); err != nil {
		return err
	}
	h, err := engine.StartImport(ctx, entity)
	if err != nil {
		return err
	}
	fmt.Printf("import %s submitted\n", h.ID)

	if wait, _ := cmd.Flags().GetBool("wait"); !wait {
		fmt.Println(h.Report().Message())
		return nil
	}

	progress := time.NewTicker(cfg.PollInterval)
	defer progress.Stop()
	for {
		select {
		case <-h.Done():
			printReport(h.Report())
			return nil
		case <-progress.C:
			fmt.Println(h.Report().Message())
		case <-ctx.Done():
			h.Cancel()
			<-h.Done()
			printReport(h.Report())
			return ctx.Err()
		}
	}
}

func printReport(r exchange.Report) {
	fmt.Println(r.Message())
	for _, e := range r.Errors {
		fmt.Printf("  row %d %s: %s\n", e.RowNumber, e.FieldName, e.ErrorMessage)
	}
	if r.MoreErrors > 0 {
		fmt.Printf("  ... and %d more (bulkctl status --errors-csv %s)\n", r.MoreErrors, r.ImportID)
	}
}

var statusCmd = &cobra.Command{
	Use:   "status IMPORT_ID",
	Short: "Show an import job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid import id: %w", err)
		}
		if csv, _ := cmd.Flags().GetBool("errors-csv"); csv {
			file, err := api.ImportErrorReport(cmd.Context(), id)
			if err != nil {
				return err
			}
			if err := (exchange.DirSaver{Dir: cfg.DownloadDir}).Save(cmd.Context(), file.Name, file.ContentType, file.Data); err != nil {
				return err
			}
			fmt.Println(filepath.Join(cfg.DownloadDir, file.Name))
			return nil
		}
		job, err := api.ImportStatus(cmd.Context(), id, exchange.ReportErrorLimit)
		if err != nil {
			return err
		}
		return printJSON(job)
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export filtered records to the download directory",
	RunE:  runExport,
}

func parseDay(cmd *cobra.Command, flag string) (*time.Time, error) {
	raw, _ := cmd.Flags().GetString(flag)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, fmt.Errorf("--%s must be YYYY-MM-DD", flag)
	}
	return &t, nil
}

func runExport(cmd *cobra.Command, args []string) error {
	entity, err := entityFlag(cmd)
	if err != nil {
		return err
	}
	from, err := parseDay(cmd, "from")
	if err != nil {
		return err
	}
	to, err := parseDay(cmd, "to")
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("format")
	location, _ := cmd.Flags().GetString("location")
	kyc, _ := cmd.Flags().GetString("kyc")
	employee, _ := cmd.Flags().GetString("employee")

	engine := newEngine(cmd.Context())
	defer engine.Close()
	name, err := engine.ExportData(cmd.Context(), entity, domain.ExportRequest{
		Format:                domain.ExportFormat(format),
		AssignedEmployeeEmail: employee,
		Location:              location,
		KYCStatus:             domain.KYCStatus(strings.ToUpper(kyc)),
		FromDate:              from,
		ToDate:                to,
	})
	if err != nil {
		return err
	}
	fmt.Println(filepath.Join(cfg.DownloadDir, name))
	return nil
}

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Download the import template",
	RunE: func(cmd *cobra.Command, args []string) error {
		entity, err := entityFlag(cmd)
		if err != nil {
			return err
		}
		engine := newEngine(cmd.Context())
		defer engine.Close()
		name, err := engine.DownloadTemplate(cmd.Context(), entity)
		if err != nil {
			return err
		}
		fmt.Println(filepath.Join(cfg.DownloadDir, name))
		return nil
	},
}

var assignCmd = &cobra.Command{
	Use:   "assign-by-location",
	Short: "Assign every farmer in a district to one employee",
	RunE: func(cmd *cobra.Command, args []string) error {
		location, _ := cmd.Flags().GetString("location")
		employee, _ := cmd.Flags().GetString("employee")
		engine := newEngine(cmd.Context())
		defer engine.Close()
		n, err := engine.BulkAssignByLocation(cmd.Context(), location, employee)
		if err != nil {
			return err
		}
		log.Printf("%d farmers in %s assigned to %s", n, strings.TrimSpace(location), strings.TrimSpace(employee))
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{importCmd, exportCmd, templateCmd} {
		c.Flags().String("entity", "farmer", "farmer or employee")
	}
	importCmd.Flags().Bool("wait", true, "follow the import until it finishes")
	statusCmd.Flags().Bool("errors-csv", false, "download the full row error report")

	exportCmd.Flags().String("format", "EXCEL", "EXCEL or CSV")
	exportCmd.Flags().String("location", "", "district filter")
	exportCmd.Flags().String("kyc", "", "KYC status filter (PENDING, APPROVED, REFER_BACK, REJECTED)")
	exportCmd.Flags().String("employee", "", "assigned employee email filter")
	exportCmd.Flags().String("from", "", "created on or after (YYYY-MM-DD)")
	exportCmd.Flags().String("to", "", "created on or before (YYYY-MM-DD)")

	assignCmd.Flags().String("location", "", "district")
	assignCmd.Flags().String("employee", "", "employee email")
}
