package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/merchant-import/internal/core"
	"github.com/JonMunkholm/merchant-import/internal/database"
)

var (
	// Flags for the run command
	runDomain    string
	runMerchant  string
	runFile      string
	runBatchSize int
	runUploadID  string
	runQuiet     bool
	runStrict    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Import a CSV file into one domain",
	Long: `Import a CSV file for one merchant. Progress is printed to stderr and the
final summary to stdout as JSON.

Examples:
  # Import inventory for merchant m1
  importctl run --domain inventory --merchant m1 --file stock.csv

  # Smaller batches, fail the command when any batch or row fails
  importctl run --domain orders --merchant m1 --file orders.csv --batch-size 100 --strict`,
	RunE: runImport,
}

var domainsCmd = &cobra.Command{
	Use:   "domains",
	Short: "List import domains and the columns they accept",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printDomains(cmd.OutOrStdout())
	},
}

func init() {
	runCmd.Flags().StringVarP(&runDomain, "domain", "d", "", "Import domain: "+strings.Join(core.Keys(), ", "))
	runCmd.Flags().StringVarP(&runMerchant, "merchant", "m", "", "Merchant ID the rows belong to")
	runCmd.Flags().StringVarP(&runFile, "file", "f", "", "CSV file to import")
	runCmd.Flags().IntVar(&runBatchSize, "batch-size", 0, "Items per transaction (default from UPLOAD_BATCH_SIZE)")
	runCmd.Flags().StringVar(&runUploadID, "upload-id", "", "Upload ID (generated when empty)")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "Do not print progress")
	runCmd.Flags().BoolVar(&runStrict, "strict", false, "Exit non-zero unless every row was imported")
	_ = runCmd.MarkFlagRequired("domain")
	_ = runCmd.MarkFlagRequired("merchant")
	_ = runCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(runCmd, domainsCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	if _, ok := core.Get(runDomain); !ok {
		return fmt.Errorf("%w: %s", core.ErrUnknownDomain, runDomain)
	}

	f, err := os.Open(runFile)
	if err != nil {
		return err
	}
	defer f.Close()

	ctx := cmd.Context()
	cfg, pool, err := connect(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	opts := core.ServiceOptions{History: database.NewJobStore(pool)}
	if !runQuiet {
		opts.Broadcasters = append(opts.Broadcasters, progressPrinter(cmd.ErrOrStderr()))
	}
	svc := core.NewService(database.NewStore(pool, cfg.Database.StatementTimeout), cfg, opts)
	defer svc.Close()

	res, err := svc.Import(ctx, runDomain, core.ImportRequest{
		UploadID:  runUploadID,
		Scope:     core.Scope{MerchantID: runMerchant},
		BatchSize: runBatchSize,
		Source:    f,
		FileName:  filepath.Base(runFile),
	})
	if res != nil {
		if perr := printSummary(cmd.OutOrStdout(), res); perr != nil {
			return perr
		}
	}
	if err != nil {
		return err
	}
	if runStrict && !res.Summary.Success {
		return errors.New(res.Summary.Message(res.Domain.Label))
	}
	return nil
}

// progressPrinter writes one line per progress event.
func progressPrinter(w io.Writer) core.Broadcaster {
	return core.BroadcasterFunc(func(uploadID string, ev core.ProgressEvent) {
		state := "running"
		if ev.Completed {
			state = "done"
		}
		fmt.Fprintf(w, "%s %3d%% batch %d/%d items %d/%d errors %d %s\n",
			uploadID, ev.Progress, ev.CurrentBatch, ev.TotalBatches,
			ev.ProcessedItems, ev.TotalItems, ev.ErrorCount, state)
	})
}

func printSummary(w io.Writer, res *core.ImportResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		UploadID  string             `json:"uploadId"`
		Domain    string             `json:"domain"`
		BatchSize int                `json:"batchSize"`
		Message   string             `json:"message"`
		Summary   core.ResultSummary `json:"summary"`
	}{
		UploadID:  res.UploadID,
		Domain:    res.Domain.Key,
		BatchSize: res.BatchSize,
		Message:   res.Summary.Message(res.Domain.Label),
		Summary:   res.Summary,
	})
}

func printDomains(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DOMAIN\tCOLUMN\tREQUIRED\tALIASES")
	for _, imp := range core.All() {
		for _, c := range imp.Columns() {
			required := ""
			if c.Required {
				required = "yes"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", imp.Info().Key, c.Name, required, strings.Join(c.Aliases, ", "))
		}
	}
	return tw.Flush()
}
