package cli

import (
	"fmt"
	"strings"

	"github.com/brightbooks/recon-engine/internal/application/importer"
	"github.com/brightbooks/recon-engine/internal/application/reconcile"
)

// PrintHeader prints the tool header.
func PrintHeader(tool string, dryRun bool) {
	mode := "APPLY"
	if dryRun {
		mode = "DRY-RUN"
	}
	fmt.Printf("recon-engine %s (%s mode)\n", tool, mode)
}

// PrintRunSummary prints the reconciliation result summary.
func PrintRunSummary(summary *reconcile.Summary) {
	fmt.Println(strings.Repeat("-", 60))
	fmt.Printf("Run %d: %s\n", summary.RunID, summary.State)
	fmt.Printf("Summary: Matched=%d Grouped=%d Flagged=%d Skipped=%d\n",
		summary.Matched, summary.Grouped, summary.Flagged, summary.Skipped)

	if len(summary.Deleted) > 0 {
		fmt.Printf("Deleted duplicates: %v\n", summary.Deleted)
	}

	if len(summary.ManualReview) > 0 {
		fmt.Println("\nNeeds manual review:")
		for _, item := range summary.ManualReview {
			fmt.Printf("  receipt %d: %d candidates tied\n", item.ReceiptID, len(item.Candidates))
			for _, c := range item.Candidates {
				fmt.Printf("    - transaction %d (confidence %.2f, %s)\n",
					c.TransactionID, c.Confidence, c.Rule)
			}
		}
	}
}

// PrintImportReport prints the import result summary.
func PrintImportReport(report *importer.Report) {
	fmt.Println(strings.Repeat("-", 60))
	fmt.Printf("Summary: Inserted=%d Skipped=%d Failed=%d\n",
		report.Inserted, report.SkippedAsDuplicate, report.Failed)

	if len(report.FailedRows) > 0 {
		fmt.Println("\nFailed rows:")
		for _, row := range report.FailedRows {
			fmt.Printf("  - line %d: %s\n", row.Line, row.Reason)
		}
	}
}
