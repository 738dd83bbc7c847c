// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/miranda/internal/index"
	"github.com/pdiddy/miranda/internal/ingest"
	"github.com/pdiddy/miranda/pkg/types"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [project-id] [files...]",
	Short: "Upload files into a project bucket",
	Long: `Ingest stores each file as a pending document in the named bucket,
creating the bucket when it does not exist. Use --index to merge the
documents into the project's retrieval scope right away; otherwise run
"miranda index" or "miranda serve" later.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runIngest,
}

var indexCmd = &cobra.Command{
	Use:   "index [project-id]",
	Short: "Index pending documents",
	Long: `Index merges pending documents into their project's retrieval scope.
Without a project id every project is processed. Documents that fail are
marked failed with the cause and do not stop the run.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

var queryCmd = &cobra.Command{
	Use:   "query [project-id] [question]",
	Short: "Answer a question from a project's indexed documents",
	Args:  cobra.ExactArgs(2),
	RunE:  runQuery,
}

func init() {
	ingestCmd.Flags().String("bucket", ingest.DefaultBucket, "bucket name")
	ingestCmd.Flags().Bool("index", false, "index the documents after upload")
	queryCmd.Flags().String("mode", "", "retrieval mode: naive, local, or hybrid (default from index.default_mode)")
	queryCmd.Flags().Bool("json", false, "output as JSON")
	queryCmd.Flags().Bool("sources", false, "print the passages used")

	rootCmd.AddCommand(ingestCmd, indexCmd, queryCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	projectID := args[0]
	bucket, _ := cmd.Flags().GetString("bucket")
	failed := 0
	for _, path := range args[1:] {
		content, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", path, err)
			failed++
			continue
		}
		doc, err := a.ingestor.IngestToProject(ctx, projectID, bucket, path, content)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", path, err)
			failed++
			continue
		}
		fmt.Printf("  %s -> %s (%d bytes, %s)\n", path, doc.ID, doc.Size, doc.Status)
	}

	if doIndex, _ := cmd.Flags().GetBool("index"); doIndex {
		if err := printIndexSummary(ctx, a.index, projectID); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d file(s) failed ingestion", failed)
	}
	return nil
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	projectID := ""
	if len(args) == 1 {
		projectID = args[0]
	}
	return printIndexSummary(ctx, a.index, projectID)
}

func printIndexSummary(ctx context.Context, svc *index.Service, projectID string) error {
	sum, err := svc.IndexPending(ctx, projectID)
	if err != nil {
		return err
	}
	fmt.Printf("Indexed %d document(s), %d failed\n", sum.Indexed, sum.Failed)
	if sum.Failed > 0 {
		return fmt.Errorf("%d document(s) failed indexing", sum.Failed)
	}
	return nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	mode, _ := cmd.Flags().GetString("mode")
	res, err := a.index.Query(ctx, args[0], index.QueryInput{Text: args[1], Mode: types.QueryMode(mode)})
	if err != nil {
		return err
	}
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return printJSON(res)
	}
	fmt.Println(res.Answer)
	if withSources, _ := cmd.Flags().GetBool("sources"); withSources {
		fmt.Printf("\n%d passage(s), mode %s, confidence %.2f\n", len(res.Sources), res.Mode, res.Confidence)
		for i, p := range res.Sources {
			fmt.Printf("  [%d] %s (%.3f): %s\n", i+1, p.DocumentID, p.Score, truncate(p.Content, 80))
		}
	}
	return nil
}
