// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pdiddy/miranda/internal/export"
	"github.com/pdiddy/miranda/internal/generate"
	"github.com/pdiddy/miranda/pkg/types"
)

var brainstormCmd = &cobra.Command{
	Use:   "brainstorm [project-id]",
	Short: "Generate ideas for a project",
	Long: `Brainstorm asks the model for a numbered list of ideas shaped by the
project template, the context and focus, and, unless --no-documents is
set, passages retrieved from the project's indexed documents. The ideas
are stored as a brainstorm that "miranda write" can build on.`,
	Args: cobra.ExactArgs(1),
	RunE: runBrainstorm,
}

var writeCmd = &cobra.Command{
	Use:   "write [project-id] [brainstorm-id]",
	Short: "Draft content from a brainstorm",
	Args:  cobra.ExactArgs(2),
	RunE:  runWrite,
}

var exportCmd = &cobra.Command{
	Use:   "export [project-id] [content-id]",
	Short: "Export generated content as markdown, text, yaml, or json",
	Args:  cobra.ExactArgs(2),
	RunE:  runExport,
}

func init() {
	brainstormCmd.Flags().String("context", "", "what the session is about")
	brainstormCmd.Flags().String("focus", "", "what the ideas should focus on")
	brainstormCmd.Flags().String("tone", "", "tone: neutral, professional, casual, dramatic, humorous, dark")
	brainstormCmd.Flags().Bool("no-documents", false, "do not enrich the prompt with indexed documents")

	writeCmd.Flags().String("format", "", "output format (default: the project template)")
	writeCmd.Flags().String("length", "", "length: scene, short, medium, long")
	writeCmd.Flags().String("tone", "", "prompt tone (default professional)")
	writeCmd.Flags().StringSlice("table", nil, "table id to include (repeatable)")
	writeCmd.Flags().StringSlice("bucket", nil, "bucket id to draw passages from (repeatable)")

	exportCmd.Flags().String("format", "markdown", "export format: markdown, text, yaml, json")
	exportCmd.Flags().StringP("output", "o", "", "output file or directory (default: stdout)")

	rootCmd.AddCommand(brainstormCmd, writeCmd, exportCmd)
}

func runBrainstorm(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	bctx, _ := cmd.Flags().GetString("context")
	focus, _ := cmd.Flags().GetString("focus")
	tone, _ := cmd.Flags().GetString("tone")
	noDocs, _ := cmd.Flags().GetBool("no-documents")

	b, err := a.gen.Brainstorm(ctx, generate.BrainstormInput{
		ProjectID:    args[0],
		Context:      bctx,
		Focus:        focus,
		Tone:         types.Tone(tone),
		UseDocuments: !noDocs,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Brainstorm %s\n\n", b.ID)
	for i, idea := range b.Ideas {
		fmt.Printf("%d. %s\n", i+1, idea)
	}
	return nil
}

func runWrite(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	format, _ := cmd.Flags().GetString("format")
	length, _ := cmd.Flags().GetString("length")
	tone, _ := cmd.Flags().GetString("tone")
	tables, _ := cmd.Flags().GetStringSlice("table")
	buckets, _ := cmd.Flags().GetStringSlice("bucket")

	c, err := a.gen.Write(ctx, generate.WriteInput{
		ProjectID:       args[0],
		BrainstormID:    args[1],
		Format:          types.Template(format),
		Length:          types.Length(length),
		Tone:            types.Tone(tone),
		SelectedTables:  tables,
		SelectedBuckets: buckets,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Content %s (%d words)\n\n", c.ID, c.WordCount)
	fmt.Println(c.Text)
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	formatFlag, _ := cmd.Flags().GetString("format")
	f, err := export.ParseFormat(formatFlag)
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.store.GetProject(ctx, args[0])
	if err != nil {
		return err
	}
	c, err := a.gen.GetContent(ctx, p.ID, args[1])
	if err != nil {
		return err
	}
	body, err := export.Render(p, c, f)
	if err != nil {
		return err
	}

	out, _ := cmd.Flags().GetString("output")
	if out == "" {
		_, err = os.Stdout.Write(body)
		return err
	}
	if info, err := os.Stat(out); err == nil && info.IsDir() {
		out = filepath.Join(out, export.Filename(p, c, f))
	}
	if err := os.WriteFile(out, body, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", out, err)
	}
	fmt.Fprintf(os.Stderr, "Wrote %s\n", out)
	return nil
}
