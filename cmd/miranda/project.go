// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/miranda/internal/project"
	"github.com/pdiddy/miranda/pkg/types"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Create, list, show, and delete projects",
}

var projectCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a project",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectCreate,
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	RunE:  runProjectList,
}

var projectShowCmd = &cobra.Command{
	Use:   "show [project-id]",
	Short: "Show a project with its buckets, documents, and tables",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectShow,
}

var projectDeleteCmd = &cobra.Command{
	Use:   "delete [project-id]",
	Short: "Delete a project and its retrieval scope",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectDelete,
}

var bucketCmd = &cobra.Command{
	Use:   "bucket",
	Short: "Manage document buckets",
}

var bucketCreateCmd = &cobra.Command{
	Use:   "create [project-id] [name]",
	Short: "Create a bucket in a project",
	Args:  cobra.ExactArgs(2),
	RunE:  runBucketCreate,
}

var bucketListCmd = &cobra.Command{
	Use:   "list [project-id]",
	Short: "List the buckets of a project",
	Args:  cobra.ExactArgs(1),
	RunE:  runBucketList,
}

var tableCmd = &cobra.Command{
	Use:   "table",
	Short: "Manage structured tables",
}

var tableCreateCmd = &cobra.Command{
	Use:   "create [project-id] [file]",
	Short: "Create a table from a YAML or JSON file",
	Long: `Create reads a table definition with name, columns, and optional rows:

  name: Cast
  columns:
    - {name: name, type: text}
    - {name: age, type: number}
  rows:
    - {name: Vera, age: 41}

Column types are text, number, and boolean. Rows are checked against the
columns before anything is stored.`,
	Args: cobra.ExactArgs(2),
	RunE: runTableCreate,
}

func init() {
	projectCreateCmd.Flags().String("template", string(types.TemplateScreenplay), "project template: screenplay, academic, or business")
	projectCreateCmd.Flags().String("description", "", "project description")
	for _, c := range []*cobra.Command{projectListCmd, projectShowCmd, bucketListCmd} {
		c.Flags().Bool("json", false, "output as JSON")
	}

	projectCmd.AddCommand(projectCreateCmd, projectListCmd, projectShowCmd, projectDeleteCmd)
	bucketCmd.AddCommand(bucketCreateCmd, bucketListCmd)
	tableCmd.AddCommand(tableCreateCmd)
	rootCmd.AddCommand(projectCmd, bucketCmd, tableCmd)
}

func runProjectCreate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	template, _ := cmd.Flags().GetString("template")
	description, _ := cmd.Flags().GetString("description")
	p, err := a.store.CreateProject(ctx, project.CreateProjectInput{
		Name:        args[0],
		Template:    types.Template(template),
		Description: description,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Created project %s (%s, %s)\n", p.ID, p.Name, p.Template)
	return nil
}

func runProjectList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	projects := a.store.ListProjects(ctx)
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return printJSON(projects)
	}
	if len(projects) == 0 {
		fmt.Println("No projects.")
		return nil
	}
	fmt.Printf("%-40s  %-30s  %-10s  %s\n", "ID", "Name", "Template", "Created")
	fmt.Println(strings.Repeat("-", 105))
	for _, p := range projects {
		fmt.Printf("%-40s  %-30s  %-10s  %s\n", p.ID, truncate(p.Name, 30), p.Template, p.CreatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

// projectView is the show output.
type projectView struct {
	Project   types.Project    `json:"project" yaml:"project"`
	Buckets   []types.Bucket   `json:"buckets" yaml:"buckets"`
	Documents []types.Document `json:"documents" yaml:"documents"`
	Tables    []types.Table    `json:"tables" yaml:"tables"`
	Index     types.IndexState `json:"index" yaml:"index"`
}

func runProjectShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	id := args[0]
	var v projectView
	if v.Project, err = a.store.GetProject(ctx, id); err != nil {
		return err
	}
	if v.Buckets, err = a.store.ListBuckets(ctx, id); err != nil {
		return err
	}
	if v.Documents, err = a.store.ListDocuments(ctx, id, ""); err != nil {
		return err
	}
	if v.Tables, err = a.store.ListTables(ctx, id); err != nil {
		return err
	}
	if v.Index, err = a.index.State(ctx, id); err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return printJSON(v)
	}
	out, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(out)
	return err
}

func runProjectDelete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.DeleteProject(ctx, args[0]); err != nil {
		return err
	}
	fmt.Printf("Deleted project %s\n", args[0])
	return nil
}

func runBucketCreate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	b, err := a.store.CreateBucket(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Printf("Created bucket %s (%s)\n", b.ID, b.Name)
	return nil
}

func runBucketList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	buckets, err := a.store.ListBuckets(ctx, args[0])
	if err != nil {
		return err
	}
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return printJSON(buckets)
	}
	for _, b := range buckets {
		fmt.Printf("%-40s  %-30s  %d documents\n", b.ID, truncate(b.Name, 30), len(b.DocumentIDs))
	}
	return nil
}

// tableFile is the on-disk table definition read by "table create".
type tableFile struct {
	Name    string         `json:"name" yaml:"name"`
	Columns []types.Column `json:"columns" yaml:"columns"`
	Rows    []types.Row    `json:"rows" yaml:"rows"`
}

func runTableCreate(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("reading table file: %w", err)
	}
	var tf tableFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return fmt.Errorf("parsing table file %s: %w", args[1], err)
	}

	ctx := context.Background()
	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	t, err := a.store.CreateTable(ctx, args[0], tf.Name, tf.Columns)
	if err != nil {
		return err
	}
	if len(tf.Rows) > 0 {
		if t, err = a.store.AppendRows(ctx, args[0], t.ID, tf.Rows); err != nil {
			return err
		}
	}
	fmt.Printf("Created table %s (%s, %d columns, %d rows)\n", t.ID, t.Name, len(t.Columns), len(t.Rows))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
