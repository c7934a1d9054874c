// Package data implements `kadoa data`.
package data

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kadoa-org/kadoa-sdk-go/cli/cmd"
	"github.com/kadoa-org/kadoa-sdk-go/cli/helpers"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/extraction"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
)

type flags struct {
	opts       extraction.FetchDataOptions
	all        bool
	selectPath string
}

// Cmd returns the data command.
func Cmd() *cobra.Command {
	f := &flags{}
	command := &cobra.Command{
		Use:   "data <workflow-id>",
		Short: "Fetch the extracted records of a workflow",
		Long: `Fetch the extracted records of a workflow, one page at a time or all pages
with --all. --select applies a gjson path to the record array, for example
"#.title" or "#(price>10)#.name".`,
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return cmd.ExecuteCommand(c, cmd.ExecutorOptions{RequireClient: true}, func(
				ctx context.Context,
				_ *cobra.Command,
				executor *cmd.CommandExecutor,
				args []string,
			) error {
				return run(ctx, executor, f, args[0])
			}, args)
		},
	}
	fs := command.Flags()
	fs.IntVar(&f.opts.Page, "page", 1, "Page to fetch")
	fs.IntVar(&f.opts.Limit, "limit", extraction.DefaultPageLimit, "Records per page")
	fs.StringVar(&f.opts.RunID, "run-id", "", "Fetch the data of a specific run")
	fs.StringVar(&f.opts.SortBy, "sort-by", "", "Field to sort by")
	fs.StringVar(&f.opts.Order, "order", "", "Sort order (asc, desc)")
	fs.BoolVar(&f.all, "all", false, "Fetch every page")
	fs.StringVar(&f.selectPath, "select", "", "gjson path applied to the records")
	return command
}

type page struct {
	WorkflowID string                 `json:"workflowId"`
	Data       []map[string]any       `json:"data"`
	Pagination *extraction.Pagination `json:"pagination,omitempty"`
}

func run(ctx context.Context, executor *cmd.CommandExecutor, f *flags, workflowID string) error {
	if f.opts.Page < 1 || f.opts.Limit < 1 {
		return helpers.NewCliError(helpers.CodeInvalid, "page and limit must be positive")
	}
	opts := f.opts
	opts.WorkflowID = workflowID
	fetcher := executor.Client().Extraction().Data()
	result := page{WorkflowID: workflowID}
	if f.all {
		records, err := fetcher.FetchAllData(ctx, opts)
		if err != nil {
			return err
		}
		result.Data = records
	} else {
		p, err := fetcher.FetchData(ctx, opts)
		if err != nil {
			return err
		}
		result.Data = p.Data
		result.Pagination = &p.Pagination
	}
	out := executor.Output()
	if f.selectPath != "" {
		return writeSelection(out, result.Data, f.selectPath)
	}
	return out.Write(result, func(tw *helpers.TextWriter) {
		for _, record := range result.Data {
			line, err := json.Marshal(record)
			if err != nil {
				continue
			}
			tw.Line("%s", line)
		}
		summary := fmt.Sprintf("%d %s", len(result.Data), helpers.Pluralize(len(result.Data), "record", "records"))
		if p := result.Pagination; p != nil && p.TotalPages > 0 {
			summary += fmt.Sprintf(" (page %d of %d, %d total)", p.Page, p.TotalPages, p.TotalCount)
		}
		tw.Line("%s", summary)
	})
}

// writeSelection prints the gjson projection of records: raw JSON in JSON mode,
// one value per line in text mode.
func writeSelection(out *helpers.OutputWriter, records []map[string]any, path string) error {
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	selected := gjson.GetBytes(raw, path)
	if !selected.Exists() {
		return helpers.NewCliError(helpers.CodeInvalid, "select path matched nothing", path)
	}
	if out.Mode() == helpers.ModeJSON {
		return out.WriteJSON(json.RawMessage(selected.Raw))
	}
	return out.Write(nil, func(tw *helpers.TextWriter) {
		if !selected.IsArray() {
			tw.Line("%s", selected.String())
			return
		}
		selected.ForEach(func(_, value gjson.Result) bool {
			tw.Line("%s", value.String())
			return true
		})
	})
}
