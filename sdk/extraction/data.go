package extraction

import (
	"context"
	"iter"
	"net/http"
	"net/url"
	"strconv"

	"github.com/kadoa-org/kadoa-sdk-go/sdk/internal/transport"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/internal/validate"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/sdkerrors"
)

// DataFetcher reads extracted records page by page.
type DataFetcher struct {
	client *transport.Client
}

func NewDataFetcher(client *transport.Client) *DataFetcher {
	return &DataFetcher{client: client}
}

// FetchData returns one page. Page defaults to 1 and Limit to DefaultPageLimit.
func (f *DataFetcher) FetchData(ctx context.Context, opts FetchDataOptions) (*DataPage, error) {
	if err := validate.NonEmpty(ctx, "workflow id", opts.WorkflowID); err != nil {
		return nil, sdkerrors.Wrap(sdkerrors.CodeValidation, "invalid workflow id", err)
	}
	if opts.Page <= 0 {
		opts.Page = 1
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultPageLimit
	}
	reqOpts := []transport.Option{
		transport.WithParam("page", strconv.Itoa(opts.Page)),
		transport.WithParam("limit", strconv.Itoa(opts.Limit)),
		transport.WithParam("runId", opts.RunID),
		transport.WithParam("sortBy", opts.SortBy),
		transport.WithParam("order", opts.Order),
		transport.WithParam("filters", opts.Filters),
	}
	if opts.IncludeAnomalies {
		reqOpts = append(reqOpts, transport.WithParam("includeAnomalies", "true"))
	}
	page, err := transport.Do[DataPage](ctx, f.client, http.MethodGet,
		"/v4/workflows/"+url.PathEscape(opts.WorkflowID)+"/data", reqOpts...)
	if err != nil {
		return nil, err
	}
	if page.WorkflowID == "" {
		page.WorkflowID = opts.WorkflowID
	}
	if page.Data == nil {
		page.Data = []map[string]any{}
	}
	return &page, nil
}

// FetchPages yields pages starting at opts.Page until the last page or an empty page.
// Iteration stops after the first error.
func (f *DataFetcher) FetchPages(ctx context.Context, opts FetchDataOptions) iter.Seq2[*DataPage, error] {
	return func(yield func(*DataPage, error) bool) {
		page := max(opts.Page, 1)
		for {
			next := opts
			next.Page = page
			p, err := f.FetchData(ctx, next)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(p, nil) {
				return
			}
			if len(p.Data) == 0 || page >= p.Pagination.TotalPages {
				return
			}
			page++
		}
	}
}

// FetchAllData collects the records of every page.
func (f *DataFetcher) FetchAllData(ctx context.Context, opts FetchDataOptions) ([]map[string]any, error) {
	all := make([]map[string]any, 0)
	for p, err := range f.FetchPages(ctx, opts) {
		if err != nil {
			return nil, err
		}
		all = append(all, p.Data...)
	}
	return all, nil
}
