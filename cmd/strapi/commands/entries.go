package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/fivetwenty-io/strapi-client/internal/constants"
	"github.com/fivetwenty-io/strapi-client/pkg/strapi"
)

// ErrBulkIncomplete is returned when some items of a bulk operation failed.
var ErrBulkIncomplete = errors.New("bulk operation incomplete")

const maxCellWidth = 60

//nolint:gochecknoglobals // Attribute names tried, in order, as an entry's title
var titleFields = []string{"title", "name", "headline", "slug", "label", "email", "username"}

// NewEntriesCommand creates the entries command group.
func NewEntriesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "entries",
		Aliases: []string{"entry"},
		Short:   "Read and delete content entries",
		Long: `Read and delete entries of collection and single types.

ENDPOINT is the REST endpoint relative to /api, for example "articles".
Entries are addressed by numeric id on Strapi v4 and by documentId on v5.`,
	}

	cmd.AddCommand(newEntriesListCommand())
	cmd.AddCommand(newEntriesGetCommand())
	cmd.AddCommand(newEntriesDeleteCommand())

	return cmd
}

type listFlags struct {
	page     int
	pageSize int
	sort     []string
	populate []string
	filters  []string
	locale   string
	all      bool
}

func (f *listFlags) query() (*strapi.QueryParams, error) {
	query := strapi.NewQueryParams().
		WithSort(f.sort...).
		WithPopulate(f.populate...)

	query.Locale = f.locale

	for _, raw := range f.filters {
		field, operator, value, err := parseFilter(raw)
		if err != nil {
			return nil, err
		}

		query.WithFilter(field, operator, value)
	}

	if !f.all {
		query.WithPage(f.page, f.pageSize)
	}

	return query, nil
}

// ErrInvalidFilter is returned for a --filter not of the form field:operator:value.
var ErrInvalidFilter = errors.New("filter must be field:operator:value, e.g. title:$contains:hello")

func parseFilter(raw string) (string, string, string, error) {
	const parts = 3

	fields := strings.SplitN(raw, ":", parts)
	if len(fields) != parts || fields[0] == "" || fields[1] == "" {
		return "", "", "", fmt.Errorf("%w: %q", ErrInvalidFilter, raw)
	}

	return fields[0], fields[1], fields[2], nil
}

func newEntriesListCommand() *cobra.Command {
	flags := &listFlags{}

	cmd := &cobra.Command{
		Use:   "list ENDPOINT",
		Short: "List entries",
		Args:  cobra.ExactArgs(1),
		Example: `  strapi entries list articles --sort publishedAt:desc --page-size 10
  strapi entries list articles --populate category --filter "title:\$contains:go"
  strapi entries list articles --all -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := flags.query()
			if err != nil {
				return err
			}

			s, err := newSession()
			if err != nil {
				return err
			}
			defer s.Close()

			var (
				entries    []strapi.NormalizedEntity
				pagination *strapi.Pagination
			)

			if flags.all {
				stream, err := strapi.NewEntityStream(cmd.Context(), s.client, args[0], query, flags.pageSize)
				if err != nil {
					return err
				}

				entries, err = stream.All()
				if err != nil {
					return fmt.Errorf("failed to list %s: %w", args[0], err)
				}
			} else {
				resp, err := s.client.GetMany(cmd.Context(), args[0], query)
				if err != nil {
					return fmt.Errorf("failed to list %s: %w", args[0], err)
				}

				entries = resp.Data
				pagination = resp.Meta.Pagination
			}

			return renderEntries(cmd, entries, pagination)
		},
	}

	cmd.Flags().IntVar(&flags.page, "page", 1, "page number")
	cmd.Flags().IntVar(&flags.pageSize, "page-size", constants.DefaultPageSize, "entries per page")
	cmd.Flags().StringSliceVar(&flags.sort, "sort", nil, "sort fields, e.g. title:asc")
	cmd.Flags().StringSliceVar(&flags.populate, "populate", nil, "relations to populate, '*' for all")
	cmd.Flags().StringArrayVar(&flags.filters, "filter", nil, "filter as field:operator:value (repeatable)")
	cmd.Flags().StringVar(&flags.locale, "locale", "", "locale of localized entries")
	cmd.Flags().BoolVar(&flags.all, "all", false, "fetch every page")

	return cmd
}

func renderEntries(cmd *cobra.Command, entries []strapi.NormalizedEntity, pagination *strapi.Pagination) error {
	return render(cmd, entries, func(out io.Writer) error {
		if len(entries) == 0 {
			_, _ = fmt.Fprintln(out, "No entries found")

			return nil
		}

		rows := lo.Map(entries, func(entry strapi.NormalizedEntity, _ int) []string {
			return []string{
				fmt.Sprint(entry.ID),
				formatOptional(entry.DocumentID),
				entryTitle(&entry),
				formatCurrentIndicator(entry.PublishedAt != nil),
				formatTime(entry.UpdatedAt),
			}
		})

		err := renderTable(out, []string{"ID", "Document ID", "Title", "Published", "Updated"}, rows)
		if err != nil {
			return err
		}

		if pagination != nil && pagination.PageCount > 0 {
			_, _ = fmt.Fprintf(out, "\nPage %d of %d (%d total)\n", pagination.Page, pagination.PageCount, pagination.Total)
		}

		return nil
	})
}

func entryTitle(entry *strapi.NormalizedEntity) string {
	for _, field := range titleFields {
		if value, ok := entry.Attributes[field].(string); ok && value != "" {
			return truncate(value, maxCellWidth)
		}
	}

	return NotAvailable
}

func truncate(value string, width int) string {
	runes := []rune(value)
	if len(runes) <= width {
		return value
	}

	return string(runes[:width-3]) + "..."
}

func newEntriesGetCommand() *cobra.Command {
	var populate []string

	cmd := &cobra.Command{
		Use:   "get ENDPOINT [ID]",
		Short: "Show one entry",
		Long:  "Show one entry. Omit ID for a single type such as 'homepage'.",
		Args:  cobra.RangeArgs(1, 2), //nolint:mnd // ENDPOINT [ID]
		RunE: func(cmd *cobra.Command, args []string) error {
			endpoint := strings.Join(args, "/")

			s, err := newSession()
			if err != nil {
				return err
			}
			defer s.Close()

			resp, err := s.client.GetOne(cmd.Context(), endpoint, strapi.NewQueryParams().WithPopulate(populate...))
			if err != nil {
				return fmt.Errorf("failed to get %s: %w", endpoint, err)
			}

			if resp.Data == nil {
				return fmt.Errorf("%w: %s", strapi.ErrNotFound, endpoint)
			}

			return renderEntry(cmd, resp.Data)
		},
	}

	cmd.Flags().StringSliceVar(&populate, "populate", nil, "relations to populate, '*' for all")

	return cmd
}

func renderEntry(cmd *cobra.Command, entry *strapi.NormalizedEntity) error {
	return render(cmd, entry, func(out io.Writer) error {
		rows := [][]string{
			{"id", fmt.Sprint(entry.ID)},
			{"documentId", formatOptional(entry.DocumentID)},
			{"locale", formatOptional(entry.Locale)},
			{"createdAt", formatTime(entry.CreatedAt)},
			{"updatedAt", formatTime(entry.UpdatedAt)},
			{"publishedAt", formatTime(entry.PublishedAt)},
		}

		names := lo.Keys(entry.Attributes)
		slices.Sort(names)

		for _, name := range names {
			rows = append(rows, []string{name, formatAttribute(entry.Attributes[name])})
		}

		return renderTable(out, []string{"Field", "Value"}, rows)
	})
}

func formatAttribute(value interface{}) string {
	switch typed := value.(type) {
	case nil:
		return NotAvailable
	case string:
		return truncate(typed, maxCellWidth)
	default:
		raw, err := json.Marshal(typed)
		if err != nil {
			return fmt.Sprint(typed)
		}

		return truncate(string(raw), maxCellWidth)
	}
}

func newEntriesDeleteCommand() *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "delete ENDPOINT ID...",
		Short: "Delete entries",
		Args:  cobra.MinimumNArgs(2), //nolint:mnd // ENDPOINT ID...
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}
			defer s.Close()

			result, err := s.client.BulkDelete(cmd.Context(), args[0], args[1:], strapi.BulkOptions{
				BatchSize:      constants.DefaultBatchSize,
				MaxConcurrency: concurrency,
			})
			if err != nil {
				return fmt.Errorf("failed to delete from %s: %w", args[0], err)
			}

			err = renderBulkResult(cmd, "Deleted", result)
			if err != nil {
				return err
			}

			if !result.IsComplete() {
				return fmt.Errorf("%w: %d of %d failed", ErrBulkIncomplete, result.Failed, result.Total)
			}

			return nil
		},
	}

	cmd.Flags().IntVar(&concurrency, "concurrency", constants.DefaultMaxConcurrency, "concurrent requests")

	return cmd
}

func renderBulkResult(cmd *cobra.Command, verb string, result *strapi.BulkResult) error {
	return render(cmd, result, func(out io.Writer) error {
		st := newStyles()

		_, _ = fmt.Fprintf(out, "%s %d of %d\n", st.success.Render(verb), result.Succeeded, result.Total)

		if result.Failed == 0 {
			return nil
		}

		rows := lo.Map(result.Failures, func(failure strapi.BulkFailure, _ int) []string {
			return []string{fmt.Sprint(failure.Item), failure.Error}
		})

		_, _ = fmt.Fprintln(out, st.failure.Render(fmt.Sprintf("%d failed:", result.Failed)))

		return renderTable(out, []string{"ID", "Error"}, rows)
	})
}
