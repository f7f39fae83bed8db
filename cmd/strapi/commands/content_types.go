package commands

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/fivetwenty-io/strapi-client/pkg/strapi"
)

// NewContentTypesCommand creates the content-types command group.
func NewContentTypesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "content-types",
		Aliases: []string{"content-type", "ct"},
		Short:   "Inspect content types",
		Long:    "List content types and show their schemas through the Content-Type Builder API",
	}

	cmd.AddCommand(newContentTypesListCommand())
	cmd.AddCommand(newContentTypesSchemaCommand())

	return cmd
}

// NewComponentsCommand creates the components command group.
func NewComponentsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "components",
		Aliases: []string{"component"},
		Short:   "Inspect components",
		Long:    "List components and show their schemas through the Content-Type Builder API",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List components",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}
			defer s.Close()

			components, err := s.client.GetComponents(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list components: %w", err)
			}

			return renderSchemaList(cmd, components, []string{"UID", "Name", "Category", "Fields"}, func(c *strapi.ContentTypeSchema) []string {
				return []string{c.UID, c.DisplayName, formatConfigValue(c.Category), fmt.Sprint(len(c.Fields))}
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "schema UID",
		Short: "Show a component schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}
			defer s.Close()

			component, err := s.schemas.GetComponentSchema(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to get component %s: %w", args[0], err)
			}

			return renderSchema(cmd, schemaView{ContentTypeSchema: *component})
		},
	})

	return cmd
}

func newContentTypesListCommand() *cobra.Command {
	var includePlugins bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List content types",
		Long:  "List API content types. Plugin types such as plugin::users-permissions.user are hidden unless --plugins is given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}
			defer s.Close()

			contentTypes, err := s.client.GetContentTypes(cmd.Context(), includePlugins)
			if err != nil {
				return fmt.Errorf("failed to list content types: %w", err)
			}

			return renderSchemaList(cmd, contentTypes, []string{"UID", "Name", "Kind", "Endpoint", "Fields"}, func(c *strapi.ContentTypeSchema) []string {
				return []string{c.UID, c.DisplayName, c.Kind, strapi.EndpointFor(c.UID, c), fmt.Sprint(len(c.Fields))}
			})
		},
	}

	cmd.Flags().BoolVar(&includePlugins, "plugins", false, "include plugin content types")

	return cmd
}

func newContentTypesSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema UID",
		Short: "Show a content type schema",
		Args:  cobra.ExactArgs(1),
		Example: `  strapi content-types schema api::article.article
  strapi content-types schema api::article.article -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}
			defer s.Close()

			contentType, err := s.schemas.GetSchema(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to get content type %s: %w", args[0], err)
			}

			seo := strapi.DetectSEO(contentType)

			return renderSchema(cmd, schemaView{
				ContentTypeSchema: *contentType,
				AdminURL:          strapi.AdminURL(contentType.UID, s.client.BaseURL(), contentType.Kind),
				SEO:               &seo,
			})
		},
	}
}

func renderSchemaList(cmd *cobra.Command, schemas []*strapi.ContentTypeSchema, header []string, row func(*strapi.ContentTypeSchema) []string) error {
	slices.SortFunc(schemas, func(a, b *strapi.ContentTypeSchema) int {
		return strings.Compare(a.UID, b.UID)
	})

	return render(cmd, schemas, func(out io.Writer) error {
		if len(schemas) == 0 {
			_, _ = fmt.Fprintln(out, "No schemas found")

			return nil
		}

		return renderTable(out, header, lo.Map(schemas, func(s *strapi.ContentTypeSchema, _ int) []string {
			return row(s)
		}))
	})
}

// schemaView is a schema with what the CLI derives from it. Components have
// no admin URL or SEO layout.
type schemaView struct {
	strapi.ContentTypeSchema `yaml:",inline"`

	AdminURL string            `json:"admin_url,omitempty" yaml:"admin_url,omitempty"`
	SEO      *strapi.SEOConfig `json:"seo,omitempty"       yaml:"seo,omitempty"`
}

func renderSchema(cmd *cobra.Command, view schemaView) error {
	contentType := &view.ContentTypeSchema

	return render(cmd, view, func(out io.Writer) error {
		st := newStyles()

		_, _ = fmt.Fprintln(out, st.title.Render(contentType.UID))
		st.field(out, "Name", formatConfigValue(contentType.DisplayName))

		if contentType.Kind != "" {
			st.field(out, "Kind", contentType.Kind)
		}

		if contentType.Category != "" {
			st.field(out, "Category", contentType.Category)
		}

		if view.AdminURL != "" {
			st.field(out, "Admin", view.AdminURL)
		}

		if view.SEO != nil {
			st.field(out, "SEO", seoSummary(*view.SEO))
		}

		_, _ = fmt.Fprintln(out)

		names := lo.Keys(contentType.Fields)
		slices.Sort(names)

		rows := make([][]string, 0, len(names))

		for _, name := range names {
			field := contentType.Fields[name]
			rows = append(rows, []string{name, string(field.Type), fieldDetail(field), formatCurrentIndicator(field.Required)})
		}

		return renderTable(out, []string{"Field", "Type", "Detail", "Required"}, rows)
	})
}

func seoSummary(seo strapi.SEOConfig) string {
	switch {
	case !seo.HasSEO:
		return "none"
	case seo.Type == strapi.SEOTypeComponent:
		return fmt.Sprintf("component %s (%s)", seo.FieldName, formatConfigValue(seo.ComponentUID))
	default:
		fields := lo.Values(seo.Fields)
		slices.Sort(fields)

		return "fields " + strings.Join(fields, ", ")
	}
}

func fieldDetail(field strapi.FieldSchema) string {
	switch field.Type {
	case strapi.FieldTypeRelation:
		return fmt.Sprintf("%s -> %s", field.Relation, field.Target)
	case strapi.FieldTypeComponent:
		if field.Repeatable {
			return field.Component + " (repeatable)"
		}

		return field.Component
	case strapi.FieldTypeDynamicZone:
		return strings.Join(field.Components, ", ")
	case strapi.FieldTypeMedia:
		if field.Multiple {
			return "multiple"
		}

		return "single"
	default:
		return ""
	}
}
