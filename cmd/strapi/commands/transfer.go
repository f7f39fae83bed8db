package commands

import (
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fivetwenty-io/strapi-client/internal/constants"
	"github.com/fivetwenty-io/strapi-client/pkg/strapi"
	"github.com/fivetwenty-io/strapi-client/pkg/transfer"
)

const maxListedMessages = 20

type exportFlags struct {
	contentTypes []string
	all          bool
	file         string
	format       string
	media        bool
	mediaDir     string
	pageSize     int
}

// NewExportCommand creates the export command.
func NewExportCommand() *cobra.Command {
	flags := &exportFlags{}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export content to a file",
		Long: `Export entries of the given content types, with their relations and
optionally their media files, to a JSON or JSONL file for a later import.

JSONL streams entities to disk one per line and suits large exports. The
format follows the file extension unless --format is given.`,
		Example: `  strapi export --content-types api::category.category,api::article.article --file blog.json
  strapi export --all --file blog.jsonl --media --media-dir ./media`,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := resolveFormat(flags.format, flags.file)
			if err != nil {
				return err
			}

			s, err := newSession()
			if err != nil {
				return err
			}
			defer s.Close()

			uids, err := exportContentTypes(cmd, s, flags)
			if err != nil {
				return err
			}

			exporter := transfer.NewExporter(s.client,
				transfer.WithLogger(s.logger),
				transfer.WithSchemaCache(s.schemas),
				transfer.WithPageSize(flags.pageSize))

			opts := transfer.ExportOptions{
				IncludeMedia: flags.media,
				MediaDir:     flags.mediaDir,
				Progress:     progressPrinter(cmd),
			}

			summary, err := runExport(cmd, exporter, uids, opts, format, flags.file)
			if err != nil {
				return err
			}

			summary.Warnings = exporter.Warnings()

			return renderExportSummary(cmd, summary)
		},
	}

	cmd.Flags().StringSliceVar(&flags.contentTypes, "content-types", nil, "content type UIDs to export, in dependency order")
	cmd.Flags().BoolVar(&flags.all, "all", false, "export every api:: content type")
	cmd.Flags().StringVarP(&flags.file, "file", "f", "", "output file")
	cmd.Flags().StringVar(&flags.format, "format", "", "export format (json, jsonl)")
	cmd.Flags().BoolVar(&flags.media, "media", false, "download referenced media files")
	cmd.Flags().StringVar(&flags.mediaDir, "media-dir", "", "directory for media files (default: <file>_media)")
	cmd.Flags().IntVar(&flags.pageSize, "page-size", constants.ExportPageSize, "entities fetched per request")
	_ = cmd.MarkFlagRequired("file")

	cmd.PreRun = func(cmd *cobra.Command, args []string) {
		if flags.media && flags.mediaDir == "" && flags.file != "" {
			flags.mediaDir = defaultMediaDir(flags.file)
		}
	}

	return cmd
}

// defaultMediaDir is "<file without extension>_media" next to the file.
func defaultMediaDir(file string) string {
	return strings.TrimSuffix(file, filepath.Ext(file)) + "_media"
}

// resolveFormat returns the explicit format, else the one implied by the
// file extension, else JSON.
func resolveFormat(explicit, file string) (string, error) {
	format := strings.ToLower(explicit)
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(file)), ".")
	}

	switch format {
	case constants.ExportFormatJSONL, "ndjson":
		return constants.ExportFormatJSONL, nil
	case constants.ExportFormatJSON, "":
		return constants.ExportFormatJSON, nil
	default:
		if explicit == "" {
			return constants.ExportFormatJSON, nil
		}

		return "", fmt.Errorf("%w: %s", constants.ErrInvalidExportFormat, explicit)
	}
}

func exportContentTypes(cmd *cobra.Command, s *session, flags *exportFlags) ([]string, error) {
	if !flags.all {
		if len(flags.contentTypes) == 0 {
			return nil, fmt.Errorf("%w, use --content-types or --all", constants.ErrContentTypesRequired)
		}

		return flags.contentTypes, nil
	}

	contentTypes, err := s.client.GetContentTypes(cmd.Context(), false)
	if err != nil {
		return nil, fmt.Errorf("failed to list content types: %w", err)
	}

	uids := lo.FilterMap(contentTypes, func(c *strapi.ContentTypeSchema, _ int) (string, bool) {
		return c.UID, strings.HasPrefix(c.UID, "api::")
	})
	slices.Sort(uids)

	if len(uids) == 0 {
		return nil, constants.ErrContentTypesRequired
	}

	return uids, nil
}

// ExportSummary describes a finished export.
type ExportSummary struct {
	File          string         `json:"file"                yaml:"file"`
	Format        string         `json:"format"              yaml:"format"`
	MediaDir      string         `json:"media_dir,omitempty" yaml:"media_dir,omitempty"`
	ExportID      string         `json:"export_id"           yaml:"export_id"`
	Version       string         `json:"strapi_version"      yaml:"strapi_version"`
	ContentTypes  []string       `json:"content_types"       yaml:"content_types"`
	Entities      map[string]int `json:"entities"            yaml:"entities"`
	TotalEntities int            `json:"total_entities"      yaml:"total_entities"`
	TotalMedia    int            `json:"total_media"         yaml:"total_media"`
	Warnings      []string       `json:"warnings"            yaml:"warnings"`
}

func runExport(cmd *cobra.Command, exporter *transfer.Exporter, uids []string, opts transfer.ExportOptions, format, file string) (*ExportSummary, error) {
	summary := &ExportSummary{File: file, Format: format}

	if opts.IncludeMedia {
		summary.MediaDir = opts.MediaDir
	}

	if format == constants.ExportFormatJSONL {
		writer, err := transfer.CreateJSONL(file)
		if err != nil {
			return nil, err
		}

		metadata, err := exporter.ExportToJSONL(cmd.Context(), uids, opts, writer)

		closeErr := writer.Close()
		if err != nil {
			return nil, fmt.Errorf("export failed: %w", err)
		}

		if closeErr != nil {
			return nil, fmt.Errorf("failed to finish %s: %w", file, closeErr)
		}

		summary.fill(metadata, writer.EntityCounts())

		return summary, nil
	}

	data, err := exporter.ExportContentTypes(cmd.Context(), uids, opts)
	if err != nil {
		return nil, fmt.Errorf("export failed: %w", err)
	}

	err = data.SaveToFile(file)
	if err != nil {
		return nil, err
	}

	summary.fill(&data.Metadata, lo.MapValues(data.Entities, func(entities []transfer.ExportedEntity, _ string) int {
		return len(entities)
	}))

	return summary, nil
}

func (s *ExportSummary) fill(metadata *transfer.ExportMetadata, counts map[string]int) {
	s.ExportID = metadata.ExportID
	s.Version = metadata.StrapiVersion
	s.ContentTypes = metadata.ContentTypes
	s.TotalEntities = metadata.TotalEntities
	s.TotalMedia = metadata.TotalMedia
	s.Entities = counts
}

func renderExportSummary(cmd *cobra.Command, summary *ExportSummary) error {
	return render(cmd, summary, func(out io.Writer) error {
		st := newStyles()

		_, _ = fmt.Fprintln(out, st.title.Render("Export complete"))
		st.field(out, "File", summary.File)
		st.field(out, "Format", summary.Format)
		st.field(out, "Strapi", summary.Version)
		st.field(out, "Entities", summary.TotalEntities)
		st.field(out, "Media", summary.TotalMedia)

		if summary.MediaDir != "" {
			st.field(out, "Media dir", summary.MediaDir)
		}

		rows := lo.Map(summary.ContentTypes, func(uid string, _ int) []string {
			return []string{uid, fmt.Sprint(summary.Entities[uid])}
		})

		_, _ = fmt.Fprintln(out)

		err := renderTable(out, []string{"Content Type", "Entities"}, rows)
		if err != nil {
			return err
		}

		printMessages(out, st.warning.Render("Warnings:"), summary.Warnings)

		return nil
	})
}

type importFlags struct {
	format        string
	dryRun        bool
	skipRelations bool
	contentTypes  []string
	media         bool
	mediaDir      string
}

// NewImportCommand creates the import command.
func NewImportCommand() *cobra.Command {
	flags := &importFlags{}

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import content from an export file",
		Long: `Import an export file into the target. Entities are created in file order,
then relations are linked using the IDs assigned by the target, so content can
move between Strapi v4 and v5 instances.

The command fails when any entity could not be imported.`,
		Example: `  strapi import blog.json --dry-run
  strapi import blog.jsonl --media --media-dir ./media --target staging`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file := args[0]

			format, err := resolveFormat(flags.format, file)
			if err != nil {
				return err
			}

			mediaDir := flags.mediaDir
			if flags.media && mediaDir == "" {
				mediaDir = defaultMediaDir(file)
			}

			s, err := newSession()
			if err != nil {
				return err
			}
			defer s.Close()

			importer := transfer.NewImporter(s.client,
				transfer.WithLogger(s.logger),
				transfer.WithSchemaCache(s.schemas))

			opts := transfer.ImportOptions{
				DryRun:        flags.dryRun,
				SkipRelations: flags.skipRelations,
				ContentTypes:  flags.contentTypes,
				ImportMedia:   flags.media,
				Progress:      progressPrinter(cmd),
			}

			result, err := runImport(cmd, s, importer, format, file, opts, mediaDir)
			if result != nil {
				renderErr := renderImportResult(cmd, result)
				if renderErr != nil && err == nil {
					err = renderErr
				}
			}

			if err != nil {
				return err
			}

			if result.EntitiesFailed > 0 {
				return fmt.Errorf("%w: %d failed", constants.ErrImportFailed, result.EntitiesFailed)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&flags.format, "format", "", "file format (json, jsonl), default from extension")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "report what would be imported without writing")
	cmd.Flags().BoolVar(&flags.skipRelations, "skip-relations", false, "do not link relations")
	cmd.Flags().StringSliceVar(&flags.contentTypes, "content-types", nil, "only import these content type UIDs")
	cmd.Flags().BoolVar(&flags.media, "media", false, "upload media files and rewrite media references")
	cmd.Flags().StringVar(&flags.mediaDir, "media-dir", "", "directory holding exported media (default: <file>_media)")

	return cmd
}

// runImport returns a partial result together with an error when a JSONL
// file turns out to be malformed midway.
func runImport(
	cmd *cobra.Command,
	s *session,
	importer *transfer.Importer,
	format, file string,
	opts transfer.ImportOptions,
	mediaDir string,
) (*transfer.ImportResult, error) {
	if format == constants.ExportFormatJSONL {
		count, err := transfer.CountJSONLEntities(file, s.logger)
		if err == nil {
			s.logger.Info("importing JSONL export", map[string]interface{}{"file": file, "entities": count})
		}

		reader, err := transfer.OpenJSONL(file, s.logger)
		if err != nil {
			return nil, err
		}

		defer func() { _ = reader.Close() }()

		result, err := importer.ImportJSONL(cmd.Context(), reader, opts, mediaDir)
		if err != nil {
			return result, fmt.Errorf("import failed: %w", err)
		}

		return result, nil
	}

	data, err := transfer.LoadFromFile(file)
	if err != nil {
		return nil, err
	}

	result, err := importer.ImportData(cmd.Context(), data, opts, mediaDir)
	if err != nil {
		return result, fmt.Errorf("import failed: %w", err)
	}

	return result, nil
}

func renderImportResult(cmd *cobra.Command, result *transfer.ImportResult) error {
	return render(cmd, result, func(out io.Writer) error {
		st := newStyles()

		title := "Import complete"

		switch {
		case result.DryRun:
			title = "Dry run complete, nothing was written"
		case result.EntitiesFailed > 0:
			title = "Import finished with failures"
		}

		if result.EntitiesFailed > 0 {
			_, _ = fmt.Fprintln(out, st.failure.Render(title))
		} else {
			_, _ = fmt.Fprintln(out, st.title.Render(title))
		}

		st.field(out, "Imported", st.success.Render(fmt.Sprint(result.EntitiesImported)))
		st.field(out, "Failed", result.EntitiesFailed)
		st.field(out, "Skipped", result.EntitiesSkipped)
		st.field(out, "Media imported", result.MediaImported)
		st.field(out, "Media skipped", result.MediaSkipped)

		printMessages(out, st.failure.Render("Errors:"), result.Errors)
		printMessages(out, st.warning.Render("Warnings:"), result.Warnings)

		return nil
	})
}

// printMessages lists messages under a heading, eliding long lists.
func printMessages(out io.Writer, heading string, messages []string) {
	if len(messages) == 0 {
		return
	}

	_, _ = fmt.Fprintf(out, "\n%s\n", heading)

	for _, message := range lo.Slice(messages, 0, maxListedMessages) {
		_, _ = fmt.Fprintf(out, "  - %s\n", message)
	}

	if len(messages) > maxListedMessages {
		_, _ = fmt.Fprintf(out, "  ... and %d more\n", len(messages)-maxListedMessages)
	}
}

// progressPrinter reports progress on stderr with --verbose.
func progressPrinter(cmd *cobra.Command) transfer.ProgressFunc {
	if !viper.GetBool("verbose") {
		return nil
	}

	errOut := cmd.ErrOrStderr()

	return func(current, total int, message string) {
		_, _ = fmt.Fprintf(errOut, "[%d/%d] %s\n", current, total, message)
	}
}
