package commands

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/fivetwenty-io/strapi-client/internal/constants"
	"github.com/fivetwenty-io/strapi-client/pkg/strapi"
	"github.com/fivetwenty-io/strapi-client/pkg/transfer"
)

// NewMediaCommand creates the media command group.
func NewMediaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "media",
		Aliases: []string{"files", "upload"},
		Short:   "Manage the media library",
		Long:    "List, upload, download, update and delete files of the Strapi media library",
	}

	cmd.AddCommand(newMediaListCommand())
	cmd.AddCommand(newMediaGetCommand())
	cmd.AddCommand(newMediaUploadCommand())
	cmd.AddCommand(newMediaDownloadCommand())
	cmd.AddCommand(newMediaUpdateCommand())
	cmd.AddCommand(newMediaDeleteCommand())

	return cmd
}

func parseMediaIDs(args []string) ([]int, error) {
	ids := make([]int, 0, len(args))

	for _, arg := range args {
		id, err := strconv.Atoi(arg)
		if err != nil || id < 1 {
			return nil, fmt.Errorf("%w: invalid media ID %q", strapi.ErrValidation, arg)
		}

		ids = append(ids, id)
	}

	return ids, nil
}

func newMediaListCommand() *cobra.Command {
	var (
		page     int
		pageSize int
		sort     []string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List media files",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}
			defer s.Close()

			files, err := s.client.ListMedia(cmd.Context(), strapi.NewQueryParams().WithPage(page, pageSize).WithSort(sort...))
			if err != nil {
				return fmt.Errorf("failed to list media: %w", err)
			}

			return renderMediaList(cmd, files)
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", constants.DefaultPageSize, "files per page")
	cmd.Flags().StringSliceVar(&sort, "sort", nil, "sort fields, e.g. createdAt:desc")

	return cmd
}

func renderMediaList(cmd *cobra.Command, files []strapi.MediaFile) error {
	return render(cmd, files, func(out io.Writer) error {
		if len(files) == 0 {
			_, _ = fmt.Fprintln(out, "No media files found")

			return nil
		}

		rows := lo.Map(files, func(file strapi.MediaFile, _ int) []string {
			return []string{
				strconv.Itoa(file.ID),
				truncate(file.Name, maxCellWidth),
				file.Mime,
				formatSize(file.SizeBytes()),
				formatTime(file.CreatedAt),
			}
		})

		return renderTable(out, []string{"ID", "Name", "Type", "Size", "Created"}, rows)
	})
}

func renderMediaFile(cmd *cobra.Command, file *strapi.MediaFile) error {
	return render(cmd, file, func(out io.Writer) error {
		rows := [][]string{
			{"ID", strconv.Itoa(file.ID)},
			{"Name", file.Name},
			{"Type", file.Mime},
			{"Size", formatSize(file.SizeBytes())},
			{"URL", file.URL},
			{"Alternative Text", formatConfigValue(file.AlternativeText)},
			{"Caption", formatConfigValue(file.Caption)},
			{"Provider", formatConfigValue(file.Provider)},
			{"Created", formatTime(file.CreatedAt)},
			{"Updated", formatTime(file.UpdatedAt)},
		}

		if file.Width > 0 {
			rows = append(rows, []string{"Dimensions", fmt.Sprintf("%dx%d", file.Width, file.Height)})
		}

		return renderTable(out, []string{"Property", "Value"}, rows)
	})
}

func newMediaGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show a media file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseMediaIDs(args)
			if err != nil {
				return err
			}

			s, err := newSession()
			if err != nil {
				return err
			}
			defer s.Close()

			file, err := s.client.GetMedia(cmd.Context(), ids[0])
			if err != nil {
				return fmt.Errorf("failed to get media %d: %w", ids[0], err)
			}

			return renderMediaFile(cmd, file)
		},
	}
}

func newMediaUploadCommand() *cobra.Command {
	opts := strapi.UploadOptions{}

	cmd := &cobra.Command{
		Use:   "upload FILE...",
		Short: "Upload files to the media library",
		Args:  cobra.MinimumNArgs(1),
		Example: `  strapi media upload cover.png --alt "Cover image"
  strapi media upload a.png b.png --ref api::article.article --ref-id 3 --field gallery`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}
			defer s.Close()

			if len(args) == 1 {
				file, err := s.client.UploadFile(cmd.Context(), args[0], opts)
				if err != nil {
					return fmt.Errorf("failed to upload %s: %w", args[0], err)
				}

				return renderMediaFile(cmd, file)
			}

			files, err := s.client.UploadFiles(cmd.Context(), args, opts)
			if err != nil {
				return fmt.Errorf("failed to upload files: %w", err)
			}

			return renderMediaList(cmd, files)
		},
	}

	cmd.Flags().StringVar(&opts.AlternativeText, "alt", "", "alternative text")
	cmd.Flags().StringVar(&opts.Caption, "caption", "", "caption")
	cmd.Flags().StringVar(&opts.Folder, "folder", "", "folder ID")
	cmd.Flags().StringVar(&opts.Ref, "ref", "", "content type UID to attach the file to")
	cmd.Flags().StringVar(&opts.RefID, "ref-id", "", "entry ID to attach the file to")
	cmd.Flags().StringVar(&opts.Field, "field", "", "media field to attach the file to")

	return cmd
}

func newMediaDownloadCommand() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "download ID...",
		Short: "Download media files",
		Long:  "Download media files into a directory. Files are named ID_name with the name sanitized.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseMediaIDs(args)
			if err != nil {
				return err
			}

			s, err := newSession()
			if err != nil {
				return err
			}
			defer s.Close()

			out := cmd.OutOrStdout()

			for _, id := range ids {
				file, err := s.client.GetMedia(cmd.Context(), id)
				if err != nil {
					return fmt.Errorf("failed to get media %d: %w", id, err)
				}

				name, err := transfer.DownloadMediaFile(cmd.Context(), s.client, file, dir)
				if err != nil {
					return fmt.Errorf("failed to download media %d: %w", id, err)
				}

				_, _ = fmt.Fprintf(out, "%s (%s)\n", filepath.Join(dir, name), formatSize(file.SizeBytes()))
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "destination directory")

	return cmd
}

func newMediaUpdateCommand() *cobra.Command {
	var name, alt, caption string

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Update media metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseMediaIDs(args)
			if err != nil {
				return err
			}

			update := strapi.MediaUpdate{}

			if cmd.Flags().Changed("name") {
				update.Name = &name
			}

			if cmd.Flags().Changed("alt") {
				update.AlternativeText = &alt
			}

			if cmd.Flags().Changed("caption") {
				update.Caption = &caption
			}

			s, err := newSession()
			if err != nil {
				return err
			}
			defer s.Close()

			file, err := s.client.UpdateMedia(cmd.Context(), ids[0], update)
			if err != nil {
				return fmt.Errorf("failed to update media %d: %w", ids[0], err)
			}

			return renderMediaFile(cmd, file)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "file name")
	cmd.Flags().StringVar(&alt, "alt", "", "alternative text")
	cmd.Flags().StringVar(&caption, "caption", "", "caption")

	return cmd
}

func newMediaDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID...",
		Short: "Delete media files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseMediaIDs(args)
			if err != nil {
				return err
			}

			s, err := newSession()
			if err != nil {
				return err
			}
			defer s.Close()

			st := newStyles()
			out := cmd.OutOrStdout()

			for _, id := range ids {
				err := s.client.DeleteMedia(cmd.Context(), id)
				if err != nil {
					return fmt.Errorf("failed to delete media %d: %w", id, err)
				}

				_, _ = fmt.Fprintf(out, "%s media %d\n", st.success.Render("Deleted"), id)
			}

			return nil
		},
	}
}
