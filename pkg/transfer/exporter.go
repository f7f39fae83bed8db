package transfer

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/url"
	"slices"

	"github.com/samber/lo"

	"github.com/fivetwenty-io/strapi-client/internal/metrics"
	"github.com/fivetwenty-io/strapi-client/pkg/schema"
	"github.com/fivetwenty-io/strapi-client/pkg/strapi"
)

// ExportSource is the part of strapi.Client the exporter uses.
type ExportSource interface {
	strapi.EntityLister
	GetOne(ctx context.Context, endpoint string, query *strapi.QueryParams) (*strapi.NormalizedSingleResponse, error)
	schema.Fetcher
	MediaDownloader
	GetMedia(ctx context.Context, id int) (*strapi.MediaFile, error)
	APIVersion() strapi.APIVersion
	BaseURL() string
}

// Exporter reads content types, their entities and media from a Strapi
// instance into the portable export format.
type Exporter struct {
	client   ExportSource
	logger   strapi.Logger
	schemas  *schema.Cache
	resolver *Resolver
	pageSize int
	warnings []string
}

// NewExporter creates an exporter reading from client.
func NewExporter(client ExportSource, opts ...Option) *Exporter {
	s := newSettings(client, opts)

	return &Exporter{
		client:   client,
		logger:   s.logger,
		schemas:  s.schemas,
		resolver: NewResolver(s.logger),
		pageSize: s.pageSize,
	}
}

// Warnings returns the non-fatal problems of the last run.
func (e *Exporter) Warnings() []string {
	return slices.Clone(e.warnings)
}

func (e *Exporter) warn(msg string, fields map[string]interface{}) {
	e.logger.Warn(msg, fields)

	text := msg
	for _, key := range sortedKeys(fields) {
		text += fmt.Sprintf(" %s=%v", key, fields[key])
	}

	e.warnings = append(e.warnings, text)
}

// ExportContentTypes exports every entity of the given content types. With
// IncludeMedia, referenced media files are downloaded into opts.MediaDir and
// listed in the manifest.
func (e *Exporter) ExportContentTypes(ctx context.Context, uids []string, opts ExportOptions) (*ExportData, error) {
	uids, err := e.begin(uids, opts)
	if err != nil {
		return nil, err
	}

	metadata := NewExportMetadata(e.client.BaseURL(), e.client.APIVersion(), uids)
	metadata.Schemas = e.fetchSchemas(ctx, uids, opts.Progress)

	data := NewExportData(metadata)

	for i, uid := range uids {
		report(opts.Progress, i, len(uids), "Exporting "+uid)

		entities := []ExportedEntity{}

		err = e.exportContentType(ctx, uid, metadata.Schemas[uid], func(entity *ExportedEntity) error {
			entities = append(entities, *entity)

			return nil
		})
		if err != nil {
			return nil, &strapi.ImportExportError{Op: "export " + uid, Err: err}
		}

		data.Entities[uid] = entities
	}

	data.Metadata.StrapiVersion = e.client.APIVersion().String()
	data.Metadata.TotalEntities = data.EntityCount()

	if opts.IncludeMedia {
		report(opts.Progress, len(uids), len(uids)+1, "Exporting media files")

		var ids []int

		for _, uid := range data.ContentTypeOrder() {
			for _, entity := range data.Entities[uid] {
				ids = append(ids, ExtractMediaReferences(entity.Data)...)
			}
		}

		data.Media = e.exportMedia(ctx, ids, opts)
		data.Metadata.TotalMedia = len(data.Media)
	}

	report(opts.Progress, len(uids), len(uids), "Export complete")

	e.logger.Info("export finished", map[string]interface{}{
		"content_types": len(uids),
		"entities":      data.Metadata.TotalEntities,
		"media":         data.Metadata.TotalMedia,
	})

	return data, nil
}

// ExportToJSONL streams the export into writer. Entities are written as they
// are read; only the set of referenced media IDs is kept in memory. The
// metadata line is written before counting, so its totals are zero; the
// returned metadata carries the final counts. The writer is not closed.
func (e *Exporter) ExportToJSONL(ctx context.Context, uids []string, opts ExportOptions, writer *JSONLWriter) (*ExportMetadata, error) {
	uids, err := e.begin(uids, opts)
	if err != nil {
		return nil, err
	}

	metadata := NewExportMetadata(e.client.BaseURL(), e.client.APIVersion(), uids)
	metadata.Schemas = e.fetchSchemas(ctx, uids, opts.Progress)

	err = writer.WriteMetadata(&metadata)
	if err != nil {
		return nil, &strapi.ImportExportError{Op: "export", Err: err}
	}

	mediaIDs := map[int]struct{}{}

	for i, uid := range uids {
		report(opts.Progress, i, len(uids), "Exporting "+uid)

		err = e.exportContentType(ctx, uid, metadata.Schemas[uid], func(entity *ExportedEntity) error {
			if opts.IncludeMedia {
				for _, id := range ExtractMediaReferences(entity.Data) {
					mediaIDs[id] = struct{}{}
				}
			}

			return writer.WriteEntity(entity)
		})
		if err != nil {
			return nil, &strapi.ImportExportError{Op: "export " + uid, Err: err}
		}
	}

	metadata.StrapiVersion = e.client.APIVersion().String()
	metadata.TotalEntities = writer.EntitiesWritten()

	media := []ExportedMediaFile{}

	if opts.IncludeMedia {
		report(opts.Progress, len(uids), len(uids)+1, "Exporting media files")

		ids := lo.Keys(mediaIDs)
		slices.Sort(ids)

		media = e.exportMedia(ctx, ids, opts)
		metadata.TotalMedia = len(media)
	}

	err = writer.WriteMediaManifest(media)
	if err != nil {
		return nil, &strapi.ImportExportError{Op: "export", Err: err}
	}

	report(opts.Progress, len(uids), len(uids), "Export complete")

	return &metadata, nil
}

func (e *Exporter) begin(uids []string, opts ExportOptions) ([]string, error) {
	e.warnings = nil

	if len(uids) == 0 {
		return nil, &strapi.ImportExportError{Op: "export", Err: ErrNoContentTypes}
	}

	if opts.IncludeMedia && opts.MediaDir == "" {
		return nil, &strapi.ImportExportError{Op: "export", Err: ErrMediaDirMissing}
	}

	return lo.Uniq(uids), nil
}

// fetchSchemas returns the schemas of uids and of every component they
// reference. A missing schema is a warning.
func (e *Exporter) fetchSchemas(ctx context.Context, uids []string, progress ProgressFunc) map[string]*strapi.ContentTypeSchema {
	schemas := map[string]*strapi.ContentTypeSchema{}

	for i, uid := range uids {
		contentType, err := e.schemas.GetSchema(ctx, uid)
		if err != nil {
			e.warn("schema unavailable, extracting relations without it", map[string]interface{}{
				"content_type": uid,
				"error":        err.Error(),
			})

			continue
		}

		schemas[uid] = contentType

		report(progress, i+1, len(uids), "Fetched schema: "+uid)
	}

	pending := componentRefs(lo.Values(schemas))
	tried := map[string]bool{}

	for len(pending) > 0 {
		uid := pending[0]
		pending = pending[1:]

		if _, seen := schemas[uid]; seen || tried[uid] {
			continue
		}

		tried[uid] = true

		component, err := e.schemas.GetComponentSchema(ctx, uid)
		if err != nil {
			e.warn("component schema unavailable", map[string]interface{}{
				"component": uid,
				"error":     err.Error(),
			})

			continue
		}

		schemas[uid] = component
		pending = append(pending, componentRefs([]*strapi.ContentTypeSchema{component})...)
	}

	return schemas
}

func componentRefs(schemas []*strapi.ContentTypeSchema) []string {
	var refs []string

	for _, s := range schemas {
		for _, field := range s.Fields {
			switch field.Type {
			case strapi.FieldTypeComponent:
				if field.Component != "" {
					refs = append(refs, field.Component)
				}
			case strapi.FieldTypeDynamicZone:
				refs = append(refs, field.Components...)
			}
		}
	}

	slices.Sort(refs)

	return slices.Compact(refs)
}

// populateQuery populates relations, media and components of the schema,
// one level into components. Without a schema everything top-level is
// populated.
func populateQuery(s *strapi.ContentTypeSchema) *strapi.QueryParams {
	query := strapi.NewQueryParams()

	if s == nil || len(s.Fields) == 0 {
		return query.WithPopulate("*")
	}

	query.Extra = url.Values{}

	for _, name := range slices.Sorted(maps.Keys(s.Fields)) {
		switch s.Fields[name].Type {
		case strapi.FieldTypeRelation, strapi.FieldTypeMedia:
			query.Extra.Set("populate["+name+"]", "true")
		case strapi.FieldTypeComponent, strapi.FieldTypeDynamicZone:
			query.Extra.Set("populate["+name+"][populate]", "*")
		}
	}

	if len(query.Extra) == 0 {
		return query.WithPopulate("*")
	}

	return query
}

// exportContentType streams one content type and hands each converted entity
// to emit. Single types are read with one request.
func (e *Exporter) exportContentType(
	ctx context.Context,
	uid string,
	contentType *strapi.ContentTypeSchema,
	emit func(*ExportedEntity) error,
) error {
	endpoint := strapi.EndpointFor(uid, contentType)
	query := populateQuery(contentType)

	if contentType != nil && contentType.IsSingleType() {
		return e.exportSingleType(ctx, uid, endpoint, contentType, query, emit)
	}

	stream, err := strapi.NewEntityStream(ctx, e.client, endpoint, query, e.pageSize)
	if err != nil {
		return err
	}

	count := 0

	err = stream.ForEach(func(entity *strapi.NormalizedEntity) error {
		count++

		metrics.Entity(metrics.DirectionExport, uid, metrics.ResultSuccess)

		return emit(e.convert(ctx, uid, contentType, entity))
	})
	if err != nil {
		return err
	}

	e.logger.Debug("exported content type", map[string]interface{}{
		"content_type": uid,
		"endpoint":     endpoint,
		"entities":     count,
		"pages":        stream.PagesFetched(),
	})

	return nil
}

func (e *Exporter) exportSingleType(
	ctx context.Context,
	uid, endpoint string,
	contentType *strapi.ContentTypeSchema,
	query *strapi.QueryParams,
	emit func(*ExportedEntity) error,
) error {
	response, err := e.client.GetOne(ctx, endpoint, query)
	if errors.Is(err, strapi.ErrNotFound) {
		return nil
	}

	if err != nil {
		return err
	}

	if response.Data == nil {
		return nil
	}

	metrics.Entity(metrics.DirectionExport, uid, metrics.ResultSuccess)

	return emit(e.convert(ctx, uid, contentType, response.Data))
}

func (e *Exporter) convert(ctx context.Context, uid string, contentType *strapi.ContentTypeSchema, entity *strapi.NormalizedEntity) *ExportedEntity {
	exported := &ExportedEntity{
		ID:          entity.ID,
		DocumentID:  entity.DocumentID,
		ContentType: uid,
	}

	if contentType == nil {
		exported.Relations = ExtractRelations(entity.Attributes)
		exported.Data = StripRelations(entity.Attributes)

		return exported
	}

	exported.Relations = e.resolver.ExtractRelationsWithSchema(ctx, entity.Attributes, contentType, e.schemas)
	exported.Data = e.resolver.StripRelationsWithSchema(ctx, entity.Attributes, contentType, e.schemas)

	return exported
}

// exportMedia downloads each distinct media file once. Failures are warnings
// and leave the file out of the manifest.
func (e *Exporter) exportMedia(ctx context.Context, ids []int, opts ExportOptions) []ExportedMediaFile {
	ids = lo.Uniq(ids)
	slices.Sort(ids)

	files := []ExportedMediaFile{}

	if len(ids) == 0 {
		e.logger.Info("no media files to export", nil)

		return files
	}

	for i, id := range ids {
		exported, err := e.exportMediaFile(ctx, id, opts.MediaDir)
		if err != nil {
			metrics.Media(metrics.DirectionExport, metrics.ResultFailure)
			e.warn("failed to download media", map[string]interface{}{
				"media_id": id,
				"error":    err.Error(),
			})

			continue
		}

		metrics.Media(metrics.DirectionExport, metrics.ResultSuccess)

		files = append(files, *exported)

		report(opts.Progress, i+1, len(ids), "Downloaded "+exported.Name)
	}

	e.logger.Info("media export finished", map[string]interface{}{
		"downloaded": len(files),
		"referenced": len(ids),
	})

	return files
}

func (e *Exporter) exportMediaFile(ctx context.Context, id int, dir string) (*ExportedMediaFile, error) {
	media, err := e.client.GetMedia(ctx, id)
	if err != nil {
		return nil, err
	}

	localPath, err := DownloadMediaFile(ctx, e.client, media, dir)
	if err != nil {
		return nil, err
	}

	return CreateMediaExport(media, localPath)
}
