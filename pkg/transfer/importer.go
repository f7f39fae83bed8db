package transfer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"slices"
	"strconv"

	"github.com/samber/lo"

	"github.com/fivetwenty-io/strapi-client/internal/metrics"
	"github.com/fivetwenty-io/strapi-client/pkg/schema"
	"github.com/fivetwenty-io/strapi-client/pkg/strapi"
)

// Static errors for err113 compliance.
var (
	ErrNoExportData = fmt.Errorf("%w: export data is nil", strapi.ErrValidation)
	ErrEmptyCreate  = errors.New("create returned no entity")
)

// ImportTarget is the part of strapi.Client the importer uses.
type ImportTarget interface {
	Create(ctx context.Context, endpoint string, data map[string]interface{}, query *strapi.QueryParams) (*strapi.NormalizedSingleResponse, error)
	Update(ctx context.Context, endpoint string, data map[string]interface{}, query *strapi.QueryParams) (*strapi.NormalizedSingleResponse, error)
	strapi.EntityLister
	schema.Fetcher
	MediaUploader
	APIVersion() strapi.APIVersion
}

// Importer writes an export into a Strapi instance. Entities are created
// first; relations are applied in a second pass once every new ID is known.
type Importer struct {
	client   ImportTarget
	logger   strapi.Logger
	schemas  *schema.Cache
	resolver *Resolver
}

// NewImporter creates an importer writing to client.
func NewImporter(client ImportTarget, opts ...Option) *Importer {
	s := newSettings(client, opts)

	return &Importer{
		client:   client,
		logger:   s.logger,
		schemas:  s.schemas,
		resolver: NewResolver(s.logger),
	}
}

// importRun holds the state of one import invocation.
type importRun struct {
	*Importer

	opts      ImportOptions
	result    *ImportResult
	metadata  *ExportMetadata
	schemas   SchemaMap
	endpoints map[string]string
	addresses map[string]map[int]string
}

// pendingLinks is what the relation pass needs about one entity.
type pendingLinks struct {
	uid       string
	oldID     int
	relations map[string][]int
	data      map[string]interface{}
}

func (i *Importer) newRun(metadata *ExportMetadata, opts ImportOptions) *importRun {
	schemas := SchemaMap{}
	maps.Copy(schemas, metadata.Schemas)

	return &importRun{
		Importer:  i,
		opts:      opts,
		result:    NewImportResult(opts.DryRun),
		metadata:  metadata,
		schemas:   schemas,
		endpoints: map[string]string{},
		addresses: map[string]map[int]string{},
	}
}

// ImportData imports an in-memory export. mediaDir holds the files of the
// media manifest. Per-entity failures are recorded in the result; the error
// is reserved for failures that stop the whole run, in which case the
// partial result is returned with it.
func (i *Importer) ImportData(ctx context.Context, data *ExportData, opts ImportOptions, mediaDir string) (*ImportResult, error) {
	if data == nil {
		result := NewImportResult(opts.DryRun)
		result.AddError("import failed: %v", ErrNoExportData)

		return result, &strapi.ImportExportError{Op: "import", Err: ErrNoExportData}
	}

	run := i.newRun(&data.Metadata, opts)

	report(opts.Progress, 0, 100, "Validating export data")
	run.validate(ctx)

	if data.EntityCount() == 0 {
		run.result.AddWarning("No entities to import")
	}

	if len(run.result.Errors) > 0 && !opts.DryRun {
		return run.result, nil
	}

	uids := run.selectContentTypes(data)
	if len(uids) == 0 {
		run.result.AddWarning("No content types to import")
		run.result.Success = true

		return run.result, nil
	}

	if opts.ImportMedia && len(data.Media) > 0 {
		report(opts.Progress, 20, 100, "Importing media files")
		run.importMedia(ctx, data.Media, mediaDir)
	}

	report(opts.Progress, 40, 100, "Importing entities")

	for _, uid := range uids {
		endpoint := run.endpoint(ctx, uid)

		for index := range data.Entities[uid] {
			run.importEntity(ctx, uid, endpoint, &data.Entities[uid][index])
		}
	}

	if !opts.SkipRelations {
		report(opts.Progress, 60, 100, "Importing relations")

		for _, uid := range uids {
			for _, entity := range data.Entities[uid] {
				run.link(ctx, pendingLinks{
					uid:       uid,
					oldID:     entity.ID,
					relations: entity.Relations,
					data:      entity.Data,
				}, false)
			}
		}
	}

	return run.finish(), nil
}

// ImportJSONL imports a streaming export. Entities are created while the
// file is read and only what the relation pass needs is kept. The media
// manifest comes last in the file, so media is uploaded after the entity
// pass and media fields are patched together with the relations.
func (i *Importer) ImportJSONL(ctx context.Context, reader *JSONLReader, opts ImportOptions, mediaDir string) (*ImportResult, error) {
	metadata, err := reader.ReadMetadata()
	if err != nil {
		result := NewImportResult(opts.DryRun)
		result.AddError("import failed: %v", err)

		return result, &strapi.ImportExportError{Op: "import", Err: err}
	}

	run := i.newRun(metadata, opts)

	report(opts.Progress, 0, 100, "Validating export data")
	run.validate(ctx)

	allowed := lo.SliceToMap(opts.ContentTypes, func(uid string) (string, bool) { return uid, true })

	var pending []pendingLinks

	report(opts.Progress, 20, 100, "Importing entities")

	err = reader.ForEachEntity(func(entity *ExportedEntity) error {
		if len(allowed) > 0 && !allowed[entity.ContentType] {
			run.skip(entity.ContentType)

			return nil
		}

		run.importEntity(ctx, entity.ContentType, run.endpoint(ctx, entity.ContentType), entity)

		links := pendingLinks{uid: entity.ContentType, oldID: entity.ID}
		if !opts.SkipRelations {
			links.relations = entity.Relations
		}

		links.data = linkData(entity.Data, links.relations, opts.ImportMedia)
		if len(links.relations) > 0 || len(links.data) > 0 {
			pending = append(pending, links)
		}

		return nil
	})
	if err != nil {
		return run.abort(err)
	}

	manifest, err := reader.ReadMediaManifest()
	if err != nil {
		return run.abort(err)
	}

	if run.result.EntitiesImported+run.result.EntitiesFailed+run.result.EntitiesSkipped == 0 {
		run.result.AddWarning("No entities to import")
	}

	if opts.ImportMedia && len(manifest) > 0 {
		report(opts.Progress, 40, 100, "Importing media files")
		run.importMedia(ctx, manifest, mediaDir)
	}

	report(opts.Progress, 60, 100, "Importing relations")

	for _, links := range pending {
		run.link(ctx, links, opts.ImportMedia)
	}

	return run.finish(), nil
}

// linkData keeps the fields of data that the relation pass reads: the
// component roots of nested relation paths and, with media, media fields.
func linkData(data map[string]interface{}, relations map[string][]int, withMedia bool) map[string]interface{} {
	kept := map[string]interface{}{}

	for path := range relations {
		if !IsNestedPath(path) {
			continue
		}

		segments, err := parsePath(path)
		if err != nil {
			continue
		}

		if value, ok := data[segments[0].name]; ok {
			kept[segments[0].name] = value
		}
	}

	if withMedia {
		for field, value := range data {
			if IsMediaField(value) {
				kept[field] = value
			}
		}
	}

	return kept
}

func (r *importRun) validate(ctx context.Context) {
	if !r.metadata.IsCompatible() {
		r.result.AddWarning("Export format version %s may not be fully compatible", r.metadata.Version)
	}

	target := r.client.APIVersion()
	if target == strapi.VersionUnknown && !r.opts.DryRun {
		target = r.detectTargetVersion(ctx)
	}

	source := r.metadata.StrapiVersion

	if target != strapi.VersionUnknown && source != "" && source != string(strapi.VersionAuto) && source != target.String() {
		r.result.AddWarning("Source version (%s) differs from target (%s). Some data may require transformation.", source, target)
	}
}

// detectTargetVersion reads one entry of the first exported content type so that
// an auto-detecting client learns the target version. Failures leave the
// version unknown.
func (r *importRun) detectTargetVersion(ctx context.Context) strapi.APIVersion {
	if len(r.metadata.ContentTypes) == 0 {
		return strapi.VersionUnknown
	}

	endpoint := r.endpoint(ctx, r.metadata.ContentTypes[0])

	_, err := r.client.GetMany(ctx, endpoint, strapi.NewQueryParams().WithPage(1, 1))
	if err != nil {
		r.logger.Debug("target version check failed", map[string]interface{}{"endpoint": endpoint, "error": err.Error()})
	}

	return r.client.APIVersion()
}

// selectContentTypes returns the content types to import, in export order.
// Entities of excluded content types are counted as skipped.
func (r *importRun) selectContentTypes(data *ExportData) []string {
	available := data.ContentTypeOrder()
	if len(r.opts.ContentTypes) == 0 {
		return available
	}

	selected := lo.Filter(lo.Uniq(r.opts.ContentTypes), func(uid string, _ int) bool {
		return lo.Contains(available, uid)
	})

	for _, uid := range lo.Without(available, selected...) {
		for range data.Entities[uid] {
			r.skip(uid)
		}
	}

	return selected
}

func (r *importRun) skip(uid string) {
	r.result.EntitiesSkipped++
	metrics.Entity(metrics.DirectionImport, uid, metrics.ResultSkipped)
}

// contentType returns the schema of uid from the export metadata, or from
// the target instance when the export has none. Dry runs never ask the
// target.
func (r *importRun) contentType(ctx context.Context, uid string) *strapi.ContentTypeSchema {
	if contentType, ok := r.schemas[uid]; ok {
		return contentType
	}

	if r.opts.DryRun {
		return nil
	}

	contentType, err := r.Importer.schemas.GetSchema(ctx, uid)
	if err != nil {
		r.logger.Debug("no target schema", map[string]interface{}{"content_type": uid, "error": err.Error()})

		return nil
	}

	r.schemas[uid] = contentType

	return contentType
}

func (r *importRun) endpoint(ctx context.Context, uid string) string {
	if endpoint, ok := r.endpoints[uid]; ok {
		return endpoint
	}

	endpoint := strapi.EndpointFor(uid, r.contentType(ctx, uid))
	r.endpoints[uid] = endpoint

	return endpoint
}

func (r *importRun) isSingleType(uid string) bool {
	contentType, ok := r.schemas[uid]

	return ok && contentType.IsSingleType()
}

func (r *importRun) importMedia(ctx context.Context, files []ExportedMediaFile, mediaDir string) {
	if mediaDir == "" {
		r.result.AddWarning("Media directory not specified, skipping media import")
		r.logger.Warn("media directory not specified, media references will be dropped", nil)

		return
	}

	info, err := os.Stat(mediaDir)
	if err != nil || !info.IsDir() {
		r.result.AddError("Media directory not found: %s", mediaDir)

		return
	}

	for index := range files {
		exported := &files[index]

		if r.opts.DryRun {
			r.result.MediaImported++
			metrics.Media(metrics.DirectionImport, metrics.ResultDryRun)

			continue
		}

		uploaded, err := UploadMediaFile(ctx, r.client, exported, mediaDir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				r.result.AddWarning("Media file not found: %s (ID: %d)", exported.LocalPath, exported.ID)
			} else {
				r.result.AddWarning("Failed to import media %s: %v", exported.Name, err)
			}

			r.result.MediaSkipped++
			metrics.Media(metrics.DirectionImport, metrics.ResultSkipped)

			continue
		}

		r.result.MediaIDMapping[exported.ID] = uploaded.ID
		r.result.MediaImported++
		metrics.Media(metrics.DirectionImport, metrics.ResultSuccess)
	}

	r.logger.Info("media import finished", map[string]interface{}{
		"imported": r.result.MediaImported,
		"total":    len(files),
	})
}

// createPayload rewrites media references to target IDs and removes
// relation fields. Components lose their source IDs, which the target would
// reject as foreign components.
func (r *importRun) createPayload(ctx context.Context, uid string, entity *ExportedEntity) map[string]interface{} {
	payload := MediaPayload(entity.Data, r.result.MediaIDMapping)

	contentType, ok := r.schemas[uid]
	if !ok {
		return StripComponentIDs(StripRelations(payload))
	}

	payload = r.resolver.StripRelationsWithSchema(ctx, payload, contentType, r.schemas)

	return r.resolver.PrepareComponents(ctx, payload, contentType, r.schemas, r.result.MediaIDMapping)
}

// componentData returns the data the relation pass copies component roots
// from, prepared like a create payload.
func (r *importRun) componentData(ctx context.Context, links pendingLinks) map[string]interface{} {
	contentType, ok := r.schemas[links.uid]
	if !ok {
		return StripComponentIDs(links.data)
	}

	return r.resolver.PrepareComponents(ctx, links.data, contentType, r.schemas, r.result.MediaIDMapping)
}

func (r *importRun) importEntity(ctx context.Context, uid, endpoint string, entity *ExportedEntity) {
	payload := r.createPayload(ctx, uid, entity)

	if r.opts.DryRun {
		r.result.EntitiesImported++
		metrics.Entity(metrics.DirectionImport, uid, metrics.ResultDryRun)

		return
	}

	var (
		response *strapi.NormalizedSingleResponse
		err      error
	)

	if r.isSingleType(uid) {
		response, err = r.client.Update(ctx, endpoint, payload, nil)
	} else {
		response, err = r.client.Create(ctx, endpoint, payload, nil)
	}

	if err == nil && response.Data == nil {
		err = ErrEmptyCreate
	}

	if err != nil {
		if strapi.IsValidation(err) {
			r.result.AddError("Validation error importing %s #%d: %v", uid, entity.ID, err)
		} else {
			r.result.AddError("Failed to import %s #%d: %v", uid, entity.ID, err)
		}

		r.result.EntitiesFailed++
		metrics.Entity(metrics.DirectionImport, uid, metrics.ResultFailure)

		return
	}

	created := response.Data

	r.result.MapID(uid, entity.ID, created.ID)
	r.result.EntitiesImported++
	metrics.Entity(metrics.DirectionImport, uid, metrics.ResultSuccess)

	if r.addresses[uid] == nil {
		r.addresses[uid] = map[int]string{}
	}

	if r.isSingleType(uid) {
		r.addresses[uid][created.ID] = endpoint
	} else {
		r.addresses[uid][created.ID] = endpoint + "/" + created.Identifier()
	}
}

// address returns the endpoint that updates a created entity. v5 entities
// are addressed by documentId.
func (r *importRun) address(ctx context.Context, uid string, newID int) string {
	if address, ok := r.addresses[uid][newID]; ok {
		return address
	}

	return r.endpoint(ctx, uid) + "/" + strconv.Itoa(newID)
}

// link applies the relations of one created entity and, with patchMedia,
// its media fields. Entities that were not created are skipped with a
// warning.
func (r *importRun) link(ctx context.Context, links pendingLinks, patchMedia bool) {
	if r.opts.DryRun || (len(links.relations) == 0 && !patchMedia) {
		return
	}

	newID, ok := r.result.NewID(links.uid, links.oldID)
	if !ok {
		if len(links.relations) > 0 {
			r.result.AddWarning("Cannot import relations for %s #%d: entity not in ID mapping", links.uid, links.oldID)
		}

		return
	}

	resolved := r.resolveRelations(ctx, links)

	payload, err := ApplyNestedRelations(BuildRelationPayload(resolved), r.componentData(ctx, links))
	if err != nil {
		r.result.AddWarning("Failed to import relations for %s #%d: %v", links.uid, newID, err)

		return
	}

	if patchMedia {
		maps.Copy(payload, MediaFields(links.data, r.result.MediaIDMapping))
	}

	if len(payload) == 0 {
		return
	}

	_, err = r.client.Update(ctx, r.address(ctx, links.uid, newID), payload, nil)
	if err != nil {
		r.result.AddWarning("Failed to import relations for %s #%d: %v", links.uid, newID, err)
	}
}

// resolveRelations maps the relation IDs of links to target IDs. Paths
// without a known target and IDs without a mapping produce warnings.
func (r *importRun) resolveRelations(ctx context.Context, links pendingLinks) map[string][]int {
	contentType := r.schemas[links.uid]
	known := map[string][]int{}
	targets := map[string]string{}

	for _, path := range sortedPaths(links.relations) {
		var (
			target string
			found  bool
		)

		if contentType != nil {
			target, found = r.resolver.TargetForPath(ctx, path, links.data, contentType, r.schemas)
		}

		if !found {
			r.result.AddWarning("Unknown relation target for %s #%d field %s", links.uid, links.oldID, path)

			continue
		}

		known[path] = links.relations[path]
		targets[path] = target
	}

	resolved := r.resolver.ResolveRelationsWithSchema(known, r.result.IDMapping, targets)

	for _, path := range sortedPaths(known) {
		if missing := len(known[path]) - len(resolved[path]); missing > 0 {
			r.result.AddWarning("%d related %s entries of %s #%d field %s were not imported",
				missing, targets[path], links.uid, links.oldID, path)
		}
	}

	return resolved
}

func sortedPaths(relations map[string][]int) []string {
	paths := lo.Keys(relations)
	slices.Sort(paths)

	return paths
}

// abort ends a run that cannot continue. The partial result is returned
// and is never successful.
func (r *importRun) abort(err error) (*ImportResult, error) {
	r.result.AddError("import failed: %v", err)

	result := r.finish()
	result.Success = false

	return result, &strapi.ImportExportError{Op: "import", Err: err}
}

func (r *importRun) finish() *ImportResult {
	r.result.Success = r.result.EntitiesFailed == 0

	report(r.opts.Progress, 100, 100, "Import complete")

	r.logger.Info("import finished", map[string]interface{}{
		"imported": r.result.EntitiesImported,
		"failed":   r.result.EntitiesFailed,
		"skipped":  r.result.EntitiesSkipped,
		"media":    r.result.MediaImported,
		"dry_run":  r.result.DryRun,
	})

	return r.result
}
