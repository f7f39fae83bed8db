// Package transfer moves content between Strapi instances.
//
// # Overview
//
// An Exporter reads content types, their entities and referenced media into
// a portable format. An Importer writes that format into another instance.
// Source IDs mean nothing on the target, so relations are exported
// separately from the entity data as lists of source IDs per field path and
// re-applied in a second pass once every entity has been created:
//
//	exporter := transfer.NewExporter(source)
//	data, err := exporter.ExportContentTypes(ctx,
//	  []string{"api::author.author", "api::article.article"},
//	  transfer.ExportOptions{IncludeMedia: true, MediaDir: "export/media"})
//	if err != nil { log.Fatal(err) }
//
//	importer := transfer.NewImporter(target)
//	result, err := importer.ImportData(ctx, data,
//	  transfer.ImportOptions{ImportMedia: true}, "export/media")
//
// # Formats
//
// ExportData.SaveToFile writes a single indented JSON document with the keys
// "metadata", "entities" and "media". For large instances the JSONL format
// keeps memory flat: a metadata line, one line per entity and a trailing
// "media_manifest" line, each tagged with "_type". Use
// Exporter.ExportToJSONL with a JSONLWriter and Importer.ImportJSONL with a
// JSONLReader.
//
// # Relations
//
// With a schema, only fields typed as relations are extracted, including
// those nested in components ("seo.related") and dynamic zones
// ("blocks[1].link"). Without a schema, a top-level field shaped like
// {"data": ...} whose objects carry no mime is treated as a relation.
// Relations to content types outside the export are not resolved.
//
// # Media
//
// Media references are the objects carrying a mime type. Files are
// downloaded as "{id}_{sanitized name}" and uploaded again on import;
// references to files that were not imported are dropped from the created
// entities. Manifest paths are validated so that a crafted export cannot
// read outside the media directory.
package transfer
