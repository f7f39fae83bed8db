// Package strapitest provides an in-process fake Strapi server for tests. It
// speaks the v4 or v5 REST format, keeps entries in memory and records every
// request so tests can assert on write traffic.
package strapitest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/fivetwenty-io/strapi-client/pkg/strapi"
)

const timestamp = "2024-01-15T10:30:00.000Z"

var errForeignComponent = errors.New("components are not related to the entity")

// RecordedRequest is one request seen by the server.
type RecordedRequest struct {
	Method string
	Path   string
	Query  string
}

type entry struct {
	id         int
	documentID string
	fields     map[string]interface{}
}

type model struct {
	uid        string
	endpoint   string
	single     bool
	info       map[string]interface{}
	attributes map[string]map[string]interface{}
	entries    []*entry
	nextID     int
}

type mediaRecord struct {
	id              int
	documentID      string
	name            string
	alternativeText string
	caption         string
	mime            string
	ext             string
	hash            string
	size            float64
	url             string
}

// Server is a fake Strapi instance.
type Server struct {
	*httptest.Server

	Version strapi.APIVersion

	// Token, when set, is required as bearer token on /api routes.
	Token string

	// AdminEmail and AdminPassword enable /admin/login, which returns AdminJWT.
	AdminEmail    string
	AdminPassword string
	AdminJWT      string

	mutex       sync.Mutex
	types       map[string]*model
	byEndpoint  map[string]*model
	components  map[string]*model
	media       map[int]*mediaRecord
	files       map[string][]byte
	nextMediaID int
	nextPartID  int
	requests    []RecordedRequest
	failCreate  func(endpoint string, data map[string]interface{}) bool
}

// NewServer starts a fake server speaking version. It is closed when the test
// ends.
func NewServer(t *testing.T, version strapi.APIVersion) *Server {
	t.Helper()

	s := &Server{
		Version:     version,
		types:       map[string]*model{},
		byEndpoint:  map[string]*model{},
		components:  map[string]*model{},
		media:       map[int]*mediaRecord{},
		files:       map[string][]byte{},
		nextMediaID: 1,
		nextPartID:  1,
	}

	s.Server = httptest.NewServer(s.router())
	t.Cleanup(s.Close)

	return s
}

func (s *Server) router() *mux.Router {
	router := mux.NewRouter()
	router.Use(s.record)

	router.HandleFunc("/admin/login", s.handleLogin).Methods(http.MethodPost)
	router.PathPrefix("/uploads/").HandlerFunc(s.handleFile).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(s.authenticate)

	api.HandleFunc("/content-type-builder/content-types", s.handleListSchemas(false)).Methods(http.MethodGet)
	api.HandleFunc("/content-type-builder/content-types/{uid}", s.handleGetSchema(false)).Methods(http.MethodGet)
	api.HandleFunc("/content-type-builder/components", s.handleListSchemas(true)).Methods(http.MethodGet)
	api.HandleFunc("/content-type-builder/components/{uid}", s.handleGetSchema(true)).Methods(http.MethodGet)

	api.HandleFunc("/upload", s.handleUpload).Methods(http.MethodPost)
	api.HandleFunc("/upload/files", s.handleListMedia).Methods(http.MethodGet)
	api.HandleFunc("/upload/files/{id:[0-9]+}", s.handleGetMedia).Methods(http.MethodGet)
	api.HandleFunc("/upload/files/{id:[0-9]+}", s.handleUpdateMedia).Methods(http.MethodPut)
	api.HandleFunc("/upload/files/{id:[0-9]+}", s.handleDeleteMedia).Methods(http.MethodDelete)

	api.HandleFunc("/{endpoint}", s.handleCollection).Methods(http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete)
	api.HandleFunc("/{endpoint}/{id}", s.handleEntry).Methods(http.MethodGet, http.MethodPut, http.MethodDelete)

	return router
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		s.mutex.Lock()
		s.requests = append(s.requests, RecordedRequest{
			Method: request.Method,
			Path:   request.URL.Path,
			Query:  request.URL.RawQuery,
		})
		s.mutex.Unlock()

		next.ServeHTTP(writer, request)
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if s.Token == "" && s.AdminJWT == "" {
			next.ServeHTTP(writer, request)

			return
		}

		header := request.Header.Get("Authorization")
		if (s.Token != "" && header == "Bearer "+s.Token) || (s.AdminJWT != "" && header == "Bearer "+s.AdminJWT) {
			next.ServeHTTP(writer, request)

			return
		}

		writeError(writer, http.StatusUnauthorized, "UnauthorizedError", "Missing or invalid credentials")
	})
}

// AddContentType registers a content type. attributes uses the Content-Type
// Builder shape, e.g. {"title": {"type": "string"}}. kind is
// "collectionType" or "singleType".
func (s *Server) AddContentType(uid, singular, plural, kind string, attributes map[string]map[string]interface{}) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	contentType := &model{
		uid:      uid,
		endpoint: plural,
		single:   kind == "singleType",
		info: map[string]interface{}{
			"displayName":  strings.ToUpper(singular[:1]) + singular[1:],
			"singularName": singular,
			"pluralName":   plural,
		},
		attributes: attributes,
		nextID:     1,
	}

	if contentType.single {
		contentType.endpoint = singular
	}

	s.types[uid] = contentType
	s.byEndpoint[contentType.endpoint] = contentType
}

// AddComponent registers a component schema.
func (s *Server) AddComponent(uid string, attributes map[string]map[string]interface{}) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	_, name, _ := strings.Cut(uid, ".")
	s.components[uid] = &model{
		uid:        uid,
		info:       map[string]interface{}{"displayName": name},
		attributes: attributes,
	}
}

// Seed stores an entry directly and returns its numeric id and documentId.
// Relation and media fields hold target ids.
func (s *Server) Seed(endpoint string, fields map[string]interface{}) (int, string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	contentType := s.byEndpoint[endpoint]
	fields = strapi.CloneMap(fields)
	_ = s.claimComponents(contentType.attributes, fields, nil)

	created := s.insert(contentType, fields)

	return created.id, created.documentID
}

func (s *Server) insert(contentType *model, fields map[string]interface{}) *entry {
	created := &entry{
		id:         contentType.nextID,
		documentID: strings.ReplaceAll(uuid.NewString(), "-", "")[:24],
		fields:     strapi.CloneMap(fields),
	}

	if created.fields == nil {
		created.fields = map[string]interface{}{}
	}

	contentType.nextID++
	contentType.entries = append(contentType.entries, created)

	return created
}

// AddMedia stores a file in the media library and returns its id.
func (s *Server) AddMedia(name, mimeType string, content []byte) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.addMedia(name, mimeType, content).id
}

func (s *Server) addMedia(name, mimeType string, content []byte) *mediaRecord {
	id := s.nextMediaID
	s.nextMediaID++

	ext := path.Ext(name)
	hash := fmt.Sprintf("%s_%d", strings.TrimSuffix(name, ext), id)

	record := &mediaRecord{
		id:         id,
		documentID: strings.ReplaceAll(uuid.NewString(), "-", "")[:24],
		name:       name,
		mime:       mimeType,
		ext:        ext,
		hash:       hash,
		size:       float64(len(content)) / 1024,
		url:        "/uploads/" + hash + ext,
	}

	s.media[id] = record
	s.files[record.url] = content

	return record
}

// FailCreates makes POST requests for which fn returns true answer 400.
func (s *Server) FailCreates(fn func(endpoint string, data map[string]interface{}) bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.failCreate = fn
}

// Entries returns copies of the stored fields of every entry at endpoint, in
// id order. The "id" and "documentId" keys are added.
func (s *Server) Entries(endpoint string) []map[string]interface{} {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	contentType := s.byEndpoint[endpoint]
	if contentType == nil {
		return nil
	}

	out := make([]map[string]interface{}, 0, len(contentType.entries))

	for _, stored := range contentType.entries {
		fields := strapi.CloneMap(stored.fields)
		fields["id"] = stored.id
		fields["documentId"] = stored.documentID
		out = append(out, fields)
	}

	return out
}

// MediaCount returns the number of files in the media library.
func (s *Server) MediaCount() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return len(s.media)
}

// Requests returns every request seen so far.
func (s *Server) Requests() []RecordedRequest {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return append([]RecordedRequest(nil), s.requests...)
}

// WriteCount returns the number of POST, PUT and DELETE requests.
func (s *Server) WriteCount() int {
	count := 0

	for _, request := range s.Requests() {
		switch request.Method {
		case http.MethodPost, http.MethodPut, http.MethodDelete:
			if request.Path != "/admin/login" {
				count++
			}
		}
	}

	return count
}

// CountRequests returns how many requests matched method and path exactly.
func (s *Server) CountRequests(method, requestPath string) int {
	count := 0

	for _, request := range s.Requests() {
		if request.Method == method && request.Path == requestPath {
			count++
		}
	}

	return count
}

func (s *Server) handleLogin(writer http.ResponseWriter, request *http.Request) {
	var credentials struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	_ = json.NewDecoder(request.Body).Decode(&credentials)

	if s.AdminEmail == "" || credentials.Email != s.AdminEmail || credentials.Password != s.AdminPassword {
		writeError(writer, http.StatusBadRequest, "ApplicationError", "Invalid credentials")

		return
	}

	writeJSON(writer, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{"token": s.AdminJWT, "user": map[string]interface{}{"id": 1}},
	})
}

func (s *Server) handleFile(writer http.ResponseWriter, request *http.Request) {
	s.mutex.Lock()
	content, ok := s.files[request.URL.Path]
	s.mutex.Unlock()

	if !ok {
		writeError(writer, http.StatusNotFound, "NotFoundError", "Not Found")

		return
	}

	_, _ = writer.Write(content)
}

func (s *Server) handleListSchemas(components bool) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		s.mutex.Lock()
		defer s.mutex.Unlock()

		source := s.types
		if components {
			source = s.components
		}

		uids := make([]string, 0, len(source))
		for uid := range source {
			uids = append(uids, uid)
		}

		sort.Strings(uids)

		data := make([]interface{}, 0, len(uids))
		for _, uid := range uids {
			data = append(data, s.renderSchema(source[uid]))
		}

		writeJSON(writer, http.StatusOK, map[string]interface{}{"data": data})
	}
}

func (s *Server) handleGetSchema(components bool) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		s.mutex.Lock()
		defer s.mutex.Unlock()

		source := s.types
		if components {
			source = s.components
		}

		contentType, ok := source[mux.Vars(request)["uid"]]
		if !ok {
			writeError(writer, http.StatusNotFound, "NotFoundError", "content type not found")

			return
		}

		writeJSON(writer, http.StatusOK, map[string]interface{}{"data": s.renderSchema(contentType)})
	}
}

// renderSchema uses the v4 Content-Type Builder shape (schema.info) for v4
// and the flat v5 shape otherwise.
func (s *Server) renderSchema(contentType *model) map[string]interface{} {
	kind := "collectionType"
	if contentType.single {
		kind = "singleType"
	}

	schema := map[string]interface{}{
		"kind":       kind,
		"attributes": contentType.attributes,
	}

	if s.Version == strapi.VersionV4 {
		schema["info"] = contentType.info
	} else {
		for key, value := range contentType.info {
			schema[key] = value
		}
	}

	return map[string]interface{}{"uid": contentType.uid, "schema": schema}
}

func (s *Server) handleCollection(writer http.ResponseWriter, request *http.Request) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	contentType, ok := s.byEndpoint[mux.Vars(request)["endpoint"]]
	if !ok {
		writeError(writer, http.StatusNotFound, "NotFoundError", "Not Found")

		return
	}

	populate := wantsPopulate(request)

	if contentType.single {
		s.handleSingleType(writer, request, contentType, populate)

		return
	}

	switch request.Method {
	case http.MethodGet:
		s.list(writer, request, contentType, populate)
	case http.MethodPost:
		s.create(writer, request, contentType)
	default:
		writeError(writer, http.StatusMethodNotAllowed, "MethodNotAllowedError", "Method Not Allowed")
	}
}

func (s *Server) handleSingleType(writer http.ResponseWriter, request *http.Request, contentType *model, populate bool) {
	switch request.Method {
	case http.MethodGet:
		if len(contentType.entries) == 0 {
			writeError(writer, http.StatusNotFound, "NotFoundError", "Not Found")

			return
		}

		writeJSON(writer, http.StatusOK, map[string]interface{}{
			"data": s.renderEntry(contentType, contentType.entries[0], populate),
			"meta": map[string]interface{}{},
		})
	case http.MethodPut:
		data, err := readData(request)
		if err != nil {
			writeError(writer, http.StatusBadRequest, "ValidationError", err.Error())

			return
		}

		var previous map[string]interface{}
		if len(contentType.entries) > 0 {
			previous = contentType.entries[0].fields
		}

		err = s.claimComponents(contentType.attributes, data, previous)
		if err != nil {
			writeError(writer, http.StatusBadRequest, "ValidationError", err.Error())

			return
		}

		var stored *entry
		if len(contentType.entries) == 0 {
			stored = s.insert(contentType, data)
		} else {
			stored = contentType.entries[0]
			for key, value := range data {
				stored.fields[key] = value
			}
		}

		writeJSON(writer, http.StatusOK, map[string]interface{}{
			"data": s.renderEntry(contentType, stored, false),
			"meta": map[string]interface{}{},
		})
	case http.MethodDelete:
		contentType.entries = nil

		writer.WriteHeader(http.StatusNoContent)
	default:
		writeError(writer, http.StatusMethodNotAllowed, "MethodNotAllowedError", "Method Not Allowed")
	}
}

func (s *Server) list(writer http.ResponseWriter, request *http.Request, contentType *model, populate bool) {
	query := request.URL.Query()

	page := atoiDefault(query.Get("pagination[page]"), 1)
	pageSize := atoiDefault(query.Get("pagination[pageSize]"), 25)
	total := len(contentType.entries)

	start := min((page-1)*pageSize, total)
	end := min(start+pageSize, total)

	data := make([]interface{}, 0, end-start)
	for _, stored := range contentType.entries[start:end] {
		data = append(data, s.renderEntry(contentType, stored, populate))
	}

	pageCount := (total + pageSize - 1) / pageSize

	writeJSON(writer, http.StatusOK, map[string]interface{}{
		"data": data,
		"meta": map[string]interface{}{
			"pagination": map[string]interface{}{
				"page":      page,
				"pageSize":  pageSize,
				"pageCount": pageCount,
				"total":     total,
			},
		},
	})
}

func (s *Server) create(writer http.ResponseWriter, request *http.Request, contentType *model) {
	data, err := readData(request)
	if err != nil {
		writeError(writer, http.StatusBadRequest, "ValidationError", err.Error())

		return
	}

	if s.failCreate != nil && s.failCreate(contentType.endpoint, data) {
		writeError(writer, http.StatusBadRequest, "ValidationError", "rejected by test")

		return
	}

	err = s.claimComponents(contentType.attributes, data, nil)
	if err != nil {
		writeError(writer, http.StatusBadRequest, "ValidationError", err.Error())

		return
	}

	created := s.insert(contentType, data)

	writeJSON(writer, http.StatusOK, map[string]interface{}{
		"data": s.renderEntry(contentType, created, false),
		"meta": map[string]interface{}{},
	})
}

func (s *Server) handleEntry(writer http.ResponseWriter, request *http.Request) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	vars := mux.Vars(request)

	contentType, ok := s.byEndpoint[vars["endpoint"]]
	if !ok {
		writeError(writer, http.StatusNotFound, "NotFoundError", "Not Found")

		return
	}

	index := s.find(contentType, vars["id"])
	if index < 0 {
		writeError(writer, http.StatusNotFound, "NotFoundError", "Not Found")

		return
	}

	stored := contentType.entries[index]

	switch request.Method {
	case http.MethodGet:
		writeJSON(writer, http.StatusOK, map[string]interface{}{
			"data": s.renderEntry(contentType, stored, wantsPopulate(request)),
			"meta": map[string]interface{}{},
		})
	case http.MethodPut:
		data, err := readData(request)
		if err != nil {
			writeError(writer, http.StatusBadRequest, "ValidationError", err.Error())

			return
		}

		err = s.claimComponents(contentType.attributes, data, stored.fields)
		if err != nil {
			writeError(writer, http.StatusBadRequest, "ValidationError", err.Error())

			return
		}

		for key, value := range data {
			stored.fields[key] = value
		}

		writeJSON(writer, http.StatusOK, map[string]interface{}{
			"data": s.renderEntry(contentType, stored, false),
			"meta": map[string]interface{}{},
		})
	case http.MethodDelete:
		contentType.entries = append(contentType.entries[:index], contentType.entries[index+1:]...)

		if s.Version == strapi.VersionV5 {
			writer.WriteHeader(http.StatusNoContent)

			return
		}

		writeJSON(writer, http.StatusOK, map[string]interface{}{
			"data": s.renderEntry(contentType, stored, false),
			"meta": map[string]interface{}{},
		})
	}
}

// find resolves a documentId in v5 and a numeric id in v4.
func (s *Server) find(contentType *model, identifier string) int {
	for i, stored := range contentType.entries {
		if s.Version == strapi.VersionV5 && stored.documentID == identifier {
			return i
		}

		if s.Version != strapi.VersionV5 && strconv.Itoa(stored.id) == identifier {
			return i
		}
	}

	return -1
}

func (s *Server) renderEntry(contentType *model, stored *entry, populate bool) map[string]interface{} {
	attributes := map[string]interface{}{
		"createdAt":   timestamp,
		"updatedAt":   timestamp,
		"publishedAt": timestamp,
	}

	for key, value := range stored.fields {
		fieldType, _ := contentType.attributes[key]["type"].(string)

		switch fieldType {
		case "relation":
			if populate {
				attributes[key] = s.renderRelation(contentType.attributes[key], value)
			}
		case "media":
			if populate {
				attributes[key] = s.renderMediaField(value)
			}
		case "component", "dynamiczone":
			attributes[key] = s.renderComponentField(contentType.attributes[key], value, populate)
		default:
			attributes[key] = strapi.CloneValue(value)
		}
	}

	if s.Version == strapi.VersionV5 {
		attributes["id"] = stored.id
		attributes["documentId"] = stored.documentID

		return attributes
	}

	return map[string]interface{}{"id": stored.id, "attributes": attributes}
}

// renderComponentField renders a component or dynamic zone value. Relations
// and media inside components are populated like top-level fields.
func (s *Server) renderComponentField(attribute map[string]interface{}, value interface{}, populate bool) interface{} {
	componentUID, _ := attribute["component"].(string)

	if list, ok := strapi.AsSlice(value); ok {
		rendered := make([]interface{}, 0, len(list))

		for _, item := range list {
			object, isObject := strapi.AsMap(item)
			if !isObject {
				continue
			}

			uid := componentUID
			if zoneUID, inZone := object["__component"].(string); inZone {
				uid = zoneUID
			}

			rendered = append(rendered, s.renderComponent(uid, object, populate))
		}

		return rendered
	}

	if object, ok := strapi.AsMap(value); ok {
		return s.renderComponent(componentUID, object, populate)
	}

	return strapi.CloneValue(value)
}

func (s *Server) renderComponent(uid string, object map[string]interface{}, populate bool) map[string]interface{} {
	var attributes map[string]map[string]interface{}
	if component := s.components[uid]; component != nil {
		attributes = component.attributes
	}

	rendered := make(map[string]interface{}, len(object))

	for key, value := range object {
		attribute := attributes[key]
		fieldType, _ := attribute["type"].(string)

		switch fieldType {
		case "relation":
			if populate {
				rendered[key] = s.renderRelation(attribute, value)
			}
		case "media":
			if populate {
				rendered[key] = s.renderMediaField(value)
			}
		case "component", "dynamiczone":
			rendered[key] = s.renderComponentField(attribute, value, populate)
		default:
			rendered[key] = strapi.CloneValue(value)
		}
	}

	return rendered
}

// claimComponents assigns ids to new component entries of data. An entry
// carrying an id must be one previous already holds, as Strapi only updates
// components that belong to the entity.
func (s *Server) claimComponents(attributes map[string]map[string]interface{}, data, previous map[string]interface{}) error {
	for key, value := range data {
		attribute := attributes[key]
		fieldType, _ := attribute["type"].(string)

		if fieldType != "component" && fieldType != "dynamiczone" {
			continue
		}

		owned := map[int]map[string]interface{}{}
		for _, object := range componentObjects(previous[key]) {
			if id, ok := strapi.AsID(object["id"]); ok {
				owned[id] = object
			}
		}

		for _, object := range componentObjects(value) {
			var before map[string]interface{}

			if id, ok := strapi.AsID(object["id"]); ok {
				before, ok = owned[id]
				if !ok {
					return fmt.Errorf("some of the provided components in %s: %w", key, errForeignComponent)
				}
			} else {
				object["id"] = s.nextPartID
				s.nextPartID++
			}

			uid, _ := attribute["component"].(string)
			if zoneUID, inZone := object["__component"].(string); inZone {
				uid = zoneUID
			}

			if component := s.components[uid]; component != nil {
				err := s.claimComponents(component.attributes, object, before)
				if err != nil {
					return err
				}
			}
		}
	}

	return nil
}

func componentObjects(value interface{}) []map[string]interface{} {
	if object, ok := strapi.AsMap(value); ok {
		return []map[string]interface{}{object}
	}

	list, _ := strapi.AsSlice(value)
	objects := make([]map[string]interface{}, 0, len(list))

	for _, item := range list {
		if object, ok := strapi.AsMap(item); ok {
			objects = append(objects, object)
		}
	}

	return objects
}

func (s *Server) renderRelation(attribute map[string]interface{}, value interface{}) interface{} {
	target := s.types[fmt.Sprint(attribute["target"])]

	ids, many := relationIDs(value)

	rendered := make([]interface{}, 0, len(ids))

	for _, id := range ids {
		if target == nil {
			continue
		}

		for _, stored := range target.entries {
			if stored.id == id {
				rendered = append(rendered, s.renderEntry(target, stored, false))
			}
		}
	}

	if s.Version == strapi.VersionV5 {
		if many {
			return rendered
		}

		if len(rendered) == 0 {
			return nil
		}

		return rendered[0]
	}

	if many {
		return map[string]interface{}{"data": rendered}
	}

	if len(rendered) == 0 {
		return map[string]interface{}{"data": nil}
	}

	return map[string]interface{}{"data": rendered[0]}
}

func (s *Server) renderMediaField(value interface{}) interface{} {
	ids, many := relationIDs(value)

	rendered := make([]interface{}, 0, len(ids))

	for _, id := range ids {
		if record, ok := s.media[id]; ok {
			object := s.renderMedia(record)
			if s.Version == strapi.VersionV4 {
				delete(object, "id")
				object = map[string]interface{}{"id": record.id, "attributes": object}
			}

			rendered = append(rendered, object)
		}
	}

	if s.Version == strapi.VersionV5 {
		if many {
			return rendered
		}

		if len(rendered) == 0 {
			return nil
		}

		return rendered[0]
	}

	if many {
		return map[string]interface{}{"data": rendered}
	}

	if len(rendered) == 0 {
		return map[string]interface{}{"data": nil}
	}

	return map[string]interface{}{"data": rendered[0]}
}

// relationIDs reads stored relation values: an id, a list of ids, or
// {"connect": [...]}/{"set": [...]}.
func relationIDs(value interface{}) ([]int, bool) {
	if object, ok := strapi.AsMap(value); ok {
		for _, key := range []string{"set", "connect"} {
			if list, isList := strapi.AsSlice(object[key]); isList {
				return idsFromList(list), true
			}
		}

		return nil, false
	}

	if list, ok := strapi.AsSlice(value); ok {
		return idsFromList(list), true
	}

	if ids, ok := value.([]int); ok {
		return ids, true
	}

	if id, ok := strapi.AsID(value); ok {
		return []int{id}, false
	}

	return nil, false
}

func idsFromList(list []interface{}) []int {
	ids := make([]int, 0, len(list))

	for _, item := range list {
		if object, ok := strapi.AsMap(item); ok {
			item = object["id"]
		}

		if id, ok := strapi.AsID(item); ok {
			ids = append(ids, id)
		}
	}

	return ids
}

func (s *Server) renderMedia(record *mediaRecord) map[string]interface{} {
	object := map[string]interface{}{
		"id":              record.id,
		"name":            record.name,
		"alternativeText": nullable(record.alternativeText),
		"caption":         nullable(record.caption),
		"width":           nil,
		"height":          nil,
		"formats":         nil,
		"hash":            record.hash,
		"ext":             record.ext,
		"mime":            record.mime,
		"size":            record.size,
		"url":             record.url,
		"previewUrl":      nil,
		"provider":        "local",
		"createdAt":       timestamp,
		"updatedAt":       timestamp,
	}

	if s.Version == strapi.VersionV5 {
		object["documentId"] = record.documentID
	}

	return object
}

func nullable(value string) interface{} {
	if value == "" {
		return nil
	}

	return value
}

func (s *Server) handleUpload(writer http.ResponseWriter, request *http.Request) {
	err := request.ParseMultipartForm(32 << 20)
	if err != nil {
		writeError(writer, http.StatusBadRequest, "ValidationError", err.Error())

		return
	}

	var fileInfo map[string]string

	if raw := request.FormValue("fileInfo"); raw != "" {
		_ = json.Unmarshal([]byte(raw), &fileInfo)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if rawID := request.URL.Query().Get("id"); rawID != "" {
		id, _ := strconv.Atoi(rawID)

		record, ok := s.media[id]
		if !ok {
			writeError(writer, http.StatusNotFound, "NotFoundError", "File not found")

			return
		}

		applyFileInfo(record, fileInfo)
		writeJSON(writer, http.StatusOK, s.renderMedia(record))

		return
	}

	uploaded := make([]interface{}, 0)

	for _, header := range request.MultipartForm.File["files"] {
		file, openErr := header.Open()
		if openErr != nil {
			writeError(writer, http.StatusBadRequest, "ValidationError", openErr.Error())

			return
		}

		content, _ := io.ReadAll(file)
		_ = file.Close()

		record := s.addMedia(header.Filename, header.Header.Get("Content-Type"), content)
		applyFileInfo(record, fileInfo)
		uploaded = append(uploaded, s.renderMedia(record))
	}

	if len(uploaded) == 0 {
		writeError(writer, http.StatusBadRequest, "ValidationError", "Files are empty")

		return
	}

	writeJSON(writer, http.StatusCreated, uploaded)
}

func applyFileInfo(record *mediaRecord, fileInfo map[string]string) {
	if value, ok := fileInfo["alternativeText"]; ok {
		record.alternativeText = value
	}

	if value, ok := fileInfo["caption"]; ok {
		record.caption = value
	}

	if value, ok := fileInfo["name"]; ok {
		record.name = value
	}
}

func (s *Server) handleListMedia(writer http.ResponseWriter, request *http.Request) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	ids := make([]int, 0, len(s.media))
	for id := range s.media {
		ids = append(ids, id)
	}

	sort.Ints(ids)

	out := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.renderMedia(s.media[id]))
	}

	writeJSON(writer, http.StatusOK, out)
}

func (s *Server) mediaFromRequest(writer http.ResponseWriter, request *http.Request) *mediaRecord {
	id, _ := strconv.Atoi(mux.Vars(request)["id"])

	record, ok := s.media[id]
	if !ok {
		writeError(writer, http.StatusNotFound, "NotFoundError", "File not found")

		return nil
	}

	return record
}

func (s *Server) handleGetMedia(writer http.ResponseWriter, request *http.Request) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if record := s.mediaFromRequest(writer, request); record != nil {
		writeJSON(writer, http.StatusOK, s.renderMedia(record))
	}
}

func (s *Server) handleUpdateMedia(writer http.ResponseWriter, request *http.Request) {
	var body struct {
		FileInfo map[string]string `json:"fileInfo"`
	}

	_ = json.NewDecoder(request.Body).Decode(&body)

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if record := s.mediaFromRequest(writer, request); record != nil {
		applyFileInfo(record, body.FileInfo)
		writeJSON(writer, http.StatusOK, s.renderMedia(record))
	}
}

func (s *Server) handleDeleteMedia(writer http.ResponseWriter, request *http.Request) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if record := s.mediaFromRequest(writer, request); record != nil {
		delete(s.media, record.id)
		delete(s.files, record.url)
		writeJSON(writer, http.StatusOK, s.renderMedia(record))
	}
}

func wantsPopulate(request *http.Request) bool {
	for key := range request.URL.Query() {
		if strings.HasPrefix(key, "populate") {
			return true
		}
	}

	return false
}

func readData(request *http.Request) (map[string]interface{}, error) {
	var body struct {
		Data map[string]interface{} `json:"data"`
	}

	err := json.NewDecoder(request.Body).Decode(&body)
	if err != nil {
		return nil, fmt.Errorf("invalid body: %w", err)
	}

	if body.Data == nil {
		return map[string]interface{}{}, nil
	}

	return body.Data, nil
}

func atoiDefault(raw string, fallback int) int {
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return fallback
	}

	return value
}

func writeJSON(writer http.ResponseWriter, status int, body interface{}) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	_ = json.NewEncoder(writer).Encode(body)
}

func writeError(writer http.ResponseWriter, status int, name, message string) {
	writeJSON(writer, status, map[string]interface{}{
		"data": nil,
		"error": map[string]interface{}{
			"status":  status,
			"name":    name,
			"message": message,
			"details": map[string]interface{}{},
		},
	})
}
