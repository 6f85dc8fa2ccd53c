package httpserver

import (
	"crypto/hmac"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mrkjhm/belisita-catalog/internal/domain"
	"github.com/mrkjhm/belisita-catalog/internal/gate"
	"github.com/mrkjhm/belisita-catalog/internal/query"
	"github.com/mrkjhm/belisita-catalog/internal/usecase"
)

const maxUploadBytes = 25 << 20

// Server is the operator-facing API of the catalog manager.
type Server struct {
	mux        *http.ServeMux
	products   *usecase.ProductUC
	categories *usecase.CategoryUC
	export     *usecase.ExportUC
	sessions   *usecase.SessionRegistry
	catalog    *query.Engine
	previewDir string
	adminToken string
}

func New(p *usecase.ProductUC, c *usecase.CategoryUC, e *usecase.ExportUC, sessions *usecase.SessionRegistry, catalog *query.Engine, previewDir, adminToken string) http.Handler {
	s := &Server{
		mux:        http.NewServeMux(),
		products:   p,
		categories: c,
		export:     e,
		sessions:   sessions,
		catalog:    catalog,
		previewDir: previewDir,
		adminToken: adminToken,
	}
	s.routes()
	return recovery(logging(s.mux))
}

func (s *Server) routes() {
	s.mux.Handle("/previews/", http.StripPrefix("/previews/", http.FileServer(http.Dir(s.previewDir))))

	s.mux.HandleFunc("/api/products", s.apiProducts)
	s.mux.HandleFunc("/api/products/", s.apiProductByID)
	s.mux.HandleFunc("/api/products/delete-request", s.apiProductDeleteRequest)

	s.mux.HandleFunc("/api/sessions", s.apiSessions)
	s.mux.HandleFunc("/api/sessions/", s.apiSessionByID)

	s.mux.HandleFunc("/api/confirmations/confirm", s.apiConfirm)
	s.mux.HandleFunc("/api/confirmations/dismiss", s.apiDismiss)
	s.mux.HandleFunc("/api/confirmations/state", s.apiConfirmationState)

	s.mux.HandleFunc("/api/categories", s.apiCategories)
	s.mux.HandleFunc("/api/categories/", s.apiCategoryByID)
	s.mux.HandleFunc("/api/categories/delete-request", s.apiCategoryDeleteRequest)

	s.mux.HandleFunc("/admin/export/xlsx", s.handleExportXLSX)
	s.mux.HandleFunc("/admin/import/xlsx", s.handleImportXLSX)
}

// apiProducts drives the catalog query engine: the search param issues a
// server-side query, the category param narrows locally.
func (s *Server) apiProducts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method", 405)
		return
	}
	search := r.URL.Query().Get("search")
	if err := s.catalog.SetQuery(r.Context(), search); err != nil {
		s.fail(w, 502, err)
		return
	}
	if cat := r.URL.Query().Get("category"); cat != "" {
		s.catalog.SetCategoryFilter(cat)
	}
	writeJSON(w, 200, map[string]any{"success": true, "data": s.catalog.Visible()})
}

func (s *Server) apiProductByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/products/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, "product id", 400)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method", 405)
		return
	}
	p, err := s.products.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.fail(w, 404, err)
			return
		}
		s.fail(w, 502, err)
		return
	}
	writeJSON(w, 200, map[string]any{"success": true, "data": p})
}

func (s *Server) apiProductDeleteRequest(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method", 405)
		return
	}
	var body struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ID == "" {
		http.Error(w, "id", 400)
		return
	}
	req := s.products.RequestDelete(body.ID, body.Name)
	writeJSON(w, 200, map[string]any{"success": true, "token": req.Token, "label": req.Label})
}

func (s *Server) apiSessions(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method", 405)
		return
	}
	var body struct {
		ProductID string `json:"product_id"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	sess, err := s.sessions.Open(r.Context(), body.ProductID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.fail(w, 404, err)
			return
		}
		s.fail(w, 502, err)
		return
	}
	writeJSON(w, 201, map[string]any{"success": true, "data": sessionView(sess)})
}

// apiSessionByID routes /api/sessions/{id}[/...] by hand, the same way
// the product endpoints do.
func (s *Server) apiSessionByID(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "session id", 400)
		return
	}
	id, err := uuid.Parse(parts[0])
	if err != nil {
		http.Error(w, "session id", 400)
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			sess, err := s.sessions.Get(id)
			if err != nil {
				s.fail(w, 404, err)
				return
			}
			writeJSON(w, 200, map[string]any{"success": true, "data": sessionView(sess)})
		case http.MethodDelete:
			s.sessions.Abandon(id)
			writeJSON(w, 200, map[string]any{"success": true, "message": "session abandoned"})
		default:
			http.Error(w, "method", 405)
		}
		return
	}

	sess, err := s.sessions.Get(id)
	if err != nil {
		s.fail(w, 404, err)
		return
	}

	switch {
	case parts[1] == "images" && len(parts) == 2 && r.Method == http.MethodPost:
		s.stageImages(w, r, sess)
	case parts[1] == "images" && len(parts) == 3 && r.Method == http.MethodDelete:
		idx, err := strconv.Atoi(parts[2])
		if err != nil {
			http.Error(w, "index", 400)
			return
		}
		if err := sess.Staging.Unstage(idx); err != nil {
			s.fail(w, 404, err)
			return
		}
		writeJSON(w, 200, map[string]any{"success": true, "data": sessionView(sess)})
	case parts[1] == "images" && len(parts) >= 4 && parts[len(parts)-1] == "delete-request" && r.Method == http.MethodPost:
		// Folder-scoped public ids contain slashes; everything between
		// images/ and /delete-request is the id.
		publicID := strings.Join(parts[2:len(parts)-1], "/")
		req := s.products.RequestRemoveImage(sess, publicID)
		writeJSON(w, 200, map[string]any{"success": true, "token": req.Token})
	case parts[1] == "submit" && r.Method == http.MethodPost:
		s.submitSession(w, r, sess)
	case parts[1] == "add-images" && r.Method == http.MethodPost:
		res, err := s.products.AddImages(r.Context(), sess)
		if err != nil {
			s.fail(w, 502, err)
			return
		}
		writeJSON(w, 200, map[string]any{"success": true, "data": sessionView(sess), "failed": len(res.Failed)})
	default:
		http.Error(w, "not found", 404)
	}
}

func (s *Server) stageImages(w http.ResponseWriter, r *http.Request, sess *usecase.EditSession) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "multipart", 400)
		return
	}
	var files []domain.FilePayload
	if r.MultipartForm != nil {
		for _, field := range []string{"image", "images"} {
			for _, fh := range r.MultipartForm.File[field] {
				if fh.Size == 0 {
					continue
				}
				f, err := fh.Open()
				if err != nil {
					continue
				}
				data, err := io.ReadAll(f)
				_ = f.Close()
				if err != nil || len(data) == 0 {
					continue
				}
				files = append(files, domain.FilePayload{
					Name:        fh.Filename,
					ContentType: fh.Header.Get("Content-Type"),
					Data:        data,
				})
			}
		}
	}
	if len(files) == 0 {
		http.Error(w, "no files", 400)
		return
	}
	if err := sess.Staging.Stage(files...); err != nil {
		if errors.Is(err, domain.ErrCapacityExceeded) {
			s.fail(w, 422, err)
			return
		}
		s.fail(w, 500, err)
		return
	}
	writeJSON(w, 200, map[string]any{"success": true, "data": sessionView(sess)})
}

func (s *Server) submitSession(w http.ResponseWriter, r *http.Request, sess *usecase.EditSession) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		http.Error(w, "form", 400)
		return
	}
	price, _ := strconv.ParseFloat(r.FormValue("price"), 64)
	in := domain.ProductInput{
		Name:        strings.TrimSpace(r.FormValue("name")),
		Code:        strings.TrimSpace(r.FormValue("code")),
		Description: r.FormValue("description"),
		Price:       price,
		CategoryID:  strings.TrimSpace(r.FormValue("category")),
	}

	var (
		res domain.BatchResult
		err error
	)
	if sess.ProductID == "" {
		res, err = s.products.Create(r.Context(), sess, in)
	} else {
		res, err = s.products.Update(r.Context(), sess, in)
	}
	if err != nil {
		s.fail(w, 502, err)
		return
	}
	msg := "product saved"
	if n := len(res.Failed); n > 0 {
		msg = strconv.Itoa(n) + " image(s) failed to upload and remain staged"
	}
	writeJSON(w, 200, map[string]any{"success": true, "message": msg, "data": sessionView(sess)})
}

func (s *Server) apiConfirm(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	kind, id, ok := confirmationTarget(w, r)
	if !ok {
		return
	}
	if err := s.products.Confirm(r.Context(), kind, id); err != nil {
		if errors.Is(err, gate.ErrNoPending) {
			s.fail(w, 409, err)
			return
		}
		s.fail(w, 502, err)
		return
	}
	writeJSON(w, 200, map[string]any{"success": true, "message": "deleted"})
}

func (s *Server) apiDismiss(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	kind, id, ok := confirmationTarget(w, r)
	if !ok {
		return
	}
	if err := s.products.Dismiss(kind, id); err != nil {
		s.fail(w, 409, err)
		return
	}
	writeJSON(w, 200, map[string]any{"success": true, "message": "dismissed"})
}

func (s *Server) apiConfirmationState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method", 405)
		return
	}
	kind := gate.Kind(r.URL.Query().Get("kind"))
	id := r.URL.Query().Get("id")
	if kind == "" || id == "" {
		http.Error(w, "kind and id", 400)
		return
	}
	writeJSON(w, 200, map[string]any{"success": true, "state": s.products.Gate.StateOf(kind, id)})
}

func confirmationTarget(w http.ResponseWriter, r *http.Request) (gate.Kind, string, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "method", 405)
		return "", "", false
	}
	var body struct {
		Kind     string `json:"kind"`
		TargetID string `json:"target_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.TargetID == "" {
		http.Error(w, "target", 400)
		return "", "", false
	}
	switch gate.Kind(body.Kind) {
	case gate.KindImage, gate.KindProduct, gate.KindCategory:
		return gate.Kind(body.Kind), body.TargetID, true
	}
	http.Error(w, "kind", 400)
	return "", "", false
}

func (s *Server) apiCategories(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		cats, err := s.categories.List(r.Context())
		if err != nil {
			s.fail(w, 502, err)
			return
		}
		writeJSON(w, 200, map[string]any{"success": true, "categories": cats})
	case http.MethodPost:
		if !s.requireAdmin(w, r) {
			return
		}
		var body struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "name", 400)
			return
		}
		if err := s.categories.Add(r.Context(), body.Name); err != nil {
			s.fail(w, 422, err)
			return
		}
		writeJSON(w, 201, map[string]any{"success": true, "message": "category added"})
	default:
		http.Error(w, "method", 405)
	}
}

func (s *Server) apiCategoryByID(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/categories/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, "category id", 400)
		return
	}
	if r.Method != http.MethodPut {
		http.Error(w, "method", 405)
		return
	}
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "name", 400)
		return
	}
	if err := s.categories.Update(r.Context(), id, body.Name); err != nil {
		s.fail(w, 422, err)
		return
	}
	writeJSON(w, 200, map[string]any{"success": true, "message": "category updated"})
}

func (s *Server) apiCategoryDeleteRequest(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method", 405)
		return
	}
	var body struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ID == "" {
		http.Error(w, "id", 400)
		return
	}
	req := s.categories.RequestDelete(body.ID, body.Name)
	writeJSON(w, 200, map[string]any{"success": true, "token": req.Token, "label": req.Label})
}

func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method", 405)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename=products.xlsx")
	if err := s.export.ExportXLSX(r.Context(), w); err != nil {
		log.Error().Err(err).Msg("catalog export failed")
	}
}

func (s *Server) handleImportXLSX(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method", 405)
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "multipart", 400)
		return
	}
	f, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file", 400)
		return
	}
	defer f.Close()
	added, skipped, err := s.export.ImportXLSX(r.Context(), f)
	if err != nil {
		s.fail(w, 422, err)
		return
	}
	_ = s.catalog.Refresh(r.Context())
	writeJSON(w, 200, map[string]any{"success": true, "added": added, "skipped": skipped})
}

func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	if s.adminToken == "" {
		return true
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		tok := strings.TrimSpace(auth[7:])
		if hmac.Equal([]byte(tok), []byte(s.adminToken)) {
			return true
		}
	}
	http.Error(w, "unauthorized", 401)
	return false
}

// fail writes the backend-style {success:false, message} envelope.
func (s *Server) fail(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]any{"success": false, "message": err.Error()})
}

type stagedView struct {
	Index   int    `json:"index"`
	Name    string `json:"name"`
	Preview string `json:"preview"`
}

type sessionPayload struct {
	ID        string              `json:"id"`
	ProductID string              `json:"product_id,omitempty"`
	Staged    []stagedView        `json:"staged"`
	Persisted []domain.ImageAsset `json:"persisted"`
	Remaining int                 `json:"remaining"`
}

func sessionView(sess *usecase.EditSession) sessionPayload {
	items := sess.Staging.Items()
	staged := make([]stagedView, len(items))
	for i, it := range items {
		staged[i] = stagedView{Index: i, Name: it.File.Name, Preview: it.Preview}
	}
	persisted := sess.Persisted.Assets()
	return sessionPayload{
		ID:        sess.ID.String(),
		ProductID: sess.ProductID,
		Staged:    staged,
		Persisted: persisted,
		Remaining: domain.MaxImagesPerProduct - len(persisted) - len(staged),
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		log.Info().Str("method", r.Method).Str("path", r.URL.Path).Msg("request")
	})
}

func recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("handler panic")
				http.Error(w, "internal error", 500)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
