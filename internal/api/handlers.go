package api

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/collage/pkg/device"
	"github.com/matzehuels/collage/pkg/errors"
	"github.com/matzehuels/collage/pkg/ingest"
	"github.com/matzehuels/collage/pkg/layout"
	"github.com/matzehuels/collage/pkg/pipeline"
	"github.com/matzehuels/collage/pkg/session"
	"github.com/matzehuels/collage/pkg/share"
	"github.com/matzehuels/collage/pkg/slots"
)

// =============================================================================
// Payloads
// =============================================================================

type slotView struct {
	Index    int         `json:"index"`
	State    slots.State `json:"state"`
	Progress float64     `json:"progress,omitempty"`
	Name     string      `json:"name,omitempty"`
}

type sessionView struct {
	ID      string      `json:"id"`
	Layout  layout.Kind `json:"layout"`
	Version uint64      `json:"version"`
	Slots   []slotView  `json:"slots"`
}

type resultView struct {
	Index      int         `json:"index"`
	Name       string      `json:"name"`
	Route      string      `json:"route,omitempty"`
	State      slots.State `json:"state"`
	Superseded bool        `json:"superseded,omitempty"`
	Error      string      `json:"error,omitempty"`
	Guidance   string      `json:"guidance,omitempty"`
}

type uploadView struct {
	Accepted int          `json:"accepted"`
	Dropped  []string     `json:"dropped,omitempty"`
	Results  []resultView `json:"results,omitempty"`
}

type receiptView struct {
	Strategy    string `json:"strategy"`
	Outcome     string `json:"outcome"`
	Name        string `json:"name"`
	Location    string `json:"location,omitempty"`
	Disposition string `json:"disposition,omitempty"`
	Format      string `json:"format"`
	Size        int    `json:"size"`
	Slots       int    `json:"slots"`
}

func viewSession(sess *session.Session) sessionView {
	c := sess.Slots
	v := sessionView{ID: sess.ID, Layout: c.Layout(), Version: c.Version()}
	for i, sl := range c.Snapshot() {
		v.Slots = append(v.Slots, slotView{Index: i, State: sl.State(), Progress: sl.Progress(), Name: sl.Name()})
	}
	return v
}

func viewResult(res ingest.Result) resultView {
	v := resultView{
		Index:      res.Index,
		Name:       res.Name,
		State:      res.State,
		Superseded: res.Superseded,
	}
	if !errors.Is(res.Err, errors.ErrCodeInvalidInput) {
		v.Route = res.Route.String()
	}
	if res.Err != nil {
		v.Error = errors.UserMessage(res.Err)
		v.Guidance = errors.Guidance(res.Err)
	}
	return v
}

// =============================================================================
// Sessions
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Layout string `json:"layout"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			s.writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid request body"))
			return
		}
	}
	kind := pipeline.DefaultLayout
	if req.Layout != "" {
		k, err := layout.ParseKind(req.Layout)
		if err != nil {
			s.writeError(w, err)
			return
		}
		kind = k
	}

	sess, err := s.sessions.Create(r.Context(), kind)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, viewSession(sess))
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.sessions.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, viewSession(sess))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// Slots
// =============================================================================

// readParts loads every part of the named multipart field into memory so
// background loads outlive the request.
func (s *Server) readParts(r *http.Request, field string) ([]ingest.File, error) {
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "expected a multipart upload")
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File[field]
	if len(headers) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "no files in field %q", field)
	}
	files := make([]ingest.File, 0, len(headers))
	for _, h := range headers {
		f, err := s.readPart(h)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

func (s *Server) readPart(h *multipart.FileHeader) (ingest.File, error) {
	rc, err := h.Open()
	if err != nil {
		return ingest.File{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "cannot read %s", h.Filename)
	}
	defer rc.Close()

	// One byte over the limit is enough for validation to reject the file.
	data, err := io.ReadAll(io.LimitReader(rc, s.cfg.Ingest.MaxFileBytes+1))
	if err != nil {
		return ingest.File{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "cannot read %s", h.Filename)
	}
	f := ingest.FromBytes(h.Filename, h.Header.Get("Content-Type"), data)
	if h.Size > f.Size {
		f.Size = h.Size
	}
	return f, nil
}

func wait(r *http.Request) bool {
	ok, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	return ok
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	files, err := s.readParts(r, "files")
	if err != nil {
		s.writeError(w, err)
		return
	}
	p := device.Detect(r.UserAgent())

	if !wait(r) {
		go s.runner.Ingest(s.ctx, sess.Slots, files, p)
		v := uploadView{Accepted: min(len(files), slots.Count)}
		for _, f := range files[v.Accepted:] {
			v.Dropped = append(v.Dropped, f.Name)
		}
		s.writeJSON(w, http.StatusAccepted, v)
		return
	}

	report := s.runner.Ingest(r.Context(), sess.Slots, files, p)
	v := uploadView{Accepted: len(report.Results), Dropped: report.Dropped}
	for _, res := range report.Results {
		v.Results = append(v.Results, viewResult(res))
	}
	s.writeJSON(w, http.StatusOK, v)
}

func slotIndex(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "index")
	i, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New(errors.ErrCodeInvalidIndex, "invalid slot index %q", raw)
	}
	if err := errors.ValidateSlotIndex(i, slots.Count); err != nil {
		return 0, err
	}
	return i, nil
}

func (s *Server) handleUploadAt(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	index, err := slotIndex(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	files, err := s.readParts(r, "file")
	if err != nil {
		s.writeError(w, err)
		return
	}
	f := files[0]
	if err := ingest.Validate(f, s.cfg.Ingest.MaxFileBytes); err != nil {
		s.writeError(w, err)
		return
	}
	p := device.Detect(r.UserAgent())

	if !wait(r) {
		go s.runner.IngestAt(s.ctx, sess.Slots, index, f, p)
		s.writeJSON(w, http.StatusAccepted, uploadView{Accepted: 1})
		return
	}
	res := s.runner.IngestAt(r.Context(), sess.Slots, index, f, p)
	s.writeJSON(w, http.StatusOK, uploadView{Accepted: 1, Results: []resultView{viewResult(res)}})
}

func (s *Server) handleClearSlot(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	index, err := slotIndex(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := sess.Slots.Clear(index); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, viewSession(sess))
}

func (s *Server) handleSource(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	index, err := slotIndex(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	sl, _ := sess.Slots.Slot(index)
	src := sl.Source()
	if src == nil {
		s.writeError(w, errors.New(errors.ErrCodeNotFound, "slot %d has no image", index))
		return
	}
	w.Header().Set("Content-Type", src.MediaType())
	w.Header().Set("Content-Length", strconv.Itoa(src.Len()))
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(src.Bytes())
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var m pipeline.Move
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid move"))
		return
	}
	if err := sess.Slots.Move(m.From, m.To); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, viewSession(sess))
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.Slots.Reset()
	s.writeJSON(w, http.StatusOK, viewSession(sess))
}

func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Layout string `json:"layout"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid request body"))
		return
	}
	if err := sess.Slots.SetLayout(layout.Kind(req.Layout)); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, viewSession(sess))
}

// handleGeometry returns the geometry an export would use now, optionally
// scaled to a preview width.
func (s *Server) handleGeometry(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	geo, err := layout.Compute(sess.Slots.Layout(), len(sess.Slots.Ready()), s.cfg.Layout)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if raw := r.URL.Query().Get("width"); raw != "" {
		width, err := strconv.ParseFloat(raw, 64)
		if err != nil || width <= 0 {
			s.writeError(w, errors.New(errors.ErrCodeInvalidInput, "invalid width %q", raw))
			return
		}
		geo = geo.Fit(width)
	}
	s.writeJSON(w, http.StatusOK, geo)
}

// =============================================================================
// Export and delivery
// =============================================================================

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var opts pipeline.Options
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&opts); err != nil && err != io.EOF {
			s.writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid request body"))
			return
		}
	}
	opts.Moves = nil
	opts.Profile = device.Detect(r.UserAgent())
	opts.Logger = s.logger

	result, err := s.runner.Export(r.Context(), sess.Slots, opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	rc := result.Receipt
	s.writeJSON(w, http.StatusOK, receiptView{
		Strategy:    rc.Strategy,
		Outcome:     rc.Outcome.String(),
		Name:        rc.Name,
		Location:    rc.Location,
		Disposition: rc.Disposition,
		Format:      string(rc.Format),
		Size:        rc.Size,
		Slots:       result.Stats.Ready,
	})
}

func (s *Server) serveItem(w http.ResponseWriter, r *http.Request, kind share.Kind) {
	item, err := s.shares.Open(r.Context(), kind, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	disposition := item.Disposition
	if disposition == "" {
		disposition = "inline"
	}
	w.Header().Set("Content-Type", item.MediaType)
	w.Header().Set("Content-Length", strconv.Itoa(len(item.Data)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, item.Name))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	_, _ = w.Write(item.Data)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	s.serveItem(w, r, share.KindDownload)
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	s.serveItem(w, r, share.KindShare)
}
