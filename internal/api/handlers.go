package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"advocat/internal/models"
	"advocat/internal/remote"
)

const (
	maxUploadSize = 8 << 20
	// maxFormMemory is kept in memory per multipart form, the rest spills to temp files.
	maxFormMemory = 1 << 20
)

func decodeJSON(r *http.Request, out any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	return decoder.Decode(out)
}

// allowSubmission enforces the per visitor cap on public form posts. A
// failing state store lets the post through.
func (s *HTTPServer) allowSubmission(w http.ResponseWriter, r *http.Request, kind string) bool {
	lim := s.cfg.Server.Submissions
	if s.state == nil || lim.Max <= 0 {
		return true
	}
	allowed, err := s.state.AllowSubmission(r.Context(), kind, visitorIDFromContext(r.Context()), lim.Max, lim.Window)
	if err != nil {
		return true
	}
	if !allowed {
		writeError(w, http.StatusTooManyRequests, "too many submissions, try again later")
		return false
	}
	return true
}

func (s *HTTPServer) handleHome(w http.ResponseWriter, r *http.Request) {
	v := s.visitor(r)
	writeJSON(w, http.StatusOK, map[string]any{
		"services":    s.catalog.Services(r.Context()),
		"categories":  s.catalog.Categories(r.Context()),
		"opening":     s.schedule.Status(s.now()),
		"bookingOpen": v.BookingOpen(),
		"loading":     s.catalog.Loading(),
	})
}

func (s *HTTPServer) handleContact(w http.ResponseWriter, r *http.Request) {
	var form models.ContactForm
	if err := decodeJSON(r, &form); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !s.allowSubmission(w, r, "contact") {
		return
	}
	contact, err := s.contacts.SendContact(r.Context(), visitorIDFromContext(r.Context()), form)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"contact": contact})
}

func (s *HTTPServer) handleBooking(w http.ResponseWriter, r *http.Request) {
	v := s.visitor(r)
	draft := v.Booking.Draft()

	services := s.catalog.Services(r.Context())
	if draft.CategoryID != nil {
		services = s.catalog.ServicesByCategory(r.Context(), *draft.CategoryID)
	}
	var selected *models.Service
	if draft.ServiceID != nil {
		// a service gone from the catalog just leaves nothing selected
		selected, _ = s.catalog.ServiceByID(r.Context(), *draft.ServiceID)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"draft":           draft,
		"categories":      s.catalog.Categories(r.Context()),
		"services":        services,
		"selectedService": selected,
		"staff":           s.catalog.ActiveStaff(r.Context()),
		"slots":           v.Booking.Slots(),
		"bookingOpen":     v.BookingOpen(),
	})
}

func (s *HTTPServer) handleSetDraft(w http.ResponseWriter, r *http.Request) {
	var patch models.DraftPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	v := s.visitor(r)
	draft := v.Booking.SetDraft(r.Context(), patch)
	writeJSON(w, http.StatusOK, map[string]any{
		"draft": draft,
		"slots": v.Booking.LoadSlots(r.Context()),
	})
}

func (s *HTTPServer) handleResetDraft(w http.ResponseWriter, r *http.Request) {
	v := s.visitor(r)
	v.Booking.ResetDraft(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"draft": v.Booking.Draft(), "slots": []models.Slot{}})
}

func (s *HTTPServer) handleSlots(w http.ResponseWriter, r *http.Request) {
	v := s.visitor(r)
	writeJSON(w, http.StatusOK, map[string]any{"slots": v.Booking.LoadSlots(r.Context())})
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var form models.BookingForm
	if err := decodeJSON(r, &form); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !s.allowSubmission(w, r, "booking") {
		return
	}
	v := s.visitor(r)
	if form.Datetime == "" {
		if dt := v.Booking.Draft().Datetime; dt != nil {
			form.Datetime = *dt
		}
	}
	booking, err := v.Booking.CreateBooking(r.Context(), form)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"booking": booking, "redirect": "/confirmation"})
}

func (s *HTTPServer) handleConfirmation(w http.ResponseWriter, r *http.Request) {
	v := s.visitor(r)
	writeJSON(w, http.StatusOK, map[string]any{"booking": v.Booking.LastBooking()})
}

func (s *HTTPServer) handlePanel(open bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v := s.visitor(r)
		if open {
			v.OpenBooking()
		} else {
			v.CloseBooking()
		}
		writeJSON(w, http.StatusOK, map[string]bool{"bookingOpen": v.BookingOpen()})
	}
}

func (s *HTTPServer) handleTestimonials(w http.ResponseWriter, r *http.Request) {
	v := s.visitor(r)
	if r.URL.Query().Get("more") == "1" {
		_, _ = v.Testimonials.LazyLoad(r.Context())
	} else {
		_ = v.Testimonials.Load(r.Context(), false)
	}
	writeJSON(w, http.StatusOK, v.Testimonials.Snapshot())
}

func (s *HTTPServer) handleCreateTestimonial(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()
	rating, err := strconv.Atoi(strings.TrimSpace(r.FormValue("rating")))
	if err != nil {
		writeError(w, http.StatusBadRequest, "rating must be a number")
		return
	}
	image, err := readUpload(r, "image", "filename")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	form := models.TestimonialForm{
		Author:  r.FormValue("author"),
		Job:     r.FormValue("job"),
		Rating:  rating,
		Message: r.FormValue("message"),
		Image:   image,
	}
	if !s.allowSubmission(w, r, "testimonial") {
		return
	}

	v := s.visitor(r)
	t, err := s.contacts.CreateTestimonial(r.Context(), v.ID, form)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	v.Testimonials.Prepend(*t)
	writeJSON(w, http.StatusCreated, map[string]any{"testimonial": t})
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var form models.LoginForm
	if err := decodeJSON(r, &form); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	v := s.visitor(r)
	if err := v.Session.Login(r.Context(), form); err != nil {
		if remote.StatusCode(err) == http.StatusUnauthorized || errors.Is(err, remote.ErrNoToken) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v.Session.View())
}

func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	v := s.visitor(r)
	v.Session.Logout(r.Context())
	v.DropAdmin()
	writeJSON(w, http.StatusOK, v.Session.View())
}

func (s *HTTPServer) handleRequestPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email" validate:"required,email"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := models.Validate(body); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	v := s.visitor(r)
	resp, err := v.Session.EmailExists(r.Context(), body.Email)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	if len(resp) == 0 {
		resp = json.RawMessage("null")
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": resp})
}

func (s *HTTPServer) handleMe(w http.ResponseWriter, r *http.Request) {
	v := s.visitor(r)
	v.Session.EnsureUser(r.Context())
	writeJSON(w, http.StatusOK, v.Session.View())
}

func (s *HTTPServer) handleLegalNotices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"page":    "legal-notices",
		"company": s.cfg.App.Name,
	})
}

// readUpload returns the first file found under one of names, nil when none was sent.
func readUpload(r *http.Request, names ...string) (*models.Upload, error) {
	for _, name := range names {
		file, header, err := r.FormFile(name)
		if errors.Is(err, http.ErrMissingFile) {
			continue
		}
		if err != nil {
			return nil, errors.New("invalid file upload")
		}
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, maxUploadSize))
		if err != nil {
			return nil, errors.New("invalid file upload")
		}
		return &models.Upload{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		}, nil
	}
	return nil, nil
}
