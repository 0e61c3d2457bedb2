package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"advocat/internal/collection"
	"advocat/internal/export"
	"advocat/internal/models"
	"advocat/internal/remote"
	"advocat/internal/service"
	"advocat/internal/visitor"
)

var adminRoute = service.RouteMeta{RequiresAuth: true, RequiresAdmin: true}

func (s *HTTPServer) adminRoutes(mux *http.ServeMux) {
	admin := s.requireAdmin

	s.handle(mux, "GET /admin", admin(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/admin/booking/list", http.StatusFound)
	}))

	s.handle(mux, "GET /admin/booking/list", admin(listHandler(s, (*visitor.Visitor).AdminBookings)))
	s.handle(mux, "GET /admin/contact/list", admin(listHandler(s, (*visitor.Visitor).AdminContacts)))
	s.handle(mux, "GET /admin/service/list", admin(listHandler(s, (*visitor.Visitor).AdminServices)))
	s.handle(mux, "GET /admin/staff/list", admin(listHandler(s, (*visitor.Visitor).AdminStaff)))
	s.handle(mux, "GET /admin/testimonial/list", admin(listHandler(s, (*visitor.Visitor).AdminTestimonials)))

	s.handle(mux, "GET /admin/booking/details/{id}", admin(showHandler(s, func(c *remote.Client) remote.Resource[models.Booking] { return c.AdminBookings() })))
	s.handle(mux, "GET /admin/contact/details/{id}", admin(showHandler(s, func(c *remote.Client) remote.Resource[models.Contact] { return c.AdminContacts() })))
	s.handle(mux, "GET /admin/service/details/{id}", admin(showHandler(s, func(c *remote.Client) remote.Resource[models.Service] { return c.AdminServices() })))
	s.handle(mux, "GET /admin/staff/show/{id}", admin(showHandler(s, func(c *remote.Client) remote.Resource[models.Staff] { return c.AdminStaff() })))
	s.handle(mux, "GET /admin/testimonial/details/{id}", admin(showHandler(s, func(c *remote.Client) remote.Resource[models.Testimonial] { return c.AdminTestimonials() })))

	s.handle(mux, "DELETE /admin/booking/details/{id}", admin(s.deleteHandler(func(v *visitor.Visitor, r *http.Request, id int64) (bool, error) {
		ok, err := v.Remote.AdminBookings().Delete(r.Context(), id)
		if ok {
			v.AdminBookings().Remove(func(b models.Booking) bool { return b.ID == id })
		}
		return ok, err
	})))
	s.handle(mux, "DELETE /admin/contact/details/{id}", admin(s.deleteHandler(func(v *visitor.Visitor, r *http.Request, id int64) (bool, error) {
		ok, err := v.Remote.AdminContacts().Delete(r.Context(), id)
		if ok {
			v.AdminContacts().Remove(func(c models.Contact) bool { return c.ID == id })
		}
		return ok, err
	})))
	s.handle(mux, "DELETE /admin/service/details/{id}", admin(s.deleteHandler(func(v *visitor.Visitor, r *http.Request, id int64) (bool, error) {
		ok, err := v.Remote.AdminServices().Delete(r.Context(), id)
		if ok {
			v.AdminServices().Remove(func(svc models.Service) bool { return svc.ID == id })
			s.refreshCatalog(r)
		}
		return ok, err
	})))
	s.handle(mux, "DELETE /admin/staff/show/{id}", admin(s.deleteHandler(func(v *visitor.Visitor, r *http.Request, id int64) (bool, error) {
		pictureID, err := pictureParam(r)
		if err != nil {
			return false, err
		}
		ok, err := v.Remote.DeleteStaff(r.Context(), id, pictureID)
		if ok {
			v.AdminStaff().Remove(func(st models.Staff) bool { return st.ID == id })
			s.refreshCatalog(r)
		}
		return ok, err
	})))
	s.handle(mux, "DELETE /admin/testimonial/details/{id}", admin(s.deleteHandler(func(v *visitor.Visitor, r *http.Request, id int64) (bool, error) {
		pictureID, err := pictureParam(r)
		if err != nil {
			return false, err
		}
		ok, err := v.Remote.DeleteTestimonial(r.Context(), id, pictureID)
		if ok {
			v.AdminTestimonials().Remove(func(t models.Testimonial) bool { return t.ID == id })
		}
		return ok, err
	})))

	s.handle(mux, "POST /admin/staff/show/{id}/toggle", admin(s.handleToggleStaff))
	s.handle(mux, "POST /admin/testimonial/details/{id}/toggle", admin(s.handleToggleTestimonial))

	s.handle(mux, "POST /admin/service/form", admin(s.handleCreateService))
	s.handle(mux, "POST /admin/staff/form", admin(s.handleCreateStaff))
	s.handle(mux, "GET /admin/categories", admin(s.handleAdminCategories))

	s.handle(mux, "GET /admin/booking/export", admin(s.handleExportBookings))
	s.handle(mux, "GET /admin/contact/export", admin(s.handleExportContacts))
}

// requireAdmin sends visitors that are not logged in as admin back to "/".
func (s *HTTPServer) requireAdmin(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v := s.visitor(r)
		if d := service.Guard(r.Context(), v.Session, adminRoute); !d.Allow {
			w.Header().Set("Location", d.Redirect)
			writeJSON(w, http.StatusSeeOther, map[string]string{"redirect": d.Redirect})
			return
		}
		h(w, r)
	}
}

// listHandler serves a back office list: ?search= searches, ?more=1 loads the
// next page, ?reset=1 clears the search, anything else reloads the first page.
func listHandler[T any](s *HTTPServer, pick func(*visitor.Visitor) *collection.Collection[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v := s.visitor(r)
		c := pick(v)
		q := r.URL.Query()

		var err error
		switch {
		case q.Has("search"):
			err = c.Search(r.Context(), q.Get("search"))
		case q.Get("more") == "1":
			_, err = c.LazyLoad(r.Context())
		case q.Get("reset") == "1":
			err = c.Reset(r.Context())
		default:
			err = c.Load(r.Context(), false)
		}
		if errors.Is(err, remote.ErrUnauthorized) {
			redirectHome(w)
			return
		}
		writeJSON(w, http.StatusOK, c.Snapshot())
	}
}

// showHandler answers {"item": null} when the item cannot be loaded.
func showHandler[T any](s *HTTPServer, res func(*remote.Client) remote.Resource[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		v := s.visitor(r)
		item, err := res(v.Remote).Show(r.Context(), id)
		switch {
		case errors.Is(err, remote.ErrUnauthorized):
			redirectHome(w)
			return
		case err != nil && !remote.IsNotFound(err):
			s.log.Warn().Err(err).Int64("id", id).Str("path", r.URL.Path).Msg("admin details unavailable")
		}
		writeJSON(w, http.StatusOK, map[string]any{"item": item})
	}
}

func (s *HTTPServer) deleteHandler(del func(v *visitor.Visitor, r *http.Request, id int64) (bool, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		deleted, err := del(s.visitor(r), r, id)
		if err != nil {
			s.writeFailure(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
	}
}

func (s *HTTPServer) handleToggleStaff(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	v := s.visitor(r)
	staff, err := v.Remote.ToggleStaff(r.Context(), id)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	v.AdminStaff().Replace(func(st models.Staff) bool { return st.ID == id }, *staff)
	s.refreshCatalog(r)
	writeJSON(w, http.StatusOK, map[string]any{"item": staff})
}

func (s *HTTPServer) handleToggleTestimonial(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	v := s.visitor(r)
	t, err := v.Remote.ToggleTestimonial(r.Context(), id)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	v.AdminTestimonials().Replace(func(it models.Testimonial) bool { return it.ID == id }, *t)
	writeJSON(w, http.StatusOK, map[string]any{"item": t})
}

func (s *HTTPServer) handleCreateService(w http.ResponseWriter, r *http.Request) {
	var form models.ServiceForm
	if err := decodeJSON(r, &form); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := models.Validate(form); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	v := s.visitor(r)
	svc, err := v.Remote.CreateService(r.Context(), form)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	v.AdminServices().Prepend(*svc)
	s.refreshCatalog(r)
	writeJSON(w, http.StatusCreated, map[string]any{"item": svc})
}

func (s *HTTPServer) handleCreateStaff(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()
	image, err := readUpload(r, "image", "filename")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	form := models.StaffForm{
		Firstname: r.FormValue("firstname"),
		Lastname:  r.FormValue("lastname"),
		Image:     image,
	}
	if err := models.Validate(form); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	v := s.visitor(r)
	staff, err := v.Remote.CreateStaff(r.Context(), form)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	v.AdminStaff().Prepend(*staff)
	s.refreshCatalog(r)
	writeJSON(w, http.StatusCreated, map[string]any{"item": staff})
}

func (s *HTTPServer) handleAdminCategories(w http.ResponseWriter, r *http.Request) {
	v := s.visitor(r)
	categories, err := v.Remote.AdminCategories(r.Context())
	if errors.Is(err, remote.ErrUnauthorized) {
		redirectHome(w)
		return
	}
	if categories == nil {
		categories = []models.Category{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": categories})
}

func (s *HTTPServer) handleExportBookings(w http.ResponseWriter, r *http.Request) {
	v := s.visitor(r)
	rows, err := collection.Drain(r.Context(), v.Remote.AdminBookings().List, s.cfg.Exports.PageSize)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := export.Bookings(&buf, rows); err != nil {
		s.log.Error().Err(err).Msg("bookings export failed")
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	s.writeXLSX(w, "bookings", buf.Bytes())
}

func (s *HTTPServer) handleExportContacts(w http.ResponseWriter, r *http.Request) {
	v := s.visitor(r)
	rows, err := collection.Drain(r.Context(), v.Remote.AdminContacts().List, s.cfg.Exports.PageSize)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := export.Contacts(&buf, rows); err != nil {
		s.log.Error().Err(err).Msg("contacts export failed")
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	s.writeXLSX(w, "contacts", buf.Bytes())
}

func (s *HTTPServer) writeXLSX(w http.ResponseWriter, kind string, data []byte) {
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(kind, s.now())))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// refreshCatalog reloads the shared public lists after a back office change.
func (s *HTTPServer) refreshCatalog(r *http.Request) {
	if s.catalog != nil {
		_ = s.catalog.Refresh(r.Context())
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

var errBadPicture = errors.New("invalid picture id")

// pictureParam reads ?picture=; absent or empty means no picture.
func pictureParam(r *http.Request) (*int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("picture"))
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, errBadPicture
	}
	return &id, nil
}
