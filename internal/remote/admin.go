package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"advocat/internal/models"
)

// Resource is one back office entity exposing list, search, show and delete
// under a common path prefix.
type Resource[T any] struct {
	c    *Client
	name string
	base string
	// wrapSingle turns a lone object answer of list into a one-element page.
	wrapSingle bool
}

func (r Resource[T]) List(ctx context.Context, limit, offset int) ([]T, error) {
	return getList[T](ctx, r.c, r.name+"_list", r.base+"/list", pageQuery(limit, offset), r.wrapSingle)
}

func (r Resource[T]) Search(ctx context.Context, term string) ([]T, error) {
	q := url.Values{}
	q.Set("search", term)
	return getList[T](ctx, r.c, r.name+"_search", r.base+"/search", q, false)
}

func (r Resource[T]) Show(ctx context.Context, id int64) (*T, error) {
	var out T
	if err := r.c.getJSON(ctx, r.name+"_show", fmt.Sprintf("%s/show/%d", r.base, id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r Resource[T]) Delete(ctx context.Context, id int64) (bool, error) {
	return r.c.delete(ctx, r.name+"_delete", fmt.Sprintf("%s/delete/%d", r.base, id))
}

// toggle flips the active or published flag and returns the updated entity.
func (r Resource[T]) toggle(ctx context.Context, id int64) (*T, error) {
	var out T
	if err := r.c.postJSON(ctx, r.name+"_toggle", fmt.Sprintf("%s/%d/toggle", r.base, id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AdminBookings() Resource[models.Booking] {
	return Resource[models.Booking]{c: c, name: "admin_appointment", base: "/api/admin/appointment"}
}

func (c *Client) AdminContacts() Resource[models.Contact] {
	return Resource[models.Contact]{c: c, name: "admin_contact", base: "/api/admin/contact", wrapSingle: true}
}

func (c *Client) AdminServices() Resource[models.Service] {
	return Resource[models.Service]{c: c, name: "admin_service", base: "/api/admin/service"}
}

func (c *Client) AdminStaff() Resource[models.Staff] {
	return Resource[models.Staff]{c: c, name: "admin_staff", base: "/api/admin/staff"}
}

func (c *Client) AdminTestimonials() Resource[models.Testimonial] {
	return Resource[models.Testimonial]{c: c, name: "admin_testimonial", base: "/api/admin/testimonial"}
}

func (c *Client) AdminCategories(ctx context.Context) ([]models.Category, error) {
	return getList[models.Category](ctx, c, "admin_category_list", "/api/admin/category/list", nil, true)
}

func (c *Client) CreateService(ctx context.Context, form models.ServiceForm) (*models.Service, error) {
	var s models.Service
	if err := c.postJSON(ctx, "admin_service_create", "/api/admin/service/create", form, &s); err != nil {
		return nil, err
	}
	c.InvalidateCatalog(ctx)
	return &s, nil
}

func (c *Client) ToggleStaff(ctx context.Context, id int64) (*models.Staff, error) {
	s, err := c.AdminStaff().toggle(ctx, id)
	if err == nil {
		c.InvalidateCatalog(ctx)
	}
	return s, err
}

func (c *Client) CreateStaff(ctx context.Context, form models.StaffForm) (*models.Staff, error) {
	body, contentType, err := encodeMultipart([]formField{
		{"firstname", form.Firstname},
		{"lastname", form.Lastname},
	}, form.Image)
	if err != nil {
		return nil, err
	}

	var s models.Staff
	err = c.doJSON(ctx, request{
		op:          "admin_staff_create",
		method:      http.MethodPost,
		path:        "/api/admin/staff/create",
		body:        body,
		contentType: contentType,
	}, &s)
	if err != nil {
		return nil, err
	}
	c.InvalidateCatalog(ctx)
	return &s, nil
}

// DeleteStaff removes a staff member, and its picture when pictureID is set.
func (c *Client) DeleteStaff(ctx context.Context, id int64, pictureID *int64) (bool, error) {
	path := fmt.Sprintf("/api/admin/staff/delete/%d", id)
	if pictureID != nil {
		path += fmt.Sprintf("/picture/%d", *pictureID)
	}
	ok, err := c.delete(ctx, "admin_staff_delete", path)
	if err == nil {
		c.InvalidateCatalog(ctx)
	}
	return ok, err
}

func (c *Client) ToggleTestimonial(ctx context.Context, id int64) (*models.Testimonial, error) {
	return c.AdminTestimonials().toggle(ctx, id)
}

// DeleteTestimonial goes through the show path, which is where the API mounts testimonial deletion.
func (c *Client) DeleteTestimonial(ctx context.Context, id int64, pictureID *int64) (bool, error) {
	path := fmt.Sprintf("/api/admin/testimonial/show/%d", id)
	if pictureID != nil {
		path += fmt.Sprintf("/picture/%d", *pictureID)
	}
	return c.delete(ctx, "admin_testimonial_delete", path)
}
