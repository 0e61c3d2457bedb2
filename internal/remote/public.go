package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"advocat/internal/models"
)

const (
	cacheKeyCategories = "advocat:catalog:categories"
	cacheKeyServices   = "advocat:catalog:services"
	cacheKeyStaff      = "advocat:catalog:staff"
)

// Login exchanges credentials for a token. The API expects the email as username.
func (c *Client) Login(ctx context.Context, form models.LoginForm) (*models.LoginResponse, error) {
	body := map[string]string{"username": form.Email, "password": form.Password}
	var resp models.LoginResponse
	if err := c.postJSON(ctx, "login", "/api/login", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// EmailExists asks whether an account exists for email. The answer is passed through as is.
func (c *Client) EmailExists(ctx context.Context, email string) (json.RawMessage, error) {
	var resp json.RawMessage
	if err := c.postJSON(ctx, "user_existing", "/api/user/existing", map[string]string{"email": email}, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) Me(ctx context.Context) (*models.UserMe, error) {
	var me models.UserMe
	if err := c.getJSON(ctx, "user_me", "/api/user/me", nil, &me); err != nil {
		return nil, err
	}
	return &me, nil
}

func (c *Client) Slots(ctx context.Context, categoryID, serviceID, staffID int64, date string) ([]models.Slot, error) {
	q := url.Values{}
	q.Set("categoryId", strconv.FormatInt(categoryID, 10))
	q.Set("serviceId", strconv.FormatInt(serviceID, 10))
	q.Set("staffId", strconv.FormatInt(staffID, 10))
	q.Set("date", date)
	return getList[models.Slot](ctx, c, "appointment_slots", "/api/appointment/slots", q, false)
}

func (c *Client) CreateBooking(ctx context.Context, form models.BookingForm) (*models.Booking, error) {
	var b models.Booking
	if err := c.postJSON(ctx, "appointment_create", "/api/appointment/create", form, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *Client) CreateContact(ctx context.Context, form models.ContactForm) (*models.Contact, error) {
	var ct models.Contact
	if err := c.postJSON(ctx, "contact_create", "/api/contact/create", form, &ct); err != nil {
		return nil, err
	}
	return &ct, nil
}

func (c *Client) Categories(ctx context.Context) ([]models.Category, error) {
	return cachedList[models.Category](ctx, c, "category_list", "/api/category/list", cacheKeyCategories)
}

func (c *Client) Services(ctx context.Context) ([]models.Service, error) {
	return cachedList[models.Service](ctx, c, "service_list", "/api/service/list", cacheKeyServices)
}

func (c *Client) Staff(ctx context.Context) ([]models.Staff, error) {
	return cachedList[models.Staff](ctx, c, "staff_list", "/api/staff/list", cacheKeyStaff)
}

func (c *Client) Testimonials(ctx context.Context, limit, offset int) ([]models.Testimonial, error) {
	return getList[models.Testimonial](ctx, c, "testimonial_list", "/api/testimonial/list", pageQuery(limit, offset), false)
}

// CreateTestimonial posts the form as multipart, the image under the "filename" field.
func (c *Client) CreateTestimonial(ctx context.Context, form models.TestimonialForm) (*models.Testimonial, error) {
	body, contentType, err := encodeMultipart([]formField{
		{"author", form.Author},
		{"job", form.Job},
		{"rating", strconv.Itoa(form.Rating)},
		{"message", form.Message},
	}, form.Image)
	if err != nil {
		return nil, err
	}

	var t models.Testimonial
	err = c.doJSON(ctx, request{
		op:          "testimonial_create",
		method:      http.MethodPost,
		path:        "/api/testimonial/create",
		body:        body,
		contentType: contentType,
	}, &t)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// InvalidateCatalog drops cached categories, services and staff.
func (c *Client) InvalidateCatalog(ctx context.Context) {
	if c.redis == nil {
		return
	}
	if err := c.redis.Del(ctx, cacheKeyCategories, cacheKeyServices, cacheKeyStaff).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("catalog cache invalidation failed")
	}
}
