package visitor

import (
	"sync"
	"time"

	"advocat/internal/collection"
	"advocat/internal/models"
	"advocat/internal/remote"
	"advocat/internal/service"

	"github.com/rs/zerolog"
)

// Visitor is the gateway side state of one browser.
type Visitor struct {
	ID      string
	Session *service.Session
	Booking *service.BookingWizard
	Remote  *remote.Client

	Testimonials *collection.Collection[models.Testimonial]

	opts   collection.Options
	logger zerolog.Logger
	// ready is closed once persisted state has been restored.
	ready chan struct{}

	mu          sync.Mutex
	lastSeen    time.Time
	bookingOpen bool
	admin       *adminCollections
}

type adminCollections struct {
	bookings     *collection.Collection[models.Booking]
	contacts     *collection.Collection[models.Contact]
	services     *collection.Collection[models.Service]
	staff        *collection.Collection[models.Staff]
	testimonials *collection.Collection[models.Testimonial]
}

func (v *Visitor) touch(now time.Time) {
	v.mu.Lock()
	v.lastSeen = now
	v.mu.Unlock()
}

func (v *Visitor) LastSeen() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastSeen
}

func (v *Visitor) OpenBooking() {
	v.mu.Lock()
	v.bookingOpen = true
	v.mu.Unlock()
}

func (v *Visitor) CloseBooking() {
	v.mu.Lock()
	v.bookingOpen = false
	v.mu.Unlock()
}

func (v *Visitor) BookingOpen() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.bookingOpen
}

// DropAdmin forgets the back office collections, e.g. after logout.
func (v *Visitor) DropAdmin() {
	v.mu.Lock()
	v.admin = nil
	v.mu.Unlock()
}

func (v *Visitor) adminSet() *adminCollections {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.admin != nil {
		return v.admin
	}
	api := v.Remote
	bookings := api.AdminBookings()
	contacts := api.AdminContacts()
	services := api.AdminServices()
	staff := api.AdminStaff()
	testimonials := api.AdminTestimonials()
	v.admin = &adminCollections{
		bookings:     collection.New("admin_bookings", bookings.List, bookings.Search, v.opts, v.logger),
		contacts:     collection.New("admin_contacts", contacts.List, contacts.Search, v.opts, v.logger),
		services:     collection.New("admin_services", services.List, services.Search, v.opts, v.logger),
		staff:        collection.New("admin_staff", staff.List, staff.Search, v.opts, v.logger),
		testimonials: collection.New("admin_testimonials", testimonials.List, testimonials.Search, v.opts, v.logger),
	}
	return v.admin
}

func (v *Visitor) AdminBookings() *collection.Collection[models.Booking] {
	return v.adminSet().bookings
}

func (v *Visitor) AdminContacts() *collection.Collection[models.Contact] {
	return v.adminSet().contacts
}

func (v *Visitor) AdminServices() *collection.Collection[models.Service] {
	return v.adminSet().services
}

func (v *Visitor) AdminStaff() *collection.Collection[models.Staff] {
	return v.adminSet().staff
}

func (v *Visitor) AdminTestimonials() *collection.Collection[models.Testimonial] {
	return v.adminSet().testimonials
}
