package models

type ContactForm struct {
	Firstname string `json:"firstname" validate:"required,max=100"`
	Lastname  string `json:"lastname" validate:"required,max=100"`
	Email     string `json:"email" validate:"required,email"`
	Message   string `json:"message" validate:"required,max=5000"`
}

type Contact struct {
	ID int64 `json:"id"`
	ContactForm
}

type TestimonialForm struct {
	Author  string  `json:"author" validate:"required,max=100"`
	Job     string  `json:"job" validate:"max=100"`
	Rating  int     `json:"rating" validate:"required,min=1,max=5"`
	Message string  `json:"message" validate:"required,max=2000"`
	Image   *Upload `json:"-"`
}

type Testimonial struct {
	ID          int64    `json:"id"`
	Author      string   `json:"author"`
	Job         string   `json:"job"`
	Rating      int      `json:"rating"`
	Message     string   `json:"message"`
	IsPublished bool     `json:"is_published"`
	Picture     *Picture `json:"picture,omitempty"`
}

func (t Testimonial) PictureID() *int64 {
	if t.Picture == nil {
		return nil
	}
	id := t.Picture.ID
	return &id
}
