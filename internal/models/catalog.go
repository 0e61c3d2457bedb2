package models

type CategoryForm struct {
	Name string `json:"name" validate:"required"`
	Slug string `json:"slug" validate:"required"`
}

type Category struct {
	ID int64 `json:"id"`
	CategoryForm
}

type ServiceForm struct {
	Name        string  `json:"name" validate:"required,max=255"`
	Description string  `json:"description"`
	Price       float64 `json:"price" validate:"gte=0"`
	Duration    int     `json:"duration" validate:"gte=0"`
	CategoryID  int64   `json:"category_id,omitempty"`
}

type Service struct {
	ID int64 `json:"id"`
	ServiceForm
}

type Picture struct {
	ID       int64  `json:"id"`
	Filename string `json:"filename"`
}

// Upload is a file received from the browser and forwarded as a multipart part.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

type StaffForm struct {
	Firstname string  `json:"firstname" validate:"required,max=100"`
	Lastname  string  `json:"lastname" validate:"required,max=100"`
	Image     *Upload `json:"-"`
}

type Staff struct {
	ID        int64    `json:"id"`
	Firstname string   `json:"firstname"`
	Lastname  string   `json:"lastname"`
	IsActive  bool     `json:"is_active"`
	Picture   *Picture `json:"picture,omitempty"`
}

// PictureID is the id to pass to a delete call, nil when there is no picture.
func (s Staff) PictureID() *int64 {
	if s.Picture == nil {
		return nil
	}
	id := s.Picture.ID
	return &id
}
