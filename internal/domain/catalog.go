package domain

import (
	"time"
)

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// Page is a limit/offset window over a listing.
type Page struct {
	Limit  int
	Offset int
}

// Normalize clamps the window to sane bounds.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	} else if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// Category groups titles ("Books", "Films", ...).
type Category struct {
	ID   int64  `json:"-" db:"id"`
	Name string `json:"name" db:"name"`
	Slug string `json:"slug" db:"slug"`
}

// Genre is attached to titles many-to-many.
type Genre struct {
	ID   int64  `json:"-" db:"id"`
	Name string `json:"name" db:"name"`
	Slug string `json:"slug" db:"slug"`
}

// Title is a rated work. Rating is computed from reviews at query time and is
// nil when the title has none.
type Title struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Year        int       `json:"year"`
	Rating      *float64  `json:"rating"`
	Description *string   `json:"description"`
	Genres      []Genre   `json:"genre"`
	Category    *Category `json:"category"`
	CreatedAt   time.Time `json:"-"`
}

// CreateSlugRequest creates a category or a genre.
type CreateSlugRequest struct {
	Name string `json:"name" validate:"required,max=256"`
	Slug string `json:"slug" validate:"omitempty,max=50,slug"`
}

// SlugListParams filters category and genre listings.
type SlugListParams struct {
	Search string
	Page   Page
}

// CreateTitleRequest references genres and category by slug.
type CreateTitleRequest struct {
	Name        string   `json:"name" validate:"required,max=256"`
	Year        int      `json:"year" validate:"required"`
	Description *string  `json:"description"`
	Genre       []string `json:"genre" validate:"required,dive,required"` // may be empty, not absent
	Category    string   `json:"category" validate:"required"`
}

// UpdateTitleRequest is a partial update; nil fields are left untouched.
type UpdateTitleRequest struct {
	Name        *string  `json:"name,omitempty" validate:"omitempty,max=256"`
	Year        *int     `json:"year,omitempty"`
	Description *string  `json:"description,omitempty"`
	Genre       []string `json:"genre,omitempty" validate:"omitempty,dive,required"`
	Category    *string  `json:"category,omitempty" validate:"omitempty,min=1"`
}

// TitleListParams filters the titles listing.
type TitleListParams struct {
	GenreSlug    string
	CategorySlug string
	Name         string
	Year         int
	Page         Page
}
