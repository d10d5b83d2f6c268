package domain

// Category of the external catalog.
type Category struct {
	ID    int    `json:"id"`
	Name  string `json:"name,omitempty"`
	Image string `json:"image,omitempty"`
}

// Product as resolved from the catalog collaborator. Some catalog
// backends return a single image field instead of an images array.
type Product struct {
	ID          int      `json:"id"`
	Title       string   `json:"title"`
	Price       float64  `json:"price"`
	Description string   `json:"description,omitempty"`
	Images      []string `json:"images,omitempty"`
	Image       string   `json:"image,omitempty"`
	Category    Category `json:"category"`
}

// ImageURL returns the display image: first of Images when present,
// otherwise the single Image field.
func (p Product) ImageURL() string {
	if len(p.Images) > 0 {
		return p.Images[0]
	}
	return p.Image
}
