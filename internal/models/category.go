package models

// Category — категория постов.
// PostCount — денормализованный счётчик постов, ссылающихся на категорию.
// Меняется только каскадом (cascade.Coordinator) либо явным пересчётом.
type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	Color       string `json:"color,omitempty"`
	Icon        string `json:"icon,omitempty"`
	PostCount   int64  `json:"postCount"`
}

// Summary — категория, «подтянутая» в пост (name color).
func (c *Category) Summary() *CategorySummary {
	return &CategorySummary{ID: c.ID, Name: c.Name, Color: c.Color}
}

// CategorySummary — облегчённое представление категории.
type CategorySummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}
