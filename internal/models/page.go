package models

// ListParams — параметры постраничной выдачи (page начинается с 1).
type ListParams struct {
	Page  int64
	Limit int64
}

// Skip возвращает число пропускаемых записей.
func (p ListParams) Skip() int64 {
	if p.Page <= 1 {
		return 0
	}

	return (p.Page - 1) * p.Limit
}

// Page — результат постраничной выдачи.
type Page[T any] struct {
	Data       []T   `json:"data"`
	Page       int64 `json:"page"`
	Limit      int64 `json:"limit"`
	TotalPages int64 `json:"totalPages"`
	TotalItems int64 `json:"totalItems"`
}

// NewPage собирает страницу и считает totalPages.
func NewPage[T any](items []T, p ListParams, total int64) *Page[T] {
	if items == nil {
		items = []T{}
	}

	var pages int64
	if p.Limit > 0 {
		pages = (total + p.Limit - 1) / p.Limit
	}

	return &Page[T]{
		Data:       items,
		Page:       max(p.Page, 1),
		Limit:      p.Limit,
		TotalPages: pages,
		TotalItems: total,
	}
}
