package models

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Filter is an equality condition on one column.
type Filter struct {
	Column string
	Value  interface{}
}

func Where(column string, value interface{}) Filter {
	return Filter{Column: column, Value: value}
}

type PageQuery struct {
	Page     int      `form:"page" json:"page"`
	PageSize int      `form:"page_size" json:"page_size"`
	Filters  []Filter `form:"-" json:"-"`
	// column and direction, e.g. "id desc"
	OrderBy string `form:"-" json:"-"`
}

// Normalize clamps page and page size into range.
func (q PageQuery) Normalize() PageQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	if q.OrderBy == "" {
		q.OrderBy = "id desc"
	}
	return q
}

func (q PageQuery) Offset() int {
	return (q.Page - 1) * q.PageSize
}

type PaginatedResult[T any] struct {
	Data      []*T  `json:"data"`
	TotalSize int64 `json:"totalSize"`
	TotalPage int   `json:"totalPage"`
	PageSize  int   `json:"pageSize"`
}

func NewPaginatedResult[T any](data []*T, totalSize int64, pageSize int) *PaginatedResult[T] {
	if data == nil {
		data = []*T{}
	}
	totalPage := 0
	if pageSize > 0 {
		totalPage = int((totalSize + int64(pageSize) - 1) / int64(pageSize))
	}
	return &PaginatedResult[T]{
		Data:      data,
		TotalSize: totalSize,
		TotalPage: totalPage,
		PageSize:  pageSize,
	}
}
