package prescriptions

// PaginatedResult represents a paginated response with data and metadata
type PaginatedResult struct {
	Data       []*Prescription `json:"data"`
	Page       int             `json:"page"`
	PageSize   int             `json:"pageSize"`
	Total      int64           `json:"totalItems"`
	TotalPages int             `json:"totalPages"`
}

// NewPaginatedResult fills in TotalPages from total and pageSize.
func NewPaginatedResult(data []*Prescription, page, pageSize int, total int64) PaginatedResult {
	pages := 0
	if pageSize > 0 {
		pages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	if data == nil {
		data = []*Prescription{}
	}
	return PaginatedResult{Data: data, Page: page, PageSize: pageSize, Total: total, TotalPages: pages}
}
