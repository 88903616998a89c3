package dto

import (
	"net/url"
	"strconv"
)

type ErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

type SuccessResponse struct {
	Message string `json:"message"`
}

type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PerPage    int         `json:"per_page"`
	TotalPages int         `json:"total_pages"`
}

// NewPaginatedResponse wraps one page of results with the paging envelope.
func NewPaginatedResponse(data interface{}, total int64, p PaginationParams) PaginatedResponse {
	pages := int((total + int64(p.PerPage) - 1) / int64(p.PerPage))
	return PaginatedResponse{
		Data:       data,
		Total:      total,
		Page:       p.Page,
		PerPage:    p.PerPage,
		TotalPages: pages,
	}
}

type PaginationParams struct {
	Page    int
	PerPage int
}

// PaginationFromQuery reads page and per_page, clamping them to sane values.
func PaginationFromQuery(q url.Values) PaginationParams {
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	p := PaginationParams{Page: page, PerPage: perPage}
	p.Normalize()
	return p
}

func (p *PaginationParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 {
		p.PerPage = 20
	}
	if p.PerPage > 100 {
		p.PerPage = 100
	}
}

func (p *PaginationParams) Offset() int {
	return (p.Page - 1) * p.PerPage
}
