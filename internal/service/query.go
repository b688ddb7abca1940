package service

import (
	"sort"
	"strings"

	"docstore/internal/model"
)

// Sort orders accepted by List. Anything else falls back to descending.
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// DefaultPageSize is used when the caller supplies no page size.
const DefaultPageSize = 10

// ListParams selects and pages the record set.
type ListParams struct {
	// Query is a case-insensitive substring match against Title.
	// Empty matches everything.
	Query string
	// SortOrder orders by UploadDate, SortAsc or SortDesc (default).
	SortOrder string
	// Page is 1-indexed. Out-of-range pages yield an empty page.
	Page     int
	PageSize int
}

// DocumentListResult is one result page plus pagination totals.
type DocumentListResult struct {
	Items      []model.Document `json:"documents"`
	Page       int              `json:"page"`
	PageSize   int              `json:"pageSize"`
	Total      int              `json:"total"`
	TotalPages int              `json:"totalPages"`
}

// runQuery applies text filter, sort and pagination to a snapshot of the
// record set. Pure and stateless: the input slice is not modified.
func runQuery(docs []model.Document, p ListParams) *DocumentListResult {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}

	matched := docs
	if q := strings.ToLower(strings.TrimSpace(p.Query)); q != "" {
		matched = make([]model.Document, 0, len(docs))
		for _, d := range docs {
			if strings.Contains(strings.ToLower(d.Title), q) {
				matched = append(matched, d)
			}
		}
	} else {
		matched = append([]model.Document(nil), docs...)
	}

	asc := p.SortOrder == SortAsc
	sort.SliceStable(matched, func(i, j int) bool {
		if asc {
			return matched[i].UploadDate.Before(matched[j].UploadDate)
		}
		return matched[i].UploadDate.After(matched[j].UploadDate)
	})

	total := len(matched)
	totalPages := 0
	if total > 0 {
		totalPages = (total + p.PageSize - 1) / p.PageSize
	}

	start := (p.Page - 1) * p.PageSize
	if start > total {
		start = total
	}
	end := start + p.PageSize
	if end > total {
		end = total
	}

	return &DocumentListResult{
		Items:      matched[start:end],
		Page:       p.Page,
		PageSize:   p.PageSize,
		Total:      total,
		TotalPages: totalPages,
	}
}
