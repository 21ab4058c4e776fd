package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DefaultPages is the production page list: the first fifty catalog pages
// plus two far pages that still carry live channels.
const DefaultPages = "1-50,480,481"

// ParsePages parses a page list such as "1-50,480,481" into page numbers.
// Order is kept as written and duplicates are dropped after their first use.
func ParsePages(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("empty page list")
	}

	var pages []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		from, to, isRange := strings.Cut(part, "-")
		if !isRange {
			p, err := parsePage(part)
			if err != nil {
				return nil, err
			}
			pages = append(pages, p)
			continue
		}

		start, err := parsePage(from)
		if err != nil {
			return nil, err
		}
		end, err := parsePage(to)
		if err != nil {
			return nil, err
		}
		if end < start {
			return nil, fmt.Errorf("invalid page range %q", part)
		}
		for p := start; p <= end; p++ {
			pages = append(pages, p)
		}
	}

	if len(pages) == 0 {
		return nil, errors.New("empty page list")
	}
	return UniquePages(pages), nil
}

// UniquePages drops every repeat of a page after its first position
func UniquePages(pages []int) []int {
	seen := make(map[int]bool, len(pages))
	out := make([]int, 0, len(pages))
	for _, p := range pages {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// FormatPages renders pages back into the compact form ParsePages accepts
func FormatPages(pages []int) string {
	var parts []string
	for i := 0; i < len(pages); {
		j := i
		for j+1 < len(pages) && pages[j+1] == pages[j]+1 {
			j++
		}
		if j > i {
			parts = append(parts, fmt.Sprintf("%d-%d", pages[i], pages[j]))
		} else {
			parts = append(parts, strconv.Itoa(pages[i]))
		}
		i = j + 1
	}
	return strings.Join(parts, ",")
}

// joinPages writes pages as a plain comma list, keeping order
func joinPages(pages []int) string {
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ",")
}

func parsePage(s string) (int, error) {
	p, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid page number %q", s)
	}
	if p < 1 {
		return 0, fmt.Errorf("page number must be positive, got %d", p)
	}
	return p, nil
}
