package services

import (
	"context"
	"slices"
	"strings"

	"github.com/charlesng35/blogdesk/internal/models"
)

// Actor identifies the authenticated caller of a service operation.
type Actor struct {
	UserID   string
	Username string
	Role     string
}

// IsAdmin reports whether the caller holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func normaliseIDs(values []string) []string {
	if len(values) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

func containsString(values []string, target string) bool {
	target = strings.TrimSpace(target)
	if target == "" {
		return false
	}
	for _, value := range values {
		if strings.TrimSpace(value) == target {
			return true
		}
	}
	return false
}

// appendUnique appends value unless it is already present.
func appendUnique(values []string, value string) []string {
	if containsString(values, value) {
		return values
	}
	return append(values, value)
}

// removeString drops every occurrence of target and never returns nil.
func removeString(values []string, target string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if value != target {
			out = append(out, value)
		}
	}
	return out
}

// removeAll drops every value present in targets.
func removeAll(values []string, targets map[string]struct{}) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if _, drop := targets[value]; !drop {
			out = append(out, value)
		}
	}
	return out
}

// resolvePageSize falls back to def for non-positive requests and caps the
// result at maxSize.
func resolvePageSize(requested, def, maxSize int) int {
	switch {
	case requested <= 0:
		return def
	case requested > maxSize:
		return maxSize
	default:
		return requested
	}
}

// totalPages returns ceil(count/size).
func totalPages(count, size int) int {
	if size <= 0 || count <= 0 {
		return 0
	}
	return (count + size - 1) / size
}

// checkPage validates a requested page against the number of pages
// available. An empty result set still has a first page.
func checkPage(page, pages int) error {
	if page == 0 {
		return ErrPageRequired
	}
	if page < 0 {
		return ErrInvalidPage
	}
	if page > max(pages, 1) {
		return ErrPageOutOfRange
	}
	return nil
}

// window returns the page-th slice of size items.
func window[T any](items []T, page, size int) []T {
	start := (page - 1) * size
	if start >= len(items) {
		return []T{}
	}
	end := min(start+size, len(items))
	return slices.Clone(items[start:end])
}

// escapeLike escapes LIKE wildcards using '!' as the escape character, which
// every supported dialect accepts verbatim.
func escapeLike(value string) string {
	replacer := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return replacer.Replace(value)
}
