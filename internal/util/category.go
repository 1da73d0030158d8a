package util

import (
	"strings"

	"callrecon/internal"
)

// Each feed names the two campaign categories its own way. Unknown codes
// fall through to the dynamic category.
var originCategoryByCode = map[string]internal.Category{
	"static":          internal.CategoryStatic,
	"static_numbers":  internal.CategoryStatic,
	"static-campaign": internal.CategoryStatic,
	"dynamic":         internal.CategoryDynamic,
	"dynamic_numbers": internal.CategoryDynamic,
	"number_pool":     internal.CategoryDynamic,
}

var targetCategoryByName = map[string]internal.Category{
	"static":  internal.CategoryStatic,
	"st":      internal.CategoryStatic,
	"dynamic": internal.CategoryDynamic,
	"dyn":     internal.CategoryDynamic,
	"pool":    internal.CategoryDynamic,
}

func OriginCategory(code string) internal.Category {
	if c, ok := originCategoryByCode[normalizeKey(code)]; ok {
		return c
	}
	return internal.CategoryDynamic
}

func TargetCategory(name string) internal.Category {
	if c, ok := targetCategoryByName[normalizeKey(name)]; ok {
		return c
	}
	return internal.CategoryDynamic
}

func normalizeKey(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
