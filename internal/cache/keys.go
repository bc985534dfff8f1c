// Package cache provides backends for the catalog read cache.
package cache

import "strconv"

const allCategories = "all"

// ListKey derives the cache key of a product page. Every parameter occupies
// its own labelled segment, so distinct queries never share a key.
func ListKey(categoryID int64, offset, limit int) string {
	return "products:list:category:" + categorySegment(categoryID) +
		":offset:" + strconv.Itoa(offset) +
		":limit:" + strconv.Itoa(limit)
}

// CountKey derives the cache key of a product count.
func CountKey(categoryID int64) string {
	return "products:count:category:" + categorySegment(categoryID)
}

func categorySegment(categoryID int64) string {
	if categoryID == 0 {
		return allCategories
	}
	return strconv.FormatInt(categoryID, 10)
}
