package handlers

import (
	"net/http"
	"strconv"
)

// pageLimit reads ?limit=, defaulting to def and capped at capacity.
func pageLimit(r *http.Request, def, capacity int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return min(def, capacity), true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > capacity {
		return 0, false
	}
	return n, true
}

func limitError(capacity int) string {
	return "limit must be an integer between 1 and " + strconv.Itoa(capacity)
}
