package util

import "strings"

// HeaderGetter reads a request header. It matches the signature of (*fiber.Ctx).Get.
type HeaderGetter func(key string, defaultValue ...string) string

// IsPrefetch reports whether the request is a speculative load (browser prefetch or
// prerender, router prefetch, link previews) rather than a visit.
func IsPrefetch(get HeaderGetter) bool {
	for _, header := range []string{"Sec-Purpose", "Purpose", "X-Purpose", "X-Moz"} {
		value := strings.ToLower(get(header))
		if strings.Contains(value, "prefetch") || strings.Contains(value, "preview") || strings.Contains(value, "prerender") {
			return true
		}
	}
	return get("Next-Router-Prefetch") == "1"
}
