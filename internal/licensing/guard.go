// internal/licensing/guard.go
package licensing

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Identity and authority keys clients may never send on admin requests.
// Keys are compared after lowercasing and dropping '_' and '-'.
var forbiddenKeys = map[string]struct{}{
	"tenantid":  {},
	"actorid":   {},
	"actorrole": {},
	"role":      {},
	"userid":    {},
}

// Body fields whose map keys are client-chosen names rather than field names.
// Their keys are validated by request binding and are not scanned.
var opaqueFields = map[string]struct{}{
	"features": {},
}

var forbiddenHeaders = []string{"X-Tenant-ID", "X-Actor-ID", "X-Actor-Role"}

func normalizeKey(k string) string {
	k = strings.ToLower(k)
	k = strings.ReplaceAll(k, "_", "")
	return strings.ReplaceAll(k, "-", "")
}

func spoofed(where, key string) error {
	return fmt.Errorf("%w: %s carries %q", ErrSpoofingRejected, where, key)
}

// ScanQuery rejects query strings naming a forbidden key.
func ScanQuery(values url.Values) error {
	for key := range values {
		if _, bad := forbiddenKeys[normalizeKey(key)]; bad {
			return spoofed("query", key)
		}
	}
	return nil
}

// ScanHeaders rejects identity override headers.
func ScanHeaders(h http.Header) error {
	for _, name := range forbiddenHeaders {
		if _, ok := h[http.CanonicalHeaderKey(name)]; ok {
			return spoofed("header", name)
		}
	}
	return nil
}

// ScanJSON rejects a JSON body containing a forbidden key at any depth. Bodies
// that are empty or not JSON pass through; request binding rejects them later.
func ScanJSON(body []byte) error {
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}
	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil
	}
	return scanValue(doc)
}

func scanValue(v interface{}) error {
	switch node := v.(type) {
	case map[string]interface{}:
		for key, child := range node {
			if _, bad := forbiddenKeys[normalizeKey(key)]; bad {
				return spoofed("body", key)
			}
			if _, opaque := opaqueFields[key]; opaque {
				continue
			}
			if err := scanValue(child); err != nil {
				return err
			}
		}
	case []interface{}:
		for _, child := range node {
			if err := scanValue(child); err != nil {
				return err
			}
		}
	}
	return nil
}
