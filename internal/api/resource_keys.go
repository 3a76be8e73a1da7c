package api

import (
	"net/http"
	"sort"
	"strings"
	"sync"
)

const resourceKeysHeader = "X-Goog-Drive-Resource-Keys"

// ResourceKeyManager remembers the resource keys of link-shared items seen
// while listing, so later export and download calls can present them.
type ResourceKeyManager struct {
	mu    sync.RWMutex
	cache map[string]string
}

// NewResourceKeyManager creates an empty manager
func NewResourceKeyManager() *ResourceKeyManager {
	return &ResourceKeyManager{cache: make(map[string]string)}
}

// UpdateFromAPIResponse records the key of an item returned by the API.
func (m *ResourceKeyManager) UpdateFromAPIResponse(fileID, resourceKey string) {
	if fileID == "" || resourceKey == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[fileID] = resourceKey
}

// GetKey retrieves a resource key from the cache
func (m *ResourceKeyManager) GetKey(fileID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key, ok := m.cache[fileID]
	return key, ok
}

// BuildHeader builds the X-Goog-Drive-Resource-Keys header value.
func (m *ResourceKeyManager) BuildHeader(fileIDs []string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var pairs []string
	for _, id := range fileIDs {
		if key, ok := m.cache[id]; ok {
			pairs = append(pairs, id+"/"+key)
		}
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ",")
}

// Apply sets the header on h when any of fileIDs has a known key.
func (m *ResourceKeyManager) Apply(h http.Header, fileIDs ...string) {
	if header := m.BuildHeader(fileIDs); header != "" {
		h.Set(resourceKeysHeader, header)
	}
}

// Invalidate removes a resource key from the cache
func (m *ResourceKeyManager) Invalidate(fileID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, fileID)
}
