package format

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// KindUnknown is reported for payloads no format claims
const KindUnknown = "unknown"

// registry holds all registered device formats
var (
	registry = make(map[string]DeviceFormat)
	mu       sync.RWMutex
)

// Register adds a new format to the registry.
// This is typically called from init() functions in format packages.
func Register(format DeviceFormat) error {
	mu.Lock()
	defer mu.Unlock()

	name := strings.ToLower(format.Name())
	if _, exists := registry[name]; exists {
		return fmt.Errorf("format %q already registered", name)
	}

	registry[name] = format
	return nil
}

// MustRegister registers a format and panics on error.
// This is useful for init() functions.
func MustRegister(format DeviceFormat) {
	if err := Register(format); err != nil {
		panic(err)
	}
}

// Get retrieves a format by name (case-insensitive)
func Get(name string) (DeviceFormat, error) {
	mu.RLock()
	defer mu.RUnlock()

	format, exists := registry[strings.ToLower(name)]
	if !exists {
		return nil, fmt.Errorf("unknown format: %s", name)
	}
	return format, nil
}

// List returns all registered format names in alphabetical order
func List() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered formats
func Count() int {
	mu.RLock()
	defer mu.RUnlock()
	return len(registry)
}

// ForEach calls the provided function for each registered format
func ForEach(fn func(name string, format DeviceFormat)) {
	mu.RLock()
	defer mu.RUnlock()

	for name, format := range registry {
		fn(name, format)
	}
}

// byPriority returns the registered formats in classification order
func byPriority() []DeviceFormat {
	mu.RLock()
	formats := make([]DeviceFormat, 0, len(registry))
	for _, f := range registry {
		formats = append(formats, f)
	}
	mu.RUnlock()

	sort.Slice(formats, func(i, j int) bool {
		if formats[i].Priority() != formats[j].Priority() {
			return formats[i].Priority() < formats[j].Priority()
		}
		return formats[i].Name() < formats[j].Name()
	})
	return formats
}

// Classify names the first format, by priority, that matches payload, or
// KindUnknown
func Classify(payload string) string {
	for _, f := range byPriority() {
		if f.Matches(payload) {
			return strings.ToLower(f.Name())
		}
	}
	return KindUnknown
}

// Parse classifies payload and interprets it with the matching format. An
// unclaimed payload yields a Reading of KindUnknown.
func Parse(payload string) (*Reading, error) {
	for _, f := range byPriority() {
		if f.Matches(payload) {
			return f.ParseLine(payload)
		}
	}
	return &Reading{Kind: KindUnknown, Raw: payload}, nil
}
