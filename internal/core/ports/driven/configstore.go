package driven

// ConfigStore holds the dotted settings keys ("chunker.size",
// "search.fusion"). The typed getters coerce what they can, including
// numeric and boolean strings, and return the zero value otherwise.
type ConfigStore interface {
	// Get retrieves a configuration value by key.
	// Returns the value and a boolean indicating if the key exists.
	Get(key string) (any, bool)

	GetString(key string) string
	GetInt(key string) int
	GetBool(key string) bool
	GetFloat(key string) float64

	// GetStringSlice also splits a comma separated string.
	GetStringSlice(key string) []string

	// Set stores a value; file-backed stores write it through at once.
	Set(key string, value any) error

	Save() error

	// Load rereads the backing file, replacing unsaved values.
	Load() error

	// Path is the backing file, or ":memory:".
	Path() string
}
