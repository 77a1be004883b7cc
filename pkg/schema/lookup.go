package schema

// Lookup translates an internal message or name key into a display string.
// Implementations return the key itself, or "", when they have no entry.
type Lookup interface {
	Lookup(key string) string
}

// LookupFunc adapts a function to the Lookup interface.
type LookupFunc func(key string) string

func (f LookupFunc) Lookup(key string) string { return f(key) }

// Catalog is a flat key to string table.
type Catalog map[string]string

// Lookup returns the catalog entry for key, or key when absent.
func (c Catalog) Lookup(key string) string {
	if v, ok := c[key]; ok {
		return v
	}
	return key
}

// Layered returns a Lookup that consults each catalog in order and falls back to the key.
func Layered(catalogs ...Catalog) Lookup {
	return LookupFunc(func(key string) string {
		for _, c := range catalogs {
			if v, ok := c[key]; ok && v != "" {
				return v
			}
		}
		return key
	})
}
