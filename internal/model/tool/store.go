package tool

// Catalog exposes tool metadata for HTTP handlers.
type Catalog interface {
	List() []Tool
	FindByName(name string) (Tool, bool)
}

// MemoryCatalog implements Catalog with an in-memory slice.
type MemoryCatalog struct {
	items []Tool
}

// NewMemoryCatalog returns a MemoryCatalog preloaded with the supplied tools.
func NewMemoryCatalog(items []Tool) *MemoryCatalog {
	return &MemoryCatalog{items: append([]Tool(nil), items...)}
}

// List returns the registered tools.
func (c *MemoryCatalog) List() []Tool {
	return append([]Tool(nil), c.items...)
}

// FindByName looks a tool up by name.
func (c *MemoryCatalog) FindByName(name string) (Tool, bool) {
	for _, item := range c.items {
		if item.Name == name {
			return item, true
		}
	}
	return Tool{}, false
}
