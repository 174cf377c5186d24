package registry

// Option defines a functional configuration type for the Hub.
type Option func(*Hub)

// WithCapacity pre-sizes the connection tables for the expected number of
// concurrent sessions.
func WithCapacity(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.config.capacity = n
		}
	}
}
