package cacheaside

// Observer receives cache outcomes. Implementations must be cheap and safe for
// concurrent use; they run inline on the request path.
type Observer interface {
	CacheHit(key string)
	CacheMiss(key string)
	ComputeFailed(key string, err error)
	StoreFailed(key string, err error)
}

// NopObserver discards every notification.
type NopObserver struct{}

func (NopObserver) CacheHit(string)             {}
func (NopObserver) CacheMiss(string)            {}
func (NopObserver) ComputeFailed(string, error) {}
func (NopObserver) StoreFailed(string, error)   {}
