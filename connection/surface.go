package connection

// SurfaceExit describes why the user left the linking surface without
// completing it.
type SurfaceExit struct {
	Status       string
	ErrorCode    string
	ErrorMessage string
	RequestID    string
}

// SurfaceCallbacks are bound to the cycle that opened the surface. Calls that
// arrive after a newer Start are ignored.
type SurfaceCallbacks struct {
	OnSuccess func(publicCredential string, metadata map[string]any)
	OnExit    func(exit *SurfaceExit, metadata map[string]any)
	OnEvent   func(eventName string, metadata map[string]any)
}

// LinkingSurface is the interactive provider UI. Open must return promptly;
// the outcome is reported through callbacks.
type LinkingSurface interface {
	Open(linkToken string, callbacks SurfaceCallbacks) error
}

// SurfaceFunc adapts a function to LinkingSurface.
type SurfaceFunc func(linkToken string, callbacks SurfaceCallbacks) error

func (f SurfaceFunc) Open(linkToken string, callbacks SurfaceCallbacks) error {
	return f(linkToken, callbacks)
}
