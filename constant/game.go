package constant

// Session limits
const (
	// InputBacklog is the number of terminal events buffered between frames
	InputBacklog = 64

	// SessionMaxActions caps dig/place actions applied per update; the rest wait a frame
	SessionMaxActions = 32

	// SessionActionBacklog bounds queued actions, reached while the simulation is paused
	SessionActionBacklog = 64
)
