package service

// Service is a long-lived subsystem running beside the frame loop
// Services own goroutines or OS resources: the save writer, the debug server, the speaker
//
// Lifecycle:
//  1. Construction with injected collaborators
//  2. Init() - acquire resources (open files, bind sockets)
//  3. Start() - launch background goroutines
//  4. [runtime operation]
//  5. Stop() - halt goroutines, release resources
type Service interface {
	// Name returns the unique identifier for this service
	Name() string

	// Dependencies returns names of services that must Init before this one
	Dependencies() []string

	// Init acquires resources; a failure aborts startup
	Init() error

	// Start begins service operation; called after every service has initialized
	Start() error

	// Stop halts the service; must be idempotent
	Stop() error
}
