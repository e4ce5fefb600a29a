package ports

// Conn is a line-oriented connection to a single instrument resource.
type Conn interface {
	WriteLine(s string) error
	ReadLine() (string, error)
	Close() error
}

// ResourceManager enumerates and opens instrument resources. Reset
// recreates the underlying handle after a lost connection, mirroring
// how a VISA resource manager is rebuilt.
type ResourceManager interface {
	ListResources() ([]string, error)
	Open(addr string) (Conn, error)
	Reset() error
}
