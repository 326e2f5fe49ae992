package journal

// Journal defines the scene persistence operations.
// Consumers should depend on this interface rather than the concrete *DB type.
type Journal interface {
	SaveScene(rec *Record) error
	LoadScene(id string) (*Record, error)
	ListScenes() ([]SceneRow, error)
	SceneByPath(path string) (*SceneRow, error)
	DeleteScene(id string) error
	Search(query string, limit int) ([]SearchResult, error)
	Close() error
}

// Verify *DB satisfies Journal at compile time.
var _ Journal = (*DB)(nil)
