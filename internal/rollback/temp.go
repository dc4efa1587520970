package rollback

// TempFile is a scratch file owned by a Session.
type TempFile interface {
	// Path returns the location of the temporary file.
	Path() string

	// Remove deletes the temporary file. It is safe to call more than once.
	Remove() error
}

// TempAllocator hands out temporary files.
type TempAllocator interface {
	// CreateTemp allocates an empty temporary file in dir. An empty dir
	// selects the allocator's default location.
	CreateTemp(dir string) (TempFile, error)
}
