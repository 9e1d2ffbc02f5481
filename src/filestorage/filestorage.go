package filestorage

type FileStorage interface {
	Store(name string, v interface{}) error
}
