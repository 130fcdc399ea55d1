package entity

// Space is a named container of uploaded documents. Files reflects the last
// successful refresh and is only ever replaced wholesale.
type Space struct {
	Name  string
	Files []File
}

// File is an uploaded document. IsIndexed is authoritative only right after
// a refresh from the server.
type File struct {
	Name      string
	SpaceName string
	IsIndexed bool
}

func NewSpace(name string, files []File) Space {
	owned := make([]File, len(files))
	for i, f := range files {
		f.SpaceName = name
		owned[i] = f
	}
	return Space{Name: name, Files: owned}
}

func (s Space) TotalFiles() int {
	return len(s.Files)
}

func (s Space) IndexedFiles() int {
	n := 0
	for _, f := range s.Files {
		if f.IsIndexed {
			n++
		}
	}
	return n
}

func (s Space) NotIndexedFiles() int {
	return s.TotalFiles() - s.IndexedFiles()
}

// FindFile looks up a file by name.
func (s Space) FindFile(name string) (File, bool) {
	for _, f := range s.Files {
		if f.Name == name {
			return f, true
		}
	}
	return File{}, false
}

// Clone returns a deep copy so snapshots handed to readers never alias
// the store's backing arrays.
func (s Space) Clone() Space {
	files := make([]File, len(s.Files))
	copy(files, s.Files)
	return Space{Name: s.Name, Files: files}
}
