package entity

// Selection holds weak references (by name) into the current space list.
// An empty string means nothing is selected.
type Selection struct {
	SpaceName string
	FileName  string
}

func (s Selection) HasSpace() bool {
	return s.SpaceName != ""
}

func (s Selection) HasFile() bool {
	return s.FileName != ""
}
