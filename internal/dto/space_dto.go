package dto

type ListSpacesResponse struct {
	Spaces []string `json:"spaces"`
}

type FileDTO struct {
	Name      string `json:"name"`
	IsIndexed bool   `json:"isIndexed"`
}

type ListFilesRequest struct {
	Space string `validate:"required"`
}

type ListFilesResponse struct {
	Files []FileDTO `json:"files"`
}

type CreateSpaceRequest struct {
	SpaceName string `json:"spaceName" validate:"required"`
}

type UploadFileRequest struct {
	Space    string `validate:"required"`
	FileName string `validate:"required"`
	Size     int64  `validate:"gte=0"`
}

type ConvertFileRequest struct {
	FileName string `json:"-" validate:"required"`
	Space    string `json:"space" validate:"required"`
}

// MessageResponse is the generic {message} envelope. Error responses may
// carry "error" instead.
type MessageResponse struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Status  string `json:"status,omitempty"`
}
