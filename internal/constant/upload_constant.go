package constant

const (
	MediaTypePDF = "application/pdf"

	// UploadFormField is the multipart field name the upload endpoint reads.
	UploadFormField = "file"
)
