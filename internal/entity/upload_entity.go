package entity

import (
	"io"

	"github.com/google/uuid"
)

type UploadPhase string

const (
	UploadPhaseIdle       UploadPhase = "idle"
	UploadPhaseValidating UploadPhase = "validating"
	UploadPhaseUploading  UploadPhase = "uploading"
	UploadPhaseSucceeded  UploadPhase = "succeeded"
	UploadPhaseFailed     UploadPhase = "failed"
)

// IsTerminal reports whether the phase ends an upload.
func (p UploadPhase) IsTerminal() bool {
	return p == UploadPhaseSucceeded || p == UploadPhaseFailed
}

// IsBusy reports whether a new upload to the same target must be rejected.
func (p UploadPhase) IsBusy() bool {
	return p == UploadPhaseValidating || p == UploadPhaseUploading
}

// FileHandle is the binary handed to an upload. MediaType may be empty, in
// which case it is sniffed from the content.
type FileHandle struct {
	Name      string
	MediaType string
	Size      int64
	Content   io.ReadSeeker
}

// UploadSession is a snapshot of one target space's upload state.
type UploadSession struct {
	Id              uuid.UUID
	FileName        string
	TargetSpace     string
	ProgressPercent int
	Phase           UploadPhase
	Err             error
}
