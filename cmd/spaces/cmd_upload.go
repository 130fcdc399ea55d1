package main

import (
	"fmt"
	"os"
	"path/filepath"

	"spaces-client/internal/entity"

	"github.com/spf13/cobra"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <path>",
	Short: "Upload a PDF into a space",
	Args:  cobra.ExactArgs(1),
	RunE:  runUpload,
}

func runUpload(cmd *cobra.Command, args []string) error {
	if err := selectTarget(cmd.Context()); err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	cancel := container.Uploads.Subscribe(func(s entity.UploadSession) {
		if s.Phase == entity.UploadPhaseUploading || s.Phase == entity.UploadPhaseSucceeded {
			fmt.Printf("\r%s %3d%%", s.FileName, s.ProgressPercent)
		}
	})
	defer cancel()

	target := container.Workspace.Selection().SpaceName
	_, err = container.Uploads.Upload(cmd.Context(), target, entity.FileHandle{
		Name:    filepath.Base(f.Name()),
		Size:    info.Size(),
		Content: f,
	})
	fmt.Println()
	return err
}
