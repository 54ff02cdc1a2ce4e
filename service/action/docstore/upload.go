package docstore

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"

	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
)

// UploadInput defines parameters for uploading case documents
type UploadInput struct {
	Assets []*Asset `json:"assets" required:"true" description:"documents to upload"`
}

// UploadOutput contains results from an upload operation
type UploadOutput struct {
	Assets []*Asset `json:"assets,omitempty" description:"uploaded documents"`
}

// Upload uploads documents to their specified locations
func (s *Service) Upload(ctx context.Context, input *UploadInput, output *UploadOutput) error {
	if len(input.Assets) == 0 {
		return fmt.Errorf("at least one document is required for upload")
	}

	uploadedAssets := make([]*Asset, 0, len(input.Assets))

	for _, asset := range input.Assets {
		if asset.URL == "" {
			return fmt.Errorf("document location cannot be empty")
		}
		assetURL := s.resolve(asset.URL)

		err := s.fs.Upload(ctx, assetURL, file.DefaultFileOsMode, bytes.NewReader(asset.Data))
		if err != nil {
			return err
		}
		object, err := s.fs.Object(ctx, assetURL)
		if err != nil {
			return fmt.Errorf("failed to get object for %s: %w", assetURL, err)
		}
		uploadedAsset := &Asset{
			URL:         assetURL,
			Name:        filepath.Base(assetURL),
			Size:        object.Size(),
			ModTime:     object.ModTime(),
			Mode:        object.Mode().String(),
			ContentType: contentTypeOf(url.Path(assetURL)),
		}
		uploadedAssets = append(uploadedAssets, uploadedAsset)
	}

	output.Assets = uploadedAssets
	return nil
}
