package docstore

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/viant/afs/url"
)

// DownloadInput defines parameters for downloading case documents
type DownloadInput struct {
	Assets      []string `json:"assets" required:"true" description:"locations of documents to download"`
	IncludeData bool     `json:"includeData,omitempty" description:"include document content in response"`
	Dest        string   `json:"dest,omitempty" description:"destination path"`
}

// DownloadOutput contains results from a download operation
type DownloadOutput struct {
	Assets []*Asset `json:"assets,omitempty" description:"downloaded documents"`
}

// Download downloads documents from the specified locations
func (s *Service) Download(ctx context.Context, input *DownloadInput, output *DownloadOutput) error {
	if len(input.Assets) == 0 {
		return fmt.Errorf("at least one document location is required")
	}

	downloadedAssets := make([]*Asset, 0, len(input.Assets))

	for _, assetURL := range input.Assets {
		if assetURL == "" {
			continue
		}
		assetURL = s.resolve(assetURL)

		exists, err := s.fs.Exists(ctx, assetURL)
		if err != nil {
			return fmt.Errorf("failed to check if %s exists: %w", assetURL, err)
		}
		if !exists {
			return fmt.Errorf("document does not exist: %s", assetURL)
		}

		source, err := s.fs.Object(ctx, assetURL)
		if err != nil {
			return fmt.Errorf("failed to get source for %s: %w", assetURL, err)
		}

		if source.IsDir() {
			return fmt.Errorf("cannot download directory, use list operation first: %s", assetURL)
		}

		asset := &Asset{
			URL:         assetURL,
			Name:        filepath.Base(assetURL),
			IsDir:       source.IsDir(),
			Size:        source.Size(),
			ModTime:     source.ModTime(),
			ContentType: contentTypeOf(url.Path(assetURL)),
		}

		asset.Mode = source.Mode().String()

		if input.IncludeData {
			data, err := s.fs.DownloadWithURL(ctx, assetURL)
			if err != nil {
				return fmt.Errorf("failed to download data from %s: %w", assetURL, err)
			}
			asset.Data = data
		}

		// Copy to destination if one was specified
		if input.Dest != "" {
			destPath := s.resolve(input.Dest)

			// If destination is a directory, append the document name
			if object, _ := s.fs.Object(ctx, destPath); object != nil && object.IsDir() {
				destPath = url.Join(destPath, filepath.Base(assetURL))
			}
			if err := s.fs.Copy(ctx, assetURL, destPath); err != nil {
				return fmt.Errorf("failed to copy %s to %s: %w", assetURL, destPath, err)
			}
		}

		downloadedAssets = append(downloadedAssets, asset)
	}

	output.Assets = downloadedAssets
	return nil
}
