package docstore

import (
	"context"
	"fmt"
	"path"

	"github.com/viant/afs/option"
	"github.com/viant/afs/storage"
	"github.com/viant/afs/url"
)

// ListInput defines parameters for listing case documents
type ListInput struct {
	Location  string `json:"location" required:"true" description:"location to list documents from, e.g. PROB_9F31C2AB/"`
	Recursive bool   `json:"recursive,omitempty" description:"list documents recursively"`
	PageSize  int    `json:"pageSize,omitempty" description:"maximum number of results to return"`
}

// ListOutput contains results from a list operation
type ListOutput struct {
	Assets []*Asset `json:"assets,omitempty" description:"documents found"`
}

// List lists documents and folders at the specified location
func (s *Service) List(ctx context.Context, input *ListInput, output *ListOutput) error {
	if input.Location == "" {
		return fmt.Errorf("location is required")
	}
	location := s.resolve(input.Location)

	listOptions := make([]storage.Option, 0)
	if input.Recursive {
		listOptions = append(listOptions, option.NewRecursive(true))
	}
	if input.PageSize > 0 {
		listOptions = append(listOptions, option.NewPage(0, input.PageSize))
	}

	objects, err := s.fs.List(ctx, location, listOptions...)
	if err != nil {
		return fmt.Errorf("failed to list documents at %s: %w", location, err)
	}

	assets := make([]*Asset, 0, len(objects))
	for _, obj := range objects {
		asset := &Asset{
			URL:         obj.URL(),
			Name:        path.Base(obj.URL()),
			IsDir:       obj.IsDir(),
			Size:        obj.Size(),
			ModTime:     obj.ModTime(),
			ContentType: contentTypeOf(url.Path(obj.URL())),
		}
		asset.Mode = obj.Mode().String()
		assets = append(assets, asset)
	}

	output.Assets = assets
	return nil
}
