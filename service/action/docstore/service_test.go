package docstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viant/afs"
)

func TestService_UploadDownloadList(t *testing.T) {
	ctx := context.Background()
	fs := afs.New()
	svc := New(fs, WithBaseURL("mem://localhost/docstore"))

	uploadOut := &UploadOutput{}
	err := svc.Upload(ctx, &UploadInput{
		Assets: []*Asset{
			{URL: "PROB_9F31C2AB/will.txt", Data: []byte("I leave my estate to my children.")},
			{URL: "PROB_9F31C2AB/valuation.txt", Data: []byte("Property valued at £450,000.")},
		},
	}, uploadOut)
	assert.NoError(t, err)
	assert.Len(t, uploadOut.Assets, 2)
	assert.Equal(t, "will.txt", uploadOut.Assets[0].Name)
	assert.Equal(t, "text/plain", uploadOut.Assets[0].ContentType)

	listOut := &ListOutput{}
	err = svc.List(ctx, &ListInput{Location: "PROB_9F31C2AB", Recursive: true}, listOut)
	assert.NoError(t, err)

	names := make([]string, 0, len(listOut.Assets))
	for _, asset := range listOut.Assets {
		if asset.IsDir {
			continue
		}
		names = append(names, asset.Name)
	}
	assert.ElementsMatch(t, []string{"will.txt", "valuation.txt"}, names)

	downloadOut := &DownloadOutput{}
	err = svc.Download(ctx, &DownloadInput{
		Assets:      []string{"PROB_9F31C2AB/will.txt"},
		IncludeData: true,
	}, downloadOut)
	assert.NoError(t, err)
	if assert.Len(t, downloadOut.Assets, 1) {
		assert.Equal(t, "I leave my estate to my children.", string(downloadOut.Assets[0].Data))
	}
}

func TestService_Download_Missing(t *testing.T) {
	svc := New(afs.New(), WithBaseURL("mem://localhost/docstore-missing"))
	err := svc.Download(context.Background(), &DownloadInput{Assets: []string{"unknown/doc.pdf"}}, &DownloadOutput{})
	assert.Error(t, err)
}
