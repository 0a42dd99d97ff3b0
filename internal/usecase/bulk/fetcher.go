package bulk

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/toxgate-io/toxgate/internal/domain"
)

// Fetcher downloads the output artifact of a succeeded job.
type Fetcher struct {
	files FileStore
}

// NewFetcher creates a fetcher.
func NewFetcher(files FileStore) *Fetcher {
	return &Fetcher{files: files}
}

// Fetch retrieves the output document and decodes it as text.
// All failures wrap domain.ErrFetch; a failed fetch fails the whole batch.
func (f *Fetcher) Fetch(ctx context.Context, outputRef string) (string, error) {
	if outputRef == "" {
		return "", fmt.Errorf("job has no output artifact: %w", domain.ErrFetch)
	}

	data, err := f.files.DownloadFile(ctx, outputRef)
	if err != nil {
		return "", fmt.Errorf("download %s: %v: %w", outputRef, err, domain.ErrFetch)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("output artifact %s is not valid UTF-8: %w", outputRef, domain.ErrFetch)
	}
	return string(data), nil
}
