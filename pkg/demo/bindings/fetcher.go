package bindings

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
)

// Fetcher is the demo worker's outbound HTTP binding.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (int, []byte, error)
}

type RestyFetcherImpl struct {
	client *resty.Client
}

func NewRestyFetcherImpl() *RestyFetcherImpl {
	return &RestyFetcherImpl{client: resty.New()}
}

func (f *RestyFetcherImpl) Fetch(ctx context.Context, url string) (int, []byte, error) {
	res, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	return res.StatusCode(), res.Body(), nil
}
