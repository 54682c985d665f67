package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultStoreURL is the well-known artifact store endpoint used when the
// configuration does not name one.
const DefaultStoreURL = "http://alice-ccdb.cern.ch"

// Client fetches blobs and metadata from a path+timestamp addressed store.
// Objects live at {base}/{remote path}/{timestamp}.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient returns a Client for baseURL, falling back to DefaultStoreURL
// when it is empty.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultStoreURL
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (c *Client) objectURL(remotePath string, timestamp int64) string {
	return c.BaseURL + "/" + strings.Trim(remotePath, "/") + "/" + strconv.FormatInt(timestamp, 10)
}

// Fetch downloads the blob for remotePath at timestamp into dest and returns
// dest. The write is atomic: the body streams into a uniquely named temp
// file in dest's directory which is renamed into place only after a complete
// read. Store or transport failures resolve to a fetch error; there are no
// internal retries.
func (c *Client) Fetch(ctx context.Context, remotePath string, timestamp int64, dest string) error {
	u := c.objectURL(remotePath, timestamp)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fetchError{path: remotePath, err: err}
	}
	res, err := c.HTTP.Do(req)
	if err != nil {
		return fetchError{path: remotePath, err: err}
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		return fetchError{path: remotePath, err: fmt.Errorf("store status=%d", res.StatusCode)}
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fetchError{path: remotePath, err: err}
	}
	tmp := dest + "." + uuid.NewString() + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return fetchError{path: remotePath, err: err}
	}
	if _, err := io.Copy(f, res.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return fetchError{path: remotePath, err: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fetchError{path: remotePath, err: err}
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return fetchError{path: remotePath, err: err}
	}
	return nil
}

// Headers performs a HEAD request for the same object and returns its
// response headers. The adapter reads the Valid-From/Valid-Until pair from
// the result.
func (c *Client) Headers(ctx context.Context, remotePath string, timestamp int64) (http.Header, error) {
	u := c.objectURL(remotePath, timestamp)
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, u, nil)
	if err != nil {
		return nil, fetchError{path: remotePath, err: err}
	}
	res, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fetchError{path: remotePath, err: err}
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		return nil, fetchError{path: remotePath, err: fmt.Errorf("store status=%d", res.StatusCode)}
	}
	return res.Header, nil
}

// ErrNoClient is returned by fetch paths when no store client is configured.
var ErrNoClient = errors.New("no artifact store client configured")
