package replica

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/state"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// metadataRetries is how often a metadata request is retried.
const metadataRetries = 3

// ClientConfig represents the configuration required to talk to the
// canonical service.
type ClientConfig struct {
	URL           string
	Timeout       time.Duration
	RetryInterval time.Duration
}

// Client is a Remote reached over HTTP.
type Client struct {
	baseURL       string
	http          *http.Client
	retryInterval time.Duration

	mu      sync.Mutex
	rootKey []byte
}

// NewClient constructs a client for the service at cfg.URL.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	retry := cfg.RetryInterval
	if retry == 0 {
		retry = time.Second
	}

	return &Client{
		baseURL:       strings.TrimSuffix(cfg.URL, "/") + "/v1/ledger",
		http:          &http.Client{Timeout: timeout},
		retryInterval: retry,
	}
}

// DataFetch implements Remote.
func (c *Client) DataFetch(ctx context.Context, cursorStr string, bytesBefore []byte) (string, []byte, error) {
	req := FetchRequest{Cursor: cursorStr, BytesBefore: bytesBefore}

	var resp FetchResponse
	if err := c.send(ctx, http.MethodPost, c.baseURL+"/data/fetch", req, &resp); err != nil {
		return "", nil, err
	}

	return resp.Cursor, resp.Data, nil
}

// DataPush implements Remote.
func (c *Client) DataPush(ctx context.Context, req PushRequest) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.send(ctx, http.MethodPost, c.baseURL+"/data/push", req, &resp); err != nil {
		return "", err
	}

	return resp.Status, nil
}

// Metadata implements Remote. The metadata must be signed by the root key.
// A failed request is retried with exponential backoff and the root key is
// fetched again before every retry.
func (c *Client) Metadata(ctx context.Context) (state.Metadata, error) {
	var (
		md      state.Metadata
		attempt int
	)

	op := func() error {
		attempt++

		rootKey, err := c.currentRootKey(ctx, attempt > 1)
		if err != nil {
			return err
		}

		var sm SignedMetadata
		if err := c.send(ctx, http.MethodGet, c.baseURL+"/metadata", nil, &sm); err != nil {
			return err
		}

		if err := sm.Verify(rootKey); err != nil {
			return err
		}

		md = sm.Metadata
		return nil
	}

	if err := backoff.Retry(op, c.backoff(ctx)); err != nil {
		return state.Metadata{}, fmt.Errorf("metadata after %d attempts: %w", attempt, err)
	}

	return md, nil
}

// RootKey fetches the key the service signs its metadata with.
func (c *Client) RootKey(ctx context.Context) ([]byte, error) {
	var resp struct {
		Pubkey hexutil.Bytes `json:"pubkey"`
	}
	if err := c.send(ctx, http.MethodGet, c.baseURL+"/root-key", nil, &resp); err != nil {
		return nil, err
	}

	if len(resp.Pubkey) == 0 {
		return nil, errors.New("service returned an empty root key")
	}

	return resp.Pubkey, nil
}

func (c *Client) currentRootKey(ctx context.Context, refresh bool) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rootKey != nil && !refresh {
		return c.rootKey, nil
	}

	key, err := c.RootKey(ctx)
	if err != nil {
		return nil, err
	}

	c.rootKey = key
	return key, nil
}

func (c *Client) backoff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.retryInterval
	eb.Multiplier = 2
	eb.RandomizationFactor = 0
	eb.MaxElapsedTime = 0

	return backoff.WithContext(backoff.WithMaxRetries(eb, metadataRetries), ctx)
}

// =============================================================================

// send is a helper function to send an HTTP request to the service.
func (c *Client) send(ctx context.Context, method string, url string, dataSend any, dataRecv any) error {
	var body io.Reader
	if dataSend != nil {
		data, err := json.Marshal(dataSend)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if resp.StatusCode != http.StatusOK {
		msg, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		var er struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(msg, &er); err == nil && er.Error != "" {
			return fmt.Errorf("%s: %s", resp.Status, er.Error)
		}
		return fmt.Errorf("%s: %s", resp.Status, msg)
	}

	if dataRecv != nil {
		if err := json.NewDecoder(resp.Body).Decode(dataRecv); err != nil {
			return err
		}
	}

	return nil
}
