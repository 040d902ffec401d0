package ledger

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/database"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/signature"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Client calls the ledger service API on behalf of a key holder.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient constructs a client for the service at url.
func NewClient(url string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL: strings.TrimSuffix(url, "/") + "/v1",
		http:    &http.Client{Timeout: timeout},
	}
}

// Balance returns the balance of the account.
func (c *Client) Balance(ctx context.Context, account database.Account) (Balance, error) {
	var bal Balance
	err := c.send(ctx, http.MethodGet, "/balances/"+account.String(), nil, &bal)
	return bal, err
}

// Allowance returns the allowance the owner granted the spender.
func (c *Client) Allowance(ctx context.Context, owner database.Account, spender database.Account) (Allowance, error) {
	var a Allowance
	err := c.send(ctx, http.MethodGet, "/allowances/"+owner.String()+"/"+spender.String(), nil, &a)
	return a, err
}

// Transfer signs and submits a transfer.
func (c *Client) Transfer(ctx context.Context, key *ecdsa.PrivateKey, req TransferRequest) (BlockIndex, error) {
	var resp BlockIndex
	err := c.sendSigned(ctx, "/transfer", key, req, &resp)
	return resp, err
}

// Approve signs and submits an approval.
func (c *Client) Approve(ctx context.Context, key *ecdsa.PrivateKey, req ApproveRequest) (ApprovalID, error) {
	var resp ApprovalID
	err := c.sendSigned(ctx, "/approve", key, req, &resp)
	return resp, err
}

// TransferFrom signs and submits a transfer under an allowance.
func (c *Client) TransferFrom(ctx context.Context, key *ecdsa.PrivateKey, req TransferFromRequest) (BlockIndex, error) {
	var resp BlockIndex
	err := c.sendSigned(ctx, "/transfer-from", key, req, &resp)
	return resp, err
}

// Register registers the key holder as a provider or as a user.
func (c *Client) Register(ctx context.Context, key *ecdsa.PrivateKey, provider bool) (Message, error) {
	pubkey := signature.NewIdentity(key).Bytes()

	sr, err := Sign(pubkey, key)
	if err != nil {
		return Message{}, err
	}

	path := "/users/register"
	if provider {
		path = "/providers/register"
	}

	var resp Message
	err = c.send(ctx, http.MethodPost, path, sr, &resp)
	return resp, err
}

// Publish signs and submits a provider profile or offering.
func (c *Client) Publish(ctx context.Context, key *ecdsa.PrivateKey, offering bool, payload []byte) (Message, error) {
	sr, err := Sign(payload, key)
	if err != nil {
		return Message{}, err
	}

	path := "/providers/profile"
	if offering {
		path = "/providers/offering"
	}

	var resp Message
	err = c.send(ctx, http.MethodPost, path, sr, &resp)
	return resp, err
}

// ContractRequest signs and submits a contract sign request.
func (c *Client) ContractRequest(ctx context.Context, key *ecdsa.PrivateKey, req database.ContractSignRequest) (ContractCreated, error) {
	req.RequesterPubkey = signature.NewIdentity(key).Bytes()

	var resp ContractCreated
	err := c.sendRecord(ctx, "/contracts/request", key, req, &resp)
	return resp, err
}

// ContractReply signs and submits the provider's reply to a contract.
func (c *Client) ContractReply(ctx context.Context, key *ecdsa.PrivateKey, reply database.ContractSignReply) (Message, error) {
	var resp Message
	err := c.sendRecord(ctx, "/contracts/reply", key, reply, &resp)
	return resp, err
}

// Contracts returns the open contract requests, optionally only those
// addressed to the provider.
func (c *Client) Contracts(ctx context.Context, provider []byte) ([]Contract, error) {
	path := "/contracts/pending"
	if len(provider) > 0 {
		path += "/" + hexutil.Encode(provider)
	}

	var contracts []Contract
	err := c.send(ctx, http.MethodGet, path, nil, &contracts)
	return contracts, err
}

// =============================================================================

// sendSigned signs the JSON encoding of v and posts it.
func (c *Client) sendSigned(ctx context.Context, path string, key *ecdsa.PrivateKey, v any, dataRecv any) error {
	sr, err := SignJSON(v, key)
	if err != nil {
		return err
	}
	return c.send(ctx, http.MethodPost, path, sr, dataRecv)
}

// sendRecord signs the ledger encoding of the record and posts it.
func (c *Client) sendRecord(ctx context.Context, path string, key *ecdsa.PrivateKey, record any, dataRecv any) error {
	_, data, err := database.Encode(record)
	if err != nil {
		return err
	}

	sr, err := Sign(data, key)
	if err != nil {
		return err
	}
	return c.send(ctx, http.MethodPost, path, sr, dataRecv)
}

// send is a helper function to send an HTTP request to the service.
func (c *Client) send(ctx context.Context, method string, path string, dataSend any, dataRecv any) error {
	var body io.Reader
	if dataSend != nil {
		data, err := json.Marshal(dataSend)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var er struct {
			Error string `json:"error"`
			Kind  string `json:"kind"`
		}
		msg, _ := io.ReadAll(resp.Body)
		if err := json.Unmarshal(msg, &er); err == nil && er.Error != "" {
			if er.Kind != "" {
				return fmt.Errorf("%s: %s: %s", resp.Status, er.Kind, er.Error)
			}
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
