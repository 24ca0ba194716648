package network

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"provermon/internal/prover"
	logx "provermon/pkg/logx"
)

const (
	DefaultEndpoint    = "https://rpc.mainnet.succinct.xyz"
	DefaultCallTimeout = 20 * time.Second

	methodGetFilteredProofRequests = "/network.ProverNetwork/GetFilteredProofRequests"
)

var ErrFetch = errors.New("fetch latest proof request")

type Config struct {
	Endpoint    string
	CallTimeout time.Duration

	// DialOptions are appended after the defaults, so they can override
	// transport credentials or the dialer.
	DialOptions []grpc.DialOption
}

// Client looks up the latest proof request for a prover.
//
// The underlying connection is created lazily on the first call and shared
// by all calls. Client is safe for concurrent use.
type Client struct {
	cfg    Config
	log    logx.Logger
	conn   *grpc.ClientConn
	target string
}

func New(cfg Config, log logx.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	target, plaintext := Target(cfg.Endpoint)
	creds := credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	if plaintext {
		creds = insecure.NewCredentials()
	}
	opts := append([]grpc.DialOption{grpc.WithTransportCredentials(creds)}, cfg.DialOptions...)

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc client %s: %w", target, err)
	}
	log.Debug("grpc client created", logx.String("target", target), logx.Bool("plaintext", plaintext))
	return &Client{cfg: cfg, log: log, conn: conn, target: target}, nil
}

// Target converts an endpoint URL into a grpc target.
//
// The scheme is stripped ("http://" selects a plaintext connection), trailing
// slashes are removed and ":443" is appended when no port is given. Targets
// that already carry a resolver scheme (e.g. "passthrough:///name") are
// returned as-is.
func Target(endpoint string) (target string, plaintext bool) {
	e := strings.TrimSpace(endpoint)
	switch {
	case strings.HasPrefix(e, "http://"):
		plaintext = true
		e = strings.TrimPrefix(e, "http://")
	case strings.HasPrefix(e, "https://"):
		e = strings.TrimPrefix(e, "https://")
	}
	if strings.Contains(e, ":///") {
		return e, plaintext
	}
	e = strings.TrimRight(e, "/")
	if _, _, err := net.SplitHostPort(e); err != nil {
		e = net.JoinHostPort(e, "443")
	}
	return e, plaintext
}

func (c *Client) Target() string { return c.target }

func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// FetchLatest walks prover.Priority and returns the most recent request in
// the first status that has one. It returns (nil, nil) when no status
// matches.
func (c *Client) FetchLatest(ctx context.Context, addr prover.Address) (*prover.Record, error) {
	for _, status := range prover.Priority {
		rec, err := c.query(ctx, status, addr)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			return rec, nil
		}
		c.log.Trace("no requests in status", logx.String("status", status.String()))
	}
	return nil, nil
}

func (c *Client) query(ctx context.Context, status prover.Status, addr prover.Address) (*prover.Record, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	in := &frame{data: filterRequest{Status: status, Fulfiller: addr, Limit: 1, Page: 1}.marshal()}
	out := &frame{}
	if err := c.conn.Invoke(callCtx, methodGetFilteredProofRequests, in, out, grpc.ForceCodec(rawCodec{})); err != nil {
		return nil, fmt.Errorf("%w: status %s: %w", ErrFetch, status, err)
	}

	reqs, err := unmarshalResponse(out.data)
	if err != nil {
		return nil, fmt.Errorf("%w: status %s: decode: %w", ErrFetch, status, err)
	}
	if len(reqs) == 0 {
		return nil, nil
	}
	return toRecord(status, reqs[0]), nil
}
