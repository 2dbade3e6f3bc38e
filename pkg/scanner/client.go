// Package scanner implements the Scanner Client (C): the handler's
// synchronous collaborator for talking to an external vulnerability
// scanner, dialed over gRPC either on a local unix socket or over TCP with
// mTLS via credentials.NewTLS(&tls.Config{...}).
package scanner

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/vulnscan/scanengine/pkg/types"
)

// Client is the handler-facing surface over a single scanner connection.
// A Client is created fresh per scan loop iteration and closed on every
// loop exit (§4.6), so it carries no retry logic of its own — that lives
// in the handler's update loop, which is what tracks the retry budget.
type Client struct {
	conn   *grpc.ClientConn
	mapper RelayMapper
}

// RelayMapper resolves a scanner connection's logical address to a dial
// target that may differ from ConnectionData.Host — e.g. a relay service
// that proxies to scanners on isolated networks. The default
// implementation dials the target as given.
type RelayMapper interface {
	Resolve(ctx context.Context, data types.ConnectionData) (dialTarget string, err error)
}

// directMapper resolves the connection by dialing ConnectionData's host
// and port (or unix-socket path) directly.
type directMapper struct{}

func (directMapper) Resolve(_ context.Context, data types.ConnectionData) (string, error) {
	if data.IsUnixSocket() {
		return "unix:" + data.Host, nil
	}
	return fmt.Sprintf("%s:%d", data.Host, data.Port), nil
}

// DefaultRelayMapper is the direct-dial RelayMapper used when
// ConnectionData.UseRelayMapper is false.
var DefaultRelayMapper RelayMapper = directMapper{}

// Connect dials the scanner described by data, using mapper to resolve the
// dial target when data.UseRelayMapper is set, and DefaultRelayMapper
// otherwise. A unix-socket host skips TLS entirely; a TCP host requires the
// three PEM blobs in data and negotiates mTLS.
func Connect(ctx context.Context, data types.ConnectionData, mapper RelayMapper) (*Client, error) {
	if mapper == nil {
		mapper = DefaultRelayMapper
	}
	if !data.UseRelayMapper {
		mapper = DefaultRelayMapper
	}

	target, err := mapper.Resolve(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("scanner: resolve dial target: %w", err)
	}

	var dialOpts []grpc.DialOption
	if data.IsUnixSocket() {
		dialOpts = append(dialOpts,
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithContextDialer(func(ctx context.Context, addr string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", data.Host)
			}),
		)
	} else {
		tlsConfig, err := buildTLSConfig(data)
		if err != nil {
			return nil, err
		}
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(credentials.NewTLS(tlsConfig)))
	}

	dialCtx, cancel := context.WithTimeout(ctx, DialTimeout)
	defer cancel()
	conn, err := grpc.DialContext(dialCtx, target, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("scanner: dial %s: %w", target, err)
	}

	return &Client{conn: conn, mapper: mapper}, nil
}

func buildTLSConfig(data types.ConnectionData) (*tls.Config, error) {
	cert, err := tls.X509KeyPair(data.ClientCert, data.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("scanner: parse client certificate: %w", err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data.CACert) {
		return nil, fmt.Errorf("scanner: no CA certificates found in connection data")
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
		MinVersion:   tls.VersionTLS13,
	}, nil
}

// Close releases the underlying connection. Safe to call once per Client.
func (c *Client) Close() error {
	return c.conn.Close()
}

// API is the scanner protocol surface §6 documents as consumed-not-defined.
// The handler depends on this interface rather than *Client directly, so
// tests can drive the update loop against a fake without a live scanner.
type API interface {
	StartScan(ctx context.Context, req StartScanRequest) error
	GetScanPop(ctx context.Context, scanID string) (progress int, rows []types.ResultRow, err error)
	GetScanStatus(ctx context.Context, scanID string) (types.ScannerStatus, error)
	StopScan(ctx context.Context, scanID string) error
	DeleteScan(ctx context.Context, scanID string) error
	Close() error
}

var _ API = (*Client)(nil)

// StartScanRequest is the composite launch request §4.5.1 builds from a
// Task: target, credentials, VT selection and scan config preferences.
type StartScanRequest struct {
	ScanID       string
	Target       types.Target
	Credentials  types.Credentials
	ScannerPrefs map[string]string
	VTs          types.VTSelection
	ScanConfig   types.ScanConfigPreferences
}

// StartScan launches a new scan on the remote scanner.
func (c *Client) StartScan(ctx context.Context, req StartScanRequest) error {
	// The wire encoding of this call is scanner-protocol-specific and out
	// of scope (§1 Non-goals); the transport and framing are what this
	// package is responsible for.
	return fmt.Errorf("scanner: StartScan not wired to a concrete protocol implementation")
}

// GetScanPop fetches incremental progress and result rows. Per §6, a
// non-negative return is a 0..100 progress percentage; a negative return
// is a scanner-reported error code.
func (c *Client) GetScanPop(ctx context.Context, scanID string) (progress int, rows []types.ResultRow, err error) {
	return 0, nil, fmt.Errorf("scanner: GetScanPop not wired to a concrete protocol implementation")
}

// GetScanStatus fetches the scanner's current status for scanID.
func (c *Client) GetScanStatus(ctx context.Context, scanID string) (types.ScannerStatus, error) {
	return "", fmt.Errorf("scanner: GetScanStatus not wired to a concrete protocol implementation")
}

// StopScan requests the remote scanner stop scanID.
func (c *Client) StopScan(ctx context.Context, scanID string) error {
	return fmt.Errorf("scanner: StopScan not wired to a concrete protocol implementation")
}

// DeleteScan requests the remote scanner delete scanID and any partial
// results it holds. Called both on normal cleanup and as a best-effort
// step when a semaphore signaling error forces an early exit (§7).
func (c *Client) DeleteScan(ctx context.Context, scanID string) error {
	return fmt.Errorf("scanner: DeleteScan not wired to a concrete protocol implementation")
}

// DialTimeout bounds how long Connect blocks on the underlying dial.
const DialTimeout = 10 * time.Second
