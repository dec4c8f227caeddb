package gateway

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/fenwall/aclcore/internal/acl"
)

// Publisher pushes a compiled FirewallConfig to a location's gateway
// daemon.
type Publisher interface {
	Push(ctx context.Context, locationID acl.ID, cfg *acl.FirewallConfig) error
}

// GRPCPublisher dials the gateway daemon over grpc using the JSON codec
// registered in codec.go, authenticating with a long-lived service
// credential carried as request metadata rather than a user JWT.
type GRPCPublisher struct {
	addr         string
	serviceToken string
	timeout      time.Duration
	insecure     bool

	conn *grpc.ClientConn
}

func NewGRPCPublisher(addr, serviceToken string, timeout time.Duration, insecureTransport bool) *GRPCPublisher {
	return &GRPCPublisher{addr: addr, serviceToken: serviceToken, timeout: timeout, insecure: insecureTransport}
}

// Dial establishes the grpc connection. Call once at startup; Push reuses it.
func (p *GRPCPublisher) Dial() error {
	var creds credentials.TransportCredentials
	if p.insecure {
		creds = insecure.NewCredentials()
	} else {
		creds = credentials.NewTLS(nil)
	}

	conn, err := grpc.NewClient(p.addr,
		grpc.WithTransportCredentials(creds),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(jsonCodecName)),
	)
	if err != nil {
		return fmt.Errorf("dial gateway %s: %w", p.addr, err)
	}
	p.conn = conn
	return nil
}

func (p *GRPCPublisher) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}

// Push invokes the gateway's PushFirewallConfig unary RPC, method name
// matched by convention rather than a .proto file since the wire codec is
// hand-registered JSON, not protoc-generated.
func (p *GRPCPublisher) Push(ctx context.Context, locationID acl.ID, cfg *acl.FirewallConfig) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+p.serviceToken)

	req := struct {
		LocationID acl.ID             `json:"location_id"`
		Config     wireFirewallConfig `json:"config"`
	}{LocationID: locationID, Config: toWireConfig(cfg)}

	var resp struct {
		Accepted bool `json:"accepted"`
	}

	method := "/aclcore.gateway.v1.GatewayService/PushFirewallConfig"
	if err := p.conn.Invoke(ctx, method, &req, &resp); err != nil {
		return fmt.Errorf("push firewall config: %w", err)
	}
	if !resp.Accepted {
		return fmt.Errorf("gateway rejected firewall config for location %d", locationID)
	}
	return nil
}
