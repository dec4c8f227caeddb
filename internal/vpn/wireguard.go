// Package vpn reads live WireGuard interface/peer status and mints key
// material. Pushing compiled ACLs to a gateway is internal/gateway's job;
// this package never writes a wg-quick config or brings an interface up —
// that belongs to the device enrollment flow, out of this core's scope.
package vpn

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
	"golang.zx2c4.com/wireguard/wgctrl"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

// Manager reads WireGuard interface/peer status via wgctrl.
type Manager struct {
	iface string
	log   *zap.Logger
}

func NewManager(iface string, log *zap.Logger) *Manager {
	return &Manager{iface: iface, log: log}
}

// GenerateKeyPair generates a new WireGuard private/public key pair.
func GenerateKeyPair() (privateKey, publicKey string, err error) {
	key, err := wgtypes.GeneratePrivateKey()
	if err != nil {
		return "", "", fmt.Errorf("generate private key: %w", err)
	}
	return key.String(), key.PublicKey().String(), nil
}

// GeneratePresharedKey generates a random 32-byte preshared key.
func GeneratePresharedKey() (string, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// Status returns current WireGuard interface status: public key, listen
// port, and per-peer handshake/traffic counters.
func (m *Manager) Status() (*InterfaceStatus, error) {
	client, err := wgctrl.New()
	if err != nil {
		return nil, fmt.Errorf("wgctrl: %w", err)
	}
	defer client.Close()

	device, err := client.Device(m.iface)
	if err != nil {
		return nil, fmt.Errorf("get device %s: %w", m.iface, err)
	}

	status := &InterfaceStatus{
		Interface:  device.Name,
		PublicKey:  device.PublicKey.String(),
		ListenPort: device.ListenPort,
		Peers:      make([]PeerStatus, len(device.Peers)),
	}

	for i, p := range device.Peers {
		status.Peers[i] = PeerStatus{
			PublicKey:         p.PublicKey.String(),
			AllowedIPs:        ipNetSlice(p.AllowedIPs),
			LastHandshakeTime: p.LastHandshakeTime,
			RxBytes:           p.ReceiveBytes,
			TxBytes:           p.TransmitBytes,
		}
		if p.Endpoint != nil {
			status.Peers[i].Endpoint = p.Endpoint.String()
		}
	}
	return status, nil
}

func ipNetSlice(nets []net.IPNet) []string {
	out := make([]string, len(nets))
	for i, n := range nets {
		out[i] = n.String()
	}
	return out
}

// ─── Status types ─────────────────────────────────────────────────────────

type InterfaceStatus struct {
	Interface  string
	PublicKey  string
	ListenPort int
	Peers      []PeerStatus
}

type PeerStatus struct {
	PublicKey         string
	Endpoint          string
	AllowedIPs        []string
	LastHandshakeTime time.Time
	RxBytes           int64
	TxBytes           int64
}
