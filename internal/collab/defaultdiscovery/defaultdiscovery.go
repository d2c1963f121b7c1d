// Package defaultdiscovery is the reference Discovery collaborator: LAN
// peer discovery over UDP broadcast. Structurally grounded on the
// teacher's hdhomerun discovery socket loop (ListenUDP, deadline-bounded
// ReadFromUDP, respond-in-place) but the wire protocol here is JSON rather
// than HDHomeRun's binary TLV framing, since urpmd peers are other urpmd
// instances, not a fixed consumer-device protocol.
package defaultdiscovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/urpmd/urpmd/internal/collab"
)

// BroadcastPort is the default UDP port peers announce and listen on
// (the port is left to the collaborator; this is the reference
// choice, overridable through the Discovery.BroadcastPort field).
const BroadcastPort = 9631

// message is the wire format exchanged over the broadcast socket.
type message struct {
	Type  string   `json:"type"` // "announce" or "register"
	Host  string   `json:"host"`
	Port  int      `json:"port"`
	Media []string `json:"media"`
}

// Discovery is the reference collaborator satisfying collab.Discovery. It
// periodically broadcasts this host's presence and listens for others'
// broadcasts, maintaining an in-memory peer table.
type Discovery struct {
	Host          string
	Port          int
	Media         []string
	BroadcastPort int
	Interval      time.Duration

	mu    sync.Mutex
	peers map[string]collab.Peer

	conn   *net.UDPConn
	cancel context.CancelFunc
	done   chan struct{}
}

// New returns a Discovery announcing (host, port, media) every interval
// (default 30s) over UDP broadcast on BroadcastPort (default 9631).
func New(host string, port int, media []string) *Discovery {
	return &Discovery{
		Host:          host,
		Port:          port,
		Media:         media,
		BroadcastPort: BroadcastPort,
		Interval:      30 * time.Second,
		peers:         make(map[string]collab.Peer),
	}
}

// Start opens the broadcast socket and launches the listen and announce loops.
func (d *Discovery) Start(ctx context.Context) error {
	if d.BroadcastPort == 0 {
		d.BroadcastPort = BroadcastPort
	}
	if d.Interval == 0 {
		d.Interval = 30 * time.Second
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: d.BroadcastPort})
	if err != nil {
		return fmt.Errorf("defaultdiscovery: listen udp :%d: %w", d.BroadcastPort, err)
	}
	d.conn = conn

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})

	go d.listenLoop(runCtx)
	go d.announceLoop(runCtx)

	return nil
}

// Stop closes the socket and waits for the listen loop to exit. The
// announce loop returns once the context is cancelled and is not waited for.
func (d *Discovery) Stop() error {
	if d.cancel != nil {
		d.cancel()
	}
	if d.conn != nil {
		d.conn.Close()
	}
	if d.done != nil {
		<-d.done
	}
	return nil
}

// Peers returns a snapshot of the known peer table.
func (d *Discovery) Peers() []collab.Peer {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]collab.Peer, 0, len(d.peers))
	for _, p := range d.peers {
		out = append(out, p)
	}
	return out
}

// RegisterPeer records a peer announced out-of-band (e.g. via the query
// surface's /peers/register HTTP endpoint rather than the broadcast
// socket), idempotent on (host, port).
func (d *Discovery) RegisterPeer(host string, port int, media []string) (collab.Peer, error) {
	p := collab.Peer{Host: host, Port: port, Media: media, LastSeen: time.Now()}
	d.mu.Lock()
	d.peers[peerKey(host, port)] = p
	d.mu.Unlock()
	return p, nil
}

func (d *Discovery) listenLoop(ctx context.Context) {
	buf := make([]byte, 4096)
	for {
		select {
		case <-ctx.Done():
			close(d.done)
			return
		default:
		}

		d.conn.SetReadDeadline(time.Now().Add(1 * time.Second))
		n, _, err := d.conn.ReadFromUDP(buf)
		if err != nil {
			continue
		}

		var msg message
		if err := json.Unmarshal(buf[:n], &msg); err != nil {
			continue
		}
		if msg.Type != "announce" || msg.Host == d.Host && msg.Port == d.Port {
			continue
		}
		d.mu.Lock()
		d.peers[peerKey(msg.Host, msg.Port)] = collab.Peer{
			Host: msg.Host, Port: msg.Port, Media: msg.Media, LastSeen: time.Now(),
		}
		d.mu.Unlock()
	}
}

func (d *Discovery) announceLoop(ctx context.Context) {
	ticker := time.NewTicker(d.Interval)
	defer ticker.Stop()

	broadcastAddr := &net.UDPAddr{IP: net.IPv4bcast, Port: d.BroadcastPort}

	announce := func() {
		msg := message{Type: "announce", Host: d.Host, Port: d.Port, Media: d.Media}
		payload, err := json.Marshal(msg)
		if err != nil {
			return
		}
		d.conn.WriteToUDP(payload, broadcastAddr)
	}

	announce()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			announce()
		}
	}
}

func peerKey(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
