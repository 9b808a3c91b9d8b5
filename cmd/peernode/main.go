// Peernode is the CLI entry point of a peer node.
//
// Runs one node of the peer network: accepts WebSocket peers, dials
// bootnodes, completes the identity handshake, serves block requests from an
// in-memory chain and floods blocks and transactions between peers. Peers
// learned from peer lists are reached over WebRTC data channels signaled
// through the peer that named them.
package main

import (
	"context"
	"crypto/rand"
	"flag"
	"fmt"
	"net"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"golang.org/x/sync/errgroup"

	"github.com/1ureka/peerwire/internal/chain"
	"github.com/1ureka/peerwire/internal/config"
	"github.com/1ureka/peerwire/internal/connection"
	"github.com/1ureka/peerwire/internal/message"
	"github.com/1ureka/peerwire/internal/peer"
	"github.com/1ureka/peerwire/internal/transport"
	"github.com/1ureka/peerwire/internal/util"
)

var version = "dev"

func main() {
	// Cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	configPath := flag.String("config", "", "TOML config file")
	listen := flag.String("listen", "", "Peer listener address, e.g. 127.0.0.1:30333")
	network := flag.String("network", "", "Network name; peers on other networks are refused")
	bootnodes := flag.String("bootnodes", "", "Comma-separated host:port or ws:// URLs to dial")
	latency := flag.Duration("latency", 0, "Simulated maximum send latency (testing only)")
	announce := flag.Duration("announce", 0, "Broadcast a random test block at this interval")
	debugMode := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			util.LogError("%v", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Flags given on the command line win over the file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "listen":
			cfg.Listen = *listen
		case "network":
			cfg.Network = *network
		case "bootnodes":
			cfg.Bootnodes = splitList(*bootnodes)
		case "latency":
			cfg.MaxLatency.Duration = *latency
		case "announce":
			cfg.Announce.Duration = *announce
		case "debug":
			cfg.Debug = *debugMode
		}
	})

	if err := cfg.Validate(); err != nil {
		util.LogError("invalid configuration: %v", err)
		os.Exit(1)
	}
	if cfg.Debug {
		util.EnableDebug()
	}

	pterm.Info.Println(fmt.Sprintf("Peernode — v%s", version))
	pterm.Println()

	if err := run(ctx, cfg); err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}
	util.LogInfo("node stopped")
}

// ---------------------------------------------------------------------------
// Run
// ---------------------------------------------------------------------------

func run(ctx context.Context, cfg config.Config) error {
	id, err := cfg.NodeIdentity()
	if err != nil {
		return fmt.Errorf("invalid identity: %w", err)
	}
	if cfg.MaxLatency.Duration > 0 {
		util.LogWarning("simulating up to %s of send latency", cfg.MaxLatency.Duration)
	}

	store := chain.NewMemory()
	mgr, err := peer.NewManager(cfg.PeerConfig(id, store))
	if err != nil {
		return err
	}
	defer mgr.Close()

	pterm.DefaultTable.WithData(pterm.TableData{
		{"Identity", id.String()},
		{"Network", cfg.Network},
		{"Listen", orNone(cfg.Listen)},
		{"Bootnodes", orNone(strings.Join(cfg.Bootnodes, ", "))},
	}).Render()
	pterm.Println()

	util.StartStatsReporter(ctx)

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Listen != "" {
		srv := transport.NewServer(cfg.Network, cfg.ConnConfig(), func(c *connection.Conn) {
			if err := mgr.Add(c); err != nil {
				util.LogWarning("[%s] not accepted: %v", c.DisplayName(), err)
			}
		})
		g.Go(func() error { return srv.Run(ctx, cfg.Listen) })
	}

	for _, raw := range cfg.Bootnodes {
		target, err := normalizeBootnode(raw, cfg.Network)
		if err != nil {
			util.LogWarning("skipping bootnode: %v", err)
			continue
		}
		util.LogInfo("dialing bootnode %s", target)
		if err := mgr.Dial(target); err != nil {
			util.LogWarning("bootnode %s: %v", target, err)
		}
	}

	g.Go(func() error { return importGossip(ctx, mgr, store) })

	if cfg.Announce.Duration > 0 {
		g.Go(func() error { return announceBlocks(ctx, mgr, store, cfg.Announce.Duration) })
	}

	return g.Wait()
}

// importGossip stores every block received from peers.
func importGossip(ctx context.Context, mgr *peer.Manager, store *chain.Memory) error {
	items := make(chan peer.Gossip, 64)
	sub := mgr.SubscribeGossip(items)
	defer sub.Unsubscribe()

	for {
		select {
		case item := <-items:
			switch item.Type {
			case message.TypeNewBlock:
				if hash, added := store.Append(item.Payload); added {
					util.LogInfo("imported block %s from %s (height %d)", hash.TerminalString(), item.From.Short(), store.Len())
				}
			case message.TypeNewTransaction:
				util.LogDebug("transaction %s from %s", item.Nonce, item.From.Short())
			}
		case err := <-sub.Err():
			return err
		case <-ctx.Done():
			return nil
		}
	}
}

// announceBlocks appends and broadcasts a random block every interval.
func announceBlocks(ctx context.Context, mgr *peer.Manager, store *chain.Memory, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			block := make([]byte, 64)
			rand.Read(block)
			hash, _ := store.Append(block)
			n := mgr.BroadcastBlock(block)
			util.LogInfo("announced block %s to %d peers", hash.TerminalString(), n)
		case <-ctx.Done():
			return nil
		}
	}
}

// ---------------------------------------------------------------------------
// Helper Functions
// ---------------------------------------------------------------------------

// normalizeBootnode turns host:port or a ws(s) URL into a dialable peer URL
// carrying the network name.
func normalizeBootnode(raw, network string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		if _, _, err := net.SplitHostPort(raw); err != nil {
			return "", fmt.Errorf("invalid bootnode %q: %w", raw, err)
		}
		return transport.URL(raw, network), nil
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "ws" && u.Scheme != "wss") {
		return "", fmt.Errorf("invalid bootnode URL %q", raw)
	}
	if u.Path == "" {
		u.Path = transport.Path
	}
	q := u.Query()
	q.Set("network", network)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func orNone(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
