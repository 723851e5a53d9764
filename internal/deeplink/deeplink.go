// Package deeplink builds wallet deep links and provides the reachability
// probe and link opener used by the external wallet handshake.
package deeplink

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/skip2/go-qrcode"
)

// Store links for the MetaMask app
const (
	StoreLinkIOS     = "https://apps.apple.com/us/app/metamask/id1438144202"
	StoreLinkAndroid = "https://play.google.com/store/apps/details?id=io.metamask"
	StoreLinkDefault = "https://metamask.io/download/"
)

// Probe reports whether the external wallet can be reached
type Probe interface {
	Reachable(ctx context.Context) bool
}

// Opener hands a deep link to whatever launches the wallet
type Opener interface {
	Open(ctx context.Context, uri string) error
}

// ProbeFunc adapts a function to Probe
type ProbeFunc func(ctx context.Context) bool

// Reachable calls f
func (f ProbeFunc) Reachable(ctx context.Context) bool { return f(ctx) }

// Build returns <scheme>dapp/<escaped callback>, e.g.
// metamask://dapp/http%3A%2F%2Flocalhost%3A19000
func Build(scheme, dappURL string) (string, error) {
	if !strings.HasSuffix(scheme, "://") {
		return "", fmt.Errorf("deep link scheme must end with '://', got: %s", scheme)
	}
	if dappURL == "" {
		return "", fmt.Errorf("dapp url is required")
	}
	return scheme + "dapp/" + url.QueryEscape(dappURL), nil
}

// StoreLinkFor returns the install page for a platform name
func StoreLinkFor(platform string) string {
	switch strings.ToLower(platform) {
	case "ios":
		return StoreLinkIOS
	case "android":
		return StoreLinkAndroid
	default:
		return StoreLinkDefault
	}
}

// RPCProbe treats the wallet as reachable when its provider endpoint answers
// web3_clientVersion.
type RPCProbe struct {
	URL string
}

// Reachable dials the endpoint and asks for its client version
func (p RPCProbe) Reachable(ctx context.Context) bool {
	if p.URL == "" {
		return false
	}
	client, err := rpc.DialContext(ctx, p.URL)
	if err != nil {
		return false
	}
	defer client.Close()

	var version string
	return client.CallContext(ctx, &version, "web3_clientVersion") == nil
}

// QROpener renders the link as a terminal QR code for a phone wallet to scan
type QROpener struct {
	mu sync.Mutex
	w  io.Writer
}

// NewQROpener writes QR codes to w
func NewQROpener(w io.Writer) *QROpener {
	return &QROpener{w: w}
}

// Open prints the QR code followed by the raw link
func (o *QROpener) Open(_ context.Context, uri string) error {
	qr, err := qrcode.New(uri, qrcode.Medium)
	if err != nil {
		return fmt.Errorf("failed to encode deep link: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if _, err := fmt.Fprintf(o.w, "%s\nOpen in your wallet: %s\n", qr.ToSmallString(false), uri); err != nil {
		return fmt.Errorf("failed to write deep link: %w", err)
	}
	return nil
}

var (
	_ Probe  = RPCProbe{}
	_ Probe  = ProbeFunc(nil)
	_ Opener = (*QROpener)(nil)
)
