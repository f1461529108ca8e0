package scraper

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"net/url"
	"time"

	utls "github.com/refraction-networking/utls"
	"github.com/rotisserie/eris"
)

// newTransport builds the HTTP transport for provider calls. With chromeTLS
// the handshake mimics a Chrome client hello; a proxy always falls back to the
// standard TLS stack since the tunnel is negotiated by net/http.
func newTransport(chromeTLS bool, proxyURL string) (*http.Transport, error) {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 50,
		IdleConnTimeout:     90 * time.Second,
	}

	if chromeTLS {
		transport.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialChrome(ctx, dialer, network, addr)
		}
	}

	if proxyURL != "" {
		parsed, err := url.Parse(proxyURL)
		if err != nil {
			return nil, eris.Wrapf(err, "scraper: invalid proxy url %q", proxyURL)
		}
		transport.Proxy = http.ProxyURL(parsed)
		transport.DialTLSContext = nil
		transport.TLSClientConfig = &tls.Config{}
	}

	return transport, nil
}

// chromeSpec returns the current Chrome client hello with ALPN limited to
// http/1.1, the only protocol net/http speaks over a custom TLS dial.
func chromeSpec() (utls.ClientHelloSpec, error) {
	spec, err := utls.UTLSIdToSpec(utls.HelloChrome_Auto)
	if err != nil {
		return spec, eris.Wrap(err, "scraper: chrome hello spec")
	}
	for _, ext := range spec.Extensions {
		if alpn, ok := ext.(*utls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
		}
	}
	return spec, nil
}

func dialChrome(ctx context.Context, dialer *net.Dialer, network, addr string) (net.Conn, error) {
	spec, err := chromeSpec()
	if err != nil {
		return nil, err
	}
	raw, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	serverName := addr
	if host, _, splitErr := net.SplitHostPort(addr); splitErr == nil {
		serverName = host
	}

	conn := utls.UClient(raw, &utls.Config{ServerName: serverName}, utls.HelloCustom)
	if err := conn.ApplyPreset(&spec); err != nil {
		raw.Close()
		return nil, eris.Wrap(err, "scraper: apply chrome preset")
	}
	if err := conn.HandshakeContext(ctx); err != nil {
		raw.Close()
		return nil, eris.Wrapf(err, "scraper: tls handshake with %s", serverName)
	}
	return conn, nil
}
