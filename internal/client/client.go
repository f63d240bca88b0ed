// Package client builds the emulated browser HTTP clients that sessions run
// on: Chrome TLS fingerprint, its own cookie jar, and optionally a proxy
// pinned for the client's whole lifetime.
package client

import (
	"fmt"
	"math/rand"
	"os"
	"strings"
	"sync"

	tls_client "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"
)

var (
	proxyList      []string
	proxyListMutex sync.Mutex
)

// SetProxyList replaces the pool of proxy URLs new clients may pick from.
func SetProxyList(proxies []string) {
	proxyListMutex.Lock()
	defer proxyListMutex.Unlock()
	proxyList = proxies
}

// LoadProxyFile reads line-delimited host:port:username:password entries.
// Blank lines are skipped, malformed lines are an error.
func LoadProxyFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read proxy file: %w", err)
	}

	var proxies []string
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		url, err := ParseProxyEntry(line)
		if err != nil {
			return nil, fmt.Errorf("proxy file line %d: %w", i+1, err)
		}
		proxies = append(proxies, url)
	}
	return proxies, nil
}

// ParseProxyEntry converts host:port:username:password into a proxy URL.
func ParseProxyEntry(entry string) (string, error) {
	parts := strings.Split(entry, ":")
	if len(parts) != 4 {
		return "", fmt.Errorf("want host:port:username:password, got %q", entry)
	}
	host, port, username, password := parts[0], parts[1], parts[2], parts[3]
	if host == "" || port == "" {
		return "", fmt.Errorf("empty host or port in %q", entry)
	}
	return fmt.Sprintf("http://%s:%s@%s:%s", username, password, host, port), nil
}

// ProxiedClient is a TLS-fingerprinted HTTP client with the proxy it was
// created with. The proxy never changes for the client's lifetime; a dead
// proxy means the whole client (and its session) gets discarded.
type ProxiedClient struct {
	tls_client.HttpClient
	ProxyURL string
}

// CreateClient builds a fresh emulated Chrome client with its own cookie
// jar. When allowProxy is set and the proxy list is non-empty, one entry is
// picked at random and bound to the client.
func CreateClient(allowProxy bool) (*ProxiedClient, error) {
	jar := tls_client.NewCookieJar()
	options := []tls_client.HttpClientOption{
		tls_client.WithTimeoutSeconds(30),
		tls_client.WithClientProfile(profiles.Chrome_120),
		tls_client.WithRandomTLSExtensionOrder(),
		tls_client.WithCookieJar(jar),
	}

	var proxyURL string
	if allowProxy {
		proxyListMutex.Lock()
		if len(proxyList) > 0 {
			proxyURL = proxyList[rand.Intn(len(proxyList))]
			options = append(options, tls_client.WithProxyUrl(proxyURL))
		}
		proxyListMutex.Unlock()
	}

	client, err := tls_client.NewHttpClient(tls_client.NewNoopLogger(), options...)
	if err != nil {
		return nil, err
	}

	return &ProxiedClient{HttpClient: client, ProxyURL: proxyURL}, nil
}
