// Package platform wraps the resilient HTTP client with the remote
// platform's authentication surface: a persistent cookie jar seeded from the
// stored credential, wbi request signing, and bili_ticket issuance.
package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/publicsuffix"

	"github.com/vidsyncd/vidsyncd/internal/models"
	"github.com/vidsyncd/vidsyncd/internal/ratelimiter"
	"github.com/vidsyncd/vidsyncd/pkg/httpclient"
)

const (
	cookieDomain = ".bilibili.com"
	serviceName  = "platform"
)

// WbiKeyFetcher fetches the current (img_key, sub_key) pair from the
// upstream nav endpoint. It is an interface so tests can stub the network
// call; the production implementation is NewNavWbiFetcher in nav.go.
type WbiKeyFetcher interface {
	FetchWbiKeys(ctx context.Context) (models.WbiKeys, error)
}

// Client is the signed HTTP surface every source adapter and asset fetcher
// issues requests through.
type Client struct {
	http *httpclient.Client
	jar  *cookiejar.Jar

	wbiTTL       time.Duration
	ticketSecret string
	fetcher      WbiKeyFetcher
	bucket       *ratelimiter.Bucket

	mu      sync.RWMutex
	cred    *models.Credential
	wbiKeys models.WbiKeys
}

// New builds a Client around the shared circuit-breaker factory, seeding the
// cookie jar from cred if non-nil. bucket may be nil, in which case Do does
// not rate-limit (used by tests that point at an httptest server).
func New(factory *httpclient.ClientFactory, fetcher WbiKeyFetcher, wbiTTL time.Duration, ticketSecret string, cred *models.Credential, bucket *ratelimiter.Bucket) (*Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("platform: creating cookie jar: %w", err)
	}

	cfg := httpclient.ClientConfig{ServiceName: serviceName}
	base := factory.CreateClient(cfg)
	base.StandardClient().Jar = jar

	c := &Client{
		http:         base,
		jar:          jar,
		wbiTTL:       wbiTTL,
		ticketSecret: ticketSecret,
		fetcher:      fetcher,
		bucket:       bucket,
	}
	if cred != nil {
		c.SeedCredential(cred)
	}
	return c, nil
}

// SeedCredential loads the session cookies from a stored credential into the
// jar. Safe to call again after a refresh; the new cookies replace the old
// ones for the same names.
func (c *Client) SeedCredential(cred *models.Credential) {
	c.mu.Lock()
	c.cred = cred
	c.mu.Unlock()

	u := &url.URL{Scheme: "https", Host: "bilibili.com"}
	cookies := []*http.Cookie{
		{Name: "SESSDATA", Value: cred.SESSDATA, Domain: cookieDomain, Path: "/"},
		{Name: "bili_jct", Value: cred.BiliJCT, Domain: cookieDomain, Path: "/"},
		{Name: "buvid3", Value: cred.Buvid3, Domain: cookieDomain, Path: "/"},
		{Name: "DedeUserID", Value: cred.DedeUserID, Domain: cookieDomain, Path: "/"},
		{Name: "ac_time_value", Value: cred.ACTimeValue, Domain: cookieDomain, Path: "/"},
	}
	var nonEmpty []*http.Cookie
	for _, ck := range cookies {
		if ck.Value != "" {
			nonEmpty = append(nonEmpty, ck)
		}
	}
	c.jar.SetCookies(u, nonEmpty)
}

// CSRF returns the bili_jct value used as the csrf form field on mutating
// requests.
func (c *Client) CSRF() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.cred == nil {
		return ""
	}
	return c.cred.BiliJCT
}

// Do issues a request through the resilient client, stamping a request id
// for log correlation. Every call is gated on the shared rate-limit bucket
// first, so adapters, asset fetchers, and sidecar generators share one
// outbound pacing budget regardless of which one issues the request.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if c.bucket != nil {
		if err := c.bucket.Acquire(ctx); err != nil {
			return nil, fmt.Errorf("platform: acquiring rate limit token: %w", err)
		}
	}
	req.Header.Set("X-Request-Id", uuid.NewString())
	return c.http.DoWithContext(ctx, req)
}

// SignedGet issues a GET request with wbi-signed query parameters appended.
func (c *Client) SignedGet(ctx context.Context, endpoint string, params url.Values) (*http.Response, error) {
	keys, err := c.currentWbiKeys(ctx)
	if err != nil {
		return nil, err
	}

	signedQuery := Sign(params, keys, time.Now().Unix())
	full := endpoint
	if len(signedQuery) > 0 {
		full += "?" + signedQuery
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, full, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(ctx, req)
}

// Ticket issues a fresh bili_ticket + csrf pair for endpoints requiring it.
func (c *Client) Ticket() (ticket string, csrf string) {
	ts := time.Now().Unix()
	payload := TicketPayload(ts)
	return SignTicketPayload(c.ticketSecret, payload), c.CSRF()
}

// currentWbiKeys returns the cached keys, refreshing them when expired.
func (c *Client) currentWbiKeys(ctx context.Context) (models.WbiKeys, error) {
	c.mu.RLock()
	keys := c.wbiKeys
	c.mu.RUnlock()

	if !keys.Expired(c.wbiTTL) {
		return keys, nil
	}

	fresh, err := c.fetcher.FetchWbiKeys(ctx)
	if err != nil {
		c.mu.RLock()
		stale := c.wbiKeys
		c.mu.RUnlock()
		if !stale.Expired(c.wbiTTL * 2) {
			// Tolerate a failed refresh briefly rather than failing every
			// signed call outright.
			return stale, nil
		}
		return models.WbiKeys{}, fmt.Errorf("platform: refreshing wbi keys: %w", err)
	}

	c.mu.Lock()
	c.wbiKeys = fresh
	c.mu.Unlock()
	return fresh, nil
}

// StandardClient exposes the underlying *http.Client for callers that need
// to pass it to a library expecting one directly (e.g. a manifest fetcher).
func (c *Client) StandardClient() *http.Client {
	return c.http.StandardClient()
}
