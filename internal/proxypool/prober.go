package proxypool

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/d60-Lab/content-factory/internal/igclient"
	"github.com/d60-Lab/content-factory/internal/model"
)

// HTTPProber 通过代理请求探测 URL 验证连通性
type HTTPProber struct {
	ProbeURL string
	Timeout  time.Duration
}

func NewHTTPProber(probeURL string, timeout time.Duration) *HTTPProber {
	if probeURL == "" {
		probeURL = "https://httpbin.org/ip"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPProber{ProbeURL: probeURL, Timeout: timeout}
}

func (h *HTTPProber) Probe(ctx context.Context, p *model.Proxy) error {
	tr, err := igclient.NewProxyTransport(p)
	if err != nil {
		return err
	}
	client := &http.Client{Transport: tr, Timeout: h.Timeout}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.ProbeURL, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("probe returned %d", resp.StatusCode)
	}
	return nil
}
