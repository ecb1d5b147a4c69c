package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/flockwise/agrirag/internal/tlsutil"
)

// Score 单个文档的交叉编码器打分
type Score struct {
	Index     int     `json:"index"`     // Position in the submitted document list
	Relevance float64 `json:"relevance"` // 0-1 normalized
}

// Provider 交叉编码器服务接口
type Provider interface {
	// Score 对查询与文档列表逐对打分，返回按相关性降序的结果。
	Score(ctx context.Context, query string, documents []string, topN int) ([]Score, error)

	// Name 返回服务商名称
	Name() string
}

// CohereConfig Cohere 精排服务配置
type CohereConfig struct {
	APIKey  string        `json:"api_key" yaml:"api_key"`
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Model   string        `json:"model,omitempty" yaml:"model,omitempty"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// DefaultCohereConfig 返回默认 Cohere 配置
func DefaultCohereConfig() CohereConfig {
	return CohereConfig{
		BaseURL: "https://api.cohere.ai",
		Model:   "rerank-v3.5",
		Timeout: 30 * time.Second,
	}
}

// CohereProvider 通过 Cohere Rerank v2 API 打分
type CohereProvider struct {
	cfg    CohereConfig
	client *http.Client
}

// NewCohereProvider 创建 Cohere 精排服务客户端
func NewCohereProvider(cfg CohereConfig) *CohereProvider {
	def := DefaultCohereConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}

	return &CohereProvider{
		cfg:    cfg,
		client: tlsutil.SecureHTTPClient(cfg.Timeout),
	}
}

func (p *CohereProvider) Name() string { return "cohere-rerank" }

type cohereRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Model     string   `json:"model"`
	TopN      int      `json:"top_n,omitempty"`
}

type cohereResponse struct {
	ID      string `json:"id"`
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// Score 调用 /v2/rerank 对文档打分
func (p *CohereProvider) Score(ctx context.Context, query string, documents []string, topN int) ([]Score, error) {
	payload, _ := json.Marshal(cohereRequest{
		Query:     query,
		Documents: documents,
		Model:     p.cfg.Model,
		TopN:      topN,
	})

	httpReq, err := http.NewRequestWithContext(ctx, "POST",
		strings.TrimRight(p.cfg.BaseURL, "/")+"/v2/rerank",
		bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("cohere rerank request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("cohere rerank error: status=%d body=%s", resp.StatusCode, string(body))
	}

	var cResp cohereResponse
	if err := json.NewDecoder(resp.Body).Decode(&cResp); err != nil {
		return nil, fmt.Errorf("failed to decode cohere response: %w", err)
	}

	scores := make([]Score, len(cResp.Results))
	for i, r := range cResp.Results {
		scores[i] = Score{Index: r.Index, Relevance: r.RelevanceScore}
	}
	return scores, nil
}
