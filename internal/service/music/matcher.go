package music

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/maeumlab/emotion-letterbox/backend/internal/model/emotion"
	"github.com/maeumlab/emotion-letterbox/backend/internal/model/letter"
	"github.com/maeumlab/emotion-letterbox/backend/internal/observe"
)

const searchLimit = 10

// 每种情绪对应一组固定的检索关键词。
var searchQueries = map[emotion.Kind]string{
	emotion.Happy:   "happy upbeat energetic",
	emotion.Sad:     "sad melancholy emotional ballad",
	emotion.Anxious: "calm peaceful relaxing ambient",
	emotion.Excited: "energetic exciting festival dance",
	emotion.Calm:    "calm peaceful meditation zen",
	emotion.Angry:   "powerful intense rock metal",
}

// Config 描述音乐目录访问参数。
type Config struct {
	ClientID     string
	ClientSecret string
	Market       string
	TokenURL     string
	APIURL       string
	Timeout      time.Duration
}

// Matcher resolves a mood-matched track from the music catalog. Every
// failure at any step is converted to a nil result at this boundary; the
// component never returns an error past its contract.
type Matcher struct {
	cfg    Config
	client *http.Client
	obs    observe.Observer

	mu  sync.Mutex
	rng *rand.Rand
}

// NewMatcher 创建音乐匹配服务。rng 可注入以便测试固定随机序列。
func NewMatcher(cfg Config, rng *rand.Rand, obs observe.Observer) *Matcher {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Matcher{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		rng:    rng,
		obs:    obs,
	}
}

// FindTrack recommends one track for the emotion, or nil when anything goes
// wrong. Intensity is accepted but does not shape the query yet; it is kept
// as an extension point for intensity-tiered recommendations.
func (m *Matcher) FindTrack(ctx context.Context, kind emotion.Kind, _ int) *letter.MusicTrack {
	token, err := m.fetchAccessToken(ctx)
	if err != nil {
		observe.Emit(m.obs, observe.MatcherAuthFailed, "", err)
		return nil
	}

	items, err := m.searchTracks(ctx, token, searchQuery(kind))
	if err != nil {
		observe.Emit(m.obs, observe.MatcherSearchFailed, "", err)
		return nil
	}
	if len(items) == 0 {
		return nil
	}

	picked := m.pick(items)
	track := picked.toMusicTrack()
	return &track
}

// searchQuery 返回情绪对应的检索词，未知情绪使用 happy 的检索词。
func searchQuery(kind emotion.Kind) string {
	if query, ok := searchQueries[kind]; ok {
		return query
	}
	return searchQueries[emotion.Happy]
}

// fetchAccessToken 通过 client-credentials 授权换取短期访问令牌。
func (m *Matcher) fetchAccessToken(ctx context.Context) (string, error) {
	if m.cfg.ClientID == "" || m.cfg.ClientSecret == "" {
		return "", fmt.Errorf("catalog credentials not configured")
	}

	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.Timeout)
		defer cancel()
	}

	body := strings.NewReader("grant_type=client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.TokenURL, body)
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}

	credentials := base64.StdEncoding.EncodeToString([]byte(m.cfg.ClientID + ":" + m.cfg.ClientSecret))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Basic "+credentials)

	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("token request returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token")
	}

	return payload.AccessToken, nil
}

// searchTracks 调用目录检索接口，限定市场并最多返回 10 条候选。
func (m *Matcher) searchTracks(ctx context.Context, token, query string) ([]trackItem, error) {
	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.Timeout)
		defer cancel()
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "track")
	params.Set("market", m.cfg.Market)
	params.Set("limit", fmt.Sprintf("%d", searchLimit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.cfg.APIURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("search returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	return payload.Tracks.Items, nil
}

// pick selects one candidate at random. Candidates carrying an audio preview
// win over those without: if at least one has a preview the pool is
// restricted to them. The random pick is intentional so repeat submissions
// with the same emotion hear different tracks.
func (m *Matcher) pick(items []trackItem) trackItem {
	pool := restrictToPreviews(items)

	m.mu.Lock()
	idx := m.rng.Intn(len(pool))
	m.mu.Unlock()

	return pool[idx]
}

func restrictToPreviews(items []trackItem) []trackItem {
	withPreview := make([]trackItem, 0, len(items))
	for _, item := range items {
		if item.PreviewURL != nil && *item.PreviewURL != "" {
			withPreview = append(withPreview, item)
		}
	}
	if len(withPreview) > 0 {
		return withPreview
	}
	return items
}

type searchResponse struct {
	Tracks struct {
		Items []trackItem `json:"items"`
	} `json:"tracks"`
}

type trackItem struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Artists      []trackArtist     `json:"artists"`
	PreviewURL   *string           `json:"preview_url"`
	ExternalURLs map[string]string `json:"external_urls"`
	Album        struct {
		Images []albumImage `json:"images"`
	} `json:"album"`
}

type trackArtist struct {
	Name string `json:"name"`
}

type albumImage struct {
	URL string `json:"url"`
}

func (t trackItem) toMusicTrack() letter.MusicTrack {
	artist := "Unknown Artist"
	if len(t.Artists) > 0 && t.Artists[0].Name != "" {
		artist = t.Artists[0].Name
	}

	track := letter.MusicTrack{
		ID:          t.ID,
		Name:        t.Name,
		Artist:      artist,
		PreviewURL:  t.PreviewURL,
		ExternalURL: t.ExternalURLs["spotify"],
	}
	if len(t.Album.Images) > 0 {
		track.ImageURL = t.Album.Images[0].URL
	}
	return track
}
