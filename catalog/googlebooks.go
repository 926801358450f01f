package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is the Google Books v1 API root.
const DefaultBaseURL = "https://www.googleapis.com/books/v1"

const maxUpstreamBody = 4 << 20

var (
	// ErrVolumeNotFound is returned by an Upstream that definitely has no such volume.
	ErrVolumeNotFound = errors.New("catalog: volume not found")
	// ErrUpstream wraps every other upstream failure.
	ErrUpstream = errors.New("catalog: upstream failure")
)

// Upstream is the raw external catalog.
type Upstream interface {
	SearchVolumes(ctx context.Context, query string, offset, limit int) (SearchResult, error)
	Volume(ctx context.Context, id string) (BookDetail, error)
}

// GoogleBooks talks to the Google Books volumes API.
type GoogleBooks struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewGoogleBooks returns an Upstream for baseURL (DefaultBaseURL when empty).
func NewGoogleBooks(baseURL, apiKey string, client *http.Client) *GoogleBooks {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &GoogleBooks{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  client,
	}
}

type volumeList struct {
	TotalItems int      `json:"totalItems"`
	Items      []volume `json:"items"`
}

type volume struct {
	ID         string     `json:"id"`
	VolumeInfo volumeInfo `json:"volumeInfo"`
}

type volumeInfo struct {
	Title         string     `json:"title"`
	Authors       []string   `json:"authors"`
	Description   string     `json:"description"`
	PageCount     int        `json:"pageCount"`
	PublishedDate string     `json:"publishedDate"`
	Publisher     string     `json:"publisher"`
	Categories    []string   `json:"categories"`
	ImageLinks    imageLinks `json:"imageLinks"`
}

type imageLinks struct {
	SmallThumbnail string `json:"smallThumbnail"`
	Thumbnail      string `json:"thumbnail"`
}

func (l imageLinks) cover() string {
	link := l.Thumbnail
	if link == "" {
		link = l.SmallThumbnail
	}
	return strings.Replace(link, "http://", "https://", 1)
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (g *GoogleBooks) SearchVolumes(ctx context.Context, query string, offset, limit int) (SearchResult, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("startIndex", strconv.Itoa(offset))
	q.Set("maxResults", strconv.Itoa(limit))
	if g.apiKey != "" {
		q.Set("key", g.apiKey)
	}

	var list volumeList
	if err := g.getJSON(ctx, g.baseURL+"/volumes?"+q.Encode(), &list); err != nil {
		return SearchResult{}, err
	}

	res := SearchResult{
		Items:      make([]SearchItem, 0, len(list.Items)),
		TotalItems: list.TotalItems,
	}
	for _, v := range list.Items {
		if v.ID == "" {
			continue
		}
		res.Items = append(res.Items, SearchItem{
			ID:            v.ID,
			Title:         v.VolumeInfo.Title,
			Authors:       nonEmpty(v.VolumeInfo.Authors),
			CoverImageURL: v.VolumeInfo.ImageLinks.cover(),
			PublishedDate: v.VolumeInfo.PublishedDate,
		})
	}
	return res, nil
}

func (g *GoogleBooks) Volume(ctx context.Context, id string) (BookDetail, error) {
	endpoint := g.baseURL + "/volumes/" + url.PathEscape(id)
	if g.apiKey != "" {
		endpoint += "?" + url.Values{"key": {g.apiKey}}.Encode()
	}

	var v volume
	if err := g.getJSON(ctx, endpoint, &v); err != nil {
		return BookDetail{}, err
	}
	if v.ID == "" {
		return BookDetail{}, fmt.Errorf("%w: volume without id", ErrUpstream)
	}

	info := v.VolumeInfo
	var categories []string
	if info.Categories != nil {
		categories = nonEmpty(info.Categories)
	}
	return BookDetail{
		ID:            id,
		Title:         info.Title,
		Authors:       nonEmpty(info.Authors),
		Description:   info.Description,
		CoverImageURL: info.ImageLinks.cover(),
		PageCount:     info.PageCount,
		PublishedDate: info.PublishedDate,
		Publisher:     info.Publisher,
		Categories:    categories,
	}, nil
}

func (g *GoogleBooks) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body := io.LimitReader(resp.Body, maxUpstreamBody)
	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, body)
		return ErrVolumeNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, body)
		return fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}
	if err := json.NewDecoder(body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrUpstream, err)
	}
	return nil
}
