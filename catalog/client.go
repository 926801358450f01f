package catalog

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/shelfauth/cacheaside"
	"github.com/MrEthical07/shelfauth/internal/rate"
	"github.com/MrEthical07/shelfauth/kv"
	"github.com/rs/zerolog"
)

const (
	DefaultSearchTTL = 24 * time.Hour
	DefaultBookTTL   = 7 * 24 * time.Hour

	DefaultLimit = 20
	MaxLimit     = 40
)

var (
	// ErrEmptyQuery is the only error Search returns: the caller sent a blank query.
	ErrEmptyQuery = errors.New("catalog: search query is required")
	// ErrBudgetExhausted marks a lookup skipped because the upstream call budget is spent.
	ErrBudgetExhausted = errors.New("catalog: upstream call budget exhausted")
)

// Budget caps upstream calls. A nil Budget means unlimited.
type Budget interface {
	AllowCatalogCall(ctx context.Context) error
}

// Observer receives cache outcomes and absorbed upstream failures.
type Observer interface {
	cacheaside.Observer
	UpstreamFailed(op string, err error)
}

type nopObserver struct {
	cacheaside.NopObserver
}

func (nopObserver) UpstreamFailed(string, error) {}

// Config tunes a Client.
type Config struct {
	SearchTTL time.Duration
	BookTTL   time.Duration
	Budget    Budget
	Observer  Observer
	Logger    zerolog.Logger
}

// Client is the cached catalog used by request handlers.
type Client struct {
	upstream  Upstream
	searches  *cacheaside.Cache[SearchResult]
	books     *cacheaside.Cache[bookEntry]
	searchTTL time.Duration
	bookTTL   time.Duration
	budget    Budget
	observer  Observer
	logger    zerolog.Logger
}

func NewClient(store kv.Store, upstream Upstream, cfg Config) *Client {
	if cfg.SearchTTL <= 0 {
		cfg.SearchTTL = DefaultSearchTTL
	}
	if cfg.BookTTL <= 0 {
		cfg.BookTTL = DefaultBookTTL
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}
	opts := []cacheaside.Option{
		cacheaside.WithObserver(cfg.Observer),
		cacheaside.WithLogger(cfg.Logger),
	}
	return &Client{
		upstream:  upstream,
		searches:  cacheaside.New[SearchResult](store, opts...),
		books:     cacheaside.New[bookEntry](store, opts...),
		searchTTL: cfg.SearchTTL,
		bookTTL:   cfg.BookTTL,
		budget:    cfg.Budget,
		observer:  cfg.Observer,
		logger:    cfg.Logger,
	}
}

// NormalizePage clamps paging parameters the way Search applies them.
func NormalizePage(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 || limit > MaxLimit {
		limit = DefaultLimit
	}
	return offset, limit
}

// SearchKey returns the cache key for one search page.
func SearchKey(query string, offset, limit int) string {
	return "search:" + query + ":" + strconv.Itoa(offset) + ":" + strconv.Itoa(limit)
}

// BookKey returns the cache key for one volume.
func BookKey(id string) string {
	return "book:" + id
}

// Search returns one page of results for query. Upstream failures yield an
// empty page, never an error.
func (c *Client) Search(ctx context.Context, query string, offset, limit int) (SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return SearchResult{}, ErrEmptyQuery
	}
	offset, limit = NormalizePage(offset, limit)

	res, err := c.searches.GetOrCompute(ctx, SearchKey(query, offset, limit), c.searchTTL, func(ctx context.Context) (SearchResult, error) {
		if err := c.spend(ctx); err != nil {
			return SearchResult{}, err
		}
		return c.upstream.SearchVolumes(ctx, query, offset, limit)
	})
	if err != nil {
		c.observer.UpstreamFailed("search", err)
		c.logger.Warn().Err(err).Str("query", query).Int("offset", offset).Int("limit", limit).Msg("catalog.upstream_failed")
		return emptySearch(), nil
	}
	if res.Items == nil {
		res.Items = []SearchItem{}
	}
	return res, nil
}

// Book returns the detail record for id and whether it exists.
func (c *Client) Book(ctx context.Context, id string) (BookDetail, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return BookDetail{}, false
	}

	entry, err := c.books.GetOrCompute(ctx, BookKey(id), c.bookTTL, func(ctx context.Context) (bookEntry, error) {
		if err := c.spend(ctx); err != nil {
			return bookEntry{}, err
		}
		book, err := c.upstream.Volume(ctx, id)
		if err != nil {
			if errors.Is(err, ErrVolumeNotFound) {
				return bookEntry{Found: false}, nil
			}
			return bookEntry{}, err
		}
		return bookEntry{Found: true, Book: &book}, nil
	})
	if err != nil {
		c.observer.UpstreamFailed("book", err)
		c.logger.Warn().Err(err).Str("id", id).Msg("catalog.upstream_failed")
		return BookDetail{}, false
	}
	if !entry.Found || entry.Book == nil {
		return BookDetail{}, false
	}
	return *entry.Book, true
}

func (c *Client) spend(ctx context.Context) error {
	if c.budget == nil {
		return nil
	}
	err := c.budget.AllowCatalogCall(ctx)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		return ErrBudgetExhausted
	default:
		// counter failures fail open
		c.logger.Warn().Err(err).Msg("catalog.budget_unavailable")
		return nil
	}
}
