package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/tmc/langchaingo/tools"
)

// Observation texts returned by WikipediaSearch.
const (
	WikipediaEmptyQuery = "No hay consulta para buscar"
	WikipediaNotFound   = "No se encontró ningún resultado en Wikipedia."
	wikipediaAmbiguous  = "Tu consulta es ambigua. Tal vez quisiste decir: "
	wikipediaError      = "Error al buscar en Wikipedia: "
)

const maxDisambiguationOptions = 5

// WikipediaSearch looks a topic up in Wikipedia and returns the first
// sentences of the best matching article.
type WikipediaSearch struct {
	BaseURL   string
	Language  string
	Sentences int
	UserAgent string

	client *http.Client
	policy *bluemonday.Policy
}

var _ tools.Tool = (*WikipediaSearch)(nil)

type WikipediaOption func(*WikipediaSearch)

// WithWikipediaBaseURL sets the api.php endpoint. It overrides Language.
func WithWikipediaBaseURL(baseURL string) WikipediaOption {
	return func(w *WikipediaSearch) {
		w.BaseURL = baseURL
	}
}

// WithWikipediaLanguage sets the wiki language code (e.g., "es", "en").
func WithWikipediaLanguage(lang string) WikipediaOption {
	return func(w *WikipediaSearch) {
		w.Language = lang
	}
}

// WithWikipediaSentences sets how many sentences of the intro are returned.
func WithWikipediaSentences(n int) WikipediaOption {
	return func(w *WikipediaSearch) {
		if n < 1 {
			n = 1
		}
		if n > 10 {
			n = 10
		}
		w.Sentences = n
	}
}

// WithWikipediaUserAgent sets the User-Agent header. Wikimedia rejects
// requests without one.
func WithWikipediaUserAgent(ua string) WikipediaOption {
	return func(w *WikipediaSearch) {
		w.UserAgent = ua
	}
}

// WithWikipediaHTTPClient sets the HTTP client.
func WithWikipediaHTTPClient(c *http.Client) WikipediaOption {
	return func(w *WikipediaSearch) {
		w.client = c
	}
}

// NewWikipediaSearch creates a new WikipediaSearch tool.
func NewWikipediaSearch(opts ...WikipediaOption) *WikipediaSearch {
	w := &WikipediaSearch{
		Language:  "es",
		Sentences: 5,
		UserAgent: "socrates-agent/1.0",
		client:    &http.Client{Timeout: 15 * time.Second},
		policy:    bluemonday.StrictPolicy(),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.BaseURL == "" {
		w.BaseURL = fmt.Sprintf("https://%s.wikipedia.org/w/api.php", w.Language)
	}
	return w
}

// Name returns the name of the tool.
func (w *WikipediaSearch) Name() string {
	return ActionWikipedia
}

// Description returns the description of the tool.
func (w *WikipediaSearch) Description() string {
	return "Busca un tema en Wikipedia y devuelve un resumen breve. " +
		"Útil para hechos generales de historia, ciencia o política. " +
		"La entrada es el término a buscar."
}

// Call executes the search. Lookup failures are reported in the returned
// text, never as an error.
func (w *WikipediaSearch) Call(ctx context.Context, input string) (string, error) {
	query := strings.TrimSpace(input)
	if query == "" {
		return WikipediaEmptyQuery, nil
	}

	title, err := w.searchTitle(ctx, query)
	if err != nil {
		return wikipediaError + err.Error(), nil
	}
	if title == "" {
		return WikipediaNotFound, nil
	}

	page, err := w.fetchPage(ctx, title)
	if err != nil {
		return wikipediaError + err.Error(), nil
	}
	switch {
	case page == nil:
		return WikipediaNotFound, nil
	case page.isDisambiguation():
		options, err := w.links(ctx, page.Title)
		if err != nil {
			return wikipediaError + err.Error(), nil
		}
		return wikipediaAmbiguous + strings.Join(options, ", "), nil
	}

	extract := w.clean(page.Extract)
	if extract == "" {
		return WikipediaNotFound, nil
	}
	return extract, nil
}

type wikiPage struct {
	PageID    int               `json:"pageid"`
	Title     string            `json:"title"`
	Missing   *string           `json:"missing,omitempty"`
	Extract   string            `json:"extract"`
	PageProps map[string]string `json:"pageprops"`
	Links     []struct {
		Title string `json:"title"`
	} `json:"links"`
}

func (p *wikiPage) isDisambiguation() bool {
	_, ok := p.PageProps["disambiguation"]
	return ok
}

type wikiResponse struct {
	Query struct {
		Search []struct {
			Title string `json:"title"`
		} `json:"search"`
		Pages map[string]*wikiPage `json:"pages"`
	} `json:"query"`
	Error *struct {
		Code string `json:"code"`
		Info string `json:"info"`
	} `json:"error,omitempty"`
}

func (w *WikipediaSearch) searchTitle(ctx context.Context, query string) (string, error) {
	params := url.Values{}
	params.Set("list", "search")
	params.Set("srsearch", query)
	params.Set("srlimit", "1")

	resp, err := w.get(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Query.Search) == 0 {
		return "", nil
	}
	return resp.Query.Search[0].Title, nil
}

func (w *WikipediaSearch) fetchPage(ctx context.Context, title string) (*wikiPage, error) {
	params := url.Values{}
	params.Set("prop", "extracts|pageprops")
	params.Set("titles", title)
	params.Set("exintro", "1")
	params.Set("explaintext", "1")
	params.Set("exsentences", strconv.Itoa(w.Sentences))
	params.Set("redirects", "1")

	resp, err := w.get(ctx, params)
	if err != nil {
		return nil, err
	}
	for id, page := range resp.Query.Pages {
		if id == "-1" || page.Missing != nil {
			continue
		}
		return page, nil
	}
	return nil, nil
}

func (w *WikipediaSearch) links(ctx context.Context, title string) ([]string, error) {
	params := url.Values{}
	params.Set("prop", "links")
	params.Set("titles", title)
	params.Set("plnamespace", "0")
	params.Set("pllimit", strconv.Itoa(maxDisambiguationOptions))

	resp, err := w.get(ctx, params)
	if err != nil {
		return nil, err
	}

	var options []string
	for _, page := range resp.Query.Pages {
		for _, l := range page.Links {
			options = append(options, l.Title)
			if len(options) == maxDisambiguationOptions {
				return options, nil
			}
		}
	}
	return options, nil
}

func (w *WikipediaSearch) get(ctx context.Context, params url.Values) (*wikiResponse, error) {
	params.Set("action", "query")
	params.Set("format", "json")
	params.Set("utf8", "1")

	reqURL := fmt.Sprintf("%s?%s", w.BaseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", w.UserAgent)

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("wikipedia api returned status: %d", resp.StatusCode)
	}

	var result wikiResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("%s: %s", result.Error.Code, result.Error.Info)
	}
	return &result, nil
}

// clean strips any markup left in an extract.
func (w *WikipediaSearch) clean(s string) string {
	return strings.TrimSpace(html.UnescapeString(w.policy.Sanitize(s)))
}
