package hubble

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/avast/retry-go/v4"

	"kinoliba/models"
)

const (
	searchPath    = "/search"
	infoPath      = "/info"
	similarsPath  = "/similars"
	watchLookPath = "/lordfilm/search"

	requestTimeout = 10 * time.Second
	retryAttempts  = 2
)

// Client talks to the hubble content API: free-text search, detailed info,
// similar titles, and the best-effort watch-link lookup.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a hubble API client rooted at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

// namedPayload is a {name: ...} element as the API returns genres,
// countries, and cast.
type namedPayload struct {
	Name string `json:"name"`
}

// contentPayload is the wire form of a title or person. Search stubs and
// detailed info responses share it; detail responses just fill more fields.
type contentPayload struct {
	ID       int64  `json:"id"`
	TypeName string `json:"typename"` // film | tvseries | person

	TitleRussian  string `json:"title_russian"`
	TitleOriginal string `json:"title_original"`
	Name          string `json:"name"` // persons only

	ProductionYear int `json:"production_year"`
	ReleaseStart   int `json:"release_start"`
	ReleaseEnd     int `json:"release_end"`

	Genres    []namedPayload `json:"genres"`
	Countries []namedPayload `json:"countries"`
	Cast      []namedPayload `json:"cast"`

	RatingKinopoisk float64 `json:"rating_kinopoisk_value"`
	RatingIMDB      float64 `json:"rating_imdb_value"`

	Description string `json:"description"`
	Duration    int    `json:"duration"` // minutes

	PosterURL    string `json:"kinopoisk_poster_url"`
	PosterURLAlt string `json:"poster_url"`
	KinopoiskURL string `json:"url"`
}

type searchResponse struct {
	Match  *contentPayload  `json:"match"`
	Movies []contentPayload `json:"movies"`
}

type watchLookupResponse struct {
	Best struct {
		WatchURL string `json:"watch_url"`
	} `json:"best"`
}

func kindFromTypeName(typeName string) models.Kind {
	switch typeName {
	case "tvseries":
		return models.KindSeries
	case "person":
		return models.KindPerson
	default:
		return models.KindFilm
	}
}

func typeNameFromKind(kind models.Kind) string {
	switch kind {
	case models.KindSeries:
		return "tvseries"
	case models.KindPerson:
		return "person"
	default:
		return "film"
	}
}

func (p contentPayload) toRecord() models.ContentRecord {
	rec := models.ContentRecord{
		ContentRef: models.ContentRef{
			Kind: kindFromTypeName(p.TypeName),
			ID:   strconv.FormatInt(p.ID, 10),
		},
		Title:          p.TitleRussian,
		OriginalTitle:  p.TitleOriginal,
		Year:           p.ProductionYear,
		ReleaseStart:   p.ReleaseStart,
		ReleaseEnd:     p.ReleaseEnd,
		KinoRating:     p.RatingKinopoisk,
		IMDBRating:     p.RatingIMDB,
		Synopsis:       p.Description,
		RuntimeMinutes: p.Duration,
		PosterURL:      p.PosterURL,
		PageURL:        p.KinopoiskURL,
	}
	if rec.Title == "" {
		rec.Title = p.Name
	}
	if rec.PosterURL == "" {
		rec.PosterURL = p.PosterURLAlt
	}
	for _, g := range p.Genres {
		rec.Genres = append(rec.Genres, g.Name)
	}
	for _, c := range p.Countries {
		rec.Countries = append(rec.Countries, c.Name)
	}
	for _, a := range p.Cast {
		rec.Cast = append(rec.Cast, a.Name)
	}
	return rec
}

// Search runs a free-text query and returns the best match plus ranked
// alternatives. Transport errors are returned to the caller; an empty
// result set is not an error.
func (c *Client) Search(ctx context.Context, query string) (models.SearchResult, error) {
	var payload searchResponse
	err := c.getJSON(ctx, searchPath, url.Values{"search_query": {query}}, &payload)
	if err != nil {
		return models.SearchResult{}, fmt.Errorf("hubble search: %w", err)
	}

	var result models.SearchResult
	if payload.Match != nil {
		rec := payload.Match.toRecord()
		result.Primary = &rec
	}
	for _, m := range payload.Movies {
		result.Alternatives = append(result.Alternatives, m.toRecord())
	}
	return result, nil
}

// Info fetches the detailed record for a film or series reference.
func (c *Client) Info(ctx context.Context, ref models.ContentRef) (models.ContentRecord, error) {
	var payload contentPayload
	params := url.Values{
		"content_type": {typeNameFromKind(ref.Kind)},
		"id":           {ref.ID},
	}
	if err := c.getJSON(ctx, infoPath, params, &payload); err != nil {
		return models.ContentRecord{}, fmt.Errorf("hubble info %s: %w", ref.Key(), err)
	}
	if payload.ID == 0 {
		return models.ContentRecord{}, fmt.Errorf("hubble info %s: empty response", ref.Key())
	}
	return payload.toRecord(), nil
}

// Similars fetches titles similar to the given reference.
func (c *Client) Similars(ctx context.Context, ref models.ContentRef) ([]models.ContentRecord, error) {
	var payload []contentPayload
	params := url.Values{
		"content_type": {typeNameFromKind(ref.Kind)},
		"id":           {ref.ID},
	}
	if err := c.getJSON(ctx, similarsPath, params, &payload); err != nil {
		return nil, fmt.Errorf("hubble similars %s: %w", ref.Key(), err)
	}
	out := make([]models.ContentRecord, 0, len(payload))
	for _, p := range payload {
		out = append(out, p.toRecord())
	}
	return out, nil
}

// LookupWatchURL resolves a playable link for a title. A miss returns an
// empty string with no error; only transport failures are errors.
func (c *Client) LookupWatchURL(ctx context.Context, title string) (string, error) {
	var payload watchLookupResponse
	if err := c.getJSON(ctx, watchLookPath, url.Values{"search_query": {title}}, &payload); err != nil {
		return "", fmt.Errorf("hubble watch lookup %q: %w", title, err)
	}
	return payload.Best.WatchURL, nil
}

// getJSON performs a GET with bounded retries and decodes the JSON body
// into target. Non-200 responses with a body are treated as empty results
// upstream-style only for 404; everything else is an error.
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, target any) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("Accept", "application/json")

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			switch {
			case resp.StatusCode == http.StatusNotFound:
				// Upstream signals "nothing found" with 404; leave target zero.
				io.Copy(io.Discard, resp.Body)
				return nil
			case resp.StatusCode != http.StatusOK:
				io.Copy(io.Discard, resp.Body)
				return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
			}

			if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
				return retry.Unrecoverable(fmt.Errorf("decode response from %s: %w", path, err))
			}
			return nil
		},
		retry.Attempts(retryAttempts),
		retry.Context(ctx),
		retry.Delay(200*time.Millisecond),
		retry.LastErrorOnly(true),
	)
}
