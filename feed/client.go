package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"

	"beatpad/debug"
	"beatpad/sound"
)

var ErrInvalidPage = errors.New("page and pageSize must be at least 1")

// SoundPage is one page of sound descriptors
type SoundPage struct {
	Sounds      []sound.Descriptor `json:"sounds"`
	TotalSounds int                `json:"totalSounds"`
	CurrentPage int                `json:"currentPage"`
	TotalPages  int                `json:"totalPages"`
}

// Client reads sound descriptors from the feed backend
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a client for the backend at baseURL
func NewClient(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{base: strings.TrimRight(baseURL, "/"), http: hc}
}

// ListSounds fetches page (1-based) of the sound list
func (c *Client) ListSounds(ctx context.Context, page, pageSize int) (*SoundPage, error) {
	if page < 1 || pageSize < 1 {
		return nil, fault.Wrap(ErrInvalidPage,
			fmsg.With(fmt.Sprintf("page=%d pageSize=%d", page, pageSize)),
			ftag.With(ftag.InvalidArgument))
	}

	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("pageSize", strconv.Itoa(pageSize))
	u := c.base + "/api/sounds?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fault.Wrap(err, ftag.With(ftag.InvalidArgument))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fault.Wrap(err, fmsg.WithDesc("list sounds", "Could not reach the sound library"))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&body)
		kind := ftag.Internal
		if resp.StatusCode == http.StatusBadRequest {
			kind = ftag.InvalidArgument
		}
		return nil, fault.New(fmt.Sprintf("list sounds: status %d: %s", resp.StatusCode, body.Error),
			fmsg.WithDesc("list sounds", "The sound library returned an error"),
			ftag.With(kind))
	}

	var p SoundPage
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fault.Wrap(err, fmsg.With("decode sound page"))
	}
	debug.Log("feed", "sounds page %d/%d (%d items)", p.CurrentPage, p.TotalPages, len(p.Sounds))
	return &p, nil
}

// AllSounds walks every page and returns all descriptors
func (c *Client) AllSounds(ctx context.Context, pageSize int) ([]sound.Descriptor, error) {
	var all []sound.Descriptor
	for page := 1; ; page++ {
		p, err := c.ListSounds(ctx, page, pageSize)
		if err != nil {
			return all, err
		}
		all = append(all, p.Sounds...)
		if page >= p.TotalPages || len(p.Sounds) == 0 {
			return all, nil
		}
	}
}
