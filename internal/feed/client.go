package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

// Client busca os jogos de um grupo (temporada) e time no feed
// Limiter segura a frequência de chamadas ao serviço externo
type Client struct {
	BaseURL  string
	GroupID  string
	TeamID   string
	RinkID   string
	Location *time.Location // fuso de GameDate/GameTime
	HTTP     *http.Client
	Limiter  *rate.Limiter
}

// New cria o client com timeout curto e limite de rps requisições por segundo
func New(base, groupID, teamID string, rps float64) *Client {
	loc, err := time.LoadLocation("Europe/Helsinki")
	if err != nil {
		loc = time.UTC
	}
	if rps <= 0 {
		rps = 1
	}
	return &Client{
		BaseURL:  base,
		GroupID:  groupID,
		TeamID:   teamID,
		Location: loc,
		HTTP:     &http.Client{Timeout: 10 * time.Second},
		Limiter:  rate.NewLimiter(rate.Limit(rps), 1),
	}
}

func (c *Client) url() (string, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", fmt.Errorf("feed url: %w", err)
	}
	q := u.Query()
	q.Set("statgroupid", c.GroupID)
	q.Set("select", "")
	q.Set("id", "")
	q.Set("teamid", c.TeamID)
	q.Set("rinkid", c.RinkID)
	q.Set("rmd", "")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Games baixa e decodifica todos os jogos do feed
func (c *Client) Games(ctx context.Context) ([]GameRecord, error) {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	u, err := c.url()
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed request: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return nil, fmt.Errorf("feed http %d", res.StatusCode)
	}

	var env gamesEnvelope
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: decode games: %v", ErrMalformedRecord, err)
	}
	return env.Games, nil
}
