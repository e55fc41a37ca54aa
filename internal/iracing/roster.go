package iracing

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"carnumbers/internal/common"
	"carnumbers/internal/models"

	"go.uber.org/zap"
)

// RosterFetcher returns the current roster snapshot of an external league.
type RosterFetcher interface {
	FetchRoster(ctx context.Context, leagueID int64) ([]models.RosterEntry, error)
}

// MemberLookup resolves a single external member.
type MemberLookup interface {
	LookupMember(ctx context.Context, custID int64) (*Member, error)
}

// LeagueLookup resolves league metadata.
type LeagueLookup interface {
	LookupLeague(ctx context.Context, leagueID int64) (*League, error)
}

type Member struct {
	CustID      int64  `json:"cust_id"`
	DisplayName string `json:"display_name"`
}

type League struct {
	LeagueID   int64  `json:"league_id"`
	LeagueName string `json:"league_name"`
}

// carNumber accepts the API's car_number as a JSON number, a numeric
// string, an empty string or null. Numeric strings are read as integers,
// so "07" and "7" are the same number. Anything else leaves the member
// unassigned and keeps the raw text in invalid.
type carNumber struct {
	value   *int
	invalid string
}

func (n *carNumber) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return nil
	}
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = strings.TrimSpace(unquoted)
	}
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		n.invalid = raw
		return nil
	}
	n.value = &v
	return nil
}

type seasonsResponse struct {
	Seasons []struct {
		SeasonID int64 `json:"season_id"`
	} `json:"seasons"`
}

type standingsResponse struct {
	Standings []struct {
		CustID      int64     `json:"cust_id"`
		DisplayName string    `json:"display_name"`
		CarNumber   carNumber `json:"car_number"`
	} `json:"standings"`
}

// FetchRoster reads the standings of the league's most recent season.
// Any failure is returned as *common.FetchError.
func (c *Client) FetchRoster(ctx context.Context, leagueID int64) ([]models.RosterEntry, error) {
	var seasons seasonsResponse
	if err := c.getData(ctx, "/data/league/seasons", url.Values{"league_id": {strconv.FormatInt(leagueID, 10)}}, &seasons); err != nil {
		return nil, &common.FetchError{LeagueID: leagueID, Reason: "list seasons", Err: err}
	}
	if len(seasons.Seasons) == 0 {
		return nil, &common.FetchError{LeagueID: leagueID, Reason: "league has no seasons"}
	}

	latest := seasons.Seasons[0].SeasonID
	for _, s := range seasons.Seasons[1:] {
		if s.SeasonID > latest {
			latest = s.SeasonID
		}
	}

	var standings standingsResponse
	query := url.Values{
		"league_id": {strconv.FormatInt(leagueID, 10)},
		"season_id": {strconv.FormatInt(latest, 10)},
	}
	if err := c.getData(ctx, "/data/league/season_standings", query, &standings); err != nil {
		return nil, &common.FetchError{LeagueID: leagueID, Reason: fmt.Sprintf("standings for season %d", latest), Err: err}
	}

	roster := make([]models.RosterEntry, 0, len(standings.Standings))
	for _, s := range standings.Standings {
		if s.CustID == 0 {
			continue
		}
		if s.CarNumber.invalid != "" {
			c.logger.Warn("unparsable car number, member left unassigned",
				zap.Int64("league_id", leagueID),
				zap.Int64("cust_id", s.CustID),
				zap.String("car_number", s.CarNumber.invalid))
		}
		roster = append(roster, models.RosterEntry{
			ExternalMemberID: s.CustID,
			DisplayName:      s.DisplayName,
			Number:           s.CarNumber.value,
		})
	}

	c.logger.Debug("fetched league roster",
		zap.Int64("league_id", leagueID),
		zap.Int64("season_id", latest),
		zap.Int("members", len(roster)))
	return roster, nil
}

func (c *Client) LookupMember(ctx context.Context, custID int64) (*Member, error) {
	var resp struct {
		Members []Member `json:"members"`
	}
	if err := c.getData(ctx, "/data/member/get", url.Values{"cust_ids": {strconv.FormatInt(custID, 10)}}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Members) == 0 {
		return nil, common.ErrNotFound
	}

	return &resp.Members[0], nil
}

func (c *Client) LookupLeague(ctx context.Context, leagueID int64) (*League, error) {
	var league League
	if err := c.getData(ctx, "/data/league/get", url.Values{"league_id": {strconv.FormatInt(leagueID, 10)}}, &league); err != nil {
		return nil, err
	}
	if league.LeagueID == 0 {
		return nil, common.ErrNotFound
	}

	return &league, nil
}
