package api

import (
	"context"
	"net/url"
)

func sessionPath(sessionID, suffix string) string {
	return "/api/sessions/" + url.PathEscape(sessionID) + suffix
}

func (c *Client) FetchState(ctx context.Context, sessionID string) (GameStateDTO, error) {
	var out GameStateDTO
	err := c.getJSON(ctx, sessionPath(sessionID, "/state"), nil, &out)
	return out, err
}

func (c *Client) FetchLeaderboard(ctx context.Context, sessionID string) ([]LeaderboardEntryDTO, error) {
	var out []LeaderboardEntryDTO
	err := c.getJSON(ctx, sessionPath(sessionID, "/leaderboard"), nil, &out)
	return out, err
}

func (c *Client) FetchHistory(ctx context.Context, sessionID string) ([]ChatMessageDTO, error) {
	var out []ChatMessageDTO
	err := c.getJSON(ctx, "/api/chat/sessions/"+url.PathEscape(sessionID)+"/messages", nil, &out)
	return out, err
}

type SessionSummaryDTO struct {
	ID           FlexID   `json:"id"`
	Status       string   `json:"status"`
	SessionCode  string   `json:"sessionCode"`
	StartedAt    FlexTime `json:"startedAt"`
	EndedAt      FlexTime `json:"endedAt"`
	PlayerCount  int      `json:"playerCount"`
	ContentID    FlexID   `json:"contentId"`
	ContentTitle string   `json:"contentTitle"`
}

func (c *Client) StartSession(ctx context.Context, sessionID string) (SessionSummaryDTO, error) {
	var out SessionSummaryDTO
	err := c.postJSON(ctx, sessionPath(sessionID, "/start"), nil, nil, &out)
	return out, err
}
