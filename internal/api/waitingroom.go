package api

import (
	"context"
	"net/url"
	"strings"
)

type WaitingStudent struct {
	ID             FlexID `json:"id"`
	Email          string `json:"email"`
	FirstName      string `json:"fname"`
	LastName       string `json:"lname"`
	Role           string `json:"role"`
	ProfilePicture string `json:"profilePicture"`
}

func (w WaitingStudent) DisplayName() string {
	return strings.TrimSpace(w.FirstName + " " + w.LastName)
}

func waitingRoomPath(contentID, suffix string) string {
	return "/api/waiting-room/content/" + url.PathEscape(contentID) + suffix
}

func (c *Client) WaitingStudents(ctx context.Context, contentID string) ([]WaitingStudent, error) {
	var out []WaitingStudent
	err := c.getJSON(ctx, waitingRoomPath(contentID, "/students"), nil, &out)
	return out, err
}

func (c *Client) JoinWaitingRoom(ctx context.Context, contentID string) error {
	return c.postJSON(ctx, waitingRoomPath(contentID, "/join"), nil, nil, nil)
}

// StartWaitingRoom groups the waiting students into sessions.
func (c *Client) StartWaitingRoom(ctx context.Context, contentID string) ([]SessionSummaryDTO, error) {
	var out []SessionSummaryDTO
	err := c.postJSON(ctx, waitingRoomPath(contentID, "/start"), nil, nil, &out)
	return out, err
}
