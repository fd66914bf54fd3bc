package api

import (
	"context"
	"encoding/json"
	"net/url"
)

func comprehensionPath(sessionID, userID, suffix string) string {
	return "/api/teacher-feedback/comprehension/" + url.PathEscape(sessionID) + "/student/" + url.PathEscape(userID) + suffix
}

// FetchQuestions returns the generated questions. Servers answer either with a
// bare list or with {"questions": [...]}.
func (c *Client) FetchQuestions(ctx context.Context, sessionID, userID string) ([]QuestionDTO, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, comprehensionPath(sessionID, userID, "/questions"), nil, &raw); err != nil {
		return nil, err
	}
	var list []QuestionDTO
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var wrapped struct {
		Questions []QuestionDTO `json:"questions"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.Questions, nil
}

func (c *Client) SubmitAnswers(ctx context.Context, sessionID, userID string, body ComprehensionSubmission) (ComprehensionResultDTO, error) {
	var out ComprehensionResultDTO
	err := c.postJSON(ctx, comprehensionPath(sessionID, userID, "/answers"), nil, body, &out)
	return out, err
}
