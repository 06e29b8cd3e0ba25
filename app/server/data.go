package server

import "stagetalk/app/service/conversation"

type callRequest struct {
	Prompt       string                      `json:"prompt" validate:"required"`
	Participants []conversation.Participant  `json:"participants" validate:"dive"`
	History      []conversation.HistoryEntry `json:"history"`
	// Optional provider switch for this and following turns
	Provider string `json:"provider"`
}

type callResponse struct {
	Response   string `json:"response"`
	Speaker    string `json:"speaker"`
	Message    string `json:"message"`
	Provider   string `json:"provider"`
	QuotaUsed  int    `json:"quotaUsed"`
	QuotaLimit int    `json:"quotaLimit"`
}

type providerRequest struct {
	Provider string `json:"provider" validate:"required"`
}

type startRequest struct {
	Scene        string                     `json:"scene" validate:"required"`
	Participants []conversation.Participant `json:"participants" validate:"required,min=1,dive"`
	Turns        int                        `json:"turns"`
}

type errorResponse struct {
	Error string `json:"error"`
}
