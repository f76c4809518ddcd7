package server

import "github.com/sig-0/centavo/storage/types"

type ErrorResponse struct {
	Error string `json:"error"`
}

type RunsResponse = types.Page[*types.RunSummary]
