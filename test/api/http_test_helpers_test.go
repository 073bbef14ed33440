package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/velvetlane/matchroom/internal/modules/core"

	"github.com/google/uuid"
)

type responseAssertion func(*http.Response)

func sendRequest[TReq any, TResp any](
	c *http.Client,
	url string,
	method string,
	actorID uuid.UUID,
	req TReq,
	opts ...responseAssertion,
) (TResp, error) {
	var resp TResp

	payload, err := json.Marshal(req)
	if err != nil {
		return resp, err
	}

	httpReq, err := http.NewRequest(method, url, bytes.NewReader(payload))
	if err != nil {
		return resp, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if actorID != uuid.Nil {
		httpReq.Header.Set(core.ActorIDHeader, actorID.String())
	}

	httpResp, err := c.Do(httpReq)
	if err != nil {
		return resp, err
	}

	for _, opt := range opts {
		opt(httpResp)
	}

	if httpResp.ContentLength > 0 {
		defer func() {
			_ = httpResp.Body.Close()
		}()

		responsePayload, err := io.ReadAll(httpResp.Body)
		if err != nil {
			return resp, err
		}

		if err := json.Unmarshal(responsePayload, &resp); err != nil {
			return resp, err
		}
	}

	return resp, err
}
