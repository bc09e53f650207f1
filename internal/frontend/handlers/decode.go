package handlers

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/cory-johannsen/hilo/internal/gameserver"
)

// SessionHeader carries the caller's session id on every request.
const SessionHeader = "X-Session-ID"

const maxBodyBytes = 64 << 10

// sessionID reads the session id from SessionHeader, falling back to the
// session_id query parameter for clients that cannot set headers.
//
// Postcondition: Returns 0 when absent, not a positive integer, or math.MaxInt64.
func sessionID(r *http.Request) int64 {
	raw := strings.TrimSpace(r.Header.Get(SessionHeader))
	if raw == "" {
		raw = r.URL.Query().Get("session_id")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 || id == math.MaxInt64 {
		return 0
	}
	return id
}

// readBody parses the request body for field lookup. Missing keys read as zero
// values; an empty body is treated as an empty object.
//
// Postcondition: Returns gameserver.ErrInvalidInput for a non-empty body that is not a JSON object.
func readBody(r *http.Request) (gjson.Result, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("reading body: %w", gameserver.ErrInvalidInput)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return gjson.Parse("{}"), nil
	}
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, fmt.Errorf("malformed JSON body: %w", gameserver.ErrInvalidInput)
	}
	body := gjson.ParseBytes(data)
	if !body.IsObject() {
		return gjson.Result{}, fmt.Errorf("body is not a JSON object: %w", gameserver.ErrInvalidInput)
	}
	return body, nil
}
