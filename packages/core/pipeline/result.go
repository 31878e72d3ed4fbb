package pipeline

import (
	"time"

	"github.com/tidwall/gjson"

	"github.com/abdul-hamid-achik/hookline/packages/headers"
	"github.com/abdul-hamid-achik/hookline/packages/http"
)

// Result summarizes a successful call.
type Result struct {
	Status     int
	StatusText string
	Headers    headers.Set
	Duration   time.Duration

	// Data is the decoded body.
	Data     any
	Response *http.Response
}

// JSON queries the raw body with a gjson path.
func (r *Result) JSON(path string) gjson.Result {
	return r.Response.JSON(path)
}
