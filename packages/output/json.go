package output

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/hookline/packages/core/errs"
	"github.com/abdul-hamid-achik/hookline/packages/core/pipeline"
)

// JSONCall is the document written for one call
type JSONCall struct {
	Method   string        `json:"method"`
	URL      string        `json:"url"`
	Success  bool          `json:"success"`
	Response *JSONResponse `json:"response,omitempty"`
	Error    *JSONError    `json:"error,omitempty"`
	Time     string        `json:"time"`
}

// JSONResponse represents response details
type JSONResponse struct {
	StatusCode int               `json:"statusCode"`
	Status     string            `json:"status"`
	Headers    map[string]string `json:"headers,omitempty"`
	Duration   float64           `json:"duration"`
	Data       any               `json:"data,omitempty"`
}

// JSONError represents a failed call
type JSONError struct {
	Kind      string        `json:"kind"`
	Message   string        `json:"message"`
	Hook      string        `json:"hook,omitempty"`
	Status    int           `json:"status,omitempty"`
	Failures  []JSONFailure `json:"failures,omitempty"`
	Data      any           `json:"data,omitempty"`
	Extension string        `json:"extension,omitempty"`
}

// JSONFailure is one failed extension handler
type JSONFailure struct {
	Extension string `json:"extension"`
	Error     string `json:"error"`
}

// JSONFormatter formats call outcomes as JSON
type JSONFormatter struct {
	writer io.Writer
	now    func() time.Time
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer: os.Stdout,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

func (f *JSONFormatter) FormatResult(call Call, result *pipeline.Result) error {
	return f.write(JSONCall{
		Method:  call.Method,
		URL:     call.URL,
		Success: true,
		Response: &JSONResponse{
			StatusCode: result.Status,
			Status:     result.StatusText,
			Headers:    result.Headers.Flatten(),
			Duration:   float64(result.Duration.Milliseconds()),
			Data:       jsonData(result.Data),
		},
	})
}

func (f *JSONFormatter) FormatError(call Call, err error) error {
	je := &JSONError{
		Kind:    string(errs.KindOf(err)),
		Message: err.Error(),
	}

	var hookErr *errs.HookExecutionError
	if errors.As(err, &hookErr) {
		je.Hook = hookErr.Hook
		for _, failure := range hookErr.Failures {
			je.Failures = append(je.Failures, JSONFailure{Extension: failure.Extension, Error: failure.Err.Error()})
		}
	} else if e, ok := errs.As(err); ok {
		je.Hook = e.Hook
		je.Status = e.Status
		je.Extension = e.Extension
		je.Data = jsonData(e.Data)
	}

	return f.write(JSONCall{
		Method: call.Method,
		URL:    call.URL,
		Error:  je,
	})
}

func (f *JSONFormatter) write(doc JSONCall) error {
	doc.Time = f.now().Format(time.RFC3339)
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(doc)
}

// jsonData keeps decoded bodies encodable: raw bytes become a string.
func jsonData(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
