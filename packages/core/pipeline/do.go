package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/abdul-hamid-achik/hookline/packages/core/errs"
	"github.com/abdul-hamid-achik/hookline/packages/core/extension"
	"github.com/abdul-hamid-achik/hookline/packages/http"
	"github.com/abdul-hamid-achik/hookline/packages/logging"
)

// errTimeout is the cancellation cause of an expired call timer.
var errTimeout = errors.New("call timeout expired")

// outcome is what a call produced before the closing phases.
type outcome struct {
	result *Result
	status int

	// hook is the phase the failure is attributed to.
	hook extension.HookName
	err  error
}

// Do sends one request through the lifecycle. afterRequest runs whatever the
// outcome; its failure is returned only when the call itself succeeded.
func (c *Client) Do(ctx context.Context, method, endpoint string, opts ...RequestOption) (*Result, error) {
	method = normalizeMethod(method)
	if method == "" {
		return nil, errs.Validation("request method is required")
	}

	call := extension.NewCall()
	ctx = logging.WithCallID(ctx, call.ID)
	rc := c.requestConfig(opts)

	log := c.logger.With().Str("call", call.ID).Str("method", method).Str("endpoint", endpoint).Logger()
	log.Debug().Msg("call started")

	out := c.run(ctx, call, method, endpoint, rc)
	duration := call.Elapsed()

	// The closing phases must run even when the call was cancelled or timed out.
	closing := context.WithoutCancel(ctx)

	if out.err != nil {
		meta := &extension.ErrorMeta{
			Scope:    extension.ScopeCall,
			Call:     call,
			Hook:     out.hook,
			Method:   method,
			Endpoint: endpoint,
			Config:   rc.Clone(),
			Duration: duration,
		}
		if err := c.scheduler.Execute(closing, extension.ErrorArgs{Err: out.err, Meta: meta}); err != nil {
			log.Warn().Err(err).Msg("onError hooks failed")
		}
	}

	after := extension.AfterRequestArgs{
		Call:     call,
		Method:   method,
		Endpoint: endpoint,
		Config:   rc,
		Duration: duration,
		Success:  out.err == nil,
		Status:   out.status,
		Err:      out.err,
	}
	afterErr := c.scheduler.Execute(closing, after)

	if out.err != nil {
		if afterErr != nil {
			log.Warn().Err(afterErr).Msg("afterRequest hooks failed")
		}
		log.Debug().Err(out.err).Dur("duration", duration).Msg("call failed")
		return nil, out.err
	}
	if afterErr != nil {
		return nil, afterErr
	}

	log.Debug().Int("status", out.status).Dur("duration", duration).Msg("call finished")
	return out.result, nil
}

func (c *Client) run(ctx context.Context, call extension.Call, method, endpoint string, rc *extension.RequestConfig) outcome {
	if err := c.scheduler.Execute(ctx, extension.BeforeRequestArgs{
		Call:     call,
		Method:   method,
		Endpoint: endpoint,
		Config:   rc,
	}); err != nil {
		return outcome{hook: extension.HookBeforeRequest, err: err}
	}

	req, err := c.buildRequest(method, endpoint, rc)
	if err != nil {
		return outcome{hook: extension.HookOnRequest, err: err}
	}

	if err := c.scheduler.Execute(ctx, extension.OnRequestArgs{Call: call, Request: req}); err != nil {
		return outcome{hook: extension.HookOnRequest, err: err}
	}

	resp, err := c.send(ctx, req)
	if err != nil {
		return outcome{hook: extension.HookBeforeResponse, err: err}
	}

	if err := c.scheduler.Execute(ctx, extension.BeforeResponseArgs{
		Call:     call,
		Response: resp,
		Duration: call.Elapsed(),
	}); err != nil {
		return outcome{status: resp.StatusCode, hook: extension.HookBeforeResponse, err: err}
	}

	data, err := c.codec.Decode(resp)
	if err != nil {
		if _, ok := errs.As(err); !ok {
			err = errs.Parse(resp.ContentType(), err)
		}
		return outcome{status: resp.StatusCode, hook: extension.HookOnResponse, err: err}
	}

	valid := rc.ValidateStatus
	if valid == nil {
		valid = func(status int) bool { return status >= 200 && status < 300 }
	}
	if !valid(resp.StatusCode) {
		return outcome{
			status: resp.StatusCode,
			hook:   extension.HookOnResponse,
			err:    errs.Request(resp.StatusCode, resp.Status, data),
		}
	}

	if err := c.scheduler.Execute(ctx, extension.OnResponseArgs{Call: call, Response: resp, Data: data}); err != nil {
		return outcome{status: resp.StatusCode, hook: extension.HookOnResponse, err: err}
	}

	result := &Result{
		Status:     resp.StatusCode,
		StatusText: resp.Status,
		Headers:    resp.Headers.Clone(),
		Duration:   call.Elapsed(),
		Data:       data,
		Response:   resp,
	}

	if err := c.scheduler.Execute(ctx, extension.AfterSuccessArgs{
		Call:     call,
		Data:     data,
		Response: resp,
		Duration: result.Duration,
	}); err != nil {
		return outcome{status: resp.StatusCode, hook: extension.HookAfterSuccess, err: err}
	}

	return outcome{result: result, status: resp.StatusCode}
}

// buildRequest finalizes the URL, body and headers after beforeRequest.
func (c *Client) buildRequest(method, endpoint string, rc *extension.RequestConfig) (*http.Request, error) {
	target, err := c.urls.Build(rc.BaseURL, endpoint, rc.Params)
	if err != nil {
		return nil, errs.Wrap(errs.KindValidation, err, "invalid request URL")
	}

	body, contentType, err := http.EncodeBody(rc.Body)
	if err != nil {
		return nil, errs.Wrap(errs.KindValidation, err, "invalid request body")
	}

	req := http.NewRequest(method, target)
	if rc.Headers != nil {
		req.Headers = rc.Headers.Clone()
	}
	if contentType != "" && !req.Headers.Has("Content-Type") {
		req.SetHeader("Content-Type", contentType)
	}
	req.SetBody(body)
	req.SetTimeout(rc.Timeout)
	return req, nil
}

// send runs the transport under the call timer and classifies its failure.
func (c *Client) send(ctx context.Context, req *http.Request) (*http.Response, error) {
	sendCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeoutCause(ctx, req.Timeout, errTimeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.transport.Send(sendCtx, req)
	if err != nil {
		switch {
		case errors.Is(context.Cause(sendCtx), errTimeout):
			return nil, errs.Timeout(req.Timeout, err)
		case ctx.Err() != nil:
			return nil, errs.Aborted(context.Cause(ctx))
		case errors.Is(err, http.ErrAborted):
			return nil, errs.Aborted(err)
		default:
			if e, ok := errs.As(err); ok {
				return nil, e
			}
			return nil, errs.Transport(err)
		}
	}
	if resp == nil {
		return nil, errs.Transport(errors.New("transport returned no response"))
	}
	if resp.Duration == 0 {
		resp.Duration = time.Since(start)
	}
	return resp, nil
}
