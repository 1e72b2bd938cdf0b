package request

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

const maxErrorBody = 64 * 1024

var ErrNullBody = errors.New("null body")

// APIError is returned for any non-2xx answer.
type APIError struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s - status %d", e.Method, e.URL, e.StatusCode)
}

func StatusCode(err error) int {
	var e *APIError

	if errors.As(err, &e) {
		return e.StatusCode
	}

	return 0
}

type Request struct {
	client  *http.Client
	url     string
	method  string
	token   string
	body    io.Reader
	headers map[string]string
	args    map[string]string
	logger  *slog.Logger
	err     error
}

func New(c *http.Client, logger *slog.Logger) *Request {
	if c == nil {
		c = http.DefaultClient
	}

	return &Request{client: c, method: http.MethodGet, logger: logger, headers: make(map[string]string)}
}

func (r *Request) URL(url string) *Request {
	r.url = url

	return r
}

func (r *Request) Post() *Request {
	r.method = http.MethodPost

	return r
}

func (r *Request) Token(token string) *Request {
	r.token = token

	return r
}

func (r *Request) Header(key, value string) *Request {
	r.headers[key] = value

	return r
}

func (r *Request) Args(args map[string]string) *Request {
	r.args = args

	return r
}

func (r *Request) Body(body io.Reader) *Request {
	r.body = body

	return r
}

// JSON encodes obj as the request body. Encoding errors are reported by DoRes.
func (r *Request) JSON(obj any) *Request {
	b, err := json.Marshal(obj)
	if err != nil {
		r.err = fmt.Errorf("marshal body: %w", err)
		return r
	}

	r.headers["Content-Type"] = "application/json"
	r.body = bytes.NewReader(b)

	return r
}

// DoRes executes the request. On a non-2xx status the body is consumed and an *APIError is returned.
func (r *Request) DoRes(ctx context.Context) (*http.Response, error) {
	if r.err != nil {
		return nil, r.err
	}

	req, err := http.NewRequestWithContext(ctx, r.method, r.url, r.body)
	if err != nil {
		return nil, err
	}

	req.Header.Del("User-Agent")

	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	if len(r.args) > 0 {
		q := req.URL.Query()

		for k, v := range r.args {
			q.Add(k, v)
		}

		req.URL.RawQuery = q.Encode()
	}

	res, err := r.client.Do(req)
	if err != nil {
		if r.logger != nil {
			r.logger.Info(fmt.Sprintf("%s %s - error %s", r.method, req.URL.Path, err.Error()))
		}

		return nil, err
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		if r.logger != nil {
			r.logger.Warn(fmt.Sprintf("%s %s - %d", r.method, req.URL.Path, res.StatusCode))
		}

		body, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		_ = res.Body.Close()

		return nil, &APIError{Method: r.method, URL: req.URL.Path, StatusCode: res.StatusCode, Body: body}
	}

	if r.logger != nil {
		r.logger.Debug(fmt.Sprintf("%s %s - %d", r.method, req.URL.Path, res.StatusCode))
	}

	return res, nil
}

func (r *Request) Do(ctx context.Context) (io.ReadCloser, error) {
	res, err := r.DoRes(ctx)
	if err != nil {
		return nil, err
	}

	if res.Body == nil {
		return nil, ErrNullBody
	}

	return res.Body, nil
}

// Exec runs the request and discards the answer body.
func (r *Request) Exec(ctx context.Context) error {
	b, err := r.Do(ctx)
	if err != nil {
		return err
	}

	defer b.Close()

	_, err = io.Copy(io.Discard, b)

	return err
}

func (r *Request) GetJSON(ctx context.Context, obj any) error {
	b, err := r.Do(ctx)
	if err != nil {
		return err
	}

	defer b.Close()

	return json.NewDecoder(b).Decode(obj)
}
