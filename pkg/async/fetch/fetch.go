package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/vnykmshr/goasync/pkg/async"
	gfcontext "github.com/vnykmshr/goasync/pkg/common/context"
	gferrors "github.com/vnykmshr/goasync/pkg/common/errors"
	"github.com/vnykmshr/goasync/pkg/common/validation"
	"github.com/vnykmshr/goasync/pkg/logx"
	"github.com/vnykmshr/goasync/pkg/metrics"
	"github.com/vnykmshr/goasync/pkg/scheduling/workerpool"
)

// Result is the outcome of a fetch.
type Result int

const (
	// Pending means the fetch has not completed.
	Pending Result = iota
	Success
	Timeout
	Failure
)

func (r Result) String() string {
	switch r {
	case Pending:
		return "pending"
	case Success:
		return "success"
	case Timeout:
		return "timeout"
	case Failure:
		return "failure"
	default:
		return fmt.Sprintf("result(%d)", int(r))
	}
}

// Fetch is an async.Provider performing one HTTP request.
type Fetch struct {
	url       *url.URL
	method    string
	reqHeader http.Header
	reqBody   []byte
	timeout   time.Duration
	client    *http.Client
	pool      workerpool.Pool
	maxBody   int64
	name      string
	log       logx.Logger
	metrics   *metrics.Registry

	mu      sync.Mutex
	ran     bool
	result  Result
	status  int
	header  http.Header
	body    []byte
	err     error
	elapsed time.Duration
	done    chan struct{}
}

var _ async.Provider = (*Fetch)(nil)

// New creates a fetch for rawURL. Nothing is sent until Run.
func New(rawURL string, opts ...Option) (*Fetch, error) {
	if err := validation.ValidateNotEmpty("fetch", "url", rawURL); err != nil {
		return nil, err
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, gferrors.NewValidationError("fetch", "url", rawURL, err.Error())
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, gferrors.NewValidationError("fetch", "url", rawURL, "scheme must be http or https")
	}

	f := &Fetch{
		url:       u,
		method:    http.MethodGet,
		reqHeader: make(http.Header),
		client:    http.DefaultClient,
		maxBody:   DefaultMaxBodyBytes,
		name:      "fetch",
		log:       logx.Nop(),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	if err := validation.ValidateNonNegativeDuration("fetch", "timeout", f.timeout); err != nil {
		return nil, err
	}
	f.log = f.log.With(
		logx.String("component", "fetch"),
		logx.String("fetch", f.name),
		logx.String("url", u.Redacted()),
	)
	return f, nil
}

// RequestHeader returns the request headers. Changes after Run have no
// effect on the request.
func (f *Fetch) RequestHeader() http.Header { return f.reqHeader }

// Run starts the request and retains ctrl until the terminal dispatch.
// With a pool Run never blocks: a full pool fails with
// errors.ErrCapacityExceeded and ctrl is not retained.
func (f *Fetch) Run(ctrl async.DispatchController) error {
	if ctrl == nil {
		return validation.ValidateNotNil("fetch", "dispatch_controller", nil)
	}

	f.mu.Lock()
	if f.ran {
		f.mu.Unlock()
		return fmt.Errorf("fetch %s: run: %w", f.name, gferrors.ErrAlreadyRunning)
	}
	f.ran = true
	header := f.reqHeader.Clone()
	f.mu.Unlock()

	job := func(ctx context.Context) error {
		f.complete(ctrl, f.do(ctx, header))
		return nil
	}

	if f.pool == nil {
		go func() { _ = job(context.Background()) }()
		return nil
	}
	if err := f.pool.TrySubmit(workerpool.TaskFunc(job)); err != nil {
		return gferrors.NewOperationError("fetch", "run", err).WithContext(f.name)
	}
	return nil
}

type outcome struct {
	result  Result
	status  int
	header  http.Header
	body    []byte
	err     error
	elapsed time.Duration
}

func (f *Fetch) do(parent context.Context, header http.Header) outcome {
	start := time.Now()
	ctx, cancel := gfcontext.WithOptionalTimeout(parent, f.timeout)
	defer cancel()

	var body io.Reader
	if f.reqBody != nil {
		body = bytes.NewReader(f.reqBody)
	}
	req, err := http.NewRequestWithContext(ctx, f.method, f.url.String(), body)
	if err != nil {
		return outcome{result: Failure, err: err, elapsed: time.Since(start)}
	}
	req.Header = header

	f.log.Debug("sending request", logx.String("method", f.method))
	resp, err := f.client.Do(req)
	if err != nil {
		return failed(ctx, err, start)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody))
	if err != nil {
		return failed(ctx, err, start)
	}
	return outcome{
		result:  Success,
		status:  resp.StatusCode,
		header:  resp.Header,
		body:    data,
		elapsed: time.Since(start),
	}
}

// failed builds the outcome of a transport error. Timeouts also match
// gferrors.ErrTimeout.
func failed(ctx context.Context, err error, start time.Time) outcome {
	res := classify(ctx, err)
	if res == Timeout && !errors.Is(err, gferrors.ErrTimeout) {
		err = fmt.Errorf("%w: %w", gferrors.ErrTimeout, err)
	}
	return outcome{result: res, err: err, elapsed: time.Since(start)}
}

func classify(ctx context.Context, err error) Result {
	if gfcontext.IsTimedOut(ctx) || errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Timeout
	}
	return Failure
}

// complete publishes the outcome, dispatches once and releases ctrl.
func (f *Fetch) complete(ctrl async.DispatchController, o outcome) {
	f.mu.Lock()
	f.result, f.status, f.header, f.body, f.err, f.elapsed = o.result, o.status, o.header, o.body, o.err, o.elapsed
	f.mu.Unlock()
	close(f.done)

	f.metrics.FetchCompleted(f.name, o.result.String(), o.elapsed)
	f.log.Debug("fetch completed",
		logx.String("result", o.result.String()),
		logx.Int("status", o.status),
		logx.Duration("elapsed", o.elapsed),
		logx.Err(o.err),
		logx.Bool("retryable", gferrors.IsRetryable(o.err)),
	)

	if !ctrl.Dispatch() {
		f.log.Debug("receiver has died, dropping fetch result")
	}
	ctrl.Release()
	f.metrics.ProviderDestroyed("fetch", "completed")
}

// Done is closed once the outcome is available.
func (f *Fetch) Done() <-chan struct{} { return f.done }

// Wait blocks until the fetch completes or ctx is done.
func (f *Fetch) Wait(ctx context.Context) (Result, error) {
	select {
	case <-f.done:
		return f.Result(), nil
	case <-ctx.Done():
		return Pending, ctx.Err()
	}
}

func (f *Fetch) Result() Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result
}

// StatusCode is the response status, or 0 without a response.
func (f *Fetch) StatusCode() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

// Header returns the response headers.
func (f *Fetch) Header() http.Header {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.header
}

// Body returns the response body, truncated to the configured maximum.
func (f *Fetch) Body() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.body
}

// Err returns the transport error behind a Timeout or Failure.
func (f *Fetch) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Elapsed is the time from sending the request to reading the body.
func (f *Fetch) Elapsed() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.elapsed
}

// URL returns the request URL.
func (f *Fetch) URL() *url.URL { return f.url }

// Method returns the request method.
func (f *Fetch) Method() string { return f.method }

// Name returns the label given with WithName.
func (f *Fetch) Name() string { return f.name }
