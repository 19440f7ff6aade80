package uploads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dishevent/dishevent-server/logger"
	"github.com/dishevent/dishevent-server/utils"
)

const (
	DefaultUploadTimeout = 60 * time.Second
	DefaultURLTimeout    = 15 * time.Second
)

var (
	ErrUploadTimeout  = errors.New("upload timed out")
	ErrURLTimeout     = errors.New("timed out retrieving object url")
	ErrBucketMismatch = errors.New("unknown bucket")
	ErrEmptyFile      = errors.New("empty file")

	errAborted = errors.New("upload aborted")
)

type State string

const (
	StateIdle      State = "idle"
	StateUploading State = "uploading"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateTimedOut  State = "timed-out"
)

type Progress struct {
	State   State  `json:"state"`
	Percent int    `json:"percent"`
	URL     string `json:"url,omitempty"`
	Err     error  `json:"-"`
}

type Request struct {
	Dir         string
	Name        string // explicit object name; derived from Filename when empty
	Filename    string
	File        io.Reader
	Size        int64
	ContentType string
	OnProgress  func(Progress)
}

type Result struct {
	Path      string `json:"path"`
	URL       string `json:"url"`
	DirectURL string `json:"-"`
}

type Options struct {
	Bucket        string
	PublicURL     string
	UploadTimeout time.Duration
	URLTimeout    time.Duration
}

type Uploader struct {
	store ObjectStore
	opts  Options
	now   func() time.Time
}

func NewUploader(store ObjectStore, opts Options) *Uploader {
	if opts.UploadTimeout <= 0 {
		opts.UploadTimeout = DefaultUploadTimeout
	}
	if opts.URLTimeout <= 0 {
		opts.URLTimeout = DefaultURLTimeout
	}
	return &Uploader{store: store, opts: opts, now: time.Now}
}

func (u *Uploader) Bucket() string {
	return u.opts.Bucket
}

// ObjectPath returns {dir}/{name}, falling back to a timestamped safe name.
func (u *Uploader) ObjectPath(dir, name, filename string) string {
	if name == "" {
		name = utils.SafeName(filename, u.now())
	}
	dir = strings.Trim(path.Clean("/"+dir), "/")
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

// Upload streams the file to the store. The watchdog restarts on every chunk
// read; when it fires the body reader is aborted and ErrUploadTimeout
// returned. No progress is reported after Upload returns.
func (u *Uploader) Upload(ctx context.Context, req Request) (*Result, error) {
	if req.File == nil {
		return nil, ErrEmptyFile
	}
	objectPath := u.ObjectPath(req.Dir, req.Name, req.Filename)

	parent := ctx
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	t := newTracker(req.OnProgress, req.Size)
	watchdog := time.AfterFunc(u.opts.UploadTimeout, func() {
		if t.finish(Progress{State: StateTimedOut, Err: ErrUploadTimeout}) {
			cancel()
		}
	})
	defer watchdog.Stop()

	t.emit(Progress{State: StateUploading})
	body := &progressReader{ctx: ctx, r: req.File, onRead: func(n int) {
		if t.advance(n) {
			watchdog.Reset(u.opts.UploadTimeout)
		}
	}}

	done := make(chan error, 1)
	go func() {
		done <- u.store.Put(ctx, objectPath, body, req.ContentType)
	}()

	select {
	case err := <-done:
		if err != nil {
			if t.timedOut() {
				return nil, ErrUploadTimeout
			}
			t.finish(Progress{State: StateFailed, Err: err})
			return nil, fmt.Errorf("put object: %w", err)
		}
		// the watchdog may have fired between Put returning and here
		if !t.seal() {
			return nil, ErrUploadTimeout
		}
	case <-ctx.Done():
		if t.timedOut() {
			logger.WithContext(ctx).Warn("upload abandoned after inactivity",
				zap.String("path", objectPath),
				zap.Duration("timeout", u.opts.UploadTimeout),
			)
			return nil, ErrUploadTimeout
		}
		t.finish(Progress{State: StateFailed, Err: ctx.Err()})
		return nil, ctx.Err()
	}
	watchdog.Stop()

	direct, err := u.directURL(parent, objectPath)
	if err != nil {
		t.finish(Progress{State: StateFailed, Err: err})
		return nil, err
	}

	res := &Result{
		Path:      objectPath,
		URL:       BuildObjectURL(u.opts.PublicURL, u.opts.Bucket, objectPath),
		DirectURL: direct,
	}
	t.finish(Progress{State: StateCompleted, Percent: 100, URL: res.URL})
	return res, nil
}

// Resolve maps a bucket/path pair from a download URL to the store's URL.
func (u *Uploader) Resolve(ctx context.Context, bucket, objectPath string) (string, error) {
	if bucket != u.opts.Bucket {
		return "", ErrBucketMismatch
	}
	return u.directURL(ctx, objectPath)
}

// Delete removes the object behind a URL built by this uploader. A missing
// object counts as deleted; a timeout yields false without an error.
func (u *Uploader) Delete(ctx context.Context, objectURL string) (bool, error) {
	bucket, objectPath, err := ParseObjectURL(objectURL)
	if err != nil {
		return false, err
	}
	if bucket != u.opts.Bucket {
		return false, ErrBucketMismatch
	}

	ctx, cancel := context.WithTimeout(ctx, u.opts.URLTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- u.store.Remove(ctx, objectPath) }()

	select {
	case err := <-done:
		switch {
		case err == nil, errors.Is(err, ErrObjectNotFound):
			return true, nil
		case errors.Is(err, context.DeadlineExceeded):
			logger.WithContext(ctx).Warn("delete object timed out", zap.String("path", objectPath))
			return false, nil
		}
		return false, fmt.Errorf("remove object: %w", err)
	case <-ctx.Done():
		logger.WithContext(ctx).Warn("delete object timed out",
			zap.String("path", objectPath),
		)
		return false, nil
	}
}

func (u *Uploader) directURL(ctx context.Context, objectPath string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, u.opts.URLTimeout)
	defer cancel()

	type result struct {
		url string
		err error
	}
	done := make(chan result, 1)
	go func() {
		url, err := u.store.URL(ctx, objectPath)
		done <- result{url, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return "", fmt.Errorf("object url: %w", r.err)
		}
		return r.url, nil
	case <-ctx.Done():
		return "", ErrURLTimeout
	}
}

// tracker serialises progress callbacks and drops everything after the
// terminal state.
type tracker struct {
	mu       sync.Mutex
	cb       func(Progress)
	size     int64
	read     int64
	finished bool
	sealed   bool
	state    State
}

func newTracker(cb func(Progress), size int64) *tracker {
	return &tracker{cb: cb, size: size, state: StateIdle}
}

func (t *tracker) emit(p Progress) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finished {
		return
	}
	t.state = p.State
	if t.cb != nil {
		t.cb(p)
	}
}

// advance records n bytes and reports whether the upload is still live.
func (t *tracker) advance(n int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finished {
		return false
	}
	t.read += int64(n)
	pct := 0
	if t.size > 0 {
		pct = int(t.read * 100 / t.size)
		if pct > 99 {
			pct = 99
		}
	}
	if t.cb != nil {
		t.cb(Progress{State: StateUploading, Percent: pct})
	}
	return true
}

// finish moves to a terminal state once; later calls report false.
// A sealed tracker no longer accepts a timeout.
func (t *tracker) finish(p Progress) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finished || (t.sealed && p.State == StateTimedOut) {
		return false
	}
	t.finished = true
	t.state = p.State
	if t.cb != nil {
		t.cb(p)
	}
	return true
}

// seal marks the transfer as stored. It fails if a terminal state won first.
func (t *tracker) seal() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finished {
		return false
	}
	t.sealed = true
	return true
}

func (t *tracker) timedOut() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == StateTimedOut
}

type progressReader struct {
	ctx    context.Context
	r      io.Reader
	onRead func(int)
}

func (p *progressReader) Read(b []byte) (int, error) {
	if p.ctx.Err() != nil {
		return 0, errAborted
	}
	n, err := p.r.Read(b)
	if p.ctx.Err() != nil {
		return 0, errAborted
	}
	if n > 0 {
		p.onRead(n)
	}
	return n, err
}
