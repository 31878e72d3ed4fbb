package history

import (
	"context"
	"sync"

	"github.com/abdul-hamid-achik/hookline/packages/core/errs"
	"github.com/abdul-hamid-achik/hookline/packages/core/extension"
	"github.com/abdul-hamid-achik/hookline/packages/core/state"
)

const (
	Name     = "history"
	Priority = -90
)

// Recorder lazily opens the store on init and appends one entry per call.
type Recorder struct {
	path string

	mu    sync.Mutex
	store *Store
}

// NewRecorder returns a recorder writing to the database at path.
func NewRecorder(path string) *Recorder {
	return &Recorder{path: path}
}

// NewRecorderWithStore returns a recorder writing to an already open store.
func NewRecorderWithStore(s *Store) *Recorder {
	return &Recorder{path: s.Path(), store: s}
}

// Store returns the open store, or nil before init.
func (r *Recorder) Store() *Store {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store
}

func (r *Recorder) open() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.store != nil {
		return nil
	}
	s, err := Open(r.path)
	if err != nil {
		return err
	}
	r.store = s
	return nil
}

// Close closes the store. Calling it more than once is safe.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.store == nil {
		return nil
	}
	err := r.store.Close()
	r.store = nil
	return err
}

// Extension returns the extension feeding the recorder.
func (r *Recorder) Extension() extension.Extension {
	return extension.Extension{
		Name:     Name,
		Priority: Priority,
		Hooks: extension.Hooks{
			Init: func(_ context.Context, _ extension.InitArgs, _ *extension.Context) error {
				return r.open()
			},
			AfterRequest: func(ctx context.Context, args extension.AfterRequestArgs, ec *extension.Context) error {
				s := r.Store()
				if s == nil {
					return nil
				}
				e := Entry{
					CallID:    args.Call.ID,
					Method:    args.Method,
					Endpoint:  args.Endpoint,
					Status:    args.Status,
					Success:   args.Success,
					Duration:  args.Duration,
					StartedAt: args.Call.Started,
				}
				if args.Err != nil {
					e.ErrorKind = string(errs.KindOf(args.Err))
					e.Error = args.Err.Error()
				}
				id, err := s.Insert(context.WithoutCancel(ctx), e)
				if err != nil {
					return err
				}
				return ec.SetState(func(st state.Snapshot) (state.Snapshot, error) {
					return st.With("lastID", id).With("recorded", st.Int("recorded")+1), nil
				})
			},
		},
		Close: r.Close,
	}
}
