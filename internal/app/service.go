package app

import (
	"context"
	"errors"
	"fmt"
	"log"

	"easel/api/internal/blob"
	"easel/api/internal/cache"
	"easel/api/internal/canvas"
	"easel/api/internal/config"
	"easel/api/internal/search"
	"easel/api/internal/store"
	"easel/api/internal/util"
)

// swapAttempts bounds the optimistic-concurrency retry loop around the
// store's compare-and-swap. Losing the swap this many times in a row means
// the canvas is under heavy concurrent writing and the client should retry.
const swapAttempts = 3

type dataStore interface {
	ListCanvases(context.Context) ([]store.Canvas, error)
	GetCanvas(context.Context, string) (store.Canvas, error)
	InsertCanvas(context.Context, store.Canvas) error
	RenameCanvas(context.Context, string, string) error
	SwapCanvasState(context.Context, string, int64, string, string, string) (bool, error)
	DeleteCanvas(context.Context, string) error
	Ping(ctx context.Context) error
}

type stateCache interface {
	Put(context.Context, string, canvas.State) error
	Get(context.Context, string) (canvas.State, error)
	Invalidate(context.Context, string) error
	Ping(context.Context) error
}

type searchService interface {
	Search(search.Query) search.Response
	IndexCanvas(search.CanvasRecord)
	DeleteCanvas(string)
	ReindexAllFromPG(context.Context)
}

// CanvasSummary is the metadata shape returned by list/get endpoints.
type CanvasSummary struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Version   string `json:"version"`
	Revision  int64  `json:"revision"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}

type Service struct {
	cfg    config.Config
	store  dataStore
	blobs  blob.Store
	cache  stateCache
	search searchService
}

// New creates the canvas service. cache may be nil when Redis is not
// configured; reads then always go to the blob store.
func New(cfg config.Config, dataStore *store.PostgresStore, blobs blob.Store, stateCache *cache.StateCache, searchSvc *search.Service) *Service {
	s := &Service{
		cfg:   cfg,
		store: dataStore,
		blobs: blobs,
	}
	if stateCache != nil {
		s.cache = stateCache
	}
	if searchSvc != nil {
		s.search = searchSvc
	}
	return s
}

// Bootstrap rebuilds the search index from Postgres. Safe to call on every
// start.
func (s *Service) Bootstrap(ctx context.Context) error {
	if s.search != nil {
		s.search.ReindexAllFromPG(ctx)
	}
	return nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) CacheReady(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Ping(ctx)
}

func (s *Service) CreateCanvas(ctx context.Context, title string) (CanvasSummary, error) {
	id := util.NewID("cvs")
	state := canvas.NewEmptyState()
	key := blob.StateKey(id, 0)

	if err := s.blobs.PutState(ctx, key, state); err != nil {
		return CanvasSummary{}, fmt.Errorf("persist initial state: %w", err)
	}

	row := store.Canvas{
		ID:       id,
		Title:    title,
		Version:  state.Version,
		Revision: 0,
		StateKey: key,
	}
	if err := s.store.InsertCanvas(ctx, row); err != nil {
		return CanvasSummary{}, err
	}

	if s.cache != nil {
		if err := s.cache.Put(ctx, id, state); err != nil {
			log.Printf("canvas %s: cache initial state: %v", id, err)
		}
	}
	if s.search != nil {
		s.search.IndexCanvas(search.NewCanvasRecord(id, title, canvas.Data{}))
	}

	summary, err := s.GetCanvas(ctx, id)
	if err != nil {
		return CanvasSummary{ID: id, Title: title, Version: state.Version}, nil
	}
	return summary, nil
}

func (s *Service) ListCanvases(ctx context.Context) ([]CanvasSummary, error) {
	rows, err := s.store.ListCanvases(ctx)
	if err != nil {
		return nil, err
	}
	summaries := make([]CanvasSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, summarize(row))
	}
	return summaries, nil
}

func (s *Service) GetCanvas(ctx context.Context, canvasID string) (CanvasSummary, error) {
	row, err := s.store.GetCanvas(ctx, canvasID)
	if err != nil {
		return CanvasSummary{}, err
	}
	return summarize(row), nil
}

func (s *Service) RenameCanvas(ctx context.Context, canvasID, title string) error {
	if err := s.store.RenameCanvas(ctx, canvasID, title); err != nil {
		return err
	}
	if s.search != nil {
		if state, err := s.GetState(ctx, canvasID); err == nil {
			s.search.IndexCanvas(search.NewCanvasRecord(canvasID, title, canvas.DataFromState(state)))
		}
	}
	return nil
}

// GetState returns a canvas's current state, preferring the cache.
func (s *Service) GetState(ctx context.Context, canvasID string) (canvas.State, error) {
	if s.cache != nil {
		if state, err := s.cache.Get(ctx, canvasID); err == nil {
			return state, nil
		} else if !errors.Is(err, cache.ErrMiss) {
			log.Printf("canvas %s: cache read: %v", canvasID, err)
		}
	}

	row, err := s.store.GetCanvas(ctx, canvasID)
	if err != nil {
		return canvas.State{}, err
	}
	state, err := s.blobs.GetState(ctx, row.StateKey)
	if err != nil {
		return canvas.State{}, fmt.Errorf("load state %s: %w", canvasID, err)
	}

	if s.cache != nil {
		if err := s.cache.Put(ctx, canvasID, state); err != nil {
			log.Printf("canvas %s: cache fill: %v", canvasID, err)
		}
	}
	return state, nil
}

// GetData returns the replayed view of a canvas.
func (s *Service) GetData(ctx context.Context, canvasID string) (canvas.Data, error) {
	state, err := s.GetState(ctx, canvasID)
	if err != nil {
		return canvas.Data{}, err
	}
	return canvas.DataFromState(state), nil
}

// SubmitTransactions upserts a batch of transactions into a canvas's log and
// persists the result. Resubmitting a batch with the same transaction ids is
// harmless: the log upserts by TxID, so network retries never double-apply.
func (s *Service) SubmitTransactions(ctx context.Context, canvasID string, txs []canvas.Transaction) (canvas.State, error) {
	if len(txs) == 0 {
		return s.GetState(ctx, canvasID)
	}
	for _, tx := range txs {
		if tx.TxID == "" {
			return canvas.State{}, badRequest("INVALID_TRANSACTION", "Transaction missing txId")
		}
	}

	return s.swapState(ctx, canvasID, func(current canvas.State) (canvas.State, error) {
		return canvas.UpdateState(current, txs), nil
	})
}

// MergeState reconciles a client's diverged copy of a canvas with the
// server's. Conflicts are returned to the caller unchanged; nothing is
// auto-resolved.
func (s *Service) MergeState(ctx context.Context, canvasID string, clientState canvas.State) (canvas.State, error) {
	return s.swapState(ctx, canvasID, func(current canvas.State) (canvas.State, error) {
		return canvas.MergeStates(current, clientState)
	})
}

/// swapState runs an optimistic read-modify-write cycle: load the current
// state, apply the pure transform, persist a new blob and compare-and-swap
// the store's pointer. A lost swap means another writer got in between; the
// cycle re-reads and re-applies, so the transform must be pure.
func (s *Service) swapState(ctx context.Context, canvasID string, transform func(canvas.State) (canvas.State, error)) (canvas.State, error) {
	for attempt := 0; attempt < swapAttempts; attempt++ {
		row, err := s.store.GetCanvas(ctx, canvasID)
		if err != nil {
			return canvas.State{}, err
		}
		current, err := s.blobs.GetState(ctx, row.StateKey)
		if err != nil {
			return canvas.State{}, fmt.Errorf("load state %s: %w", canvasID, err)
		}

		next, err := transform(current)
		if err != nil {
			return canvas.State{}, err
		}

		nextData := canvas.DataFromState(next)
		nextKey := blob.StateKey(canvasID, row.Revision+1)
		if err := s.blobs.PutState(ctx, nextKey, next); err != nil {
			return canvas.State{}, fmt.Errorf("persist state %s: %w", canvasID, err)
		}

		swapped, err := s.store.SwapCanvasState(ctx, canvasID, row.Revision, next.Version, nextKey, search.ExtractText(nextData))
		if err != nil {
			return canvas.State{}, err
		}
		if !swapped {
			// lost the race; stale blob at nextKey is orphaned and cleaned
			// up by bucket lifecycle rules
			log.Printf("canvas %s: swap lost at revision %d, retrying", canvasID, row.Revision)
			continue
		}

		if s.cache != nil {
			if err := s.cache.Put(ctx, canvasID, next); err != nil {
				log.Printf("canvas %s: cache refresh: %v", canvasID, err)
			}
		}
		if s.search != nil {
			s.search.IndexCanvas(search.NewCanvasRecord(canvasID, row.Title, nextData))
		}
		return next, nil
	}

	return canvas.State{}, conflict("CONCURRENT_WRITE",
		"Canvas is being written concurrently, retry the request", nil)
}

func (s *Service) DeleteCanvas(ctx context.Context, canvasID string) error {
	row, err := s.store.GetCanvas(ctx, canvasID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteCanvas(ctx, canvasID); err != nil {
		return err
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, canvasID); err != nil {
			log.Printf("canvas %s: cache invalidate: %v", canvasID, err)
		}
	}
	if err := s.blobs.DeleteState(ctx, row.StateKey); err != nil {
		log.Printf("canvas %s: delete state blob: %v", canvasID, err)
	}
	if s.search != nil {
		s.search.DeleteCanvas(canvasID)
	}
	return nil
}

func (s *Service) Search(q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(q)
}

func summarize(row store.Canvas) CanvasSummary {
	return CanvasSummary{
		ID:        row.ID,
		Title:     row.Title,
		Version:   row.Version,
		Revision:  row.Revision,
		CreatedAt: row.CreatedAt.UnixMilli(),
		UpdatedAt: row.UpdatedAt.UnixMilli(),
	}
}
