package weather

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const LookupCompletedEvent = "lookup.completed"

type Fetcher interface {
	FetchWeather(ctx context.Context, query string) (*WeatherModel, error)
}

type LookupStorage interface {
	Save(ctx context.Context, lookup *Lookup) error
	Get(ctx context.Context, id string) (*Lookup, error)
	Recent(ctx context.Context, limit int) ([]*Lookup, error)
	RemoveExpired(ctx context.Context, before time.Time) error
}

type Publisher interface {
	Publish(routingKey string, data interface{}) error
}

type Service struct {
	fetcher   Fetcher
	storage   LookupStorage
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time
}

type ServiceOption func(*Service)

func WithStorage(storage LookupStorage) ServiceOption {
	return func(s *Service) {
		if storage != nil {
			s.storage = storage
		}
	}
}

func WithPublisher(publisher Publisher) ServiceOption {
	return func(s *Service) {
		if publisher != nil {
			s.publisher = publisher
		}
	}
}

func NewService(logger *zap.Logger, fetcher Fetcher, opts ...ServiceOption) *Service {
	s := &Service{
		fetcher:   fetcher,
		storage:   NopStorage{},
		publisher: NopPublisher{},
		logger:    logger,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Lookup fetches the weather for the query. On failure the returned error is
// always an *ErrorData and the model is nil.
func (s *Service) Lookup(ctx context.Context, query string) (*WeatherModel, error) {
	return s.run(ctx, uuid.NewString(), query)
}

// Refresh re-runs a stored lookup and overwrites it under the same id.
func (s *Service) Refresh(ctx context.Context, lookup *Lookup) (*WeatherModel, error) {
	return s.run(ctx, lookup.ID, lookup.Query)
}

func (s *Service) History(ctx context.Context, limit int) ([]*Lookup, error) {
	return s.storage.Recent(ctx, limit)
}

func (s *Service) Get(ctx context.Context, id string) (*Lookup, error) {
	return s.storage.Get(ctx, id)
}

func (s *Service) run(ctx context.Context, id, query string) (*WeatherModel, error) {
	s.logger.Debug("looking up weather", zap.String("lookupId", id), zap.String("query", query))

	model, err := s.fetcher.FetchWeather(ctx, query)

	lookup := &Lookup{
		ID:    id,
		Query: query,
		At:    s.now().UTC(),
	}

	var result error
	if err != nil || model == nil {
		ed := AsErrorData(err)
		if ed == nil {
			ed = &ErrorData{Message: unknownErrorMessage}
		}
		lookup.Error = ed.Message
		model, result = nil, ed

		s.logger.Info("weather lookup failed", zap.String("lookupId", id), zap.String("message", ed.Message))
	} else {
		lookup.Items = len(model.List)
		lookup.Model = model

		s.logger.Info("weather lookup succeeded", zap.String("lookupId", id), zap.Int("items", lookup.Items))
	}

	if err := s.storage.Save(ctx, lookup); err != nil {
		s.logger.Error("error whilst saving lookup", zap.String("lookupId", id), zap.Error(err))
	}

	if err := s.publisher.Publish(LookupCompletedEvent, lookup); err != nil {
		s.logger.Error("error whilst publishing lookup", zap.String("lookupId", id), zap.Error(err))
	}

	return model, result
}

// NopStorage keeps no history.
type NopStorage struct{}

func (NopStorage) Save(context.Context, *Lookup) error { return nil }

func (NopStorage) Get(context.Context, string) (*Lookup, error) { return nil, ErrNotFound }

func (NopStorage) Recent(context.Context, int) ([]*Lookup, error) { return []*Lookup{}, nil }

func (NopStorage) RemoveExpired(context.Context, time.Time) error { return nil }

type NopPublisher struct{}

func (NopPublisher) Publish(string, interface{}) error { return nil }
