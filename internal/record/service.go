package record

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/drfirst/go-clinidoc/internal/auth"
	"github.com/drfirst/go-clinidoc/internal/domain/prescription"
	"github.com/drfirst/go-clinidoc/internal/storage"
	"github.com/drfirst/go-clinidoc/pkg/idempotency"
)

var (
	// ErrNotFound is returned for unknown records or records owned by
	// another doctor.
	ErrNotFound = errors.New("patient record not found")
	// ErrGuest is returned when a guest calls an operation that needs an
	// account.
	ErrGuest = errors.New("guest sessions have no patient records")
	// ErrNilState is returned when saving without a prescription state.
	ErrNilState = errors.New("prescription state is required")
)

// EventStore is implemented by stores that enqueue the event atomically
// with the record write.
type EventStore interface {
	PutWithEvent(ctx context.Context, kind storage.Kind, id string, v any, ev *Event) error
	DeleteWithEvent(ctx context.Context, kind storage.Kind, id string, ev *Event) error
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithEvents routes writes through an outbox-capable store.
func WithEvents(es EventStore) Option {
	return func(s *Service) { s.events = es }
}

// Service manages patient records.
type Service struct {
	store  storage.Store
	events EventStore
	logger *zap.Logger
	now    func() time.Time
	window idempotency.Window

	// serializes the duplicate check with the write
	mu sync.Mutex
}

// NewService creates a record service on store.
func NewService(store storage.Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: zap.NewNop(),
		now:    time.Now,
		window: idempotency.Window(DuplicateWindow),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fingerprint identifies "the same save" for duplicate suppression.
func Fingerprint(doctorID string, s *prescription.State) string {
	return idempotency.GenerateKey(
		doctorID,
		NormalizeName(s.Patient.Name),
		s.Date,
		string(TypeOf(s)),
		s.MedicationSummary(),
	)
}

// SaveAndExit stores the state as a patient record. Guests never create
// records. When a record with the same fingerprint was saved within the
// duplicate window, that record is returned with created false. The date is
// normalized first; an unparseable date is prescription.ErrInvalidDate.
func (s *Service) SaveAndExit(ctx context.Context, sess auth.Session, state *prescription.State) (*PatientRecord, bool, error) {
	if sess.IsGuest() {
		return nil, false, nil
	}
	if state == nil {
		return nil, false, ErrNilState
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	state = state.Clone()
	if err := state.NormalizeDate(now); err != nil {
		return nil, false, err
	}
	fp := Fingerprint(sess.DoctorID, state)

	existing, err := s.forDoctor(ctx, sess.DoctorID)
	if err != nil {
		return nil, false, err
	}
	for _, r := range existing {
		if r.Fingerprint == fp && s.window.Contains(r.SavedAt, now) {
			s.logger.Info("duplicate save suppressed",
				zap.String("record_id", r.ID),
				zap.String("doctor_id", sess.DoctorID))
			return r, false, nil
		}
	}

	rec := &PatientRecord{
		ID:                uuid.New().String(),
		DoctorID:          sess.DoctorID,
		PatientName:       strings.TrimSpace(state.Patient.Name),
		NormalizedName:    NormalizeName(state.Patient.Name),
		Type:              TypeOf(state),
		Date:              state.Date,
		MedicationSummary: state.MedicationSummary(),
		Fingerprint:       fp,
		State:             state,
		SavedAt:           now,
	}

	ev, err := NewEvent(rec.ID, rec.DoctorID, EventRecordSaved, RecordSavedData{
		RecordID:          rec.ID,
		RecordType:        string(rec.Type),
		Date:              rec.Date,
		MedicationCount:   len(state.Medications),
		MedicationSummary: rec.MedicationSummary,
	})
	if err != nil {
		return nil, false, err
	}
	if err := s.put(ctx, rec, ev.WithCorrelation(correlationID(ctx))); err != nil {
		return nil, false, err
	}

	s.logger.Info("patient record saved",
		zap.String("record_id", rec.ID),
		zap.String("type", string(rec.Type)))
	return rec, true, nil
}

// List returns the doctor's records, newest first.
func (s *Service) List(ctx context.Context, sess auth.Session) ([]*PatientRecord, error) {
	if sess.IsGuest() {
		return nil, ErrGuest
	}
	return s.forDoctor(ctx, sess.DoctorID)
}

// Search matches query against patient names and medication summaries,
// ignoring case and accents. A blank query lists everything.
func (s *Service) Search(ctx context.Context, sess auth.Session, query string) ([]*PatientRecord, error) {
	all, err := s.List(ctx, sess)
	if err != nil {
		return nil, err
	}
	q := NormalizeName(query)
	if q == "" {
		return all, nil
	}

	var out []*PatientRecord
	for _, r := range all {
		if strings.Contains(r.NormalizedName, q) || strings.Contains(NormalizeName(r.MedicationSummary), q) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Favorites returns only favorite records.
func (s *Service) Favorites(ctx context.Context, sess auth.Session) ([]*PatientRecord, error) {
	all, err := s.List(ctx, sess)
	if err != nil {
		return nil, err
	}
	var out []*PatientRecord
	for _, r := range all {
		if r.Favorite {
			out = append(out, r)
		}
	}
	return out, nil
}

// Get returns one record owned by the session's doctor.
func (s *Service) Get(ctx context.Context, sess auth.Session, id string) (*PatientRecord, error) {
	if sess.IsGuest() {
		return nil, ErrGuest
	}
	var rec PatientRecord
	if err := s.store.Get(ctx, storage.KindPatientRecords, id, &rec); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get record: %w", err)
	}
	if rec.DoctorID != sess.DoctorID {
		return nil, ErrNotFound
	}
	return &rec, nil
}

// SetFavorite marks or unmarks a record.
func (s *Service) SetFavorite(ctx context.Context, sess auth.Session, id string, favorite bool) (*PatientRecord, error) {
	rec, err := s.Get(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	rec.Favorite = favorite

	ev, err := NewEvent(rec.ID, rec.DoctorID, EventRecordFavorited, RecordFavoritedData{
		RecordID: rec.ID,
		Favorite: favorite,
	})
	if err != nil {
		return nil, err
	}
	if err := s.put(ctx, rec, ev.WithCorrelation(correlationID(ctx))); err != nil {
		return nil, err
	}
	return rec, nil
}

// Delete removes a record.
func (s *Service) Delete(ctx context.Context, sess auth.Session, id string) error {
	rec, err := s.Get(ctx, sess, id)
	if err != nil {
		return err
	}

	if s.events == nil {
		return s.store.Delete(ctx, storage.KindPatientRecords, rec.ID)
	}
	ev, err := NewEvent(rec.ID, rec.DoctorID, EventRecordDeleted, RecordDeletedData{
		RecordID:  rec.ID,
		DeletedAt: s.now().UTC(),
	})
	if err != nil {
		return err
	}
	return s.events.DeleteWithEvent(ctx, storage.KindPatientRecords, rec.ID, ev.WithCorrelation(correlationID(ctx)))
}

func (s *Service) put(ctx context.Context, rec *PatientRecord, ev *Event) error {
	var err error
	if s.events != nil {
		err = s.events.PutWithEvent(ctx, storage.KindPatientRecords, rec.ID, rec, ev)
	} else {
		err = s.store.Put(ctx, storage.KindPatientRecords, rec.ID, rec)
	}
	if err != nil {
		return fmt.Errorf("save record: %w", err)
	}
	return nil
}

func (s *Service) forDoctor(ctx context.Context, doctorID string) ([]*PatientRecord, error) {
	all, err := storage.ListAs[PatientRecord](ctx, s.store, storage.KindPatientRecords)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	var out []*PatientRecord
	for i := range all {
		if all[i].DoctorID == doctorID {
			out = append(out, &all[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SavedAt.After(out[j].SavedAt) })
	return out, nil
}

type correlationKey struct{}

// ContextWithCorrelation attaches a request id that is copied into emitted
// events.
func ContextWithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

func correlationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}
