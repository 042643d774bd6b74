// Package lifecycle sequences an item from upload through classification to
// verified disposal and the resulting points award.
package lifecycle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/erazemk/odpadki/internal/events"
	"github.com/erazemk/odpadki/internal/imaging"
	"github.com/erazemk/odpadki/internal/media"
	"github.com/erazemk/odpadki/internal/model"
	"github.com/erazemk/odpadki/internal/oracle"
	"github.com/erazemk/odpadki/internal/store"
)

// DefaultVerifyTimeout is how long Verify waits for the oracle before giving up.
const DefaultVerifyTimeout = 30 * time.Second

// DefaultCallTimeout bounds an oracle call that nobody is waiting on anymore.
const DefaultCallTimeout = 5 * time.Minute

var (
	// ErrForbidden is returned when a session acts on an item it does not own.
	ErrForbidden = errors.New("item belongs to another user")
	// ErrNotVerifiable is returned for Waste, unclassified or verified items.
	ErrNotVerifiable = errors.New("item cannot be verified")
	// ErrVerificationTimeout is returned when the oracle is slower than VerifyTimeout.
	// The request keeps running and its result is still applied.
	ErrVerificationTimeout = errors.New("verification is taking longer than expected")
	// ErrStaleResponse is returned when a newer verification of the same item
	// superseded this one.
	ErrStaleResponse = errors.New("verification superseded by a newer request")
)

// Session identifies the signed-in user an operation runs for.
type Session struct {
	UserID string
	Name   string
	Email  string
	Role   string
}

// ItemClassifier classifies item images.
type ItemClassifier interface {
	Classify(ctx context.Context, image []byte, mime, description string) (oracle.Assessment, error)
}

// DisposalVerifier checks disposal videos.
type DisposalVerifier interface {
	Verify(ctx context.Context, req oracle.VerifyRequest) (oracle.Verdict, error)
}

// Orchestrator runs uploads and verifications against the store and oracles.
type Orchestrator struct {
	DB         *sql.DB
	Classifier ItemClassifier
	Verifier   DisposalVerifier
	Media      media.Store
	Events     events.Publisher
	Logger     *slog.Logger

	VerifyTimeout time.Duration
	CallTimeout   time.Duration

	mu    sync.Mutex
	seq   uint64
	items map[string]*itemState
}

// itemState tracks verifications of one item.
type itemState struct {
	award    sync.Mutex // serializes result application
	token    uint64     // guarded by Orchestrator.mu
	inflight int        // guarded by Orchestrator.mu
}

// New returns an orchestrator with default timeouts.
func New(db *sql.DB, classifier ItemClassifier, verifier DisposalVerifier, videos media.Store, pub events.Publisher, logger *slog.Logger) *Orchestrator {
	if pub == nil {
		pub = events.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		DB:            db,
		Classifier:    classifier,
		Verifier:      verifier,
		Media:         videos,
		Events:        pub,
		Logger:        logger,
		VerifyTimeout: DefaultVerifyTimeout,
		CallTimeout:   DefaultCallTimeout,
	}
}

// Upload normalizes an item photo, classifies it and stores an unverified
// item for the session user. The item is persisted before Upload returns.
func (o *Orchestrator) Upload(ctx context.Context, sess Session, image io.Reader, description string) (*model.Item, error) {
	img, err := imaging.NormalizeImage(image)
	if err != nil {
		return nil, err
	}

	assessment, err := o.Classifier.Classify(ctx, img.Data, img.MIME, description)
	if err != nil {
		return nil, fmt.Errorf("classifying item: %w", err)
	}
	if err := assessment.Err(); err != nil {
		o.Logger.Warn("classification reply malformed, defaulting to waste", "user", sess.UserID, "error", err)
	}

	item, err := store.CreateItem(ctx, o.DB, store.NewItem{
		UserID:               sess.UserID,
		ImageURL:             img.DataURI(),
		Description:          description,
		Classification:       assessment.Class,
		RecyclabilityScore:   assessment.Score,
		ResaleValue:          assessment.ResaleValue,
		DisposalInstructions: assessment.Instructions,
	})
	if err != nil {
		return nil, err
	}

	o.Logger.Info("item uploaded", "user", sess.UserID, "item", item.ID, "classification", item.Classification)
	o.publish(sess.UserID, events.Event{
		Type:   events.TypeItemCreated,
		ItemID: item.ID,
		Data:   item,
	})
	return item, nil
}
