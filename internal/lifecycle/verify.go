package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erazemk/odpadki/internal/events"
	"github.com/erazemk/odpadki/internal/imaging"
	"github.com/erazemk/odpadki/internal/model"
	"github.com/erazemk/odpadki/internal/oracle"
	"github.com/erazemk/odpadki/internal/store"
)

// VideoUpload is a disposal video submitted for verification.
type VideoUpload struct {
	Data []byte
	MIME string
	// Duration is the client-reported length, used when the container
	// cannot be probed.
	Duration time.Duration
}

// VerifyResult is the outcome of a verification attempt.
type VerifyResult struct {
	Accepted      bool        `json:"accepted"`
	Reason        string      `json:"reason,omitempty"`
	PointsAwarded int64       `json:"points_awarded"`
	TotalPoints   int64       `json:"total_points"`
	Item          *model.Item `json:"item"`
}

const unreachableReason = "The verification service could not be reached. Please try again."

type outcome struct {
	result *VerifyResult
	err    error
}

// Verify submits a disposal video for one of the session user's items.
//
// Guards and video checks run before the oracle is contacted. The oracle call
// runs in its own goroutine; if it takes longer than VerifyTimeout, Verify
// returns ErrVerificationTimeout but the result is still applied when it
// arrives, unless a newer Verify of the same item has started since.
func (o *Orchestrator) Verify(ctx context.Context, sess Session, itemID string, video VideoUpload) (*VerifyResult, error) {
	item, err := store.GetItem(ctx, o.DB, itemID)
	if err != nil {
		return nil, err
	}
	if item.UserID != sess.UserID {
		return nil, ErrForbidden
	}
	if err := item.CanVerify(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotVerifiable, err)
	}

	if err := checkVideo(video); err != nil {
		return nil, err
	}

	req := oracle.VerifyRequest{
		Video:        video.Data,
		VideoMIME:    video.MIME,
		Instructions: item.DisposalInstructions,
	}
	if data, mime, err := imaging.DecodeDataURI(item.ImageURL); err == nil {
		req.Image, req.ImageMIME = data, mime
	} else {
		o.Logger.Warn("verifying without item image", "item", item.ID, "error", err)
	}

	token := o.begin(item.ID)
	done := make(chan outcome, 1)

	go func() {
		defer o.end(item.ID)

		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.callTimeout())
		defer cancel()

		verdict, err := o.Verifier.Verify(callCtx, req)
		res, err := o.apply(callCtx, sess, item, token, video, verdict, err)
		done <- outcome{res, err}
	}()

	timer := time.NewTimer(o.verifyTimeout())
	defer timer.Stop()

	select {
	case out := <-done:
		return out.result, out.err
	case <-timer.C:
		o.Logger.Warn("verification timed out", "user", sess.UserID, "item", item.ID)
		o.publish(sess.UserID, events.Event{Type: events.TypeVerificationTimeout, ItemID: item.ID})
		return nil, ErrVerificationTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func checkVideo(v VideoUpload) error {
	if err := imaging.CheckVideo(imaging.VideoInfo{MIME: v.MIME, Size: int64(len(v.Data))}); err != nil {
		return err
	}
	d, err := imaging.VideoDuration(v.Data, v.MIME, v.Duration)
	if err != nil {
		return err
	}
	return imaging.CheckVideo(imaging.VideoInfo{MIME: v.MIME, Size: int64(len(v.Data)), Duration: d})
}

// apply records the oracle's answer if token is still the item's current one.
func (o *Orchestrator) apply(ctx context.Context, sess Session, item *model.Item, token uint64, video VideoUpload, verdict oracle.Verdict, callErr error) (*VerifyResult, error) {
	st := o.state(item.ID)
	st.award.Lock()
	defer st.award.Unlock()

	if !o.current(item.ID, token) {
		o.Logger.Info("discarding stale verification result", "item", item.ID, "token", token)
		return nil, ErrStaleResponse
	}

	if callErr != nil {
		o.Logger.Error("verification request failed", "user", sess.UserID, "item", item.ID, "error", callErr)
		o.publish(sess.UserID, events.Event{
			Type:   events.TypeVerificationFailed,
			ItemID: item.ID,
			Reason: unreachableReason,
		})
		return nil, fmt.Errorf("verifying item: %w", callErr)
	}

	if !verdict.Accepted {
		if err := verdict.Err(); err != nil {
			o.Logger.Warn("verification reply malformed, rejecting", "item", item.ID, "error", err)
		}
		o.Logger.Info("verification rejected", "user", sess.UserID, "item", item.ID, "reason", verdict.Reason)
		o.publish(sess.UserID, events.Event{
			Type:   events.TypeVerificationFailed,
			ItemID: item.ID,
			Reason: verdict.Reason,
		})
		return &VerifyResult{Reason: verdict.Reason, Item: item}, nil
	}

	return o.award(ctx, sess, item.ID, video)
}

// award stores the video and credits the owner, at most once per item.
func (o *Orchestrator) award(ctx context.Context, sess Session, itemID string, video VideoUpload) (*VerifyResult, error) {
	item, err := store.GetItem(ctx, o.DB, itemID)
	if err != nil {
		return nil, err
	}
	if item.IsVerified {
		return o.alreadyVerified(ctx, item)
	}

	ref, err := o.Media.Put(ctx, item.ID, video.Data, video.MIME)
	if err != nil {
		return nil, fmt.Errorf("storing verification video: %w", err)
	}

	points := model.PointsFor(item.Classification)
	verified, err := store.VerifyItem(ctx, o.DB, item.ID, ref, points)
	if errors.Is(err, store.ErrAlreadyVerified) {
		return o.alreadyVerified(ctx, item)
	}
	if err != nil {
		return nil, err
	}

	total := int64(0)
	if owner, err := store.GetUser(ctx, o.DB, verified.UserID); err == nil {
		total = owner.Points
	} else {
		o.Logger.Warn("failed to read point total", "user", verified.UserID, "error", err)
	}

	o.Logger.Info("item verified", "user", sess.UserID, "item", item.ID, "points", points)
	o.publish(verified.UserID, events.Event{
		Type:          events.TypeItemVerified,
		ItemID:        item.ID,
		PointsAwarded: points,
		TotalPoints:   total,
	})

	return &VerifyResult{
		Accepted:      true,
		PointsAwarded: points,
		TotalPoints:   total,
		Item:          verified,
	}, nil
}

// alreadyVerified reports success without crediting anything.
func (o *Orchestrator) alreadyVerified(ctx context.Context, item *model.Item) (*VerifyResult, error) {
	o.Logger.Info("item already verified, not awarding again", "item", item.ID)
	current, err := store.GetItem(ctx, o.DB, item.ID)
	if err != nil {
		return nil, err
	}
	res := &VerifyResult{Accepted: true, Item: current}
	if owner, err := store.GetUser(ctx, o.DB, current.UserID); err == nil {
		res.TotalPoints = owner.Points
	}
	return res, nil
}

// begin issues a new request token for itemID, superseding older ones.
func (o *Orchestrator) begin(itemID string) uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.items == nil {
		o.items = make(map[string]*itemState)
	}
	st, ok := o.items[itemID]
	if !ok {
		st = &itemState{}
		o.items[itemID] = st
	}
	o.seq++
	st.token = o.seq
	st.inflight++
	return st.token
}

// end drops the item's state once no request is in flight.
func (o *Orchestrator) end(itemID string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	st, ok := o.items[itemID]
	if !ok {
		return
	}
	st.inflight--
	if st.inflight <= 0 {
		delete(o.items, itemID)
	}
}

func (o *Orchestrator) state(itemID string) *itemState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.items[itemID]
}

func (o *Orchestrator) current(itemID string, token uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	st, ok := o.items[itemID]
	return ok && st.token == token
}

func (o *Orchestrator) publish(userID string, e events.Event) {
	if o.Events == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	o.Events.Publish(userID, e)
}

func (o *Orchestrator) verifyTimeout() time.Duration {
	if o.VerifyTimeout > 0 {
		return o.VerifyTimeout
	}
	return DefaultVerifyTimeout
}

func (o *Orchestrator) callTimeout() time.Duration {
	if o.CallTimeout > 0 {
		return o.CallTimeout
	}
	return DefaultCallTimeout
}
