package store

import (
	"context"

	"github.com/mastertenor/korgan/internal/model"
	"github.com/mastertenor/korgan/internal/source"
)

// BulkFailure pairs a message id with the failure it hit.
type BulkFailure struct {
	MessageID string
	Err       error
}

// BulkResult is the aggregate outcome of a bulk mutation. A mixed outcome
// is partial success: the successes stand and the failures are reported
// alongside them.
type BulkResult struct {
	Succeeded []string
	Failures  []BulkFailure
}

// FirstFailure returns the first failure encountered, or nil.
func (r BulkResult) FirstFailure() error {
	if len(r.Failures) == 0 {
		return nil
	}
	return r.Failures[0].Err
}

// Bulk applies one action to many messages sequentially, in bounded
// batches with a cancellation check between them. The returned error is
// nil when at least one message succeeded (partial success lives in the
// result); when every message failed, the first failure is returned as
// the total failure.
func (s *Store) Bulk(ctx context.Context, folder model.Folder, action source.MutateAction, messageIDs []string) (BulkResult, error) {
	var res BulkResult
	if action == source.ActionEmptyTrash {
		err := &source.ValidationError{Message: "empty trash is not a per-message bulk action"}
		return res, err
	}

	for i, id := range messageIDs {
		if i > 0 && i%s.bulkBatch == 0 {
			if err := ctx.Err(); err != nil {
				cancelErr := source.Classify("bulk "+string(action), err)
				for _, rest := range messageIDs[i:] {
					res.Failures = append(res.Failures, BulkFailure{MessageID: rest, Err: cancelErr})
				}
				break
			}
		}
		if _, err := s.applyOne(ctx, folder, action, id); err != nil {
			res.Failures = append(res.Failures, BulkFailure{MessageID: id, Err: err})
			continue
		}
		res.Succeeded = append(res.Succeeded, id)
	}

	if len(res.Succeeded) == 0 && len(res.Failures) > 0 {
		return res, res.FirstFailure()
	}
	return res, nil
}

// BulkMarkRead marks many messages read.
func (s *Store) BulkMarkRead(ctx context.Context, folder model.Folder, messageIDs []string) (BulkResult, error) {
	return s.Bulk(ctx, folder, source.ActionMarkRead, messageIDs)
}

// BulkStar flags many messages.
func (s *Store) BulkStar(ctx context.Context, folder model.Folder, messageIDs []string) (BulkResult, error) {
	return s.Bulk(ctx, folder, source.ActionStar, messageIDs)
}

// BulkTrash moves many messages to trash.
func (s *Store) BulkTrash(ctx context.Context, folder model.Folder, messageIDs []string) (BulkResult, error) {
	return s.Bulk(ctx, folder, source.ActionTrash, messageIDs)
}

// BulkDelete permanently removes many messages.
func (s *Store) BulkDelete(ctx context.Context, folder model.Folder, messageIDs []string) (BulkResult, error) {
	return s.Bulk(ctx, folder, source.ActionDelete, messageIDs)
}

// applyOne routes a single id through the matching single-message path so
// bulk actions share the optimistic/request-then-reflect semantics.
func (s *Store) applyOne(ctx context.Context, folder model.Folder, action source.MutateAction, id string) (MailContext, error) {
	switch action {
	case source.ActionMarkRead:
		return s.MarkRead(ctx, folder, id)
	case source.ActionMarkUnread:
		return s.MarkUnread(ctx, folder, id)
	case source.ActionStar:
		return s.Star(ctx, folder, id)
	case source.ActionUnstar:
		return s.Unstar(ctx, folder, id)
	case source.ActionArchive:
		return s.Archive(ctx, folder, id)
	case source.ActionTrash:
		return s.Trash(ctx, folder, id)
	case source.ActionRestore:
		return s.Restore(ctx, folder, id)
	case source.ActionDelete:
		return s.Delete(ctx, folder, id)
	default:
		return s.Context(folder), &source.ValidationError{Message: "unknown action " + string(action)}
	}
}
