package store

import (
	"context"
	"strings"

	"github.com/mastertenor/korgan/internal/model"
	"github.com/mastertenor/korgan/internal/source"
)

// The mutation coordinator. Reversible flag actions (read/star) are
// applied optimistically and reverted on failure; everything else is
// request-then-reflect: the local list changes only after the server
// confirmed. Every successful mutation marks the other resident contexts
// stale so they refetch on next visit.

// intent records the desired flag state for a message while its remote
// call is unresolved. Fetch commits re-apply pending intents onto incoming
// pages, so a refresh racing an optimistic flag cannot silently revert it.
type intent struct {
	folder model.Folder
	read   *bool
	star   *bool
}

// MarkRead marks one message as read.
func (s *Store) MarkRead(ctx context.Context, folder model.Folder, messageID string) (MailContext, error) {
	return s.mutateFlag(ctx, folder, messageID, source.ActionMarkRead, true)
}

// MarkUnread marks one message as unread.
func (s *Store) MarkUnread(ctx context.Context, folder model.Folder, messageID string) (MailContext, error) {
	return s.mutateFlag(ctx, folder, messageID, source.ActionMarkUnread, false)
}

// Star flags one message.
func (s *Store) Star(ctx context.Context, folder model.Folder, messageID string) (MailContext, error) {
	return s.mutateFlag(ctx, folder, messageID, source.ActionStar, true)
}

// Unstar removes the flag from one message.
func (s *Store) Unstar(ctx context.Context, folder model.Folder, messageID string) (MailContext, error) {
	return s.mutateFlag(ctx, folder, messageID, source.ActionUnstar, false)
}

// Archive removes one message from its folder without deleting it.
func (s *Store) Archive(ctx context.Context, folder model.Folder, messageID string) (MailContext, error) {
	return s.mutateRemove(ctx, folder, messageID, source.ActionArchive)
}

// Trash moves one message to the trash folder.
func (s *Store) Trash(ctx context.Context, folder model.Folder, messageID string) (MailContext, error) {
	return s.mutateRemove(ctx, folder, messageID, source.ActionTrash)
}

// Restore moves one message out of the trash folder.
func (s *Store) Restore(ctx context.Context, folder model.Folder, messageID string) (MailContext, error) {
	return s.mutateRemove(ctx, folder, messageID, source.ActionRestore)
}

// Delete permanently removes one message. Never optimistic: the message
// leaves the local list only after the server confirmed.
func (s *Store) Delete(ctx context.Context, folder model.Folder, messageID string) (MailContext, error) {
	return s.mutateRemove(ctx, folder, messageID, source.ActionDelete)
}

// EmptyTrash permanently removes every message in the trash folder.
func (s *Store) EmptyTrash(ctx context.Context) (MailContext, error) {
	err := s.src.Mutate(ctx, source.ActionEmptyTrash, "", model.FolderTrash)

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[model.FolderTrash]
	if err != nil {
		if ok {
			next := e.ctx
			next.LastError = err.Error()
			e.ctx = next
			return e.snapshot(), err
		}
		return emptyContext(model.FolderTrash), err
	}
	if !ok {
		s.invalidateOthersLocked(model.FolderTrash)
		return emptyContext(model.FolderTrash), nil
	}

	// The folder is now empty server-side; reset the context wholesale
	// and disown any fetch still in flight for it.
	s.genSeq++
	e.gen = s.genSeq
	e.state = stateIdle
	next := emptyContext(model.FolderTrash)
	next.LastUpdated = s.clock()
	e.ctx = next
	s.invalidateOthersLocked(model.FolderTrash)
	return e.snapshot(), nil
}

// mutateFlag handles the optimistic read/star actions.
func (s *Store) mutateFlag(ctx context.Context, folder model.Folder, messageID string, action source.MutateAction, desired bool) (MailContext, error) {
	if strings.TrimSpace(messageID) == "" {
		return s.Context(folder), &source.ValidationError{Message: "message id is empty"}
	}

	// Optimistic apply under the lock, remembering the prior flag value
	// for the revert path.
	s.mu.Lock()
	var prev, applied bool
	if e, ok := s.entries[folder]; ok {
		if idx := indexOf(e.ctx.Messages, messageID); idx >= 0 {
			prev = flagValue(e.ctx.Messages[idx], action)
			if prev != desired {
				next := e.ctx
				next.Messages = copyMails(e.ctx.Messages)
				next.Messages[idx] = withFlag(next.Messages[idx], action, desired)
				e.ctx = next
				applied = true
			}
		}
	}
	it := s.intents[messageID]
	if it == nil {
		it = &intent{folder: folder}
		s.intents[messageID] = it
	}
	switch action {
	case source.ActionMarkRead, source.ActionMarkUnread:
		it.read = &desired
	case source.ActionStar, source.ActionUnstar:
		it.star = &desired
	}
	s.mu.Unlock()

	err := s.src.Mutate(ctx, action, messageID, folder)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.settleIntentLocked(messageID, action, desired)
	if err != nil {
		if applied {
			// Revert only if the flag still holds our optimistic
			// value; a later mutation owns it otherwise.
			if e, ok := s.entries[folder]; ok {
				if idx := indexOf(e.ctx.Messages, messageID); idx >= 0 && flagValue(e.ctx.Messages[idx], action) == desired {
					next := e.ctx
					next.Messages = copyMails(e.ctx.Messages)
					next.Messages[idx] = withFlag(next.Messages[idx], action, prev)
					e.ctx = next
				}
			}
		}
		s.setErrorLocked(folder, err)
		s.logger.Warn("mutation failed", "action", action, "message", messageID, "error", err)
		return s.snapshotLocked(folder), err
	}

	s.clearErrorLocked(folder)
	s.invalidateOthersLocked(folder)
	return s.snapshotLocked(folder), nil
}

// mutateRemove handles the request-then-reflect actions that take the
// message out of its folder on success.
func (s *Store) mutateRemove(ctx context.Context, folder model.Folder, messageID string, action source.MutateAction) (MailContext, error) {
	if strings.TrimSpace(messageID) == "" {
		return s.Context(folder), &source.ValidationError{Message: "message id is empty"}
	}

	err := s.src.Mutate(ctx, action, messageID, folder)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.setErrorLocked(folder, err)
		s.logger.Warn("mutation failed", "action", action, "message", messageID, "error", err)
		return s.snapshotLocked(folder), err
	}

	if e, ok := s.entries[folder]; ok {
		if idx := indexOf(e.ctx.Messages, messageID); idx >= 0 {
			next := e.ctx
			removed := e.ctx.Messages[idx]
			msgs := copyMails(e.ctx.Messages)
			next.Messages = append(msgs[:idx], msgs[idx+1:]...)
			if next.TotalEstimate > 0 {
				next.TotalEstimate--
			}
			if !removed.IsRead && next.UnreadCount > 0 {
				next.UnreadCount--
			}
			next.LastError = ""
			e.ctx = next
		} else {
			s.clearErrorLocked(folder)
		}
	}
	delete(s.intents, messageID)
	s.invalidateOthersLocked(folder)
	return s.snapshotLocked(folder), nil
}

// settleIntentLocked clears a pending intent field once its remote call
// resolved, unless a newer mutation replaced the desired value. Callers
// hold s.mu.
func (s *Store) settleIntentLocked(messageID string, action source.MutateAction, desired bool) {
	it := s.intents[messageID]
	if it == nil {
		return
	}
	switch action {
	case source.ActionMarkRead, source.ActionMarkUnread:
		if it.read != nil && *it.read == desired {
			it.read = nil
		}
	case source.ActionStar, source.ActionUnstar:
		if it.star != nil && *it.star == desired {
			it.star = nil
		}
	}
	if it.read == nil && it.star == nil {
		delete(s.intents, messageID)
	}
}

// applyIntentsLocked overlays pending optimistic flags onto an incoming
// page so a refresh cannot undo an unresolved mutation. Callers hold s.mu.
func (s *Store) applyIntentsLocked(mails []model.Mail) []model.Mail {
	if len(s.intents) == 0 {
		return mails
	}
	for i, m := range mails {
		it := s.intents[m.ID]
		if it == nil {
			continue
		}
		if it.read != nil {
			mails[i] = mails[i].WithRead(*it.read)
		}
		if it.star != nil {
			mails[i] = mails[i].WithStarred(*it.star)
		}
	}
	return mails
}

// dropIntentsLocked forgets pending intents originating from an evicted
// folder. Callers hold s.mu.
func (s *Store) dropIntentsLocked(folder model.Folder) {
	for id, it := range s.intents {
		if it.folder == folder {
			delete(s.intents, id)
		}
	}
}

// setErrorLocked surfaces a failure on a folder's context if resident.
func (s *Store) setErrorLocked(folder model.Folder, err error) {
	e, ok := s.entries[folder]
	if !ok {
		return
	}
	next := e.ctx
	next.LastError = err.Error()
	e.ctx = next
}

// clearErrorLocked clears the surfaced failure on a folder's context.
func (s *Store) clearErrorLocked(folder model.Folder) {
	e, ok := s.entries[folder]
	if !ok {
		return
	}
	next := e.ctx
	next.LastError = ""
	e.ctx = next
}

// snapshotLocked returns the snapshot for a folder. Callers hold s.mu.
func (s *Store) snapshotLocked(folder model.Folder) MailContext {
	if e, ok := s.entries[folder]; ok {
		return e.snapshot()
	}
	return emptyContext(folder)
}

// indexOf locates a message by id, or -1.
func indexOf(mails []model.Mail, id string) int {
	for i, m := range mails {
		if m.ID == id {
			return i
		}
	}
	return -1
}

// flagValue reads the flag an action targets.
func flagValue(m model.Mail, action source.MutateAction) bool {
	switch action {
	case source.ActionMarkRead, source.ActionMarkUnread:
		return m.IsRead
	default:
		return m.IsStarred
	}
}

// withFlag returns the message with the action's target flag set.
func withFlag(m model.Mail, action source.MutateAction, value bool) model.Mail {
	switch action {
	case source.ActionMarkRead, source.ActionMarkUnread:
		return m.WithRead(value)
	default:
		return m.WithStarred(value)
	}
}
