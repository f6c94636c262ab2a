package imap

import (
	"context"
	"fmt"
	"sort"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/mastertenor/korgan/internal/source"
)

// Client wraps go-imap v2 for connecting to and querying IMAP servers.
// Every operation dials a fresh connection and logs out when done.
type Client struct {
	host     string
	port     string
	username string
	password string
	tls      bool
}

// NewClient creates a new IMAP client configuration.
func NewClient(host, port, username, password string, tls bool) *Client {
	return &Client{
		host:     host,
		port:     port,
		username: username,
		password: password,
		tls:      tls,
	}
}

// Connect establishes a connection to the IMAP server, authenticates,
// and returns the connected client. The caller is responsible for
// calling Logout/Close on the returned client.
func (c *Client) Connect(_ context.Context) (*imapclient.Client, error) {
	addr := c.host + ":" + c.port

	var client *imapclient.Client
	var err error

	if c.tls {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(c.username, c.password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, &source.AuthError{
			Backend: source.BackendIMAP,
			Message: fmt.Sprintf(
				"authentication failed for %s: %v",
				c.username, err,
			),
		}
	}

	return client, nil
}

// FetchWindow selects the mailbox, searches with the given criteria, and
// fetches one page of messages: the highest-UID matches strictly below
// beforeUID (or the newest matches when beforeUID is zero), at most limit
// of them. It returns the page newest-first, the total number of matching
// messages, and whether older matches remain beyond this page.
func (c *Client) FetchWindow(
	ctx context.Context,
	mailbox string,
	criteria *imap.SearchCriteria,
	beforeUID uint32,
	limit int,
) ([]Summary, int, bool, error) {
	client, err := c.Connect(ctx)
	if err != nil {
		return nil, 0, false, err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(mailbox, nil).Wait(); err != nil {
		return nil, 0, false, fmt.Errorf("selecting %s: %w", mailbox, err)
	}

	searchData, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, 0, false, fmt.Errorf("searching %s: %w", mailbox, err)
	}

	uids := searchData.AllUIDs()
	total := len(uids)

	window, hasMore := windowUIDs(uids, beforeUID, limit)
	if len(window) == 0 {
		return nil, total, false, nil
	}

	uidSet := imap.UIDSetNum(window...)

	bodySection := &imap.FetchItemBodySection{
		Peek: true,
	}

	fetchOpts := &imap.FetchOptions{
		Envelope:    true,
		Flags:       true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := client.Fetch(uidSet, fetchOpts)
	defer fetchCmd.Close()

	var summaries []Summary
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			continue
		}

		summary := Summary{
			Envelope: envelopeFromBuffer(buf),
		}
		if rawBody := buf.FindBodySection(bodySection); rawBody != nil {
			summary.Snippet, summary.HasAttachment = summarizeBody(rawBody)
		}
		summaries = append(summaries, summary)
	}

	if err := fetchCmd.Close(); err != nil {
		return summaries, total, hasMore,
			fmt.Errorf("fetching %s: %w", mailbox, err)
	}

	// Servers return fetch results in mailbox order; present newest first.
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Envelope.UID > summaries[j].Envelope.UID
	})

	return summaries, total, hasMore, nil
}

// SetFlags connects to IMAP and modifies flags on a message in the given
// mailbox. If add is true, the flags are added; otherwise they are removed.
func (c *Client) SetFlags(
	ctx context.Context,
	mailbox string,
	uid uint32,
	flags []imap.Flag,
	add bool,
) error {
	client, err := c.Connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(mailbox, nil).Wait(); err != nil {
		return fmt.Errorf("selecting %s: %w", mailbox, err)
	}

	uidSet := imap.UIDSetNum(imap.UID(uid))

	op := imap.StoreFlagsAdd
	if !add {
		op = imap.StoreFlagsDel
	}

	storeCmd := client.Store(uidSet, &imap.StoreFlags{
		Op:     op,
		Silent: true,
		Flags:  flags,
	}, nil)

	return storeCmd.Close()
}

// Move connects to IMAP and moves a message from one mailbox to another.
func (c *Client) Move(
	ctx context.Context, mailbox string, uid uint32, dest string,
) error {
	client, err := c.Connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(mailbox, nil).Wait(); err != nil {
		return fmt.Errorf("selecting %s: %w", mailbox, err)
	}

	uidSet := imap.UIDSetNum(imap.UID(uid))

	moveCmd := client.Move(uidSet, dest)
	if _, err := moveCmd.Wait(); err != nil {
		return fmt.Errorf("moving UID %d to %s: %w", uid, dest, err)
	}

	return nil
}

// MoveToArchive connects to IMAP and moves the message to an archive
// mailbox. It tries common archive folder names, falling back to
// marking the message as deleted.
func (c *Client) MoveToArchive(
	ctx context.Context, mailbox string, uid uint32,
) error {
	client, err := c.Connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(mailbox, nil).Wait(); err != nil {
		return fmt.Errorf("selecting %s: %w", mailbox, err)
	}

	uidSet := imap.UIDSetNum(imap.UID(uid))

	// Try common archive folder names
	archiveFolders := []string{
		"Archive", "[Gmail]/All Mail", "Archives", "INBOX.Archive",
	}

	for _, folder := range archiveFolders {
		moveCmd := client.Move(uidSet, folder)
		if _, err := moveCmd.Wait(); err == nil {
			return nil
		}
	}

	// Fallback: mark as deleted
	storeCmd := client.Store(uidSet, &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagDeleted},
	}, nil)

	return storeCmd.Close()
}

// Delete connects to IMAP, flags the message as deleted, and expunges
// the mailbox. Expunge removes every \Deleted message in the mailbox,
// not only this UID.
func (c *Client) Delete(
	ctx context.Context, mailbox string, uid uint32,
) error {
	client, err := c.Connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(mailbox, nil).Wait(); err != nil {
		return fmt.Errorf("selecting %s: %w", mailbox, err)
	}

	uidSet := imap.UIDSetNum(imap.UID(uid))

	storeCmd := client.Store(uidSet, &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagDeleted},
	}, nil)
	if err := storeCmd.Close(); err != nil {
		return fmt.Errorf("flagging UID %d deleted: %w", uid, err)
	}

	if err := client.Expunge().Close(); err != nil {
		return fmt.Errorf("expunging %s: %w", mailbox, err)
	}

	return nil
}

// EmptyMailbox connects to IMAP, flags every message in the mailbox as
// deleted, and expunges them all.
func (c *Client) EmptyMailbox(ctx context.Context, mailbox string) error {
	client, err := c.Connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(mailbox, nil).Wait(); err != nil {
		return fmt.Errorf("selecting %s: %w", mailbox, err)
	}

	searchData, err := client.UIDSearch(&imap.SearchCriteria{}, nil).Wait()
	if err != nil {
		return fmt.Errorf("searching %s: %w", mailbox, err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil
	}

	uidSet := imap.UIDSetNum(uids...)

	storeCmd := client.Store(uidSet, &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagDeleted},
	}, nil)
	if err := storeCmd.Close(); err != nil {
		return fmt.Errorf("flagging %s deleted: %w", mailbox, err)
	}

	if err := client.Expunge().Close(); err != nil {
		return fmt.Errorf("expunging %s: %w", mailbox, err)
	}

	return nil
}

// Stats connects to IMAP and returns the unread and total message counts
// for the messages matching the criteria in the mailbox.
func (c *Client) Stats(
	ctx context.Context, mailbox string, criteria *imap.SearchCriteria,
) (unread int, total int, err error) {
	client, err := c.Connect(ctx)
	if err != nil {
		return 0, 0, err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(mailbox, nil).Wait(); err != nil {
		return 0, 0, fmt.Errorf("selecting %s: %w", mailbox, err)
	}

	searchData, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return 0, 0, fmt.Errorf("counting %s: %w", mailbox, err)
	}
	total = len(searchData.AllUIDs())

	unseenCriteria := *criteria
	unseenCriteria.NotFlag = append(
		append([]imap.Flag(nil), criteria.NotFlag...), imap.FlagSeen,
	)
	searchData, err = client.UIDSearch(&unseenCriteria, nil).Wait()
	if err != nil {
		return 0, total, fmt.Errorf("counting unread in %s: %w", mailbox, err)
	}
	unread = len(searchData.AllUIDs())

	return unread, total, nil
}

// envelopeFromBuffer extracts an Envelope from a FetchMessageBuffer.
func envelopeFromBuffer(buf *imapclient.FetchMessageBuffer) Envelope {
	env := Envelope{
		UID: uint32(buf.UID),
	}

	if buf.Envelope != nil {
		env.MessageID = buf.Envelope.MessageID
		env.Subject = buf.Envelope.Subject
		env.Date = buf.Envelope.Date

		if len(buf.Envelope.From) > 0 {
			from := buf.Envelope.From[0]
			if from.Name != "" {
				env.From = from.Name
			} else {
				env.From = from.Addr()
			}
		}
	}

	for _, flag := range buf.Flags {
		env.Flags = append(env.Flags, string(flag))
	}

	return env
}
