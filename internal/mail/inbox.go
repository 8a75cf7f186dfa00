package mail

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

// InboundMessage is the envelope view of one unseen inbox message.
type InboundMessage struct {
	UID        uint32
	Sender     string // normalized lowercase address
	MessageID  string
	ReceivedAt time.Time
}

// Mailbox is one open IMAP session over the INBOX.
type Mailbox interface {
	// FetchUnseen returns envelopes of messages without the \Seen flag
	// received on or after since, oldest first.
	FetchUnseen(ctx context.Context, since time.Time) ([]InboundMessage, error)
	// MarkSeen flags a message as processed so later scans skip it.
	MarkSeen(ctx context.Context, uid uint32) error
	Close() error
}

// MailboxDialer opens a fresh session per reconciler tick.
type MailboxDialer interface {
	Dial(ctx context.Context) (Mailbox, error)
}

type IMAPDialer struct {
	Host     string
	Port     int
	User     string
	Password string
}

func (d *IMAPDialer) Dial(ctx context.Context) (Mailbox, error) {
	c, err := client.DialTLS(fmt.Sprintf("%s:%d", d.Host, d.Port), nil)
	if err != nil {
		return nil, &TransportError{Op: "imap dial", Err: err}
	}

	if err := c.Login(d.User, d.Password); err != nil {
		c.Logout()
		return nil, &TransportError{Op: "imap login", Err: err}
	}

	if _, err := c.Select("INBOX", false); err != nil {
		c.Logout()
		return nil, &TransportError{Op: "imap select", Err: err}
	}

	return &imapMailbox{client: c, self: strings.ToLower(d.User)}, nil
}

type imapMailbox struct {
	client *client.Client
	self   string
}

func (m *imapMailbox) FetchUnseen(ctx context.Context, since time.Time) ([]InboundMessage, error) {
	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	criteria.Since = since // IMAP SINCE is day-granular; callers dedupe by lead state

	uids, err := m.client.UidSearch(criteria)
	if err != nil {
		return nil, &TransportError{Op: "imap search", Err: err}
	}
	if len(uids) == 0 {
		return nil, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- m.client.UidFetch(seqset,
			[]imap.FetchItem{imap.FetchEnvelope, imap.FetchUid}, messages)
	}()

	var inbound []InboundMessage
	for msg := range messages {
		if msg.Envelope == nil || len(msg.Envelope.From) == 0 {
			continue
		}
		sender := strings.ToLower(strings.TrimSpace(msg.Envelope.From[0].Address()))
		if sender == "" || sender == m.self {
			continue
		}
		inbound = append(inbound, InboundMessage{
			UID:        msg.Uid,
			Sender:     sender,
			MessageID:  msg.Envelope.MessageId,
			ReceivedAt: msg.Envelope.Date,
		})
	}

	if err := <-done; err != nil {
		return nil, &TransportError{Op: "imap fetch", Err: err}
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	return inbound, nil
}

func (m *imapMailbox) MarkSeen(ctx context.Context, uid uint32) error {
	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)

	item := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := m.client.UidStore(seqset, item, []interface{}{imap.SeenFlag}, nil); err != nil {
		return &TransportError{Op: "imap store", Err: err}
	}
	return nil
}

func (m *imapMailbox) Close() error {
	return m.client.Logout()
}
