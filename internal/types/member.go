package types

// HandleKind is the classification of a messaging handle.
type HandleKind string

const (
	// KindUnknown marks a handle the probe host could not classify. It never reaches output.
	KindUnknown HandleKind = "unknown"
	// KindChannel is a broadcast channel with a public subscriber counter.
	KindChannel HandleKind = "channel"
	// KindChat is a group chat.
	KindChat HandleKind = "chat"
	// KindPersonal is a personal account.
	KindPersonal HandleKind = "personal"
)

// ClassifiedHandle is the result of probing a single handle.
// Title, Description and Subscribers are only meaningful for KindChannel.
type ClassifiedHandle struct {
	ID          string     `json:"id"`
	Kind        HandleKind `json:"kind"`
	URL         string     `json:"url"`
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	Subscribers int64      `json:"subscribers,omitempty"`
}

// Classified reports whether the handle resolved to one of the three known kinds.
func (h ClassifiedHandle) Classified() bool {
	switch h.Kind {
	case KindChannel, KindChat, KindPersonal:
		return true
	default:
		return false
	}
}

// Channel is the output form of a channel handle.
type Channel struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Subscribers int64  `json:"subscribers"`
}

// Telegram groups a member's classified handles by kind.
type Telegram struct {
	Channels []Channel `json:"channels"`
	Chats    []string  `json:"chats"`
	Personal []string  `json:"personal"`
}

// MemberRecord is one finished output record.
type MemberRecord struct {
	FullName string   `json:"fullname"`
	Nickname string   `json:"nickname"`
	Telegram Telegram `json:"telegram"`
}

// Empty reports whether none of the handle collections has an entry.
func (m *MemberRecord) Empty() bool {
	return len(m.Telegram.Channels) == 0 && len(m.Telegram.Chats) == 0 && len(m.Telegram.Personal) == 0
}

// NewMemberRecord assembles a record from a profile and its classified handles.
// Unclassified handles and repeated ids are dropped. The second return value is
// false when no handle survived, in which case the record must not be emitted.
func NewMemberRecord(profile ProfileFragment, handles []ClassifiedHandle) (*MemberRecord, bool) {
	rec := &MemberRecord{
		FullName: profile.FullName,
		Nickname: profile.Nickname,
		Telegram: Telegram{
			Channels: []Channel{},
			Chats:    []string{},
			Personal: []string{},
		},
	}

	seen := make(map[string]bool, len(handles))
	for _, h := range handles {
		if !h.Classified() || seen[h.ID] {
			continue
		}
		seen[h.ID] = true

		switch h.Kind {
		case KindChannel:
			rec.Telegram.Channels = append(rec.Telegram.Channels, Channel{
				ID:          h.ID,
				URL:         h.URL,
				Title:       h.Title,
				Description: h.Description,
				Subscribers: h.Subscribers,
			})
		case KindChat:
			rec.Telegram.Chats = append(rec.Telegram.Chats, h.ID)
		case KindPersonal:
			rec.Telegram.Personal = append(rec.Telegram.Personal, h.ID)
		}
	}

	if rec.Empty() {
		return nil, false
	}
	return rec, true
}
