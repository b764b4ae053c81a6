package usecase

import (
	"github.com/fitfeed-app/fitfeed-go/internal/model"
)

// ReplyPhase is the lifecycle of one root comment's reply panel.
type ReplyPhase int

const (
	ReplyCollapsed ReplyPhase = iota
	ReplyLoading
	ReplyExpanded
	ReplyLoadingMore
)

func (p ReplyPhase) String() string {
	switch p {
	case ReplyCollapsed:
		return "collapsed"
	case ReplyLoading:
		return "loading"
	case ReplyExpanded:
		return "expanded"
	case ReplyLoadingMore:
		return "loadingMore"
	}
	return "unknown"
}

type replyEvent int

const (
	eventExpand replyEvent = iota
	eventCollapse
	eventLoadMore
	eventPageLanded
	eventPageFailed
)

// transitionReply decides the next phase for an event. It is pure so the
// whole panel lifecycle can be tested without a UI or network. The second
// return value reports whether the event is accepted; rejected events leave
// the phase unchanged and must trigger no fetch.
//
// Expanding a panel whose items are already loaded goes straight to
// expanded: collapse never discards items, so re-expansion is instantaneous.
//
// Failure handling differs by phase on purpose: a failed first page drops
// back to collapsed with hasMore untouched, so re-expanding retries the
// fetch; a failed loadMore keeps the panel open over its items and the
// caller clears hasMore, so scrolling does not hammer a failing endpoint.
func transitionReply(phase ReplyPhase, event replyEvent, loaded bool, hasMore bool) (ReplyPhase, bool) {
	switch phase {
	case ReplyCollapsed:
		if event == eventExpand {
			if loaded {
				return ReplyExpanded, true
			}
			return ReplyLoading, true
		}
	case ReplyLoading:
		switch event {
		case eventPageLanded:
			return ReplyExpanded, true
		case eventPageFailed:
			// Back to collapsed so that re-expanding retries the fetch.
			return ReplyCollapsed, true
		}
	case ReplyExpanded:
		switch event {
		case eventCollapse:
			return ReplyCollapsed, true
		case eventLoadMore:
			if hasMore {
				return ReplyLoadingMore, true
			}
		}
	case ReplyLoadingMore:
		switch event {
		case eventPageLanded, eventPageFailed:
			return ReplyExpanded, true
		}
	}
	return phase, false
}

// replyState is the per-root-comment reply list: an independently paginated
// sub-list keyed by an opaque numeric cursor, oldest-loaded-first.
type replyState struct {
	phase   ReplyPhase
	loaded  bool
	items   []model.Comment
	cursor  *int64
	hasMore bool
}

func newReplyState() *replyState {
	return &replyState{
		phase:   ReplyCollapsed,
		hasMore: true,
	}
}

func (state *replyState) contains(id int64) bool {
	for _, item := range state.items {
		if item.Id == id {
			return true
		}
	}
	return false
}

// appendPage merges one fetched page. Replies already present are skipped so
// a duplicated trigger never grows the list. A cursor alongside an empty
// page, or hasMore with an empty page, is read as exhaustion to rule out an
// infinite fetch loop.
func (state *replyState) appendPage(response model.ReplyListResponse) {
	added := 0
	for _, reply := range response.Replies {
		comment := reply.ToComment()
		if state.contains(comment.Id) {
			continue
		}
		state.items = append(state.items, comment)
		added++
	}

	state.cursor = response.NextCursor
	state.hasMore = response.HasMore && response.NextCursor != nil && added > 0
	state.loaded = true
}

// ReplyView is the read-only snapshot handed to the UI layer.
type ReplyView struct {
	Phase   ReplyPhase
	Items   []model.Comment
	HasMore bool
}
