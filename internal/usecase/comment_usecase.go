package usecase

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/fitfeed-app/fitfeed-go/internal/constant"
	"github.com/fitfeed-app/fitfeed-go/internal/model"
	"github.com/fitfeed-app/fitfeed-go/internal/pagination"
	"github.com/google/uuid"
	"github.com/knadh/koanf/v2"
	"go.uber.org/zap"
)

// CommentGateway is the transport surface the usecase depends on, satisfied
// by repository.CommentRepository.
type CommentGateway interface {
	ListComments(ctx context.Context, resourceId int64, page int, limit int) (model.CommentListResponse, error)
	ListReplies(ctx context.Context, commentId int64, cursor *int64, limit int) (model.ReplyListResponse, error)
	CreateComment(ctx context.Context, resourceId int64, content string, parentCommentId *int64) (model.Comment, error)
	UpdateComment(ctx context.Context, commentId int64, content string) (model.Comment, error)
	DeleteComment(ctx context.Context, commentId int64) error
	ToggleLike(ctx context.Context, commentId int64) (model.LikeResponse, error)
}

// CommentUsecase owns the comment tree for one resource (a workout post):
// the paginated root list plus one reply sub-list per expanded root comment.
// All writes go through it; UI layers read snapshots and dispatch intents.
// Creates and like toggles are optimistic with rollback, edits and deletes
// mutate the tree only after the server confirms.
type CommentUsecase struct {
	CommentRepository CommentGateway
	Log               *zap.Logger
	Config            *koanf.Koanf
	Viewer            *model.Viewer
	ResourceId        int64

	roots *pagination.Accumulator[model.Comment]

	mu      sync.Mutex
	replies map[int64]*replyState
	pending map[uuid.UUID]bool
	liking  map[int64]bool
	editing map[int64]bool
	busy    map[int64]bool
	gen     uint64
}

func NewCommentUsecase(commentRepository CommentGateway, zap *zap.Logger, koanf *koanf.Koanf, viewer *model.Viewer, resourceId int64) *CommentUsecase {
	usecase := &CommentUsecase{
		CommentRepository: commentRepository,
		Log:               zap,
		Config:            koanf,
		Viewer:            viewer,
		ResourceId:        resourceId,
		replies:           map[int64]*replyState{},
		pending:           map[uuid.UUID]bool{},
		liking:            map[int64]bool{},
		editing:           map[int64]bool{},
		busy:              map[int64]bool{},
	}

	usecase.roots = pagination.NewAccumulator(usecase.rootFetcher(), func(comment model.Comment) any {
		// Pending records are keyed by their LocalId so two submissions in
		// flight at once stay distinct.
		if comment.IsPending() {
			return comment.LocalId
		}
		return comment.Id
	})

	return usecase
}

// Close tears the tree down. Responses still in flight are discarded instead
// of being applied to a dead tree.
func (usecase *CommentUsecase) Close() {
	usecase.mu.Lock()
	usecase.gen++
	usecase.replies = map[int64]*replyState{}
	usecase.pending = map[uuid.UUID]bool{}
	usecase.liking = map[int64]bool{}
	usecase.editing = map[int64]bool{}
	usecase.busy = map[int64]bool{}
	usecase.mu.Unlock()

	usecase.roots.Invalidate()
}

func (usecase *CommentUsecase) Authenticated() bool {
	return usecase.Viewer != nil
}

// ---- root list ----

// LoadRoots resets the root list and fetches page 1.
func (usecase *CommentUsecase) LoadRoots(ctx context.Context) error {
	return usecase.roots.Load(ctx, true)
}

// LoadMoreRoots fetches the next root page. No-op while a fetch is in flight
// or after exhaustion.
func (usecase *CommentUsecase) LoadMoreRoots(ctx context.Context) error {
	return usecase.roots.Load(ctx, false)
}

// TriggerMoreRoots is the debounced scroll-edge handle for the root list.
func (usecase *CommentUsecase) TriggerMoreRoots(ctx context.Context, report func(error)) {
	usecase.roots.Trigger(ctx, report)
}

// RefreshRoots reloads the root list from page 1. Optimistic records still
// waiting on the server are re-inserted at the head; records that were
// already rolled back stay gone.
func (usecase *CommentUsecase) RefreshRoots(ctx context.Context) error {
	carried := []model.Comment{}
	usecase.mu.Lock()
	for _, comment := range usecase.roots.Items() {
		if comment.IsPending() && usecase.pending[comment.LocalId] {
			carried = append(carried, comment)
		}
	}
	usecase.mu.Unlock()

	err := usecase.roots.Load(ctx, true)
	if err != nil {
		return err
	}

	usecase.mu.Lock()
	defer usecase.mu.Unlock()
	for i := len(carried) - 1; i >= 0; i-- {
		if usecase.pending[carried[i].LocalId] {
			usecase.roots.PrependUnique(carried[i])
		}
	}

	return nil
}

func (usecase *CommentUsecase) Roots() []model.Comment {
	return usecase.roots.Items()
}

func (usecase *CommentUsecase) RootsLoading() bool {
	return usecase.roots.Loading()
}

func (usecase *CommentUsecase) RootsHasMore() bool {
	return usecase.roots.HasMore()
}

func (usecase *CommentUsecase) RootsFetched() bool {
	return usecase.roots.Fetched()
}

// rootFetcher adapts the page-numbered root listing endpoint to the
// accumulator's cursor contract: the cursor string carries the next page
// number.
func (usecase *CommentUsecase) rootFetcher() pagination.Fetcher[model.Comment] {
	return func(ctx context.Context, cursor *string) (pagination.Page[model.Comment], error) {
		page := 1
		if cursor != nil {
			parsed, err := strconv.Atoi(*cursor)
			if err != nil {
				return pagination.Page[model.Comment]{}, err
			}
			page = parsed
		}

		limit := usecase.rootLimit()
		response, err := usecase.CommentRepository.ListComments(ctx, usecase.ResourceId, page, limit)
		if err != nil {
			return pagination.Page[model.Comment]{}, err
		}

		comments := make([]model.Comment, 0, len(response.Comments))
		for _, wire := range response.Comments {
			comments = append(comments, wire.ToComment())
		}

		return pageSizeHasMore(comments, page, limit), nil
	}
}

// pageSizeHasMore infers whether another root page exists from the returned
// count: the root listing endpoint has no hasMore field, so a full page is
// read as "probably more". Kept as one named policy so a backend contract
// change touches only this function.
func pageSizeHasMore(comments []model.Comment, page int, limit int) pagination.Page[model.Comment] {
	result := pagination.Page[model.Comment]{Items: comments}
	if len(comments) == limit {
		next := strconv.Itoa(page + 1)
		result.NextCursor = &next
		result.HasMore = true
	}
	return result
}

func (usecase *CommentUsecase) rootLimit() int {
	return usecase.limitFor("FITFEED_COMMENT_LIMIT", constant.DEFAULT_COMMENT_LIMIT)
}

func (usecase *CommentUsecase) replyLimit() int {
	return usecase.limitFor("FITFEED_REPLY_LIMIT", constant.DEFAULT_REPLY_LIMIT)
}

func (usecase *CommentUsecase) limitFor(key string, fallback int) int {
	limit := usecase.Config.Int(key)
	if limit <= 0 {
		limit = fallback
	}
	if limit > constant.MAX_LIMIT {
		limit = constant.MAX_LIMIT
	}
	return limit
}

// ---- replies ----

// ExpandReplies opens the reply panel for a root comment, fetching the first
// page on first expansion. A panel whose items are already loaded re-opens
// without a network call.
func (usecase *CommentUsecase) ExpandReplies(ctx context.Context, commentId int64) error {
	usecase.mu.Lock()
	state := usecase.ensureReplyStateLocked(commentId)
	next, ok := transitionReply(state.phase, eventExpand, state.loaded, state.hasMore)
	if !ok {
		usecase.mu.Unlock()
		return nil
	}
	state.phase = next
	if next == ReplyExpanded {
		usecase.mu.Unlock()
		return nil
	}
	cursor := state.cursor
	gen := usecase.gen
	usecase.mu.Unlock()

	response, err := usecase.CommentRepository.ListReplies(ctx, commentId, cursor, usecase.replyLimit())

	usecase.mu.Lock()
	defer usecase.mu.Unlock()
	if gen != usecase.gen {
		return nil
	}

	if err != nil {
		state.phase, _ = transitionReply(state.phase, eventPageFailed, state.loaded, state.hasMore)
		return err
	}

	state.appendPage(response)
	state.phase, _ = transitionReply(state.phase, eventPageLanded, state.loaded, state.hasMore)
	return nil
}

// CollapseReplies closes the panel without discarding loaded replies.
func (usecase *CommentUsecase) CollapseReplies(commentId int64) {
	usecase.mu.Lock()
	defer usecase.mu.Unlock()

	state, ok := usecase.replies[commentId]
	if !ok {
		return
	}

	next, ok := transitionReply(state.phase, eventCollapse, state.loaded, state.hasMore)
	if ok {
		state.phase = next
	}
}

// LoadMoreReplies fetches the next reply page. No-op unless the panel is
// expanded with more replies remaining and no fetch outstanding.
func (usecase *CommentUsecase) LoadMoreReplies(ctx context.Context, commentId int64) error {
	usecase.mu.Lock()
	state, ok := usecase.replies[commentId]
	if !ok {
		usecase.mu.Unlock()
		return nil
	}

	next, ok := transitionReply(state.phase, eventLoadMore, state.loaded, state.hasMore)
	if !ok {
		usecase.mu.Unlock()
		return nil
	}
	state.phase = next
	cursor := state.cursor
	gen := usecase.gen
	usecase.mu.Unlock()

	response, err := usecase.CommentRepository.ListReplies(ctx, commentId, cursor, usecase.replyLimit())

	usecase.mu.Lock()
	defer usecase.mu.Unlock()
	if gen != usecase.gen {
		return nil
	}

	if err != nil {
		state.hasMore = false
		state.phase, _ = transitionReply(state.phase, eventPageFailed, state.loaded, state.hasMore)
		return err
	}

	state.appendPage(response)
	state.phase, _ = transitionReply(state.phase, eventPageLanded, state.loaded, state.hasMore)
	return nil
}

// ReplyViewOf returns a snapshot of a root comment's reply panel.
func (usecase *CommentUsecase) ReplyViewOf(commentId int64) ReplyView {
	usecase.mu.Lock()
	defer usecase.mu.Unlock()

	state, ok := usecase.replies[commentId]
	if !ok {
		return ReplyView{Phase: ReplyCollapsed, HasMore: true}
	}

	items := make([]model.Comment, len(state.items))
	copy(items, state.items)

	return ReplyView{
		Phase:   state.phase,
		Items:   items,
		HasMore: state.hasMore,
	}
}

func (usecase *CommentUsecase) ensureReplyStateLocked(commentId int64) *replyState {
	state, ok := usecase.replies[commentId]
	if !ok {
		state = newReplyState()
		usecase.replies[commentId] = state
	}
	return state
}

// ---- optimistic creates ----

// SubmitRoot posts a top-level comment. The pending record is visible at the
// head of the root list before the request is issued; on success it is
// replaced by the server record and the list is refreshed from page 1, on
// failure it is removed again.
func (usecase *CommentUsecase) SubmitRoot(ctx context.Context, content string) error {
	viewer, err := usecase.requireViewer()
	if err != nil {
		return err
	}
	err = validateContent(content)
	if err != nil {
		return err
	}

	pendingComment := usecase.newPendingComment(viewer, content)
	localId := pendingComment.LocalId

	usecase.mu.Lock()
	usecase.pending[localId] = true
	gen := usecase.gen
	usecase.mu.Unlock()

	usecase.roots.Prepend(pendingComment)

	created, err := usecase.CommentRepository.CreateComment(ctx, usecase.ResourceId, content, nil)

	usecase.mu.Lock()
	if gen != usecase.gen {
		usecase.mu.Unlock()
		return nil
	}
	delete(usecase.pending, localId)
	usecase.mu.Unlock()

	if err != nil {
		usecase.roots.Remove(func(c model.Comment) bool { return c.LocalId == localId })
		return err
	}

	// A concurrent refresh may have rebuilt the array and may even have
	// brought in the server's copy already. Reconcile by LocalId, never by
	// content, and make sure the authoritative record ends up exactly once.
	_, alreadyListed := usecase.roots.Find(func(c model.Comment) bool { return c.Id == created.Id })
	if alreadyListed {
		usecase.roots.Remove(func(c model.Comment) bool { return c.LocalId == localId })
	} else if !usecase.roots.Replace(func(c model.Comment) bool { return c.LocalId == localId }, created) {
		usecase.roots.PrependUnique(created)
	}

	// Resync ordering and counts with the server. A failure here is a
	// background read failure: the create already succeeded, so stay quiet.
	err = usecase.RefreshRoots(ctx)
	if err != nil {
		usecase.Log.Debug("root refresh after create failed", zap.Error(err))
	}

	return nil
}

// SubmitReply posts a reply under a root comment. The pending record lands
// at the head of the parent's reply list and the parent's reply counter is
// bumped before the request; both are reverted on failure.
func (usecase *CommentUsecase) SubmitReply(ctx context.Context, parentCommentId int64, content string) error {
	viewer, err := usecase.requireViewer()
	if err != nil {
		return err
	}
	err = validateContent(content)
	if err != nil {
		return err
	}

	_, ok := usecase.roots.Find(func(c model.Comment) bool { return c.Id == parentCommentId })
	if !ok {
		return &model.ValidationError{
			Code:    constant.ERR_VALIDATION_CODE,
			Message: "Comment to reply to was not found",
			Param:   "parentCommentId",
		}
	}

	pendingComment := usecase.newPendingComment(viewer, content)
	localId := pendingComment.LocalId

	usecase.mu.Lock()
	state := usecase.ensureReplyStateLocked(parentCommentId)
	state.items = append([]model.Comment{pendingComment}, state.items...)
	usecase.pending[localId] = true
	gen := usecase.gen
	usecase.mu.Unlock()

	usecase.roots.Update(
		func(c model.Comment) bool { return c.Id == parentCommentId },
		func(c *model.Comment) { c.ChildCount++ },
	)

	created, err := usecase.CommentRepository.CreateComment(ctx, usecase.ResourceId, content, &parentCommentId)

	usecase.mu.Lock()
	defer usecase.mu.Unlock()
	if gen != usecase.gen {
		return nil
	}
	delete(usecase.pending, localId)

	if err != nil {
		for i, item := range state.items {
			if item.LocalId == localId {
				state.items = append(state.items[:i], state.items[i+1:]...)
				break
			}
		}
		usecase.roots.Update(
			func(c model.Comment) bool { return c.Id == parentCommentId },
			func(c *model.Comment) { c.ChildCount-- },
		)
		return err
	}

	if state.contains(created.Id) {
		for i, item := range state.items {
			if item.LocalId == localId {
				state.items = append(state.items[:i], state.items[i+1:]...)
				break
			}
		}
		return nil
	}

	replaced := false
	for i, item := range state.items {
		if item.LocalId == localId {
			state.items[i] = created
			replaced = true
			break
		}
	}
	if !replaced {
		state.items = append([]model.Comment{created}, state.items...)
	}

	return nil
}

func (usecase *CommentUsecase) newPendingComment(viewer *model.Viewer, content string) model.Comment {
	return model.Comment{
		Id:        model.PendingCommentId,
		LocalId:   uuid.New(),
		Content:   content,
		CreatedAt: time.Now().UTC(),
		Author:    viewer.Author(),
	}
}

// ---- like toggle ----

// ToggleLike flips the viewer's like optimistically and reconciles with the
// server's authoritative count, which may differ from the local guess under
// concurrent likes. While a toggle is in flight further toggles for the
// same comment are rejected.
func (usecase *CommentUsecase) ToggleLike(ctx context.Context, commentId int64) error {
	_, err := usecase.requireViewer()
	if err != nil {
		return err
	}

	usecase.mu.Lock()
	if usecase.liking[commentId] || usecase.busy[commentId] {
		usecase.mu.Unlock()
		return nil
	}
	usecase.liking[commentId] = true
	gen := usecase.gen
	usecase.mu.Unlock()

	snapshot, ok := usecase.findComment(commentId)
	if !ok || snapshot.IsPending() {
		usecase.mu.Lock()
		delete(usecase.liking, commentId)
		usecase.mu.Unlock()
		return &model.ValidationError{
			Code:    constant.ERR_VALIDATION_CODE,
			Message: "Comment was not found",
			Param:   "commentId",
		}
	}

	usecase.updateComment(commentId, func(c *model.Comment) {
		if c.IsLiked {
			c.IsLiked = false
			c.LikeCount--
		} else {
			c.IsLiked = true
			c.LikeCount++
		}
	})

	response, err := usecase.CommentRepository.ToggleLike(ctx, commentId)

	usecase.mu.Lock()
	delete(usecase.liking, commentId)
	stale := gen != usecase.gen
	usecase.mu.Unlock()
	if stale {
		return nil
	}

	if err != nil {
		// Restore the exact pre-toggle snapshot.
		usecase.updateComment(commentId, func(c *model.Comment) {
			c.IsLiked = snapshot.IsLiked
			c.LikeCount = snapshot.LikeCount
		})
		return err
	}

	usecase.updateComment(commentId, func(c *model.Comment) {
		c.IsLiked = response.IsLiked
		c.LikeCount = response.LikeCount
	})

	return nil
}

// ---- edit and delete (confirmed, not optimistic) ----

// StartEdit opens an edit session. The like button and menu stay blocked
// for the comment until the edit is committed or cancelled.
func (usecase *CommentUsecase) StartEdit(commentId int64) error {
	_, err := usecase.requireViewer()
	if err != nil {
		return err
	}

	comment, ok := usecase.findComment(commentId)
	if !ok || comment.IsPending() {
		return &model.ValidationError{
			Code:    constant.ERR_VALIDATION_CODE,
			Message: "Comment was not found",
			Param:   "commentId",
		}
	}

	usecase.mu.Lock()
	defer usecase.mu.Unlock()
	if usecase.busy[commentId] {
		return &model.ValidationError{
			Code:    constant.ERR_VALIDATION_CODE,
			Message: "Another change for this comment is still in progress",
			Param:   "commentId",
		}
	}
	usecase.editing[commentId] = true
	return nil
}

func (usecase *CommentUsecase) CancelEdit(commentId int64) {
	usecase.mu.Lock()
	defer usecase.mu.Unlock()
	delete(usecase.editing, commentId)
}

// CommitEdit sends the new content and only rewrites the tree after the
// server confirms. On failure the displayed content is left untouched and
// the edit session stays open.
func (usecase *CommentUsecase) CommitEdit(ctx context.Context, commentId int64, content string) error {
	err := validateContent(content)
	if err != nil {
		return err
	}

	usecase.mu.Lock()
	if !usecase.editing[commentId] {
		usecase.mu.Unlock()
		return &model.ValidationError{
			Code:    constant.ERR_VALIDATION_CODE,
			Message: "No edit in progress for this comment",
			Param:   "commentId",
		}
	}
	if usecase.busy[commentId] {
		usecase.mu.Unlock()
		return nil
	}
	usecase.busy[commentId] = true
	gen := usecase.gen
	usecase.mu.Unlock()

	updated, err := usecase.CommentRepository.UpdateComment(ctx, commentId, content)

	usecase.mu.Lock()
	delete(usecase.busy, commentId)
	stale := gen != usecase.gen
	if err == nil && !stale {
		delete(usecase.editing, commentId)
	}
	usecase.mu.Unlock()

	if stale {
		return nil
	}
	if err != nil {
		return err
	}

	usecase.updateComment(commentId, func(c *model.Comment) {
		c.Content = updated.Content
	})

	return nil
}

func (usecase *CommentUsecase) IsEditing(commentId int64) bool {
	usecase.mu.Lock()
	defer usecase.mu.Unlock()
	return usecase.editing[commentId]
}

// IsBusy reports whether a like, edit or delete request for the comment is
// in flight; the UI disables the comment's controls for the duration.
func (usecase *CommentUsecase) IsBusy(commentId int64) bool {
	usecase.mu.Lock()
	defer usecase.mu.Unlock()
	return usecase.busy[commentId] || usecase.liking[commentId]
}

// Remove deletes a comment after server confirmation. Roots take their reply
// panel with them; removing a reply decrements the parent's counter.
func (usecase *CommentUsecase) Remove(ctx context.Context, commentId int64) error {
	_, err := usecase.requireViewer()
	if err != nil {
		return err
	}

	comment, ok := usecase.findComment(commentId)
	if !ok || comment.IsPending() {
		return &model.ValidationError{
			Code:    constant.ERR_VALIDATION_CODE,
			Message: "Comment was not found",
			Param:   "commentId",
		}
	}

	usecase.mu.Lock()
	if usecase.busy[commentId] || usecase.liking[commentId] {
		usecase.mu.Unlock()
		return nil
	}
	usecase.busy[commentId] = true
	gen := usecase.gen
	usecase.mu.Unlock()

	err = usecase.CommentRepository.DeleteComment(ctx, commentId)

	usecase.mu.Lock()
	delete(usecase.busy, commentId)
	stale := gen != usecase.gen
	usecase.mu.Unlock()

	if stale {
		return nil
	}
	if err != nil {
		return err
	}

	if usecase.roots.Remove(func(c model.Comment) bool { return c.Id == commentId }) {
		usecase.mu.Lock()
		delete(usecase.replies, commentId)
		delete(usecase.editing, commentId)
		usecase.mu.Unlock()
		return nil
	}

	usecase.mu.Lock()
	var parentId int64
	found := false
	for id, state := range usecase.replies {
		for i, item := range state.items {
			if item.Id == commentId {
				state.items = append(state.items[:i], state.items[i+1:]...)
				parentId = id
				found = true
				break
			}
		}
		if found {
			break
		}
	}
	delete(usecase.editing, commentId)
	usecase.mu.Unlock()

	if found {
		usecase.roots.Update(
			func(c model.Comment) bool { return c.Id == parentId },
			func(c *model.Comment) { c.ChildCount-- },
		)
	}

	return nil
}

// ---- shared helpers ----

func (usecase *CommentUsecase) requireViewer() (*model.Viewer, error) {
	if usecase.Viewer == nil {
		return nil, &model.ValidationError{
			Code:    constant.ERR_UNATHORIZED_ERROR,
			Message: "Sign in to interact with comments",
			Param:   "viewer",
		}
	}
	return usecase.Viewer, nil
}

func validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return &model.ValidationError{
			Code:    constant.ERR_VALIDATION_CODE,
			Message: "Comment can not be empty",
			Param:   "content",
		}
	}
	if utf8.RuneCountInString(content) > constant.MAX_COMMENT_LENGTH {
		return &model.ValidationError{
			Code:    constant.ERR_VALIDATION_CODE,
			Message: "Comment can not exceed 500 characters",
			Param:   "content",
		}
	}
	return nil
}

// findComment looks a comment up by id across the root list and every reply
// list.
func (usecase *CommentUsecase) findComment(commentId int64) (model.Comment, bool) {
	comment, ok := usecase.roots.Find(func(c model.Comment) bool { return c.Id == commentId })
	if ok {
		return comment, true
	}

	usecase.mu.Lock()
	defer usecase.mu.Unlock()
	for _, state := range usecase.replies {
		for _, item := range state.items {
			if item.Id == commentId {
				return item, true
			}
		}
	}
	return model.Comment{}, false
}

func (usecase *CommentUsecase) updateComment(commentId int64, apply func(*model.Comment)) bool {
	if usecase.roots.Update(func(c model.Comment) bool { return c.Id == commentId }, apply) {
		return true
	}

	usecase.mu.Lock()
	defer usecase.mu.Unlock()
	for _, state := range usecase.replies {
		for i := range state.items {
			if state.items[i].Id == commentId {
				apply(&state.items[i])
				return true
			}
		}
	}
	return false
}
