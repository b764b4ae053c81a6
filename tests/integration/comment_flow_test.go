package integration

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/knadh/koanf/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fitfeed-app/fitfeed-go/internal/model"
	"github.com/fitfeed-app/fitfeed-go/internal/repository"
	"github.com/fitfeed-app/fitfeed-go/internal/usecase"
)

// fitfeedServer is an in-memory stand-in for the FitFeed comment API,
// implementing the same endpoints and envelopes the real backend serves.
type fitfeedServer struct {
	mu     sync.Mutex
	nextId int64
	roots  []*storedComment
}

type storedComment struct {
	model.CommentResponse
	likedBy map[string]bool
	replies []*storedComment
}

func newFitfeedServer() *fitfeedServer {
	return &fitfeedServer{nextId: 1000}
}

func (s *fitfeedServer) seed(count int, repliesEach int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < count; i++ {
		root := s.newCommentLocked("seed comment "+strconv.Itoa(i+1), model.CommentAuthor{Id: 2, DisplayName: "coach"})
		for j := 0; j < repliesEach; j++ {
			root.replies = append(root.replies, s.newCommentLocked("seed reply "+strconv.Itoa(j+1), model.CommentAuthor{Id: 3, DisplayName: "buddy"}))
		}
		s.roots = append(s.roots, root)
	}
}

func (s *fitfeedServer) newCommentLocked(content string, author model.CommentAuthor) *storedComment {
	s.nextId++
	return &storedComment{
		CommentResponse: model.CommentResponse{
			Id:        s.nextId,
			Content:   content,
			CreatedAt: time.Now().UTC(),
			User:      author,
		},
		likedBy: map[string]bool{},
	}
}

func (s *fitfeedServer) find(id int64) (*storedComment, *storedComment) {
	for _, root := range s.roots {
		if root.Id == id {
			return root, nil
		}
		for _, reply := range root.replies {
			if reply.Id == id {
				return reply, root
			}
		}
	}
	return nil, nil
}

func (s *fitfeedServer) wire(comment *storedComment, viewer string, withChildren bool) model.CommentResponse {
	out := comment.CommentResponse
	out.LikeCount = len(comment.likedBy)
	liked := comment.likedBy[viewer]
	out.IsLiked = &liked
	if withChildren {
		children := len(comment.replies)
		out.ChildCommentsCount = &children
	}
	return out
}

func (s *fitfeedServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/resource/42/comments", s.handleRootList)
	mux.HandleFunc("/comments/", s.handleComment)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	body, _ := sonic.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

func viewerOf(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func (s *fitfeedServer) handleRootList(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	viewer := viewerOf(r)

	if r.Method == http.MethodPost {
		if viewer == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
				"error": map[string]string{"code": "UNAUTHORIZED", "message": "Sign in first"},
			})
			return
		}

		request := model.CreateCommentRequest{}
		if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&request); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{
				"error": map[string]string{"code": "BAD_REQUEST", "message": err.Error()},
			})
			return
		}

		created := s.newCommentLocked(request.Content, model.CommentAuthor{Id: 7, DisplayName: viewer})
		if request.ParentCommentId != nil {
			parent, _ := s.find(*request.ParentCommentId)
			if parent == nil {
				writeJSON(w, http.StatusNotFound, map[string]interface{}{
					"error": map[string]string{"code": "NOT_FOUND", "message": "Parent comment not found"},
				})
				return
			}
			parent.replies = append([]*storedComment{created}, parent.replies...)
		} else {
			s.roots = append([]*storedComment{created}, s.roots...)
		}

		writeJSON(w, http.StatusCreated, model.CommentEnvelope{Comment: s.wire(created, viewer, true)})
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if page < 1 {
		page = 1
	}

	response := model.CommentListResponse{TotalCount: len(s.roots)}
	start := (page - 1) * limit
	for i := start; i < start+limit && i < len(s.roots); i++ {
		response.Comments = append(response.Comments, s.wire(s.roots[i], viewer, true))
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *fitfeedServer) handleComment(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	viewer := viewerOf(r)
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/comments/"), "/")
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	comment, parent := s.find(id)
	if comment == nil {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{
			"error": map[string]string{"code": "NOT_FOUND", "message": "Comment not found"},
		})
		return
	}

	switch {
	case len(parts) == 2 && parts[1] == "replies" && r.Method == http.MethodGet:
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		start := 0
		if raw := r.URL.Query().Get("cursor"); raw != "" {
			start, _ = strconv.Atoi(raw)
		}

		response := model.ReplyListResponse{}
		for i := start; i < start+limit && i < len(comment.replies); i++ {
			response.Replies = append(response.Replies, s.wire(comment.replies[i], viewer, false))
		}
		if start+limit < len(comment.replies) {
			next := int64(start + limit)
			response.NextCursor = &next
			response.HasMore = true
		}
		writeJSON(w, http.StatusOK, response)

	case len(parts) == 2 && parts[1] == "like" && r.Method == http.MethodPost:
		if comment.likedBy[viewer] {
			delete(comment.likedBy, viewer)
		} else {
			comment.likedBy[viewer] = true
		}
		writeJSON(w, http.StatusOK, model.LikeResponse{
			IsLiked:   comment.likedBy[viewer],
			LikeCount: len(comment.likedBy),
		})

	case len(parts) == 1 && r.Method == http.MethodPut:
		request := model.UpdateCommentRequest{}
		if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&request); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{
				"error": map[string]string{"code": "BAD_REQUEST", "message": err.Error()},
			})
			return
		}
		comment.Content = request.Content
		writeJSON(w, http.StatusOK, model.CommentEnvelope{Comment: s.wire(comment, viewer, true)})

	case len(parts) == 1 && r.Method == http.MethodDelete:
		if parent != nil {
			for i, reply := range parent.replies {
				if reply.Id == id {
					parent.replies = append(parent.replies[:i], parent.replies[i+1:]...)
					break
				}
			}
		} else {
			for i, root := range s.roots {
				if root.Id == id {
					s.roots = append(s.roots[:i], s.roots[i+1:]...)
					break
				}
			}
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.NotFound(w, r)
	}
}

func newCommentUsecase(t *testing.T, server *fitfeedServer) *usecase.CommentUsecase {
	t.Helper()

	httpServer := httptest.NewServer(server.handler())
	t.Cleanup(httpServer.Close)

	cfg := koanf.New(".")
	require.NoError(t, cfg.Set("FITFEED_BASE_URL", httpServer.URL))
	require.NoError(t, cfg.Set("FITFEED_ACCESS_TOKEN", "runner7"))
	require.NoError(t, cfg.Set("FITFEED_COMMENT_LIMIT", 10))
	require.NoError(t, cfg.Set("FITFEED_REPLY_LIMIT", 5))

	log := zap.NewNop()
	repo := repository.NewCommentRepository(log, cfg, httpServer.Client())
	viewer := &model.Viewer{Id: 7, DisplayName: "runner7"}

	uc := usecase.NewCommentUsecase(repo, log, cfg, viewer, 42)
	t.Cleanup(uc.Close)
	return uc
}

func TestCommentFlow(t *testing.T) {
	server := newFitfeedServer()
	server.seed(25, 8)
	uc := newCommentUsecase(t, server)
	ctx := context.Background()

	t.Log("browse: first page of root comments")
	require.NoError(t, uc.LoadRoots(ctx))
	require.Len(t, uc.Roots(), 10, "first page should hold ten root comments")
	require.True(t, uc.RootsHasMore())

	t.Log("browse: scroll through the remaining pages")
	require.NoError(t, uc.LoadMoreRoots(ctx))
	require.NoError(t, uc.LoadMoreRoots(ctx))
	require.Len(t, uc.Roots(), 25)
	require.False(t, uc.RootsHasMore(), "twenty five comments fit in three pages")

	t.Log("expand: open a reply panel and page through it")
	first := uc.Roots()[0]
	require.Equal(t, 8, first.ChildCount)
	require.NoError(t, uc.ExpandReplies(ctx, first.Id))
	view := uc.ReplyViewOf(first.Id)
	require.Equal(t, usecase.ReplyExpanded, view.Phase)
	require.Len(t, view.Items, 5)
	require.True(t, view.HasMore)

	require.NoError(t, uc.LoadMoreReplies(ctx, first.Id))
	view = uc.ReplyViewOf(first.Id)
	require.Len(t, view.Items, 8)
	require.False(t, view.HasMore)

	t.Log("post: a new root comment lands at the head with a server id")
	require.NoError(t, uc.SubmitRoot(ctx, "crushed my 10k today"))
	// A successful create refreshes the list from page 1 to pick up the
	// server's ordering, so the scroll position resets to the first page.
	roots := uc.Roots()
	require.Equal(t, "crushed my 10k today", roots[0].Content)
	require.False(t, roots[0].IsPending())
	require.Len(t, roots, 10)
	require.True(t, uc.RootsHasMore())

	t.Log("reply: posting under the new comment bumps its counter")
	newRootId := roots[0].Id
	require.NoError(t, uc.SubmitReply(ctx, newRootId, "congrats!"))
	view = uc.ReplyViewOf(newRootId)
	require.Len(t, view.Items, 1)
	require.False(t, view.Items[0].IsPending())
	parent, ok := findRoot(uc, newRootId)
	require.True(t, ok)
	require.Equal(t, 1, parent.ChildCount)

	t.Log("like: toggling twice returns to the starting state")
	require.NoError(t, uc.ToggleLike(ctx, newRootId))
	parent, _ = findRoot(uc, newRootId)
	require.True(t, parent.IsLiked)
	require.Equal(t, 1, parent.LikeCount)

	require.NoError(t, uc.ToggleLike(ctx, newRootId))
	parent, _ = findRoot(uc, newRootId)
	require.False(t, parent.IsLiked)
	require.Equal(t, 0, parent.LikeCount)

	t.Log("edit: committed content replaces the original")
	require.NoError(t, uc.StartEdit(newRootId))
	require.NoError(t, uc.CommitEdit(ctx, newRootId, "crushed my 10k today, new PB"))
	parent, _ = findRoot(uc, newRootId)
	require.Equal(t, "crushed my 10k today, new PB", parent.Content)
	require.False(t, uc.IsEditing(newRootId))

	t.Log("delete: removing the reply restores the counter")
	replyId := uc.ReplyViewOf(newRootId).Items[0].Id
	require.NoError(t, uc.Remove(ctx, replyId))
	require.Empty(t, uc.ReplyViewOf(newRootId).Items)
	parent, _ = findRoot(uc, newRootId)
	require.Equal(t, 0, parent.ChildCount)

	t.Log("delete: removing the root drops it from the list")
	require.NoError(t, uc.Remove(ctx, newRootId))
	_, ok = findRoot(uc, newRootId)
	require.False(t, ok)
	require.Len(t, uc.Roots(), 9)
}

func TestCommentFlowRefreshKeepsServerOrdering(t *testing.T) {
	server := newFitfeedServer()
	server.seed(3, 0)
	uc := newCommentUsecase(t, server)
	ctx := context.Background()

	require.NoError(t, uc.LoadRoots(ctx))
	require.NoError(t, uc.SubmitRoot(ctx, "newest"))

	// The backend serves newest-first, so after the post-create refresh the
	// new comment leads the list.
	roots := uc.Roots()
	require.Equal(t, "newest", roots[0].Content)
	require.Len(t, roots, 4)
}

func findRoot(uc *usecase.CommentUsecase, id int64) (model.Comment, bool) {
	for _, comment := range uc.Roots() {
		if comment.Id == id {
			return comment, true
		}
	}
	return model.Comment{}, false
}
