package model

import "time"

// CommentResponse is the wire shape of a single comment as returned by the
// FitFeed API. IsLiked is only present for authenticated viewers and
// ChildCommentsCount only on root comments.
type CommentResponse struct {
	Id                 int64         `json:"id"`
	Content            string        `json:"content"`
	LikeCount          int           `json:"likeCount"`
	CreatedAt          time.Time     `json:"createdAt"`
	IsLiked            *bool         `json:"isLiked,omitempty"`
	User               CommentAuthor `json:"user"`
	ChildCommentsCount *int          `json:"childCommentsCount,omitempty"`
}

func (r CommentResponse) ToComment() Comment {
	comment := Comment{
		Id:        r.Id,
		Content:   r.Content,
		LikeCount: r.LikeCount,
		CreatedAt: r.CreatedAt,
		Author:    r.User,
	}

	if r.IsLiked != nil {
		comment.IsLiked = *r.IsLiked
	}
	if r.ChildCommentsCount != nil {
		comment.ChildCount = *r.ChildCommentsCount
	}

	return comment
}

type CommentListResponse struct {
	Comments   []CommentResponse `json:"comments"`
	TotalCount int               `json:"totalCount"`
}

type ReplyListResponse struct {
	Replies    []CommentResponse `json:"replies"`
	NextCursor *int64            `json:"nextCursor"`
	HasMore    bool              `json:"hasMore"`
}

type CreateCommentRequest struct {
	Content         string `json:"content"`
	ParentCommentId *int64 `json:"parentCommentId,omitempty"`
}

type UpdateCommentRequest struct {
	Content string `json:"content"`
}

type CommentEnvelope struct {
	Comment CommentResponse `json:"comment"`
}

type LikeResponse struct {
	IsLiked   bool `json:"isLiked"`
	LikeCount int  `json:"likeCount"`
}
