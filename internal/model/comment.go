package model

import (
	"time"

	"github.com/google/uuid"
)

// PendingCommentId marks a comment that has not been assigned an id by the
// server yet. Pending comments additionally carry a unique LocalId so that
// two submissions in flight at the same time never collide during
// reconciliation.
const PendingCommentId int64 = -1

type CommentAuthor struct {
	Id          int64  `json:"id"`
	DisplayName string `json:"displayName"`
	AvatarRef   string `json:"avatarRef"`
}

type Comment struct {
	Id         int64
	LocalId    uuid.UUID
	Content    string
	LikeCount  int
	IsLiked    bool
	CreatedAt  time.Time
	Author     CommentAuthor
	ChildCount int
}

func (c Comment) IsPending() bool {
	return c.Id == PendingCommentId
}
