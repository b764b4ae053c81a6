package model

// Viewer identifies the authenticated user on whose behalf optimistic
// records are built. A nil *Viewer means the session is anonymous and all
// write operations are rejected before any network call.
type Viewer struct {
	Id          int64
	DisplayName string
	AvatarRef   string
}

func (v *Viewer) Author() CommentAuthor {
	return CommentAuthor{
		Id:          v.Id,
		DisplayName: v.DisplayName,
		AvatarRef:   v.AvatarRef,
	}
}
