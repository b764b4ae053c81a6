package constant

const (
	DEFAULT_COMMENT_LIMIT = 10
	DEFAULT_REPLY_LIMIT   = 5
	MAX_LIMIT             = 50
	MAX_COMMENT_LENGTH    = 500
)
