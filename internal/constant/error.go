package constant

const (
	ERR_VALIDATION_CODE               = "VALIDATION_ERROR"
	ERR_TRANSPORT_ERROR_CODE          = "TRANSPORT_ERROR"
	ERR_INTERNAL_SERVER_ERROR_CODE    = "INTERNAL_SERVER_ERROR"
	ERR_INTENRAL_SERVER_ERROR_MESSAGE = "Something went wrong. If the problem persists, please contact support"
	ERR_NOT_FOUND_ERROR               = "NOT_FOUND_ERROR"
	ERR_UNATHORIZED_ERROR             = "UNAUTHORIEZED_ERROR"
)
