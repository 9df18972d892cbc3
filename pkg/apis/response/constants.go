package response

type ErrCode int

const (
	_                        ErrCode = 10000 + iota
	ErrCodeMalformedJSON             // 10001
	ErrCodeMissingAction             // 10002
	ErrCodeUnknownDevice             // 10003
	ErrCodeUnknownAction             // 10004
	ErrCodeNotReady                  // 10005
	ErrCodeReadOnlyWrite             // 10006
	ErrCodeDeviceUnavailable         // 10007
	ErrCodeDeviceIO                  // 10008
	ErrCodeStateStore                // 10009
	ErrCodeInvalidUpdate             // 10010
)

// !!! IMPORTANT PLEASE READ FIRST !!!
// You SHOULD add new code at the end, and append comment of number
// Meanwhile, the corresponding error message SHOULD be appended in response.errors
// The order MUST be consistent between them
