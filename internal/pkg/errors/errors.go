package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorType 错误类型
type ErrorType string

const (
	ErrorTypeInvalidRequest   ErrorType = "invalid_request"
	ErrorTypeAuthentication   ErrorType = "authentication_error"
	ErrorTypePermissionDenied ErrorType = "permission_denied"
	ErrorTypeInternal         ErrorType = "internal_error"
	ErrorTypeNotFound         ErrorType = "not_found"
	ErrorTypeConflict         ErrorType = "conflict"
	ErrorTypeSpamRejected     ErrorType = "spam_rejected"
	ErrorTypeReadonlyMode     ErrorType = "readonly_mode"
)

// ErrorCode 错误码
type ErrorCode string

const (
	// 认证错误
	CodeUnauthorized ErrorCode = "unauthorized"
	CodeInvalidToken ErrorCode = "invalid_token"

	// 权限错误
	CodePermissionDenied ErrorCode = "permission_denied"

	// 内部错误
	CodeInternalError ErrorCode = "internal_error"
	CodeDatabaseError ErrorCode = "database_error"
	CodeRedisError    ErrorCode = "redis_error"

	// 请求错误
	CodeInvalidRequest ErrorCode = "invalid_request"
	CodeNotFound       ErrorCode = "not_found"

	// 验证错误
	CodeRequiredField  ErrorCode = "required_field"
	CodeMaxLength      ErrorCode = "max_length"
	CodeInvalidRange   ErrorCode = "invalid_range"
	CodeInvalidFormat  ErrorCode = "invalid_format"
	CodeDuplicateValue ErrorCode = "duplicate_value"

	// 审核错误
	CodeSpamKeyword           ErrorCode = "spam_keyword"
	CodeRecaptchaFailed       ErrorCode = "recaptcha_failed"
	CodeRecaptchaTokenMissing ErrorCode = "recaptcha_token_missing"
	CodeReadonlyMode          ErrorCode = "readonly_mode"
	CodeInvalidTransition     ErrorCode = "invalid_transition"

	// 操作错误
	CodeOperationFailed ErrorCode = "operation_failed"
)

// AppError 应用错误
type AppError struct {
	Type       ErrorType              `json:"type"`
	Message    string                 `json:"message"`
	Code       ErrorCode              `json:"code"`
	Details    map[string]interface{} `json:"details,omitempty"`
	HTTPStatus int                    `json:"-"`
	Err        error                  `json:"-"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap 实现 errors.Unwrap
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails 添加详情
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

// WithError 包装原始错误
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// ErrorResponse API 错误响应格式
type ErrorResponse struct {
	Success bool              `json:"success"`
	Error   ErrorResponseBody `json:"error"`
}

// ErrorResponseBody 错误响应体
type ErrorResponseBody struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Code    ErrorCode              `json:"code"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ToResponse 转换为 API 响应格式
func (e *AppError) ToResponse() ErrorResponse {
	return ErrorResponse{
		Error: ErrorResponseBody{
			Type:    e.Type,
			Message: e.Message,
			Code:    e.Code,
			Details: e.Details,
		},
	}
}

// 预定义错误构造函数

// NewInvalidRequest 创建无效请求错误
func NewInvalidRequest(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeInvalidRequest,
		Message:    message,
		Code:       CodeInvalidRequest,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewValidationError 创建字段校验错误（422）
func NewValidationError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeInvalidRequest,
		Message:    message,
		Code:       code,
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// NewAuthenticationError 创建认证错误
func NewAuthenticationError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeAuthentication,
		Message:    message,
		Code:       code,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// NewPermissionDenied 创建权限拒绝错误
func NewPermissionDenied(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypePermissionDenied,
		Message:    message,
		Code:       code,
		HTTPStatus: http.StatusForbidden,
	}
}

// NewInternalError 创建内部错误
func NewInternalError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Message:    message,
		Code:       CodeInternalError,
		HTTPStatus: http.StatusInternalServerError,
	}
}

// NewNotFoundError 创建资源不存在错误
func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		Code:       CodeNotFound,
		HTTPStatus: http.StatusNotFound,
	}
}

// NewDatabaseError 创建数据库错误
func NewDatabaseError(err error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Message:    "Database error",
		Code:       CodeDatabaseError,
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewRedisError 创建 Redis 错误
func NewRedisError(err error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Message:    "Redis error",
		Code:       CodeRedisError,
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewSpamRejected 创建审核拒绝错误（关键词命中、reCAPTCHA 失败）
func NewSpamRejected(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeSpamRejected,
		Message:    message,
		Code:       code,
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// NewReadonlyMode 创建只读模式错误
func NewReadonlyMode(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeReadonlyMode,
		Message:    message,
		Code:       CodeReadonlyMode,
		HTTPStatus: http.StatusServiceUnavailable,
	}
}

// NewInvalidTransition 创建状态迁移非法错误
func NewInvalidTransition(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Message:    message,
		Code:       CodeInvalidTransition,
		HTTPStatus: http.StatusConflict,
	}
}

// As 将 error 转换为 AppError（支持包装链）
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is 检查错误类型
func Is(err error, target ErrorType) bool {
	if appErr, ok := As(err); ok {
		return appErr.Type == target
	}
	return false
}

// IsCode 检查错误码
func IsCode(err error, code ErrorCode) bool {
	if appErr, ok := As(err); ok {
		return appErr.Code == code
	}
	return false
}

// HTTPStatus 返回错误对应的 HTTP 状态码，非 AppError 视为 500
func HTTPStatus(err error) int {
	if appErr, ok := As(err); ok && appErr.HTTPStatus != 0 {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}
