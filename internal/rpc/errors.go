package rpc

import (
	"fmt"
	"net/http"

	"github.com/nufounders/nufounders/internal/model"
)

// RPC層固有のエラーコード
const (
	codeMethodNotSupported = "METHOD_NOT_SUPPORTED"
	codeParseError         = "PARSE_ERROR"
)

// errorCode はクライアントへ返すエラーコードとHTTPステータス、JSON-RPC互換の数値コードの組。
type errorCode struct {
	name       string
	httpStatus int
	jsonRPC    int
}

var (
	errBadRequest         = errorCode{model.ErrCodeBadRequest, http.StatusBadRequest, -32600}
	errParse              = errorCode{codeParseError, http.StatusBadRequest, -32700}
	errUnauthorized       = errorCode{model.ErrCodeUnauthorized, http.StatusUnauthorized, -32001}
	errForbidden          = errorCode{model.ErrCodeForbidden, http.StatusForbidden, -32003}
	errNotFound           = errorCode{model.ErrCodeNotFound, http.StatusNotFound, -32004}
	errMethodNotSupported = errorCode{codeMethodNotSupported, http.StatusMethodNotAllowed, -32005}
	errTooManyRequests    = errorCode{model.ErrCodeTooManyRequests, http.StatusTooManyRequests, -32029}
	errInternal           = errorCode{model.ErrCodeInternal, http.StatusInternalServerError, -32603}
)

// errorCodeFor はAPIErrorのコードをRPCのエラーコードへ対応付ける。
func errorCodeFor(code string) errorCode {
	switch code {
	case model.ErrCodeBadRequest, model.ErrCodeInvalidRole, model.ErrCodeMissingCode:
		return errBadRequest
	case codeParseError:
		return errParse
	case model.ErrCodeUnauthorized:
		return errUnauthorized
	case model.ErrCodeForbidden:
		return errForbidden
	case model.ErrCodeNotFound, model.ErrCodeUserNotFound:
		return errNotFound
	case codeMethodNotSupported:
		return errMethodNotSupported
	case model.ErrCodeTooManyRequests:
		return errTooManyRequests
	default:
		return errInternal
	}
}

type successEnvelope struct {
	Result resultData `json:"result"`
}

type resultData struct {
	Data any `json:"data"`
}

type errorEnvelope struct {
	Error errorShape `json:"error"`
}

// errorShape はtRPC互換のエラー形式。
type errorShape struct {
	Message string    `json:"message"`
	Code    int       `json:"code"`
	Data    errorData `json:"data"`
}

type errorData struct {
	Code       string `json:"code"`
	HTTPStatus int    `json:"httpStatus"`
	Path       string `json:"path"`
	// AppCode はRPCコードより詳細なアプリケーションのエラーコード（USER_NOT_FOUNDなど）。
	AppCode string `json:"appCode,omitempty"`
}

func shapeError(apiErr *model.APIError, procedure string) errorShape {
	ec := errorCodeFor(apiErr.Code)
	data := errorData{
		Code:       ec.name,
		HTTPStatus: ec.httpStatus,
		Path:       procedure,
	}
	if apiErr.Code != ec.name {
		data.AppCode = apiErr.Code
	}
	return errorShape{
		Message: apiErr.Message,
		Code:    ec.jsonRPC,
		Data:    data,
	}
}

func newMethodNotSupportedError(method, procedure string) *model.APIError {
	return &model.APIError{
		Code:     codeMethodNotSupported,
		Message:  fmt.Sprintf("method %s is not supported for %s", method, procedure),
		Category: "validation",
		Action:   "Use GET for queries and POST for mutations.",
	}
}

func newParseError() *model.APIError {
	return &model.APIError{
		Code:     codeParseError,
		Message:  "input is not valid JSON",
		Category: "validation",
		Action:   "Check the request input.",
	}
}
