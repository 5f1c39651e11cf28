package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/nufounders/nufounders/internal/metrics"
	"github.com/nufounders/nufounders/internal/model"
)

// Kind はプロシージャの種別。QueryはGET、MutationはPOSTで呼び出す。
type Kind int

const (
	Query Kind = iota
	Mutation
)

func (k Kind) method() string {
	if k == Mutation {
		return http.MethodPost
	}
	return http.MethodGet
}

// Access はプロシージャの呼び出しに必要な権限。
type Access int

const (
	Public Access = iota
	Protected
	Admin
)

// maxInputBytes はMutationのリクエストボディ上限。
const maxInputBytes = 1 << 20

// HandlerFunc はプロシージャ本体。inputは未指定の場合nil。
// 返した値は{"result":{"data":...}}としてシリアライズされる。
type HandlerFunc func(ctx context.Context, c *Context, input json.RawMessage) (any, error)

// Procedure はRPCで公開する1つの手続き。
type Procedure struct {
	Name    string
	Kind    Kind
	Access  Access
	Handler HandlerFunc
}

// Router はプロシージャ名でディスパッチするHTTPハンドラー。
// /api/trpc/{procedure} にマウントする。
type Router struct {
	procedures map[string]Procedure
	auth       Authenticator
	metrics    metrics.MetricsCollector
}

// NewRouter は新しいRouterを生成する。mcがnilの場合はメトリクスを記録しない。
func NewRouter(a Authenticator, mc metrics.MetricsCollector) *Router {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Router{
		procedures: make(map[string]Procedure),
		auth:       a,
		metrics:    mc,
	}
}

// Register はプロシージャを登録する。名前の重複や不正な定義はプログラミングエラーとしてpanicする。
func (rt *Router) Register(p Procedure) {
	if p.Name == "" || p.Handler == nil {
		panic("rpc: procedure requires a name and a handler")
	}
	if _, exists := rt.procedures[p.Name]; exists {
		panic(fmt.Sprintf("rpc: procedure %q registered twice", p.Name))
	}
	rt.procedures[p.Name] = p
}

// Procedures は登録済みのプロシージャ名を昇順で返す。
func (rt *Router) Procedures() []string {
	names := make([]string, 0, len(rt.procedures))
	for name := range rt.procedures {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ServeHTTP はプロシージャを解決し、認可チェックの後に呼び出す。
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "procedure")
	if name == "" {
		name = path.Base(r.URL.Path)
	}

	p, ok := rt.procedures[name]
	if !ok {
		rt.fail(w, "unknown", name, model.NewNotFoundError("procedure "+name))
		return
	}

	if r.Method != p.Kind.method() {
		w.Header().Set("Allow", p.Kind.method())
		rt.fail(w, name, name, newMethodNotSupportedError(r.Method, name))
		return
	}

	input, apiErr := readInput(r, p.Kind)
	if apiErr != nil {
		rt.fail(w, name, name, apiErr)
		return
	}

	c := NewContext(r, w, rt.auth)
	if apiErr := authorize(p.Access, c.User); apiErr != nil {
		rt.fail(w, name, name, apiErr)
		return
	}

	result, err := p.Handler(r.Context(), c, input)
	if err != nil {
		var apiErr *model.APIError
		if !errors.As(err, &apiErr) {
			slog.Error("rpc procedure failed",
				slog.String("procedure", name),
				slog.String("error", err.Error()),
			)
			apiErr = model.NewInternalError()
		}
		rt.fail(w, name, name, apiErr)
		return
	}

	rt.metrics.RecordRPCCall(name, "OK")
	writeJSON(w, http.StatusOK, successEnvelope{Result: resultData{Data: result}})
}

// readInput はQueryなら?input=、MutationならリクエストボディからJSON入力を読み取る。
func readInput(r *http.Request, kind Kind) (json.RawMessage, *model.APIError) {
	var raw []byte
	if kind == Query {
		raw = []byte(r.URL.Query().Get("input"))
	} else {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxInputBytes+1))
		if err != nil {
			return nil, model.NewBadRequestError("failed to read request body")
		}
		if len(body) > maxInputBytes {
			return nil, model.NewBadRequestError("request body too large")
		}
		raw = body
	}

	if len(raw) == 0 {
		return nil, nil
	}
	if !json.Valid(raw) {
		return nil, newParseError()
	}
	return json.RawMessage(raw), nil
}

// authorize はアクセスレベルに対してユーザーを検査する。
func authorize(access Access, user *model.User) *model.APIError {
	switch access {
	case Protected:
		if user == nil {
			return model.NewUnauthorizedError()
		}
	case Admin:
		if user == nil {
			return model.NewUnauthorizedError()
		}
		if user.Role != model.RoleAdmin {
			return model.NewForbiddenError("You do not have required permission")
		}
	}
	return nil
}

func (rt *Router) fail(w http.ResponseWriter, metricName, procedure string, apiErr *model.APIError) {
	shape := shapeError(apiErr, procedure)
	rt.metrics.RecordRPCCall(metricName, shape.Data.Code)
	writeJSON(w, shape.Data.HTTPStatus, errorEnvelope{Error: shape})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode rpc response", slog.String("error", err.Error()))
	}
}

// DecodeInput はJSON入力を構造体にデコードする。入力が空または不正な場合はBAD_REQUESTを返す。
func DecodeInput(input json.RawMessage, dst any) error {
	if len(input) == 0 {
		return model.NewBadRequestError("input is required")
	}
	if err := json.Unmarshal(input, dst); err != nil {
		return model.NewBadRequestError("invalid input: " + err.Error())
	}
	return nil
}
